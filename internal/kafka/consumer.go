package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     *slog.Logger

	// a failing message is retried this many extra times, doubling the
	// delay from backoff up to maxBackoff; the defaults outlast a held
	// order lock
	retries    int
	backoff    time.Duration
	maxBackoff time.Duration

	// exhausted messages are parked here before their offset is committed;
	// without it they are skipped and a later commit moves past them
	dlq *DeadLetter
}

func NewConsumer(brokers []string, group string, workers int, topics ...string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit synchronously after each handled message
	})
	return newConsumer(r, workers)
}

func newConsumer(r messageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		log:        slog.Default(),
		retries:    12,
		backoff:    200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

func (c *Consumer) WithLogger(l *slog.Logger) *Consumer {
	c.log = l
	return c
}

func (c *Consumer) WithDeadLetter(d *DeadLetter) *Consumer {
	c.dlq = d
	return c
}

// Start dispatches fetched messages to a pool of workers until ctx is done
// or the reader fails. Workers are drained before Start returns.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, c.workers*4)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.handle(ctx, h, m); err != nil && !c.giveUp(ctx, m, err) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error("commit failed", "topic", m.Topic, "offset", m.Offset, "error", err)
				}
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.delay(attempt)):
			case <-ctx.Done():
				return err
			}
		}
		if err = h(ctx, m); err == nil {
			return nil
		}
		c.log.Warn("handler attempt failed", "topic", m.Topic, "offset", m.Offset, "attempt", attempt+1, "error", err)
	}
	return err
}

// delay before the given retry, starting at 1.
func (c *Consumer) delay(attempt int) time.Duration {
	d := c.backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.maxBackoff > 0 && d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return d
}

// giveUp reports whether the failed message m may be committed. On shutdown
// it stays uncommitted so the group redelivers it.
func (c *Consumer) giveUp(ctx context.Context, m kafka.Message, cause error) bool {
	log := c.log.With("topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", cause)
	if ctx.Err() != nil {
		log.Warn("handler interrupted, leaving message uncommitted")
		return false
	}
	if c.dlq == nil {
		log.Error("handler failed, skipping message")
		return false
	}
	if err := c.dlq.Park(ctx, m, cause); err != nil {
		log.Error("dead-letter write failed, leaving message uncommitted", "dlq_error", err)
		return false
	}
	log.Warn("handler failed, message dead-lettered")
	return true
}
