package kafka

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// DeadLetter parks messages a consumer gave up on. Writes are synchronous so
// the source offset is only committed once the copy is on the broker.
type DeadLetter struct {
	w messageWriter
}

func NewDeadLetter(brokers []string, topic string) *DeadLetter {
	return newDeadLetter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	})
}

func newDeadLetter(w messageWriter) *DeadLetter { return &DeadLetter{w: w} }

// Park copies m with its key, value and headers, adding where it came from
// and why it failed.
func (d *DeadLetter) Park(ctx context.Context, m kafka.Message, cause error) error {
	headers := make([]kafka.Header, 0, len(m.Headers)+4)
	headers = append(headers, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderSourceTopic, Value: []byte(m.Topic)},
		kafka.Header{Key: HeaderSourcePartition, Value: []byte(strconv.Itoa(m.Partition))},
		kafka.Header{Key: HeaderSourceOffset, Value: []byte(strconv.FormatInt(m.Offset, 10))},
		kafka.Header{Key: HeaderFailure, Value: []byte(cause.Error())},
	)
	return d.w.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Headers: headers})
}

func (d *DeadLetter) Close() error { return d.w.Close() }
