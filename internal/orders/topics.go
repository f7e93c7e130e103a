package orders

import "strconv"

const (
	TopicOrderConfirmation = "order.confirmation"
	TopicOrderStatusChange = "order.status.changed"
	TopicPaymentAuthorized = "order.payment.authorized"
	TopicPaymentFailed     = "order.payment.failed"

	// messages the worker gave up on, with their source in headers
	TopicWorkerDeadLetter = "order.worker.dlq"
)

// Partition key = order id, so every event of one order stays ordered.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
