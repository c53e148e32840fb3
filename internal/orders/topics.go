package orders

const (
	TopicOrderCreated = "order.created"
	TopicOrderPaid    = "order.paid"
)

// Partition key = payment ref, so all events of one checkout keep order.
func PartitionKey(paymentRef string) []byte { return []byte(paymentRef) }
