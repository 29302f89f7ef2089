package orders

import "strconv"

const (
	TopicOrderCreated   = "storefront.order.created"
	TopicPaymentUpdated = "storefront.order.payment.updated"
	TopicOrderRefunded  = "storefront.order.refunded"
)

// Topics lists every topic the API publishes to.
var Topics = []string{TopicOrderCreated, TopicPaymentUpdated, TopicOrderRefunded}

func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventPaymentUpdated:
		return TopicPaymentUpdated
	case EventOrderRefunded:
		return TopicOrderRefunded
	}
	return ""
}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
