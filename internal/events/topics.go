package events

const (
	TopicOrderPlaced    = "erp.order.placed"
	TopicOrderCancelled = "erp.order.cancelled"
	TopicInvoiceIssued  = "erp.invoice.issued"
	TopicInvoicePaid    = "erp.invoice.paid"
	TopicStockChanged   = "erp.stock.changed"
)

// OrderTopics is everything the billing consumer subscribes to.
var OrderTopics = []string{TopicOrderPlaced, TopicOrderCancelled}

// AllTopics feeds the OLAP projector.
var AllTopics = []string{
	TopicOrderPlaced,
	TopicOrderCancelled,
	TopicInvoiceIssued,
	TopicInvoicePaid,
	TopicStockChanged,
}

// PartitionKey keeps all facts of one entity on one partition so per-order
// (and per-SKU) ordering holds.
func PartitionKey(id string) []byte { return []byte(id) }
