package events

// Topics emitted by the POS domain services.
const (
	TopicCatalogUpdated    = "catalog.updated"
	TopicPromotionsUpdated = "promotions.updated"
	TopicSaleCommitted     = "sale.committed"
	TopicSaleApproved      = "sale.approved"
	TopicSaleCancelled     = "sale.cancelled"
)
