package sales

import (
	"time"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Collection is the store collection name for sale records.
const Collection = "sales"

// Status is the lifecycle state of a sale record.
type Status string

const (
	// StatusPending means the sale is recorded but stock has not been
	// deducted yet; an explicit approval completes it.
	StatusPending Status = "Pending"
	// StatusCompleted means stock has been deducted exactly once.
	StatusCompleted Status = "Completed"
	// StatusCancelled is terminal; its stock effect has been reversed
	// exactly once (or never applied, for pending sales).
	StatusCancelled Status = "Cancelled"
)

// Meta carries customer, shipping and payment details. It never
// influences stock or pricing.
type Meta struct {
	CustomerName      string `json:"customerName"`
	CustomerPhone     string `json:"customerPhone"`
	CustomerAddress   string `json:"customerAddress"`
	Logistics         string `json:"logistics"`
	DestinationBranch string `json:"destinationBranch,omitempty"`
	PaymentMethod     string `json:"paymentMethod"`
	PaymentStatus     string `json:"paymentStatus"`
	CreatedBy         string `json:"createdBy,omitempty"`
}

// Record is an immutable snapshot of a committed sale. Items and
// summary are frozen at commit time; only Meta and Status may change
// afterwards, the latter exclusively through Approve and Cancel.
type Record struct {
	ID           string           `json:"id"`
	Items        []pricing.Item   `json:"items"`
	BillDiscount pricing.Discount `json:"billDiscount"`
	Summary      pricing.Summary  `json:"summary"`
	Meta         Meta             `json:"meta"`
	Status       Status           `json:"status"`
	Timestamp    time.Time        `json:"timestamp"`
}

// DocumentID implements store.Record.
func (r Record) DocumentID() string { return r.ID }
