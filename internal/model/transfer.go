package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest is a pending technician-to-technician handover. At most one
// open request may exist per item (enforced by a partial unique index), which
// is what prevents concurrent transfers of the same device.
//
// For material lots the sender's stock is split at request time: the requested
// quantity moves into a separate lot (PendingItemID) still owned by the sender
// but earmarked for the recipient, so the sender keeps using the rest.
type TransferRequest struct {
	ID            int64            `json:"id"`
	ItemID        int64            `json:"item_id"`
	FromHolderID  int64            `json:"from_holder_id"`
	ToHolderID    int64            `json:"to_holder_id"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	PendingItemID *int64           `json:"pending_item_id,omitempty"`
	Status        string           `json:"status"`
	RequestedBy   *int64           `json:"requested_by,omitempty"`
	RequestedAt   time.Time        `json:"requested_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`

	// Joined fields (not always populated).
	ItemName       string `json:"item_name,omitempty"`
	FromHolderName string `json:"from_holder_name,omitempty"`
	ToHolderName   string `json:"to_holder_name,omitempty"`
}

// Transfer request states.
const (
	TransferRequested = "requested"
	TransferConfirmed = "confirmed"
	TransferRejected  = "rejected"
	TransferCancelled = "cancelled"
)
