package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryEntry is one immutable record in the item history ledger. Entries are
// only ever appended; the single exception is the compensating rollback that
// erases a provisional item together with its entries, matched one by one.
// The denormalized status/holder on the item row must always equal the result
// of replaying its entries in order.
type HistoryEntry struct {
	ID          int64            `json:"id"`
	ItemID      int64            `json:"item_id"`
	Action      string           `json:"action"`
	UserID      *int64           `json:"user_id,omitempty"`
	PerformerID *int64           `json:"performer_id,omitempty"`
	HolderID    *int64           `json:"holder_id,omitempty"`
	OrderID     *int64           `json:"order_id,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`

	// Joined fields (not always populated).
	ItemName      string `json:"item_name,omitempty"`
	HolderName    string `json:"holder_name,omitempty"`
	PerformerName string `json:"performer_name,omitempty"`
}

// History actions. PerformerID credits the holder that caused the action
// (the sending technician on a TRANSFER); HolderID records where the item
// ended up.
const (
	ActionReceived             = "RECEIVED"
	ActionIssued               = "ISSUED"
	ActionReturned             = "RETURNED"
	ActionReturnedToTechnician = "RETURNED_TO_TECHNICIAN"
	ActionReturnedToOperator   = "RETURNED_TO_OPERATOR"
	ActionAssignedToOrder      = "ASSIGNED_TO_ORDER"
	ActionCollectedFromClient  = "COLLECTED_FROM_CLIENT"
	ActionTransfer             = "TRANSFER"
)
