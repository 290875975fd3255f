package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a customer work order. Failed orders are never reopened; a retry
// creates a new row with an incremented attempt number linked through
// PreviousOrderID.
type Order struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	TechnicianID    *int64     `json:"technician_id,omitempty"`
	Customer        string     `json:"customer,omitempty"`
	Address         string     `json:"address,omitempty"`
	Attempt         int        `json:"attempt"`
	PreviousOrderID *int64     `json:"previous_order_id,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CompletedBy     *int64     `json:"completed_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	// Joined fields (not always populated).
	TechnicianName string `json:"technician_name,omitempty"`
}

// Order kinds.
const (
	OrderInstallation = "installation"
	OrderService      = "service"
)

// Order statuses.
const (
	OrderPending      = "pending"
	OrderAssigned     = "assigned"
	OrderCompleted    = "completed"
	OrderNotCompleted = "not_completed"
)

// MaterialUsage is one line of an order's claimed material consumption.
type MaterialUsage struct {
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`

	// Joined fields (not always populated).
	MaterialName string `json:"material_name,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

// WorkCode is a settlement entry captured when an order is completed. The
// amount is snapshotted from the rates table at completion time.
type WorkCode struct {
	OrderID int64           `json:"order_id"`
	Code    string          `json:"code"`
	Amount  decimal.Decimal `json:"amount"`
}

// Rate is a billing rate for a work code.
type Rate struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}
