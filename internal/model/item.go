package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a tracked inventory unit: either a serialized device or a material
// lot. Devices implicitly have quantity 1; material lots carry a decimal
// quantity of their material definition.
type Item struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`

	// Device fields.
	Serial    string `json:"serial,omitempty"`
	Category  string `json:"category,omitempty"`
	PhotoMime string `json:"photo_mime,omitempty"`

	// Material lot fields.
	MaterialID *int64          `json:"material_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`

	Status       string `json:"status"`
	AssignedToID *int64 `json:"assigned_to_id,omitempty"`
	LocationID   *int64 `json:"location_id,omitempty"`
	OrderID      *int64 `json:"order_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	MaterialName    string `json:"material_name,omitempty"`
	Unit            string `json:"unit,omitempty"`
	HolderName      string `json:"holder_name,omitempty"`
	TransferPending bool   `json:"transfer_pending,omitempty"`
}

// Item kinds.
const (
	KindDevice   = "device"
	KindMaterial = "material"
)

// Item statuses. Status and holder columns must stay consistent: AVAILABLE and
// RETURNED sit at a location, ASSIGNED and COLLECTED_FROM_CLIENT at a
// technician, ASSIGNED_TO_ORDER only carries the order link, and
// RETURNED_TO_OPERATOR is terminal with no holder at all.
const (
	StatusAvailable           = "AVAILABLE"
	StatusAssigned            = "ASSIGNED"
	StatusAssignedToOrder     = "ASSIGNED_TO_ORDER"
	StatusCollectedFromClient = "COLLECTED_FROM_CLIENT"
	StatusReturned            = "RETURNED"
	StatusReturnedToOperator  = "RETURNED_TO_OPERATOR"
)

// Material is a material definition (what a lot is made of), not stock itself.
type Material struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Unit      string     `json:"unit"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
