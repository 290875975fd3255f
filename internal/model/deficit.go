package model

import "github.com/shopspring/decimal"

// Deficit records how much of a material a technician has logically consumed
// beyond what was ever issued to them. It is settled before new issuance is
// credited to the technician's visible stock and never goes negative; the row
// is deleted when it reaches zero.
type Deficit struct {
	HolderID   int64           `json:"holder_id"`
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`

	// Joined fields (not always populated).
	HolderName   string `json:"holder_name,omitempty"`
	MaterialName string `json:"material_name,omitempty"`
	Unit         string `json:"unit,omitempty"`
}
