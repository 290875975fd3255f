package model

import "time"

// Holder represents anything that can possess inventory: a field technician
// or a warehouse location. Technician holders may be linked to a login user.
type Holder struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	UserID    *int64     `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Holder types.
const (
	HolderTechnician = "technician"
	HolderLocation   = "location"
)
