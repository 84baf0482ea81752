package model

import (
	"time"

	"github.com/google/uuid"
)

// AssetState represents the physical condition of an asset.
type AssetState string

const (
	AssetStateWorking     AssetState = "Working"
	AssetStateDiscarded   AssetState = "Discarded"
	AssetStateReturned    AssetState = "Returned"
	AssetStateUnderRepair AssetState = "UnderRepair"
	AssetStateLost        AssetState = "Lost"
	AssetStateInStock     AssetState = "InStock"
	AssetStateReserved    AssetState = "Reserved"
	AssetStateMaintenance AssetState = "Maintenance"
	AssetStateDamaged     AssetState = "Damaged"
	AssetStateSold        AssetState = "Sold"
	AssetStateOther       AssetState = "Other"
)

// AssetStates lists every recognised asset state.
var AssetStates = []AssetState{
	AssetStateWorking, AssetStateDiscarded, AssetStateReturned, AssetStateUnderRepair,
	AssetStateLost, AssetStateInStock, AssetStateReserved, AssetStateMaintenance,
	AssetStateDamaged, AssetStateSold, AssetStateOther,
}

// Valid reports whether s is one of AssetStates.
func (s AssetState) Valid() bool {
	for _, state := range AssetStates {
		if s == state {
			return true
		}
	}
	return false
}

// Asset represents a company-owned physical item.
//
// Owner, Available and AllocationID are only changed by allocation
// transitions.
type Asset struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	SerialNumber string        `json:"serial_number"`
	Description  string        `json:"description,omitempty"`
	State        AssetState    `json:"state"`
	PurchaserID  uuid.NullUUID `json:"purchaser_id"`
	OwnerID      uuid.NullUUID `json:"owner_id"`
	Available    bool          `json:"available"`
	AllocationID uuid.NullUUID `json:"allocation_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
