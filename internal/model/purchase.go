package model

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is a request to buy a new asset.
type Purchase struct {
	ID               uuid.UUID     `json:"id"`
	RequestedBy      uuid.UUID     `json:"requested_by"`
	RequiredBy       uuid.NullUUID `json:"required_by"`
	AssetDescription string        `json:"asset_description"`
	Quantity         int           `json:"quantity"`
	Approved         bool          `json:"approved"`
	ApprovedBy       uuid.NullUUID `json:"approved_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
