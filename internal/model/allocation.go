package model

import (
	"time"

	"github.com/google/uuid"
)

// AllocationStatus is the lifecycle state of an allocation.
type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "pending"
	AllocationApproved  AllocationStatus = "approved"
	AllocationRejected  AllocationStatus = "rejected"
	AllocationCompleted AllocationStatus = "completed"
)

// Terminal reports whether no further transition can leave s.
func (s AllocationStatus) Terminal() bool {
	return s == AllocationRejected || s == AllocationCompleted
}

// AllocationType describes what an approved allocation grants the recipient.
type AllocationType string

const (
	// AllocationTypeOwner transfers ownership of the asset to the recipient.
	AllocationTypeOwner     AllocationType = "Owner"
	AllocationTypeTemporary AllocationType = "Temporary"
	AllocationTypeShared    AllocationType = "Shared"
	AllocationTypeRepair    AllocationType = "Repair"
	AllocationTypeOther     AllocationType = "Other"
)

// Valid reports whether t is a recognised allocation type.
func (t AllocationType) Valid() bool {
	switch t {
	case AllocationTypeOwner, AllocationTypeTemporary, AllocationTypeShared, AllocationTypeRepair, AllocationTypeOther:
		return true
	}
	return false
}

// TransfersOwnership reports whether approving the allocation reassigns the asset owner.
func (t AllocationType) TransfersOwnership() bool {
	return t == AllocationTypeOwner
}

// Allocation is a request to assign an asset to a user or to transfer its ownership.
type Allocation struct {
	ID              uuid.UUID        `json:"id"`
	AllocatedBy     uuid.UUID        `json:"allocated_by"`
	AllocatedTo     uuid.NullUUID    `json:"allocated_to"`
	AssetID         uuid.UUID        `json:"asset_id"`
	Type            AllocationType   `json:"allocation_type"`
	Status          AllocationStatus `json:"status"`
	StatusChangedAt time.Time        `json:"status_changed_at"`
	ApprovedBy      uuid.NullUUID    `json:"approved_by"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	StartTime       string           `json:"start_time,omitempty"`
	EndTime         string           `json:"end_time,omitempty"`
	Purpose         string           `json:"purpose,omitempty"`
	Version         int              `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
