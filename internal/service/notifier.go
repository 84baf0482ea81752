package service

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/notification"
	"context"

	"github.com/google/uuid"
)

// NotificationService interface for sending notifications. Implementations
// report delivery outcomes instead of failing; callers log the report error
// and carry on.
type NotificationService interface {
	SendAllocationNotification(ctx context.Context, n AllocationNotification) notification.Report
	SendPurchaseNotification(ctx context.Context, n PurchaseNotification) notification.Report
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeAllocationCreated   NotificationType = "allocation_created"
	NotificationTypeAllocationApproved  NotificationType = "allocation_approved"
	NotificationTypeAllocationRejected  NotificationType = "allocation_rejected"
	NotificationTypeAllocationCompleted NotificationType = "allocation_completed"
	NotificationTypePurchaseRequested   NotificationType = "purchase_requested"
	NotificationTypePurchaseApproved    NotificationType = "purchase_approved"
)

// AllocationNotification describes an allocation lifecycle event.
type AllocationNotification struct {
	Type       NotificationType
	Allocation model.Allocation
	// Asset is the asset as it was before the transition, so the previous
	// owner is still visible. Nil when the asset no longer exists.
	Asset *model.Asset
	Actor uuid.UUID
}

// PurchaseNotification describes a purchase request event.
type PurchaseNotification struct {
	Type     NotificationType
	Purchase model.Purchase
	Actor    uuid.UUID
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}
