package handler

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"asset-management-api/internal/service"
	"context"
	"net/http"

	"github.com/google/uuid"
)

// AllocationManager is the allocation service as seen by the handlers
type AllocationManager interface {
	CreateAllocation(ctx context.Context, actor service.Actor, allocation model.Allocation) (*model.Allocation, error)
	GetAllocationByID(ctx context.Context, id uuid.UUID) (*model.Allocation, error)
	GetAllAllocations(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Allocation], error)
	GetAllocationsByUser(ctx context.Context, userID uuid.UUID, params repository.PaginationParams) (*repository.Page[model.Allocation], error)
	GetAllocationsByAsset(ctx context.Context, assetID uuid.UUID, params repository.PaginationParams) (*repository.Page[model.Allocation], error)
	UpdateAllocation(ctx context.Context, actor service.Actor, id uuid.UUID, req service.AllocationUpdateRequest) (*model.Allocation, error)
	ApproveAllocation(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Allocation, error)
	RejectAllocation(ctx context.Context, actor service.Actor, id uuid.UUID, reason string) (*model.Allocation, error)
}

// AssetManager is the asset service as seen by the handlers
type AssetManager interface {
	CreateAsset(ctx context.Context, actor service.Actor, asset model.Asset) (*model.Asset, error)
	GetAllAssets(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Asset], error)
	GetAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	UpdateAsset(ctx context.Context, id uuid.UUID, updates model.Asset) (*model.Asset, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
}

// PurchaseManager is the purchase service as seen by the handlers
type PurchaseManager interface {
	CreatePurchase(ctx context.Context, actor service.Actor, purchase model.Purchase) (*model.Purchase, error)
	GetAllPurchases(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Purchase], error)
	GetPurchaseByID(ctx context.Context, id uuid.UUID) (*model.Purchase, error)
	ApprovePurchase(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Purchase, error)
}

// SubscriptionManager registers the caller's push subscriptions
type SubscriptionManager interface {
	SavePushSubscription(ctx context.Context, actor service.Actor, sub model.PushSubscription) (*model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, actor service.Actor, endpoint string) error
}

// AllocationHandlerInterface defines the contract for allocation HTTP handlers.
type AllocationHandlerInterface interface {
	CreateAllocationHandler(w http.ResponseWriter, r *http.Request)
	GetAllAllocationsHandler(w http.ResponseWriter, r *http.Request)
	GetAllocationHandler(w http.ResponseWriter, r *http.Request)
	GetUserAllocationsHandler(w http.ResponseWriter, r *http.Request)
	GetAssetAllocationsHandler(w http.ResponseWriter, r *http.Request)
	UpdateAllocationHandler(w http.ResponseWriter, r *http.Request)
	ApproveAllocationHandler(w http.ResponseWriter, r *http.Request)
	RejectAllocationHandler(w http.ResponseWriter, r *http.Request)
}

// AssetHandlerInterface defines the contract for asset HTTP handlers.
type AssetHandlerInterface interface {
	CreateAssetHandler(w http.ResponseWriter, r *http.Request)
	GetAllAssetsHandler(w http.ResponseWriter, r *http.Request)
	GetAssetHandler(w http.ResponseWriter, r *http.Request)
	UpdateAssetHandler(w http.ResponseWriter, r *http.Request)
	DeleteAssetHandler(w http.ResponseWriter, r *http.Request)
}

// PurchaseHandlerInterface defines the contract for purchase HTTP handlers.
type PurchaseHandlerInterface interface {
	CreatePurchaseHandler(w http.ResponseWriter, r *http.Request)
	GetAllPurchasesHandler(w http.ResponseWriter, r *http.Request)
	GetPurchaseHandler(w http.ResponseWriter, r *http.Request)
	ApprovePurchaseHandler(w http.ResponseWriter, r *http.Request)
}

// UserHandlerInterface defines the contract for the caller's own settings.
type UserHandlerInterface interface {
	SavePushSubscriptionHandler(w http.ResponseWriter, r *http.Request)
	DeletePushSubscriptionHandler(w http.ResponseWriter, r *http.Request)
	VAPIDPublicKeyHandler(w http.ResponseWriter, r *http.Request)
}

// Handlers groups every handler the router mounts
type Handlers struct {
	Allocations AllocationHandlerInterface
	Assets      AssetHandlerInterface
	Purchases   PurchaseHandlerInterface
	Users       UserHandlerInterface
	Health      http.HandlerFunc
}

// Ensure the handlers implement their interfaces at compile time
var (
	_ AllocationHandlerInterface = (*AllocationHandler)(nil)
	_ AssetHandlerInterface      = (*AssetHandler)(nil)
	_ PurchaseHandlerInterface   = (*PurchaseHandler)(nil)
	_ UserHandlerInterface       = (*UserHandler)(nil)
)

var (
	_ AllocationManager   = (*service.AllocationService)(nil)
	_ AssetManager        = (*service.AssetService)(nil)
	_ PurchaseManager     = (*service.PurchaseService)(nil)
	_ SubscriptionManager = (*service.UserService)(nil)
)
