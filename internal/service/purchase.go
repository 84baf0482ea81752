package service

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"asset-management-api/pkg/errors"
	"asset-management-api/pkg/validation"
	"context"
	stderrors "errors"
	"log"

	"github.com/google/uuid"
)

// PurchaseService handles purchase requests for new assets
type PurchaseService struct {
	store    repository.Store
	notifier NotificationService
	logger   *log.Logger
}

// NewPurchaseService creates a new purchase service. notifier may be nil.
func NewPurchaseService(store repository.Store, notifier NotificationService, logger *log.Logger) *PurchaseService {
	if logger == nil {
		logger = log.Default()
	}
	return &PurchaseService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// CreatePurchase files a purchase request on behalf of the actor
func (s *PurchaseService) CreatePurchase(ctx context.Context, actor Actor, purchase model.Purchase) (*model.Purchase, error) {
	if problems := validation.ValidatePurchaseInput(&purchase); len(problems) > 0 {
		return nil, errors.ValidationErrorWithDetails("invalid purchase request", detailMap(problems))
	}

	purchase.ID = uuid.New()
	purchase.RequestedBy = actor.ID

	if purchase.RequiredBy.Valid {
		if _, err := s.store.Users().GetUserByID(ctx, purchase.RequiredBy.UUID); err != nil {
			if stderrors.Is(err, repository.ErrUserNotFound) {
				return nil, errors.ValidationError("required-by user does not exist")
			}
			return nil, errors.DatabaseError("failed to retrieve required-by user", err)
		}
	}

	if err := s.store.Purchases().CreatePurchase(ctx, purchase); err != nil {
		return nil, errors.DatabaseError("failed to create purchase request", err)
	}

	created, err := s.GetPurchaseByID(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("Purchase request created successfully: ID=%s, Quantity=%d", created.ID, created.Quantity)
	s.notify(ctx, PurchaseNotification{Type: NotificationTypePurchaseRequested, Purchase: *created, Actor: actor.ID})

	return created, nil
}

// GetAllPurchases retrieves purchase requests with pagination, newest first
func (s *PurchaseService) GetAllPurchases(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Purchase], error) {
	result, err := s.store.Purchases().GetAllPurchasesPaginated(ctx, params)
	if err != nil {
		return nil, errors.DatabaseError("failed to retrieve purchase requests", err)
	}

	s.logger.Printf("Retrieved %d purchase requests (offset %d, limit %d)", len(result.Items), params.Offset, params.Limit)
	return result, nil
}

// GetPurchaseByID retrieves a purchase request by its ID
func (s *PurchaseService) GetPurchaseByID(ctx context.Context, id uuid.UUID) (*model.Purchase, error) {
	purchase, err := s.store.Purchases().GetPurchaseByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrPurchaseNotFound) {
			return nil, errors.NotFoundError("purchase request")
		}
		return nil, errors.DatabaseError("failed to retrieve purchase request", err)
	}
	return purchase, nil
}

// ApprovePurchase approves a pending purchase request. Approving twice is an
// invalid-state error.
func (s *PurchaseService) ApprovePurchase(ctx context.Context, actor Actor, id uuid.UUID) (*model.Purchase, error) {
	approved, err := s.store.Purchases().ApprovePurchase(ctx, id, actor.ID)
	if err != nil {
		switch {
		case stderrors.Is(err, repository.ErrPurchaseNotFound):
			return nil, errors.NotFoundError("purchase request")
		case stderrors.Is(err, repository.ErrPurchaseAlreadyApproved):
			return nil, errors.InvalidStateError("purchase request", "approved", "approve")
		}
		return nil, errors.DatabaseError("failed to approve purchase request", err)
	}

	s.logger.Printf("Purchase request approved: ID=%s, Approver=%s", id, actor.ID)
	s.notify(ctx, PurchaseNotification{Type: NotificationTypePurchaseApproved, Purchase: *approved, Actor: actor.ID})

	return approved, nil
}

func (s *PurchaseService) notify(ctx context.Context, n PurchaseNotification) {
	if s.notifier == nil {
		return
	}
	report := s.notifier.SendPurchaseNotification(ctx, n)
	if err := report.Err(); err != nil {
		s.logger.Printf("Notification delivery incomplete for %s of purchase %s: %v", n.Type, n.Purchase.ID, err)
	}
}
