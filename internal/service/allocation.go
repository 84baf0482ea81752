package service

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"asset-management-api/pkg/errors"
	"asset-management-api/pkg/validation"
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AllocationService runs the allocation lifecycle:
//
//	pending -> approved | rejected
//	approved -> completed (expiry only)
//
// Every transition is a compare-and-swap on status inside one transaction
// together with its asset update, so racing transitions on the same
// allocation cannot both succeed. Notifications go out after commit and
// never affect the result.
type AllocationService struct {
	store    repository.Store
	sync     *AssetSynchronizer
	notifier NotificationService
	tracer   trace.Tracer
	logger   *log.Logger
	now      func() time.Time
}

// AllocationUpdateRequest carries the fields a generic update may change. Nil
// fields are left as they are.
type AllocationUpdateRequest struct {
	Type      *model.AllocationType
	Purpose   *string
	StartTime *string
	EndTime   *string
	// Version, when set, must match the stored version.
	Version *int
}

// NewAllocationService creates a new allocation service. notifier may be nil.
func NewAllocationService(store repository.Store, notifier NotificationService, logger *log.Logger) *AllocationService {
	if logger == nil {
		logger = log.Default()
	}
	return &AllocationService{
		store:    store,
		sync:     NewAssetSynchronizer(logger),
		notifier: notifier,
		tracer:   otel.Tracer("asset-management-api/service"),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateAllocation opens a pending allocation for an available asset and
// links the asset to it.
func (s *AllocationService) CreateAllocation(ctx context.Context, actor Actor, allocation model.Allocation) (*model.Allocation, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.create",
		trace.WithAttributes(attribute.String("asset.id", allocation.AssetID.String())))
	defer span.End()

	if allocation.AssetID == uuid.Nil {
		return nil, errors.ValidationError("asset is required")
	}
	if problems := validation.ValidateAllocationInput(&allocation); len(problems) > 0 {
		return nil, errors.ValidationErrorWithDetails("invalid allocation", detailMap(problems))
	}

	now := s.now()
	allocation.ID = uuid.New()
	allocation.AllocatedBy = actor.ID
	allocation.Status = model.AllocationPending
	allocation.StatusChangedAt = now
	allocation.ApprovedBy = uuid.NullUUID{}
	allocation.RejectionReason = ""
	allocation.Version = 1

	var asset *model.Asset
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		asset, err = tx.Assets().LockAssetByID(ctx, allocation.AssetID)
		if err != nil {
			if stderrors.Is(err, repository.ErrAssetNotFound) {
				return errors.NotFoundError("asset")
			}
			return errors.DatabaseError("failed to retrieve asset", err)
		}
		if !asset.Available {
			return errors.InvalidStateError("asset", "unavailable", "allocate")
		}

		if allocation.AllocatedTo.Valid {
			if _, err := tx.Users().GetUserByID(ctx, allocation.AllocatedTo.UUID); err != nil {
				if stderrors.Is(err, repository.ErrUserNotFound) {
					return errors.ValidationError("recipient user does not exist")
				}
				return errors.DatabaseError("failed to retrieve recipient", err)
			}
		}

		if err := tx.Allocations().CreateAllocation(ctx, allocation); err != nil {
			return errors.DatabaseError("failed to create allocation", err)
		}

		if err := s.sync.OnAllocationCreated(ctx, tx, allocation.ID, allocation.AssetID); err != nil {
			s.logger.Printf("Asset sync failed for new allocation %s: %v", allocation.ID, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Printf("Allocation created successfully: ID=%s, Asset=%s, Type=%s", allocation.ID, allocation.AssetID, allocation.Type)

	s.notify(ctx, AllocationNotification{
		Type:       NotificationTypeAllocationCreated,
		Allocation: allocation,
		Asset:      asset,
		Actor:      actor.ID,
	})

	created := allocation
	if stored, err := s.store.Allocations().GetAllocationByID(ctx, allocation.ID); err == nil {
		created = *stored
	}
	return &created, nil
}

// GetAllocationByID retrieves an allocation by its ID
func (s *AllocationService) GetAllocationByID(ctx context.Context, id uuid.UUID) (*model.Allocation, error) {
	allocation, err := s.store.Allocations().GetAllocationByID(ctx, id)
	if err != nil {
		return nil, mapAllocationError(err, "failed to retrieve allocation")
	}
	return allocation, nil
}

// GetAllAllocations retrieves allocations with pagination, newest first
func (s *AllocationService) GetAllAllocations(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Allocation], error) {
	result, err := s.store.Allocations().GetAllAllocationsPaginated(ctx, params)
	if err != nil {
		return nil, errors.DatabaseError("failed to retrieve allocations", err)
	}

	s.logger.Printf("Retrieved %d allocations (offset %d, limit %d)", len(result.Items), params.Offset, params.Limit)
	return result, nil
}

// GetAllocationsByUser retrieves allocations the user requested or receives
func (s *AllocationService) GetAllocationsByUser(ctx context.Context, userID uuid.UUID, params repository.PaginationParams) (*repository.Page[model.Allocation], error) {
	result, err := s.store.Allocations().GetAllocationsByUserPaginated(ctx, userID, params)
	if err != nil {
		return nil, errors.DatabaseError("failed to retrieve user allocations", err)
	}

	s.logger.Printf("Retrieved %d allocations for user %s (offset %d, limit %d)",
		len(result.Items), userID, params.Offset, params.Limit)
	return result, nil
}

// GetAllocationsByAsset retrieves the allocation history of an asset
func (s *AllocationService) GetAllocationsByAsset(ctx context.Context, assetID uuid.UUID, params repository.PaginationParams) (*repository.Page[model.Allocation], error) {
	result, err := s.store.Allocations().GetAllocationsByAssetPaginated(ctx, assetID, params)
	if err != nil {
		return nil, errors.DatabaseError("failed to retrieve asset allocations", err)
	}

	s.logger.Printf("Retrieved %d allocations for asset %s (offset %d, limit %d)",
		len(result.Items), assetID, params.Offset, params.Limit)
	return result, nil
}

// UpdateAllocation changes descriptive fields of a non-terminal allocation.
// The type can only change while the allocation is pending. Status, asset and
// parties are never touched here.
func (s *AllocationService) UpdateAllocation(ctx context.Context, actor Actor, id uuid.UUID, req AllocationUpdateRequest) (*model.Allocation, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.update",
		trace.WithAttributes(attribute.String("allocation.id", id.String())))
	defer span.End()

	var updated *model.Allocation
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Allocations().GetAllocationByID(ctx, id)
		if err != nil {
			return mapAllocationError(err, "failed to retrieve allocation for update")
		}

		if !actor.IsAdmin() && current.AllocatedBy != actor.ID {
			return errors.ForbiddenError("only the requester or an admin may update an allocation")
		}
		if current.Status.Terminal() {
			return errors.InvalidStateError("allocation", string(current.Status), "update")
		}
		if req.Version != nil && *req.Version != current.Version {
			return errors.ConflictError("allocation was modified concurrently").
				WithDetail("current_version", current.Version)
		}

		next := *current
		if req.Type != nil && *req.Type != current.Type {
			if current.Status != model.AllocationPending {
				return errors.InvalidStateError("allocation", string(current.Status), "change the type of")
			}
			next.Type = *req.Type
		}
		if req.Purpose != nil {
			next.Purpose = strings.TrimSpace(*req.Purpose)
		}
		if req.StartTime != nil {
			next.StartTime = strings.TrimSpace(*req.StartTime)
		}
		if req.EndTime != nil {
			next.EndTime = strings.TrimSpace(*req.EndTime)
		}

		if problems := validation.ValidateAllocationInput(&next); len(problems) > 0 {
			return errors.ValidationErrorWithDetails("invalid allocation update", detailMap(problems))
		}

		updated, err = tx.Allocations().UpdateAllocationDetails(ctx, id, current.Version, repository.AllocationUpdate{
			Type:      next.Type,
			Purpose:   next.Purpose,
			StartTime: next.StartTime,
			EndTime:   next.EndTime,
		})
		if err != nil {
			if stderrors.Is(err, repository.ErrVersionConflict) {
				return errors.ConflictError("allocation was modified concurrently")
			}
			return mapAllocationError(err, "failed to update allocation")
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Printf("Allocation updated successfully: ID=%s, Version=%d", id, updated.Version)
	return updated, nil
}

// ApproveAllocation moves a pending allocation to approved and takes the
// asset out of the pool.
func (s *AllocationService) ApproveAllocation(ctx context.Context, actor Actor, id uuid.UUID) (*model.Allocation, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.approve",
		trace.WithAttributes(
			attribute.String("allocation.id", id.String()),
			attribute.String("actor.id", actor.ID.String()),
		))
	defer span.End()

	var approved *model.Allocation
	var asset *model.Asset
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Allocations().GetAllocationByID(ctx, id)
		if err != nil {
			return mapAllocationError(err, "failed to retrieve allocation")
		}
		if current.Status != model.AllocationPending {
			return errors.InvalidStateError("allocation", string(current.Status), "approve")
		}

		asset, err = s.lockAsset(ctx, tx, current.AssetID)
		if err != nil {
			return err
		}
		if asset != nil {
			held, err := tx.Allocations().HasOtherApprovedAllocation(ctx, current.AssetID, id)
			if err != nil {
				return errors.DatabaseError("failed to check asset allocations", err)
			}
			if held {
				return errors.InvalidStateError("asset", "allocated", "approve another allocation for")
			}
		}

		approved, err = s.transition(ctx, tx, repository.StatusTransition{
			ID:         id,
			From:       model.AllocationPending,
			To:         model.AllocationApproved,
			At:         s.now(),
			ApprovedBy: uuid.NullUUID{UUID: actor.ID, Valid: true},
		}, "approve")
		if err != nil {
			return err
		}

		if err := s.sync.OnAllocationApproved(ctx, tx, *approved); err != nil {
			s.logger.Printf("Asset sync failed for approved allocation %s: %v", id, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("allocation.version", approved.Version))
	s.logger.Printf("Allocation approved: ID=%s, Asset=%s, Approver=%s", id, approved.AssetID, actor.ID)

	s.notify(ctx, AllocationNotification{
		Type:       NotificationTypeAllocationApproved,
		Allocation: *approved,
		Asset:      asset,
		Actor:      actor.ID,
	})
	return approved, nil
}

// RejectAllocation moves a pending allocation to rejected and returns the
// asset to the pool.
func (s *AllocationService) RejectAllocation(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*model.Allocation, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.reject",
		trace.WithAttributes(
			attribute.String("allocation.id", id.String()),
			attribute.String("actor.id", actor.ID.String()),
		))
	defer span.End()

	reason = strings.TrimSpace(reason)
	if err := validation.ValidateRejectionReason(reason); err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	var rejected *model.Allocation
	var asset *model.Asset
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Allocations().GetAllocationByID(ctx, id)
		if err != nil {
			return mapAllocationError(err, "failed to retrieve allocation")
		}
		if current.Status != model.AllocationPending {
			return errors.InvalidStateError("allocation", string(current.Status), "reject")
		}

		asset, err = s.lockAsset(ctx, tx, current.AssetID)
		if err != nil {
			return err
		}

		rejected, err = s.transition(ctx, tx, repository.StatusTransition{
			ID:              id,
			From:            model.AllocationPending,
			To:              model.AllocationRejected,
			At:              s.now(),
			RejectionReason: reason,
		}, "reject")
		if err != nil {
			return err
		}

		if err := s.sync.OnAllocationReleased(ctx, tx, id, rejected.AssetID); err != nil {
			s.logger.Printf("Asset sync failed for rejected allocation %s: %v", id, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Printf("Allocation rejected: ID=%s, Asset=%s, By=%s", id, rejected.AssetID, actor.ID)

	s.notify(ctx, AllocationNotification{
		Type:       NotificationTypeAllocationRejected,
		Allocation: *rejected,
		Asset:      asset,
		Actor:      actor.ID,
	})
	return rejected, nil
}

// CompleteAllocation ends an approved allocation at the given time and
// frees its asset. Only the expiry sweep calls this.
func (s *AllocationService) CompleteAllocation(ctx context.Context, id uuid.UUID, at time.Time) (*model.Allocation, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.complete",
		trace.WithAttributes(attribute.String("allocation.id", id.String())))
	defer span.End()

	var completed *model.Allocation
	var asset *model.Asset
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Allocations().GetAllocationByID(ctx, id)
		if err != nil {
			return mapAllocationError(err, "failed to retrieve allocation")
		}
		if current.Status != model.AllocationApproved {
			return errors.InvalidStateError("allocation", string(current.Status), "complete")
		}

		asset, err = s.lockAsset(ctx, tx, current.AssetID)
		if err != nil {
			return err
		}

		completed, err = s.transition(ctx, tx, repository.StatusTransition{
			ID:   id,
			From: model.AllocationApproved,
			To:   model.AllocationCompleted,
			At:   at,
		}, "complete")
		if err != nil {
			return err
		}

		if err := s.sync.OnAllocationReleased(ctx, tx, id, completed.AssetID); err != nil {
			s.logger.Printf("Asset sync failed for completed allocation %s: %v", id, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Printf("Allocation completed: ID=%s, Asset=%s", id, completed.AssetID)

	s.notify(ctx, AllocationNotification{
		Type:       NotificationTypeAllocationCompleted,
		Allocation: *completed,
		Asset:      asset,
	})
	return completed, nil
}

// lockAsset returns nil without error when the asset is gone, so the
// transition can still proceed.
func (s *AllocationService) lockAsset(ctx context.Context, tx repository.Store, id uuid.UUID) (*model.Asset, error) {
	asset, err := tx.Assets().LockAssetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrAssetNotFound) {
			s.logger.Printf("Asset %s referenced by allocation no longer exists", id)
			return nil, nil
		}
		return nil, errors.DatabaseError("failed to lock asset", err)
	}
	return asset, nil
}

func (s *AllocationService) transition(ctx context.Context, tx repository.Store, t repository.StatusTransition, action string) (*model.Allocation, error) {
	updated, err := tx.Allocations().TransitionStatus(ctx, t)
	if err == nil {
		return updated, nil
	}
	if stderrors.Is(err, repository.ErrStatusConflict) {
		status := "changed"
		if latest, getErr := tx.Allocations().GetAllocationByID(ctx, t.ID); getErr == nil {
			status = string(latest.Status)
		}
		return nil, errors.InvalidStateError("allocation", status, action)
	}
	return nil, mapAllocationError(err, fmt.Sprintf("failed to %s allocation", action))
}

func (s *AllocationService) notify(ctx context.Context, n AllocationNotification) {
	if s.notifier == nil {
		return
	}
	report := s.notifier.SendAllocationNotification(ctx, n)
	if err := report.Err(); err != nil {
		s.logger.Printf("Notification delivery incomplete for %s of allocation %s: %v", n.Type, n.Allocation.ID, err)
	}
}

func mapAllocationError(err error, message string) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if stderrors.Is(err, repository.ErrAllocationNotFound) {
		return errors.NotFoundError("allocation")
	}
	return errors.DatabaseError(message, err)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// detailMap turns a list of validation problems into error details.
func detailMap(problems []string) map[string]string {
	details := make(map[string]string, len(problems))
	for i, p := range problems {
		details[fmt.Sprintf("error_%d", i+1)] = p
	}
	return details
}
