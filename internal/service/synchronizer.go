package service

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

const syncSavepoint = "asset_sync"

// AssetSynchronizer applies the asset side of allocation transitions. Every
// mutation runs inside its own savepoint so a failure here never undoes the
// allocation change it accompanies. A missing asset is a no-op.
type AssetSynchronizer struct {
	logger *log.Logger
}

// NewAssetSynchronizer creates a synchronizer.
func NewAssetSynchronizer(logger *log.Logger) *AssetSynchronizer {
	if logger == nil {
		logger = log.Default()
	}
	return &AssetSynchronizer{logger: logger}
}

// OnAllocationCreated points the asset at the new allocation. Availability is
// unchanged.
func (s *AssetSynchronizer) OnAllocationCreated(ctx context.Context, store repository.Store, allocationID, assetID uuid.UUID) error {
	return s.apply(ctx, store, "link", assetID, func(tx repository.Store) error {
		return tx.Assets().SetAllocationRef(ctx, assetID, allocationID)
	})
}

// OnAllocationApproved marks the asset unavailable and, for ownership
// transfers with a recipient, makes the recipient the owner.
func (s *AssetSynchronizer) OnAllocationApproved(ctx context.Context, store repository.Store, a model.Allocation) error {
	var newOwner uuid.NullUUID
	if a.Type.TransfersOwnership() {
		newOwner = a.AllocatedTo
	}
	return s.apply(ctx, store, "allocate", a.AssetID, func(tx repository.Store) error {
		return tx.Assets().MarkAllocated(ctx, a.AssetID, a.ID, newOwner)
	})
}

// OnAllocationReleased returns the asset to the pool after a rejection or
// completion, unless another approved allocation still holds it.
func (s *AssetSynchronizer) OnAllocationReleased(ctx context.Context, store repository.Store, allocationID, assetID uuid.UUID) error {
	return s.apply(ctx, store, "release", assetID, func(tx repository.Store) error {
		released, err := tx.Assets().MarkAvailable(ctx, assetID, allocationID)
		if err != nil {
			return err
		}
		if !released {
			s.logger.Printf("Asset %s kept unavailable: held by another approved allocation", assetID)
		}
		return nil
	})
}

func (s *AssetSynchronizer) apply(ctx context.Context, store repository.Store, action string, assetID uuid.UUID, fn func(repository.Store) error) error {
	err := store.Savepoint(ctx, syncSavepoint, fn)
	if errors.Is(err, repository.ErrAssetNotFound) {
		s.logger.Printf("Asset %s not found during %s, skipping asset update", assetID, action)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to %s asset %s: %w", action, assetID, err)
	}
	return nil
}
