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

// AssetService handles business logic for asset operations. Availability,
// owner and the allocation back-reference belong to the allocation workflow
// and are never written here.
type AssetService struct {
	store  repository.Store
	logger *log.Logger
}

// NewAssetService creates a new asset service
func NewAssetService(store repository.Store, logger *log.Logger) *AssetService {
	if logger == nil {
		logger = log.Default()
	}
	return &AssetService{
		store:  store,
		logger: logger,
	}
}

// CreateAsset registers a new, available asset. A purchaser creating an
// asset without naming one is recorded as its purchaser.
func (s *AssetService) CreateAsset(ctx context.Context, actor Actor, asset model.Asset) (*model.Asset, error) {
	if problems := validation.ValidateAssetInput(&asset); len(problems) > 0 {
		return nil, errors.ValidationErrorWithDetails("invalid asset", detailMap(problems))
	}

	asset.ID = uuid.New()
	if !asset.PurchaserID.Valid && actor.Role == model.RolePurchaser {
		asset.PurchaserID = uuid.NullUUID{UUID: actor.ID, Valid: true}
	}
	asset.AllocationID = uuid.NullUUID{}

	if err := s.store.Assets().CreateAsset(ctx, asset); err != nil {
		if stderrors.Is(err, repository.ErrDuplicateSerial) {
			return nil, errors.ConflictError("asset with this serial number already exists")
		}
		return nil, errors.DatabaseError("failed to create asset", err)
	}

	s.logger.Printf("Asset created successfully: ID=%s, Serial=%s", asset.ID, asset.SerialNumber)

	return s.GetAssetByID(ctx, asset.ID)
}

// GetAllAssets retrieves assets with pagination
func (s *AssetService) GetAllAssets(ctx context.Context, params repository.PaginationParams) (*repository.Page[model.Asset], error) {
	result, err := s.store.Assets().GetAllAssetsPaginated(ctx, params)
	if err != nil {
		return nil, errors.DatabaseError("failed to retrieve assets", err)
	}

	s.logger.Printf("Retrieved %d assets (offset %d, limit %d)", len(result.Items), params.Offset, params.Limit)
	return result, nil
}

// GetAssetByID retrieves an asset by its ID
func (s *AssetService) GetAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	asset, err := s.store.Assets().GetAssetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrAssetNotFound) {
			return nil, errors.NotFoundError("asset")
		}
		return nil, errors.DatabaseError("failed to retrieve asset", err)
	}
	return asset, nil
}

// UpdateAsset replaces the descriptive fields of an asset
func (s *AssetService) UpdateAsset(ctx context.Context, id uuid.UUID, updates model.Asset) (*model.Asset, error) {
	if problems := validation.ValidateAssetInput(&updates); len(problems) > 0 {
		return nil, errors.ValidationErrorWithDetails("invalid asset", detailMap(problems))
	}

	if err := s.store.Assets().UpdateAssetDetails(ctx, id, updates); err != nil {
		switch {
		case stderrors.Is(err, repository.ErrAssetNotFound):
			return nil, errors.NotFoundError("asset")
		case stderrors.Is(err, repository.ErrDuplicateSerial):
			return nil, errors.ConflictError("asset with this serial number already exists")
		}
		return nil, errors.DatabaseError("failed to update asset", err)
	}

	s.logger.Printf("Asset updated successfully: ID=%s", id)

	return s.GetAssetByID(ctx, id)
}

// DeleteAsset removes an asset that has never been allocated. Allocations
// are kept forever, so an asset with allocation history stays.
func (s *AssetService) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx repository.Store) error {
		asset, err := tx.Assets().LockAssetByID(ctx, id)
		if err != nil {
			if stderrors.Is(err, repository.ErrAssetNotFound) {
				return errors.NotFoundError("asset")
			}
			return errors.DatabaseError("failed to retrieve asset for deletion", err)
		}
		if !asset.Available || asset.AllocationID.Valid {
			return errors.InvalidStateError("asset", "allocated", "delete")
		}

		if err := tx.Assets().DeleteAsset(ctx, id); err != nil {
			return errors.DatabaseError("failed to delete asset", err)
		}

		s.logger.Printf("Asset deleted successfully: ID=%s", id)
		return nil
	})
}
