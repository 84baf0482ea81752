package repository

import (
	"asset-management-api/internal/model"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssetRepository is an interface for interacting with asset data.
type AssetRepository interface {
	CreateAsset(ctx context.Context, asset model.Asset) error
	GetAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	// LockAssetByID reads the asset with a row lock held until the
	// surrounding transaction ends.
	LockAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	GetAllAssetsPaginated(ctx context.Context, params PaginationParams) (*Page[model.Asset], error)
	UpdateAssetDetails(ctx context.Context, id uuid.UUID, asset model.Asset) error
	DeleteAsset(ctx context.Context, id uuid.UUID) error

	SetAllocationRef(ctx context.Context, assetID, allocationID uuid.UUID) error
	MarkAllocated(ctx context.Context, assetID, allocationID uuid.UUID, newOwner uuid.NullUUID) error
	MarkAvailable(ctx context.Context, assetID, releasedAllocationID uuid.UUID) (bool, error)
}

type assetRepository struct {
	DB DBTX
}

const assetColumns = `id, name, model, serial_number, description, state, purchaser_id, owner_id, available, allocation_id, created_at, updated_at`

func scanAsset(row rowScanner) (*model.Asset, error) {
	var a model.Asset
	if err := row.Scan(&a.ID, &a.Name, &a.Model, &a.SerialNumber, &a.Description, &a.State,
		&a.PurchaserID, &a.OwnerID, &a.Available, &a.AllocationID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAsset adds a new asset to the database. New assets are always available.
func (r *assetRepository) CreateAsset(ctx context.Context, asset model.Asset) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO assets (id, name, model, serial_number, description, state, purchaser_id, owner_id, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)`

	_, err := r.DB.ExecContext(ctx, query,
		asset.ID,
		asset.Name,
		asset.Model,
		asset.SerialNumber,
		asset.Description,
		asset.State,
		asset.PurchaserID,
		asset.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSerial, asset.SerialNumber)
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetAssetByID retrieves a single asset by its ID.
func (r *assetRepository) GetAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	return r.getAsset(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
}

func (r *assetRepository) LockAssetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	return r.getAsset(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1 FOR UPDATE`, id)
}

func (r *assetRepository) getAsset(ctx context.Context, query string, id uuid.UUID) (*model.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	a, err := scanAsset(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset by ID: %w", err)
	}
	return a, nil
}

// GetAllAssetsPaginated retrieves all assets with pagination support.
func (r *assetRepository) GetAllAssetsPaginated(ctx context.Context, params PaginationParams) (*Page[model.Asset], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `SELECT ` + assetColumns + ` FROM assets ORDER BY name, serial_number OFFSET $1 LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []model.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var totalCount int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of assets: %w", err)
	}

	return &Page[model.Asset]{Items: assets, TotalCount: totalCount}, nil
}

// UpdateAssetDetails updates the descriptive fields of an asset. Owner,
// availability and the allocation reference are left untouched.
func (r *assetRepository) UpdateAssetDetails(ctx context.Context, id uuid.UUID, asset model.Asset) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE assets
		SET name = $1, model = $2, serial_number = $3, description = $4, state = $5, purchaser_id = $6, updated_at = NOW()
		WHERE id = $7`

	result, err := r.DB.ExecContext(ctx, query,
		asset.Name,
		asset.Model,
		asset.SerialNumber,
		asset.Description,
		asset.State,
		asset.PurchaserID,
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSerial, asset.SerialNumber)
		}
		return fmt.Errorf("failed to update asset: %w", err)
	}

	return expectOneRow(result, ErrAssetNotFound)
}

// DeleteAsset deletes an asset from the database.
func (r *assetRepository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	return expectOneRow(result, ErrAssetNotFound)
}

// SetAllocationRef points the asset at a newly created allocation.
func (r *assetRepository) SetAllocationRef(ctx context.Context, assetID, allocationID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE assets SET allocation_id = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.DB.ExecContext(ctx, query, allocationID, assetID)
	if err != nil {
		return fmt.Errorf("failed to set asset allocation reference: %w", err)
	}

	return expectOneRow(result, ErrAssetNotFound)
}

// MarkAllocated takes the asset out of the pool for an approved allocation.
// A valid newOwner replaces the current owner.
func (r *assetRepository) MarkAllocated(ctx context.Context, assetID, allocationID uuid.UUID, newOwner uuid.NullUUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE assets
		SET available = FALSE, allocation_id = $1, owner_id = COALESCE($2, owner_id), updated_at = NOW()
		WHERE id = $3`

	result, err := r.DB.ExecContext(ctx, query, allocationID, newOwner, assetID)
	if err != nil {
		return fmt.Errorf("failed to mark asset allocated: %w", err)
	}

	return expectOneRow(result, ErrAssetNotFound)
}

// MarkAvailable returns the asset to the pool after releasedAllocationID was
// rejected or completed. The asset stays unavailable while any other approved
// allocation still holds it; in that case false is returned.
func (r *assetRepository) MarkAvailable(ctx context.Context, assetID, releasedAllocationID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE assets
		SET available = TRUE, updated_at = NOW()
		WHERE id = $1
		AND NOT EXISTS (
			SELECT 1 FROM allocations
			WHERE asset_id = $1 AND status = 'approved' AND id <> $2
		)`

	result, err := r.DB.ExecContext(ctx, query, assetID, releasedAllocationID)
	if err != nil {
		return false, fmt.Errorf("failed to mark asset available: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM assets WHERE id = $1)`, assetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check asset existence: %w", err)
	}
	if !exists {
		return false, ErrAssetNotFound
	}
	return false, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
