package repository

import (
	"asset-management-api/internal/model"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StatusTransition describes a compare-and-swap on an allocation's status.
type StatusTransition struct {
	ID              uuid.UUID
	From            model.AllocationStatus
	To              model.AllocationStatus
	At              time.Time
	ApprovedBy      uuid.NullUUID
	RejectionReason string
}

// AllocationUpdate carries the fields a generic update may change.
type AllocationUpdate struct {
	Type      model.AllocationType
	Purpose   string
	StartTime string
	EndTime   string
}

// AllocationRepository is an interface for interacting with allocation data.
type AllocationRepository interface {
	CreateAllocation(ctx context.Context, allocation model.Allocation) error
	GetAllocationByID(ctx context.Context, id uuid.UUID) (*model.Allocation, error)
	GetAllAllocationsPaginated(ctx context.Context, params PaginationParams) (*Page[model.Allocation], error)
	GetAllocationsByUserPaginated(ctx context.Context, userID uuid.UUID, params PaginationParams) (*Page[model.Allocation], error)
	GetAllocationsByAssetPaginated(ctx context.Context, assetID uuid.UUID, params PaginationParams) (*Page[model.Allocation], error)
	// GetExpiringAllocations returns approved allocations that carry an end time.
	GetExpiringAllocations(ctx context.Context) ([]model.Allocation, error)
	HasOtherApprovedAllocation(ctx context.Context, assetID, excludeID uuid.UUID) (bool, error)

	// TransitionStatus moves the allocation from t.From to t.To and bumps its
	// version. ErrStatusConflict is returned when the stored status is no
	// longer t.From.
	TransitionStatus(ctx context.Context, t StatusTransition) (*model.Allocation, error)
	// UpdateAllocationDetails applies u when the stored version still equals
	// expectedVersion, otherwise ErrVersionConflict is returned.
	UpdateAllocationDetails(ctx context.Context, id uuid.UUID, expectedVersion int, u AllocationUpdate) (*model.Allocation, error)
}

type allocationRepository struct {
	DB DBTX
}

const allocationColumns = `id, allocated_by, allocated_to, asset_id, allocation_type, status, status_changed_at, approved_by, rejection_reason, start_time, end_time, purpose, version, created_at, updated_at`

func scanAllocation(row rowScanner) (*model.Allocation, error) {
	var a model.Allocation
	if err := row.Scan(&a.ID, &a.AllocatedBy, &a.AllocatedTo, &a.AssetID, &a.Type, &a.Status, &a.StatusChangedAt,
		&a.ApprovedBy, &a.RejectionReason, &a.StartTime, &a.EndTime, &a.Purpose, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAllocation inserts a new allocation in its entry state.
func (r *allocationRepository) CreateAllocation(ctx context.Context, allocation model.Allocation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO allocations (id, allocated_by, allocated_to, asset_id, allocation_type, status, status_changed_at, start_time, end_time, purpose, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.DB.ExecContext(ctx, query,
		allocation.ID,
		allocation.AllocatedBy,
		allocation.AllocatedTo,
		allocation.AssetID,
		allocation.Type,
		allocation.Status,
		allocation.StatusChangedAt,
		allocation.StartTime,
		allocation.EndTime,
		allocation.Purpose,
		allocation.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create allocation: %w", err)
	}

	return nil
}

// GetAllocationByID retrieves a single allocation by its ID.
func (r *allocationRepository) GetAllocationByID(ctx context.Context, id uuid.UUID) (*model.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE id = $1`

	a, err := scanAllocation(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to get allocation by ID: %w", err)
	}
	return a, nil
}

func (r *allocationRepository) GetAllAllocationsPaginated(ctx context.Context, params PaginationParams) (*Page[model.Allocation], error) {
	return r.listPaginated(ctx, "", params)
}

// GetAllocationsByUserPaginated lists allocations the user requested or receives.
func (r *allocationRepository) GetAllocationsByUserPaginated(ctx context.Context, userID uuid.UUID, params PaginationParams) (*Page[model.Allocation], error) {
	return r.listPaginated(ctx, "WHERE allocated_by = $1 OR allocated_to = $1", params, userID)
}

func (r *allocationRepository) GetAllocationsByAssetPaginated(ctx context.Context, assetID uuid.UUID, params PaginationParams) (*Page[model.Allocation], error) {
	return r.listPaginated(ctx, "WHERE asset_id = $1", params, assetID)
}

// listPaginated runs a filtered page query. The filter may use placeholders
// $1..$n for args; offset and limit are appended after them.
func (r *allocationRepository) listPaginated(ctx context.Context, filter string, params PaginationParams, args ...interface{}) (*Page[model.Allocation], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM allocations %s ORDER BY created_at DESC, id OFFSET $%d LIMIT $%d`,
		allocationColumns, filter, n+1, n+2)

	rows, err := r.DB.QueryContext(ctx, query, append(args, params.Offset, params.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	allocations, err := collectAllocations(rows)
	if err != nil {
		return nil, err
	}

	var totalCount int
	countQuery := `SELECT COUNT(*) FROM allocations ` + filter
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of allocations: %w", err)
	}

	return &Page[model.Allocation]{Items: allocations, TotalCount: totalCount}, nil
}

func (r *allocationRepository) GetExpiringAllocations(ctx context.Context) ([]model.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE status = $1 AND end_time <> '' ORDER BY created_at`

	rows, err := r.DB.QueryContext(ctx, query, model.AllocationApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring allocations: %w", err)
	}
	defer rows.Close()

	return collectAllocations(rows)
}

func (r *allocationRepository) HasOtherApprovedAllocation(ctx context.Context, assetID, excludeID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT EXISTS(SELECT 1 FROM allocations WHERE asset_id = $1 AND status = $2 AND id <> $3)`

	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, assetID, model.AllocationApproved, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check approved allocations: %w", err)
	}
	return exists, nil
}

func (r *allocationRepository) TransitionStatus(ctx context.Context, t StatusTransition) (*model.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE allocations
		SET status = $1, status_changed_at = $2, updated_at = $2,
			approved_by = COALESCE($3, approved_by),
			rejection_reason = COALESCE(NULLIF($4, ''), rejection_reason),
			version = version + 1
		WHERE id = $5 AND status = $6
		RETURNING ` + allocationColumns

	a, err := scanAllocation(r.DB.QueryRowContext(ctx, query, t.To, t.At, t.ApprovedBy, t.RejectionReason, t.ID, t.From))
	if err == nil {
		return a, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to transition allocation: %w", err)
	}

	if err := r.checkExists(ctx, t.ID); err != nil {
		return nil, err
	}
	return nil, ErrStatusConflict
}

func (r *allocationRepository) UpdateAllocationDetails(ctx context.Context, id uuid.UUID, expectedVersion int, u AllocationUpdate) (*model.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE allocations
		SET allocation_type = $1, purpose = $2, start_time = $3, end_time = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
		RETURNING ` + allocationColumns

	a, err := scanAllocation(r.DB.QueryRowContext(ctx, query, u.Type, u.Purpose, u.StartTime, u.EndTime, id, expectedVersion))
	if err == nil {
		return a, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update allocation: %w", err)
	}

	if err := r.checkExists(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrVersionConflict
}

func (r *allocationRepository) checkExists(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM allocations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check allocation existence: %w", err)
	}
	if !exists {
		return ErrAllocationNotFound
	}
	return nil
}

func collectAllocations(rows *sql.Rows) ([]model.Allocation, error) {
	allocations := []model.Allocation{}
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return allocations, nil
}
