package repository

import (
	"asset-management-api/internal/model"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PurchaseRepository is an interface for interacting with purchase requests.
type PurchaseRepository interface {
	CreatePurchase(ctx context.Context, purchase model.Purchase) error
	GetPurchaseByID(ctx context.Context, id uuid.UUID) (*model.Purchase, error)
	GetAllPurchasesPaginated(ctx context.Context, params PaginationParams) (*Page[model.Purchase], error)
	// ApprovePurchase flips the approval flag once; approving twice returns
	// ErrPurchaseAlreadyApproved.
	ApprovePurchase(ctx context.Context, id, approver uuid.UUID) (*model.Purchase, error)
}

type purchaseRepository struct {
	DB DBTX
}

const purchaseColumns = `id, requested_by, required_by, asset_description, quantity, approved, approved_by, created_at, updated_at`

func scanPurchase(row rowScanner) (*model.Purchase, error) {
	var p model.Purchase
	if err := row.Scan(&p.ID, &p.RequestedBy, &p.RequiredBy, &p.AssetDescription, &p.Quantity,
		&p.Approved, &p.ApprovedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) CreatePurchase(ctx context.Context, purchase model.Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO purchases (id, requested_by, required_by, asset_description, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.DB.ExecContext(ctx, query,
		purchase.ID,
		purchase.RequestedBy,
		purchase.RequiredBy,
		purchase.AssetDescription,
		purchase.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (r *purchaseRepository) GetPurchaseByID(ctx context.Context, id uuid.UUID) (*model.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := scanPurchase(r.DB.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to get purchase by ID: %w", err)
	}
	return p, nil
}

func (r *purchaseRepository) GetAllPurchasesPaginated(ctx context.Context, params PaginationParams) (*Page[model.Purchase], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `SELECT ` + purchaseColumns + ` FROM purchases ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []model.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var totalCount int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchases`).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of purchases: %w", err)
	}

	return &Page[model.Purchase]{Items: purchases, TotalCount: totalCount}, nil
}

func (r *purchaseRepository) ApprovePurchase(ctx context.Context, id, approver uuid.UUID) (*model.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE purchases
		SET approved = TRUE, approved_by = $1, updated_at = NOW()
		WHERE id = $2 AND approved = FALSE
		RETURNING ` + purchaseColumns

	p, err := scanPurchase(r.DB.QueryRowContext(ctx, query, approver, id))
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to approve purchase: %w", err)
	}

	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM purchases WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check purchase existence: %w", err)
	}
	if !exists {
		return nil, ErrPurchaseNotFound
	}
	return nil, ErrPurchaseAlreadyApproved
}
