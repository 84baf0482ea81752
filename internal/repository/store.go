package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// Custom errors shared by every repository
var (
	ErrAssetNotFound           = errors.New("asset not found")
	ErrDuplicateSerial         = errors.New("asset with this serial number already exists")
	ErrAllocationNotFound      = errors.New("allocation not found")
	ErrStatusConflict          = errors.New("allocation status changed concurrently")
	ErrVersionConflict         = errors.New("allocation was modified concurrently")
	ErrUserNotFound            = errors.New("user not found")
	ErrDuplicateEmail          = errors.New("user with this email already exists")
	ErrSubscriptionNotFound    = errors.New("push subscription not found")
	ErrSubscriptionTaken       = errors.New("push subscription belongs to another user")
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrPurchaseAlreadyApproved = errors.New("purchase already approved")
)

// PaginationParams holds pagination parameters for repository queries
type PaginationParams struct {
	Offset int
	Limit  int
}

// Page holds one page of query results together with the unpaginated total
type Page[T any] struct {
	Items      []T
	TotalCount int
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store groups the repositories and owns transaction boundaries.
type Store interface {
	Assets() AssetRepository
	Allocations() AllocationRepository
	Users() UserRepository
	Purchases() PurchaseRepository

	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a Store that is already transactional joins the
	// outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Savepoint runs fn inside a named savepoint. When fn fails only the
	// work done since the savepoint is discarded and fn's error is returned.
	// Outside a transaction fn runs directly.
	Savepoint(ctx context.Context, name string, fn func(Store) error) error
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type postgresStore struct {
	db *sql.DB
	tx *sql.Tx
	q  DBTX
}

// NewStore creates a PostgreSQL backed Store.
func NewStore(db *sql.DB) Store {
	return &postgresStore{db: db, q: db}
}

func (s *postgresStore) Assets() AssetRepository           { return &assetRepository{DB: s.q} }
func (s *postgresStore) Allocations() AllocationRepository { return &allocationRepository{DB: s.q} }
func (s *postgresStore) Users() UserRepository             { return &userRepository{DB: s.q} }
func (s *postgresStore) Purchases() PurchaseRepository     { return &purchaseRepository{DB: s.q} }

func (s *postgresStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(&postgresStore{db: s.db, tx: tx, q: tx})
}

func (s *postgresStore) Savepoint(ctx context.Context, name string, fn func(Store) error) error {
	if s.tx == nil {
		return fn(s)
	}
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}

	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(s); err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint %s failed: %v)", err, name, rbErr)
		}
		return err
	}

	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// isUniqueViolation checks for PostgreSQL error code 23505
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
