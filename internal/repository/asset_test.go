package repository

import (
	"asset-management-api/internal/model"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock, Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewStore(db)
}

var assetRowColumns = []string{"id", "name", "model", "serial_number", "description", "state", "purchaser_id", "owner_id", "available", "allocation_id", "created_at", "updated_at"}

func assetRow(a model.Asset) *sqlmock.Rows {
	return sqlmock.NewRows(assetRowColumns).
		AddRow(a.ID, a.Name, a.Model, a.SerialNumber, a.Description, a.State, a.PurchaserID, a.OwnerID, a.Available, a.AllocationID, a.CreatedAt, a.UpdatedAt)
}

func TestNewStore(t *testing.T) {
	db, _, store := setupTestDB(t)
	defer db.Close()

	assert.NotNil(t, store)
	assert.NotNil(t, store.Assets())
	assert.NotNil(t, store.Allocations())
	assert.NotNil(t, store.Users())
	assert.NotNil(t, store.Purchases())
}

func TestCreateAsset_Success(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	asset := model.Asset{
		ID:           uuid.New(),
		Name:         "ThinkPad X1",
		Model:        "Gen 11",
		SerialNumber: "PF-4K2L9",
		State:        model.AssetStateInStock,
		PurchaserID:  uuid.NullUUID{UUID: uuid.New(), Valid: true},
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assets (id, name, model, serial_number, description, state, purchaser_id, owner_id, available) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)`)).
		WithArgs(asset.ID, asset.Name, asset.Model, asset.SerialNumber, asset.Description, asset.State, asset.PurchaserID, asset.OwnerID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Assets().CreateAsset(context.Background(), asset)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAsset_DuplicateSerial(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	asset := model.Asset{ID: uuid.New(), Name: "Dock", SerialNumber: "DK-1", State: model.AssetStateInStock}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assets`)).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "assets_serial_number_key"`})

	err := store.Assets().CreateAsset(context.Background(), asset)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSerial))
}

func TestCreateAsset_DuplicateSerialPlainError(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assets`)).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "assets_serial_number_key"`))

	err := store.Assets().CreateAsset(context.Background(), model.Asset{ID: uuid.New(), SerialNumber: "DK-1"})

	assert.True(t, errors.Is(err, ErrDuplicateSerial))
}

func TestGetAssetByID_Success(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	now := time.Now()
	expected := model.Asset{
		ID:           uuid.New(),
		Name:         "Monitor",
		Model:        "U2723QE",
		SerialNumber: "CN-0ABC",
		State:        model.AssetStateWorking,
		OwnerID:      uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Available:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+assetColumns+` FROM assets WHERE id = $1`)).
		WithArgs(expected.ID).
		WillReturnRows(assetRow(expected))

	asset, err := store.Assets().GetAssetByID(context.Background(), expected.ID)

	require.NoError(t, err)
	assert.Equal(t, expected.ID, asset.ID)
	assert.Equal(t, expected.OwnerID, asset.OwnerID)
	assert.False(t, asset.AllocationID.Valid)
	assert.Equal(t, model.AssetStateWorking, asset.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAssetByID_NotFound(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM assets WHERE id = $1`)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	asset, err := store.Assets().GetAssetByID(context.Background(), id)

	assert.True(t, errors.Is(err, ErrAssetNotFound))
	assert.Nil(t, asset)
}

func TestLockAssetByID_UsesRowLock(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	expected := model.Asset{ID: uuid.New(), Name: "Phone", SerialNumber: "IMEI-1", State: model.AssetStateWorking, Available: true}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM assets WHERE id = $1 FOR UPDATE`)).
		WithArgs(expected.ID).
		WillReturnRows(assetRow(expected))

	asset, err := store.Assets().LockAssetByID(context.Background(), expected.ID)

	require.NoError(t, err)
	assert.Equal(t, expected.ID, asset.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllAssetsPaginated_Success(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(assetRowColumns)
	for i := 0; i < 2; i++ {
		a := model.Asset{ID: uuid.New(), Name: "Laptop", SerialNumber: uuid.NewString(), State: model.AssetStateInStock, Available: true}
		rows.AddRow(a.ID, a.Name, a.Model, a.SerialNumber, a.Description, a.State, a.PurchaserID, a.OwnerID, a.Available, a.AllocationID, a.CreatedAt, a.UpdatedAt)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM assets ORDER BY name, serial_number OFFSET $1 LIMIT $2`)).
		WithArgs(0, 10).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM assets`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	page, err := store.Assets().GetAllAssetsPaginated(context.Background(), PaginationParams{Offset: 0, Limit: 10})

	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 12, page.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssetDetails_NotFound(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assets SET name = $1, model = $2, serial_number = $3, description = $4, state = $5, purchaser_id = $6, updated_at = NOW() WHERE id = $7`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Assets().UpdateAssetDetails(context.Background(), id, model.Asset{Name: "x", SerialNumber: "S1", State: model.AssetStateLost})

	assert.True(t, errors.Is(err, ErrAssetNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAsset_Success(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM assets WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Assets().DeleteAsset(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAllocationRef(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	assetID, allocationID := uuid.New(), uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assets SET allocation_id = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs(allocationID, assetID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Assets().SetAllocationRef(context.Background(), assetID, allocationID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllocated_TransfersOwner(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	assetID, allocationID := uuid.New(), uuid.New()
	owner := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	mock.ExpectExec(regexp.QuoteMeta(`SET available = FALSE, allocation_id = $1, owner_id = COALESCE($2, owner_id), updated_at = NOW() WHERE id = $3`)).
		WithArgs(allocationID, owner, assetID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Assets().MarkAllocated(context.Background(), assetID, allocationID, owner))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAvailable(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		exists       bool
		wantReleased bool
		wantErr      error
	}{
		{name: "released", rowsAffected: 1, wantReleased: true},
		{name: "held by another allocation", rowsAffected: 0, exists: true, wantReleased: false},
		{name: "asset missing", rowsAffected: 0, exists: false, wantErr: ErrAssetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, store := setupTestDB(t)
			defer db.Close()

			assetID, allocationID := uuid.New(), uuid.New()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE assets SET available = TRUE, updated_at = NOW() WHERE id = $1 AND NOT EXISTS`)).
				WithArgs(assetID, allocationID).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			if tt.rowsAffected == 0 {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM assets WHERE id = $1)`)).
					WithArgs(assetID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			released, err := store.Assets().MarkAvailable(context.Background(), assetID, allocationID)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantReleased, released)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestContextTimeout(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM assets WHERE id = $1`)).
		WithArgs(id).
		WillDelayFor(100 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows(assetRowColumns))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	asset, err := store.Assets().GetAssetByID(ctx, id)

	assert.Error(t, err)
	assert.Nil(t, asset)
}
