package service

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"asset-management-api/internal/repository/repotest"
	apperrors "asset-management-api/pkg/errors"
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purchaseFixture struct {
	store    *repotest.Store
	service  *PurchaseService
	notifier *recordingNotifier
	member   Actor
	admin    Actor
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()
	f := &purchaseFixture{
		store:    repotest.New(),
		notifier: &recordingNotifier{},
		member:   Actor{ID: uuid.New(), Role: model.RoleMember},
		admin:    Actor{ID: uuid.New(), Role: model.RoleAdmin},
	}
	f.store.SeedUser(model.User{ID: f.member.ID, Name: "Mia", Email: "mia@example.com", Role: model.RoleMember})
	f.store.SeedUser(model.User{ID: f.admin.ID, Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin})
	f.service = NewPurchaseService(f.store, f.notifier, log.New(io.Discard, "", 0))
	return f
}

func TestCreatePurchase(t *testing.T) {
	f := newPurchaseFixture(t)

	created, err := f.service.CreatePurchase(context.Background(), f.member, model.Purchase{
		AssetDescription: "USB-C dock",
		RequiredBy:       uuid.NullUUID{UUID: f.admin.ID, Valid: true},
		Approved:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, f.member.ID, created.RequestedBy)
	assert.Equal(t, 1, created.Quantity)
	assert.False(t, created.Approved, "requests always start unapproved")

	require.Len(t, f.notifier.purchases, 1)
	assert.Equal(t, NotificationTypePurchaseRequested, f.notifier.purchases[0].Type)
	assert.Equal(t, f.member.ID, f.notifier.purchases[0].Actor)
}

func TestCreatePurchaseErrors(t *testing.T) {
	tests := []struct {
		name     string
		purchase model.Purchase
		setup    func(*repotest.Store)
		code     apperrors.ErrorCode
	}{
		{
			name:     "missing description",
			purchase: model.Purchase{Quantity: 1},
			code:     apperrors.ErrorCodeValidation,
		},
		{
			name:     "negative quantity",
			purchase: model.Purchase{AssetDescription: "Mouse", Quantity: -3},
			code:     apperrors.ErrorCodeValidation,
		},
		{
			name:     "unknown required-by user",
			purchase: model.Purchase{AssetDescription: "Mouse", RequiredBy: uuid.NullUUID{UUID: uuid.New(), Valid: true}},
			code:     apperrors.ErrorCodeValidation,
		},
		{
			name:     "store failure",
			purchase: model.Purchase{AssetDescription: "Mouse"},
			setup:    func(s *repotest.Store) { s.FailOn("CreatePurchase", errors.New("disk full")) },
			code:     apperrors.ErrorCodeDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPurchaseFixture(t)
			if tt.setup != nil {
				tt.setup(f.store)
			}
			_, err := f.service.CreatePurchase(context.Background(), f.member, tt.purchase)
			assertCode(t, err, tt.code)
			assert.Empty(t, f.notifier.purchases)
		})
	}
}

func TestApprovePurchase(t *testing.T) {
	f := newPurchaseFixture(t)
	created, err := f.service.CreatePurchase(context.Background(), f.member, model.Purchase{AssetDescription: "Monitor", Quantity: 2})
	require.NoError(t, err)

	approved, err := f.service.ApprovePurchase(context.Background(), f.admin, created.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, uuid.NullUUID{UUID: f.admin.ID, Valid: true}, approved.ApprovedBy)

	require.Len(t, f.notifier.purchases, 2)
	assert.Equal(t, NotificationTypePurchaseApproved, f.notifier.purchases[1].Type)

	_, err = f.service.ApprovePurchase(context.Background(), f.admin, created.ID)
	assertCode(t, err, apperrors.ErrorCodeInvalidState)
	assert.Len(t, f.notifier.purchases, 2, "a refused approval sends nothing")

	_, err = f.service.ApprovePurchase(context.Background(), f.admin, uuid.New())
	assertCode(t, err, apperrors.ErrorCodeNotFound)
}

func TestPurchaseServiceWithoutNotifier(t *testing.T) {
	store := repotest.New()
	svc := NewPurchaseService(store, nil, log.New(io.Discard, "", 0))

	created, err := svc.CreatePurchase(context.Background(), Actor{ID: uuid.New(), Role: model.RoleMember}, model.Purchase{AssetDescription: "Cable"})
	require.NoError(t, err)

	page, err := svc.GetAllPurchases(context.Background(), repository.PaginationParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.ID, page.Items[0].ID)
}
