package recipient

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/notification"
	"asset-management-api/internal/repository/repotest"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, ttl time.Duration) (*Resolver, *repotest.Store) {
	t.Helper()
	store := repotest.New()
	store.SeedUser(model.User{
		ID:    aliceID,
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  model.RoleAdmin,
		PushSubscriptions: []model.PushSubscription{
			{Endpoint: "https://push.example.com/alice-laptop"},
			{Endpoint: "https://push.example.com/alice-phone"},
		},
	})
	store.SeedUser(model.User{
		ID:    bobID,
		Name:  "Bob",
		Email: "bob@example.com",
		Role:  model.RoleMember,
	})
	return NewResolver(store.Users(), ttl, log.New(io.Discard, "", 0)), store
}

func TestResolver_ResolveContactEndpoints(t *testing.T) {
	resolver, _ := newTestResolver(t, 0)

	contacts := resolver.ResolveContactEndpoints(context.Background(), []uuid.UUID{bobID, aliceID, uuid.New()})

	require.Len(t, contacts.PushSubscriptions, 2)
	assert.Equal(t, "https://push.example.com/alice-laptop", contacts.PushSubscriptions[0].Endpoint)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, addresses(contacts.Emails))
}

func TestResolver_Resolve_MixedReferences(t *testing.T) {
	resolver, _ := newTestResolver(t, 0)

	first := resolver.Resolve(context.Background(),
		Raw(`{ _id: '`+bobID.String()+`' }`),
		ID(aliceID.String()),
		Raw("nobody"),
	)
	second := resolver.Resolve(context.Background(),
		Embedded(aliceID.String()),
		FromUUID(bobID),
		ID(aliceID.String()),
	)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, addresses(first.Emails))
}

func TestResolver_ResolveContactEndpoints_EmptyAndFailure(t *testing.T) {
	resolver, store := newTestResolver(t, 0)

	assert.True(t, resolver.ResolveContactEndpoints(context.Background(), nil).Empty())

	store.FailOn("GetUsersByIDs", errors.New("connection refused"))
	contacts := resolver.ResolveContactEndpoints(context.Background(), []uuid.UUID{aliceID})
	assert.True(t, contacts.Empty())
}

func TestResolver_ResolveRoleGroup_Cached(t *testing.T) {
	resolver, store := newTestResolver(t, 50*time.Millisecond)

	admins := resolver.ResolveRoleGroup(context.Background(), model.RoleAdmin)
	assert.Equal(t, []uuid.UUID{aliceID}, admins)

	store.FailOn("GetUserIDsByRole", errors.New("connection refused"))
	assert.Equal(t, []uuid.UUID{aliceID}, resolver.ResolveRoleGroup(context.Background(), model.RoleAdmin))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, resolver.ResolveRoleGroup(context.Background(), model.RoleAdmin), "expired groups are looked up again")
}

func TestResolver_ResolveRoleGroup_Uncached(t *testing.T) {
	resolver, store := newTestResolver(t, 0)

	assert.Equal(t, []uuid.UUID{bobID}, resolver.ResolveRoleGroup(context.Background(), model.RoleMember))

	store.SeedUser(model.User{ID: aliceID, Email: "alice@example.com", Role: model.RoleMember})
	assert.Len(t, resolver.ResolveRoleGroup(context.Background(), model.RoleMember), 2)
}

func addresses(emails []notification.EmailRecipient) []string {
	out := make([]string, len(emails))
	for i, e := range emails {
		out[i] = e.Address
	}
	return out
}
