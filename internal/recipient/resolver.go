package recipient

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/notification"
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// UserLookup is the part of the user store the resolver reads.
type UserLookup interface {
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	GetUserIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error)
}

// Resolver maps identities to contact endpoints and role groups. Lookup
// failures are logged and produce empty results; no method returns an error.
type Resolver struct {
	users  UserLookup
	roles  *cache.Cache
	logger *log.Logger
}

// NewResolver creates a resolver. Role groups are cached for roleTTL; a
// non-positive TTL disables caching.
func NewResolver(users UserLookup, roleTTL time.Duration, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	r := &Resolver{users: users, logger: logger}
	if roleTTL > 0 {
		r.roles = cache.New(roleTTL, 2*roleTTL)
	}
	return r
}

// Resolve normalizes refs and looks up their contacts in one step.
func (r *Resolver) Resolve(ctx context.Context, refs ...Reference) notification.Contacts {
	return r.ResolveContactEndpoints(ctx, NormalizeIdentities(refs...))
}

// ResolveContactEndpoints collects the push subscriptions and email
// addresses of the given users. Unknown users contribute nothing.
func (r *Resolver) ResolveContactEndpoints(ctx context.Context, ids []uuid.UUID) notification.Contacts {
	if len(ids) == 0 {
		return notification.Contacts{}
	}

	users, err := r.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		r.logger.Printf("Failed to look up %d notification recipients: %v", len(ids), err)
		return notification.Contacts{}
	}

	sets := make([]notification.Contacts, 0, len(users))
	for _, u := range users {
		c := notification.Contacts{PushSubscriptions: u.PushSubscriptions}
		if u.Email != "" {
			c.Emails = []notification.EmailRecipient{{Address: u.Email, Name: u.Name}}
		}
		sets = append(sets, c)
	}
	return notification.Merge(sets...)
}

// ResolveRoleGroup returns every user holding role.
func (r *Resolver) ResolveRoleGroup(ctx context.Context, role model.Role) []uuid.UUID {
	key := string(role)
	if r.roles != nil {
		if cached, ok := r.roles.Get(key); ok {
			return append([]uuid.UUID(nil), cached.([]uuid.UUID)...)
		}
	}

	ids, err := r.users.GetUserIDsByRole(ctx, role)
	if err != nil {
		r.logger.Printf("Failed to resolve role group %s: %v", role, err)
		return nil
	}

	if r.roles != nil {
		r.roles.Set(key, append([]uuid.UUID(nil), ids...), cache.DefaultExpiration)
	}
	return ids
}
