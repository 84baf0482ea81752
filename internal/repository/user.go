package repository

import (
	"asset-management-api/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UserRepository reads users and manages their push subscriptions.
type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetUsersByIDs returns the users that exist among ids, with their push
	// subscriptions loaded. Unknown ids are skipped.
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	GetUserIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error)

	SavePushSubscription(ctx context.Context, sub model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error
	DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

type userRepository struct {
	DB DBTX
}

func (r *userRepository) CreateUser(ctx context.Context, user model.User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `INSERT INTO users (id, name, email, role) VALUES ($1, $2, $3, $4)`

	if _, err := r.DB.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.Role); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	users, err := r.GetUsersByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

func (r *userRepository) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	idArray := pq.Array(uuidStrings(ids))

	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		WHERE id = ANY($1::uuid[])
		ORDER BY id`

	rows, err := r.DB.QueryContext(ctx, query, idArray)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		index[u.ID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(users) == 0 {
		return users, nil
	}

	subQuery := `
		SELECT endpoint, user_id, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = ANY($1::uuid[])
		ORDER BY endpoint`

	subRows, err := r.DB.QueryContext(ctx, subQuery, idArray)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		var s model.PushSubscription
		if err := subRows.Scan(&s.Endpoint, &s.UserID, &s.P256DH, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		if i, ok := index[s.UserID]; ok {
			users[i].PushSubscriptions = append(users[i].PushSubscriptions, s)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

func (r *userRepository) GetUserIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY id`, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by role: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// SavePushSubscription registers a subscription for its user. Re-registering
// one's own endpoint refreshes its keys; an endpoint held by another user is
// left untouched and ErrSubscriptionTaken is returned.
func (r *userRepository) SavePushSubscription(ctx context.Context, sub model.PushSubscription) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO push_subscriptions (endpoint, user_id, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE
		SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		WHERE push_subscriptions.user_id = EXCLUDED.user_id`

	result, err := r.DB.ExecContext(ctx, query, sub.Endpoint, sub.UserID, sub.P256DH, sub.Auth)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return expectOneRow(result, ErrSubscriptionTaken)
}

func (r *userRepository) DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return expectOneRow(result, ErrSubscriptionNotFound)
}

// DeletePushSubscriptionByEndpoint prunes a subscription the push service
// reported as gone. Deleting an unknown endpoint is not an error.
func (r *userRepository) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint); err != nil {
		return fmt.Errorf("failed to prune push subscription: %w", err)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
