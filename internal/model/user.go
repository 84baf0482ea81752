package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's permission role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePurchaser Role = "purchaser"
	RoleOwner     Role = "owner"
	RoleMember    Role = "member"
)

// Valid reports whether r is a recognised role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePurchaser, RoleOwner, RoleMember:
		return true
	}
	return false
}

// User is an identity the core reads for roles and contact endpoints.
type User struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	Email             string             `json:"email"`
	Role              Role               `json:"role"`
	PushSubscriptions []PushSubscription `json:"-"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// PushSubscription holds a browser push subscription. The endpoint doubles
// as the push token.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	UserID    uuid.UUID `json:"user_id"`
	P256DH    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
