package service

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/repository"
	"asset-management-api/pkg/errors"
	"asset-management-api/pkg/validation"
	"context"
	"encoding/base64"
	stderrors "errors"
	"log"
	"strings"
)

// UserService manages the caller's own push subscriptions
type UserService struct {
	store  repository.Store
	logger *log.Logger
}

// NewUserService creates a new user service
func NewUserService(store repository.Store, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.Default()
	}
	return &UserService{store: store, logger: logger}
}

// SavePushSubscription registers or refreshes a browser subscription for the
// actor. An endpoint registered by another user is a conflict.
func (s *UserService) SavePushSubscription(ctx context.Context, actor Actor, sub model.PushSubscription) (*model.PushSubscription, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if problems := validateSubscription(sub); len(problems) > 0 {
		return nil, errors.ValidationErrorWithDetails("invalid push subscription", detailMap(problems))
	}

	if _, err := s.store.Users().GetUserByID(ctx, actor.ID); err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.NotFoundError("user")
		}
		return nil, errors.DatabaseError("failed to retrieve user", err)
	}

	sub.UserID = actor.ID
	if err := s.store.Users().SavePushSubscription(ctx, sub); err != nil {
		if stderrors.Is(err, repository.ErrSubscriptionTaken) {
			return nil, errors.ConflictError("push endpoint is registered to another user")
		}
		return nil, errors.DatabaseError("failed to save push subscription", err)
	}

	s.logger.Printf("Push subscription saved for user %s", actor.ID)
	return &sub, nil
}

// DeletePushSubscription removes one of the actor's subscriptions
func (s *UserService) DeletePushSubscription(ctx context.Context, actor Actor, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.ValidationError("endpoint is required")
	}

	if err := s.store.Users().DeletePushSubscription(ctx, actor.ID, endpoint); err != nil {
		if stderrors.Is(err, repository.ErrSubscriptionNotFound) {
			return errors.NotFoundError("push subscription")
		}
		return errors.DatabaseError("failed to delete push subscription", err)
	}

	s.logger.Printf("Push subscription removed for user %s", actor.ID)
	return nil
}

func validateSubscription(sub model.PushSubscription) []string {
	var problems []string

	if err := validation.ValidatePushEndpoint(sub.Endpoint); err != nil {
		problems = append(problems, err.Error())
	}
	if !isBase64URL(sub.P256DH) {
		problems = append(problems, "p256dh key is required and must be base64url encoded")
	}
	if !isBase64URL(sub.Auth) {
		problems = append(problems, "auth secret is required and must be base64url encoded")
	}

	return problems
}

func isBase64URL(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	return err == nil
}
