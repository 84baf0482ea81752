package handler

import (
	"asset-management-api/internal/model"
	"log"
	"net/http"
)

// pushSubscriptionRequest mirrors the browser PushSubscription JSON
type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// KeyProvider exposes the VAPID public key browsers subscribe with
type KeyProvider interface {
	PublicKey() string
}

// UserHandler handles the caller's own push subscriptions.
type UserHandler struct {
	base
	Service SubscriptionManager
	Keys    KeyProvider
}

// NewUserHandler creates a new UserHandler with dependencies and helpers
func NewUserHandler(svc SubscriptionManager, keys KeyProvider, logger *log.Logger) *UserHandler {
	return &UserHandler{base: newBase(logger), Service: svc, Keys: keys}
}

// SavePushSubscriptionHandler registers a browser push subscription for the
// caller.
func (h *UserHandler) SavePushSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req pushSubscriptionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.Service.SavePushSubscription(ctx, actor, model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "save push subscription")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Push subscription saved", saved)
}

// DeletePushSubscriptionHandler removes one of the caller's subscriptions.
// The endpoint comes from the body or the endpoint query parameter.
func (h *UserHandler) DeletePushSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req pushSubscriptionRequest
	if !h.decodeOptionalJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		req.Endpoint = r.URL.Query().Get("endpoint")
	}

	if err := h.Service.DeletePushSubscription(ctx, actor, req.Endpoint); err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "delete push subscription")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Push subscription removed", nil)
}

// VAPIDPublicKeyHandler returns the key browsers need to subscribe. An empty
// key means push is disabled on this server.
func (h *UserHandler) VAPIDPublicKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := ""
	if h.Keys != nil {
		key = h.Keys.PublicKey()
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"public_key": key,
		"enabled":    key != "",
	})
}
