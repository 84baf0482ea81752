package router

import (
	"asset-management-api/internal/config"
	"asset-management-api/internal/handler"
	"asset-management-api/internal/middleware"
	"asset-management-api/internal/model"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// Roles allowed to decide on allocations and to manage the asset register
var (
	approverRoles    = []model.Role{model.RoleAdmin, model.RoleOwner, model.RolePurchaser}
	assetWriterRoles = []model.Role{model.RoleAdmin, model.RolePurchaser}
)

// NewRouter creates a new router and sets up the routes with security middleware.
func NewRouter(h handler.Handlers, cfg *config.Config, logger *log.Logger) *mux.Router {
	r := mux.NewRouter()

	securityMW := middleware.NewSecurityMiddleware(&cfg.Security)
	loggingMW := middleware.NewLoggingMiddleware(logger)
	authMW := middleware.NewAuthMiddleware(&cfg.Auth, logger)

	// Apply global middleware in order
	r.Use(securityMW.SecurityHeaders)
	r.Use(securityMW.CORS)
	r.Use(securityMW.TrustedProxy)
	r.Use(loggingMW.LogRequests)
	r.Use(loggingMW.Recover)
	r.Use(securityMW.RateLimit)
	r.Use(securityMW.RequestTimeout)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Preflight requests are answered by the CORS middleware
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Health check and the push key are public
	api.HandleFunc("/health", h.Health).Methods("GET")
	api.HandleFunc("/push/vapid-public-key", h.Users.VAPIDPublicKeyHandler).Methods("GET")

	secured := api.NewRoute().Subrouter()
	secured.Use(authMW.Authenticate)

	// Allocations
	secured.HandleFunc("/allocation", h.Allocations.CreateAllocationHandler).Methods("POST")
	secured.HandleFunc("/allocation", h.Allocations.GetAllAllocationsHandler).Methods("GET")
	secured.HandleFunc("/allocation/user/{id}", h.Allocations.GetUserAllocationsHandler).Methods("GET")
	secured.HandleFunc("/allocation/asset/{id}", h.Allocations.GetAssetAllocationsHandler).Methods("GET")
	secured.HandleFunc("/allocation/{id}", h.Allocations.GetAllocationHandler).Methods("GET")
	secured.HandleFunc("/allocation/{id}", h.Allocations.UpdateAllocationHandler).Methods("PUT")
	secured.Handle("/allocation/{id}/approve", restrict(h.Allocations.ApproveAllocationHandler, approverRoles...)).Methods("PUT")
	secured.Handle("/allocation/{id}/reject", restrict(h.Allocations.RejectAllocationHandler, approverRoles...)).Methods("PUT")

	// Assets
	secured.Handle("/asset", restrict(h.Assets.CreateAssetHandler, assetWriterRoles...)).Methods("POST")
	secured.HandleFunc("/asset", h.Assets.GetAllAssetsHandler).Methods("GET")
	secured.HandleFunc("/asset/{id}", h.Assets.GetAssetHandler).Methods("GET")
	secured.Handle("/asset/{id}", restrict(h.Assets.UpdateAssetHandler, assetWriterRoles...)).Methods("PUT")
	secured.Handle("/asset/{id}", restrict(h.Assets.DeleteAssetHandler, assetWriterRoles...)).Methods("DELETE")

	// Purchase requests
	secured.HandleFunc("/purchase", h.Purchases.CreatePurchaseHandler).Methods("POST")
	secured.HandleFunc("/purchase", h.Purchases.GetAllPurchasesHandler).Methods("GET")
	secured.HandleFunc("/purchase/{id}", h.Purchases.GetPurchaseHandler).Methods("GET")
	secured.Handle("/purchase/{id}/approve", restrict(h.Purchases.ApprovePurchaseHandler, model.RoleAdmin)).Methods("PUT")

	// The caller's own push subscriptions
	secured.HandleFunc("/user/me/push-subscription", h.Users.SavePushSubscriptionHandler).Methods("PUT")
	secured.HandleFunc("/user/me/push-subscription", h.Users.DeletePushSubscriptionHandler).Methods("DELETE")

	return r
}

func restrict(fn http.HandlerFunc, roles ...model.Role) http.Handler {
	return middleware.RequireRole(roles...)(fn)
}
