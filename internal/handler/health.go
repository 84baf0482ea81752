package handler

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler reports service health. A failing database ping turns
// the response into a 503.
func NewHealthHandler(db Pinger, logger *log.Logger) http.HandlerFunc {
	b := newBase(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := b.ResponseHelper.CreateRequestContext(r, 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		checks := map[string]string{}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				b.Logger.Printf("Health check database ping failed: %v", err)
				checks["database"] = "unreachable"
				status, code = "degraded", http.StatusServiceUnavailable
			} else {
				checks["database"] = "ok"
			}
		}

		b.ErrorHandler.SendSuccessResponse(w, code, "Service is "+status, b.ResponseHelper.CreateHealthCheckData(status, checks))
	}
}
