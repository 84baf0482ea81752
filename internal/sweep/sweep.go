// Package sweep completes approved allocations whose end time has passed.
package sweep

import (
	"asset-management-api/internal/model"
	apperrors "asset-management-api/pkg/errors"
	"asset-management-api/pkg/validation"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInterval is how often the sweep runs when no interval is configured.
const DefaultInterval = 10 * time.Minute

// ExpiringLister returns approved allocations that carry an end time.
type ExpiringLister interface {
	GetExpiringAllocations(ctx context.Context) ([]model.Allocation, error)
}

// Completer moves an approved allocation to completed and frees its asset.
type Completer interface {
	CompleteAllocation(ctx context.Context, id uuid.UUID, at time.Time) (*model.Allocation, error)
}

// Report summarises one sweep run.
type Report struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	NotDue    int `json:"not_due"`
	// Skipped counts unparseable end times and allocations that changed
	// status while the sweep ran.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweeper runs the expiry sweep on a fixed interval.
type Sweeper struct {
	lister    ExpiringLister
	completer Completer
	interval  time.Duration
	logger    *log.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a sweeper. A non-positive interval falls back to
// DefaultInterval.
func New(lister ExpiringLister, completer Completer, interval time.Duration, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		lister:    lister,
		completer: completer,
		interval:  interval,
		logger:    logger,
		tracer:    otel.Tracer("asset-management-api/sweep"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a sweep immediately and then once per interval until ctx is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Printf("Expiry sweep started (interval %s)", s.interval)

	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("Expiry sweep stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Printf("Expiry sweep failed: %v", err)
		return
	}
	if report.Completed > 0 || report.Failed > 0 || report.Skipped > 0 {
		s.logger.Printf("Expiry sweep: scanned=%d completed=%d not_due=%d skipped=%d failed=%d",
			report.Scanned, report.Completed, report.NotDue, report.Skipped, report.Failed)
	}
}

// RunOnce performs a single sweep. Only a failure to list allocations is
// returned; problems with individual allocations are logged and counted.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "sweep.run")
	defer span.End()

	var report Report
	now := s.now()

	allocations, err := s.lister.GetExpiringAllocations(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("failed to list expiring allocations: %w", err)
	}

	for _, a := range allocations {
		if ctx.Err() != nil {
			break
		}
		report.Scanned++

		end, err := validation.ParseLooseDate(a.EndTime)
		if err != nil {
			s.logger.Printf("Skipping allocation %s: unparseable end time %q", a.ID, a.EndTime)
			report.Skipped++
			continue
		}
		if end.After(now) {
			report.NotDue++
			continue
		}

		if _, err := s.completer.CompleteAllocation(ctx, a.ID, now); err != nil {
			if apperrors.HasCode(err, apperrors.ErrorCodeInvalidState) || apperrors.HasCode(err, apperrors.ErrorCodeNotFound) {
				s.logger.Printf("Skipping allocation %s: %v", a.ID, err)
				report.Skipped++
				continue
			}
			s.logger.Printf("Failed to complete allocation %s: %v", a.ID, err)
			report.Failed++
			continue
		}
		report.Completed++
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", report.Scanned),
		attribute.Int("sweep.completed", report.Completed),
		attribute.Int("sweep.skipped", report.Skipped),
		attribute.Int("sweep.failed", report.Failed),
	)
	return report, nil
}
