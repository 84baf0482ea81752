package notification

import (
	"asset-management-api/internal/model"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EmailFailure records a recipient that could not be reached.
type EmailFailure struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

// EmailReport aggregates a batch email send.
type EmailReport struct {
	SentCount   int            `json:"sent_count"`
	FailedCount int            `json:"failed_count"`
	Failures    []EmailFailure `json:"failures,omitempty"`
}

// Err summarises failures, or returns nil when every email was sent.
func (r EmailReport) Err() error {
	if r.FailedCount == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d emails failed, first to %s: %s",
		r.FailedCount, r.FailedCount+r.SentCount, r.Failures[0].Address, r.Failures[0].Error)
}

// Report is the combined outcome of a Deliver call.
type Report struct {
	Push  PushReport  `json:"push"`
	Email EmailReport `json:"email"`
}

// Err joins the channel errors. It is informational only.
func (r Report) Err() error {
	return errors.Join(r.Push.Err(), r.Email.Err())
}

// Add folds other into r, for callers that deliver several messages.
func (r Report) Add(other Report) Report {
	r.Push.SuccessCount += other.Push.SuccessCount
	r.Push.FailureCount += other.Push.FailureCount
	r.Push.Results = append(r.Push.Results, other.Push.Results...)
	r.Email.SentCount += other.Email.SentCount
	r.Email.FailedCount += other.Email.FailedCount
	r.Email.Failures = append(r.Email.Failures, other.Email.Failures...)
	return r
}

// SubscriptionPruner removes push subscriptions reported as expired.
type SubscriptionPruner interface {
	DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// Dispatcher fans messages out over push and email. None of its methods
// return errors; outcomes are reported per recipient.
type Dispatcher struct {
	push        PushSender
	mailer      Mailer
	pruner      SubscriptionPruner
	concurrency int
	logger      *log.Logger
}

// NewDispatcher creates a dispatcher. pruner may be nil, in which case
// expired subscriptions are only logged.
func NewDispatcher(push PushSender, mailer Mailer, pruner SubscriptionPruner, concurrency int, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		push:        push,
		mailer:      mailer,
		pruner:      pruner,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SendPush delivers to every subscription and prunes expired ones. An empty
// set returns a zero report without touching the network.
func (d *Dispatcher) SendPush(ctx context.Context, subs []model.PushSubscription, title, body string, data map[string]string) PushReport {
	if len(subs) == 0 {
		return PushReport{}
	}
	if d.push == nil {
		report := PushReport{FailureCount: len(subs)}
		for _, sub := range subs {
			report.Results = append(report.Results, PushResult{Endpoint: sub.Endpoint, Error: ErrPushDisabled.Error()})
		}
		return report
	}

	report := d.push.SendPush(ctx, subs, title, body, data)

	for _, endpoint := range report.Expired() {
		if d.pruner == nil {
			d.logger.Printf("Push subscription %s expired", endpoint)
			continue
		}
		// pruning outlives the request deadline
		if err := d.pruner.DeletePushSubscriptionByEndpoint(context.WithoutCancel(ctx), endpoint); err != nil {
			d.logger.Printf("Failed to prune expired push subscription %s: %v", endpoint, err)
		} else {
			d.logger.Printf("Pruned expired push subscription %s", endpoint)
		}
	}

	return report
}

// SendEmailBatch sends one email per recipient concurrently, waits for every
// attempt and aggregates the outcome. One failure never cancels the others.
func (d *Dispatcher) SendEmailBatch(ctx context.Context, recipients []EmailRecipient, subject, body string) EmailReport {
	report := EmailReport{}
	if len(recipients) == 0 {
		return report
	}

	var mu sync.Mutex
	record := func(addr string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.FailedCount++
			report.Failures = append(report.Failures, EmailFailure{Address: addr, Error: err.Error()})
			return
		}
		report.SentCount++
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			if d.mailer == nil {
				record(r.Address, ErrEmailDisabled)
				return nil
			}
			record(r.Address, d.mailer.SendEmail(ctx, r, subject, body))
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Address < report.Failures[j].Address
	})
	return report
}

// Deliver sends msg to every contact over both channels.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message, to Contacts) Report {
	if err := msg.Validate(); err != nil {
		d.logger.Printf("Dropping invalid notification %q: %v", msg.Title, err)
		return Report{
			Push:  PushReport{FailureCount: len(to.PushSubscriptions)},
			Email: EmailReport{FailedCount: len(to.Emails), Failures: failAll(to.Emails, err)},
		}
	}

	var report Report
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		report.Push = d.SendPush(ctx, to.PushSubscriptions, msg.Title, msg.Body, msg.Data)
	}()
	go func() {
		defer wg.Done()
		report.Email = d.SendEmailBatch(ctx, to.Emails, msg.Title, msg.Body)
	}()
	wg.Wait()

	return report
}

func failAll(recipients []EmailRecipient, err error) []EmailFailure {
	failures := make([]EmailFailure, 0, len(recipients))
	for _, r := range recipients {
		failures = append(failures, EmailFailure{Address: r.Address, Error: err.Error()})
	}
	return failures
}

