package notification

import (
	"asset-management-api/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// ErrPushDisabled is reported for every subscription when no VAPID keys are
// configured.
var ErrPushDisabled = errors.New("push notifications disabled")

// PushConfig holds the VAPID settings for the web push client
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	Timeout         time.Duration
}

// InitResult describes how the push client came up.
type InitResult struct {
	Enabled bool
	Reason  string
}

// PushResult is the outcome for one subscription.
type PushResult struct {
	Endpoint   string `json:"endpoint"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	// Expired is set when the push service reported the subscription gone.
	Expired bool   `json:"expired,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PushReport aggregates per-subscription results.
type PushReport struct {
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Results      []PushResult `json:"results,omitempty"`
}

// Err summarises failures, or returns nil when every send succeeded.
func (r PushReport) Err() error {
	if r.FailureCount == 0 {
		return nil
	}
	for _, res := range r.Results {
		if !res.Success {
			return fmt.Errorf("%d of %d push sends failed, first: %s", r.FailureCount, r.FailureCount+r.SuccessCount, res.Error)
		}
	}
	return fmt.Errorf("%d push sends failed", r.FailureCount)
}

// Expired lists the endpoints the push service reported as gone.
func (r PushReport) Expired() []string {
	var endpoints []string
	for _, res := range r.Results {
		if res.Expired {
			endpoints = append(endpoints, res.Endpoint)
		}
	}
	return endpoints
}

// PushSender delivers a message to a set of push subscriptions.
type PushSender interface {
	SendPush(ctx context.Context, subs []model.PushSubscription, title, body string, data map[string]string) PushReport
	Enabled() bool
}

// WebPushSender performs a single web push request. It exists so tests can
// replace the network call.
type WebPushSender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type webPushSender struct{}

func (webPushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// WebPushClient sends VAPID-signed web push notifications.
type WebPushClient struct {
	options *webpush.Options
	sender  WebPushSender
	enabled bool
	logger  *log.Logger
}

// NewWebPushClient builds a push client. Missing keys produce a disabled
// client rather than an error; the InitResult says which one was built.
func NewWebPushClient(cfg PushConfig, logger *log.Logger) (*WebPushClient, InitResult) {
	if logger == nil {
		logger = log.Default()
	}

	client := &WebPushClient{sender: webPushSender{}, logger: logger}

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return client, InitResult{Enabled: false, Reason: "VAPID keys not configured"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 3600
	}

	client.options = &webpush.Options{
		HTTPClient:      &http.Client{Timeout: timeout},
		Subscriber:      strings.TrimPrefix(cfg.Subject, "mailto:"),
		TTL:             ttl,
		Urgency:         webpush.UrgencyNormal,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
	}
	client.enabled = true

	return client, InitResult{Enabled: true}
}

// WithSender replaces the transport, mainly for tests.
func (c *WebPushClient) WithSender(sender WebPushSender) *WebPushClient {
	if sender != nil {
		c.sender = sender
	}
	return c
}

func (c *WebPushClient) Enabled() bool { return c.enabled }

// PublicKey returns the VAPID public key browsers subscribe with.
func (c *WebPushClient) PublicKey() string {
	if c.options == nil {
		return ""
	}
	return c.options.VAPIDPublicKey
}

// SendPush sends one notification per subscription. Subscriptions are
// attempted one after another; a failing endpoint does not stop the rest.
func (c *WebPushClient) SendPush(ctx context.Context, subs []model.PushSubscription, title, body string, data map[string]string) PushReport {
	report := PushReport{}
	if len(subs) == 0 {
		return report
	}

	if !c.enabled {
		report.FailureCount = len(subs)
		for _, sub := range subs {
			report.Results = append(report.Results, PushResult{Endpoint: sub.Endpoint, Error: ErrPushDisabled.Error()})
		}
		return report
	}

	payload, err := json.Marshal(Message{Title: title, Body: body, Data: data})
	if err != nil {
		report.FailureCount = len(subs)
		for _, sub := range subs {
			report.Results = append(report.Results, PushResult{Endpoint: sub.Endpoint, Error: fmt.Sprintf("failed to marshal payload: %v", err)})
		}
		return report
	}

	for _, sub := range subs {
		res := c.sendOne(ctx, payload, sub)
		if res.Success {
			report.SuccessCount++
		} else {
			report.FailureCount++
		}
		report.Results = append(report.Results, res)
	}

	return report
}

func (c *WebPushClient) sendOne(ctx context.Context, payload []byte, sub model.PushSubscription) PushResult {
	res := PushResult{Endpoint: sub.Endpoint}

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := c.sender.Send(ctx, payload, wpSub, c.options)
	if err != nil {
		res.Error = err.Error()
		c.logger.Printf("Error sending push notification to %s: %v", sub.Endpoint, err)
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		res.Expired = true
		res.Error = fmt.Sprintf("subscription expired (status %d)", resp.StatusCode)
	case resp.StatusCode >= 400:
		res.Error = fmt.Sprintf("push service returned error status %d", resp.StatusCode)
	default:
		res.Success = true
	}

	return res
}
