package notification

import (
	"asset-management-api/internal/model"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
)

func newTestSubscription(t *testing.T, endpoint string) model.PushSubscription {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate subscription key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("Failed to generate auth secret: %v", err)
	}

	return model.PushSubscription{
		Endpoint: endpoint,
		P256DH:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestPushClient(t *testing.T) *WebPushClient {
	t.Helper()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("Failed to generate VAPID keys: %v", err)
	}

	client, result := NewWebPushClient(PushConfig{
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		Subject:         "mailto:it-assets@example.com",
	}, nil)
	if !result.Enabled {
		t.Fatalf("Expected enabled push client, got disabled: %s", result.Reason)
	}
	return client
}

func TestNewWebPushClient_MissingKeysDisabled(t *testing.T) {
	client, result := NewWebPushClient(PushConfig{VAPIDPublicKey: "only-public"}, nil)

	if result.Enabled {
		t.Error("Expected disabled push client without a private key")
	}
	if result.Reason == "" {
		t.Error("Expected a reason for the disabled client")
	}
	if client.Enabled() {
		t.Error("Expected client.Enabled() to be false")
	}
	if client.PublicKey() != "" {
		t.Errorf("Expected empty public key, got %q", client.PublicKey())
	}
}

func TestWebPushClient_DisabledReportsFullFailure(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, _ := NewWebPushClient(PushConfig{}, nil)
	subs := []model.PushSubscription{
		newTestSubscription(t, server.URL+"/a"),
		newTestSubscription(t, server.URL+"/b"),
	}

	report := client.SendPush(context.Background(), subs, "Title", "Body", nil)

	if report.FailureCount != 2 || report.SuccessCount != 0 {
		t.Errorf("Expected 2 failures and 0 successes, got %d/%d", report.FailureCount, report.SuccessCount)
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Errorf("Expected no network calls from a disabled client, got %d", requests)
	}
	if report.Err() == nil {
		t.Error("Expected report error for disabled client")
	}
}

func TestWebPushClient_EmptySubscriptions(t *testing.T) {
	client := newTestPushClient(t)

	report := client.SendPush(context.Background(), nil, "Title", "Body", nil)

	if report.SuccessCount != 0 || report.FailureCount != 0 || len(report.Results) != 0 {
		t.Errorf("Expected zero report, got %+v", report)
	}
	if report.Err() != nil {
		t.Errorf("Expected nil error for zero report, got %v", report.Err())
	}
}

func TestWebPushClient_SendPush_MixedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "vapid ") {
			t.Errorf("Expected VAPID authorization header, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Encoding") != "aes128gcm" {
			t.Errorf("Expected aes128gcm content encoding, got %q", r.Header.Get("Content-Encoding"))
		}

		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusCreated)
		case "/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("push service unavailable"))
		}
	}))
	defer server.Close()

	client := newTestPushClient(t)
	subs := []model.PushSubscription{
		newTestSubscription(t, server.URL+"/ok"),
		newTestSubscription(t, server.URL+"/gone"),
		newTestSubscription(t, server.URL+"/broken"),
	}

	report := client.SendPush(context.Background(), subs, "Asset approved", "Your laptop is ready", map[string]string{"allocation_id": "123"})

	if report.SuccessCount != 1 {
		t.Errorf("Expected 1 success, got %d", report.SuccessCount)
	}
	if report.FailureCount != 2 {
		t.Errorf("Expected 2 failures, got %d", report.FailureCount)
	}
	expired := report.Expired()
	if len(expired) != 1 || expired[0] != server.URL+"/gone" {
		t.Errorf("Expected /gone to be expired, got %v", expired)
	}
	for _, res := range report.Results {
		if strings.HasSuffix(res.Endpoint, "/broken") && !strings.Contains(res.Error, "500") {
			t.Errorf("Expected status 500 in error, got %q", res.Error)
		}
	}
}

type fakeWebPushSender struct {
	calls int32
}

func (f *fakeWebPushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusCreated)
	return rec.Result(), nil
}

func TestWebPushClient_CancelledContextSkipsSends(t *testing.T) {
	sender := &fakeWebPushSender{}
	client := newTestPushClient(t).WithSender(sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := client.SendPush(ctx, []model.PushSubscription{{Endpoint: "https://push.example.com/x"}}, "T", "B", nil)

	if report.FailureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", report.FailureCount)
	}
	if sender.calls != 0 {
		t.Errorf("Expected no sends after cancellation, got %d", sender.calls)
	}
}
