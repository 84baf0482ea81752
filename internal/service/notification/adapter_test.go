package notification

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/notification"
	"asset-management-api/internal/recipient"
	"asset-management-api/internal/repository/repotest"
	"asset-management-api/internal/service"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type delivery struct {
	msg notification.Message
	to  notification.Contacts
}

type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (r *recordingDeliverer) Deliver(ctx context.Context, msg notification.Message, to notification.Contacts) notification.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{msg: msg, to: to})
	return notification.Report{Email: notification.EmailReport{SentCount: len(to.Emails)}}
}

// bodiesFor maps each email address to the message body it received.
func (r *recordingDeliverer) bodiesFor() map[string][]string {
	out := make(map[string][]string)
	for _, d := range r.deliveries {
		for _, e := range d.to.Emails {
			out[e.Address] = append(out[e.Address], d.msg.Body)
		}
	}
	return out
}

type people struct {
	admin, requester, recipient, owner, purchaser uuid.UUID
}

func seedPeople(store *repotest.Store) people {
	p := people{
		admin:     uuid.New(),
		requester: uuid.New(),
		recipient: uuid.New(),
		owner:     uuid.New(),
		purchaser: uuid.New(),
	}
	store.SeedUser(model.User{ID: p.admin, Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin})
	store.SeedUser(model.User{ID: p.requester, Name: "Rae", Email: "rae@example.com", Role: model.RoleMember})
	store.SeedUser(model.User{ID: p.recipient, Name: "Uma", Email: "uma@example.com", Role: model.RoleMember,
		PushSubscriptions: []model.PushSubscription{{Endpoint: "https://push.example.com/uma"}}})
	store.SeedUser(model.User{ID: p.owner, Name: "Otto", Email: "otto@example.com", Role: model.RoleOwner})
	store.SeedUser(model.User{ID: p.purchaser, Name: "Pia", Email: "pia@example.com", Role: model.RolePurchaser})
	return p
}

func newTestAdapter(store *repotest.Store, d Deliverer) *ServiceAdapter {
	logger := log.New(io.Discard, "", 0)
	resolver := recipient.NewResolver(store.Users(), 0, logger)
	return NewServiceAdapter(d, resolver, store.Users(), logger)
}

func testAsset(p people) *model.Asset {
	return &model.Asset{
		ID:           uuid.New(),
		Name:         "ThinkPad X1",
		SerialNumber: "TP-0001",
		OwnerID:      uuid.NullUUID{UUID: p.owner, Valid: true},
		PurchaserID:  uuid.NullUUID{UUID: p.purchaser, Valid: true},
	}
}

func TestSendAllocationNotification_ApprovedAudiences(t *testing.T) {
	store := repotest.New()
	p := seedPeople(store)
	deliverer := &recordingDeliverer{}
	adapter := newTestAdapter(store, deliverer)
	asset := testAsset(p)

	report := adapter.SendAllocationNotification(context.Background(), service.AllocationNotification{
		Type: service.NotificationTypeAllocationApproved,
		Allocation: model.Allocation{
			ID:          uuid.New(),
			AllocatedBy: p.requester,
			AllocatedTo: uuid.NullUUID{UUID: p.recipient, Valid: true},
			AssetID:     asset.ID,
			Type:        model.AllocationTypeTemporary,
			Status:      model.AllocationApproved,
			EndTime:     "31/12/2030",
		},
		Asset: asset,
		Actor: p.admin,
	})

	if report.Err() != nil {
		t.Errorf("Expected clean report, got %v", report.Err())
	}

	bodies := deliverer.bodiesFor()
	for _, addr := range []string{"uma@example.com", "rae@example.com", "otto@example.com", "pia@example.com", "ada@example.com"} {
		if len(bodies[addr]) != 1 {
			t.Errorf("Expected exactly one message for %s, got %d", addr, len(bodies[addr]))
		}
	}

	if got := bodies["uma@example.com"][0]; !strings.Contains(got, "assigned to you") || !strings.Contains(got, "until 31/12/2030") {
		t.Errorf("Expected second-person wording for the recipient, got %q", got)
	}
	if got := bodies["rae@example.com"][0]; !strings.Contains(got, "temporarily assigned to Uma") {
		t.Errorf("Expected third-person wording for the requester, got %q", got)
	}

	if len(deliverer.deliveries) == 0 || len(deliverer.deliveries[0].to.PushSubscriptions) != 1 {
		t.Errorf("Expected the recipient's push subscription in the first delivery")
	}
	if deliverer.deliveries[0].msg.Data["allocation_type"] != "Temporary" {
		t.Errorf("Expected allocation data on the message, got %v", deliverer.deliveries[0].msg.Data)
	}
}

func TestSendAllocationNotification_OwnerWording(t *testing.T) {
	store := repotest.New()
	p := seedPeople(store)
	deliverer := &recordingDeliverer{}
	adapter := newTestAdapter(store, deliverer)

	adapter.SendAllocationNotification(context.Background(), service.AllocationNotification{
		Type: service.NotificationTypeAllocationApproved,
		Allocation: model.Allocation{
			ID:          uuid.New(),
			AllocatedBy: p.requester,
			AllocatedTo: uuid.NullUUID{UUID: p.recipient, Valid: true},
			Type:        model.AllocationTypeOwner,
			Status:      model.AllocationApproved,
		},
		Asset: testAsset(p),
	})

	bodies := deliverer.bodiesFor()
	if got := bodies["uma@example.com"][0]; !strings.Contains(got, "You are now its owner") {
		t.Errorf("Expected ownership wording for the recipient, got %q", got)
	}
	if got := bodies["otto@example.com"][0]; !strings.Contains(got, "Ownership of ThinkPad X1 (TP-0001) has been transferred to Uma") {
		t.Errorf("Expected ownership wording for the previous owner, got %q", got)
	}
}

func TestSendAllocationNotification_NoDuplicates(t *testing.T) {
	store := repotest.New()
	p := seedPeople(store)
	deliverer := &recordingDeliverer{}
	adapter := newTestAdapter(store, deliverer)

	// the admin requested the asset for themselves and also owns it
	asset := testAsset(p)
	asset.OwnerID = uuid.NullUUID{UUID: p.admin, Valid: true}

	adapter.SendAllocationNotification(context.Background(), service.AllocationNotification{
		Type: service.NotificationTypeAllocationRejected,
		Allocation: model.Allocation{
			ID:              uuid.New(),
			AllocatedBy:     p.admin,
			Type:            model.AllocationTypeRepair,
			Status:          model.AllocationRejected,
			RejectionReason: "no budget",
		},
		Asset: asset,
	})

	bodies := deliverer.bodiesFor()
	if len(bodies["ada@example.com"]) != 1 {
		t.Fatalf("Expected one message for the admin, got %v", bodies["ada@example.com"])
	}
	if got := bodies["ada@example.com"][0]; !strings.Contains(got, "Your allocation") || !strings.Contains(got, "Reason: no budget") {
		t.Errorf("Expected direct rejection wording with reason, got %q", got)
	}
	if len(bodies["pia@example.com"]) != 1 {
		t.Errorf("Expected the purchaser to be notified once, got %d", len(bodies["pia@example.com"]))
	}
}

func TestSendAllocationNotification_CreatedSkipsRequester(t *testing.T) {
	store := repotest.New()
	p := seedPeople(store)
	deliverer := &recordingDeliverer{}
	adapter := newTestAdapter(store, deliverer)

	adapter.SendAllocationNotification(context.Background(), service.AllocationNotification{
		Type: service.NotificationTypeAllocationCreated,
		Allocation: model.Allocation{
			ID:          uuid.New(),
			AllocatedBy: p.requester,
			AllocatedTo: uuid.NullUUID{UUID: p.recipient, Valid: true},
			Type:        model.AllocationTypeShared,
			Status:      model.AllocationPending,
		},
		Asset: testAsset(p),
	})

	bodies := deliverer.bodiesFor()
	if len(bodies["rae@example.com"]) != 0 {
		t.Errorf("Expected no message for the requester, got %v", bodies["rae@example.com"])
	}
	if len(bodies["ada@example.com"]) != 1 || !strings.Contains(bodies["ada@example.com"][0], "Rae requested") {
		t.Errorf("Expected admins to hear about the request, got %v", bodies["ada@example.com"])
	}
}

func TestSendPurchaseNotification(t *testing.T) {
	store := repotest.New()
	p := seedPeople(store)
	deliverer := &recordingDeliverer{}
	adapter := newTestAdapter(store, deliverer)
	purchase := model.Purchase{ID: uuid.New(), RequestedBy: p.requester, AssetDescription: "USB-C dock", Quantity: 2}

	adapter.SendPurchaseNotification(context.Background(), service.PurchaseNotification{
		Type:     service.NotificationTypePurchaseRequested,
		Purchase: purchase,
	})
	bodies := deliverer.bodiesFor()
	if len(bodies["pia@example.com"]) != 1 || len(bodies["ada@example.com"]) != 1 {
		t.Errorf("Expected purchasers and admins to be notified, got %v", bodies)
	}
	if len(bodies["rae@example.com"]) != 0 {
		t.Errorf("Expected no message for the requester on creation")
	}

	deliverer.deliveries = nil
	adapter.SendPurchaseNotification(context.Background(), service.PurchaseNotification{
		Type:     service.NotificationTypePurchaseApproved,
		Purchase: purchase,
	})
	bodies = deliverer.bodiesFor()
	if got := bodies["rae@example.com"]; len(got) != 1 || !strings.Contains(got[0], "Your purchase request for 2 x USB-C dock") {
		t.Errorf("Expected direct approval message for the requester, got %v", got)
	}
}

type failingMailer struct{}

func (failingMailer) Enabled() bool { return true }

func (failingMailer) SendEmail(ctx context.Context, to notification.EmailRecipient, subject, body string) error {
	return errors.New("smtp unavailable")
}

func TestApproveAllocation_SucceedsWithoutReachableContacts(t *testing.T) {
	store := repotest.New()
	p := seedPeople(store)
	logger := log.New(io.Discard, "", 0)

	asset := testAsset(p)
	asset.Available = true
	store.SeedAsset(*asset)

	// no VAPID keys, so every push fails; every email fails too
	pushClient, _ := notification.NewWebPushClient(notification.PushConfig{}, logger)
	dispatcher := notification.NewDispatcher(pushClient, failingMailer{}, store.Users(), 2, logger)
	adapter := NewServiceAdapter(dispatcher, recipient.NewResolver(store.Users(), 0, logger), store.Users(), logger)
	allocations := service.NewAllocationService(store, adapter, logger)

	admin := service.Actor{ID: p.admin, Role: model.RoleAdmin}
	created, err := allocations.CreateAllocation(context.Background(), service.Actor{ID: p.requester, Role: model.RoleMember}, model.Allocation{
		AssetID:     asset.ID,
		AllocatedTo: uuid.NullUUID{UUID: p.recipient, Valid: true},
		Type:        model.AllocationTypeTemporary,
	})
	if err != nil {
		t.Fatalf("Expected allocation to be created, got %v", err)
	}

	approved, err := allocations.ApproveAllocation(context.Background(), admin, created.ID)
	if err != nil {
		t.Fatalf("Expected approval to succeed despite delivery failures, got %v", err)
	}
	if approved.Status != model.AllocationApproved {
		t.Errorf("Expected approved status, got %s", approved.Status)
	}
}
