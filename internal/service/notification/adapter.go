package notification

import (
	"asset-management-api/internal/model"
	"asset-management-api/internal/notification"
	"asset-management-api/internal/recipient"
	"asset-management-api/internal/service"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// Deliverer sends one message to a set of contacts.
type Deliverer interface {
	Deliver(ctx context.Context, msg notification.Message, to notification.Contacts) notification.Report
}

// ServiceAdapter turns service events into personalised messages for each
// audience and hands them to the dispatcher. Audiences are served in order
// and nobody reached by an earlier audience is messaged again.
type ServiceAdapter struct {
	dispatcher Deliverer
	resolver   *recipient.Resolver
	users      recipient.UserLookup
	logger     *log.Logger
}

// NewServiceAdapter creates a new notification service adapter
func NewServiceAdapter(dispatcher Deliverer, resolver *recipient.Resolver, users recipient.UserLookup, logger *log.Logger) *ServiceAdapter {
	if logger == nil {
		logger = log.Default()
	}
	return &ServiceAdapter{
		dispatcher: dispatcher,
		resolver:   resolver,
		users:      users,
		logger:     logger,
	}
}

type audience struct {
	name string
	refs []recipient.Reference
	msg  notification.Message
}

// SendAllocationNotification notifies the recipient in the second person and
// the requester, asset owner and purchaser, and admins in the third person.
func (a *ServiceAdapter) SendAllocationNotification(ctx context.Context, n service.AllocationNotification) notification.Report {
	al := n.Allocation
	holder := al.AllocatedTo
	if !holder.Valid {
		holder = uuid.NullUUID{UUID: al.AllocatedBy, Valid: true}
	}

	w := allocationWording{
		asset:     assetLabel(n.Asset),
		holder:    a.displayName(ctx, holder),
		requester: a.displayName(ctx, uuid.NullUUID{UUID: al.AllocatedBy, Valid: true}),
		kind:      strings.ToLower(string(al.Type)),
		ownership: al.Type.TransfersOwnership(),
		reason:    al.RejectionReason,
		until:     al.EndTime,
	}
	direct, third := w.messages(n.Type)

	data := map[string]string{
		"notification_type": string(n.Type),
		"allocation_id":     al.ID.String(),
		"asset_id":          al.AssetID.String(),
		"status":            string(al.Status),
		"allocation_type":   string(al.Type),
	}
	direct.Data, third.Data = data, data

	var stakeholders []recipient.Reference
	if n.Asset != nil {
		stakeholders = append(stakeholders, recipient.FromNullUUID(n.Asset.OwnerID), recipient.FromNullUUID(n.Asset.PurchaserID))
	}

	audiences := []audience{
		{name: "recipient", refs: []recipient.Reference{recipient.FromNullUUID(holder)}, msg: direct},
		{name: "requester", refs: []recipient.Reference{recipient.FromUUID(al.AllocatedBy)}, msg: third},
		{name: "asset stakeholders", refs: stakeholders, msg: third},
	}
	if n.Type != service.NotificationTypeAllocationCompleted {
		audiences = append(audiences, audience{name: "admins", refs: a.roleRefs(ctx, model.RoleAdmin), msg: third})
	}

	var skip []uuid.UUID
	if n.Type == service.NotificationTypeAllocationCreated {
		// the requester made the request and needs no message about it
		skip = append(skip, al.AllocatedBy)
	}

	return a.deliver(ctx, audiences, skip...)
}

// SendPurchaseNotification tells purchasers and admins about new requests,
// and the requester and required-by user about approvals.
func (a *ServiceAdapter) SendPurchaseNotification(ctx context.Context, n service.PurchaseNotification) notification.Report {
	p := n.Purchase
	item := fmt.Sprintf("%d x %s", p.Quantity, p.AssetDescription)
	requester := a.displayName(ctx, uuid.NullUUID{UUID: p.RequestedBy, Valid: true})
	data := map[string]string{
		"notification_type": string(n.Type),
		"purchase_id":       p.ID.String(),
	}

	var audiences []audience
	switch n.Type {
	case service.NotificationTypePurchaseRequested:
		request := notification.Message{
			Title: "New purchase request",
			Body:  fmt.Sprintf("%s requested %s.", requester, item),
			Data:  data,
		}
		audiences = []audience{
			{name: "purchasers", refs: a.roleRefs(ctx, model.RolePurchaser), msg: request},
			{name: "admins", refs: a.roleRefs(ctx, model.RoleAdmin), msg: request},
		}
	case service.NotificationTypePurchaseApproved:
		direct := notification.Message{
			Title: "Purchase request approved",
			Body:  fmt.Sprintf("Your purchase request for %s was approved.", item),
			Data:  data,
		}
		third := notification.Message{
			Title: "Purchase request approved",
			Body:  fmt.Sprintf("The purchase of %s requested by %s was approved.", item, requester),
			Data:  data,
		}
		audiences = []audience{
			{name: "requester", refs: []recipient.Reference{recipient.FromUUID(p.RequestedBy), recipient.FromNullUUID(p.RequiredBy)}, msg: direct},
			{name: "purchasers", refs: a.roleRefs(ctx, model.RolePurchaser), msg: third},
		}
	default:
		a.logger.Printf("Unknown purchase notification type %q", n.Type)
		return notification.Report{}
	}

	return a.deliver(ctx, audiences)
}

func (a *ServiceAdapter) deliver(ctx context.Context, audiences []audience, skip ...uuid.UUID) notification.Report {
	var report notification.Report
	seen := make(map[uuid.UUID]bool)
	for _, id := range skip {
		seen[id] = true
	}
	var covered notification.Contacts

	for _, aud := range audiences {
		var ids []uuid.UUID
		for _, id := range recipient.NormalizeIdentities(aud.refs...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}

		contacts := a.resolver.ResolveContactEndpoints(ctx, ids).Subtract(covered)
		covered = notification.Merge(covered, contacts)
		if contacts.Empty() {
			continue
		}

		r := a.dispatcher.Deliver(ctx, aud.msg, contacts)
		if err := r.Err(); err != nil {
			a.logger.Printf("Delivery to %s incomplete: %v", aud.name, err)
		}
		report = report.Add(r)
	}

	return report
}

func (a *ServiceAdapter) roleRefs(ctx context.Context, role model.Role) []recipient.Reference {
	ids := a.resolver.ResolveRoleGroup(ctx, role)
	refs := make([]recipient.Reference, len(ids))
	for i, id := range ids {
		refs[i] = recipient.FromUUID(id)
	}
	return refs
}

func (a *ServiceAdapter) displayName(ctx context.Context, id uuid.NullUUID) string {
	if !id.Valid || a.users == nil {
		return "a colleague"
	}
	users, err := a.users.GetUsersByIDs(ctx, []uuid.UUID{id.UUID})
	if err != nil || len(users) == 0 {
		return "a colleague"
	}
	if users[0].Name != "" {
		return users[0].Name
	}
	return users[0].Email
}

func assetLabel(asset *model.Asset) string {
	if asset == nil {
		return "an asset"
	}
	if asset.SerialNumber == "" {
		return asset.Name
	}
	return fmt.Sprintf("%s (%s)", asset.Name, asset.SerialNumber)
}

type allocationWording struct {
	asset     string
	holder    string
	requester string
	kind      string
	ownership bool
	reason    string
	until     string
}

// messages returns the second-person message for the recipient and the
// third-person one for everybody else.
func (w allocationWording) messages(t service.NotificationType) (direct, third notification.Message) {
	switch t {
	case service.NotificationTypeAllocationCreated:
		if w.ownership {
			direct = msg("Ownership transfer requested",
				"%s requested that ownership of %s be transferred to you. The request is awaiting approval.", w.requester, w.asset)
			third = msg("Ownership transfer awaiting approval",
				"%s requested that ownership of %s be transferred to %s.", w.requester, w.asset, w.holder)
			return
		}
		direct = msg("Asset allocation requested",
			"%s requested %s for you (%s). The request is awaiting approval.", w.requester, w.asset, w.kind)
		third = msg("Asset allocation awaiting approval",
			"%s requested %s for %s (%s).", w.requester, w.asset, w.holder, w.kind)

	case service.NotificationTypeAllocationApproved:
		if w.ownership {
			direct = msg("You are now the owner",
				"The ownership transfer of %s was approved. You are now its owner.", w.asset)
			third = msg("Asset ownership transferred",
				"Ownership of %s has been transferred to %s.", w.asset, w.holder)
			return
		}
		direct = msg("Asset allocation approved",
			"%s has been assigned to you (%s)%s.", w.asset, w.kind, w.untilClause())
		third = msg("Asset allocation approved",
			"%s has been temporarily assigned to %s (%s)%s.", w.asset, w.holder, w.kind, w.untilClause())

	case service.NotificationTypeAllocationRejected:
		if w.ownership {
			direct = msg("Ownership transfer rejected",
				"The request to transfer ownership of %s to you was rejected.%s", w.asset, w.reasonClause())
			third = msg("Ownership transfer rejected",
				"The ownership transfer of %s to %s was rejected.%s", w.asset, w.holder, w.reasonClause())
			return
		}
		direct = msg("Asset allocation rejected",
			"Your allocation of %s was rejected.%s", w.asset, w.reasonClause())
		third = msg("Asset allocation rejected",
			"The allocation of %s to %s was rejected.%s", w.asset, w.holder, w.reasonClause())

	case service.NotificationTypeAllocationCompleted:
		direct = msg("Asset allocation ended",
			"Your allocation of %s has ended. Please return it.", w.asset)
		third = msg("Asset allocation ended",
			"The allocation of %s to %s has ended and the asset is available again.", w.asset, w.holder)

	default:
		direct = msg("Asset allocation updated", "Your allocation of %s was updated.", w.asset)
		third = msg("Asset allocation updated", "The allocation of %s to %s was updated.", w.asset, w.holder)
	}
	return
}

func (w allocationWording) untilClause() string {
	if strings.TrimSpace(w.until) == "" {
		return ""
	}
	return " until " + w.until
}

func (w allocationWording) reasonClause() string {
	if strings.TrimSpace(w.reason) == "" {
		return ""
	}
	return " Reason: " + w.reason
}

func msg(title, format string, args ...interface{}) notification.Message {
	return notification.Message{Title: title, Body: fmt.Sprintf(format, args...)}
}
