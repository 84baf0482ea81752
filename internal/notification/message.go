package notification

import (
	"asset-management-api/internal/model"
	"fmt"
	"sort"
	"strings"
)

// Limits applied to outgoing messages
const (
	MaxTitleLength = 200
	MaxBodyLength  = 4000
)

// Message is a titled notification with a small structured payload. Push
// receives Title, Body and Data; email uses Title as the subject and Body as
// the text.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Validate checks if the message is valid
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("message title is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("message body is required")
	}
	if len(m.Title) > MaxTitleLength {
		return fmt.Errorf("message title too long (max %d characters)", MaxTitleLength)
	}
	if len(m.Body) > MaxBodyLength {
		return fmt.Errorf("message body too long (max %d characters)", MaxBodyLength)
	}
	return nil
}

// EmailRecipient is an address with an optional display name.
type EmailRecipient struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Contacts are the endpoints a message is delivered to.
type Contacts struct {
	PushSubscriptions []model.PushSubscription
	Emails            []EmailRecipient
}

// Empty reports whether there is nobody to deliver to.
func (c Contacts) Empty() bool {
	return len(c.PushSubscriptions) == 0 && len(c.Emails) == 0
}

// Merge combines contact sets, dropping duplicate endpoints and
// case-insensitively duplicate addresses. The result is sorted so equal
// inputs in any order produce equal output.
func Merge(sets ...Contacts) Contacts {
	subs := make(map[string]model.PushSubscription)
	emails := make(map[string]EmailRecipient)

	for _, set := range sets {
		for _, sub := range set.PushSubscriptions {
			if sub.Endpoint == "" {
				continue
			}
			if _, ok := subs[sub.Endpoint]; !ok {
				subs[sub.Endpoint] = sub
			}
		}
		for _, e := range set.Emails {
			key := strings.ToLower(strings.TrimSpace(e.Address))
			if key == "" {
				continue
			}
			addr := strings.TrimSpace(e.Address)
			existing, ok := emails[key]
			if !ok {
				emails[key] = EmailRecipient{Address: addr, Name: e.Name}
				continue
			}
			if addr < existing.Address {
				existing.Address = addr
			}
			if e.Name != "" && (existing.Name == "" || e.Name < existing.Name) {
				existing.Name = e.Name
			}
			emails[key] = existing
		}
	}

	out := Contacts{
		PushSubscriptions: make([]model.PushSubscription, 0, len(subs)),
		Emails:            make([]EmailRecipient, 0, len(emails)),
	}
	for _, sub := range subs {
		out.PushSubscriptions = append(out.PushSubscriptions, sub)
	}
	for _, e := range emails {
		out.Emails = append(out.Emails, e)
	}
	sort.Slice(out.PushSubscriptions, func(i, j int) bool {
		return out.PushSubscriptions[i].Endpoint < out.PushSubscriptions[j].Endpoint
	})
	sort.Slice(out.Emails, func(i, j int) bool {
		return strings.ToLower(out.Emails[i].Address) < strings.ToLower(out.Emails[j].Address)
	})
	return out
}

// Subtract removes from c every endpoint and address present in other.
func (c Contacts) Subtract(other Contacts) Contacts {
	endpoints := make(map[string]bool, len(other.PushSubscriptions))
	for _, sub := range other.PushSubscriptions {
		endpoints[sub.Endpoint] = true
	}
	addresses := make(map[string]bool, len(other.Emails))
	for _, e := range other.Emails {
		addresses[strings.ToLower(strings.TrimSpace(e.Address))] = true
	}

	out := Contacts{}
	for _, sub := range c.PushSubscriptions {
		if !endpoints[sub.Endpoint] {
			out.PushSubscriptions = append(out.PushSubscriptions, sub)
		}
	}
	for _, e := range c.Emails {
		if !addresses[strings.ToLower(strings.TrimSpace(e.Address))] {
			out.Emails = append(out.Emails, e)
		}
	}
	return out
}
