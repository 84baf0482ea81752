// Package recipient turns loosely typed user references into contact
// endpoints.
package recipient

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Kind tags the form a Reference arrived in.
type Kind int

const (
	// KindID is a bare identifier string.
	KindID Kind = iota + 1
	// KindEmbedded is an object carrying an _id or id field.
	KindEmbedded
	// KindRaw is any other text: JSON-encoded values, legacy serialized
	// objects, or garbage.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindEmbedded:
		return "embedded"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Reference is one "who" input in whatever shape the caller had it.
type Reference struct {
	Kind  Kind
	Value string
}

// ID wraps a bare identifier.
func ID(id string) Reference { return Reference{Kind: KindID, Value: id} }

// Embedded wraps the identity field of an embedded object.
func Embedded(id string) Reference { return Reference{Kind: KindEmbedded, Value: id} }

// Raw wraps arbitrary text.
func Raw(text string) Reference { return Reference{Kind: KindRaw, Value: text} }

// FromUUID wraps a known identity.
func FromUUID(id uuid.UUID) Reference { return ID(id.String()) }

// FromNullUUID wraps an optional identity; an absent one yields the zero
// Reference, which normalizes to nothing.
func FromNullUUID(id uuid.NullUUID) Reference {
	if !id.Valid {
		return Reference{}
	}
	return FromUUID(id.UUID)
}

// UnmarshalJSON accepts any JSON value. Strings become KindID when they are
// identifiers and KindRaw otherwise; objects with an _id or id field become
// KindEmbedded; everything else is kept as KindRaw text.
func (r *Reference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Reference{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*r = Raw(string(data))
			return nil
		}
		if _, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
			*r = ID(s)
		} else {
			*r = Raw(s)
		}
	case '{':
		if id, ok := embeddedID(data, 0); ok {
			*r = Embedded(id)
		} else {
			*r = Raw(string(data))
		}
	default:
		*r = Raw(string(data))
	}
	return nil
}

// MarshalJSON writes the reference back as a string.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.Kind == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

const maxDepth = 4

var (
	uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	// idFieldPattern finds `_id: '…'`, `"id": "…"` or `id=…` in legacy text.
	idFieldPattern = regexp.MustCompile(`(?i)(?:^|[\s{,(])["']?_?id["']?\s*[:=]\s*(?:new\s+)?(?:\w+\(\s*)?["']?([0-9a-fA-F-]{32,36})`)
)

// NormalizeIdentities resolves references to the distinct identities they
// name. Unrecognised forms are dropped. The result is sorted, so the same set
// of inputs in any order and with any repetition yields the same output.
func NormalizeIdentities(refs ...Reference) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(refs))
	for _, ref := range refs {
		if id, ok := resolve(ref, 0); ok {
			seen[id] = struct{}{}
		}
	}

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

func resolve(ref Reference, depth int) (uuid.UUID, bool) {
	value := strings.TrimSpace(ref.Value)
	if value == "" || depth > maxDepth {
		return uuid.Nil, false
	}

	switch ref.Kind {
	case KindID, KindEmbedded:
		if id, ok := parseID(value); ok {
			return id, true
		}
		// ids saved by older clients sometimes carry wrapping text
		return resolve(Raw(value), depth+1)
	case KindRaw:
		return resolveRaw(value, depth)
	}
	return uuid.Nil, false
}

func resolveRaw(value string, depth int) (uuid.UUID, bool) {
	if id, ok := parseID(value); ok {
		return id, true
	}

	switch value[0] {
	case '"':
		var inner string
		if err := json.Unmarshal([]byte(value), &inner); err == nil {
			return resolve(Raw(inner), depth+1)
		}
	case '{':
		if id, ok := embeddedID([]byte(value), depth+1); ok {
			return parseID(id)
		}
	}

	if m := idFieldPattern.FindStringSubmatch(value); m != nil {
		if id, ok := parseID(m[1]); ok {
			return id, true
		}
	}
	if m := uuidPattern.FindString(value); m != "" {
		return parseID(m)
	}
	return uuid.Nil, false
}

// embeddedID extracts the identity from a JSON object's _id or id field,
// which may itself be a string, a nested object or a JSON-encoded string.
func embeddedID(data []byte, depth int) (string, bool) {
	if depth > maxDepth {
		return "", false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", false
	}

	for _, key := range []string{"_id", "id", "$oid", "$uuid"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var inner Reference
		if err := inner.UnmarshalJSON(raw); err != nil || inner.Kind == 0 {
			continue
		}
		if id, ok := resolve(inner, depth+1); ok {
			return id.String(), true
		}
	}
	return "", false
}

func parseID(s string) (uuid.UUID, bool) {
	s = strings.TrimSpace(s)
	// uuid.Parse also accepts the 32-hex, braced and urn forms
	if len(s) < 32 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
