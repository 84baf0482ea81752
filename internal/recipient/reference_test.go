package recipient

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	aliceID = uuid.MustParse("0b6f3c1e-9a52-4d1f-8f60-0c8f7f1b2a01")
	bobID   = uuid.MustParse("7d2e4a90-31c5-4b8e-a6f4-5e2b9c0d3f02")
)

func TestNormalizeIdentities_Forms(t *testing.T) {
	tests := []struct {
		name     string
		refs     []Reference
		expected []uuid.UUID
	}{
		{
			name:     "bare id",
			refs:     []Reference{ID(aliceID.String())},
			expected: []uuid.UUID{aliceID},
		},
		{
			name:     "embedded id",
			refs:     []Reference{Embedded(bobID.String())},
			expected: []uuid.UUID{bobID},
		},
		{
			name:     "JSON-encoded id",
			refs:     []Reference{Raw(`"` + aliceID.String() + `"`)},
			expected: []uuid.UUID{aliceID},
		},
		{
			name:     "JSON object",
			refs:     []Reference{Raw(`{"_id":"` + bobID.String() + `","name":"Bob"}`)},
			expected: []uuid.UUID{bobID},
		},
		{
			name:     "doubly encoded object",
			refs:     []Reference{Raw(mustQuote(t, `{"id":"`+aliceID.String()+`"}`))},
			expected: []uuid.UUID{aliceID},
		},
		{
			name:     "legacy serialized object",
			refs:     []Reference{Raw(`{ _id: new ObjectId('` + bobID.String() + `'), name: 'Bob' }`)},
			expected: []uuid.UUID{bobID},
		},
		{
			name:     "legacy key-value text",
			refs:     []Reference{Raw(`User(id=` + aliceID.String() + `, role=owner)`)},
			expected: []uuid.UUID{aliceID},
		},
		{
			name:     "id field wins over other identifiers",
			refs:     []Reference{Raw(`{ manager_id: '` + bobID.String() + `', _id: '` + aliceID.String() + `' }`)},
			expected: []uuid.UUID{aliceID},
		},
		{
			name:     "garbage dropped",
			refs:     []Reference{Raw("not a user"), ID("42"), Raw(""), {}},
			expected: []uuid.UUID{},
		},
		{
			name:     "nil uuid dropped",
			refs:     []Reference{ID(uuid.Nil.String())},
			expected: []uuid.UUID{},
		},
		{
			name: "mixed forms collapse to one identity",
			refs: []Reference{
				ID(aliceID.String()),
				Embedded(aliceID.String()),
				Raw(`"` + aliceID.String() + `"`),
				FromUUID(bobID),
				FromNullUUID(uuid.NullUUID{}),
			},
			expected: []uuid.UUID{aliceID, bobID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeIdentities(tt.refs...)
			assert.ElementsMatch(t, tt.expected, got)
		})
	}
}

func TestReference_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Reference
	}{
		{name: "uuid string", input: `"` + aliceID.String() + `"`, expected: ID(aliceID.String())},
		{name: "other string", input: `"alice"`, expected: Raw("alice")},
		{name: "object with _id", input: `{"_id":"` + bobID.String() + `"}`, expected: Embedded(bobID.String())},
		{name: "object with nested $oid", input: `{"_id":{"$oid":"` + bobID.String() + `"}}`, expected: Embedded(bobID.String())},
		{name: "object without id", input: `{"name":"Bob"}`, expected: Raw(`{"name":"Bob"}`)},
		{name: "number", input: `42`, expected: Raw("42")},
		{name: "null", input: `null`, expected: Reference{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref Reference
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ref))
			assert.Equal(t, tt.expected, ref)
		})
	}
}

func TestReference_UnmarshalJSONArray(t *testing.T) {
	var many []Reference
	require.NoError(t, json.Unmarshal([]byte(`["`+aliceID.String()+`", {"id":"`+bobID.String()+`"}, null]`), &many))
	assert.Equal(t, []uuid.UUID{aliceID, bobID}, NormalizeIdentities(many...))
}

func TestNormalizeIdentities_OrderAndRepetitionIndependent(t *testing.T) {
	pool := []uuid.UUID{aliceID, bobID, uuid.New(), uuid.New(), uuid.New()}
	forms := []func(uuid.UUID) Reference{
		func(id uuid.UUID) Reference { return ID(id.String()) },
		func(id uuid.UUID) Reference { return Embedded(id.String()) },
		func(id uuid.UUID) Reference { return Raw(`"` + id.String() + `"`) },
		func(id uuid.UUID) Reference { return Raw(fmt.Sprintf(`{ _id: '%s' }`, id)) },
		func(id uuid.UUID) Reference { return Raw(fmt.Sprintf(`{"id":"%s"}`, id)) },
	}

	rapid.Check(t, func(t *rapid.T) {
		picks := rapid.SliceOf(rapid.IntRange(0, len(pool)-1)).Draw(t, "picks")
		refs := make([]Reference, 0, len(picks))
		want := make(map[uuid.UUID]bool)
		for i, p := range picks {
			form := rapid.IntRange(0, len(forms)-1).Draw(t, fmt.Sprintf("form%d", i))
			refs = append(refs, forms[form](pool[p]))
			want[pool[p]] = true
		}
		if rapid.Bool().Draw(t, "garbage") {
			refs = append(refs, Raw("garbage"))
		}

		got := NormalizeIdentities(refs...)
		if len(got) != len(want) {
			t.Fatalf("expected %d identities, got %v", len(want), got)
		}
		for _, id := range got {
			if !want[id] {
				t.Fatalf("unexpected identity %s", id)
			}
		}

		shuffled := rapid.Permutation(refs).Draw(t, "shuffled")
		doubled := append(append([]Reference{}, shuffled...), shuffled...)
		again := NormalizeIdentities(doubled...)
		if fmt.Sprint(again) != fmt.Sprint(got) {
			t.Fatalf("result depends on order or repetition: %v vs %v", got, again)
		}
		if fmt.Sprint(NormalizeIdentities(idRefs(got)...)) != fmt.Sprint(got) {
			t.Fatalf("normalizing is not idempotent for %v", got)
		}
	})
}

func idRefs(ids []uuid.UUID) []Reference {
	refs := make([]Reference, len(ids))
	for i, id := range ids {
		refs[i] = FromUUID(id)
	}
	return refs
}

func mustQuote(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}
