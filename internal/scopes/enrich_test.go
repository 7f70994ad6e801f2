package scopes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	entries     map[string]DirectoryEntry
	calls       int
	lastQuery   []string
	searchError error
}

func (f *fakeDirectory) Search(ctx context.Context, ids []string) ([]DirectoryEntry, error) {
	f.calls++
	f.lastQuery = ids
	if f.searchError != nil {
		return nil, f.searchError
	}
	var out []DirectoryEntry
	for _, id := range ids {
		if entry, ok := f.entries[id]; ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeNameCache struct {
	names  map[string]string
	stored []DirectoryEntry
}

func (f *fakeNameCache) CachedName(ctx context.Context, id string) (string, bool) {
	name, ok := f.names[id]
	return name, ok
}

func (f *fakeNameCache) StoreNames(ctx context.Context, entries []DirectoryEntry) error {
	f.stored = append(f.stored, entries...)
	return nil
}

type refList []*ScopeRef

func (r refList) ResourceScopeRefs() []*ScopeRef { return r }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrichNoRefsMakesNoCalls(t *testing.T) {
	directory := &fakeDirectory{}
	enricher := NewEnricher(directory, &fakeNameCache{}, testLogger())

	enricher.Enrich(context.Background(), refList{})
	enricher.Enrich(context.Background(), nil)

	assert.Equal(t, 0, directory.calls)
}

func TestEnrichCacheFirst(t *testing.T) {
	directory := &fakeDirectory{}
	cache := &fakeNameCache{names: map[string]string{"11112222": "Fleet One"}}
	enricher := NewEnricher(directory, cache, testLogger())

	ref := &ScopeRef{ID: "11112222"}
	enricher.Enrich(context.Background(), refList{ref})

	assert.Equal(t, 0, directory.calls)
	require.NotNil(t, ref.Name)
	assert.Equal(t, "Fleet One", *ref.Name)
}

func TestEnrichBatchesMissingIDs(t *testing.T) {
	directory := &fakeDirectory{entries: map[string]DirectoryEntry{
		"11112222": {ID: "11112222", DisplayName: "Fleet One", Status: "active"},
		"33334444": {ID: "33334444", DisplayName: "Fleet Two", Status: "active"},
	}}
	cache := &fakeNameCache{names: map[string]string{}}
	enricher := NewEnricher(directory, cache, testLogger())

	refs := refList{
		{ID: "11112222"},
		{ID: "33334444"},
		{ID: "11112222"}, // duplicate, must not widen the query
	}
	enricher.Enrich(context.Background(), refs)

	assert.Equal(t, 1, directory.calls)
	assert.ElementsMatch(t, []string{"11112222", "33334444"}, directory.lastQuery)
	require.NotNil(t, refs[2].Name)
	assert.Equal(t, "Fleet One", *refs[2].Name)
	assert.Len(t, cache.stored, 2)
}

func TestEnrichToleratesPartialMatches(t *testing.T) {
	directory := &fakeDirectory{entries: map[string]DirectoryEntry{
		"11112222": {ID: "11112222", DisplayName: "Fleet One"},
	}}
	enricher := NewEnricher(directory, &fakeNameCache{}, testLogger())

	known := &ScopeRef{ID: "11112222"}
	unknown := &ScopeRef{ID: "99990000"}
	enricher.Enrich(context.Background(), refList{known, unknown})

	require.NotNil(t, known.Name)
	assert.Equal(t, "Fleet One", *known.Name)
	assert.Nil(t, unknown.Name)
}

func TestEnrichDegradesOnDirectoryFailure(t *testing.T) {
	directory := &fakeDirectory{searchError: errors.New("directory unavailable")}
	enricher := NewEnricher(directory, &fakeNameCache{}, testLogger())

	ref := &ScopeRef{ID: "11112222"}
	enricher.Enrich(context.Background(), refList{ref})

	assert.Nil(t, ref.Name)
}

func TestValidateResourceID(t *testing.T) {
	assert.NoError(t, ValidateResourceID("12345678"))
	for _, id := range []string{"", "1234567", "123456789", "1234567a", "12 45678"} {
		assert.ErrorIs(t, ValidateResourceID(id), ErrInvalidResourceID, "id %q", id)
	}
}
