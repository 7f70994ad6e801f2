package scopes

import (
	"context"
	"log/slog"
)

// NameCache is the registry surface the enricher needs.
type NameCache interface {
	CachedName(ctx context.Context, id string) (string, bool)
	StoreNames(ctx context.Context, entries []DirectoryEntry) error
}

// Enricher backfills display names into any response carrying scope refs.
type Enricher struct {
	directory DirectorySearcher
	names     NameCache
	logger    *slog.Logger
}

// NewEnricher constructs an enricher.
func NewEnricher(directory DirectorySearcher, names NameCache, logger *slog.Logger) *Enricher {
	return &Enricher{directory: directory, names: names, logger: logger}
}

// Enrich resolves display names for every distinct scope reference in the
// carrier. Cached names are applied first; the remaining identifiers go out
// in one batched directory search. When the carrier holds no references, no
// external call is made at all. Lookup failures and partial matches degrade
// to unmodified refs, never to an error.
func (e *Enricher) Enrich(ctx context.Context, carrier ScopeRefCarrier) {
	if e == nil || carrier == nil {
		return
	}
	refs := carrier.ResourceScopeRefs()
	if len(refs) == 0 {
		return
	}

	names := make(map[string]string)
	var missing []string
	seen := make(map[string]struct{})
	for _, ref := range refs {
		if ref == nil || ref.ID == "" {
			continue
		}
		if _, ok := seen[ref.ID]; ok {
			continue
		}
		seen[ref.ID] = struct{}{}
		if e.names != nil {
			if name, ok := e.names.CachedName(ctx, ref.ID); ok {
				names[ref.ID] = name
				continue
			}
		}
		missing = append(missing, ref.ID)
	}

	if len(missing) > 0 && e.directory != nil {
		entries, err := e.directory.Search(ctx, missing)
		if err != nil {
			e.logger.Warn("scope enrichment degraded", slog.Int("ids", len(missing)), slog.Any("error", err))
		} else {
			for _, entry := range entries {
				if entry.ID != "" && entry.DisplayName != "" {
					names[entry.ID] = entry.DisplayName
				}
			}
			if e.names != nil {
				if err := e.names.StoreNames(ctx, entries); err != nil {
					e.logger.Warn("scope name store", slog.Any("error", err))
				}
			}
		}
	}

	for _, ref := range refs {
		if ref == nil {
			continue
		}
		if name, ok := names[ref.ID]; ok {
			n := name
			ref.Name = &n
		}
	}
}
