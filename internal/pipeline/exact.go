package pipeline

import (
	"mapagov/internal/catalog"
	"mapagov/internal/logging"
)

// matchExact returns the first area-scoped entry whose normalized activity
// text equals the normalized description, or nil. No partial credit: any
// non-equal normalized string is a non-match regardless of length. Ties are
// broken by catalog iteration order, which the store keeps stable.
func matchExact(description string, entries []catalog.Entry) *catalog.Entry {
	normalized := catalog.Normalize(description)
	if normalized == "" {
		return nil
	}

	for i := range entries {
		if catalog.Normalize(entries[i].Activity) == normalized {
			logging.PipelineDebug("Exact match: %q -> %s", description, entries[i].Code)
			return &entries[i]
		}
	}
	return nil
}
