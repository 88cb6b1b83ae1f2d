// Package generative synthesizes canonical activity labels for RAG-assisted
// catalog extension. Given a free-text description and the hierarchy anchor
// the user selected, it produces a single verb-phrase label consistent with
// the catalog's naming conventions.
package generative

import (
	"context"

	"mapagov/internal/catalog"
)

// Labeler produces a canonical activity label for a new catalog entry.
type Labeler interface {
	// ActivityLabel returns a single-line label for the described activity,
	// phrased consistently with the anchor's macroprocess/process/subprocess.
	ActivityLabel(ctx context.Context, description string, anchor catalog.Anchor) (string, error)
}
