package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mapagov/internal/catalog"
	"mapagov/internal/logging"
	"mapagov/internal/store"
)

// ProposeWithAnchor is Phase A of RAG-assisted catalog extension: the user
// has anchored a hierarchy path but not yet described the activity. The
// envelope signals the caller to collect a free-text description and call
// FinalizeWithDescription with the same anchor. No state is held here; the
// caller owns the anchor between phases.
func (p *Pipeline) ProposeWithAnchor(anchor catalog.Anchor) (*Result, error) {
	if err := p.validateAnchor(anchor); err != nil {
		return nil, err
	}

	logging.Pipeline("Proposal anchored at %s/%s/%s, awaiting description",
		anchor.Macroprocess, anchor.Process, anchor.Subprocess)

	res := newResult(OriginRAGAwaiting)
	res.Success = true
	res.InheritedHierarchy = &anchor
	return res, nil
}

// FinalizeWithDescription is Phase B: synthesize a canonical label for the
// described activity, mint a code from the area's sequence counter and
// persist the entry. Generative failures are retryable and surface as
// Success=false with a reason; a duplicate code is a broken store invariant
// and propagates as a fatal error.
func (p *Pipeline) FinalizeWithDescription(ctx context.Context, description string, anchor catalog.Anchor, area string, author catalog.Author) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "FinalizeWithDescription")
	defer timer.Stop()

	description = strings.TrimSpace(description)
	area = strings.TrimSpace(area)
	switch {
	case description == "":
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	case area == "":
		return nil, fmt.Errorf("%w: area is required", ErrValidation)
	case p.labeler == nil:
		return nil, fmt.Errorf("%w: no generative labeler configured", ErrValidation)
	}
	if err := p.validateAnchor(anchor); err != nil {
		return nil, err
	}

	label, err := p.labeler.ActivityLabel(ctx, description, anchor)
	if err != nil {
		// Retryable: the caller decides retry vs. abort. No code has been
		// allocated at this point.
		logging.Get(logging.CategoryPipeline).Warn("Generative label failed: %v", err)
		res := newResult(OriginNew)
		res.InheritedHierarchy = &anchor
		res.Error = err.Error()
		return res, nil
	}

	code, err := p.store.NextCode(area)
	if err != nil {
		return nil, fmt.Errorf("failed to mint code for area %s: %w", area, err)
	}

	entry := catalog.Entry{
		Area:         area,
		Macroprocess: anchor.Macroprocess,
		Process:      anchor.Process,
		Subprocess:   anchor.Subprocess,
		Activity:     label,
		Code:         code,
		CodeType:     catalog.CodeTypeGeneratedRAG,
		Author:       author.Name,
	}
	if err := p.store.Insert(entry); err != nil {
		if errors.Is(err, store.ErrDuplicateCode) {
			// Sequence counter corruption. Never retried, never silently
			// remapped to a fresh code.
			logging.Get(logging.CategoryPipeline).Error("Fatal code collision on %s: %v", code, err)
			return nil, err
		}
		return nil, fmt.Errorf("failed to persist new entry: %w", err)
	}

	logging.Pipeline("Minted catalog entry %s (%q) for author=%s", code, label, author.ID)
	p.indexNewEntry(ctx, entry)

	res := newResult(OriginNew)
	res.Success = true
	res.Activity = &entry
	res.InheritedHierarchy = &anchor
	res.CodeType = catalog.CodeTypeGeneratedRAG
	res.Actions = []Action{ActionConfirm}
	return res, nil
}

// validateAnchor rejects anchors that are incomplete or that name a path
// the catalog hierarchy does not have. New entries extend an existing
// subprocess; they never invent hierarchy levels.
func (p *Pipeline) validateAnchor(anchor catalog.Anchor) error {
	if !anchor.Complete() {
		return fmt.Errorf("%w: anchor requires macroprocess, process and subprocess", ErrValidation)
	}
	hierarchy, err := p.BrowseHierarchy()
	if err != nil {
		return fmt.Errorf("failed to load hierarchy for anchor validation: %w", err)
	}
	if !hierarchy.Contains(anchor) {
		return fmt.Errorf("%w: anchor %s/%s/%s does not exist in the catalog hierarchy",
			ErrValidation, anchor.Macroprocess, anchor.Process, anchor.Subprocess)
	}
	return nil
}

// indexNewEntry adds the freshly minted entry to the vector index so later
// semantic queries can find it. Best effort: indexing failures only log.
func (p *Pipeline) indexNewEntry(ctx context.Context, entry catalog.Entry) {
	if p.engine == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	vec, err := p.engine.Embed(ctx, catalog.Normalize(entry.Activity))
	if err != nil {
		logging.Get(logging.CategoryPipeline).Warn("Could not embed new entry %s: %v", entry.Code, err)
		return
	}
	if err := p.store.UpsertVector(entry.Code, entry.Area, p.engine.Name(), vec); err != nil {
		logging.Get(logging.CategoryPipeline).Warn("Could not index new entry %s: %v", entry.Code, err)
	}
}
