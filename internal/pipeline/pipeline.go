package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mapagov/internal/catalog"
	"mapagov/internal/config"
	"mapagov/internal/embedding"
	"mapagov/internal/generative"
	"mapagov/internal/logging"
	"mapagov/internal/store"
)

// CatalogSource is the slice of the catalog store the cascade needs.
// *store.CatalogStore satisfies it.
type CatalogSource interface {
	Entries(area string) ([]catalog.Entry, error)
	AllEntries() ([]catalog.Entry, error)
	Insert(e catalog.Entry) error
	NextCode(area string) (string, error)
	SearchVectors(area string, query []float32, k int) ([]store.VectorHit, error)
	UpsertVector(code, area, model string, vec []float32) error
}

// Pipeline orchestrates the resolution cascade. It is stateless across
// calls: multi-turn state (anchors, partial answers) is carried by the
// caller, so replicas can serve any request.
type Pipeline struct {
	store        CatalogSource
	engine       embedding.Engine   // nil disables the semantic strategy
	labeler      generative.Labeler // nil disables RAG-assisted creation
	cfg          config.PipelineConfig
	embedTimeout time.Duration
}

// New wires a resolution pipeline. engine and labeler are optional; the
// cascade degrades gracefully without them.
func New(src CatalogSource, engine embedding.Engine, labeler generative.Labeler, cfg config.PipelineConfig, embedTimeout time.Duration) *Pipeline {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 0.82
	}
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = 0.75
	}
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = 5
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 3
	}
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	return &Pipeline{
		store:        src,
		engine:       engine,
		labeler:      labeler,
		cfg:          cfg,
		embedTimeout: embedTimeout,
	}
}

// Resolve runs the cascade for one description/area pair. Strategies run
// strictly in cost order (exact, fuzzy, semantic) and the first qualifying
// match wins, so the paid embedding call only happens when the free string
// comparisons fail. Exhaustion is not an error: it yields a
// dropdown_required envelope carrying the full hierarchy.
func (p *Pipeline) Resolve(ctx context.Context, description, area string, author catalog.Author) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "Resolve")
	defer timer.Stop()

	description = strings.TrimSpace(description)
	area = strings.TrimSpace(area)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if area == "" {
		return nil, fmt.Errorf("%w: area is required", ErrValidation)
	}

	reqID := uuid.NewString()
	logging.Pipeline("[%s] Resolve area=%s author=%s description=%q", reqID, area, author.ID, description)

	entries, err := p.store.Entries(area)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for area %s: %w", area, err)
	}

	// Strategy 1: exact.
	if entry := matchExact(description, entries); entry != nil {
		logging.Pipeline("[%s] Resolved via exact match: %s", reqID, entry.Code)
		res := newResult(OriginMatchExact)
		res.Score = 1.0
		res.Success = true
		res.Activity = entry
		res.Actions = []Action{ActionConfirm, ActionSelectManually}
		return res, nil
	}

	// Strategy 2: fuzzy.
	if candidates := matchFuzzy(description, entries, p.cfg.FuzzyThreshold); len(candidates) > 0 {
		logging.Pipeline("[%s] Resolved via fuzzy match: %s (%.3f)", reqID, candidates[0].Entry.Code, candidates[0].Score)
		res := newResult(OriginMatchFuzzy)
		res.Score = candidates[0].Score
		res.Success = true
		res.Activity = &candidates[0].Entry
		res.Candidates = p.topCandidates(candidates)
		res.Actions = []Action{ActionConfirm, ActionSelectManually}
		return res, nil
	}

	// Strategy 3: semantic.
	if candidates := p.matchSemantic(ctx, description, area); len(candidates) > 0 && candidates[0].Score >= p.cfg.SemanticThreshold {
		logging.Pipeline("[%s] Resolved via semantic match: %s (%.3f)", reqID, candidates[0].Entry.Code, candidates[0].Score)
		res := newResult(OriginSemantic)
		res.Score = candidates[0].Score
		res.Success = true
		res.Activity = &candidates[0].Entry
		res.Candidates = p.topCandidates(candidates)
		res.Actions = []Action{ActionConfirm, ActionSelectManually}
		return res, nil
	}

	// Exhaustion: hand the full hierarchy to the caller for manual
	// drill-down.
	logging.Pipeline("[%s] No strategy qualified, manual selection required", reqID)
	hierarchy, err := p.BrowseHierarchy()
	if err != nil {
		return nil, err
	}
	res := newResult(OriginDropdownRequired)
	res.Actions = []Action{ActionSelectManually}
	res.Hierarchy = hierarchy
	return res, nil
}

// topCandidates bounds the candidate list attached to an envelope.
func (p *Pipeline) topCandidates(candidates []Candidate) []Candidate {
	if len(candidates) > p.cfg.MaxCandidates {
		candidates = candidates[:p.cfg.MaxCandidates]
	}
	return candidates
}

// BrowseHierarchy returns the full catalog hierarchy for drill-down.
func (p *Pipeline) BrowseHierarchy() (catalog.Hierarchy, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "BrowseHierarchy")
	defer timer.Stop()

	entries, err := p.store.AllEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog hierarchy: %w", err)
	}
	return catalog.BuildHierarchy(entries), nil
}
