package pipeline

import (
	"context"

	"mapagov/internal/catalog"
	"mapagov/internal/logging"
)

// matchSemantic embeds the description and searches the area-scoped vector
// index for nearest neighbors. Provider outages degrade to an empty result
// so the cascade falls through to manual selection; they are never treated
// as a fatal pipeline error. Negative cosine similarities are clamped to 0
// to keep candidate scores in [0,1].
func (p *Pipeline) matchSemantic(ctx context.Context, description, area string) []Candidate {
	candidates := []Candidate{}
	if p.engine == nil {
		logging.PipelineDebug("Semantic strategy skipped: no embedding engine")
		return candidates
	}

	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	vec, err := p.engine.Embed(ctx, catalog.Normalize(description))
	if err != nil {
		logging.Get(logging.CategoryPipeline).Warn("Semantic strategy degraded, embed failed: %v", err)
		return candidates
	}

	hits, err := p.store.SearchVectors(area, vec, p.cfg.SemanticTopK)
	if err != nil {
		logging.Get(logging.CategoryPipeline).Warn("Semantic strategy degraded, vector search failed: %v", err)
		return candidates
	}

	for _, hit := range hits {
		score := hit.Similarity
		if score < 0 {
			score = 0
		}
		candidates = append(candidates, Candidate{Entry: hit.Entry, Score: score, Strategy: StrategySemantic})
	}

	if len(candidates) > 0 {
		logging.PipelineDebug("Semantic match: %q -> %d candidates, best %.3f (%s)",
			description, len(candidates), candidates[0].Score, candidates[0].Entry.Code)
	}
	return candidates
}
