package pipeline

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"mapagov/internal/catalog"
	"mapagov/internal/logging"
)

// fuzzyRatio computes a similarity ratio in [0,1] between two normalized
// strings from their Levenshtein distance.
func fuzzyRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// matchFuzzy scores every area-scoped entry against the description and
// retains those clearing the threshold, sorted descending by score. The
// sort is stable so equal scores keep catalog order. Returns an empty
// slice, never nil, when nothing clears the bar.
func matchFuzzy(description string, entries []catalog.Entry, threshold float64) []Candidate {
	normalized := catalog.Normalize(description)
	candidates := []Candidate{}
	if normalized == "" {
		return candidates
	}

	for _, e := range entries {
		score := fuzzyRatio(normalized, catalog.Normalize(e.Activity))
		if score >= threshold {
			candidates = append(candidates, Candidate{Entry: e, Score: score, Strategy: StrategyFuzzy})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > 0 {
		logging.PipelineDebug("Fuzzy match: %q -> %d candidates, best %.3f (%s)",
			description, len(candidates), candidates[0].Score, candidates[0].Entry.Code)
	}
	return candidates
}
