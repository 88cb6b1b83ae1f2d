// Package pipeline implements the activity resolution cascade: a free-text
// activity description plus an organizational area is resolved against the
// canonical catalog by successive strategies (exact, fuzzy, semantic), with
// manual hierarchy selection and RAG-assisted entry creation as fallbacks.
package pipeline

import (
	"errors"

	"mapagov/internal/catalog"
)

// Origin tags how a resolution result was produced.
type Origin string

const (
	OriginMatchExact       Origin = "match_exact"
	OriginMatchFuzzy       Origin = "match_fuzzy"
	OriginSemantic         Origin = "semantic"
	OriginDropdownRequired Origin = "dropdown_required"
	OriginRAGAwaiting      Origin = "rag_aguardando_descricao"
	OriginNew              Origin = "nova"
)

// Action is a follow-up the caller may offer the user.
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionSelectManually Action = "select_manually"
)

// Strategy identifies which matching strategy produced a candidate.
type Strategy string

const (
	StrategyExact    Strategy = "exact"
	StrategyFuzzy    Strategy = "fuzzy"
	StrategySemantic Strategy = "semantic"
)

// ErrValidation rejects malformed input before any strategy runs.
var ErrValidation = errors.New("invalid resolution input")

// Candidate is a transient match produced by one strategy, consumed by the
// orchestrator and discarded once the response envelope is built.
type Candidate struct {
	Entry    catalog.Entry `json:"activity"`
	Score    float64       `json:"score"`
	Strategy Strategy      `json:"strategy"`
}

// Result is the uniform envelope returned to callers. Every call produces a
// well-formed Result; soft outcomes travel through Origin/Success, never
// through control-flow errors.
type Result struct {
	Origin             Origin            `json:"origin"`
	Score              float64           `json:"score"`
	Success            bool              `json:"success"`
	Activity           *catalog.Entry    `json:"activity"`
	Candidates         []Candidate       `json:"candidates"`
	Actions            []Action          `json:"actions"`
	InheritedHierarchy *catalog.Anchor   `json:"inherited_hierarchy"`
	Hierarchy          catalog.Hierarchy `json:"hierarchy,omitempty"`
	CodeType           string            `json:"code_type,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// newResult returns an envelope with the slice fields non-nil so JSON
// consumers always see arrays.
func newResult(origin Origin) *Result {
	return &Result{
		Origin:     origin,
		Candidates: []Candidate{},
		Actions:    []Action{},
	}
}
