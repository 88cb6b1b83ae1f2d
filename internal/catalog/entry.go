// Package catalog defines the canonical activity catalog types used across
// the resolution pipeline: entries, the browsable hierarchy and the anchor
// a user selects during manual drill-down.
package catalog

import "fmt"

// CodeType marks how an entry's code was issued.
const (
	// CodeTypeOfficial marks entries seeded from the official catalog.
	CodeTypeOfficial = "oficial"
	// CodeTypeGeneratedRAG marks entries minted by the RAG-assisted creation
	// flow. Downstream consumers flag these for later human validation.
	CodeTypeGeneratedRAG = "oficial_gerado_rag"
)

// Entry is an immutable canonical catalog record.
// (Macroprocess, Process, Subprocess, Activity) is unique within an area;
// Code is unique and never reused once issued.
type Entry struct {
	Area         string `json:"area" yaml:"area"`
	Macroprocess string `json:"macroprocess" yaml:"macroprocess"`
	Process      string `json:"process" yaml:"process"`
	Subprocess   string `json:"subprocess" yaml:"subprocess"`
	Activity     string `json:"activity" yaml:"activity"`
	Code         string `json:"code" yaml:"code"`
	CodeType     string `json:"code_type,omitempty" yaml:"code_type,omitempty"`
	Author       string `json:"author,omitempty" yaml:"author,omitempty"`
}

// Key returns the hierarchy tuple as a single comparable string.
func (e Entry) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", e.Macroprocess, e.Process, e.Subprocess, e.Activity)
}

// Anchor is a user-selected partial hierarchy path used to scope
// RAG-assisted entry creation. Not persisted beyond the session; the
// caller carries it between the two creation phases.
type Anchor struct {
	Macroprocess string `json:"macroprocess" yaml:"macroprocess"`
	Process      string `json:"process" yaml:"process"`
	Subprocess   string `json:"subprocess" yaml:"subprocess"`
}

// Complete reports whether all three levels of the anchor are set.
func (a Anchor) Complete() bool {
	return a.Macroprocess != "" && a.Process != "" && a.Subprocess != ""
}

// Author identifies the user requesting a resolution or minting an entry.
type Author struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
