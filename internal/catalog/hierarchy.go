package catalog

// Hierarchy is the read-only nested view of the catalog:
// macroprocess -> process -> subprocess -> ordered list of entries.
// Built once from a store snapshot and safely shared across concurrent
// resolutions; callers must not mutate it.
type Hierarchy map[string]map[string]map[string][]Entry

// BuildHierarchy assembles a hierarchy from entries in iteration order.
// Entry order inside each subprocess leaf follows the input slice, which
// the store guarantees to be stable insertion order.
func BuildHierarchy(entries []Entry) Hierarchy {
	h := make(Hierarchy)
	for _, e := range entries {
		procs, ok := h[e.Macroprocess]
		if !ok {
			procs = make(map[string]map[string][]Entry)
			h[e.Macroprocess] = procs
		}
		subs, ok := procs[e.Process]
		if !ok {
			subs = make(map[string][]Entry)
			procs[e.Process] = subs
		}
		subs[e.Subprocess] = append(subs[e.Subprocess], e)
	}
	return h
}

// Macroprocesses returns the macroprocess names, sorted-free: callers that
// need a stable display order sort on their side.
func (h Hierarchy) Macroprocesses() []string {
	out := make([]string, 0, len(h))
	for macro := range h {
		out = append(out, macro)
	}
	return out
}

// Processes lists the processes under a macroprocess. Unknown keys yield an
// empty slice so drill-down UIs degrade gracefully.
func (h Hierarchy) Processes(macro string) []string {
	procs := h[macro]
	out := make([]string, 0, len(procs))
	for proc := range procs {
		out = append(out, proc)
	}
	return out
}

// Subprocesses lists the subprocesses under (macroprocess, process).
func (h Hierarchy) Subprocesses(macro, proc string) []string {
	subs := h[macro][proc]
	out := make([]string, 0, len(subs))
	for sub := range subs {
		out = append(out, sub)
	}
	return out
}

// Activities returns the entries under a full (macro, proc, sub) path.
// Never nil.
func (h Hierarchy) Activities(macro, proc, sub string) []Entry {
	entries := h[macro][proc][sub]
	if entries == nil {
		return []Entry{}
	}
	return entries
}

// Contains reports whether the anchor names an existing path in the
// hierarchy, at whatever depth the anchor is filled in.
func (h Hierarchy) Contains(a Anchor) bool {
	procs, ok := h[a.Macroprocess]
	if !ok {
		return false
	}
	if a.Process == "" {
		return true
	}
	subs, ok := procs[a.Process]
	if !ok {
		return false
	}
	if a.Subprocess == "" {
		return true
	}
	_, ok = subs[a.Subprocess]
	return ok
}
