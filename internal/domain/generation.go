package domain

// Generations tracks a monotonic counter per session name, used to
// invalidate in-flight capture work across mode transitions, resizes, and
// lifecycle events. The zero value is ready to use.
type Generations struct {
	counters map[string]uint64
}

// NewGenerations returns an empty generation table.
func NewGenerations() *Generations {
	return &Generations{counters: make(map[string]uint64)}
}

// Bump increments and returns the new generation for a session, creating
// its entry at 0 -> 1 if absent.
func (g *Generations) Bump(sessionName string) uint64 {
	if g.counters == nil {
		g.counters = make(map[string]uint64)
	}
	g.counters[sessionName]++
	return g.counters[sessionName]
}

// Reset zeroes a session's generation, used when its live identity is
// being replaced (e.g. Orphan recovery re-launching a dead session) so the
// next Bump produces 1 rather than continuing from the old identity's
// counter.
func (g *Generations) Reset(sessionName string) {
	if g.counters == nil {
		g.counters = make(map[string]uint64)
		return
	}
	delete(g.counters, sessionName)
}

// Current returns a session's generation without mutating it.
func (g *Generations) Current(sessionName string) uint64 {
	return g.counters[sessionName]
}

// IsStale reports whether a result generation differs from the session's
// current generation, i.e. should be discarded before any state mutation.
func (g *Generations) IsStale(sessionName string, resultGeneration uint64) bool {
	return resultGeneration != g.counters[sessionName]
}

// DropMissing retains only the generations belonging to names present in
// activeNames, so generation entries for workspaces that no longer exist
// don't accumulate indefinitely.
func (g *Generations) DropMissing(activeNames map[string]struct{}) {
	for name := range g.counters {
		if _, ok := activeNames[name]; !ok {
			delete(g.counters, name)
		}
	}
}
