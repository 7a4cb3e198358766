package correlator

import "slices"

// Gather accumulates one contribution per expected participant. It is stored
// as the Payload of a Request by handlers that scatter a sub-request to
// several lobby members.
type Gather[T any] struct {
	expected []string
	received map[string]T
	order    []string
	merge    func(acc, v T) T
	done     bool
}

// NewGather expects one contribution from each id in expected. merge folds a
// contribution into the running aggregate returned by Finalize.
func NewGather[T any](expected []string, merge func(acc, v T) T) *Gather[T] {
	return &Gather[T]{
		expected: slices.Clone(expected),
		received: make(map[string]T, len(expected)),
		merge:    merge,
	}
}

// Add records the contribution of from. It returns false for participants
// that were not asked, for repeat contributions, and once the gather has been
// finalized.
func (g *Gather[T]) Add(from string, v T) bool {
	if g.done || !slices.Contains(g.expected, from) {
		return false
	}
	if _, seen := g.received[from]; seen {
		return false
	}
	g.received[from] = v
	g.order = append(g.order, from)
	return true
}

// Ready reports whether every expected participant still in active has
// contributed. Participants that left or were eliminated since the scatter
// are no longer waited on.
func (g *Gather[T]) Ready(active []string) bool {
	if g.done {
		return false
	}
	for _, id := range g.expected {
		if !slices.Contains(active, id) {
			continue
		}
		if _, ok := g.received[id]; !ok {
			return false
		}
	}
	return true
}

// Finalize marks the gather as delivered and returns the merged contributions
// in arrival order. A second call returns ok == false.
func (g *Gather[T]) Finalize() (result T, ok bool) {
	if g.done {
		return result, false
	}
	g.done = true
	for _, id := range g.order {
		result = g.merge(result, g.received[id])
	}
	return result, true
}

// Contributors returns who has contributed so far, in arrival order.
func (g *Gather[T]) Contributors() []string { return slices.Clone(g.order) }
