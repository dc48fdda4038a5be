// Package dag orders schema objects that depend on one another, such as
// virtual cubes on their base cubes, and finds what a change reaches.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// CycleError reports a dependency cycle. Path starts and ends with the
// same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

// Graph holds values by id with dependency edges between them. Iteration
// follows insertion order so results are deterministic.
type Graph[T any] struct {
	values map[string]T
	ids    []string
	deps   map[string][]string // id -> ids it depends on
	users  map[string][]string // id -> ids depending on it
}

func New[T any]() *Graph[T] {
	return &Graph[T]{
		values: make(map[string]T),
		deps:   make(map[string][]string),
		users:  make(map[string][]string),
	}
}

// Add stores v under id, replacing an earlier value.
func (g *Graph[T]) Add(id string, v T) {
	if _, ok := g.values[id]; !ok {
		g.ids = append(g.ids, id)
	}
	g.values[id] = v
}

// Depend records that id depends on other. Both must have been added.
func (g *Graph[T]) Depend(id, other string) error {
	if _, ok := g.values[id]; !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	if _, ok := g.values[other]; !ok {
		return fmt.Errorf("%q depends on unknown node %q", id, other)
	}
	if id == other {
		return &CycleError{Path: []string{id, id}}
	}
	if !slices.Contains(g.deps[id], other) {
		g.deps[id] = append(g.deps[id], other)
		g.users[other] = append(g.users[other], id)
	}
	return nil
}

func (g *Graph[T]) Get(id string) (T, bool) {
	v, ok := g.values[id]
	return v, ok
}

func (g *Graph[T]) Len() int { return len(g.ids) }

// DependsOn lists the direct dependencies of id.
func (g *Graph[T]) DependsOn(id string) []string {
	return slices.Clone(g.deps[id])
}

// Cycle returns a dependency cycle, or nil when there is none.
func (g *Graph[T]) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.ids))
	var stack []string
	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = active
		stack = append(stack, id)
		for _, d := range g.deps[id] {
			switch state[d] {
			case active:
				start := slices.Index(stack, d)
				return append(slices.Clone(stack[start:]), d)
			case unvisited:
				if c := visit(d); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}
	for _, id := range g.ids {
		if state[id] == unvisited {
			if c := visit(id); c != nil {
				return c
			}
		}
	}
	return nil
}

// Sort returns the values with every dependency before its dependents.
func (g *Graph[T]) Sort() ([]T, error) {
	if c := g.Cycle(); c != nil {
		return nil, &CycleError{Path: c}
	}
	pending := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		pending[id] = len(g.deps[id])
	}
	out := make([]T, 0, len(g.ids))
	emitted := make(map[string]bool, len(g.ids))
	for len(out) < len(g.ids) {
		for _, id := range g.ids {
			if emitted[id] || pending[id] > 0 {
				continue
			}
			emitted[id] = true
			out = append(out, g.values[id])
			for _, u := range g.users[id] {
				pending[u]--
			}
		}
	}
	return out, nil
}

// Dependents returns ids and everything that depends on them, directly
// or not, in insertion order.
func (g *Graph[T]) Dependents(ids ...string) []string {
	reached := make(map[string]bool)
	queue := slices.Clone(ids)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			continue
		}
		reached[id] = true
		queue = append(queue, g.users[id]...)
	}
	var out []string
	for _, id := range g.ids {
		if reached[id] {
			out = append(out, id)
		}
	}
	return out
}
