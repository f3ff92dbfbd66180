package graph

import (
	"fmt"
	"strings"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// Node wraps a unit with its resolved edges
type Node struct {
	Unit models.MigrationUnit

	// Dependencies are the unit IDs this node depends on
	Dependencies []string

	// Dependents are the unit IDs that depend on this node
	Dependents []string
}

// Resolution is the outcome of resolving a set of units
type Resolution struct {
	Success bool                   `json:"success"`
	Ordered []models.MigrationUnit `json:"ordered_units"`
	Cycles  [][]string             `json:"cycles,omitempty"`
	Errors  []string               `json:"errors,omitempty"`

	// Nodes maps unit ID to its graph node
	Nodes map[string]*Node `json:"-"`
}

// CycleError is returned when the dependency graph contains cycles
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	if len(e.Cycles) == 1 {
		return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycles[0], " -> "))
	}
	return fmt.Sprintf("%d circular dependencies detected", len(e.Cycles))
}

// Err returns a *CycleError if resolution failed
func (r *Resolution) Err() error {
	if r.Success {
		return nil
	}
	return &CycleError{Cycles: r.Cycles}
}

// Levels groups the ordered units by dependency depth. Units in level 0
// have no resolved dependencies; every other unit sits one level above its
// deepest dependency.
func (r *Resolution) Levels() [][]string {
	depth := make(map[string]int, len(r.Ordered))
	var levels [][]string
	for _, unit := range r.Ordered {
		level := 0
		if node, ok := r.Nodes[unit.ID]; ok {
			for _, dep := range node.Dependencies {
				if d, seen := depth[dep]; seen && d+1 > level {
					level = d + 1
				}
			}
		}
		depth[unit.ID] = level
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], unit.ID)
	}
	return levels
}

// dependencyGraph is the working state of a single Resolve call
type dependencyGraph struct {
	// order holds unit IDs in input order
	order []string

	nodes map[string]*Node

	// edges maps unit ID to the IDs it depends on
	edges map[string][]string

	// reverseEdges maps unit ID to the IDs that depend on it
	reverseEdges map[string][]string

	// duplicates holds repeated unit IDs; only the first occurrence is a node
	duplicates []string
}

// Resolve builds the dependency graph for units, detects cycles and
// produces a topological order. Resolution is atomic: when any cycle
// exists no order is returned.
//
// A repeated unit ID keeps its first occurrence and is reported in Errors
// without failing the resolution. Callers that need unique IDs should run
// the validator first.
func Resolve(units []models.MigrationUnit) *Resolution {
	g := build(units)

	var dupErrs []string
	for _, id := range g.duplicates {
		dupErrs = append(dupErrs, fmt.Sprintf("duplicate unit id %q ignored", id))
	}

	cycles := g.detectCycles()
	if len(cycles) > 0 {
		errs := []string{fmt.Sprintf("found %d circular dependenc%s", len(cycles), plural(len(cycles)))}
		errs = append(errs, dupErrs...)
		for _, cycle := range cycles {
			errs = append(errs, "cycle: "+strings.Join(cycle, " -> "))
		}
		return &Resolution{
			Success: false,
			Ordered: []models.MigrationUnit{},
			Cycles:  cycles,
			Errors:  errs,
			Nodes:   g.nodes,
		}
	}

	return &Resolution{
		Success: true,
		Ordered: g.topologicalSort(),
		Errors:  dupErrs,
		Nodes:   g.nodes,
	}
}

// Edges returns the resolved dependency IDs for every unit
func Edges(units []models.MigrationUnit) map[string][]string {
	return build(units).edges
}

func build(units []models.MigrationUnit) *dependencyGraph {
	g := &dependencyGraph{
		order:        make([]string, 0, len(units)),
		nodes:        make(map[string]*Node, len(units)),
		edges:        make(map[string][]string, len(units)),
		reverseEdges: make(map[string][]string, len(units)),
	}

	// First pass: add all nodes
	for _, unit := range units {
		if _, dup := g.nodes[unit.ID]; dup {
			g.duplicates = append(g.duplicates, unit.ID)
			continue
		}
		g.nodes[unit.ID] = &Node{Unit: unit}
		g.order = append(g.order, unit.ID)
	}

	// Second pass: build edges from internal and component references
	for _, id := range g.order {
		node := g.nodes[id]
		for _, dep := range node.Unit.Dependencies {
			if !dep.Kind.CreatesEdge() {
				continue
			}
			target := ReferenceTarget(dep)
			if _, exists := g.nodes[target]; !exists {
				continue
			}
			if contains(g.edges[id], target) {
				continue
			}
			g.edges[id] = append(g.edges[id], target)
			g.reverseEdges[target] = append(g.reverseEdges[target], id)
		}
	}

	for id, node := range g.nodes {
		node.Dependencies = g.edges[id]
		node.Dependents = g.reverseEdges[id]
	}

	return g
}

// ReferenceTarget maps a declared dependency to a unit ID using the
// trailing segment of its import path, or the raw name when the path has
// no separator.
func ReferenceTarget(dep models.Dependency) string {
	if i := strings.LastIndex(dep.ImportPath, "/"); i >= 0 {
		return dep.ImportPath[i+1:]
	}
	return dep.Name
}

type frame struct {
	id   string
	next int
}

func (g *dependencyGraph) detectCycles() [][]string {
	// 0 = white (unvisited), 1 = gray (on the recursion stack), 2 = black (done)
	color := make(map[string]int, len(g.nodes))
	seen := make(map[string]bool)
	var cycles [][]string

	for _, start := range g.order {
		if color[start] != 0 {
			continue
		}

		stack := []frame{{id: start}}
		path := []string{start}
		position := map[string]int{start: 0}
		color[start] = 1

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.edges[top.id]
			if top.next >= len(deps) {
				color[top.id] = 2
				delete(position, top.id)
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}

			dep := deps[top.next]
			top.next++

			switch color[dep] {
			case 1:
				cycle := make([]string, 0, len(path)-position[dep]+1)
				cycle = append(cycle, path[position[dep]:]...)
				cycle = append(cycle, dep)
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			case 0:
				color[dep] = 1
				position[dep] = len(path)
				path = append(path, dep)
				stack = append(stack, frame{id: dep})
			}
		}
	}

	return cycles
}

// cycleKey returns a rotation-independent key for a closed cycle path
func cycleKey(cycle []string) string {
	body := cycle[:len(cycle)-1]
	if len(body) == 0 {
		return ""
	}
	min := 0
	for i, id := range body {
		if id < body[min] {
			min = i
		}
	}
	rotated := make([]string, 0, len(body))
	rotated = append(rotated, body[min:]...)
	rotated = append(rotated, body[:min]...)
	return strings.Join(rotated, "\x00")
}

func (g *dependencyGraph) topologicalSort() []models.MigrationUnit {
	// Calculate in-degree as the number of unresolved dependencies
	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		inDegree[id] = len(g.edges[id])
	}

	// Seed with zero in-degree nodes in input order
	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]models.MigrationUnit, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, g.nodes[id].Unit)

		for _, dependent := range g.reverseEdges[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return ordered
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
