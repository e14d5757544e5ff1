package graph

import (
	"fmt"
	"strings"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
)

// ServiceGraph is the dependency DAG of one deployment, an adjacency list
// keyed by service name. It is built once at load time; dangling references
// and duplicate names fail construction.
type ServiceGraph struct {
	specs []model.ServiceSpec
	index map[string]int // name -> declaration position
}

// New validates names and dependency references and builds the graph.
func New(specs []model.ServiceSpec) (*ServiceGraph, error) {
	index := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, errors.NewDuplicateServiceError(
				fmt.Sprintf("service at position %d has no name", i), nil)
		}
		if _, exists := index[spec.Name]; exists {
			return nil, errors.NewDuplicateServiceError(
				fmt.Sprintf("service name %q declared more than once", spec.Name), nil,
			).WithContext("service", spec.Name)
		}
		index[spec.Name] = i
	}

	for _, spec := range specs {
		for _, dep := range spec.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, errors.NewUnknownDependencyError(
					fmt.Sprintf("service %q depends on undeclared service %q", spec.Name, dep), nil,
				).WithContext("service", spec.Name).WithContext("dependency", dep)
			}
			if dep == spec.Name {
				return nil, errors.NewCycleError(
					fmt.Sprintf("service %q depends on itself", spec.Name), nil,
				).WithContext("service", spec.Name)
			}
		}
	}

	return &ServiceGraph{specs: specs, index: index}, nil
}

// Order returns the bring-up sequence: every dependency precedes its
// dependents. Kahn's algorithm with a declaration-order tie-break, so the
// result is stable across runs. A cycle fails with the participating
// services named in cycle order.
func (g *ServiceGraph) Order() ([]model.ServiceSpec, error) {
	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, errors.NewCycleError(
			fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")), nil,
		).WithContext("cycle", strings.Join(cycle, " -> "))
	}

	inDegree := make([]int, len(g.specs))
	dependents := make([][]int, len(g.specs))

	for i, spec := range g.specs {
		for _, dep := range spec.DependsOn {
			d := g.index[dep]
			dependents[d] = append(dependents[d], i)
			inDegree[i]++
		}
	}

	// Ready set kept in declaration order: scan positions ascending and
	// re-scan after each removal. Deployments are small; clarity wins over
	// a priority queue.
	scheduled := make([]bool, len(g.specs))
	ordered := make([]model.ServiceSpec, 0, len(g.specs))

	for len(ordered) < len(g.specs) {
		next := -1
		for i := range g.specs {
			if !scheduled[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			// findCycle above makes this unreachable; keep the guard so a
			// future edit cannot turn it into an infinite loop.
			return nil, errors.NewCycleError("dependency cycle detected during ordering", nil)
		}

		scheduled[next] = true
		ordered = append(ordered, g.specs[next])
		for _, dependent := range dependents[next] {
			inDegree[dependent]--
		}
	}

	return ordered, nil
}

// findCycle runs DFS and returns the service names participating in the
// first cycle found, in cycle order, or nil for an acyclic graph.
func (g *ServiceGraph) findCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make([]int, len(g.specs))
	var stack []int
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		state[i] = inStack
		stack = append(stack, i)

		for _, dep := range g.specs[i].DependsOn {
			d := g.index[dep]
			switch state[d] {
			case inStack:
				// Extract the cycle from the DFS stack starting at d.
				start := 0
				for j, s := range stack {
					if s == d {
						start = j
						break
					}
				}
				for _, s := range stack[start:] {
					cycle = append(cycle, g.specs[s].Name)
				}
				cycle = append(cycle, g.specs[d].Name)
				return true
			case unvisited:
				if visit(d) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[i] = done
		return false
	}

	for i := range g.specs {
		if state[i] == unvisited && visit(i) {
			return cycle
		}
	}
	return nil
}

// Reverse returns the teardown sequence: the exact reverse of bring-up, so
// dependents stop before the services they depend on. Each service appears
// exactly once in each direction.
func Reverse(ordered []model.ServiceSpec) []model.ServiceSpec {
	reversed := make([]model.ServiceSpec, len(ordered))
	for i, spec := range ordered {
		reversed[len(ordered)-1-i] = spec
	}
	return reversed
}
