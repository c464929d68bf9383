// Package plan builds execution plans from recipe steps.
//
// The resolver turns a recipe's dependsOn declarations into an ordered
// sequence of phases: each phase holds steps whose dependencies are all
// satisfied by strictly earlier phases, so steps within a phase can run
// concurrently. Cycles and unknown dependency references are detected
// before any scheduling happens.
//
// Import rules:
//   - CAN import: internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/engine, internal/tool, internal/recipe
package plan

import (
	"fmt"
	"strings"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// DFS colors for cycle detection.
const (
	white = 0 // unvisited
	gray  = 1 // in current path
	black = 2 // finished
)

// Create builds an ExecutionPlan from the given steps.
//
// It fails with ErrUnknownDependency if any dependsOn references a step
// name that does not exist, with ErrDuplicateStepName if two steps share a
// name, and with ErrCyclicDependency (naming the cycle's members) if any
// step transitively depends on itself. No partial plan is returned on error.
//
// Each step's depth is 1 + the maximum depth of its dependencies, with
// depth 0 for steps without dependencies; steps are grouped by depth into
// phases, preserving recipe declaration order within a phase for
// deterministic reporting.
//
// The advisory `parallel` hint on a step never affects placement: a step
// marked non-parallel still shares a phase with independent siblings,
// since inter-step isolation is the orchestrator's job, not the step's.
func Create(steps []domain.Step) (*domain.ExecutionPlan, error) {
	if len(steps) == 0 {
		return &domain.ExecutionPlan{Depths: map[string]int{}}, nil
	}

	index := make(map[string]int, len(steps))
	for i := range steps {
		name := steps[i].Name
		if name == "" {
			return nil, fmt.Errorf("%w: step %d", forgeerrors.ErrStepNameEmpty, i)
		}
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("%w: %q", forgeerrors.ErrDuplicateStepName, name)
		}
		index[name] = i
	}

	// Validate dependency references before any traversal.
	for i := range steps {
		for _, dep := range steps[i].DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("%w: step %q depends on %q",
					forgeerrors.ErrUnknownDependency, steps[i].Name, dep)
			}
		}
	}

	if cycle := findCycle(steps, index); len(cycle) > 0 {
		return nil, fmt.Errorf("%w: %s", forgeerrors.ErrCyclicDependency,
			strings.Join(cycle, " -> "))
	}

	depths := computeDepths(steps, index)

	maxDepth := 0
	for _, d := range depths {
		if d > maxDepth {
			maxDepth = d
		}
	}

	phases := make([]domain.Phase, maxDepth+1)
	for i := range phases {
		phases[i].Index = i
	}
	// Declaration order within a phase falls out of iterating steps in order.
	for i := range steps {
		d := depths[steps[i].Name]
		phases[d].Steps = append(phases[d].Steps, steps[i].Name)
	}

	return &domain.ExecutionPlan{Phases: phases, Depths: depths}, nil
}

// findCycle runs a depth-first traversal with an in-progress marker per
// node. If a gray node is revisited, the cycle path is reconstructed and
// returned in forward order with the entry node repeated at the end
// ("a -> b -> c -> a"). Returns nil when the graph is acyclic.
func findCycle(steps []domain.Step, index map[string]int) []string {
	color := make(map[string]int, len(steps))
	parent := make(map[string]string, len(steps))

	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		color[name] = gray
		for _, dep := range steps[index[name]].DependsOn {
			switch color[dep] {
			case gray:
				// Reconstruct the path back from name to dep.
				cycle = []string{dep}
				for cur := name; cur != dep; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, dep)
				// Reverse into forward order.
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return true
			case white:
				parent[dep] = name
				if dfs(dep) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}

	for i := range steps {
		if color[steps[i].Name] == white {
			if dfs(steps[i].Name) {
				return cycle
			}
		}
	}
	return nil
}

// computeDepths memoizes each step's dependency depth. Only called on
// acyclic graphs, so the recursion terminates.
func computeDepths(steps []domain.Step, index map[string]int) map[string]int {
	depths := make(map[string]int, len(steps))
	visited := make(map[string]bool, len(steps))

	var depth func(name string) int
	depth = func(name string) int {
		if visited[name] {
			return depths[name]
		}
		visited[name] = true

		d := 0
		for _, dep := range steps[index[name]].DependsOn {
			if dd := depth(dep) + 1; dd > d {
				d = dd
			}
		}
		depths[name] = d
		return d
	}

	for i := range steps {
		depth(steps[i].Name)
	}
	return depths
}
