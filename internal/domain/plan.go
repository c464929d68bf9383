package domain

// Phase is a set of steps with no dependency edges among them, scheduled
// together. Steps keep their recipe declaration order within a phase for
// deterministic reporting.
type Phase struct {
	// Index is the zero-based position of this phase in the plan.
	Index int `json:"index"`

	// Steps are the step names scheduled in this phase.
	Steps []string `json:"steps"`
}

// ExecutionPlan is the ordered sequence of phases derived from a recipe's
// dependency graph.
//
// Invariants:
//   - every step appears in exactly one phase
//   - a step's phase index is strictly greater than the phase index of
//     every step it depends on
type ExecutionPlan struct {
	// Phases are executed strictly in order; steps within a phase may
	// run concurrently.
	Phases []Phase `json:"phases"`

	// Depths maps step name to dependency depth (phase index).
	Depths map[string]int `json:"depths"`
}

// StepCount returns the total number of steps across all phases.
func (p *ExecutionPlan) StepCount() int {
	n := 0
	for i := range p.Phases {
		n += len(p.Phases[i].Steps)
	}
	return n
}

// MaxDepth returns the number of phases minus one, or zero for an empty plan.
func (p *ExecutionPlan) MaxDepth() int {
	if len(p.Phases) == 0 {
		return 0
	}
	return len(p.Phases) - 1
}

// PhaseOf returns the phase index containing the named step, or -1.
func (p *ExecutionPlan) PhaseOf(name string) int {
	depth, ok := p.Depths[name]
	if !ok {
		return -1
	}
	return depth
}
