package provisioning

import (
	"fmt"
	"time"
)

// Phase defines a single step of a sequential bootstrap.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the logic for this phase.
	Provision(ctx *Context) error
}

type funcPhase struct {
	name string
	fn   func(ctx *Context) error
}

// PhaseFunc adapts a function to Phase.
func PhaseFunc(name string, fn func(ctx *Context) error) Phase {
	return &funcPhase{name: name, fn: fn}
}

func (p *funcPhase) Name() string                 { return p.name }
func (p *funcPhase) Provision(ctx *Context) error { return p.fn(ctx) }

// RunPhases executes phases sequentially and stops at the first failure.
// Cancellation is checked between phases.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting %d phases...", len(phases))

	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s phase not started: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		ctx.Observer.Printf("Phase %d/%d: %s", i+1, len(phases), phase.Name())
		LogPhaseStart(ctx.Observer, phase.Name())

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, phase.Name(), time.Since(phaseStart))
	}

	ctx.Observer.Printf("All phases completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
