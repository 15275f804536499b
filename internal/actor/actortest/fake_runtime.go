// Package actortest holds test doubles for the actor loop.
package actortest

import (
	"context"
	"sync"

	"github.com/bhandras/relaychat/internal/actor"
)

// FakeRuntime records every effect it is handed. When Respond is set it is
// called per effect and may feed inputs back into the loop, which is how a
// real runtime reports socket and timer observations.
type FakeRuntime struct {
	Respond func(eff actor.Effect, emit func(actor.Input))

	mu      sync.Mutex
	effects []actor.Effect
	stops   int
}

var _ actor.Runtime = (*FakeRuntime)(nil)

// HandleEffects implements actor.Runtime.
func (r *FakeRuntime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	r.mu.Lock()
	r.effects = append(r.effects, effects...)
	respond := r.Respond
	r.mu.Unlock()

	if respond == nil {
		return
	}
	for _, eff := range effects {
		if ctx.Err() != nil {
			return
		}
		respond(eff, emit)
	}
}

// Stop implements actor.Runtime.
func (r *FakeRuntime) Stop() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
}

// Stops counts Stop calls.
func (r *FakeRuntime) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Effects returns a copy of everything recorded so far.
func (r *FakeRuntime) Effects() []actor.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]actor.Effect(nil), r.effects...)
}
