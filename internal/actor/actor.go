// Package actor provides the single-goroutine event loop that owns the chat
// session state.
//
// Every mutation goes through one place:
//   - The loop goroutine dequeues an Input (a user command, a socket event, a
//     timer firing) and hands it to a pure reducer.
//   - The reducer returns the next state plus declarative effects.
//   - A Runtime performs the effects (socket emits, timers) and feeds any
//     follow-up observations back into the mailbox.
//
// Inputs from the transport, timers and callers are therefore never applied
// concurrently, and reducers can be tested without a network or a real clock.
package actor

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrStopped is returned by Enqueue once the actor was stopped.
	ErrStopped = errors.New("actor stopped")
	// ErrMailboxFull is returned by Enqueue when the mailbox is at
	// capacity.
	ErrMailboxFull = errors.New("actor mailbox full")
)

// Input is anything the loop can dequeue: caller commands and runtime
// observations share the mailbox, so they are applied in arrival order.
//
// The two differ in admission only. Commands go through Enqueue and are
// refused once the mailbox is full. Observations go through the emit function
// handed to the Runtime and are always accepted, so a socket event or timer
// firing is never lost while the loop is busy.
type Input interface {
	isActorInput()
}

// Effect is a side-effect described as a value. Reducers return effects and
// the Runtime carries them out.
type Effect interface {
	isActorEffect()
}

// ReducerFunc computes the next state for one input. It must stay pure: no
// I/O, no goroutines, no clock reads or id generation. Anything
// nondeterministic arrives inside the input.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime performs effects on behalf of the loop.
type Runtime interface {
	// HandleEffects executes effects. It is called on the loop goroutine and
	// must not block; anything slow has to run asynchronously and report back
	// through emit. emit never blocks and may be called from any goroutine,
	// including the loop itself. Implementations must stop emitting once ctx
	// is canceled.
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))

	// Stop releases everything the runtime holds (timers, sockets). It may be
	// called multiple times.
	Stop()
}

// Hooks observe the loop. Every field is optional.
type Hooks[S any] struct {
	// OnInput sees each input before it is reduced.
	OnInput func(input Input)
	// OnTransition sees the previous and stored next state of every step.
	OnTransition func(prev S, next S, input Input)
	// OnEffects sees the effects of a step before the Runtime runs them.
	OnEffects func(effects []Effect)
	// OnDrop is called when Enqueue refuses a command because the mailbox is
	// full.
	OnDrop func(input Input)
	// OnPanic receives a recovered loop panic. Without it the panic
	// propagates.
	OnPanic func(recovered any)
}

// Actor owns a value of type S and mutates it only from its loop goroutine.
type Actor[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]

	mu     sync.Mutex
	state  S
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// The mailbox is a FIFO guarded by qmu; wake is signaled on every push.
	qmu      sync.Mutex
	queue    []Input
	capacity int
	wake     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// DefaultMailboxSize is how many queued inputs Enqueue accepts before it
// refuses commands, unless WithMailboxSize is given.
const DefaultMailboxSize = 256

// Option customizes New.
type Option[S any] func(*Actor[S])

// WithHooks installs observation hooks.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize overrides DefaultMailboxSize. Non-positive sizes are
// ignored.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.capacity = n
		}
	}
}

// New returns a stopped actor holding initial. Call Start to run it.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		reduce:   reducer,
		runtime:  runtime,
		state:    initial,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		capacity: DefaultMailboxSize,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the loop goroutine. Later calls do nothing.
func (a *Actor[S]) Start() {
	a.startOnce.Do(func() { go a.loop() })
}

// Stop ends the loop and releases the runtime. It is idempotent, and an actor
// that was never started is marked done immediately.
func (a *Actor[S]) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		if a.runtime != nil {
			a.runtime.Stop()
		}
		// Claim the start slot so a never-started actor still closes done.
		a.startOnce.Do(func() { close(a.done) })
	})
}

// Done is closed once the loop has exited.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Enqueue offers a caller command to the mailbox without blocking. It fails
// with ErrStopped once the actor is stopped and with ErrMailboxFull when the
// mailbox already holds its capacity.
func (a *Actor[S]) Enqueue(input Input) error {
	if input == nil {
		return nil
	}
	if a.ctx.Err() != nil {
		return ErrStopped
	}

	a.qmu.Lock()
	if len(a.queue) >= a.capacity {
		a.qmu.Unlock()
		if a.hooks.OnDrop != nil {
			a.hooks.OnDrop(input)
		}
		return ErrMailboxFull
	}
	a.queue = append(a.queue, input)
	a.qmu.Unlock()

	a.signal()
	return nil
}

// emit queues a runtime observation regardless of capacity. Observations are
// dropped only after Stop.
func (a *Actor[S]) emit(input Input) {
	if input == nil || a.ctx.Err() != nil {
		return
	}
	a.qmu.Lock()
	a.queue = append(a.queue, input)
	a.qmu.Unlock()

	a.signal()
}

func (a *Actor[S]) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// next blocks until an input is queued or the actor is stopped.
func (a *Actor[S]) next() (Input, bool) {
	for {
		if a.ctx.Err() != nil {
			return nil, false
		}

		a.qmu.Lock()
		if len(a.queue) > 0 {
			in := a.queue[0]
			a.queue[0] = nil
			a.queue = a.queue[1:]
			a.qmu.Unlock()
			return in, true
		}
		a.qmu.Unlock()

		select {
		case <-a.ctx.Done():
			return nil, false
		case <-a.wake:
		}
	}
}

// State returns the last stored state. Callers must treat reference fields as
// read-only.
func (a *Actor[S]) State() S {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Actor[S]) loop() {
	defer close(a.done)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if a.hooks.OnPanic == nil {
			panic(r)
		}
		a.hooks.OnPanic(r)
	}()

	for {
		in, ok := a.next()
		if !ok {
			return
		}
		a.apply(in, a.emit)
	}
}

// apply runs one reducer step and hands its effects to the runtime.
func (a *Actor[S]) apply(in Input, emit func(Input)) {
	if in == nil {
		return
	}
	if a.hooks.OnInput != nil {
		a.hooks.OnInput(in)
	}

	prev := a.State()
	next, effects := a.reduce(prev, in)

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()

	if a.hooks.OnTransition != nil {
		a.hooks.OnTransition(prev, next, in)
	}
	if len(effects) == 0 {
		return
	}
	if a.hooks.OnEffects != nil {
		a.hooks.OnEffects(effects)
	}
	if a.runtime != nil {
		a.runtime.HandleEffects(a.ctx, effects, emit)
	}
}
