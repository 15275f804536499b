// Package chat is the client-side session engine: it owns the connection
// lifecycle, applies relay events to the local view state and turns user
// intents into protocol events.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhandras/relaychat/internal/actor"
	"github.com/bhandras/relaychat/internal/websocket"
	"github.com/bhandras/relaychat/pkg/logger"
)

// DefaultTypingDebounce is used when EngineConfig leaves it unset.
const DefaultTypingDebounce = 800 * time.Millisecond

// EngineConfig configures a new Engine.
type EngineConfig struct {
	// ServerURL is the relay endpoint. Ignored when a transport is injected.
	ServerURL string
	// SocketPath overrides the socket.io path.
	SocketPath string
	// TypingDebounce is the idle delay before typing(false) is sent.
	TypingDebounce time.Duration
	// Debug enables per-event transport logging.
	Debug bool
}

// Engine is one chat session. Each Engine owns its own state, transport and
// timer; nothing is shared between engines.
type Engine struct {
	actor   *actor.Actor[State]
	runtime *Runtime
	updates chan struct{}

	closeOnce sync.Once
}

type engineOptions struct {
	transport Transport
	clock     actor.Clock
	newID     func() string
}

// EngineOption customizes NewEngine.
type EngineOption func(*engineOptions)

// WithTransport replaces the socket.io client.
func WithTransport(t Transport) EngineOption {
	return func(o *engineOptions) { o.transport = t }
}

// WithClock replaces the clock driving the typing debounce and notice
// timestamps.
func WithClock(c actor.Clock) EngineOption {
	return func(o *engineOptions) { o.clock = c }
}

// WithIDGenerator replaces the generator for system notice ids.
func WithIDGenerator(fn func() string) EngineOption {
	return func(o *engineOptions) { o.newID = fn }
}

// NewEngine creates and starts a session engine. Nothing is dialed until Join.
func NewEngine(cfg EngineConfig, opts ...EngineOption) *Engine {
	o := engineOptions{
		clock: actor.RealClock{},
		newID: func() string { return "sys-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = websocket.NewClient(cfg.ServerURL,
			websocket.WithPath(cfg.SocketPath),
			websocket.WithDebug(cfg.Debug),
		)
	}
	debounce := cfg.TypingDebounce
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}

	e := &Engine{updates: make(chan struct{}, 1)}
	e.runtime = NewRuntime(o.transport, o.clock, o.newID)
	e.actor = actor.New[State](NewState(debounce), Reduce, e.runtime,
		actor.WithHooks(actor.Hooks[State]{
			OnInput: func(in actor.Input) {
				logger.Tracef("chat input: %T", in)
			},
			OnTransition: func(prev, next State, in actor.Input) {
				if prev.Conn != next.Conn {
					logger.Debugf("Connection %s -> %s", prev.Conn, next.Conn)
				}
				e.notify()
			},
			OnDrop: func(in actor.Input) {
				logger.Warnf("Mailbox full, refusing %T", in)
			},
		}),
	)
	e.actor.Start()
	return e
}

// State returns a snapshot of the session state.
func (e *Engine) State() State {
	return e.actor.State().Clone()
}

// Updates is signaled after state transitions. Signals are coalesced: one
// pending signal can stand for many transitions, so readers re-read State.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// Join connects to the relay and asks to join the room as username. A blank
// username is rejected with a ValidationError before anything is dialed.
func (e *Engine) Join(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	return e.call(ctx, func(reply chan error) actor.Input {
		return cmdJoin{Username: username, Reply: reply}
	})
}

// SendMessage sends text to target, or to the room when target is nil. Blank
// text is ignored. The compose buffer is cleared and typing(false) is sent.
func (e *Engine) SendMessage(ctx context.Context, text string, target *PresenceEntry) error {
	if target != nil && target.ID == "" {
		return &ValidationError{Field: "target", Reason: "peer has no id"}
	}
	return e.call(ctx, func(reply chan error) actor.Input {
		return cmdSendMessage{Text: text, Target: target, Reply: reply}
	})
}

// Send sends the compose buffer to the selected target.
func (e *Engine) Send(ctx context.Context) error {
	return e.call(ctx, func(reply chan error) actor.Input {
		return cmdSendMessage{FromCompose: true, Reply: reply}
	})
}

// Compose records a keystroke: it replaces the compose buffer and drives the
// typing debounce. It does not wait for the loop.
func (e *Engine) Compose(text string) error {
	return e.enqueue(cmdCompose{Text: text})
}

// SetTyping sends a raw typing signal.
func (e *Engine) SetTyping(typing bool) error {
	return e.enqueue(cmdSetTyping{Typing: typing})
}

// SelectTarget picks the private conversation partner; nil selects the room.
func (e *Engine) SelectTarget(target *PresenceEntry) error {
	if target != nil && target.ID == "" {
		return &ValidationError{Field: "target", Reason: "peer has no id"}
	}
	return e.enqueue(cmdSelectTarget{Target: target})
}

// Leave closes the connection. The feed is kept; Join starts a new session.
func (e *Engine) Leave(ctx context.Context) error {
	return e.call(ctx, func(reply chan error) actor.Input {
		return cmdLeave{Reason: "left", Reply: reply}
	})
}

// Flush returns once every command enqueued before it has been applied and
// its effects handed to the runtime.
func (e *Engine) Flush(ctx context.Context) error {
	return e.call(ctx, func(reply chan error) actor.Input {
		return cmdFlush{Reply: reply}
	})
}

// Close ends the session: the loop stops, the debounce timer is cancelled and
// the transport is closed with all its handlers. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.actor.Stop()
		<-e.actor.Done()
		// An effect that was mid-flight when Stop ran may have reopened the
		// transport; release it again now that the loop is gone.
		e.runtime.Stop()
	})
	return nil
}

func (e *Engine) enqueue(in actor.Input) error {
	switch err := e.actor.Enqueue(in); {
	case errors.Is(err, actor.ErrStopped):
		return ErrStopped
	case errors.Is(err, actor.ErrMailboxFull):
		return ErrBusy
	default:
		return err
	}
}

func (e *Engine) call(ctx context.Context, build func(reply chan error) actor.Input) error {
	reply := make(chan error, 1)
	if err := e.enqueue(build(reply)); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-e.actor.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
