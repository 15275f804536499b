package chat

import (
	"sync"

	"github.com/bhandras/relaychat/internal/wire"
)

type sentEvent struct {
	Event   wire.Event
	Payload any
}

// fakeTransport is an in-memory Transport. Tests drive the "relay side" with
// accept, deliver and drop.
type fakeTransport struct {
	mu sync.Mutex

	id         string
	connects   int
	closes     int
	connectErr error
	open       bool
	sent       []sentEvent

	gateEvent wire.Event
	gate      chan struct{}
	gated     chan struct{}

	handlers     map[wire.Event]func(args []any)
	onConnect    func()
	onDisconnect func(reason string)
	onConnectErr func(err error)
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{id: id, handlers: make(map[wire.Event]func(args []any))}
}

func (f *fakeTransport) On(event wire.Event, handler func(args []any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeTransport) OnConnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = fn
}

func (f *fakeTransport) OnDisconnect(fn func(reason string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = fn
}

func (f *fakeTransport) OnConnectError(fn func(err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnectErr = fn
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Emit(event wire.Event, payload any) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentEvent{Event: event, Payload: payload})
	var gate, gated chan struct{}
	if f.gate != nil && event == f.gateEvent {
		gate, gated = f.gate, f.gated
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case gated <- struct{}{}:
		default:
		}
		<-gate
	}
	return nil
}

// holdEmits makes Emit of event block until release is called. The returned
// channel is signaled when an Emit starts waiting. Since the runtime emits on
// the loop goroutine, this stalls the engine.
func (f *fakeTransport) holdEmits(event wire.Event) (waiting <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gateEvent = event
	f.gate = make(chan struct{})
	f.gated = make(chan struct{}, 1)

	gate := f.gate
	var once sync.Once
	return f.gated, func() { once.Do(func() { close(gate) }) }
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.open = false
	f.handlers = make(map[wire.Event]func(args []any))
	f.onConnect = nil
	f.onDisconnect = nil
	f.onConnectErr = nil
	return nil
}

func (f *fakeTransport) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

// accept plays the transport acknowledging the connection.
func (f *fakeTransport) accept() {
	f.mu.Lock()
	fn := f.onConnect
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// drop plays the transport losing the connection.
func (f *fakeTransport) drop(reason string) {
	f.mu.Lock()
	fn := f.onDisconnect
	f.open = false
	f.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// deliver plays the relay pushing an event. It reports whether a handler was
// registered.
func (f *fakeTransport) deliver(event wire.Event, args ...any) bool {
	f.mu.Lock()
	fn := f.handlers[event]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(args)
	return true
}

func (f *fakeTransport) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeTransport) sentEvents() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.sent...)
}

func (f *fakeTransport) typingSignals() []bool {
	var out []bool
	for _, ev := range f.sentEvents() {
		if ev.Event == wire.EventTyping {
			out = append(out, ev.Payload.(bool))
		}
	}
	return out
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}
