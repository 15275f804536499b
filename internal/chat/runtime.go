package chat

import (
	"context"

	"github.com/bhandras/relaychat/internal/actor"
	"github.com/bhandras/relaychat/internal/timer"
	"github.com/bhandras/relaychat/internal/websocket"
	"github.com/bhandras/relaychat/internal/wire"
	"github.com/bhandras/relaychat/pkg/logger"
)

// Transport is the connection to the relay. *websocket.Client implements it.
type Transport interface {
	On(event wire.Event, handler func(args []any))
	OnConnect(fn func())
	OnDisconnect(fn func(reason string))
	OnConnectError(fn func(err error))
	Connect() error
	Emit(event wire.Event, payload any) error
	Close() error
	ID() string
}

var _ Transport = (*websocket.Client)(nil)

// Runtime interprets session effects: it drives the transport, owns the
// typing debounce timer and turns socket events into reducer inputs.
//
// Runtime never touches State; everything it observes goes back through emit.
type Runtime struct {
	transport Transport
	clock     actor.Clock
	typing    *timer.Slot
	newID     func() string
}

// NewRuntime returns a runtime driving transport.
func NewRuntime(transport Transport, clock actor.Clock, newID func() string) *Runtime {
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &Runtime{
		transport: transport,
		clock:     clock,
		typing:    timer.NewSlot(clock),
		newID:     newID,
	}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effConnect:
			r.connect(ctx, e, emit)
		case effDisconnect:
			_ = r.transport.Close()
		case effEmit:
			if err := r.transport.Emit(e.Event, e.Payload); err != nil {
				logger.Debugf("Emit %s failed: %v", e.Event, err)
			}
		case effStartTypingTimer:
			gen := e.Gen
			r.typing.Schedule(e.After, func() {
				select {
				case <-ctx.Done():
					return
				default:
				}
				emit(evTypingTimerFired{Gen: gen})
			})
		case effCancelTypingTimer:
			r.typing.Cancel()
		case effCompleteReply:
			if e.Reply == nil {
				continue
			}
			select {
			case e.Reply <- e.Err:
			default:
			}
		default:
			logger.Debugf("Ignoring unknown effect %T", eff)
		}
	}
}

// Stop implements actor.Runtime.
func (r *Runtime) Stop() {
	r.typing.Cancel()
	_ = r.transport.Close()
}

// connect replaces the current socket with a new one tagged gen.
func (r *Runtime) connect(ctx context.Context, eff effConnect, emit func(actor.Input)) {
	gen := eff.Gen

	// Close releases the previous socket's handlers; everything below is
	// registered fresh for this generation.
	_ = r.transport.Close()

	send := func(in actor.Input) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		emit(in)
	}

	r.transport.OnConnect(func() {
		send(evConnected{Gen: gen, ID: r.transport.ID()})
	})
	r.transport.OnDisconnect(func(reason string) {
		send(evDisconnected{Gen: gen, Reason: reason})
	})
	r.transport.OnConnectError(func(err error) {
		send(evConnectFailed{Gen: gen, Err: err})
	})

	decoders := r.decoders(gen)
	for _, event := range wire.InboundEvents {
		decode, ok := decoders[event]
		if !ok {
			logger.Warnf("No decoder for inbound event %s", event)
			continue
		}
		event := event
		r.transport.On(event, func(args []any) {
			in, err := decode(args)
			if err != nil {
				logger.Warnf("Dropping %s event: %v", event, err)
				return
			}
			send(in)
		})
	}

	if err := r.transport.Connect(); err != nil {
		send(evConnectFailed{Gen: gen, Err: err})
	}
}

// decoders turns raw socket args for each inbound event into a reducer input
// tagged with gen.
func (r *Runtime) decoders(gen int64) map[wire.Event]func(args []any) (actor.Input, error) {
	return map[wire.Event]func(args []any) (actor.Input, error){
		wire.EventReceiveMessage: func(args []any) (actor.Input, error) {
			msg, err := wire.DecodeMessage(args)
			if err != nil {
				return nil, err
			}
			return evMessageReceived{Gen: gen, Message: messageFromWire(msg)}, nil
		},
		wire.EventPrivateMessage: func(args []any) (actor.Input, error) {
			msg, err := wire.DecodeMessage(args)
			if err != nil {
				return nil, err
			}
			return evPrivateMessageReceived{Gen: gen, Message: messageFromWire(msg)}, nil
		},
		wire.EventUserList: func(args []any) (actor.Input, error) {
			list, err := wire.DecodePresenceList(args)
			if err != nil {
				return nil, err
			}
			roster := make([]PresenceEntry, 0, len(list))
			for _, p := range list {
				roster = append(roster, presenceFromWire(p))
			}
			return evRosterReplaced{Gen: gen, Roster: roster}, nil
		},
		wire.EventUserJoined: func(args []any) (actor.Input, error) {
			p, err := wire.DecodePresence(args)
			if err != nil {
				return nil, err
			}
			return evPeerJoined{Gen: gen, Peer: presenceFromWire(p), NoticeID: r.newID(), At: r.clock.Now()}, nil
		},
		wire.EventUserLeft: func(args []any) (actor.Input, error) {
			p, err := wire.DecodePresence(args)
			if err != nil {
				return nil, err
			}
			return evPeerLeft{Gen: gen, Peer: presenceFromWire(p), NoticeID: r.newID(), At: r.clock.Now()}, nil
		},
		wire.EventTypingUsers: func(args []any) (actor.Input, error) {
			names, err := wire.DecodeTypers(args)
			if err != nil {
				return nil, err
			}
			return evTypersReplaced{Gen: gen, Typers: names}, nil
		},
	}
}

func messageFromWire(m wire.Message) Message {
	return Message{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Sender:    m.Sender,
		Text:      m.Message,
		Timestamp: m.Timestamp.Time,
	}
}

func presenceFromWire(p wire.Presence) PresenceEntry {
	return PresenceEntry{ID: p.ID, Username: p.Username}
}
