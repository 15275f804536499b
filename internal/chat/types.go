package chat

import (
	"time"

	"github.com/bhandras/relaychat/internal/actor"
	"github.com/bhandras/relaychat/internal/wire"
)

// ConnState is the client's view of the relay connection.
type ConnState string

const (
	// ConnDisconnected means no socket is open. It is both the initial state
	// and where every drop ends up; only a new Join leaves it.
	ConnDisconnected ConnState = "disconnected"
	// ConnConnecting means a join was issued and the transport has not
	// confirmed the connection yet.
	ConnConnecting ConnState = "connecting"
	// ConnConnected means the transport acknowledged the connection.
	ConnConnected ConnState = "connected"
)

// TypingPhase is the local user's typing-signal state.
type TypingPhase string

const (
	// TypingIdle means the relay was last told the user is not typing.
	TypingIdle TypingPhase = "idle"
	// TypingSignaling means typing(true) was sent and the debounce timer is
	// armed.
	TypingSignaling TypingPhase = "signaling"
)

// Identity is the local user. ID is assigned by the relay transport once
// connected; Username is display-only and may collide with other users.
type Identity struct {
	ID       string
	Username string
}

// IsSet reports whether a join was ever issued.
func (i Identity) IsSet() bool { return i.Username != "" }

// PresenceEntry is one roster member.
type PresenceEntry struct {
	ID       string
	Username string
}

// Message is one feed entry. Entries are never modified after they are
// appended.
type Message struct {
	ID       string
	SenderID string
	// Sender is the display name; empty for system notices and for relays
	// that only send the sender id.
	Sender    string
	Text      string
	Timestamp time.Time
	Private   bool
	// System marks join/leave notices synthesized by the client.
	System bool
}

// DisplayName returns the best label for the message author.
func (m Message) DisplayName() string {
	if m.Sender != "" {
		return m.Sender
	}
	return m.SenderID
}

// State is the loop-owned session state. The presentation layer reads
// snapshots of it via Engine.State and never mutates it.
type State struct {
	Identity Identity
	Conn     ConnState
	// DisconnectReason is the transport's reason for the last drop.
	DisconnectReason string

	Feed   []Message
	Roster []PresenceEntry
	// Typers are the display names of peers currently typing, as last
	// reported by the relay.
	Typers []string

	// Target is the selected private conversation; nil is the broadcast room.
	Target *PresenceEntry
	// Compose is the unsent input buffer.
	Compose string

	Typing TypingPhase
	// TypingGen increments whenever the debounce timer is (re)armed or
	// invalidated. Timer events carry the generation they were armed with so
	// stale firings are ignored.
	TypingGen int64
	// TypingDebounce is how long after the last keystroke typing(false) is
	// sent.
	TypingDebounce time.Duration

	// ConnGen increments on every join and leave. Transport events carry
	// the generation of the socket they came from; events from a replaced
	// socket are ignored.
	ConnGen int64
}

// NewState returns the empty state a session starts from.
func NewState(typingDebounce time.Duration) State {
	return State{
		Conn:           ConnDisconnected,
		Typing:         TypingIdle,
		TypingDebounce: typingDebounce,
	}
}

// RosterEntry returns the roster member with the given id.
func (s State) RosterEntry(id string) (PresenceEntry, bool) {
	for _, p := range s.Roster {
		if p.ID == id {
			return p, true
		}
	}
	return PresenceEntry{}, false
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	out.Feed = append([]Message(nil), s.Feed...)
	out.Roster = append([]PresenceEntry(nil), s.Roster...)
	out.Typers = append([]string(nil), s.Typers...)
	if s.Target != nil {
		target := *s.Target
		out.Target = &target
	}
	return out
}

// Commands (from the caller).

type cmdJoin struct {
	actor.InputBase
	Username string
	Reply    chan error
}

type cmdSendMessage struct {
	actor.InputBase
	Text   string
	Target *PresenceEntry
	// FromCompose sends the compose buffer to the selected target instead of
	// Text/Target.
	FromCompose bool
	Reply       chan error
}

type cmdCompose struct {
	actor.InputBase
	Text string
}

type cmdSetTyping struct {
	actor.InputBase
	Typing bool
}

type cmdSelectTarget struct {
	actor.InputBase
	Target *PresenceEntry
}

type cmdLeave struct {
	actor.InputBase
	Reason string
	Reply  chan error
}

type cmdFlush struct {
	actor.InputBase
	Reply chan error
}

// Events (from the runtime).

type evConnected struct {
	actor.InputBase
	Gen int64
	ID  string
}

type evDisconnected struct {
	actor.InputBase
	Gen    int64
	Reason string
}

type evConnectFailed struct {
	actor.InputBase
	Gen int64
	Err error
}

type evMessageReceived struct {
	actor.InputBase
	Gen     int64
	Message Message
}

type evPrivateMessageReceived struct {
	actor.InputBase
	Gen     int64
	Message Message
}

type evRosterReplaced struct {
	actor.InputBase
	Gen    int64
	Roster []PresenceEntry
}

type evPeerJoined struct {
	actor.InputBase
	Gen      int64
	Peer     PresenceEntry
	NoticeID string
	At       time.Time
}

type evPeerLeft struct {
	actor.InputBase
	Gen      int64
	Peer     PresenceEntry
	NoticeID string
	At       time.Time
}

type evTypersReplaced struct {
	actor.InputBase
	Gen    int64
	Typers []string
}

type evTypingTimerFired struct {
	actor.InputBase
	Gen int64
}

// Effects

type effConnect struct {
	actor.EffectBase
	Gen int64
}

type effDisconnect struct {
	actor.EffectBase
}

type effEmit struct {
	actor.EffectBase
	Event   wire.Event
	Payload any
}

type effStartTypingTimer struct {
	actor.EffectBase
	Gen   int64
	After time.Duration
}

type effCancelTypingTimer struct {
	actor.EffectBase
}

type effCompleteReply struct {
	actor.EffectBase
	Reply chan error
	Err   error
}
