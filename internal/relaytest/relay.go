// Package relaytest runs an in-process socket.io chat relay for tests.
//
// The relay speaks the same event vocabulary as the production relay: one
// broadcast room, directed private messages and a typing snapshot. Every
// join is answered with a fresh user_list to all members followed by a
// user_joined notice to the others, so roster and notices never disagree.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
	sockettypes "github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/bhandras/relaychat/internal/wire"
	"github.com/bhandras/relaychat/pkg/logger"
)

type member struct {
	sock     *socket.Socket
	username string
	joined   bool
	typing   bool
	order    int64
}

// Relay is a running relay. Create one with Start; it is closed when the test
// ends.
type Relay struct {
	server *socket.Server
	http   *httptest.Server
	now    func() time.Time

	mu      sync.Mutex
	seq     int64
	members map[string]*member
}

// Start launches a relay on a loopback port and registers its shutdown with
// tb.Cleanup.
func Start(tb testing.TB) *Relay {
	tb.Helper()

	opts := socket.DefaultServerOptions()
	opts.SetCors(&sockettypes.Cors{
		Origin:      "*",
		Credentials: false,
	})
	opts.SetPingInterval(time.Second)
	opts.SetPingTimeout(2 * time.Second)

	r := &Relay{
		server:  socket.NewServer(nil, opts),
		now:     time.Now,
		members: make(map[string]*member),
	}
	r.server.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		r.handleConnection(client)
	})

	mux := http.NewServeMux()
	handler := r.server.ServeHandler(nil)
	mux.Handle("/socket.io/", handler)
	r.http = httptest.NewServer(mux)

	tb.Cleanup(r.Close)
	return r
}

// URL is the relay base URL, suitable for chat.EngineConfig.ServerURL.
func (r *Relay) URL() string {
	return r.http.URL
}

// Close stops the socket.io server and the HTTP listener.
func (r *Relay) Close() {
	r.server.Close(nil)
	r.http.Close()
}

// Members returns the joined members in join order.
func (r *Relay) Members() []wire.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// Kick disconnects the member with the given socket id from the server side.
// It reports whether such a member was connected.
func (r *Relay) Kick(id string) bool {
	r.mu.Lock()
	m, ok := r.members[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	m.sock.Disconnect(true)
	return true
}

func (r *Relay) handleConnection(client *socket.Socket) {
	id := string(client.Id())
	logger.Debugf("relay: connection %s", id)

	r.mu.Lock()
	r.members[id] = &member{sock: client}
	r.mu.Unlock()

	client.On(string(wire.EventUserJoin), func(data ...any) {
		var username string
		if err := decodeFirst(data, &username); err != nil || username == "" {
			logger.Warnf("relay: bad %s from %s: %v", wire.EventUserJoin, id, err)
			return
		}
		r.join(id, username)
	})
	client.On(string(wire.EventSendMessage), func(data ...any) {
		var payload wire.SendMessagePayload
		if err := decodeFirst(data, &payload); err != nil {
			logger.Warnf("relay: bad %s from %s: %v", wire.EventSendMessage, id, err)
			return
		}
		r.broadcast(id, payload.Message)
	})
	client.On(string(wire.EventPrivateMessage), func(data ...any) {
		var payload wire.PrivateMessagePayload
		if err := decodeFirst(data, &payload); err != nil {
			logger.Warnf("relay: bad %s from %s: %v", wire.EventPrivateMessage, id, err)
			return
		}
		r.direct(id, payload.To, payload.Message)
	})
	client.On(string(wire.EventTyping), func(data ...any) {
		var typing bool
		if err := decodeFirst(data, &typing); err != nil {
			logger.Warnf("relay: bad %s from %s: %v", wire.EventTyping, id, err)
			return
		}
		r.setTyping(id, typing)
	})
	client.On("disconnect", func(data ...any) {
		r.leave(id)
	})
}

func (r *Relay) join(id, username string) {
	r.mu.Lock()
	m, ok := r.members[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	first := !m.joined
	m.username = username
	if first {
		r.seq++
		m.joined = true
		m.order = r.seq
	}
	roster := r.rosterLocked()
	everyone := r.joinedLocked("")
	others := r.joinedLocked(id)
	r.mu.Unlock()

	for _, s := range everyone {
		s.Emit(string(wire.EventUserList), roster)
	}
	if first {
		notice := wire.Presence{ID: id, Username: username}
		for _, s := range others {
			s.Emit(string(wire.EventUserJoined), notice)
		}
	}
}

func (r *Relay) broadcast(from, text string) {
	r.mu.Lock()
	m, ok := r.members[from]
	if !ok || !m.joined {
		r.mu.Unlock()
		return
	}
	msg := r.messageLocked(from, m.username, text)
	everyone := r.joinedLocked("")
	r.mu.Unlock()

	for _, s := range everyone {
		s.Emit(string(wire.EventReceiveMessage), msg)
	}
}

func (r *Relay) direct(from, to, text string) {
	r.mu.Lock()
	sender, ok := r.members[from]
	target, found := r.members[to]
	if !ok || !sender.joined || !found || !target.joined {
		r.mu.Unlock()
		return
	}
	msg := r.messageLocked(from, sender.username, text)
	r.mu.Unlock()

	target.sock.Emit(string(wire.EventPrivateMessage), msg)
	if to != from {
		sender.sock.Emit(string(wire.EventPrivateMessage), msg)
	}
}

func (r *Relay) setTyping(id string, typing bool) {
	r.mu.Lock()
	m, ok := r.members[id]
	if !ok || !m.joined || m.typing == typing {
		r.mu.Unlock()
		return
	}
	m.typing = typing
	r.mu.Unlock()

	r.publishTypers()
}

func (r *Relay) leave(id string) {
	r.mu.Lock()
	m, ok := r.members[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, id)
	if !m.joined {
		r.mu.Unlock()
		return
	}
	roster := r.rosterLocked()
	everyone := r.joinedLocked("")
	r.mu.Unlock()

	logger.Debugf("relay: %s (%s) left", m.username, id)
	notice := wire.Presence{ID: id, Username: m.username}
	for _, s := range everyone {
		s.Emit(string(wire.EventUserLeft), notice)
		s.Emit(string(wire.EventUserList), roster)
	}
	if m.typing {
		r.publishTypers()
	}
}

// publishTypers sends every member the names of the other members typing.
func (r *Relay) publishTypers() {
	type delivery struct {
		sock  *socket.Socket
		names []string
	}

	r.mu.Lock()
	var out []delivery
	for id, m := range r.members {
		if !m.joined {
			continue
		}
		names := []string{}
		for otherID, other := range r.members {
			if otherID != id && other.joined && other.typing {
				names = append(names, other.username)
			}
		}
		sort.Strings(names)
		out = append(out, delivery{sock: m.sock, names: names})
	}
	r.mu.Unlock()

	for _, d := range out {
		d.sock.Emit(string(wire.EventTypingUsers), d.names)
	}
}

func (r *Relay) messageLocked(senderID, sender, text string) wire.Message {
	return wire.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Sender:    sender,
		Message:   text,
		Timestamp: wire.Timestamp{Time: r.now().UTC()},
	}
}

func (r *Relay) rosterLocked() []wire.Presence {
	joined := make([]*member, 0, len(r.members))
	ids := make(map[*member]string, len(r.members))
	for id, m := range r.members {
		if m.joined {
			joined = append(joined, m)
			ids[m] = id
		}
	}
	sort.Slice(joined, func(i, j int) bool { return joined[i].order < joined[j].order })

	roster := make([]wire.Presence, 0, len(joined))
	for _, m := range joined {
		roster = append(roster, wire.Presence{ID: ids[m], Username: m.username})
	}
	return roster
}

func (r *Relay) joinedLocked(skip string) []*socket.Socket {
	var out []*socket.Socket
	for id, m := range r.members {
		if m.joined && id != skip {
			out = append(out, m.sock)
		}
	}
	return out
}

func decodeFirst(data []any, out any) error {
	if len(data) == 0 {
		return wire.ErrProtocol
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
