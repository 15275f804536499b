package relaytest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bhandras/relaychat/internal/chat"
	"github.com/bhandras/relaychat/internal/relaytest"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func newEngine(t *testing.T, relay *relaytest.Relay) *chat.Engine {
	t.Helper()
	e := chat.NewEngine(chat.EngineConfig{
		ServerURL:      relay.URL(),
		TypingDebounce: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func join(t *testing.T, e *chat.Engine, name string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, e.Join(ctx, name))
	require.Eventually(t, func() bool {
		st := e.State()
		return st.Conn == chat.ConnConnected && st.Identity.ID != ""
	}, waitFor, tick)
}

func rosterNames(st chat.State) []string {
	names := make([]string, 0, len(st.Roster))
	for _, p := range st.Roster {
		names = append(names, p.Username)
	}
	return names
}

func feedTexts(st chat.State) []string {
	texts := make([]string, 0, len(st.Feed))
	for _, m := range st.Feed {
		texts = append(texts, m.Text)
	}
	return texts
}

func peer(t *testing.T, st chat.State, username string) *chat.PresenceEntry {
	t.Helper()
	for _, p := range st.Roster {
		if p.Username == username {
			p := p
			return &p
		}
	}
	t.Fatalf("%s not in roster %v", username, rosterNames(st))
	return nil
}

func TestRelayRosterAndNoticesAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket.io contract test in short mode")
	}

	relay := relaytest.Start(t)
	alice := newEngine(t, relay)
	bob := newEngine(t, relay)

	join(t, alice, "alice")
	require.Eventually(t, func() bool {
		return len(alice.State().Roster) == 1
	}, waitFor, tick)

	join(t, bob, "bob")

	// Every join notice is preceded by a roster that contains the peer.
	require.Eventually(t, func() bool {
		st := alice.State()
		return len(st.Roster) == 2 && len(st.Feed) == 1
	}, waitFor, tick)
	st := alice.State()
	require.Equal(t, []string{"alice", "bob"}, rosterNames(st))
	require.True(t, st.Feed[0].System)
	require.Equal(t, "bob joined", st.Feed[0].Text)
	require.Equal(t, bob.State().Identity.ID, peer(t, st, "bob").ID)

	// The joiner sees the full roster but no notice about itself.
	require.Eventually(t, func() bool {
		return len(bob.State().Roster) == 2
	}, waitFor, tick)
	require.Empty(t, bob.State().Feed)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, bob.Leave(ctx))

	require.Eventually(t, func() bool {
		st := alice.State()
		return len(st.Roster) == 1 && len(st.Feed) == 2
	}, waitFor, tick)
	require.Equal(t, []string{"bob joined", "bob left"}, feedTexts(alice.State()))
	require.Len(t, relay.Members(), 1)
}

func TestRelayBroadcastAndPrivateRouting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket.io contract test in short mode")
	}

	relay := relaytest.Start(t)
	alice := newEngine(t, relay)
	bob := newEngine(t, relay)
	carol := newEngine(t, relay)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for name, e := range map[string]*chat.Engine{"alice": alice, "bob": bob, "carol": carol} {
		name, e := name, e
		g.Go(func() error { return e.Join(gctx, name) })
	}
	require.NoError(t, g.Wait())
	for _, e := range []*chat.Engine{alice, bob, carol} {
		e := e
		require.Eventually(t, func() bool {
			return len(e.State().Roster) == 3
		}, waitFor, tick)
	}

	require.NoError(t, alice.SendMessage(ctx, "hello room", nil))
	for _, e := range []*chat.Engine{alice, bob, carol} {
		e := e
		require.Eventually(t, func() bool {
			for _, m := range e.State().Feed {
				if m.Text == "hello room" {
					return !m.Private && m.Sender == "alice"
				}
			}
			return false
		}, waitFor, tick)
	}

	require.NoError(t, alice.SelectTarget(peer(t, alice.State(), "bob")))
	require.NoError(t, alice.Compose("psst"))
	require.NoError(t, alice.Send(ctx))

	isPrivatePsst := func(st chat.State) bool {
		for _, m := range st.Feed {
			if m.Text == "psst" {
				return m.Private && m.Sender == "alice"
			}
		}
		return false
	}
	require.Eventually(t, func() bool { return isPrivatePsst(bob.State()) }, waitFor, tick)
	require.Eventually(t, func() bool { return isPrivatePsst(alice.State()) }, waitFor, tick)

	// Carol gets nothing from the private thread.
	require.NoError(t, carol.Flush(ctx))
	require.NotContains(t, feedTexts(carol.State()), "psst")

	// Deselecting routes back to the room.
	require.NoError(t, alice.SelectTarget(nil))
	require.NoError(t, alice.Compose("back to everyone"))
	require.NoError(t, alice.Send(ctx))
	require.Eventually(t, func() bool {
		return len(carol.State().Feed) > 0 &&
			carol.State().Feed[len(carol.State().Feed)-1].Text == "back to everyone"
	}, waitFor, tick)
}

func TestRelayTypingIndicator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket.io contract test in short mode")
	}

	relay := relaytest.Start(t)
	alice := newEngine(t, relay)
	bob := newEngine(t, relay)
	join(t, alice, "alice")
	join(t, bob, "bob")
	require.Eventually(t, func() bool {
		return len(bob.State().Roster) == 2
	}, waitFor, tick)

	require.NoError(t, alice.Compose("h"))
	require.Eventually(t, func() bool {
		typers := bob.State().Typers
		return len(typers) == 1 && typers[0] == "alice"
	}, waitFor, tick)
	require.Empty(t, alice.State().Typers)

	// The debounce expires and the indicator clears.
	require.Eventually(t, func() bool {
		return len(bob.State().Typers) == 0
	}, waitFor, tick)
	require.Equal(t, chat.TypingIdle, alice.State().Typing)
}

func TestRelayServerDisconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket.io contract test in short mode")
	}

	relay := relaytest.Start(t)
	alice := newEngine(t, relay)
	join(t, alice, "alice")

	require.True(t, relay.Kick(alice.State().Identity.ID))
	require.Eventually(t, func() bool {
		return alice.State().Conn == chat.ConnDisconnected
	}, waitFor, tick)
	require.NotEmpty(t, alice.State().DisconnectReason)

	// Disconnects are terminal until the user joins again.
	join(t, alice, "alice")
	require.Eventually(t, func() bool {
		return len(relay.Members()) == 1
	}, waitFor, tick)
}
