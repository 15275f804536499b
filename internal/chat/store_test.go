package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendNeverClobbersEarlierSnapshots(t *testing.T) {
	t.Parallel()

	base := make([]Message, 0, 8)
	base = AppendMessage(base, Message{ID: "m0"})

	a := AppendMessage(base, Message{ID: "a"})
	b := AppendPrivateMessage(base, Message{ID: "b"})

	require.Equal(t, "a", a[1].ID)
	require.Equal(t, "b", b[1].ID)
	require.Len(t, base, 1)
}

func TestSystemNoticesKeepDistinctIDs(t *testing.T) {
	t.Parallel()

	at := time.Unix(42, 0)
	peer := PresenceEntry{ID: "u2", Username: "carol"}

	var feed []Message
	feed = AppendPeerJoined(feed, peer, "sys-1", at)
	feed = AppendPeerJoined(feed, peer, "sys-2", at)

	require.Len(t, feed, 2, "same-instant notices are not merged")
	require.NotEqual(t, feed[0].ID, feed[1].ID)
	for _, m := range feed {
		require.True(t, m.System)
		require.Empty(t, m.SenderID)
		require.Equal(t, "carol joined", m.Text)
	}
}

func TestReplaceRoster(t *testing.T) {
	t.Parallel()

	got := ReplaceRoster([]PresenceEntry{
		{ID: "u1", Username: "bob"},
		{ID: "", Username: "nobody"},
		{ID: "u2", Username: "carol"},
		{ID: "u1", Username: "bob-again"},
	})
	require.Equal(t, []PresenceEntry{{ID: "u1", Username: "bob"}, {ID: "u2", Username: "carol"}}, got)

	require.Empty(t, ReplaceRoster(nil))
}

func TestReplaceTypersCopies(t *testing.T) {
	t.Parallel()

	in := []string{"bob"}
	out := ReplaceTypers(in)
	in[0] = "mallory"
	require.Equal(t, []string{"bob"}, out)
}

func TestStateCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewState(time.Second)
	s.Feed = []Message{{ID: "m1"}}
	s.Roster = []PresenceEntry{{ID: "u1"}}
	s.Typers = []string{"bob"}
	s.Target = &PresenceEntry{ID: "u1", Username: "bob"}

	c := s.Clone()
	c.Feed[0].ID = "changed"
	c.Roster[0].ID = "changed"
	c.Typers[0] = "changed"
	c.Target.Username = "changed"

	require.Equal(t, "m1", s.Feed[0].ID)
	require.Equal(t, "u1", s.Roster[0].ID)
	require.Equal(t, "bob", s.Typers[0])
	require.Equal(t, "bob", s.Target.Username)

	p, ok := s.RosterEntry("u1")
	require.True(t, ok)
	require.Equal(t, "u1", p.ID)
	_, ok = s.RosterEntry("nope")
	require.False(t, ok)
}

func TestMessageDisplayName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "bob", Message{Sender: "bob", SenderID: "u1"}.DisplayName())
	require.Equal(t, "u1", Message{SenderID: "u1"}.DisplayName())
}
