package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		args    []any
		want    Message
		wantErr bool
	}{
		{
			name: "rfc3339 timestamp",
			args: []any{map[string]any{
				"id":        "m1",
				"senderId":  "u1",
				"sender":    "bob",
				"message":   "hi",
				"timestamp": "2024-05-01T12:30:00Z",
			}},
			want: Message{ID: "m1", SenderID: "u1", Sender: "bob", Message: "hi", Timestamp: Timestamp{at}},
		},
		{
			name: "epoch millis timestamp",
			args: []any{map[string]any{
				"id":        "m2",
				"message":   "yo",
				"timestamp": float64(at.UnixMilli()),
			}},
			want: Message{ID: "m2", Message: "yo", Timestamp: Timestamp{at}},
		},
		{
			name: "missing timestamp and sender",
			args: []any{map[string]any{"id": "m3", "senderId": "u9", "message": "x"}},
			want: Message{ID: "m3", SenderID: "u9", Message: "x"},
		},
		{
			name:    "missing text",
			args:    []any{map[string]any{"id": "m4"}},
			wantErr: true,
		},
		{
			name:    "wrong shape",
			args:    []any{"hello"},
			wantErr: true,
		},
		{
			name:    "no args",
			wantErr: true,
		},
		{
			name:    "garbage timestamp",
			args:    []any{map[string]any{"message": "x", "timestamp": "yesterday"}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeMessage(tc.args)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrProtocol), "err=%v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want.ID, got.ID)
			require.Equal(t, tc.want.SenderID, got.SenderID)
			require.Equal(t, tc.want.Sender, got.Sender)
			require.Equal(t, tc.want.Message, got.Message)
			require.True(t, tc.want.Timestamp.Equal(got.Timestamp.Time), "timestamp=%v", got.Timestamp)
		})
	}
}

func TestDecodePresence(t *testing.T) {
	p, err := DecodePresence([]any{map[string]any{"id": "u2", "username": "carol"}})
	require.NoError(t, err)
	require.Equal(t, Presence{ID: "u2", Username: "carol"}, p)

	_, err = DecodePresence([]any{map[string]any{"username": "ghost"}})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecodePresenceList(t *testing.T) {
	list, err := DecodePresenceList([]any{[]any{
		map[string]any{"id": "u1", "username": "bob"},
		map[string]any{"id": "u2", "username": "carol"},
	}})
	require.NoError(t, err)
	require.Equal(t, []Presence{{ID: "u1", Username: "bob"}, {ID: "u2", Username: "carol"}}, list)

	empty, err := DecodePresenceList([]any{[]any{}})
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = DecodePresenceList([]any{[]any{map[string]any{"username": "noid"}}})
	require.ErrorIs(t, err, ErrProtocol)

	_, err = DecodePresenceList([]any{map[string]any{"id": "u1"}})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeTypers(t *testing.T) {
	names, err := DecodeTypers([]any{[]any{"bob", "carol"}})
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "carol"}, names)

	_, err = DecodeTypers([]any{[]any{"bob", 3}})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestTimestampMarshalRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 123_000_000, time.UTC)
	var ts Timestamp
	raw, err := Timestamp{at}.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"2024-05-01T12:30:00.123Z"`, string(raw))
	require.NoError(t, ts.UnmarshalJSON(raw))
	require.True(t, at.Equal(ts.Time))

	raw, err = Timestamp{}.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))
}
