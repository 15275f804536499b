package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrProtocol marks an inbound payload that does not have the expected shape.
var ErrProtocol = errors.New("malformed payload")

// Presence is one roster entry as sent by the relay.
type Presence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is a chat message as delivered by the relay.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Sender    string    `json:"sender,omitempty"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp accepts either an RFC 3339 string or epoch milliseconds. A
// missing or null timestamp decodes to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", raw, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// MarshalJSON emits RFC 3339 with millisecond precision.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// DecodeMessage decodes a "receive_message" or inbound "private_message"
// payload. The message text must be present.
func DecodeMessage(args []any) (Message, error) {
	var msg Message
	if err := decodeFirst(args, &msg); err != nil {
		return Message{}, err
	}
	if msg.Message == "" {
		return Message{}, fmt.Errorf("%w: message without text", ErrProtocol)
	}
	return msg, nil
}

// DecodePresence decodes a "user_joined" / "user_left" payload.
func DecodePresence(args []any) (Presence, error) {
	var p Presence
	if err := decodeFirst(args, &p); err != nil {
		return Presence{}, err
	}
	if p.ID == "" {
		return Presence{}, fmt.Errorf("%w: presence without id", ErrProtocol)
	}
	return p, nil
}

// DecodePresenceList decodes a "user_list" payload. Entries without an id are
// rejected as a whole: a roster snapshot is applied all-or-nothing.
func DecodePresenceList(args []any) ([]Presence, error) {
	var list []Presence
	if err := decodeFirst(args, &list); err != nil {
		return nil, err
	}
	for i, p := range list {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: roster entry %d without id", ErrProtocol, i)
		}
	}
	if list == nil {
		list = []Presence{}
	}
	return list, nil
}

// DecodeTypers decodes a "typing_users" payload.
func DecodeTypers(args []any) ([]string, error) {
	var names []string
	if err := decodeFirst(args, &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// decodeFirst re-encodes the first event argument into out. socket.io hands
// us generic JSON values (maps, slices, float64s); a JSON round trip is the
// simplest way to get typed structs with the usual tag rules.
func decodeFirst(args []any, out any) error {
	if len(args) == 0 || args[0] == nil {
		return fmt.Errorf("%w: missing argument", ErrProtocol)
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}
