package chat

import "time"

// The functions below are the session store's update operations, one per
// inbound event kind. They are pure: ids and timestamps are passed in.
//
// Appends use a full slice expression so a new backing array is allocated
// every time; a snapshot handed out earlier never observes later writes.

// AppendMessage appends a broadcast message. Duplicate deliveries are kept as
// duplicate entries.
func AppendMessage(feed []Message, msg Message) []Message {
	msg.Private = false
	msg.System = false
	return append(feed[:len(feed):len(feed)], msg)
}

// AppendPrivateMessage appends a directed message, marking it private.
func AppendPrivateMessage(feed []Message, msg Message) []Message {
	msg.Private = true
	msg.System = false
	return append(feed[:len(feed):len(feed)], msg)
}

// AppendPeerJoined appends the "{username} joined" notice. The roster is not
// touched; it only changes on a full roster snapshot.
func AppendPeerJoined(feed []Message, peer PresenceEntry, id string, at time.Time) []Message {
	return appendNotice(feed, id, at, peer.Username+" joined")
}

// AppendPeerLeft appends the "{username} left" notice.
func AppendPeerLeft(feed []Message, peer PresenceEntry, id string, at time.Time) []Message {
	return appendNotice(feed, id, at, peer.Username+" left")
}

func appendNotice(feed []Message, id string, at time.Time, text string) []Message {
	return append(feed[:len(feed):len(feed)], Message{
		ID:        id,
		Text:      text,
		Timestamp: at,
		System:    true,
	})
}

// ReplaceRoster returns the new roster for a full snapshot. The roster is a
// set keyed by id: the first entry for an id wins and entries without an id
// are dropped. Relay order is otherwise kept.
func ReplaceRoster(list []PresenceEntry) []PresenceEntry {
	out := make([]PresenceEntry, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ReplaceTypers returns the new typing set for a snapshot.
func ReplaceTypers(list []string) []string {
	return append(make([]string, 0, len(list)), list...)
}
