package main

import (
	"fmt"
	"strings"

	"github.com/bhandras/relaychat/internal/chat"
)

const globalRoom = "Global Room"

func renderHeader(st chat.State) string {
	if !st.Identity.IsSet() || st.Conn == chat.ConnDisconnected {
		if st.DisconnectReason != "" {
			return fmt.Sprintf("Real-Time Chat (disconnected: %s)", st.DisconnectReason)
		}
		return "Real-Time Chat"
	}
	return fmt.Sprintf("Real-Time Chat | %s as %s", st.Conn, st.Identity.Username)
}

func renderMessage(m chat.Message) string {
	if m.System {
		return "* " + m.Text
	}
	var b strings.Builder
	b.WriteString(m.DisplayName())
	if !m.Timestamp.IsZero() {
		b.WriteString(" ")
		b.WriteString(m.Timestamp.Local().Format("15:04:05"))
	}
	if m.Private {
		b.WriteString(" [private]")
	}
	b.WriteString("\n  ")
	b.WriteString(m.Text)
	return b.String()
}

func renderFeed(feed []chat.Message) string {
	lines := make([]string, 0, len(feed))
	for _, m := range feed {
		lines = append(lines, renderMessage(m))
	}
	return strings.Join(lines, "\n")
}

func renderTypers(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, ", ") + " typing..."
}

// renderRoster lists the room first, then every online peer; the selected
// conversation is marked.
func renderRoster(st chat.State) string {
	mark := func(selected bool) string {
		if selected {
			return "> "
		}
		return "  "
	}

	lines := []string{mark(st.Target == nil) + globalRoom}
	for _, p := range st.Roster {
		selected := st.Target != nil && st.Target.ID == p.ID
		name := p.Username
		if p.ID == st.Identity.ID {
			name += " (you)"
		}
		lines = append(lines, mark(selected)+name)
	}
	return strings.Join(lines, "\n")
}

func placeholder(st chat.State) string {
	if st.Target != nil {
		return fmt.Sprintf("Message %s (private)", st.Target.Username)
	}
	return "Type a message..."
}

// nextTarget cycles the conversation through the room and every peer other
// than the local user.
func nextTarget(st chat.State) *chat.PresenceEntry {
	var peers []chat.PresenceEntry
	for _, p := range st.Roster {
		if p.ID != st.Identity.ID {
			peers = append(peers, p)
		}
	}
	if len(peers) == 0 {
		return nil
	}
	if st.Target == nil {
		return &peers[0]
	}
	for i, p := range peers {
		if p.ID == st.Target.ID {
			if i+1 < len(peers) {
				return &peers[i+1]
			}
			return nil
		}
	}
	return &peers[0]
}
