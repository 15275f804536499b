// Package wire defines the relay protocol: event names, payload shapes and
// the tolerant decoders used on inbound events.
package wire

// Event is a socket.io event name.
type Event string

// Outbound events (client -> relay).
const (
	// EventUserJoin requests to join the broadcast room. Payload: username string.
	EventUserJoin Event = "user_join"
	// EventSendMessage sends a broadcast message. Payload: SendMessagePayload.
	EventSendMessage Event = "send_message"
	// EventPrivateMessage is used in both directions: outbound with a
	// PrivateMessagePayload, inbound with a Message.
	EventPrivateMessage Event = "private_message"
	// EventTyping reports the local typing state. Payload: bool.
	EventTyping Event = "typing"
)

// Inbound events (relay -> client).
const (
	// EventUserList carries a full roster snapshot.
	EventUserList Event = "user_list"
	// EventUserJoined announces a peer that joined.
	EventUserJoined Event = "user_joined"
	// EventUserLeft announces a peer that left.
	EventUserLeft Event = "user_left"
	// EventReceiveMessage delivers a broadcast message.
	EventReceiveMessage Event = "receive_message"
	// EventTypingUsers carries the display names of everyone currently typing.
	EventTypingUsers Event = "typing_users"
)

// InboundEvents lists every event the client subscribes to.
var InboundEvents = []Event{
	EventUserList,
	EventUserJoined,
	EventUserLeft,
	EventReceiveMessage,
	EventPrivateMessage,
	EventTypingUsers,
}

// SendMessagePayload is the client -> relay payload for "send_message".
type SendMessagePayload struct {
	Message string `json:"message"`
}

// PrivateMessagePayload is the client -> relay payload for "private_message".
type PrivateMessagePayload struct {
	// To is the relay-assigned id of the recipient.
	To      string `json:"to"`
	Message string `json:"message"`
}
