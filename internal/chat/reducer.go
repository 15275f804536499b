package chat

import (
	"strings"

	"github.com/bhandras/relaychat/internal/actor"
	"github.com/bhandras/relaychat/internal/wire"
)

// Reduce is the session reducer. Every command and transport event goes
// through this one switch.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case cmdJoin:
		return reduceJoin(state, in)
	case cmdSendMessage:
		return reduceSendMessage(state, in)
	case cmdCompose:
		return reduceCompose(state, in)
	case cmdSetTyping:
		return state, []actor.Effect{emitTyping(in.Typing)}
	case cmdSelectTarget:
		return reduceSelectTarget(state, in)
	case cmdLeave:
		return reduceLeave(state, in)
	case cmdFlush:
		return state, []actor.Effect{effCompleteReply{Reply: in.Reply}}

	case evTypingTimerFired:
		return reduceTypingTimerFired(state, in)
	}

	// Transport events from a replaced or closed socket carry an old
	// generation and are ignored.
	if gen, ok := transportGen(input); ok && gen != state.ConnGen {
		return state, nil
	}

	switch in := input.(type) {
	case evConnected:
		state.Conn = ConnConnected
		state.Identity.ID = in.ID
		state.DisconnectReason = ""
		return state, nil
	case evDisconnected:
		return reduceDropped(state, in.Reason)
	case evConnectFailed:
		reason := "connect error"
		if in.Err != nil {
			reason = in.Err.Error()
		}
		return reduceDropped(state, reason)
	case evMessageReceived:
		state.Feed = AppendMessage(state.Feed, in.Message)
		return state, nil
	case evPrivateMessageReceived:
		state.Feed = AppendPrivateMessage(state.Feed, in.Message)
		return state, nil
	case evRosterReplaced:
		state.Roster = ReplaceRoster(in.Roster)
		return state, nil
	case evPeerJoined:
		state.Feed = AppendPeerJoined(state.Feed, in.Peer, in.NoticeID, in.At)
		return state, nil
	case evPeerLeft:
		state.Feed = AppendPeerLeft(state.Feed, in.Peer, in.NoticeID, in.At)
		return state, nil
	case evTypersReplaced:
		state.Typers = ReplaceTypers(in.Typers)
		return state, nil
	default:
		return state, nil
	}
}

func transportGen(input actor.Input) (int64, bool) {
	switch in := input.(type) {
	case evConnected:
		return in.Gen, true
	case evDisconnected:
		return in.Gen, true
	case evConnectFailed:
		return in.Gen, true
	case evMessageReceived:
		return in.Gen, true
	case evPrivateMessageReceived:
		return in.Gen, true
	case evRosterReplaced:
		return in.Gen, true
	case evPeerJoined:
		return in.Gen, true
	case evPeerLeft:
		return in.Gen, true
	case evTypersReplaced:
		return in.Gen, true
	default:
		return 0, false
	}
}

func reduceJoin(state State, cmd cmdJoin) (State, []actor.Effect) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return state, []actor.Effect{effCompleteReply{
			Reply: cmd.Reply,
			Err:   &ValidationError{Field: "username", Reason: "must not be empty"},
		}}
	}

	state.ConnGen++
	state.Conn = ConnConnecting
	state.DisconnectReason = ""
	state.Identity = Identity{Username: username}

	var effects []actor.Effect
	state, effects = cancelTyping(state, effects)
	effects = append(effects,
		effConnect{Gen: state.ConnGen},
		effEmit{Event: wire.EventUserJoin, Payload: username},
		effCompleteReply{Reply: cmd.Reply},
	)
	return state, effects
}

func reduceSendMessage(state State, cmd cmdSendMessage) (State, []actor.Effect) {
	text, target := cmd.Text, cmd.Target
	if cmd.FromCompose {
		text, target = state.Compose, state.Target
	}

	// Blank input is not an error, just nothing to do.
	if strings.TrimSpace(text) == "" {
		return state, []actor.Effect{effCompleteReply{Reply: cmd.Reply}}
	}
	if target != nil && target.ID == "" {
		return state, []actor.Effect{effCompleteReply{
			Reply: cmd.Reply,
			Err:   &ValidationError{Field: "target", Reason: "peer has no id"},
		}}
	}

	var effects []actor.Effect
	if target != nil {
		effects = append(effects, effEmit{
			Event:   wire.EventPrivateMessage,
			Payload: wire.PrivateMessagePayload{To: target.ID, Message: text},
		})
	} else {
		effects = append(effects, effEmit{
			Event:   wire.EventSendMessage,
			Payload: wire.SendMessagePayload{Message: text},
		})
	}

	state.Compose = ""
	state, effects = cancelTyping(state, effects)
	effects = append(effects, emitTyping(false), effCompleteReply{Reply: cmd.Reply})
	return state, effects
}

// reduceCompose handles one keystroke: the first keystroke while idle sends
// typing(true) right away; every keystroke re-arms the debounce timer.
func reduceCompose(state State, cmd cmdCompose) (State, []actor.Effect) {
	state.Compose = cmd.Text

	var effects []actor.Effect
	if state.Typing != TypingSignaling {
		state.Typing = TypingSignaling
		effects = append(effects, emitTyping(true))
	}
	state.TypingGen++
	effects = append(effects, effStartTypingTimer{Gen: state.TypingGen, After: state.TypingDebounce})
	return state, effects
}

func reduceTypingTimerFired(state State, ev evTypingTimerFired) (State, []actor.Effect) {
	if ev.Gen != state.TypingGen || state.Typing != TypingSignaling {
		return state, nil
	}
	state.Typing = TypingIdle
	return state, []actor.Effect{emitTyping(false)}
}

func reduceSelectTarget(state State, cmd cmdSelectTarget) (State, []actor.Effect) {
	if cmd.Target == nil || cmd.Target.ID == "" {
		state.Target = nil
		return state, nil
	}
	target := *cmd.Target
	state.Target = &target
	return state, nil
}

func reduceLeave(state State, cmd cmdLeave) (State, []actor.Effect) {
	state.ConnGen++
	state.Conn = ConnDisconnected
	state.DisconnectReason = cmd.Reason
	state.Identity.ID = ""

	var effects []actor.Effect
	state, effects = cancelTyping(state, effects)
	effects = append(effects, effDisconnect{}, effCompleteReply{Reply: cmd.Reply})
	return state, effects
}

// reduceDropped applies a transport loss. The session is over until the user
// joins again; feed, roster and typers are kept.
func reduceDropped(state State, reason string) (State, []actor.Effect) {
	state.Conn = ConnDisconnected
	state.DisconnectReason = reason
	var effects []actor.Effect
	state, effects = cancelTyping(state, effects)
	return state, effects
}

// cancelTyping disarms the debounce timer and returns to idle without telling
// the relay; callers decide whether typing(false) is sent.
func cancelTyping(state State, effects []actor.Effect) (State, []actor.Effect) {
	state.Typing = TypingIdle
	state.TypingGen++
	return state, append(effects, effCancelTypingTimer{})
}

func emitTyping(typing bool) effEmit {
	return effEmit{Event: wire.EventTyping, Payload: typing}
}
