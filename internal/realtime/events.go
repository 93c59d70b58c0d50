// Package realtime is the websocket client for the chat event channel.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Event names the real-time events exchanged with the socket server.
type Event string

const (
	EventConnected       Event = "connected"
	EventDisconnect      Event = "disconnect"
	EventJoinChat        Event = "joinChat"
	EventLeaveChat       Event = "leaveChat"
	EventUpdateGroupName Event = "updateGroupName"
	EventMessageReceived Event = "messageReceived"
	EventMessageEdited   Event = "messageEdited"
	EventNewChat         Event = "newChat"
	EventSocketError     Event = "socketError"
	EventStopTyping      Event = "stopTyping"
	EventTyping          Event = "typing"
	EventMessageDeleted  Event = "messageDeleted"
	EventMessageRead     Event = "messageRead"
	EventCheckUserStatus Event = "checkUserStatus"
	EventUserOnline      Event = "userOnline"
	EventUserOffline     Event = "userOffline"
)

// Frame is one message on the wire.
type Frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes payload into a frame for ev.
func NewFrame(ev Event, payload any) (Frame, error) {
	f := Frame{Event: ev}
	if payload == nil {
		return f, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", ev, err)
	}
	f.Data = b
	return f, nil
}

// ChatRef addresses a chat (joinChat, messageRead emitted by us).
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// Typing is the payload of typing and stopTyping.
type Typing struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId,omitempty"`
}

// Read is the payload of an inbound messageRead receipt.
type Read struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Presence is the payload of checkUserStatus, userOnline and userOffline.
type Presence struct {
	UserID string `json:"userId"`
}

// GroupName is the payload of updateGroupName.
type GroupName struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

// SocketError is the payload of socketError.
type SocketError struct {
	Message string `json:"message"`
}
