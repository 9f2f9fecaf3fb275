// Package protocol defines the JSON wire format shared by the relay
// server and its clients. Frames are tagged by a "type" field; inbound
// client frames decode into a closed sum type so the session layer never
// inspects raw JSON.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Status is a user's reported availability state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDnd     Status = "dnd"
	StatusOffline Status = "offline"
)

// Normalize maps empty or unknown status values to StatusOnline.
func (s Status) Normalize() Status {
	switch s {
	case StatusOnline, StatusIdle, StatusDnd, StatusOffline:
		return s
	default:
		return StatusOnline
	}
}

// PresenceUser is a logical user's visible state. ID is stable across
// all of that user's connections.
type PresenceUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Status   Status `json:"status"`
	Avatar   string `json:"avatar,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Frame type tags on the wire.
const (
	TypePresenceUpdate   = "presence_update"
	TypePresenceStatus   = "presence_status"
	TypeChatMessage      = "chat_message"
	TypePresenceSnapshot = "presence_snapshot"
)

// Kind identifies which variant an Inbound frame carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindPresenceUpdate
	KindPresenceStatus
	KindChatMessage
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindPresenceUpdate:
		return "PRESENCE_UPDATE"
	case KindPresenceStatus:
		return "PRESENCE_STATUS"
	case KindChatMessage:
		return "CHAT_MESSAGE"
	default:
		return "UNKNOWN"
	}
}

// Inbound is one decoded client frame. Exactly one variant is populated,
// selected by Kind.
type Inbound struct {
	Kind       Kind
	User       PresenceUser // KindPresenceUpdate
	UserID     string       // KindPresenceStatus
	Status     Status       // KindPresenceStatus
	Ciphertext string       // KindChatMessage
}

type inboundEnvelope struct {
	Type       string        `json:"type"`
	User       *PresenceUser `json:"user"`
	UserID     string        `json:"user_id"`
	Status     Status        `json:"status"`
	Ciphertext string        `json:"ciphertext"`
}

// DecodeInbound decodes a raw client frame. Malformed JSON and
// unrecognized type tags are errors; the caller decides how to handle
// them. Missing or unknown status values normalize to online.
func DecodeInbound(data []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("failed to decode client frame: %w", err)
	}

	switch env.Type {
	case TypePresenceUpdate:
		if env.User == nil {
			return Inbound{}, fmt.Errorf("presence_update frame missing user")
		}
		user := *env.User
		user.Status = user.Status.Normalize()
		return Inbound{Kind: KindPresenceUpdate, User: user}, nil
	case TypePresenceStatus:
		if env.UserID == "" {
			return Inbound{}, fmt.Errorf("presence_status frame missing user_id")
		}
		return Inbound{
			Kind:   KindPresenceStatus,
			UserID: env.UserID,
			Status: env.Status.Normalize(),
		}, nil
	case TypeChatMessage:
		return Inbound{Kind: KindChatMessage, Ciphertext: env.Ciphertext}, nil
	default:
		return Inbound{}, fmt.Errorf("unrecognized frame type %q", env.Type)
	}
}

// EncodePresenceUpdate encodes the client frame announcing user.
func EncodePresenceUpdate(user PresenceUser) ([]byte, error) {
	return json.Marshal(struct {
		Type string       `json:"type"`
		User PresenceUser `json:"user"`
	}{TypePresenceUpdate, user})
}

// EncodePresenceStatus encodes the client frame changing a user's status.
func EncodePresenceStatus(userID string, status Status) ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		UserID string `json:"user_id"`
		Status Status `json:"status"`
	}{TypePresenceStatus, userID, status})
}

// EncodeChatMessage encodes the client frame carrying an encrypted
// chat payload.
func EncodeChatMessage(ciphertext string) ([]byte, error) {
	return json.Marshal(struct {
		Type       string `json:"type"`
		Ciphertext string `json:"ciphertext"`
	}{TypeChatMessage, ciphertext})
}

// Snapshot is the server frame replaying the full presence state to a
// newly registered connection.
type Snapshot struct {
	Users []PresenceUser
}

// Encode encodes the snapshot into a wire frame.
func (s Snapshot) Encode() ([]byte, error) {
	users := s.Users
	if users == nil {
		users = []PresenceUser{}
	}
	return json.Marshal(struct {
		Type  string         `json:"type"`
		Users []PresenceUser `json:"users"`
	}{TypePresenceSnapshot, users})
}

// Update is the server frame broadcast on every presence change.
type Update struct {
	User PresenceUser
}

// Encode encodes the update into a wire frame.
func (u Update) Encode() ([]byte, error) {
	return json.Marshal(struct {
		Type string       `json:"type"`
		User PresenceUser `json:"user"`
	}{TypePresenceUpdate, u.User})
}

// Event is one decoded server frame as seen by a client.
type Event struct {
	Type  string
	Users []PresenceUser // TypePresenceSnapshot
	User  PresenceUser   // TypePresenceUpdate
}

// DecodeEvent decodes a raw server frame.
func DecodeEvent(data []byte) (Event, error) {
	var env struct {
		Type  string         `json:"type"`
		Users []PresenceUser `json:"users"`
		User  *PresenceUser  `json:"user"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("failed to decode server frame: %w", err)
	}

	switch env.Type {
	case TypePresenceSnapshot:
		return Event{Type: env.Type, Users: env.Users}, nil
	case TypePresenceUpdate:
		if env.User == nil {
			return Event{}, fmt.Errorf("presence_update frame missing user")
		}
		return Event{Type: env.Type, User: *env.User}, nil
	default:
		return Event{}, fmt.Errorf("unrecognized frame type %q", env.Type)
	}
}
