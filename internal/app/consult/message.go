package consult

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of frame exchanged over the consultation
// chat socket.
type MessageType string

const (
	// TypeInitData is sent to a client right after joining, carrying the
	// current room state.
	TypeInitData MessageType = "INIT_DATA"

	// TypeText is a chat message from one participant to the other.
	TypeText MessageType = "TEXT"

	// TypeUserJoined and TypeUserLeft announce presence changes.
	TypeUserJoined MessageType = "USER_JOINED"
	TypeUserLeft   MessageType = "USER_LEFT"

	// TypeConfirm acknowledges a client message by its temporary ID.
	TypeConfirm MessageType = "CONFIRM"

	// TypeError reports a rejected client action.
	TypeError MessageType = "ERROR"
)

// Participant is the chat-visible identity of one side of a consultation.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SystemUser is the sender of server-originated frames.
var SystemUser = Participant{ID: "system", Name: "System", Role: "system"}

// Message is the wire frame for all socket traffic.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	RoomID    string          `json:"roomId"`
	Sender    Participant     `json:"sender"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TextPayload carries one chat message body.
type TextPayload struct {
	Content string `json:"content"`
}

// UserEventPayload carries the participant of a join/leave announcement.
type UserEventPayload struct {
	User Participant `json:"user"`
}

// InitDataPayload is the room snapshot delivered on join.
type InitDataPayload struct {
	CurrentUser Participant   `json:"currentUser"`
	OnlineUsers []Participant `json:"onlineUsers"`
	MaxUsers    int           `json:"maxUsers"`
}

// ConfirmPayload acknowledges delivery of a client message.
type ConfirmPayload struct {
	TempID    string `json:"tempID"`
	MessageID string `json:"messageID"`
}

// ErrorPayload reports a rejected action to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a Message with a fresh ID and the payload marshaled.
func NewMessage(msgType MessageType, roomID string, sender Participant, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		RoomID:    roomID,
		Sender:    sender,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}
