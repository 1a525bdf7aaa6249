package ws

import (
	"encoding/json"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/domain"
)

// Socket event catalog.
const (
	EvtJoinRoom             = "join_room"
	EvtRoomJoined           = "room_joined"
	EvtUserJoined           = "user_joined"
	EvtUserLeft             = "user_left"
	EvtLeaveRoom            = "leave_room"
	EvtSendMessage          = "send_message"
	EvtMessageReceived      = "message_received"
	EvtVoiceMessage         = "voice_message"
	EvtVoiceMessageReceived = "voice_message_received"
	EvtScreenShare          = "screen_share"
	EvtTyping               = "typing"
	EvtCursorPosition       = "cursor_position"
	EvtHeartbeat            = "heartbeat"
	EvtHeartbeatAck         = "heartbeat_ack"
	EvtError                = "error"
)

// Message is the wire envelope for both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newMessage(typ string, payload any) Message {
	raw, _ := json.Marshal(payload)
	return Message{Type: typ, Payload: raw}
}

type JoinRoomPayload struct {
	CollaborationSessionID string `json:"collaborationSessionId"`
	Role                   string `json:"role,omitempty"`
}

type RoomJoinedPayload struct {
	CollaborationSession *domain.CollaborationSession `json:"collaborationSession"`
	Participants         []domain.Participant         `json:"participants"`
}

// PeerEventPayload backs user_joined / user_left.
type PeerEventPayload struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type LeaveRoomPayload struct {
	CollaborationSessionID string `json:"collaborationSessionId"`
}

type SendMessagePayload struct {
	CollaborationSessionID string            `json:"collaborationSessionId"`
	Type                   string            `json:"type"`
	Content                string            `json:"content"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

type VoiceMessagePayload struct {
	CollaborationSessionID string `json:"collaborationSessionId"`
	AudioData              string `json:"audioData"` // base64
	Language               string `json:"language,omitempty"`
}

// VoiceReceivedPayload re-broadcasts the raw audio alongside the persisted
// transcript so participants can play it back.
type VoiceReceivedPayload struct {
	Message   *domain.Message `json:"message"`
	AudioData string          `json:"audioData"`
}

type ScreenSharePayload struct {
	CollaborationSessionID string `json:"collaborationSessionId"`
	Action                 string `json:"action"` // start|stop
	StreamID               string `json:"streamId,omitempty"`
	UserID                 string `json:"userId,omitempty"` // set on broadcast
}

type TypingPayload struct {
	IsTyping bool   `json:"isTyping"`
	UserID   string `json:"userId,omitempty"` // set on broadcast
}

type CursorPositionPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID string  `json:"userId,omitempty"` // set on broadcast
}

type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
