package domain

import "time"

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageVoice  MessageType = "voice"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageText, MessageVoice, MessageImage, MessageSystem:
		return MessageType(s), nil
	}
	return "", ErrInvalidMessageType
}

// Message is persisted before any broadcast is acknowledged and is
// immutable thereafter.
type Message struct {
	ID        string            `db:"id" json:"id"`
	SessionID string            `db:"session_id" json:"collaborationSessionId"`
	UserID    string            `db:"user_id" json:"userId"`
	Type      MessageType       `db:"type" json:"type"`
	Content   string            `db:"content" json:"content"`
	Metadata  map[string]string `db:"metadata" json:"metadata,omitempty"`
	Timestamp time.Time         `db:"created_at" json:"timestamp"`
}
