package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one in-call chat event
// The full log is forwarded incrementally to the storage collaborator;
// new joiners only receive a capped replay of the most recent messages
type ChatMessage struct {
	MessageID  uuid.UUID `json:"message_id" cql:"message_id"`
	SenderID   uuid.UUID `json:"sender_id" cql:"sender_id"`
	SenderName string    `json:"sender_name" cql:"sender_name"`
	Content    string    `json:"content" cql:"content"`
	SentAt     time.Time `json:"sent_at" cql:"sent_at"`
}
