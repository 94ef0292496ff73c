package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"teleconsult-backend/internal/domain"
)

// ChatArchiveRepository stores in-call chat transcripts in Cassandra.
// Rows are bucketed by month so a long-lived consultation key never grows
// an unbounded partition.
type ChatArchiveRepository struct {
	session *gocql.Session
}

// NewChatArchiveRepository creates a new ChatArchiveRepository
func NewChatArchiveRepository(session *gocql.Session) *ChatArchiveRepository {
	return &ChatArchiveRepository{session: session}
}

// bucketFor maps a timestamp to its YYYYMM partition bucket
func bucketFor(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

// Append writes one chat message to the session's transcript
func (r *ChatArchiveRepository) Append(ctx context.Context, sessionKey string, msg *domain.ChatMessage) error {
	if msg.MessageID == uuid.Nil {
		msg.MessageID = uuid.New()
	}

	query := `
		INSERT INTO call_chat_messages (
			session_key, bucket, message_id, sender_id, sender_name, content, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		sessionKey,
		bucketFor(msg.SentAt),
		msg.MessageID,
		msg.SenderID,
		msg.SenderName,
		msg.Content,
		msg.SentAt,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to archive chat message: %w", err)
	}

	return nil
}

// GetTranscript retrieves the most recent messages for a session within a bucket
func (r *ChatArchiveRepository) GetTranscript(ctx context.Context, sessionKey string, bucket int, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT message_id, sender_id, sender_name, content, sent_at
		FROM call_chat_messages
		WHERE session_key = ? AND bucket = ?
		ORDER BY sent_at DESC
		LIMIT ?
	`

	iter := r.session.Query(query, sessionKey, bucket, limit).WithContext(ctx).Iter()
	defer iter.Close()

	var messages []*domain.ChatMessage
	for {
		msg := &domain.ChatMessage{}
		if !iter.Scan(&msg.MessageID, &msg.SenderID, &msg.SenderName, &msg.Content, &msg.SentAt) {
			break
		}
		messages = append(messages, msg)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read chat transcript: %w", err)
	}

	return messages, nil
}
