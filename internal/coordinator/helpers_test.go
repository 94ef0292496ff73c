package coordinator

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"teleconsult-backend/internal/domain"
	"teleconsult-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}

// captureSender records every event delivered per connection
type captureSender struct {
	mu     sync.Mutex
	events map[string][]*Event
}

func newCaptureSender() *captureSender {
	return &captureSender{events: make(map[string][]*Event)}
}

func (c *captureSender) Send(connectionID string, event *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[connectionID] = append(c.events[connectionID], event)
}

func (c *captureSender) byType(connectionID, eventType string) []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Event
	for _, e := range c.events[connectionID] {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (c *captureSender) count(connectionID, eventType string) int {
	return len(c.byType(connectionID, eventType))
}

func (c *captureSender) totalOfType(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, events := range c.events {
		for _, e := range events {
			if e.Type == eventType {
				n++
			}
		}
	}
	return n
}

// fakeStore surfaces async storage writes through channels so tests can
// wait for the fire-and-forget goroutines
type fakeStore struct {
	chatCh   chan *domain.ChatMessage
	resultCh chan *domain.CallResult
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chatCh:   make(chan *domain.ChatMessage, 16),
		resultCh: make(chan *domain.CallResult, 16),
	}
}

func (f *fakeStore) AppendChatMessage(_ context.Context, _ string, msg *domain.ChatMessage) error {
	f.chatCh <- msg
	return f.err
}

func (f *fakeStore) SaveCallResult(_ context.Context, result *domain.CallResult) error {
	f.resultCh <- result
	return f.err
}

func (f *fakeStore) waitResult(t *testing.T) *domain.CallResult {
	t.Helper()
	select {
	case r := <-f.resultCh:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call result write")
		return nil
	}
}

func (f *fakeStore) waitChat(t *testing.T) *domain.ChatMessage {
	t.Helper()
	select {
	case m := <-f.chatCh:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chat archive write")
		return nil
	}
}

func testRegistry(sender Sender, store Store) *Registry {
	return NewRegistry(Config{}, sender, store, nil)
}

func testJoinInfo(role domain.Role, name string) JoinInfo {
	return JoinInfo{
		UserID:      uuid.New(),
		Role:        role,
		DisplayName: name,
	}
}
