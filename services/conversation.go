package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// ConversationManager holds chat histories in memory, keyed by conversation
// id. Histories are bounded: when a conversation reaches the maximum the
// oldest message is dropped before the new one is appended.
type ConversationManager struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	maxMessages   int
}

type conversation struct {
	mu       sync.Mutex
	messages []models.ConversationMessage
	created  time.Time
}

func NewConversationManager(maxMessages int) *ConversationManager {
	if maxMessages < 2 {
		maxMessages = 2
	}
	return &ConversationManager{
		conversations: make(map[string]*conversation),
		maxMessages:   maxMessages,
	}
}

// Create registers a new empty conversation and returns its id.
func (m *ConversationManager) Create() string {
	id := uuid.New().String()

	m.mu.Lock()
	m.conversations[id] = &conversation{created: time.Now()}
	m.mu.Unlock()

	return id
}

// Get returns a copy of the conversation history.
func (m *ConversationManager) Get(id string) ([]models.ConversationMessage, error) {
	m.mu.RLock()
	conv, ok := m.conversations[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrConversationNotFound
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	out := make([]models.ConversationMessage, len(conv.messages))
	copy(out, conv.messages)
	return out, nil
}

// Append adds a message to the conversation, evicting the oldest message
// first when the history is full.
func (m *ConversationManager) Append(id, role, content string) error {
	m.mu.RLock()
	conv, ok := m.conversations[id]
	m.mu.RUnlock()
	if !ok {
		return ErrConversationNotFound
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	if len(conv.messages) >= m.maxMessages {
		conv.messages = conv.messages[1:]
	}
	conv.messages = append(conv.messages, models.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	return nil
}

// Clear empties the history but keeps the conversation alive.
func (m *ConversationManager) Clear(id string) error {
	m.mu.RLock()
	conv, ok := m.conversations[id]
	m.mu.RUnlock()
	if !ok {
		return ErrConversationNotFound
	}

	conv.mu.Lock()
	conv.messages = nil
	conv.mu.Unlock()
	return nil
}

// Delete removes the conversation entirely.
func (m *ConversationManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(m.conversations, id)
	return nil
}

// Exists reports whether the conversation id is known.
func (m *ConversationManager) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conversations[id]
	return ok
}

// Count returns the number of live conversations.
func (m *ConversationManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// BuildContext returns the last n messages of the conversation for prompt
// assembly, oldest first.
func (m *ConversationManager) BuildContext(id string, n int) ([]models.ConversationMessage, error) {
	msgs, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}
