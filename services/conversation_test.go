package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

func TestConversationCreateAndGet(t *testing.T) {
	m := NewConversationManager(20)

	id := m.Create()
	if id == "" {
		t.Fatal("expected non-empty conversation id")
	}

	msgs, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history, got %d messages", len(msgs))
	}

	id2 := m.Create()
	if id2 == id {
		t.Error("expected unique conversation ids")
	}
}

func TestConversationNotFound(t *testing.T) {
	m := NewConversationManager(20)

	if _, err := m.Get("missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
	if err := m.Append("missing", models.RoleUser, "hi"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
	if err := m.Clear("missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
	if err := m.Delete("missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestConversationAppendOrder(t *testing.T) {
	m := NewConversationManager(20)
	id := m.Create()

	m.Append(id, models.RoleUser, "question")
	m.Append(id, models.RoleAssistant, "answer")

	msgs, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "question" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "answer" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestConversationEviction(t *testing.T) {
	m := NewConversationManager(4)
	id := m.Create()

	for i := 0; i < 6; i++ {
		if err := m.Append(id, models.RoleUser, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	msgs, _ := m.Get(id)
	if len(msgs) != 4 {
		t.Fatalf("expected history capped at 4, got %d", len(msgs))
	}
	if msgs[0].Content != "msg-2" {
		t.Errorf("expected oldest surviving message msg-2, got %q", msgs[0].Content)
	}
	if msgs[3].Content != "msg-5" {
		t.Errorf("expected newest message msg-5, got %q", msgs[3].Content)
	}
}

func TestConversationClearKeepsConversation(t *testing.T) {
	m := NewConversationManager(20)
	id := m.Create()
	m.Append(id, models.RoleUser, "hello")

	if err := m.Clear(id); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	msgs, err := m.Get(id)
	if err != nil {
		t.Fatalf("conversation should survive Clear: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history after Clear, got %d", len(msgs))
	}

	if err := m.Append(id, models.RoleUser, "again"); err != nil {
		t.Errorf("Append after Clear failed: %v", err)
	}
}

func TestConversationDelete(t *testing.T) {
	m := NewConversationManager(20)
	id := m.Create()

	if err := m.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.Exists(id) {
		t.Error("conversation should not exist after Delete")
	}
	if _, err := m.Get(id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound after Delete, got %v", err)
	}
}

func TestConversationBuildContext(t *testing.T) {
	m := NewConversationManager(20)
	id := m.Create()

	for i := 0; i < 10; i++ {
		m.Append(id, models.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	ctx, err := m.BuildContext(id, 6)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if len(ctx) != 6 {
		t.Fatalf("expected 6 context messages, got %d", len(ctx))
	}
	if ctx[0].Content != "msg-4" || ctx[5].Content != "msg-9" {
		t.Errorf("unexpected context window: first=%q last=%q", ctx[0].Content, ctx[5].Content)
	}
}

func TestConversationConcurrentAppend(t *testing.T) {
	m := NewConversationManager(1000)
	id := m.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.Append(id, models.RoleUser, fmt.Sprintf("w%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	msgs, _ := m.Get(id)
	if len(msgs) != 500 {
		t.Errorf("expected 500 messages, got %d", len(msgs))
	}
}
