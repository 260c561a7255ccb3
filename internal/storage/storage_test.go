package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/support-triage/internal/models"
)

// testStorage runs the persistence contract against any Storage.
func testStorage(t *testing.T, newStore func(t *testing.T) Storage) {
	t.Run("ConversationRoundTrip", func(t *testing.T) { testConversationRoundTrip(t, newStore(t)) })
	t.Run("ConversationNotFound", func(t *testing.T) { testConversationNotFound(t, newStore(t)) })
	t.Run("MessagesInCreationOrder", func(t *testing.T) { testMessagesInCreationOrder(t, newStore(t)) })
	t.Run("TicketRoundTrip", func(t *testing.T) { testTicketRoundTrip(t, newStore(t)) })
	t.Run("DeleteDetachesTicket", func(t *testing.T) { testDeleteDetachesTicket(t, newStore(t)) })
	t.Run("AbandonIdle", func(t *testing.T) { testAbandonIdle(t, newStore(t)) })
	t.Run("UpdateOnlyWhileActive", func(t *testing.T) { testUpdateOnlyWhileActive(t, newStore(t)) })
}

func newConversation(t *testing.T, s Storage, createdAt time.Time) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		CreatedAt: createdAt,
		Status:    models.StatusActive,
	}
	if err := s.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func addMessage(t *testing.T, s Storage, convID string, role models.Role, content string, at time.Time) {
	t.Helper()
	err := s.AddMessage(context.Background(), &models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	})
	if err != nil {
		t.Fatalf("add message: %v", err)
	}
}

func testConversationRoundTrip(t *testing.T, s Storage) {
	ctx := context.Background()
	conv := &models.Conversation{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		Status:      models.StatusActive,
		ClientEmail: "client@example.com",
	}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusActive || got.Category != "" || got.ClientEmail != "client@example.com" {
		t.Errorf("unexpected conversation %+v", got)
	}
	if !got.CreatedAt.Equal(conv.CreatedAt) {
		t.Errorf("created_at: got %v, want %v", got.CreatedAt, conv.CreatedAt)
	}

	got.Category = models.CategoryEmail
	got.Status = models.StatusCompleted
	if err := s.UpdateConversation(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	again, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if again.Category != models.CategoryEmail || again.Status != models.StatusCompleted {
		t.Errorf("update not persisted: %+v", again)
	}
}

func testConversationNotFound(t *testing.T, s Storage) {
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := s.GetConversation(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateConversation(ctx, &models.Conversation{ID: id, Status: models.StatusActive}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteConversation(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetTicket(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("get ticket: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetTicketByConversation(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("get ticket by conversation: expected ErrNotFound, got %v", err)
	}
}

func testMessagesInCreationOrder(t *testing.T, s Storage) {
	ctx := context.Background()
	now := time.Now()
	conv := newConversation(t, s, now)
	other := newConversation(t, s, now)

	// identical timestamps must still come back in insertion order
	for i := 0; i < 5; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		addMessage(t, s, conv.ID, role, fmt.Sprintf("message %d", i), now)
	}
	addMessage(t, s, other.ID, models.RoleUser, "elsewhere", now)

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("position %d: got %q", i, m.Content)
		}
		if m.ConversationID != conv.ID {
			t.Errorf("position %d: wrong conversation %s", i, m.ConversationID)
		}
	}
	if msgs[1].Role != models.RoleAssistant {
		t.Errorf("expected assistant role, got %s", msgs[1].Role)
	}

	empty, err := s.ListMessages(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("list unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no messages, got %d", len(empty))
	}
}

func testTicketRoundTrip(t *testing.T, s Storage) {
	ctx := context.Background()
	conv := newConversation(t, s, time.Now())

	ticket := &models.Ticket{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Category:       models.CategoryWebsite,
		AssignedTo:     "webteam@example.com",
		Summary:        "Homepage broken",
		Details:        "USER: fix it",
		CreatedAt:      time.Now(),
	}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	got, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got.ConversationID != conv.ID || got.AssignedTo != "webteam@example.com" || got.ClientEmail != "" {
		t.Errorf("unexpected ticket %+v", got)
	}
	if got.Details != "USER: fix it" {
		t.Errorf("unexpected details %q", got.Details)
	}

	byConv, err := s.GetTicketByConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get by conversation: %v", err)
	}
	if byConv.ID != ticket.ID {
		t.Errorf("expected ticket %s, got %s", ticket.ID, byConv.ID)
	}
}

func testDeleteDetachesTicket(t *testing.T, s Storage) {
	ctx := context.Background()
	conv := newConversation(t, s, time.Now())
	addMessage(t, s, conv.ID, models.RoleUser, "hello", time.Now())

	ticket := &models.Ticket{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Category:       models.CategoryAdmin,
		AssignedTo:     "adminteam@example.com",
		Summary:        "Invoice",
		Details:        "USER: hello",
		CreatedAt:      time.Now(),
	}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetConversation(ctx, conv.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected conversation to be gone, got %v", err)
	}
	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected messages to be deleted, got %d", len(msgs))
	}

	got, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ticket should survive deletion: %v", err)
	}
	if got.ConversationID != "" {
		t.Errorf("expected detached ticket, got conversation %q", got.ConversationID)
	}
}

func testAbandonIdle(t *testing.T, s Storage) {
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-time.Hour)

	idle := newConversation(t, s, now.Add(-3*time.Hour))
	addMessage(t, s, idle.ID, models.RoleUser, "hi", now.Add(-2*time.Hour))

	recent := newConversation(t, s, now.Add(-3*time.Hour))
	addMessage(t, s, recent.ID, models.RoleUser, "hi", now.Add(-time.Minute))

	fresh := newConversation(t, s, now)

	done := newConversation(t, s, now.Add(-3*time.Hour))
	done.Status = models.StatusCompleted
	if err := s.UpdateConversation(ctx, done); err != nil {
		t.Fatalf("update: %v", err)
	}

	n, err := s.AbandonIdle(ctx, cutoff)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 abandoned conversation, got %d", n)
	}

	want := map[string]models.Status{
		idle.ID:   models.StatusAbandoned,
		recent.ID: models.StatusActive,
		fresh.ID:  models.StatusActive,
		done.ID:   models.StatusCompleted,
	}
	for id, status := range want {
		got, err := s.GetConversation(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status != status {
			t.Errorf("conversation %s: expected %s, got %s", id, status, got.Status)
		}
	}
}

func testUpdateOnlyWhileActive(t *testing.T, s Storage) {
	ctx := context.Background()
	now := time.Now()

	conv := newConversation(t, s, now.Add(-time.Hour))
	if n, err := s.AbandonIdle(ctx, now); err != nil || n != 1 {
		t.Fatalf("abandon: n=%d err=%v", n, err)
	}

	stale := *conv
	stale.Status = models.StatusCompleted
	stale.Category = models.CategoryWebsite
	if err := s.UpdateConversation(ctx, &stale); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusAbandoned || got.Category != "" {
		t.Errorf("abandoned conversation was overwritten: %+v", got)
	}
}
