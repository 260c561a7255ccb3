package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xaenox/support-triage/internal/models"
)

func TestMemoryStorage(t *testing.T) {
	testStorage(t, func(t *testing.T) Storage { return NewMemoryStorage() })
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	conv := newConversation(t, s, time.Now())

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = models.StatusCompleted

	again, _ := s.GetConversation(ctx, conv.ID)
	if again.Status != models.StatusActive {
		t.Error("mutating a returned conversation must not change stored state")
	}
}

func TestMemoryStorage_AddMessageUnknownConversation(t *testing.T) {
	s := NewMemoryStorage()
	err := s.AddMessage(context.Background(), &models.Message{ID: "m", ConversationID: "missing"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
