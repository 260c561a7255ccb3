package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/support-triage/internal/models"
)

type MemoryStorage struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	tickets       map[string]*models.Ticket
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		tickets:       make(map[string]*models.Ticket),
	}
}

// Conversation methods
func (s *MemoryStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("storage: conversation %s already exists", conv.ID)
	}
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	c := *conv
	return &c, nil
}

func (s *MemoryStorage) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.conversations[conv.ID]
	if !exists {
		return fmt.Errorf("conversation %s: %w", conv.ID, models.ErrNotFound)
	}
	if stored.Status != models.StatusActive {
		return fmt.Errorf("%w: conversation %s is %s", models.ErrInvalidState, conv.ID, stored.Status)
	}
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

func (s *MemoryStorage) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	delete(s.conversations, id)
	delete(s.messages, id)

	for _, t := range s.tickets {
		if t.ConversationID == id {
			t.ConversationID = ""
		}
	}
	return nil
}

func (s *MemoryStorage) AbandonIdle(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, conv := range s.conversations {
		if conv.Status != models.StatusActive {
			continue
		}
		last := conv.CreatedAt
		if msgs := s.messages[id]; len(msgs) > 0 && msgs[len(msgs)-1].CreatedAt.After(last) {
			last = msgs[len(msgs)-1].CreatedAt
		}
		if last.Before(cutoff) {
			conv.Status = models.StatusAbandoned
			n++
		}
	}
	return n, nil
}

// Message methods
func (s *MemoryStorage) AddMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[msg.ConversationID]; !exists {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, models.ErrNotFound)
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

func (s *MemoryStorage) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Ticket methods
func (s *MemoryStorage) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tickets[ticket.ID]; exists {
		return fmt.Errorf("storage: ticket %s already exists", ticket.ID)
	}
	t := *ticket
	s.tickets[ticket.ID] = &t
	return nil
}

func (s *MemoryStorage) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tickets[id]
	if !exists {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (s *MemoryStorage) GetTicketByConversation(ctx context.Context, conversationID string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tickets {
		if conversationID != "" && t.ConversationID == conversationID {
			out := *t
			return &out, nil
		}
	}
	return nil, fmt.Errorf("ticket for conversation %s: %w", conversationID, models.ErrNotFound)
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
