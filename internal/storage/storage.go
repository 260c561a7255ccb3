package storage

import (
	"context"
	"time"

	"github.com/xaenox/support-triage/internal/models"
)

// Storage is the persistence collaborator of the triage core. Missing records
// are reported as models.ErrNotFound.
type Storage interface {
	ConversationStorage
	TicketStorage
	Close() error
}

type ConversationStorage interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// UpdateConversation writes conv only while the stored conversation is
	// still active. A terminal conversation fails with ErrInvalidState.
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
	// DeleteConversation removes a conversation and its messages. Tickets
	// created from it are kept with an empty conversation reference.
	DeleteConversation(ctx context.Context, id string) error
	// AbandonIdle marks active conversations without activity since cutoff
	// as abandoned and returns how many were changed.
	AbandonIdle(ctx context.Context, cutoff time.Time) (int, error)

	AddMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns a conversation's messages in creation order.
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type TicketStorage interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByConversation(ctx context.Context, conversationID string) (*models.Ticket, error)
}
