package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/support-triage/internal/models"
	"github.com/xaenox/support-triage/internal/notify"
	"github.com/xaenox/support-triage/internal/storage"
	"github.com/xaenox/support-triage/internal/triage"
	"go.uber.org/zap"
)

type SubmitRequest struct {
	ConversationID string
	Category       models.Category
	ClientEmail    string
	Summary        string
}

// Service files tickets. Persisting the ticket is authoritative; the
// notification is best-effort.
type Service struct {
	store    storage.Storage
	composer *Composer
	notifier notify.Notifier
	locker   triage.Locker
	logger   *zap.Logger
}

func NewService(store storage.Storage, composer *Composer, notifier notify.Notifier, locker triage.Locker, logger *zap.Logger) *Service {
	if locker == nil {
		locker = triage.NewLocalLocker()
	}
	return &Service{
		store:    store,
		composer: composer,
		notifier: notifier,
		locker:   locker,
		logger:   logger,
	}
}

// Submit creates the single ticket of a completed conversation.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Ticket, error) {
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: summary is empty", models.ErrInvalidInput)
	}
	if req.Category != "" && !req.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, req.Category)
	}

	unlock, err := s.locker.Lock(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: conversation %s is %s", models.ErrInvalidState, conv.ID, conv.Status)
	}

	existing, err := s.store.GetTicketByConversation(ctx, conv.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: ticket %s already filed for conversation %s", models.ErrInvalidState, existing.ID, conv.ID)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	transcript, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	t := s.composer.Compose(*conv, transcript, req.Category, req.ClientEmail, summary)
	if err := s.store.CreateTicket(ctx, &t); err != nil {
		return nil, err
	}

	s.logger.Info("Ticket created",
		zap.String("ticket_id", t.ID),
		zap.String("conversation_id", conv.ID),
		zap.String("category", string(t.Category)),
		zap.String("assigned_to", t.AssignedTo))

	s.notify(ctx, t)
	return &t, nil
}

func (s *Service) notify(ctx context.Context, t models.Ticket) {
	email, err := RenderEmail(t)
	if err == nil {
		err = s.notifier.Send(ctx, email)
	}
	if err != nil {
		s.logger.Error("Failed to send ticket email",
			zap.Error(err),
			zap.String("ticket_id", t.ID),
			zap.String("to", t.AssignedTo))
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}
