// Package triage runs the per-turn conversation state machine: classify the
// transcript, decide whether to ask more or stop, and record the reply.
package triage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/support-triage/internal/classifier"
	"github.com/xaenox/support-triage/internal/models"
	"github.com/xaenox/support-triage/internal/storage"
	"go.uber.org/zap"
)

// FinalizePrompt is the reply when a decision has neither follow-ups nor a summary.
const FinalizePrompt = "Thanks! Please review the details and submit your ticket when ready."

// TurnResult is what a turn hands back to the inbound surface.
type TurnResult struct {
	Conversation models.Conversation
	Decision     models.Decision
	Messages     []models.Message
}

type Engine struct {
	store      storage.ConversationStorage
	classifier classifier.Classifier
	locker     Locker
	logger     *zap.Logger
	now        func() time.Time
}

func NewEngine(store storage.ConversationStorage, clf classifier.Classifier, locker Locker, logger *zap.Logger) *Engine {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Engine{
		store:      store,
		classifier: clf,
		locker:     locker,
		logger:     logger,
		now:        time.Now,
	}
}

// Locker returns the lock shared by every operation that touches a conversation.
func (e *Engine) Locker() Locker {
	return e.locker
}

// StartTurn opens a conversation with the client's first query.
func (e *Engine) StartTurn(ctx context.Context, query, clientEmail string) (*TurnResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrInvalidInput)
	}

	conv := models.Conversation{
		ID:          uuid.NewString(),
		CreatedAt:   e.now(),
		Status:      models.StatusActive,
		ClientEmail: strings.TrimSpace(clientEmail),
	}

	unlock, err := e.locker.Lock(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	if err := e.store.CreateConversation(ctx, &conv); err != nil {
		return nil, err
	}
	first, err := e.appendMessage(ctx, conv.ID, models.RoleUser, query)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Conversation started", zap.String("conversation_id", conv.ID))
	return e.turn(ctx, conv, []models.Message{first})
}

// ContinueTurn records the client's answer and re-classifies the whole
// transcript. Unknown ids fail with ErrNotFound and terminal conversations
// with ErrInvalidState; neither appends anything.
func (e *Engine) ContinueTurn(ctx context.Context, conversationID, answer string) (*TurnResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is empty", models.ErrInvalidInput)
	}

	unlock, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: conversation %s is %s", models.ErrInvalidState, conv.ID, conv.Status)
	}

	if _, err := e.appendMessage(ctx, conv.ID, models.RoleUser, answer); err != nil {
		return nil, err
	}
	history, err := e.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	return e.turn(ctx, *conv, history)
}

// turn classifies history, persists the state transition and appends exactly
// one assistant reply.
func (e *Engine) turn(ctx context.Context, conv models.Conversation, history []models.Message) (*TurnResult, error) {
	decision := e.classifier.ClassifyAndAsk(ctx, models.ChatHistory(history))

	// The write is conditional on the conversation still being active, so a
	// concurrent sweep that abandoned it wins.
	next := Advance(conv, decision)
	if err := e.store.UpdateConversation(ctx, &next); err != nil {
		return nil, err
	}

	reply, err := e.appendMessage(ctx, conv.ID, models.RoleAssistant, ComposeReply(decision))
	if err != nil {
		return nil, err
	}

	e.logger.Info("Triage turn decided",
		zap.String("conversation_id", conv.ID),
		zap.String("category", string(next.Category)),
		zap.Int("follow_ups", len(decision.FollowUps)),
		zap.Bool("stop", decision.Stop))

	return &TurnResult{
		Conversation: next,
		Decision:     decision,
		Messages:     append(history, reply),
	}, nil
}

func (e *Engine) appendMessage(ctx context.Context, conversationID string, role models.Role, content string) (models.Message, error) {
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      e.now(),
	}
	if err := e.store.AddMessage(ctx, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Advance applies a decision to a conversation. The category is replaced only
// when the decision carries one, and an active conversation completes when the
// decision says stop. Terminal conversations are returned unchanged.
func Advance(conv models.Conversation, d models.Decision) models.Conversation {
	if conv.Status.Terminal() {
		return conv
	}
	if d.Category != "" {
		conv.Category = d.Category
	}
	if d.Stop {
		conv.Status = models.StatusCompleted
	}
	return conv
}

// ComposeReply renders the assistant message for a decision: a numbered list
// of follow-ups, else the summary, else FinalizePrompt.
func ComposeReply(d models.Decision) string {
	if len(d.FollowUps) > 0 {
		lines := make([]string, len(d.FollowUps))
		for i, q := range d.FollowUps {
			lines[i] = strconv.Itoa(i+1) + ". " + q
		}
		return strings.Join(lines, "\n")
	}
	if d.Summary != "" {
		return d.Summary
	}
	return FinalizePrompt
}

// Transcript returns the stored messages of an existing conversation.
func (e *Engine) Transcript(ctx context.Context, conversationID string) (*models.Conversation, []models.Message, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := e.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// Delete removes a conversation and its transcript. Tickets filed from it
// are kept and detached.
func (e *Engine) Delete(ctx context.Context, conversationID string) error {
	unlock, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	if err := e.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	e.logger.Info("Conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}
