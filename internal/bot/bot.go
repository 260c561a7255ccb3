// Package bot is a Telegram intake surface for triage conversations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-triage/internal/models"
	"github.com/xaenox/support-triage/internal/ticket"
	"github.com/xaenox/support-triage/internal/triage"
	"go.uber.org/zap"
)

const maxSummaryLen = 120

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// session tracks the conversation a chat is currently in.
type session struct {
	conversationID string
	summary        string
	email          string
	completed      bool
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	engine  *triage.Engine
	tickets *ticket.Service
	logger  *zap.Logger

	chatLocks *triage.LocalLocker
	mu        sync.Mutex
	sessions  map[int64]*session
}

func New(token string, engine *triage.Engine, tickets *ticket.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, engine, tickets, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, engine *triage.Engine, tickets *ticket.Service, logger *zap.Logger) *Bot {
	return &Bot{
		sender:    s,
		engine:    engine,
		tickets:   tickets,
		logger:    logger,
		chatLocks: triage.NewLocalLocker(),
		sessions:  make(map[int64]*session),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	unlock, err := b.chatLocks.Lock(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		return
	}
	defer unlock()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		b.sendMessage(chatID, "Please describe your request in text.")
		return
	}

	b.handleText(ctx, chatID, content)
}

func (b *Bot) handleText(ctx context.Context, chatID int64, content string) {
	sess := b.session(chatID)

	var (
		res *triage.TurnResult
		err error
	)
	switch {
	case sess == nil:
		res, err = b.engine.StartTurn(ctx, content, "")
	case sess.completed:
		b.sendMessage(chatID, "Your request is ready. Use /submit to file it or /new to start over.")
		return
	default:
		res, err = b.engine.ContinueTurn(ctx, sess.conversationID, content)
	}

	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidState) {
		b.dropSession(chatID)
		b.sendErrorMessage(chatID, "That conversation is no longer open. Send your request again to start a new one.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to run triage turn",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Sorry, I couldn't process your message. Please try again.")
		return
	}

	if sess == nil {
		sess = &session{
			conversationID: res.Conversation.ID,
			summary:        summarize(content),
		}
		b.setSession(chatID, sess)
	}
	sess.completed = res.Conversation.Status == models.StatusCompleted

	reply := res.Messages[len(res.Messages)-1].Content
	if sess.completed {
		reply += "\n\nUse /submit to file your ticket."
	}
	b.sendMessage(chatID, reply)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "new":
		b.dropSession(message.Chat.ID)
		b.sendMessage(message.Chat.ID, "Okay, describe your new request.")
	case "email":
		b.handleEmail(message)
	case "submit":
		b.handleSubmit(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to support intake!
Tell me what you need help with and I'll ask a few questions to route it to the right team.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/new - Start a new request
/email <address> - Set the email we reply to
/submit - File the ticket once your request is ready`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleEmail(message *tgbotapi.Message) {
	addr := strings.TrimSpace(message.CommandArguments())
	if !strings.Contains(addr, "@") {
		b.sendMessage(message.Chat.ID, "Usage: /email you@example.com")
		return
	}

	sess := b.session(message.Chat.ID)
	if sess == nil {
		b.sendMessage(message.Chat.ID, "Describe your request first, then set your email.")
		return
	}
	sess.email = addr
	b.sendMessage(message.Chat.ID, "Thanks, we'll reply to "+addr+".")
}

func (b *Bot) handleSubmit(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	sess := b.session(chatID)
	if sess == nil {
		b.sendMessage(chatID, "There is no request to submit. Describe what you need first.")
		return
	}

	t, err := b.tickets.Submit(ctx, ticket.SubmitRequest{
		ConversationID: sess.conversationID,
		ClientEmail:    sess.email,
		Summary:        sess.summary,
	})
	if errors.Is(err, models.ErrInvalidState) {
		b.sendMessage(chatID, "Your request isn't ready yet. Please answer the questions above first.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to submit ticket",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("conversation_id", sess.conversationID))
		b.sendErrorMessage(chatID, "Sorry, I couldn't file your ticket. Please try again later.")
		return
	}

	b.dropSession(chatID)
	b.sendTicketConfirmation(chatID, t)
}

func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

func (b *Bot) setSession(chatID int64, s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[chatID] = s
}

func (b *Bot) dropSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

// summarize uses the opening request, cut at a word boundary when there is
// one. maxSummaryLen counts characters, not bytes.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxSummaryLen {
		return text
	}
	cut := string(runes[:maxSummaryLen])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendTicketConfirmation(chatID int64, t *models.Ticket) {
	category := "#" + string(t.Category)

	text := "*Ticket filed\\!*\n"
	text += fmt.Sprintf("*Category:* %s\n", escapeMarkdown(category))
	text += fmt.Sprintf("*Assigned to:* %s\n", escapeMarkdown(t.AssignedTo))
	text += fmt.Sprintf("*Reference:* `%s`", escapeMarkdown(t.ID))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send ticket confirmation",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("ticket_id", t.ID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
