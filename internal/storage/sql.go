package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/support-triage/internal/models"
)

// sqlStorage holds the queries shared by the PostgreSQL and SQLite stores.
// Queries are written with ? placeholders and rebound per driver. Times are
// stored as unix nanoseconds.
type sqlStorage struct {
	db          *sql.DB
	numberedArg bool
}

func (s *sqlStorage) rebind(query string) string {
	if !s.numberedArg {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStorage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *sqlStorage) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (s *sqlStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	_, err := s.exec(ctx, `
		INSERT INTO conversations (id, created_at, status, category, client_email)
		VALUES (?, ?, ?, ?, ?)`,
		conv.ID, toUnix(conv.CreatedAt), string(conv.Status),
		nullString(string(conv.Category)), nullString(conv.ClientEmail))
	if err != nil {
		return fmt.Errorf("storage: create conversation: %w", err)
	}
	return nil
}

func (s *sqlStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var (
		conv        models.Conversation
		createdAt   int64
		status      string
		category    sql.NullString
		clientEmail sql.NullString
	)
	err := s.queryRow(ctx, `
		SELECT id, created_at, status, category, client_email
		FROM conversations
		WHERE id = ?`, id).Scan(&conv.ID, &createdAt, &status, &category, &clientEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get conversation: %w", err)
	}

	conv.CreatedAt = fromUnix(createdAt)
	conv.Status = models.Status(status)
	conv.Category = models.Category(category.String)
	conv.ClientEmail = clientEmail.String
	return &conv, nil
}

func (s *sqlStorage) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	result, err := s.exec(ctx, `
		UPDATE conversations
		SET status = ?, category = ?, client_email = ?
		WHERE id = ? AND status = 'active'`,
		string(conv.Status), nullString(string(conv.Category)), nullString(conv.ClientEmail), conv.ID)
	if err != nil {
		return fmt.Errorf("storage: update conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var status string
	err = s.queryRow(ctx, `SELECT status FROM conversations WHERE id = ?`, conv.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s: %w", conv.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: get conversation status: %w", err)
	}
	return fmt.Errorf("%w: conversation %s is %s", models.ErrInvalidState, conv.ID, status)
}

func (s *sqlStorage) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE tickets SET conversation_id = NULL WHERE conversation_id = ?`), id); err != nil {
		return fmt.Errorf("storage: detach tickets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE conversation_id = ?`), id); err != nil {
		return fmt.Errorf("storage: delete messages: %w", err)
	}
	result, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("storage: delete conversation: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}

	return tx.Commit()
}

func (s *sqlStorage) AbandonIdle(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.exec(ctx, `
		UPDATE conversations
		SET status = 'abandoned'
		WHERE status = 'active'
		  AND COALESCE(
			(SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = conversations.id),
			conversations.created_at
		  ) < ?`, toUnix(cutoff))
	if err != nil {
		return 0, fmt.Errorf("storage: abandon idle conversations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: rows affected: %w", err)
	}
	return int(n), nil
}

func (s *sqlStorage) AddMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, toUnix(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("storage: add message: %w", err)
	}
	return nil
}

func (s *sqlStorage) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`), conversationID)
	if err != nil {
		return nil, fmt.Errorf("storage: list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg       models.Message
			role      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.CreatedAt = fromUnix(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list messages: %w", err)
	}
	return messages, nil
}

func (s *sqlStorage) CreateTicket(ctx context.Context, t *models.Ticket) error {
	_, err := s.exec(ctx, `
		INSERT INTO tickets (id, conversation_id, category, assigned_to, client_email, summary, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, nullString(t.ConversationID), string(t.Category), t.AssignedTo,
		nullString(t.ClientEmail), t.Summary, t.Details, toUnix(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("storage: create ticket: %w", err)
	}
	return nil
}

const ticketColumns = `id, conversation_id, category, assigned_to, client_email, summary, details, created_at`

func (s *sqlStorage) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	row := s.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get ticket: %w", err)
	}
	return t, nil
}

func (s *sqlStorage) GetTicketByConversation(ctx context.Context, conversationID string) (*models.Ticket, error) {
	row := s.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE conversation_id = ?`, conversationID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket for conversation %s: %w", conversationID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get ticket by conversation: %w", err)
	}
	return t, nil
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	var (
		t              models.Ticket
		conversationID sql.NullString
		category       string
		clientEmail    sql.NullString
		createdAt      int64
	)
	err := row.Scan(&t.ID, &conversationID, &category, &t.AssignedTo, &clientEmail,
		&t.Summary, &t.Details, &createdAt)
	if err != nil {
		return nil, err
	}
	t.ConversationID = conversationID.String
	t.Category = models.Category(category)
	t.ClientEmail = clientEmail.String
	t.CreatedAt = fromUnix(createdAt)
	return &t, nil
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}
