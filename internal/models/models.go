package models

import "time"

// Category is the team a request is routed to.
type Category string

const (
	CategoryWebsite Category = "website"
	CategoryEmail   Category = "email"
	CategorySocial  Category = "social"
	CategoryAdmin   Category = "admin"
)

// Categories lists every valid category in classification priority order.
var Categories = []Category{CategoryWebsite, CategoryEmail, CategorySocial, CategoryAdmin}

func (c Category) Valid() bool {
	switch c {
	case CategoryWebsite, CategoryEmail, CategorySocial, CategoryAdmin:
		return true
	}
	return false
}

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further turns may be taken.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is a client triage session
type Conversation struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Status      Status    `json:"status"`
	Category    Category  `json:"category,omitempty"`
	ClientEmail string    `json:"client_email,omitempty"`
}

// Message is one immutable entry of a conversation transcript.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ticket is the finalized request handed to an internal team.
// ConversationID is empty once the originating conversation is deleted.
type Ticket struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Category       Category  `json:"category"`
	AssignedTo     string    `json:"assigned_to"`
	ClientEmail    string    `json:"client_email,omitempty"`
	Summary        string    `json:"summary"`
	Details        string    `json:"details"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessage is the role/content pair replayed into a classifier.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Decision is the outcome of classifying a transcript. It is never persisted.
// When Stop is true FollowUps is empty.
type Decision struct {
	Category  Category `json:"category,omitempty"`
	FollowUps []string `json:"followUps"`
	Stop      bool     `json:"stop"`
	Summary   string   `json:"summary,omitempty"`
}

// ChatHistory converts stored messages into classifier input, preserving order.
func ChatHistory(messages []Message) []ChatMessage {
	history := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return history
}
