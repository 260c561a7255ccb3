// Package ticket turns a finished triage conversation into a routed ticket.
package ticket

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/support-triage/internal/models"
)

// Assignees maps each category to the address of the team that owns it.
type Assignees map[models.Category]string

// DefaultAssignees are used for any category without a configured address.
var DefaultAssignees = Assignees{
	models.CategoryWebsite: "webteam@example.com",
	models.CategoryEmail:   "emailteam@example.com",
	models.CategorySocial:  "socialteam@example.com",
	models.CategoryAdmin:   "adminteam@example.com",
}

// For returns the configured address for category, then the default one.
// Unknown categories route to admin.
func (a Assignees) For(category models.Category) string {
	if !category.Valid() {
		category = models.CategoryAdmin
	}
	if addr := strings.TrimSpace(a[category]); addr != "" {
		return addr
	}
	return DefaultAssignees[category]
}

type Composer struct {
	assignees Assignees
	now       func() time.Time
}

func NewComposer(assignees Assignees) *Composer {
	return &Composer{assignees: assignees, now: time.Now}
}

// Compose builds a ticket. Only ID and CreatedAt differ between calls with
// the same arguments.
func (c *Composer) Compose(conv models.Conversation, transcript []models.Message, category models.Category, clientEmail, summary string) models.Ticket {
	if category == "" {
		category = conv.Category
	}
	if !category.Valid() {
		category = models.CategoryAdmin
	}

	email := strings.TrimSpace(clientEmail)
	if email == "" {
		email = conv.ClientEmail
	}

	return models.Ticket{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Category:       category,
		AssignedTo:     c.assignees.For(category),
		ClientEmail:    email,
		Summary:        strings.TrimSpace(summary),
		Details:        RenderTranscript(transcript),
		CreatedAt:      c.now(),
	}
}

// RenderTranscript writes one "ROLE: content" line per message in order.
func RenderTranscript(transcript []models.Message) string {
	lines := make([]string, len(transcript))
	for i, m := range transcript {
		lines[i] = strings.ToUpper(string(m.Role)) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}
