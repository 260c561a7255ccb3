package ticket

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/xaenox/support-triage/internal/models"
	"github.com/xaenox/support-triage/internal/notify"
)

var emailHTML = template.Must(template.New("ticket").Parse(
	`<p>New ticket assigned to you.</p>` +
		`<p><strong>Category:</strong> {{.Category}}</p>` +
		`<p><strong>Client:</strong> {{.Client}}</p>` +
		`<p><strong>Summary:</strong> {{.Summary}}</p>` +
		`<pre>{{.Details}}</pre>`))

// RenderEmail builds the notification sent to the ticket's assignee.
func RenderEmail(t models.Ticket) (notify.Email, error) {
	client := t.ClientEmail
	if client == "" {
		client = "Unknown"
	}

	var html bytes.Buffer
	err := emailHTML.Execute(&html, struct {
		Category, Client, Summary, Details string
	}{string(t.Category), client, t.Summary, t.Details})
	if err != nil {
		return notify.Email{}, fmt.Errorf("render ticket email: %w", err)
	}

	text := fmt.Sprintf("New ticket assigned to you.\nCategory: %s\nClient: %s\nSummary: %s\n\n%s",
		t.Category, client, t.Summary, t.Details)

	return notify.Email{
		To:      t.AssignedTo,
		Subject: fmt.Sprintf("[Support Ticket] %s - %s", strings.ToUpper(string(t.Category)), t.Summary),
		HTML:    html.String(),
		Text:    text,
	}, nil
}
