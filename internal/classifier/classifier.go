package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/xaenox/support-triage/internal/models"
)

// Classifier decides, for an ordered transcript, which category a request
// belongs to and whether more clarification is needed. Implementations always
// return a decision.
type Classifier interface {
	ClassifyAndAsk(ctx context.Context, messages []models.ChatMessage) models.Decision
}

const (
	// MinSignals is the number of distinct information signals after which
	// the heuristic recommends stopping.
	MinSignals = 2
	// MaxUserTurns forces a decision once the client has answered this many times.
	MaxUserTurns = 2

	ReadySummary = "Thanks, we have enough information to create your ticket. Review the details and submit when you are ready."
)

// FollowUps are asked verbatim whenever the heuristic needs more detail.
var FollowUps = []string{
	"How urgent is this request? Is anything currently down or blocking your work?",
	"Which site, account or address is affected? Please share any relevant links or usernames.",
	"Is there a date or time by which this needs to be done?",
}

// categoryPatterns are checked in order; the first match wins. Admin is the
// catch-all and has no pattern.
var categoryPatterns = []struct {
	category models.Category
	pattern  *regexp.Regexp
}{
	{models.CategoryWebsite, regexp.MustCompile(`\b(web ?sites?|web ?pages?|homepage|landing pages?|wordpress|shopify|squarespace|wix|site|plugins?|checkout page)\b`)},
	// mail also matches inside words such as hotmail or webmail
	{models.CategoryEmail, regexp.MustCompile(`mail|\b(inbox|outlook|smtp|imap|spam|newsletter)\b`)},
	{models.CategorySocial, regexp.MustCompile(`\b(social|facebook|instagram|twitter|linkedin|tiktok|youtube|pinterest)\b`)},
}

var signalPatterns = []*regexp.Regexp{
	// url
	regexp.MustCompile(`(https?://\S+|\bwww\.\S+)`),
	// urgency or deadline
	regexp.MustCompile(`\b(urgent(ly)?|asap|immediately|emergency|critical|deadline|due (by|on|date)|today|tonight|tomorrow|by (monday|tuesday|wednesday|thursday|friday|saturday|sunday|end of|eod|eow|next))\b`),
	// account, domain or mailbox identifiers
	regexp.MustCompile(`(\b(account|domain|mailbox|username|user name|login)\b|[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})`),
	// action verb
	regexp.MustCompile(`\b(fix(es|ed)?|add|remove|set ?up|configure|update|install)\b`),
}

// HeuristicClassifier is a pattern-based classifier with no external
// dependencies. It is the fallback of the model-backed classifier.
type HeuristicClassifier struct{}

func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify returns the first category whose terms appear in text, or admin.
func (c *HeuristicClassifier) Classify(text string) models.Category {
	text = strings.ToLower(text)
	for _, cp := range categoryPatterns {
		if cp.pattern.MatchString(text) {
			return cp.category
		}
	}
	return models.CategoryAdmin
}

// Signals counts how many distinct information signals text contains.
func (c *HeuristicClassifier) Signals(text string) int {
	text = strings.ToLower(text)
	n := 0
	for _, p := range signalPatterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// HasSufficientInfo reports whether text carries enough signals to open a ticket.
func (c *HeuristicClassifier) HasSufficientInfo(text string) bool {
	return c.Signals(text) >= MinSignals
}

// Decide classifies the transcript and applies the stop policy: stop once the
// client text is sufficient or the client has answered MaxUserTurns times.
func (c *HeuristicClassifier) Decide(messages []models.ChatMessage) models.Decision {
	text := Transcript(messages)
	decision := models.Decision{Category: c.Classify(text)}

	if c.HasSufficientInfo(text) || UserTurns(messages) >= MaxUserTurns {
		decision.Stop = true
		decision.FollowUps = []string{}
		decision.Summary = ReadySummary
		return decision
	}

	decision.FollowUps = append([]string(nil), FollowUps...)
	return decision
}

func (c *HeuristicClassifier) ClassifyAndAsk(_ context.Context, messages []models.ChatMessage) models.Decision {
	return c.Decide(messages)
}

// Transcript joins the client-authored content of messages. Assistant turns
// are excluded so that follow-up wording never counts as a client signal.
func Transcript(messages []models.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleAssistant {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func UserTurns(messages []models.ChatMessage) int {
	n := 0
	for _, m := range messages {
		if m.Role == models.RoleUser {
			n++
		}
	}
	return n
}
