package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/xaenox/support-triage/internal/models"
)

func userMessages(texts ...string) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(texts))
	for _, text := range texts {
		msgs = append(msgs, models.ChatMessage{Role: models.RoleUser, Content: text})
	}
	return msgs
}

func TestClassify(t *testing.T) {
	c := NewHeuristicClassifier()

	tests := []struct {
		text string
		want models.Category
	}{
		{"Our WEBSITE is down", models.CategoryWebsite},
		{"The homepage banner needs a new image", models.CategoryWebsite},
		{"Please create a mailbox for our new hire", models.CategoryEmail},
		{"I am not receiving E-mail since yesterday", models.CategoryEmail},
		{"My hotmail account keeps logging out", models.CategoryEmail},
		{"Webmail shows a certificate warning", models.CategoryEmail},
		{"Schedule a post on Instagram", models.CategorySocial},
		{"Our social accounts need a new logo", models.CategorySocial},
		{"Can you resend last month's invoice?", models.CategoryAdmin},
		{"hi", models.CategoryAdmin},
		{"", models.CategoryAdmin},
		// website terms take priority over email terms
		{"The contact form on the website stopped sending email", models.CategoryWebsite},
		// email terms take priority over social terms
		{"Facebook notifications flood my inbox", models.CategoryEmail},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSignals(t *testing.T) {
	c := NewHeuristicClassifier()

	tests := []struct {
		text string
		want int
	}{
		{"hi", 0},
		{"see https://example.com", 1},
		{"this is urgent", 1},
		{"the report is due by friday", 1},
		{"it broke due to the update", 1},
		{"my account is locked", 1},
		{"write to jane@example.com", 1},
		{"please install the plugin", 1},
		{"please fix https://example.com asap for my account", 4},
	}

	for _, tt := range tests {
		if got := c.Signals(tt.text); got != tt.want {
			t.Errorf("Signals(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestHasSufficientInfoMonotonic(t *testing.T) {
	c := NewHeuristicClassifier()

	text := "Please update the banner at https://example.com"
	if !c.HasSufficientInfo(text) {
		t.Fatalf("expected %q to be sufficient", text)
	}

	for _, extra := range []string{" asap", " for the domain example.com", " and fix the footer", " www.example.org", " hello"} {
		text += extra
		if !c.HasSufficientInfo(text) {
			t.Errorf("sufficiency lost after appending %q", extra)
		}
	}
}

func TestDecideAsksFixedFollowUps(t *testing.T) {
	c := NewHeuristicClassifier()

	first := c.Decide(userMessages("hi"))
	second := c.Decide(userMessages("hello there"))

	if first.Stop {
		t.Fatal("expected stop=false for a signal-free first turn")
	}
	if len(first.FollowUps) != 3 {
		t.Fatalf("expected 3 follow-ups, got %d", len(first.FollowUps))
	}
	for i := range first.FollowUps {
		if first.FollowUps[i] != FollowUps[i] || second.FollowUps[i] != FollowUps[i] {
			t.Errorf("follow-up %d is not the fixed prompt", i)
		}
	}
	if first.Summary != "" {
		t.Errorf("expected no summary, got %q", first.Summary)
	}
}

func TestDecideStopsAfterTwoUserTurns(t *testing.T) {
	c := NewHeuristicClassifier()

	msgs := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: strings.Join(FollowUps, "\n")},
		{Role: models.RoleUser, Content: "ok"},
	}

	d := c.Decide(msgs)
	if !d.Stop {
		t.Fatal("expected stop=true after two user turns")
	}
	if len(d.FollowUps) != 0 {
		t.Errorf("expected no follow-ups when stopping, got %v", d.FollowUps)
	}
	if d.Summary != ReadySummary {
		t.Errorf("expected ready summary, got %q", d.Summary)
	}
}

func TestDecideIgnoresAssistantText(t *testing.T) {
	c := NewHeuristicClassifier()

	msgs := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "Which mailbox or website? Is it urgent? https://example.com"},
		{Role: models.RoleUser, Content: "hi"},
	}

	d := c.Decide(msgs)
	if d.Stop {
		t.Error("assistant text must not count as client signals")
	}
	if d.Category != models.CategoryAdmin {
		t.Errorf("expected admin, got %q", d.Category)
	}
}

func TestWebsiteScenario(t *testing.T) {
	c := NewHeuristicClassifier()

	d := c.ClassifyAndAsk(context.Background(),
		userMessages("My website homepage is broken, please fix ASAP, site is https://example.com"))

	if d.Category != models.CategoryWebsite {
		t.Errorf("expected website, got %q", d.Category)
	}
	if !d.Stop {
		t.Error("expected stop=true on the first turn")
	}
	if len(d.FollowUps) != 0 {
		t.Errorf("expected no follow-ups, got %v", d.FollowUps)
	}
}
