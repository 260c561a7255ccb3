package notify

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func newTestNotifier(cfg SMTPConfig, captured *capturedMail, sendErr error) *SMTPNotifier {
	n := NewSMTPNotifier(cfg)
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*captured = capturedMail{addr: addr, auth: a, from: from, to: to, msg: msg}
		return sendErr
	}
	return n
}

func TestSMTPNotifier_Send(t *testing.T) {
	var got capturedMail
	n := newTestNotifier(SMTPConfig{
		Host:     "smtp.example.com",
		User:     "mailer",
		Password: "secret",
		From:     "support@example.com",
	}, &got, nil)

	err := n.Send(context.Background(), Email{
		To:      "webteam@example.com",
		Subject: "[Support Ticket] WEBSITE - Homepage broken",
		HTML:    "<p>New ticket</p>",
		Text:    "New ticket",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.addr != "smtp.example.com:587" {
		t.Errorf("unexpected addr %s", got.addr)
	}
	if got.auth == nil {
		t.Error("expected auth when credentials are set")
	}
	if got.from != "support@example.com" || len(got.to) != 1 || got.to[0] != "webteam@example.com" {
		t.Errorf("unexpected envelope from=%s to=%v", got.from, got.to)
	}

	msg, err := mail.ReadMessage(strings.NewReader(string(got.msg)))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != "[Support Ticket] WEBSITE - Homepage broken" {
		t.Errorf("unexpected subject %q", subject)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("unexpected content type %q (%v)", msg.Header.Get("Content-Type"), err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		b, _ := io.ReadAll(p)
		bodies = append(bodies, string(b))
	}
	if len(bodies) != 2 || bodies[0] != "New ticket" || bodies[1] != "<p>New ticket</p>" {
		t.Errorf("unexpected bodies %q", bodies)
	}
}

func TestSMTPNotifier_NoAuthWithoutCredentials(t *testing.T) {
	var got capturedMail
	n := newTestNotifier(SMTPConfig{Host: "relay", Port: 25, From: "a@example.com"}, &got, nil)

	if err := n.Send(context.Background(), Email{To: "b@example.com", Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.auth != nil {
		t.Error("expected no auth")
	}
	if got.addr != "relay:25" {
		t.Errorf("unexpected addr %s", got.addr)
	}
}

func TestSMTPNotifier_SendError(t *testing.T) {
	var got capturedMail
	n := newTestNotifier(SMTPConfig{Host: "relay"}, &got, errors.New("connection refused"))

	if err := n.Send(context.Background(), Email{To: "b@example.com", Text: "t"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zaptest.NewLogger(t))
	if err := n.Send(context.Background(), Email{To: "x@example.com", Subject: "s"}); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
