package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderNegotiationEscapesContent(t *testing.T) {
	html, err := RenderNegotiation(NegotiationData{
		OrganizationName: "Acme & Co",
		Subject:          "Takedown request",
		Content:          "<script>alert(1)</script>",
		AttachmentCount:  2,
	})
	if err != nil {
		t.Fatalf("RenderNegotiation failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("content must be escaped")
	}
	if !strings.Contains(html, "Acme &amp; Co") {
		t.Error("template should contain escaped organization name")
	}
	if !strings.Contains(html, "2 attachment(s)") {
		t.Error("template should mention the attachment count")
	}
	if !strings.Contains(html, "automatic communication") {
		t.Error("template should carry the automatic communication footer")
	}
}

func TestRenderNegotiationWithoutAttachments(t *testing.T) {
	html, err := RenderNegotiation(NegotiationData{Subject: "s", Content: "c"})
	if err != nil {
		t.Fatalf("RenderNegotiation failed: %v", err)
	}
	if strings.Contains(html, "attachment(s)") {
		t.Error("attachment note should be omitted")
	}
	if !strings.Contains(html, "Organization") {
		t.Error("missing organization name should fall back")
	}
}

func TestSMTPSendBuildsMultipartMessage(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "25", From: "Adspika <noreply@adspika.com>"})
	var gotFrom string
	var gotTo []string
	var gotMsg string
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if addr != "smtp.example.com:25" {
			t.Errorf("addr = %q", addr)
		}
		gotFrom, gotTo, gotMsg = from, to, string(msg)
		return nil
	}

	id, err := svc.Send(context.Background(), Message{
		To:          []string{"a@x.com", "b@y.com"},
		Subject:     "Hello",
		HTML:        "<p>hi</p>",
		Attachments: []Attachment{{FileName: "proof.pdf", Content: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if id == "" {
		t.Error("expected a message id")
	}
	if gotFrom != "noreply@adspika.com" {
		t.Errorf("envelope from = %q", gotFrom)
	}
	if len(gotTo) != 2 {
		t.Errorf("recipients = %v", gotTo)
	}
	for _, want := range []string{"multipart/mixed", "text/html", `filename="proof.pdf"`, "JVBERg=="} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPSendRequiresConfiguration(t *testing.T) {
	if _, err := NewService(Config{}).Send(context.Background(), Message{}); err != ErrNotConfigured {
		t.Fatalf("Send() error = %v, want ErrNotConfigured", err)
	}
}

func TestResendMailer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Header.Get("Authorization") != "Bearer re_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body resendRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.From != "Adspika <noreply@adspika.com>" || len(body.To) != 2 || len(body.Attachments) != 1 {
			t.Errorf("unexpected body: %+v", body)
		}
		if body.Attachments[0].Content != "aGk=" {
			t.Errorf("attachment content = %q", body.Attachments[0].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer srv.Close()

	mailer := NewResendMailer("re_test", "Adspika <noreply@adspika.com>", srv.URL)
	id, err := mailer.Send(context.Background(), Message{
		To:          []string{"a@x.com", "b@y.com"},
		Subject:     "s",
		HTML:        "<p>c</p>",
		Attachments: []Attachment{{FileName: "a.txt", Content: []byte("hi")}},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if id != "email-123" {
		t.Fatalf("id = %q", id)
	}
}

func TestResendMailerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"Invalid to field"}`))
	}))
	defer srv.Close()

	_, err := NewResendMailer("k", "f@x.com", srv.URL).Send(context.Background(), Message{To: []string{"x"}})
	if err == nil || !strings.Contains(err.Error(), "Invalid to field") {
		t.Fatalf("Send() error = %v", err)
	}
}
