package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const ResendBaseURL = "https://api.resend.com"

// ResendMailer submits mail through the Resend HTTP API.
type ResendMailer struct {
	http *resty.Client
	from string
}

func NewResendMailer(apiKey, from, baseURL string) *ResendMailer {
	if baseURL == "" {
		baseURL = ResendBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &ResendMailer{http: client, from: from}
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	if msg.From == "" {
		msg.From = m.from
	}
	req := resendRequest{From: msg.From, To: msg.To, Subject: msg.Subject, HTML: msg.HTML}
	for _, att := range msg.Attachments {
		req.Attachments = append(req.Attachments, resendAttachment{
			Filename: att.FileName,
			Content:  base64.StdEncoding.EncodeToString(att.Content),
		})
	}

	var out resendResponse
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("resend request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("resend rejected message (status %d): %s %s", resp.StatusCode(), out.Name, out.Message)
	}
	return out.ID, nil
}
