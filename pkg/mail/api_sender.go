package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APISender delivers mail through an HTTP transactional email provider.
type APISender struct {
	baseURL  string
	apiKey   string
	fromAddr string
	fromName string
	client   *http.Client
}

// NewAPISender constructs a provider-backed sender.
func NewAPISender(baseURL, apiKey, fromAddr, fromName string, timeout time.Duration) *APISender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APISender{
		baseURL:  baseURL,
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name identifies the transport in logs and outbox records.
func (s *APISender) Name() string { return "api" }

type apiPayload struct {
	From    apiAddress   `json:"from"`
	To      []apiAddress `json:"to"`
	Subject string       `json:"subject"`
	HTML    string       `json:"html,omitempty"`
	Text    string       `json:"text,omitempty"`
}

type apiAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Send posts the message to the provider's send endpoint.
func (s *APISender) Send(ctx context.Context, msg Message) error {
	payload := apiPayload{
		From:    apiAddress{Email: s.fromAddr, Name: s.fromName},
		To:      []apiAddress{{Email: msg.To, Name: msg.ToName}},
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.TextBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail provider rejected send: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
