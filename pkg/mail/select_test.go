package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/pkg/config"
)

func TestFromConfigSelection(t *testing.T) {
	api := FromConfig(config.MailConfig{APIKey: "key", APIBaseURL: "http://mail.local"}, zap.NewNop())
	assert.Equal(t, "api", api.Name())

	smtp := FromConfig(config.MailConfig{SMTPHost: "smtp.local"}, zap.NewNop())
	assert.Equal(t, "smtp", smtp.Name())

	nop := FromConfig(config.MailConfig{}, zap.NewNop())
	assert.Equal(t, "nop", nop.Name())
}

func TestNopSenderFails(t *testing.T) {
	sender := NewNopSender(zap.NewNop())
	err := sender.Send(context.Background(), Message{To: "a@example.com", Subject: "hi"})
	require.Error(t, err)
}

func TestAPISenderSend(t *testing.T) {
	var got apiPayload
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewAPISender(server.URL, "secret-key", "no-reply@tutorhub.local", "TutorHub", time.Second)
	err := sender.Send(context.Background(), Message{
		To:       "ada@example.com",
		ToName:   "Ada",
		Subject:  "Application approved",
		HTMLBody: "<p>Welcome</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", auth)
	assert.Equal(t, "ada@example.com", got.To[0].Email)
	assert.Equal(t, "Application approved", got.Subject)
	assert.Equal(t, "no-reply@tutorhub.local", got.From.Email)
}

func TestAPISenderRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid recipient", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	sender := NewAPISender(server.URL, "secret-key", "no-reply@tutorhub.local", "TutorHub", time.Second)
	err := sender.Send(context.Background(), Message{To: "bad", Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
