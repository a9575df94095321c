package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stacksentry/stacksentry/internal/config"
)

func TestNewSlack_RequiresWebhookURL(t *testing.T) {
	t.Parallel()

	_, err := NewSlack(config.SlackConfig{}, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestNotify_PostsText(t *testing.T) {
	t.Parallel()

	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	n, err := NewSlack(config.SlackConfig{WebhookURL: server.URL, Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "incident report body"))
	assert.Equal(t, "incident report body", got.Text)
}

func TestNotify_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer server.Close()

	n, err := NewSlack(config.SlackConfig{WebhookURL: server.URL, Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = n.Notify(context.Background(), "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
