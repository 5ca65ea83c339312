package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jobu711/optionalpha/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClaude(t *testing.T, status int, body string) *ClaudeClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := NewClaudeClient(&common.ClaudeConfig{
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
		Timeout: "5s",
	}, createTestLogger(), option.WithBaseURL(server.URL))
	require.NoError(t, err)
	client.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return client
}

func TestClaudeErrorReplies(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantBackend bool
		wantMissing bool
	}{
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, true, false},
		{"server error", http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"Internal"}}`, true, false},
		{"bad key", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, true, false},
		{"missing model", http.StatusNotFound, `{"type":"error","error":{"type":"not_found_error","message":"model"}}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClaude(t, tt.status, tt.body)

			_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
			require.Error(t, err)
			assert.Equal(t, tt.wantBackend, errors.Is(err, ErrBackend), "got %v", err)
			assert.Equal(t, tt.wantMissing, errors.Is(err, ErrModelNotFound), "got %v", err)

			var apiErr *anthropic.Error
			if tt.wantBackend {
				assert.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.status, apiErr.StatusCode)
			}

			ok, err := client.ValidateModel(context.Background())
			assert.False(t, ok)
			if tt.wantBackend {
				assert.True(t, errors.Is(err, ErrBackend), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
