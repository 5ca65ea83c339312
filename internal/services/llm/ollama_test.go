package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestOllama(host string, rec *sleepRecorder) *OllamaClient {
	return NewOllamaClient(&common.OllamaConfig{
		Host:    host,
		Model:   "llama3.1:8b",
		NumCtx:  8192,
		Timeout: "5s",
	}, createTestLogger(), WithSleepFunc(rec.sleep))
}

func TestOllamaChat_Success(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3.1:8b",
			"message":           map[string]string{"role": "assistant", "content": "<think>hmm</think>\n{\"ok\": true}"},
			"done":              true,
			"total_duration":    int64(1500 * time.Millisecond),
			"prompt_eval_count": 120,
			"eval_count":        80,
		})
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	client := newTestOllama(server.URL, rec)

	resp, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok": true}`, resp.Content)
	assert.Equal(t, "llama3.1:8b", resp.Model)
	assert.Equal(t, 120, resp.InputTokens)
	assert.Equal(t, 80, resp.OutputTokens)
	assert.Equal(t, 200, resp.TotalTokens())
	assert.Equal(t, 1500*time.Millisecond, resp.Duration)

	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, float64(8192), got.Options["num_ctx"])
	assert.Len(t, got.Messages, 2)
	assert.Empty(t, rec.delays)
}

func TestOllamaChat_ModelNotFoundDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.1:8b' not found"}`))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	_, err := newTestOllama(server.URL, rec).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, rec.delays)
}

func TestOllamaChat_ServerErrorRetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"{}"},"done":true}`))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	resp, err := newTestOllama(server.URL, rec).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, rec.delays)
}

func TestOllamaChat_UnreachableAfterRetries(t *testing.T) {
	// Closed server: every dial is refused
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close()

	rec := &sleepRecorder{}
	_, err := newTestOllama(host, rec).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable), "got %v", err)
	assert.Equal(t, OllamaRetryDelays, rec.delays)
}

func TestOllamaChat_ErrorRepliesMatchErrBackend(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"bad request fails fast", http.StatusBadRequest, 1},
		{"server error after retries", http.StatusInternalServerError, int32(len(OllamaRetryDelays) + 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"model runner has unexpectedly stopped"}`))
			}))
			defer server.Close()

			_, err := newTestOllama(server.URL, &sleepRecorder{}).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBackend), "got %v", err)
			assert.False(t, errors.Is(err, ErrModelNotFound))
			assert.Contains(t, err.Error(), "model runner has unexpectedly stopped")
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestOllamaChat_EmptyMessages(t *testing.T) {
	_, err := newTestOllama("http://localhost:1", &sleepRecorder{}).Chat(context.Background(), nil)
	assert.Error(t, err)
}

func TestOllamaValidateModel(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"present", http.StatusOK, true, false},
		{"missing", http.StatusNotFound, false, false},
		{"server error", http.StatusInternalServerError, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/show", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			ok, err := newTestOllama(server.URL, &sleepRecorder{}).ValidateModel(context.Background())
			assert.Equal(t, tt.want, ok)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrBackend), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOllamaValidateModel_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close()

	ok, err := newTestOllama(host, &sleepRecorder{}).ValidateModel(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}
