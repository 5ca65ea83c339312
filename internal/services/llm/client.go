// Package llm provides the chat backends used by the debate agents.
//
// Every backend satisfies ChatClient: one blocking call that takes an ordered
// list of role-tagged messages and returns the assistant text plus token and
// timing usage. Backends report three distinguished failures: ErrModelNotFound,
// returned immediately without retry, ErrUnreachable, returned once the
// backend's own connection retry budget is spent, and ErrBackend, an error
// reply from a reachable server.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrModelNotFound is returned when the backend does not serve the configured model.
	ErrModelNotFound = errors.New("model not found")
	// ErrUnreachable is returned when the backend cannot be contacted.
	ErrUnreachable = errors.New("llm backend unreachable")
	// ErrBackend is returned when the backend answers with an error status.
	ErrBackend = errors.New("llm backend error")
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the assistant reply plus usage metadata.
type ChatResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// TotalTokens returns input plus output tokens.
func (r ChatResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ChatClient is a chat-completion backend that returns JSON text.
type ChatClient interface {
	// Chat sends the conversation and returns the reply with reasoning traces removed.
	Chat(ctx context.Context, messages []Message) (*ChatResponse, error)
	// ValidateModel reports whether the configured model is served.
	// A missing model or an unreachable backend is (false, nil).
	ValidateModel(ctx context.Context) (bool, error)
	// Model returns the configured model name.
	Model() string
	// Provider returns the backend name.
	Provider() string
}

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes <think>...</think> reasoning blocks and trims the result.
func StripThinkTags(s string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(s, ""))
}

// IsConnectError reports whether err is a refused connection, a failed dial or a DNS failure.
func IsConnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout() {
		return true
	}
	return false
}

// unreachable wraps a connection failure so that errors.Is(err, ErrUnreachable) holds.
func unreachable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, provider, err)
}

// backendFailure wraps an error reply so that errors.Is(err, ErrBackend) holds.
// The original error stays reachable through errors.As.
func backendFailure(provider, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrBackend, provider, op, err)
}

// splitSystem separates the first system message from the conversation turns.
func splitSystem(messages []Message) (string, []Message, error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("messages cannot be empty")
	}

	var system string
	turns := make([]Message, 0, len(messages))
	hasUser := false
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if system == "" {
				system = msg.Content
			}
			continue
		case RoleUser:
			hasUser = true
		}
		turns = append(turns, msg)
	}
	if !hasUser {
		return "", nil, fmt.Errorf("at least one message must have role 'user'")
	}
	return system, turns, nil
}
