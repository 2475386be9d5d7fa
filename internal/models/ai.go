package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Message roles accepted in AIRequest.Messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a structured chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIRequest is the immutable input of one orchestrated call
type AIRequest struct {
	Prompt            string    `json:"prompt,omitzero"`
	Messages          []Message `json:"messages,omitzero"`
	SystemInstruction string    `json:"system_instruction,omitzero"`
	Provider          string    `json:"provider,omitzero"` // Preferred provider, tried first when usable

	Operation string `json:"-"` // Rate limit scope, e.g. "chat"
	ClientKey string `json:"-"` // Rate limit client, e.g. user id or IP
	RequestID string `json:"-"`
}

// Conversation returns the request as a message list, appending Prompt as the
// final user turn when set.
func (r AIRequest) Conversation() []Message {
	msgs := make([]Message, 0, len(r.Messages)+1)
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	if strings.TrimSpace(r.Prompt) != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: r.Prompt})
	}
	return msgs
}

// System returns the system instruction, folding in system-role messages
func (r AIRequest) System() string {
	parts := []string{}
	if s := strings.TrimSpace(r.SystemInstruction); s != "" {
		parts = append(parts, s)
	}
	for _, m := range r.Messages {
		if m.Role == RoleSystem && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// CacheKey identifies requests with identical content
func (r AIRequest) CacheKey() string {
	var b strings.Builder
	b.WriteString(r.System())
	for _, m := range r.Conversation() {
		b.WriteString("\x1f")
		b.WriteString(m.Role)
		b.WriteString(":")
		b.WriteString(m.Content)
	}
	return b.String()
}

// Validate checks the request has something to send
func (r AIRequest) Validate() error {
	if len(r.Conversation()) == 0 {
		return NewValidationError("prompt or messages are required", nil)
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return NewValidationError("messages["+strconv.Itoa(i)+"].role must be user, assistant or system", nil)
		}
	}
	return nil
}

// Completion is a normalized vendor result
type Completion struct {
	Content    string
	Model      string
	TokensUsed int
}

// AttemptOutcome tags one provider attempt in a failover chain
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
	AttemptSkipped   AttemptOutcome = "skipped"
)

// Attempt is the per-provider trace of an orchestrated call
type Attempt struct {
	Provider  string         `json:"provider"`
	Outcome   AttemptOutcome `json:"outcome"`
	ErrorKind ErrorKind      `json:"error_kind,omitzero"`
	Error     string         `json:"error,omitzero"`
	Tries     int            `json:"tries"`
	Duration  time.Duration  `json:"duration"`
}

// AIResponse is the normalized result of an orchestrated call
type AIResponse struct {
	Success    bool      `json:"success"`
	Content    string    `json:"content,omitzero"`
	Error      string    `json:"error,omitzero"`
	ErrorKind  ErrorKind `json:"error_kind,omitzero"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitzero"`
	TokensUsed int       `json:"tokens_used,omitzero"`
	Attempts   []Attempt `json:"attempts,omitzero"`
	Cached     bool      `json:"cached,omitzero"`
	ResetAt    time.Time `json:"reset_at,omitzero"` // Set when rate limited
}

// Err returns the failure as an error, or nil on success
func (r AIResponse) Err() error {
	if r.Success {
		return nil
	}
	if r.ErrorKind == ErrorKindExhausted {
		tried := 0
		for _, a := range r.Attempts {
			if a.Outcome == AttemptFailed {
				tried++
			}
		}
		return NewExhaustedError(tried, errors.New(r.Error))
	}

	msg := r.Error
	if msg == "" {
		msg = UserMessage(r.ErrorKind)
	}
	err := &AppError{Kind: r.ErrorKind, Message: msg}
	err.StatusCode = err.GetStatusCode()
	return err
}

// CompareResponse is the result of querying several providers concurrently
type CompareResponse struct {
	Success  bool         `json:"success"`
	Results  []AIResponse `json:"results"`
	Error    string       `json:"error,omitzero"`
	Attempts []Attempt    `json:"attempts,omitzero"`
	ResetAt  time.Time    `json:"reset_at,omitzero"`
	// ErrorKind is set only when Success is false
	ErrorKind ErrorKind `json:"error_kind,omitzero"`
}
