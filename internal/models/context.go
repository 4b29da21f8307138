package models

import (
	"time"

	"github.com/google/uuid"
)

// ContextQuery carries the parameters of one context retrieval.
type ContextQuery struct {
	Query           string   `json:"query"`
	MaxTokens       int      `json:"max_tokens"`
	SourceKinds     []string `json:"source_types,omitempty"`
	IncludeMetadata bool     `json:"include_metadata,omitempty"`
}

// ContextResult is the ephemeral product of one context assembly. It is
// returned to the caller and never persisted; the audit log records only the
// aggregate token count.
type ContextResult struct {
	Text       string   `json:"context"`
	TokensUsed int      `json:"tokens_used"`
	Sources    []string `json:"sources"`
	QueryID    string   `json:"query_id"`
}

// NewContextResult allocates a result with a fresh correlation id.
func NewContextResult(text string, tokensUsed int, sources []string) *ContextResult {
	if sources == nil {
		sources = []string{}
	}
	return &ContextResult{
		Text:       text,
		TokensUsed: tokensUsed,
		Sources:    sources,
		QueryID:    uuid.New().String(),
	}
}

// TokenRequest is the body of POST /api/tokens.
type TokenRequest struct {
	ClientID   string `json:"client_id"`
	Scope      string `json:"scope"`
	TTLSeconds int    `json:"ttl_seconds"`
	MaxTokens  int    `json:"max_tokens"`
}

// MemoryRequest is the body of POST /api/memories.
type MemoryRequest struct {
	SourceKind    string            `json:"source_type"`
	SourceLocator string            `json:"source_path,omitempty"`
	Content       string            `json:"content"`
	Attributes    map[string]string `json:"metadata,omitempty"`
}

// Envelope is the uniform API response wrapper.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// OK builds a success envelope.
func OK(data interface{}, message string) Envelope {
	return Envelope{Success: true, Data: data, Message: message, Timestamp: time.Now().UTC()}
}

// Fail builds an error envelope. It carries a message only: stack traces and
// raw content never leave the server.
func Fail(message string) Envelope {
	return Envelope{Success: false, Message: message, Timestamp: time.Now().UTC()}
}
