package models

import "time"

// Message roles as they appear in prompts and conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationMessage is one turn fragment in a conversation. Messages are
// immutable once appended; insertion order defines the dialogue timeline.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AnswerRequest is the question-answering request shape.
type AnswerRequest struct {
	Question       string `json:"question" binding:"required,min=1,max=4000"`
	ConversationID string `json:"conversation_id,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
	EnableRewrite  *bool  `json:"enable_rewrite,omitempty"`
	EnableRerank   *bool  `json:"enable_rerank,omitempty"`
}

// AnswerResult is the whole-response answer shape.
type AnswerResult struct {
	Answer         string     `json:"answer"`
	Sources        []Citation `json:"sources"`
	ConversationID string     `json:"conversation_id"`
}

// Stream event types emitted by the streaming answer pipeline. A stream is
// zero or more "answer" fragments followed by exactly one terminal "sources"
// event; "error" terminates a failed stream instead.
const (
	StreamEventAnswer  = "answer"
	StreamEventSources = "sources"
	StreamEventError   = "error"
)

// StreamEvent is one element of a streamed answer.
type StreamEvent struct {
	Type           string `json:"type"`
	Content        any    `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
}
