package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is embedded in a Conversation and is not synchronized on its own.
type Message struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	FileInfos []FileInfo    `json:"fileInfos,omitempty"`
	Error     *MessageError `json:"error,omitempty"`

	// Content analysis and performance metadata
	ProcessingTime     *int64              `json:"processingTime,omitempty"`
	TokenCount         *int                `json:"tokenCount,omitempty"`
	ContentAnalysis    *ContentAnalysis    `json:"contentAnalysis,omitempty"`
	PerformanceMetrics *PerformanceMetrics `json:"performanceMetrics,omitempty"`
}

// FileInfo describes a file attached to a message.
type FileInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Content string `json:"content,omitempty"`
}

// MessageError is stored on a message whose generation failed.
type MessageError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ContentAnalysis summarises the shape of a message body.
type ContentAnalysis struct {
	HasCode       bool `json:"hasCode"`
	HasMath       bool `json:"hasMath"`
	HasMarkdown   bool `json:"hasMarkdown"`
	WordCount     int  `json:"wordCount"`
	QuestionCount int  `json:"questionCount"`
}

// PerformanceMetrics captures streaming timings of an assistant message.
type PerformanceMetrics struct {
	TotalTime       float64 `json:"totalTime"`
	StreamingTime   float64 `json:"streamingTime"`
	TokensPerSecond float64 `json:"tokensPerSecond"`
	TokensIn        int     `json:"tokensIn,omitempty"`
	TokensOut       int     `json:"tokensOut,omitempty"`
	Model           string  `json:"model,omitempty"`
}

// ChatRequest is the request to run one chat turn against a provider.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty" validate:"omitempty,max=128"`
	ModelID        string `json:"modelId,omitempty" validate:"omitempty,max=128"`
	Provider       string `json:"provider,omitempty" validate:"omitempty,oneof=anthropic openai"`
	Content        string `json:"content" validate:"required,max=100000"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// ChatDoneEvent is the final event of a chat turn stream.
type ChatDoneEvent struct {
	ConversationID string   `json:"conversationId"`
	Message        *Message `json:"message"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
