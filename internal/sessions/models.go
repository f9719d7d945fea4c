// Package sessions provides in-memory tracking of question-answering
// sessions served by the HTTP API and the CLI.
package sessions

import "time"

// Status describes the lifecycle of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Session records a single question-answering interaction.
type Session struct {
	ID          string     `json:"id"`
	Agent       string     `json:"agent,omitempty"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer,omitempty"`
	Sources     []string   `json:"sources,omitempty"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LLMCalls    int        `json:"llm_calls"`
	TotalTokens int        `json:"total_tokens"`
	Error       string     `json:"error,omitempty"`
}

// clone returns a copy that shares no mutable state with the original.
func (s *Session) clone() *Session {
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Sources != nil {
		c.Sources = append([]string(nil), s.Sources...)
	}
	return &c
}

// TranscriptEntry is a single line of a session transcript, such as a tool
// call or an intermediate observation.
type TranscriptEntry struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// Stats aggregates across all stored sessions.
type Stats struct {
	TotalSessions     int     `json:"total_sessions"`
	ActiveSessions    int     `json:"active_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	FailedSessions    int     `json:"failed_sessions"`
	AvgDuration       float64 `json:"avg_duration_seconds"`
	SuccessRate       float64 `json:"success_rate"`
	TotalLLMCalls     int     `json:"total_llm_calls"`
	TotalTokens       int     `json:"total_tokens"`
}
