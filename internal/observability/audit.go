package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventAgentStart    AuditEventType = "agent.start"
	AuditEventAgentComplete AuditEventType = "agent.complete"
	AuditEventAgentError    AuditEventType = "agent.error"
	AuditEventLLMResponse   AuditEventType = "llm.response"
	AuditEventLLMError      AuditEventType = "llm.error"
	AuditEventIngest        AuditEventType = "ingest.document"
	AuditEventRetrieval     AuditEventType = "retrieval.search"
)

// AuditEvent is one line in the audit trail, serialized as JSON.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	AgentName   string         `json:"agent_name,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Success     bool           `json:"success"`
	Duration    time.Duration  `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled bool
	// OutputPath is a file path, "stdout", or "stderr".
	OutputPath string
	SessionID  string
	UserID     string
}

// DefaultAuditConfig enables JSON-lines audit output on stdout.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{Enabled: true, OutputPath: "stdout"}
}

// AuditLogger appends audit events as JSON lines to a single writer.
type AuditLogger struct {
	mu        sync.Mutex
	out       io.Writer
	sessionID string
	userID    string
	enabled   bool
}

// NewAuditLogger opens the configured output and returns a logger. A missing
// session ID gets a generated one.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	out, err := openAuditOutput(config.OutputPath)
	if err != nil {
		return nil, err
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &AuditLogger{
		out:       out,
		sessionID: sessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}, nil
}

func openAuditOutput(path string) (io.Writer, error) {
	switch path {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		return f, nil
	}
}

// Log writes one event, filling in timestamp, session, and user defaults.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.out.Write(line)
	return err
}

// Close releases a file-backed output. Stdout and stderr are left open.
func (l *AuditLogger) Close() error {
	if l.out == os.Stdout || l.out == os.Stderr {
		return nil
	}
	if closer, ok := l.out.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// LogAgentStart records the beginning of an agent run.
func (l *AuditLogger) LogAgentStart(agentName string, params map[string]string) {
	l.Log(&AuditEvent{
		EventType: AuditEventAgentStart,
		AgentName: agentName,
		Success:   true,
		Message:   "agent run started",
		Details:   map[string]any{"params": params},
	})
}

// LogAgentComplete records a finished agent run with its step count.
func (l *AuditLogger) LogAgentComplete(agentName string, duration time.Duration, toolSteps int) {
	l.Log(&AuditEvent{
		EventType: AuditEventAgentComplete,
		AgentName: agentName,
		Success:   true,
		Duration:  duration,
		Message:   "agent run completed",
		Details:   map[string]any{"tool_steps": toolSteps},
	})
}

// LogAgentError records a failed agent run.
func (l *AuditLogger) LogAgentError(agentName string, duration time.Duration, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventAgentError,
		AgentName:   agentName,
		Success:     false,
		Duration:    duration,
		Message:     "agent run failed",
		ErrorDetail: err.Error(),
	})
}

// LogLLMResponse records a completed LLM call with token usage.
func (l *AuditLogger) LogLLMResponse(provider, model string, duration time.Duration, inputTokens, outputTokens int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMResponse,
		Success:   true,
		Duration:  duration,
		Message:   "llm completion",
		Details: map[string]any{
			"provider":      provider,
			"model":         model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
		},
	})
}

// LogLLMError records a failed LLM call.
func (l *AuditLogger) LogLLMError(provider, model string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     "llm call failed",
		ErrorDetail: err.Error(),
		Details:     map[string]any{"provider": provider, "model": model},
	})
}

// LogIngest records a document (or batch) ingestion.
func (l *AuditLogger) LogIngest(source string, chunkCount int, duration time.Duration, err error) {
	event := &AuditEvent{
		EventType: AuditEventIngest,
		Success:   err == nil,
		Duration:  duration,
		Message:   fmt.Sprintf("ingested %d chunks", chunkCount),
		Details:   map[string]any{"source": source, "chunk_count": chunkCount},
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	l.Log(event)
}

// LogRetrieval records a vector search.
func (l *AuditLogger) LogRetrieval(query string, topK, resultCount int, topScore float64, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventRetrieval,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("retrieved %d of top %d passages", resultCount, topK),
		Details: map[string]any{
			"query":        query,
			"top_k":        topK,
			"result_count": resultCount,
			"top_score":    topScore,
		},
	})
}

var (
	globalAudit *AuditLogger
	auditOnce   sync.Once
)

// InitGlobalAuditLogger sets up the process-wide audit logger once.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAudit, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger, or a disabled one when
// InitGlobalAuditLogger has not run.
func Audit() *AuditLogger {
	if globalAudit == nil {
		return &AuditLogger{enabled: false}
	}
	return globalAudit
}
