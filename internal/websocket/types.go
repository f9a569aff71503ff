package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRedaction reports the counts of one redacted document or text
	EventTypeRedaction EventType = "redaction"
	// EventTypeJobStatus reports pipeline job progress
	EventTypeJobStatus EventType = "job_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	eventTypePong       EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	RequestID string    `json:"request_id,omitempty"`
}

// RedactionEvent carries counts only. Matched values never leave the process.
type RedactionEvent struct {
	Source         string         `json:"source"`
	LabelMatches   int            `json:"label_matches"`
	PatternMatches int            `json:"pattern_matches"`
	Rules          map[string]int `json:"rules,omitempty"`
	InputLength    int            `json:"input_length"`
	DurationMS     float64        `json:"duration_ms"`
	CacheHit       bool           `json:"cache_hit"`
}

// Job statuses reported in JobStatusEvent
const (
	JobQueued    = "queued"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobStatusEvent tracks one document through the pipeline
type JobStatusEvent struct {
	Source      string   `json:"source"`
	Status      string   `json:"status"`
	OutputFiles []string `json:"output_files,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	// nil means every event type
	subscribed map[EventType]bool
}

func (c *Client) wants(t EventType) bool {
	return c.subscribed == nil || c.subscribed[t]
}
