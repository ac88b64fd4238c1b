package models

import "time"

// SessionState is the lifecycle state of one ingestion session.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionConnecting SessionState = "connecting"
	SessionStreaming  SessionState = "streaming"
	SessionClosing    SessionState = "closing"
	SessionClosed     SessionState = "closed"
	SessionFailed     SessionState = "failed"
)

// Terminal reports whether the session can never deliver another event.
func (s SessionState) Terminal() bool {
	return s == SessionClosed || s == SessionFailed
}

// SessionInfo is a point-in-time snapshot of one ingestion session.
type SessionInfo struct {
	Query        string       `json:"query"`
	ForceRefresh bool         `json:"force_refresh"`
	State        SessionState `json:"state"`
	StartedAt    time.Time    `json:"started_at"`
	Logs         []string     `json:"logs"`
}
