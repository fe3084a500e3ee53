// Package audit provides audit logging for session lifecycle and
// tree-mutating operations: one structured JSON line per event, suitable
// for compliance retention separate from ordinary debug/operational logs.
package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/jtchitty/legatoDataHub/internal/metrics"
)

// Event is one audit record: who (session), what (resource/action), when,
// and outcome.
type Event struct {
	Time      string `json:"time"`
	Action    string `json:"action"` // "create_io" | "delete_io" | "add_handler" | "kill_session" | "end_session"
	SessionID string `json:"session_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Outcome   string `json:"outcome"` // "success" | "failure"
	Message   string `json:"message,omitempty"`
}

var auditLog = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Log records a single audit event.
func Log(action, sessionID, path, outcome, message string) {
	e := Event{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Action:    action,
		SessionID: sessionID,
		Path:      path,
		Outcome:   outcome,
		Message:   message,
	}
	auditLog.Info("audit", "event", mustMarshal(e))
}

// KillSession records that a session was terminated for a protocol
// violation.
func KillSession(sessionID, reason string) {
	metrics.SessionsKilledTotal.Inc()
	Log("kill_session", sessionID, "", "failure", reason)
}

func mustMarshal(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
