// Package eventlog records session lifecycle events to the database.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType identifies a session event.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventTokenCommitted  EventType = "token_committed"
	EventSpeechFinal     EventType = "speech_final"
	EventFileTranscribed EventType = "file_transcribed"
	EventDecodeError     EventType = "decode_error"
	EventAlertSent       EventType = "alert_sent"
	EventSessionEnded    EventType = "session_ended"
)

// Logger writes session events to the database. A nil db silently skips.
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger.
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event synchronously.
func (l *Logger) Log(ctx context.Context, sessionID string, eventType EventType, data map[string]any) error {
	if l == nil || l.db == nil || sessionID == "" {
		return nil
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO session_events (session_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, sessionID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller.
func (l *Logger) LogAsync(sessionID string, eventType EventType, data map[string]any) {
	if l == nil || l.db == nil || sessionID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, sessionID, eventType, data)
	}()
}
