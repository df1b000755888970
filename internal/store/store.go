// Package store persists sessions, committed tokens, and transcripts.
// Persistence is optional: a nil pool (no DATABASE_URL) turns every write
// into a no-op so the server can run stateless.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) enabled() bool {
	return s != nil && s.db != nil
}

// Enabled reports whether persistence is configured.
func (s *Store) Enabled() bool { return s.enabled() }

// Session represents one WebSocket connection's lifetime.
type Session struct {
	ID         string     `json:"id"`
	RemoteAddr string     `json:"remote_addr"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Commit is a committed gesture token within a session.
type Commit struct {
	Token       string    `json:"token"`
	Confidence  float64   `json:"confidence"`
	StableMs    int64     `json:"stable_ms"`
	CommittedAt time.Time `json:"committed_at"`
}

// Transcript is a finalized speech result within a session.
type Transcript struct {
	Kind      string          `json:"kind"` // "stream" or "file"
	Text      string          `json:"text"`
	WordsJSON json.RawMessage `json:"words_json,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SessionDetail is a session with its recorded output.
type SessionDetail struct {
	Session
	Commits     []Commit     `json:"commits"`
	Transcripts []Transcript `json:"transcripts"`
}

// CreateSession records a new connection.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, remote_addr, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, sess.ID, sess.RemoteAddr, sess.StartedAt)
	return err
}

// EndSession marks a session as closed.
func (s *Store) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET ended_at = $1 WHERE id = $2
	`, at, sessionID)
	return err
}

// InsertCommit records a committed token for a session.
func (s *Store) InsertCommit(ctx context.Context, sessionID string, c Commit) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_commits (id, session_id, token, confidence, stable_ms, committed_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
	`, sessionID, c.Token, c.Confidence, c.StableMs, c.CommittedAt)
	return err
}

// InsertTranscript records a finalized speech result for a session.
func (s *Store) InsertTranscript(ctx context.Context, sessionID string, t Transcript) error {
	if !s.enabled() {
		return nil
	}
	words := t.WordsJSON
	if len(words) == 0 {
		words = json.RawMessage(`[]`)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_transcripts (id, session_id, kind, text, words_json, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
	`, sessionID, t.Kind, t.Text, words, t.CreatedAt)
	return err
}

// PruneSessionsBefore deletes sessions that ended before cutoff together
// with their commits, transcripts, and events. Returns the number of
// sessions removed.
func (s *Store) PruneSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if !s.enabled() {
		return 0, nil
	}
	children := []string{
		`DELETE FROM session_events WHERE session_id IN
			(SELECT id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1)`,
		`DELETE FROM session_transcripts WHERE session_id IN
			(SELECT id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1)`,
		`DELETE FROM session_commits WHERE session_id IN
			(SELECT id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1)`,
	}
	for _, q := range children {
		if _, err := s.db.Exec(ctx, q, cutoff); err != nil {
			return 0, err
		}
	}
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetSessionDetail returns a session with its commits and transcripts.
func (s *Store) GetSessionDetail(ctx context.Context, sessionID string) (SessionDetail, error) {
	var out SessionDetail

	err := s.db.QueryRow(ctx, `
		SELECT id, remote_addr, started_at, ended_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&out.ID, &out.RemoteAddr, &out.StartedAt, &out.EndedAt)
	if err != nil {
		return SessionDetail{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT token, confidence, stable_ms, committed_at
		FROM session_commits
		WHERE session_id = $1
		ORDER BY committed_at
	`, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Commit
		if err := rows.Scan(&c.Token, &c.Confidence, &c.StableMs, &c.CommittedAt); err != nil {
			return SessionDetail{}, err
		}
		out.Commits = append(out.Commits, c)
	}
	if err := rows.Err(); err != nil {
		return SessionDetail{}, err
	}

	trows, err := s.db.Query(ctx, `
		SELECT kind, text, words_json, created_at
		FROM session_transcripts
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	defer trows.Close()
	for trows.Next() {
		var t Transcript
		var words []byte
		if err := trows.Scan(&t.Kind, &t.Text, &words, &t.CreatedAt); err != nil {
			return SessionDetail{}, err
		}
		if len(words) > 0 {
			t.WordsJSON = json.RawMessage(words)
		}
		out.Transcripts = append(out.Transcripts, t)
	}
	return out, trows.Err()
}
