// Package history records completed invocations in an embedded SQLite
// database (modernc.org/sqlite, CGO-free). One row per invocation; the
// store also resolves session ids for multi-turn threads.
package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed (or failed) invocation.
type Record struct {
	InstanceID     string
	Mode           string
	AgentName      string
	ChannelName    string
	TriggerMessage string
	Response       string
	DurationSec    float64
	CostUSD        float64
	Turns          int
	ToolsUsed      []string
	SessionID      string
	ThreadID       string
	Error          string
	Timestamp      time.Time
}

// Store is an invocation history backed by a SQLite file. Use ":memory:"
// for tests.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty history db path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent access from CLI and webui
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the invocation table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS invocations(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			channel_name TEXT,
			trigger_message TEXT,
			response TEXT,
			duration_sec REAL NOT NULL,
			cost_usd REAL NOT NULL,
			turns INTEGER NOT NULL,
			tools_used TEXT,
			session_id TEXT,
			thread_id TEXT,
			error TEXT,
			timestamp TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_thread ON invocations(thread_id, agent_name);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_ts ON invocations(timestamp);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts one invocation row.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations(
			instance_id, mode, agent_name, channel_name, trigger_message,
			response, duration_sec, cost_usd, turns, tools_used,
			session_id, thread_id, error, timestamp)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.InstanceID, rec.Mode, rec.AgentName, rec.ChannelName, rec.TriggerMessage,
		rec.Response, rec.DurationSec, rec.CostUSD, rec.Turns, strings.Join(rec.ToolsUsed, ","),
		rec.SessionID, rec.ThreadID, rec.Error, rec.Timestamp.UTC())
	return err
}

// Recent returns up to limit invocations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, mode, agent_name, channel_name, trigger_message,
		       response, duration_sec, cost_usd, turns, tools_used,
		       session_id, thread_id, error, timestamp
		FROM invocations ORDER BY timestamp DESC, id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var channel, trigger, response, tools, session, thread, errStr sql.NullString
		if err := rows.Scan(
			&rec.InstanceID, &rec.Mode, &rec.AgentName, &channel, &trigger,
			&response, &rec.DurationSec, &rec.CostUSD, &rec.Turns, &tools,
			&session, &thread, &errStr, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.ChannelName = channel.String
		rec.TriggerMessage = trigger.String
		rec.Response = response.String
		if tools.String != "" {
			rec.ToolsUsed = strings.Split(tools.String, ",")
		}
		rec.SessionID = session.String
		rec.ThreadID = thread.String
		rec.Error = errStr.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ByInstance returns the invocation recorded for one instance id.
func (s *Store) ByInstance(ctx context.Context, instanceID string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, mode, agent_name, channel_name, trigger_message,
		       response, duration_sec, cost_usd, turns, tools_used,
		       session_id, thread_id, error, timestamp
		FROM invocations WHERE instance_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1;`, instanceID)
	if err != nil {
		return nil, err
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Stats summarizes recorded invocations.
type Stats struct {
	TotalRuns     int            `json:"total_runs"`
	TotalCostUSD  float64        `json:"total_cost_usd"`
	TotalDuration float64        `json:"total_duration_s"`
	ChannelCounts map[string]int `json:"channel_counts"`
}

// Stats aggregates run count, spend, and per-channel activity.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ChannelCounts: make(map[string]int)}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost_usd), 0), COALESCE(SUM(duration_sec), 0)
		FROM invocations;`).Scan(&st.TotalRuns, &st.TotalCostUSD, &st.TotalDuration)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(NULLIF(channel_name, ''), 'unknown'), COUNT(*)
		FROM invocations GROUP BY 1;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		st.ChannelCounts[name] = n
	}
	return st, rows.Err()
}

// ThreadSummary is one conversation thread, newest activity first.
type ThreadSummary struct {
	ThreadID      string    `json:"thread_id"`
	Title         string    `json:"title"`
	AgentName     string    `json:"agent"`
	ChannelName   string    `json:"channel"`
	Mode          string    `json:"mode"`
	LastTimestamp time.Time `json:"last_timestamp"`
	MessageCount  int       `json:"message_count"`
}

// Threads lists conversation threads ordered by most recent activity.
// Invocations without a thread id count as single-message threads keyed by
// instance id.
func (s *Store) Threads(ctx context.Context) ([]ThreadSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tid, i.trigger_message, i.agent_name, i.channel_name, i.mode,
		       l.timestamp, t.n
		FROM (
			SELECT COALESCE(NULLIF(thread_id, ''), instance_id) AS tid,
			       MIN(id) AS first_id, MAX(id) AS last_id, COUNT(*) AS n
			FROM invocations GROUP BY tid
		) t
		JOIN invocations i ON i.id = t.first_id
		JOIN invocations l ON l.id = t.last_id
		ORDER BY l.timestamp DESC, l.id DESC;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ThreadSummary
	for rows.Next() {
		var t ThreadSummary
		var trigger, channel sql.NullString
		if err := rows.Scan(&t.ThreadID, &trigger, &t.AgentName, &channel,
			&t.Mode, &t.LastTimestamp, &t.MessageCount); err != nil {
			return nil, err
		}
		t.ChannelName = channel.String
		t.Title = trigger.String
		if len(t.Title) > 200 {
			t.Title = t.Title[:200]
		}
		if t.Title == "" {
			t.Title = "(no message)"
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Thread returns a thread's invocations in chronological order.
func (s *Store) Thread(ctx context.Context, threadID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, mode, agent_name, channel_name, trigger_message,
		       response, duration_sec, cost_usd, turns, tools_used,
		       session_id, thread_id, error, timestamp
		FROM invocations
		WHERE COALESCE(NULLIF(thread_id, ''), instance_id) = ?
		ORDER BY timestamp ASC, id ASC;`, threadID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// SessionForThread returns the session id of the most recent invocation on
// the given thread by the given agent, or "" when none exists. Used to
// resume multi-turn conversations.
func (s *Store) SessionForThread(ctx context.Context, threadID, agentName string) (string, error) {
	if threadID == "" {
		return "", nil
	}
	var session sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id FROM invocations
		WHERE thread_id = ? AND agent_name = ? AND session_id != '' AND session_id IS NOT NULL
		ORDER BY timestamp DESC, id DESC LIMIT 1;`, threadID, agentName).Scan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return session.String, nil
}
