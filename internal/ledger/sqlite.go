// Package ledger keeps an append-only audit trail of messages, tool
// calls, and turn outcomes in SQLite. The conversation's authoritative
// state lives in the context store; the ledger exists for transcript
// queries and post-hoc inspection, and the default in-memory DSN means
// it does not survive a restart.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// DefaultDSN is a shared in-memory database.
const DefaultDSN = "file::memory:?cache=shared"

// SQLiteLedger records turns, messages, and tool calls.
type SQLiteLedger struct {
	db *sql.DB
}

// Open opens the ledger database and runs migrations.
func Open(dsn string) (*SQLiteLedger, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate
	// databases. Keep a single connection so the schema is shared.
	if dsn == ":memory:" || strings.Contains(dsn, "memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_name TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS tool_calls (
			tool_call_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			status TEXT NOT NULL,
			args TEXT,
			result TEXT,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			final_text TEXT,
			recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, recorded_at)`,
	}

	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// RecordMessage appends one conversation message.
func (l *SQLiteLedger) RecordMessage(ctx context.Context, sessionID, turnID string, msg domain.Message) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, turn_id, role, content, tool_name, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, nullString(turnID), string(msg.Role), msg.Content, nullString(msg.ToolName), msg.CreatedAt)
	return err
}

// RecordToolCall appends one completed tool call. Entries are never
// updated afterwards.
func (l *SQLiteLedger) RecordToolCall(ctx context.Context, sessionID string, tc domain.ToolCall) error {
	var errStr sql.NullString
	if tc.Error != nil {
		raw, _ := json.Marshal(tc.Error)
		errStr = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO tool_calls (tool_call_id, session_id, turn_id, tool_name, status, args, result, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.ToolCallID, sessionID, tc.TurnID, tc.Name, string(tc.Status), nullStringBytes(tc.Arguments), nullStringBytes(tc.Result), errStr, tc.CreatedAt)
	return err
}

// RecordTurn appends the terminal outcome of one turn.
func (l *SQLiteLedger) RecordTurn(ctx context.Context, sessionID, turnID string, outcome domain.TurnOutcome, finalText string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO turns (turn_id, session_id, outcome, final_text, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		turnID, sessionID, string(outcome), nullString(finalText), time.Now().UTC())
	return err
}

// Transcript returns the recorded messages for a session, oldest
// first.
func (l *SQLiteLedger) Transcript(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT role, content, tool_name, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := l.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var toolName sql.NullString
		if err := rows.Scan(&role, &msg.Content, &toolName, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		if toolName.Valid {
			msg.ToolName = toolName.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ToolCalls returns the recorded tool calls for a session, oldest
// first.
func (l *SQLiteLedger) ToolCalls(ctx context.Context, sessionID string) ([]domain.ToolCall, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tool_call_id, turn_id, tool_name, status, args, result, error, created_at FROM tool_calls WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []domain.ToolCall
	for rows.Next() {
		var tc domain.ToolCall
		var status string
		var args, result, errData sql.NullString
		if err := rows.Scan(&tc.ToolCallID, &tc.TurnID, &tc.Name, &status, &args, &result, &errData, &tc.CreatedAt); err != nil {
			return nil, err
		}
		tc.Status = domain.ToolCallStatus(status)
		if args.Valid {
			tc.Arguments = json.RawMessage(args.String)
		}
		if result.Valid {
			tc.Result = json.RawMessage(result.String)
		}
		if errData.Valid {
			var toolErr domain.ToolError
			if err := json.Unmarshal([]byte(errData.String), &toolErr); err == nil {
				tc.Error = &toolErr
			}
		}
		calls = append(calls, tc)
	}
	return calls, rows.Err()
}

// TurnOutcomes returns the recorded turn outcomes for a session,
// oldest first.
func (l *SQLiteLedger) TurnOutcomes(ctx context.Context, sessionID string) ([]domain.TurnResult, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT turn_id, outcome, final_text FROM turns WHERE session_id = ? ORDER BY recorded_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.TurnResult
	for rows.Next() {
		var tr domain.TurnResult
		var outcome string
		var finalText sql.NullString
		if err := rows.Scan(&tr.TurnID, &outcome, &finalText); err != nil {
			return nil, err
		}
		tr.Outcome = domain.TurnOutcome(outcome)
		if finalText.Valid {
			tr.FinalText = finalText.String
		}
		turns = append(turns, tr)
	}
	return turns, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
