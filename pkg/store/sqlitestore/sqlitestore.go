// Package sqlitestore is a durable store.Store backed by modernc.org/sqlite,
// proving the persistence interface is storage-agnostic alongside the
// default in-process implementation.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

// Store is a single-file SQLite-backed store.Store implementation. One
// shared connection is used throughout: SQLite under concurrent goroutines
// serializes writers anyway, and a single connection avoids lock-contention
// errors from competing writer handles.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			system_prompt TEXT NOT NULL DEFAULT '',
			has_system_prompt INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content_json TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			tool_calls_json TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, seq)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSession(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sessions(session_id, system_prompt, has_system_prompt)
		VALUES(?, '', 0) ON CONFLICT(session_id) DO NOTHING`, sessionID)
	return err
}

func (s *Store) GetSystemPrompt(ctx context.Context, sessionID string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT system_prompt, has_system_prompt FROM sessions WHERE session_id = ?`, sessionID)
	var prompt string
	var has int
	if err := row.Scan(&prompt, &has); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get system prompt: %w", err)
	}
	return prompt, has != 0, nil
}

func (s *Store) SetSystemPrompt(ctx context.Context, sessionID, prompt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set system prompt begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.ensureSession(ctx, tx, sessionID); err != nil {
		return fmt.Errorf("set system prompt ensure session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET system_prompt = ?, has_system_prompt = 1 WHERE session_id = ?`, prompt, sessionID); err != nil {
		return fmt.Errorf("set system prompt: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetMessages(ctx context.Context, sessionID string, limit int) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content_json, name, tool_calls_json, tool_call_id
		FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var all []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	if limit < 0 || limit >= len(all) {
		return all, nil
	}
	return all[len(all)-limit:], nil
}

func scanMessage(rows *sql.Rows) (message.Message, error) {
	var role, contentRaw, name, toolCallsRaw, toolCallID string
	if err := rows.Scan(&role, &contentRaw, &name, &toolCallsRaw, &toolCallID); err != nil {
		return message.Message{}, fmt.Errorf("scan message: %w", err)
	}
	var content message.Content
	if err := json.Unmarshal([]byte(contentRaw), &content); err != nil {
		return message.Message{}, fmt.Errorf("decode content: %w", err)
	}
	var toolCalls []message.ToolCall
	if toolCallsRaw != "" {
		if err := json.Unmarshal([]byte(toolCallsRaw), &toolCalls); err != nil {
			return message.Message{}, fmt.Errorf("decode tool_calls: %w", err)
		}
	}
	return message.Message{
		Role:       message.Role(role),
		Content:    content,
		Name:       name,
		ToolCalls:  toolCalls,
		ToolCallID: toolCallID,
	}, nil
}

func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg message.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append message begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.ensureSession(ctx, tx, sessionID); err != nil {
		return fmt.Errorf("append message ensure session: %w", err)
	}
	if err := insertMessage(ctx, tx, sessionID, msg); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMessage(ctx context.Context, tx *sql.Tx, sessionID string, msg message.Message) error {
	var nextSeq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id = ?`, sessionID)
	if err := row.Scan(&nextSeq); err != nil {
		return fmt.Errorf("append message next seq: %w", err)
	}

	contentRaw, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	var toolCallsRaw string
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool_calls: %w", err)
		}
		toolCallsRaw = string(b)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO messages(session_id, seq, role, content_json, name, tool_calls_json, tool_call_id)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		sessionID, nextSeq, string(msg.Role), string(contentRaw), msg.Name, toolCallsRaw, msg.ToolCallID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) SaveFullContext(ctx context.Context, sessionID string, systemPrompt string, hasSystemPrompt bool, messages []message.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save full context begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	has := 0
	if hasSystemPrompt {
		has = 1
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions(session_id, system_prompt, has_system_prompt) VALUES(?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET system_prompt = excluded.system_prompt, has_system_prompt = excluded.has_system_prompt`,
		sessionID, systemPrompt, has)
	if err != nil {
		return fmt.Errorf("save full context upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("save full context clear messages: %w", err)
	}
	for _, m := range messages {
		if err := insertMessage(ctx, tx, sessionID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ClearMessages(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session row: %w", err)
	}
	return tx.Commit()
}
