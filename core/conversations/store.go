// Package conversations persists conversation history and long-term facts
// in SQLite, giving the assistant a sliding context window that survives
// restarts.
package conversations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
	_ "modernc.org/sqlite"
)

// Store is the SQLite persistence layer. It holds raw turns and long-term
// facts; windowing and compaction live in Manager.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the conversation database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS facts (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate conversation database: %w", err)
		}
	}
	return nil
}

// AppendTurn persists one conversation turn.
func (s *Store) AppendTurn(ctx context.Context, role llms.Role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (role, content, created_at) VALUES (?, ?, ?)`,
		string(role), content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit most recent turns, oldest first.
func (s *Store) RecentTurns(ctx context.Context, limit int) ([]llms.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent turns: %w", err)
	}
	defer rows.Close()

	var turns []llms.Turn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, llms.Turn{Role: llms.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// TrimTurns deletes all but the newest keep turns.
func (s *Store) TrimTurns(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE id NOT IN (
			SELECT id FROM turns ORDER BY id DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return fmt.Errorf("failed to trim turns: %w", err)
	}
	return nil
}

// ClearTurns deletes the whole turn history.
func (s *Store) ClearTurns(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns`); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}

// StoreFact upserts one long-term fact.
func (s *Store) StoreFact(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store fact: %w", err)
	}
	return nil
}

// Fact is one long-term key/value fact about the user or environment.
type Fact struct {
	Key   string
	Value string
}

// Facts returns all stored facts, most recently updated first.
func (s *Store) Facts(ctx context.Context) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM facts ORDER BY updated_at DESC, key`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var fact Fact
		if err := rows.Scan(&fact.Key, &fact.Value); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}
	return facts, nil
}
