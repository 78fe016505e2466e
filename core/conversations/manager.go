package conversations

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zhafranr/nova-core/core/llms"
)

const (
	// defaultLimit is the window size (in individual messages) at which
	// compaction kicks in.
	defaultLimit = 40
	// defaultKeep is how many messages survive compaction, and how many
	// are reloaded on startup.
	defaultKeep = 10
)

// Summarizer condenses dropped conversation text into a short summary that
// replaces it in the window.
type Summarizer func(ctx context.Context, text string) (string, error)

// Manager keeps the sliding conversation window, persisting every turn to
// the store and compacting the window when it grows past its limit. On
// startup it reloads the most recent turns so context survives restarts.
type Manager struct {
	store      *Store
	summarizer Summarizer

	// limit triggers compaction; keep is the post-compaction window size.
	// Both count individual messages, not exchanges.
	limit int
	keep  int

	mu      sync.Mutex
	history []llms.Turn
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSummarizer makes compaction summarize dropped turns instead of
// discarding them outright.
func WithSummarizer(summarizer Summarizer) ManagerOption {
	return func(m *Manager) {
		m.summarizer = summarizer
	}
}

// WithWindow sets how many exchanges (user/assistant pairs) survive
// compaction and are reloaded on startup. The compaction threshold scales
// with it. Non-positive values keep the defaults.
func WithWindow(exchanges int) ManagerOption {
	return func(m *Manager) {
		if exchanges > 0 {
			m.keep = 2 * exchanges
			m.limit = 2 * m.keep
		}
	}
}

// NewManager builds a Manager over an open store, reloading the most
// recent turns from it.
func NewManager(ctx context.Context, store *Store, opts ...ManagerOption) (*Manager, error) {
	manager := &Manager{store: store, limit: defaultLimit, keep: defaultKeep}
	for _, opt := range opts {
		opt(manager)
	}

	history, err := store.RecentTurns(ctx, manager.keep)
	if err != nil {
		return nil, fmt.Errorf("failed to restore conversation window: %w", err)
	}
	manager.history = history
	return manager, nil
}

// History returns the current window, oldest first.
func (m *Manager) History() []llms.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llms.Turn(nil), m.history...)
}

// TurnCount reports how many messages the window currently holds.
func (m *Manager) TurnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// AppendExchange records one user/assistant exchange, persists both turns,
// and compacts the window if it grew past its limit.
func (m *Manager) AppendExchange(ctx context.Context, prompt, response string, toolCalls []llms.ToolCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history,
		llms.Turn{Role: llms.RoleUser, Content: prompt},
		llms.Turn{Role: llms.RoleAssistant, Content: response, ToolCalls: toolCalls},
	)

	if err := m.store.AppendTurn(ctx, llms.RoleUser, prompt); err != nil {
		return err
	}
	if err := m.store.AppendTurn(ctx, llms.RoleAssistant, response); err != nil {
		return err
	}

	if len(m.history) >= m.limit {
		return m.compact(ctx)
	}
	return nil
}

// Clear resets the window and the persisted history.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	return m.store.ClearTurns(ctx)
}

// compact shrinks the window to its most recent messages. With a
// summarizer configured, the dropped turns are condensed into a single
// system turn that heads the new window. Called with m.mu held.
func (m *Manager) compact(ctx context.Context) error {
	dropped := m.history[:len(m.history)-m.keep]
	kept := append([]llms.Turn(nil), m.history[len(m.history)-m.keep:]...)

	if m.summarizer != nil {
		var transcript strings.Builder
		for _, turn := range dropped {
			fmt.Fprintf(&transcript, "%s: %s\n", turn.Role, turn.Content)
		}
		summary, err := m.summarizer(ctx, transcript.String())
		if err == nil && summary != "" {
			kept = append([]llms.Turn{{
				Role:    llms.RoleSystem,
				Content: "Ringkasan percakapan sebelumnya: " + summary,
			}}, kept...)
		}
	}

	m.history = kept
	return m.store.TrimTurns(ctx, m.keep)
}
