// Command nova runs the voice assistant as a terminal chat client. Typed
// messages and captured speech go through the same turn pipeline; spoken
// replies play while the text streams into the conversation pane.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zhafranr/nova-core/core/conversations"
	"github.com/zhafranr/nova-core/core/llms/groq"
	"github.com/zhafranr/nova-core/core/tools"
	"github.com/zhafranr/nova-core/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nova:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	store, err := conversations.OpenStore(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	managerOpts := []conversations.ManagerOption{conversations.WithWindow(cfg.MaxContextTurns)}
	if cfg.GroqAPIKey != "" {
		managerOpts = append(managerOpts,
			conversations.WithSummarizer(newSummarizer(groq.New(cfg.GroqAPIKey))))
	}
	conversation, err := conversations.NewManager(ctx, store, managerOpts...)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(tools.TimeDateTools(time.Now)...)
	registry.Register(tools.MemoryTools(store)...)

	orchestrator, voiceReady, err := buildOrchestrator(cfg, conversation, registry, store)
	if err != nil {
		return err
	}

	program := tea.NewProgram(newChatModel(orchestrator, conversation, voiceReady), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run chat client: %w", err)
	}
	return nil
}
