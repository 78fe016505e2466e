package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhafranr/nova-core/core/conversations"
	"github.com/zhafranr/nova-core/core/llms"
)

// FactStore is the long-term memory surface the fact tools write to and
// read from.
type FactStore interface {
	StoreFact(ctx context.Context, key, value string) error
	Facts(ctx context.Context) ([]conversations.Fact, error)
}

// MemoryTools lets the model store and recall long-term facts about the
// user across sessions.
func MemoryTools(store FactStore) []llms.Tool {
	return []llms.Tool{
		llms.NewTool("remember_fact",
			"Store a long-term fact about the user, e.g. their name or preferences",
			func(ctx context.Context, params struct {
				Key   string `json:"key" jsonschema:"description=Short identifier for the fact, e.g. 'nama' or 'kota'"`
				Value string `json:"value" jsonschema:"description=The fact itself"`
			}) (string, error) {
				if params.Key == "" || params.Value == "" {
					return "", fmt.Errorf("both key and value are required")
				}
				if err := store.StoreFact(ctx, params.Key, params.Value); err != nil {
					return "", err
				}
				return fmt.Sprintf("Baik, saya ingat %s: %s", params.Key, params.Value), nil
			}),
		llms.NewTool("recall_facts",
			"Recall every long-term fact stored about the user",
			func(ctx context.Context, _ struct{}) (string, error) {
				facts, err := store.Facts(ctx)
				if err != nil {
					return "", err
				}
				if len(facts) == 0 {
					return "Belum ada fakta tersimpan.", nil
				}
				lines := make([]string, 0, len(facts))
				for _, fact := range facts {
					lines = append(lines, fmt.Sprintf("%s: %s", fact.Key, fact.Value))
				}
				return strings.Join(lines, "\n"), nil
			}),
	}
}
