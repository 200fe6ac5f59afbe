package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/lucerna-ai/lucerna/pkg/config"
	"github.com/lucerna-ai/lucerna/pkg/logging"
	"github.com/lucerna-ai/lucerna/pkg/memory"
	"github.com/lucerna-ai/lucerna/pkg/orchestrator"
	"github.com/lucerna-ai/lucerna/pkg/provider/openai"
	"github.com/lucerna-ai/lucerna/pkg/store"
	"github.com/lucerna-ai/lucerna/pkg/store/sqlitestore"
	"github.com/lucerna-ai/lucerna/pkg/stream"
)

const component = "cmd.chat"

func newChatCmd() *cobra.Command {
	var sessionID string
	var systemPrompt string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive streaming chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), sessionID, systemPrompt)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "default", "session id to resume or create")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt to set on session creation")
	return cmd
}

func runChat(ctx context.Context, sessionID, systemPrompt string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backend, err := openStore(cfg)
	if err != nil {
		return err
	}

	mem, err := memory.NewManager(backend, cfg.Cache.Size)
	if err != nil {
		return fmt.Errorf("construct memory manager: %w", err)
	}

	provider := openai.New(openai.Config{
		APIKey:       cfg.Provider.APIKey,
		BaseURL:      cfg.Provider.BaseURL,
		DefaultModel: cfg.Provider.DefaultModel,
	})

	client := orchestrator.NewClient(provider, mem, orchestrator.WithDefaultMaxToolRounds(cfg.Orchestrator.MaxToolRounds))
	defer func() {
		if err := client.Close(); err != nil {
			logging.WarnCF(component, "error closing client", map[string]interface{}{"error": err.Error()})
		}
	}()

	var promptPtr *string
	if systemPrompt != "" {
		promptPtr = &systemPrompt
	}
	if err := mem.Create(ctx, sessionID, promptPtr); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := mem.SwitchTo(ctx, sessionID); err != nil {
		return fmt.Errorf("switch session: %w", err)
	}

	scope := client.NewScope()
	registerDemoTools(scope)

	rl, err := readline.New("lucerna> ")
	if err != nil {
		return fmt.Errorf("start readline: %w", err)
	}
	defer rl.Close()

	askOpts := orchestrator.AskOptions{
		ContextOptions: orchestrator.ContextOptions{Window: cfg.Orchestrator.DefaultWindow},
	}

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		sink := stream.Sink(func(chunk string) { fmt.Print(chunk) })
		if _, err := scope.AskStream(ctx, line, askOpts, sink); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StorePath == "" {
		return store.NewMemStore(), nil
	}
	return sqlitestore.Open(config.ExpandHome(cfg.StorePath))
}

// registerDemoTools wires two illustrative tools so a fresh checkout has
// something to exercise the Re-Act loop with immediately.
func registerDemoTools(scope *orchestrator.Scope) {
	_ = scope.RegisterTool("current_time", "Returns the current server time as RFC3339.", nil,
		func(ctx context.Context, argumentsJSON string) (string, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		})

	type echoArgs struct {
		Text string `json:"text"`
	}
	_ = scope.RegisterTool("echo", "Echoes the given text back verbatim.", map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{"type": "string"},
		},
		"required": []string{"text"},
	}, func(ctx context.Context, argumentsJSON string) (string, error) {
		var args echoArgs
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", err
		}
		return args.Text, nil
	})
}
