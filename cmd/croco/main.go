// Package main provides the croco CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dhruvdaberao/CROCO/internal/chat"
	"github.com/dhruvdaberao/CROCO/internal/config"
	"github.com/dhruvdaberao/CROCO/internal/llm"
	"github.com/dhruvdaberao/CROCO/internal/logging"
	"github.com/dhruvdaberao/CROCO/internal/memory"
	"github.com/dhruvdaberao/CROCO/internal/store"
)

var (
	// Global flags
	verbose    bool
	jsonLogs   bool
	configPath string
	dataDir    string

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "croco",
	Short: "Croco - a conversational companion that remembers you",
	Long: `Croco is a chat companion backed by Gemini.

It walks new users through a short onboarding (name, then an optional
profile picture), streams replies token by token, and quietly keeps a
profile of what it learns about you across sessions.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is a convenience for local runs; absence is fine.
		_ = godotenv.Load()

		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolve home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".croco")
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		var err error
		cfg, err = config.Load(configPath, dataDir)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		if jsonLogs {
			cfg.Logging.JSON = true
		}
		if err := logging.Initialize(logging.Options{Verbose: cfg.Logging.Verbose, JSON: cfg.Logging.JSON}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.croco)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(avatarCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired components every subcommand needs.
type app struct {
	store *store.Store
	orch  *chat.Orchestrator
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// buildApp wires storage, the streaming Gemini client, the structured
// synthesis client, and the orchestrator from the loaded config.
func buildApp(ctx context.Context) (*app, error) {
	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	timeout, err := cfg.LLMTimeout()
	if err != nil {
		st.Close()
		return nil, err
	}
	client := llm.NewGeminiClientWithConfig(llm.GeminiConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: timeout,
	})

	structured, err := llm.NewStructuredClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create synthesis client: %w", err)
	}

	orch, err := chat.New(chat.Options{
		NewSession: func(systemInstruction string) chat.Session {
			return client.NewSession(systemInstruction)
		},
		Synthesizer: memory.NewSynthesizer(structured),
		Storage:     st,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{store: st, orch: orch}, nil
}
