package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/aria/internal/backend"
	"github.com/stellarlinkco/aria/internal/config"
	"github.com/stellarlinkco/aria/internal/engine"
	"github.com/stellarlinkco/aria/internal/gateway"
	"github.com/stellarlinkco/aria/internal/logging"
	"github.com/stellarlinkco/aria/internal/memory"
	"github.com/stellarlinkco/aria/internal/persona"
	"github.com/stellarlinkco/aria/internal/store"
)

const cliChannel = "cli"

// ChatOptions injects collaborators into the chat command.
type ChatOptions struct {
	Store   store.Store
	Backend backend.Generator
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "aria",
	Short: "aria - a companion that remembers you",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in single message or REPL mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChatWithOptions(cmd.Context(), ChatOptions{Stdin: cmd.InOrStdin(), Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the gateway (channels, HTTP API, snapshots)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and persona file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnboard(cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aria status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context(), cmd.OutOrStdout())
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect stored user profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profile ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfileList(cmd.Context(), cmd.OutOrStdout())
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfileShow(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

var (
	messageFlag string
	userFlag    string
	nameFlag    string
)

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	chatCmd.Flags().StringVarP(&userFlag, "user", "u", "local", "User id for the conversation")
	chatCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Display name for a new profile")
	profileCmd.AddCommand(profileListCmd, profileShowCmd)
	rootCmd.AddCommand(chatCmd, gatewayCmd, onboardCmd, statusCmd, profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func cliLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	return logging.New(cfg.Log, w, cfg.Provider.APIKey, cfg.Channels.Telegram.Token, cfg.Store.Redis.Password)
}

func runChatWithOptions(ctx context.Context, opts ChatOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := cliLogger(cfg, stderr)

	st := opts.Store
	if st == nil {
		if st, err = store.Open(cfg.Store); err != nil {
			return fmt.Errorf("open profile store: %w", err)
		}
	}
	defer st.Close()

	p, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		logger.Warn().Err(err).Msg("persona load failed, using default")
	}

	gen := opts.Backend
	if gen == nil {
		if gen, err = backend.New(cfg.Provider, cfg.Agent); err != nil {
			return fmt.Errorf("create backend: %w", err)
		}
	}

	svc := memory.NewService(st, memory.WithLogger(logging.Component(logger, "memory")))
	eng := engine.New(svc,
		engine.WithPersona(p),
		engine.WithBackend(gen),
		engine.WithLogger(logging.Component(logger, "engine")),
	)
	sess := engine.NewSession(cliChannel+":"+userFlag, nameFlag)

	if messageFlag != "" {
		fmt.Fprintln(stdout, eng.HandleTurn(ctx, sess, messageFlag).Text)
		return nil
	}

	fmt.Fprintf(stdout, "%s (type 'exit' to quit)\n\n", p.Name)
	fmt.Fprintln(stdout, p.Greeting)
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		fmt.Fprintln(stdout, eng.HandleTurn(ctx, sess, input).Text)
	}
	return nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

func runOnboard(out io.Writer) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()
	personaPath := filepath.Join(cfgDir, "persona.yaml")

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		cfg.PersonaPath = personaPath
		if err := config.SaveConfig(cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	data, err := yaml.Marshal(persona.Default())
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	writeIfNotExists(out, personaPath, data)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set your API key\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set ARIA_API_KEY / GEMINI_API_KEY")
	fmt.Fprintln(out, "  3. Run 'aria chat -m \"Hello\"' to test")
	return nil
}

func writeIfNotExists(out io.Writer, path string, content []byte) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, content, 0644); err == nil {
			fmt.Fprintf(out, "  Created: %s\n", path)
		}
	}
}

func runStatus(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Provider: %s\n", cfg.Provider.Kind())
	fmt.Fprintf(out, "Model: %s\n", cfg.ModelName())
	fmt.Fprintf(out, "API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Fprintf(out, "Store: %s %s\n", cfg.Store.Driver, cfg.Store.Path)
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(out, "WebSocket: enabled=%v\n", cfg.Channels.WebSocket.Enabled)
	fmt.Fprintf(out, "Snapshots: enabled=%v schedule=%q\n", cfg.Snapshot.Enabled, cfg.Snapshot.Schedule)

	st, err := store.Open(cfg.Store)
	if err != nil {
		fmt.Fprintf(out, "Profiles: unavailable (%v)\n", err)
		return nil
	}
	defer st.Close()
	ids, err := st.Keys(ctx)
	if err != nil {
		fmt.Fprintf(out, "Profiles: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Profiles: %d\n", len(ids))
	return nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}

func openService() (*memory.Service, store.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open profile store: %w", err)
	}
	return memory.NewService(st), st, nil
}

func runProfileList(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()
	ids, err := svc.ListProfiles(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func runProfileShow(ctx context.Context, out io.Writer, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()
	p := svc.GetProfile(ctx, id)
	if p == nil {
		return fmt.Errorf("profile %s not found", id)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
