// Package main provides the CLI entrypoint for typerace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/race"
	"github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/store"
	"github.com/verte-zerg/typerace/internal/transport"
	"github.com/verte-zerg/typerace/internal/tui"
)

const (
	defaultServerURL = "ws://localhost:5000/ws"
	defaultCountdown = 3
	defaultLogLevel  = "info"
	defaultWindow    = 10
	defaultTop       = 10
	dialTimeout      = 10 * time.Second
)

var (
	playServerURL string
	playNickname  string
	playCountdown int
	playLogLevel  string
	playNoHistory bool

	historySince  string
	historyLast   int
	historyWindow int
	historyTop    int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typerace",
		Short:         "Multiplayer typing race client",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playServerURL, "server", defaultServerURL, "race server websocket URL")
	rootCmd.Flags().StringVar(&playNickname, "nickname", "", "nickname sent after connecting")
	rootCmd.Flags().IntVar(&playCountdown, "countdown", defaultCountdown, "seconds shown before a round starts")
	rootCmd.Flags().StringVar(&playLogLevel, "log-level", defaultLogLevel, "log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&playNoHistory, "no-history", false, "do not save finished rounds")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("typerace needs an interactive terminal")
	}
	cfg, err := resolvePlayConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(config.DefaultLogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	var st *store.Store
	if !playNoHistory {
		st, err = store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logger.Error().Err(cerr).Msg("failed to close db")
			}
		}()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), dialTimeout)
	defer cancel()
	client, err := transport.Dial(ctx, cfg.ServerURL, transport.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("failed to close connection")
		}
	}()

	engine := race.NewEngine(client, race.WithLogger(logger.With().Str("component", "engine").Logger()))
	m := tui.NewModel(cfg, engine, client.Events(), st, logger)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func resolvePlayConfig(cmd *cobra.Command) (model.Config, error) {
	if err := config.LoadDotEnv(".env", config.DefaultEnvPath()); err != nil {
		return model.Config{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyEnv(&fileCfg.Client, nil)
	applyStringConfig(cmd, "server", &playServerURL, fileCfg.Client.ServerURL)
	applyStringConfig(cmd, "nickname", &playNickname, fileCfg.Client.Nickname)
	applyIntConfig(cmd, "countdown", &playCountdown, fileCfg.Client.Countdown)
	applyStringConfig(cmd, "log-level", &playLogLevel, fileCfg.Client.LogLevel)

	cfg := model.Config{
		ServerURL: strings.TrimSpace(playServerURL),
		Nickname:  race.NormalizeNickname(playNickname),
		Countdown: playCountdown,
		LogLevel:  playLogLevel,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func openLogger(path, level string) (zerolog.Logger, func(), error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid --log-level value: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	closeLog := func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}
	return logger, closeLog, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished rounds and weakest characters",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N rounds")
	cmd.Flags().IntVar(&historyWindow, "window", defaultWindow, "moving average window")
	cmd.Flags().IntVar(&historyTop, "top", defaultTop, "number of weakest characters to list")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	report, err := stats.BuildReport(cmd.Context(), st, model.HistoryConfig{Since: sinceTime, Last: historyLast})
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), historyWindow, historyTop)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typerace configuration
# Uncomment a value to enable it. Environment variables %s and %s
# override the file, CLI flags override both.

[client]
# server-url = %q   # Race server websocket URL
# nickname = "racer"                    # Nickname sent after connecting
# countdown = %d                         # Seconds shown before a round starts
# log-level = %q                     # trace, debug, info, warn, error
`,
		config.EnvServerURL,
		config.EnvNickname,
		defaultServerURL,
		defaultCountdown,
		defaultLogLevel,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("--server must not be empty")
	}
	if !strings.HasPrefix(cfg.ServerURL, "ws://") && !strings.HasPrefix(cfg.ServerURL, "wss://") {
		return fmt.Errorf("--server must be a ws:// or wss:// URL")
	}
	if cfg.Countdown < 0 {
		return fmt.Errorf("--countdown must be >= 0")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
