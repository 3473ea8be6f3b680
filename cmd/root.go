package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lira/internal/api"
	"lira/internal/app"
	"lira/internal/config"
	"lira/internal/history"
	"lira/internal/log"
	"lira/internal/tracing"
	"lira/internal/ui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "lira",
	Short:   "A terminal ui for literature-review jobs",
	Long:    `A terminal user interface for submitting hypothesis discovery and verification jobs to a literature-review backend and following their progress live.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/lira/config.yaml)")
	rootCmd.Flags().StringP("backend", "b", "",
		"backend root URL (overrides config)")
	rootCmd.Flags().IntP("user", "u", 0,
		"backend user id (overrides config)")
	rootCmd.Flags().Bool("debug", false,
		"write debug logs to lira-debug.log")

	_ = viper.BindPFlag("backend_url", rootCmd.Flags().Lookup("backend"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("backend_url", defaults.BackendURL)
	viper.SetDefault("user_id", defaults.UserID)
	viper.SetDefault("request_timeout_s", defaults.RequestTimeoutS)
	viper.SetDefault("terminal_delay_ms", defaults.TerminalDelayMS)
	viper.SetDefault("reconnect.attempts", defaults.Reconnect.Attempts)
	viper.SetDefault("reconnect.delay_ms", defaults.Reconnect.DelayMS)
	viper.SetDefault("drop.enabled", defaults.Drop.Enabled)
	viper.SetDefault("drop.dir", defaults.Drop.Dir)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("theme.highlight", defaults.Theme.Highlight)
	viper.SetDefault("theme.subtle", defaults.Theme.Subtle)
	viper.SetDefault("theme.error", defaults.Theme.Error)
	viper.SetDefault("theme.success", defaults.Theme.Success)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .lira/config.yaml (current directory)
		// 2. ~/.config/lira/config.yaml (user config)
		if _, err := os.Stat(".lira/config.yaml"); err == nil {
			viper.SetConfigFile(".lira/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "lira"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .lira/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".lira/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runApp(cmd *cobra.Command, args []string) error {
	if userID, _ := cmd.Flags().GetInt("user"); userID > 0 {
		cfg.UserID = userID
	}

	if err := styles.ApplyTheme(styles.ThemeConfig{
		Highlight: cfg.Theme.Highlight,
		Subtle:    cfg.Theme.Subtle,
		Error:     cfg.Theme.Error,
		Success:   cfg.Theme.Success,
	}); err != nil {
		return fmt.Errorf("invalid theme configuration: %w", err)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cleanup, err := log.InitWithTeaLog("lira-debug.log", "lira")
		if err != nil {
			return fmt.Errorf("initializing debug log: %w", err)
		}
		defer cleanup()
	}

	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}()

	// History is best-effort: a broken database degrades to a
	// session-only client rather than refusing to start.
	var repo *history.Repository
	historyPath := cfg.HistoryPath
	if historyPath == "" {
		historyPath = config.DefaultHistoryPath()
	}
	db, err := history.NewDB(historyPath)
	if err != nil {
		log.ErrorErr(log.CatStore, "opening history database", err)
	} else {
		defer func() { _ = db.Close() }()
		repo = db.Repository()
	}

	client := api.NewClient(cfg.BackendURL, cfg.RequestTimeout())
	model := app.New(client, cfg, repo)
	p := tea.NewProgram(
		&model,
		tea.WithAltScreen(),
	)

	_, err = p.Run()

	// Clean up stream and watcher resources
	model.Close()

	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
