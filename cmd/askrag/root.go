package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"askrag/internal/config"
)

// app carries state resolved once by the root command for all subcommands.
type app struct {
	cfg     *config.AppConfig
	cfgPath string
	logger  *slog.Logger
}

// NewRootCmd creates the root askrag command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "askrag",
		Short:         "askrag answers questions about a directory of text files",
		Long:          "askrag indexes the .txt files in a directory and answers questions about them with a language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ./config.yaml or ~/.config/askrag/config.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newIndexCmd(a),
		newScrapeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	// A missing .env is fine; keys may come from the environment.
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	var err error
	if path == "" {
		a.cfg, a.cfgPath, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(path)
		a.cfgPath = path
	}
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.Log, verbose)
	slog.SetDefault(a.logger)
	a.logger.Debug("config loaded", "path", a.cfgPath)
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
