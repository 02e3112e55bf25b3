// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"colorscheme-indexer/internal/config"
	"colorscheme-indexer/internal/job"
	"colorscheme-indexer/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 3. Configuration and dependencies are loaded once a command is chosen
	a := &app{
		logger: logger,
		load: func() (*config.Config, error) {
			cfg, err := config.LoadConfig()
			if err != nil {
				return nil, fmt.Errorf("failed to load configuration: %w", err)
			}
			setLogLevel(cfg.LogLevel, logLevel)
			logger.Info("Configuration loaded successfully")
			return cfg, nil
		},
	}
	defer a.Close()

	return newRootCmd(a).ExecuteContext(ctx)
}

// worker is what the commands drive.
type worker interface {
	RunJob(ctx context.Context, name job.Name, opts job.Options) error
	Serve(ctx context.Context) error
}

func newRootCmd(w worker) *cobra.Command {
	root := &cobra.Command{
		Use:           "worker",
		Short:         "Index Vim and Neovim color scheme repositories from GitHub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newJobCmd(w, job.Import, "Discover new color scheme repositories through search"),
		newJobCmd(w, job.Update, "Refresh every stored repository"),
		newJobCmd(w, job.Clean, "Drop duplicate and broken image URLs"),
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the stored index over HTTP",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return w.Serve(cmd.Context())
			},
		},
	)
	return root
}

func newJobCmd(w worker, name job.Name, short string) *cobra.Command {
	var (
		force bool
		repos []string
	)
	cmd := &cobra.Command{
		Use:   string(name),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := syncer.ParseRepoIdentifiers(repos)
			if err != nil {
				return err
			}
			var only []string
			for _, id := range ids {
				only = append(only, id.Owner+"/"+id.Name)
			}
			return w.RunJob(cmd.Context(), name, job.Options{Force: force, Only: only})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "treat every repository as due for a content fetch")
	cmd.Flags().StringSliceVar(&repos, "repo", nil, "restrict the run to owner/name (repeatable)")
	return cmd
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
