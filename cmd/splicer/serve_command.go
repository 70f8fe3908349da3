package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"splicer/internal/admission"
	"splicer/internal/api"
	"splicer/internal/assembly"
	"splicer/internal/config"
	"splicer/internal/fallback"
	"splicer/internal/jobs"
	"splicer/internal/logging"
	"splicer/internal/notifications"
	"splicer/internal/preflight"
	"splicer/internal/remotefile"
	"splicer/internal/runner"
	"splicer/internal/sandbox"
	"splicer/internal/storage"
)

const shutdownGrace = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServer(runCtx, cfg, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "splicer listening on %s\n", addr)
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}

// runServer blocks until ctx is done. ready, when set, receives the bound address.
func runServer(ctx context.Context, cfg *config.Config, ready func(addr string)) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `splicer status` for details"),
			logging.String(logging.FieldImpact, "stitch jobs may fall back to preview output"),
		)
	}

	store, err := jobs.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	uploader, err := storage.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	launcher, err := sandbox.NewLauncherFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	if local, ok := launcher.(*sandbox.LocalLauncher); ok {
		if _, err := local.Sweep(); err != nil {
			logger.Warn("sandbox sweep failed", logging.Error(err))
		}
	}
	sessions := sandbox.NewManager(launcher, sandbox.OptionsFromConfig(cfg), logger)
	orch := assembly.New(sessions, uploader, logger, assembly.OptionsFromConfig(cfg))

	fetcher := remotefile.New()
	guard := admission.NewGuard(admission.LimitsFromConfig(cfg), fetcher, logger)
	degraded := fallback.NewFromConfig(cfg, fetcher, logger)

	jobRunner := runner.New(store, guard, orch, degraded, uploader, logger, runner.OptionsFromConfig(cfg))
	jobRunner.SetNotifier(notifications.NewService(cfg))
	if _, err := jobRunner.Recover(ctx); err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}

	server := api.NewServer(api.ServerOptionsFromConfig(cfg), jobRunner, store, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}
	if ready != nil {
		ready(server.Addr())
	}

	<-ctx.Done()
	logger.Info("splicer shutting down")
	server.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := jobRunner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("job runner shutdown incomplete", logging.Error(err))
	}
	return nil
}
