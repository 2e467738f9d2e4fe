// Command roommates runs the roommate matching service and its maintenance
// tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Benwil1/latest-copy-sub000/config"
	"github.com/Benwil1/latest-copy-sub000/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// rootOptions is shared by every subcommand.
type rootOptions struct {
	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "roommates",
		Short:         "Roommate matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Init(logging.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Caller: cfg.Log.Caller,
			})
			opts.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newScoreCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := a.store.Migrate(ctx); err != nil {
			return err
		}
	}

	relayDone := make(chan error, 1)
	go func() { relayDone <- a.relay.Run(ctx) }()

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(routerDeps{
			Engine:     a.engine,
			Hub:        a.hub,
			Profiles:   a.profiles,
			LoaderWait: cfg.Profiles.LoaderWait,
			JWTSecret:  []byte(cfg.Auth.JWTSecret),
			Server:     cfg.Server,
			Ping:       a.store.Ping,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("Starting roommate matching API")
		serveErr <- srv.ListenAndServe()
	}()

	for waiting := true; waiting; {
		select {
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case err := <-relayDone:
			// Actions still work; only live match pushes stop.
			logging.Error().Err(err).Msg("match relay stopped")
			relayDone = nil
		case <-ctx.Done():
			waiting = false
		}
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
