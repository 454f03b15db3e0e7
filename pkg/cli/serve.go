package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/service/worker"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var apiKey string
	var retention time.Duration
	var retentionInterval time.Duration
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "0.0.0.0:8080",
			Sources:     cli.EnvVars("MNEMOSYNE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "API key required in X-API-Key for mutating requests (open when empty)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("MNEMOSYNE_API_KEY"),
			Destination: &apiKey,
		},
		&cli.DurationFlag{
			Name:        "retention",
			Usage:       "Delete memories older than this duration (0 disables)",
			Category:    "Retention",
			Sources:     cli.EnvVars("MNEMOSYNE_RETENTION"),
			Destination: &retention,
		},
		&cli.DurationFlag{
			Name:        "retention-interval",
			Usage:       "Interval between retention runs",
			Value:       time.Hour,
			Category:    "Retention",
			Sources:     cli.EnvVars("MNEMOSYNE_RETENTION_INTERVAL"),
			Destination: &retentionInterval,
		},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// Load the embedding model in the background so the first request does not pay for it.
			async.Dispatch(ctx, "vectorizer-warmup", func(ctx context.Context) error {
				if err := embedding.Warmup(ctx, uc.Vectorizer()); err != nil {
					return goerr.Wrap(err, "failed to warm up vectorizer")
				}
				logging.From(ctx).Info("Vectorizer ready", "model", uc.Vectorizer().Model())
				return nil
			})

			var retentionWorker *worker.RetentionWorker
			if retention > 0 {
				retentionWorker = worker.NewRetentionWorker(uc.Memory, retention, retentionInterval)
				if err := retentionWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start retention worker")
				}
			}

			httpOpts := []httpctrl.Options{
				httpctrl.WithVersion(version),
			}
			if apiKey != "" {
				httpOpts = append(httpOpts, httpctrl.WithAPIKey(apiKey))
				logging.Default().Info("API key authentication enabled for mutating routes")
			} else {
				logging.Default().Warn("API key not configured, mutating routes are open")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if retentionWorker != nil {
					retentionWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if retentionWorker != nil {
					retentionWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
