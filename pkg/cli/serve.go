package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/citypulse/pkg/cli/config"
	httpctrl "github.com/secmon-lab/citypulse/pkg/controller/http"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/service/classifier"
	"github.com/secmon-lab/citypulse/pkg/service/worker"
	"github.com/secmon-lab/citypulse/pkg/usecase"
	"github.com/secmon-lab/citypulse/pkg/utils/async"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
)

// engineConfig groups the flags needed to build the lifecycle engine
type engineConfig struct {
	repo   config.Repository
	gemini config.Gemini
	triage config.Triage
}

func (x *engineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.gemini.Flags()...)
	flags = append(flags, x.triage.Flags()...)
	return flags
}

// build creates the repository and engine options shared by serve and recover.
// The caller is responsible for closing the repository.
func (x *engineConfig) build(ctx context.Context) (interfaces.Repository, []usecase.Option, error) {
	taxonomy, err := x.triage.Taxonomy()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load taxonomy")
	}

	opts, err := x.triage.Options()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, usecase.WithTaxonomy(taxonomy))

	llmClient, err := x.gemini.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure Gemini")
	}
	if llmClient != nil {
		c, err := classifier.New(llmClient, classifier.WithTaxonomy(taxonomy))
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create classifier")
		}
		opts = append(opts, usecase.WithClassifier(c))
		logging.Default().Info("Gemini classifier enabled", "gemini", slog.GroupValue(x.gemini.LogAttrs()...))
	} else {
		opts = append(opts, usecase.WithClassifier(classifier.Disabled{}))
		logging.Default().Warn("Gemini project not configured, every issue will be triaged as degraded")
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	return repo, opts, nil
}

func cmdServe() *cli.Command {
	var addr string
	var baseURL string
	var allowedOrigins string
	var engineCfg engineConfig
	var storageCfg config.Storage
	var slackCfg config.Slack

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("CITYPULSE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Base URL for the application (e.g., https://your-domain.com)",
			Sources:     cli.EnvVars("CITYPULSE_BASE_URL"),
			Destination: &baseURL,
		},
		&cli.StringFlag{
			Name:        "allowed-origins",
			Usage:       "Comma separated CORS origins (all origins when empty)",
			Sources:     cli.EnvVars("CITYPULSE_ALLOWED_ORIGINS"),
			Destination: &allowedOrigins,
		},
	}

	// Add shared config flags
	flags = append(flags, engineCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, ucOpts, err := engineCfg.build(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			imageStore, closeStore, err := storageCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			ucOpts = append(ucOpts, usecase.WithImageStore(imageStore))

			notifier, err := slackCfg.Configure(ctx, baseURL)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Slack notifications")
			}
			if notifier != nil {
				ucOpts = append(ucOpts, usecase.WithNotifier(notifier))
			} else {
				logging.Default().Info("Slack not configured, triage notifications disabled")
			}

			dispatcher := async.NewDispatcher()
			ucOpts = append(ucOpts, usecase.WithDispatcher(dispatcher))

			uc := usecase.New(repo, ucOpts...)

			if interval := engineCfg.triage.RecoveryInterval(); interval > 0 {
				recoveryWorker := worker.NewTriageRecoveryWorker(uc.Issue, interval, engineCfg.triage.StaleAfter())
				if err := recoveryWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start triage recovery worker")
				}
				defer recoveryWorker.Stop()
			}

			var httpOpts []httpctrl.Options
			if allowedOrigins != "" {
				httpOpts = append(httpOpts, httpctrl.WithAllowedOrigins(strings.Split(allowedOrigins, ",")))
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc.Issue, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "triage", engineCfg.triage)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				// Pending notifications finish before the repository closes
				uc.Wait()

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
