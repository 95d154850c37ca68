package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/usecase"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// cmdRecover runs a single stalled triage sweep, for deployments that run
// recovery as a scheduled job instead of inside the server
func cmdRecover() *cli.Command {
	var engineCfg engineConfig
	var staleAfter time.Duration

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "stale-after",
			Usage:       "Resume issues whose classification has not finished for this long",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("CITYPULSE_RECOVER_STALE_AFTER"),
			Destination: &staleAfter,
		},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:    "recover",
		Aliases: []string{"r"},
		Usage:   "Resume classification of issues left unfinished by a crash",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			startTime := time.Now()

			repo, ucOpts, err := engineCfg.build(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			uc := usecase.New(repo, ucOpts...)
			defer uc.Wait()

			n, err := uc.Issue.RecoverStalled(ctx, staleAfter)
			if err != nil {
				return goerr.Wrap(err, "failed to recover stalled issues", goerr.V("recovered", n))
			}

			logging.Default().Info("Recovery completed",
				"recovered", n,
				"duration", time.Since(startTime).String())
			return nil
		},
	}
}
