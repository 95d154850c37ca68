package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var (
		project  string
		database string
		prefix   string
		plan     bool
	)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the Firestore composite indexes used to list issues",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore project holding the issues collection",
				Required:    true,
				Sources:     cli.EnvVars("CITYPULSE_FIRESTORE_PROJECT_ID"),
				Destination: &project,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore database (default database when empty)",
				Sources:     cli.EnvVars("CITYPULSE_FIRESTORE_DATABASE_ID"),
				Destination: &database,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Collection prefix, same value as for serve",
				Sources:     cli.EnvVars("CITYPULSE_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &prefix,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Print the index changes without applying them",
				Destination: &plan,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			client, err := fireconf.NewClient(ctx, project, database)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client",
					goerr.V("project", project), goerr.V("database", database))
			}
			defer func() {
				if err := client.Close(); err != nil {
					logging.Default().Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			indexes := issueIndexConfig(prefix)
			if plan {
				migration, err := client.GetMigrationPlan(ctx, indexes)
				if err != nil {
					return goerr.Wrap(err, "failed to compute migration plan")
				}

				if len(migration.Steps) == 0 {
					fmt.Fprintln(os.Stdout, color.GreenString("no index changes"))
					return nil
				}
				for _, step := range migration.Steps {
					mark := color.GreenString("+")
					if step.Destructive {
						mark = color.RedString("!")
					}
					fmt.Fprintf(os.Stdout, "%s %s %v: %s\n", mark, step.Collection, step.Operation, step.Description)
				}
				return nil
			}

			logging.Default().Info("Applying issue indexes",
				"project", project,
				"database", database,
				"prefix", prefix)
			if err := client.Migrate(ctx, indexes); err != nil {
				return goerr.Wrap(err, "failed to apply index migration")
			}
			logging.Default().Info("Issue indexes are up to date")
			return nil
		},
	}
}

// issueIndexConfig lists the composite indexes behind ListIssues filters.
// The collection name follows the Firestore repository's prefix rule.
func issueIndexConfig(prefix string) *fireconf.Config {
	collection := "issues"
	if prefix != "" {
		collection = prefix + "_issues"
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: collection,
				Indexes: []fireconf.Index{
					newestFirst("status"),
					newestFirst("category"),
					newestFirst("status", "category"),
				},
			},
		},
	}
}

// newestFirst builds an index on the equality filters followed by created_at
// descending
func newestFirst(filters ...string) fireconf.Index {
	fields := make([]fireconf.IndexField, 0, len(filters)+1)
	for _, f := range filters {
		fields = append(fields, fireconf.IndexField{Path: f, Order: fireconf.OrderAscending})
	}
	fields = append(fields, fireconf.IndexField{Path: "created_at", Order: fireconf.OrderDescending})
	return fireconf.Index{Fields: fields}
}
