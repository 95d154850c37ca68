package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/cli/config"
	domainConfig "github.com/secmon-lab/citypulse/pkg/domain/model/config"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var taxonomyPath string

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a classification taxonomy file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "taxonomy",
				Usage:       "Path to the taxonomy TOML file",
				Required:    true,
				Sources:     cli.EnvVars("CITYPULSE_TAXONOMY"),
				Destination: &taxonomyPath,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			taxonomy, err := config.LoadTaxonomy(taxonomyPath)
			if err != nil {
				return goerr.Wrap(err, "taxonomy validation failed")
			}

			logging.Default().Info("Taxonomy validation passed",
				"path", taxonomyPath,
				"categories", len(taxonomy.Categories),
				"priorities", len(taxonomy.Priorities),
				"departments", len(taxonomy.Departments))

			printTaxonomy(os.Stdout, taxonomyPath, taxonomy)
			return nil
		},
	}
}

func printTaxonomy(w io.Writer, path string, taxonomy *domainConfig.Taxonomy) {
	green := color.New(color.FgGreen).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", green("✓"), bold(path))

	fmt.Fprintf(w, "\n%s (%d)\n", bold("Categories"), len(taxonomy.Categories))
	for _, c := range taxonomy.Categories {
		fmt.Fprintf(w, "  %-24s %s\n", color.CyanString(c.ID), c.Name)
	}

	fmt.Fprintf(w, "\n%s (%d)\n", bold("Priorities"), len(taxonomy.Priorities))
	for _, p := range taxonomy.Priorities {
		fmt.Fprintf(w, "  %-24s %s\n", color.CyanString(p.ID), p.Name)
	}

	fmt.Fprintf(w, "\n%s (%d)\n", bold("Departments"), len(taxonomy.Departments))
	for _, d := range taxonomy.Departments {
		fmt.Fprintf(w, "  %-24s %s\n", color.CyanString(d.ID), d.Name)
	}
}
