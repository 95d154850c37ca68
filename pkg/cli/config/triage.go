package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/citypulse/pkg/domain/model/config"
	"github.com/secmon-lab/citypulse/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// TaxonomyFile is the TOML representation of the classification taxonomy
type TaxonomyFile struct {
	Categories  []TaxonomyEntry `toml:"category"`
	Priorities  []TaxonomyEntry `toml:"priority"`
	Departments []TaxonomyEntry `toml:"department"`
}

// TaxonomyEntry is one allowed classification value
type TaxonomyEntry struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

var taxonomyIDPattern = regexp.MustCompile(`^[a-z0-9]+([_-][a-z0-9]+)*$`)

// Validate checks if the TaxonomyEntry is valid
func (e *TaxonomyEntry) Validate() error {
	if !taxonomyIDPattern.MatchString(e.ID) {
		return goerr.Wrap(ErrInvalidID, "taxonomy ID must be lower case words joined by '_' or '-'",
			goerr.V(EntryIDKey, e.ID))
	}
	if e.Name == "" {
		return goerr.Wrap(ErrMissingName, "taxonomy entry name is required", goerr.V(EntryIDKey, e.ID))
	}
	return nil
}

func validateSection(section string, entries []TaxonomyEntry) error {
	if len(entries) == 0 {
		return goerr.Wrap(ErrEmptySection, "taxonomy section is empty", goerr.V(SectionKey, section))
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return goerr.Wrap(err, "invalid taxonomy entry",
				goerr.V(SectionKey, section), goerr.V(EntryIndexKey, i))
		}
		if seen[e.ID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate taxonomy ID",
				goerr.V(SectionKey, section), goerr.V(EntryIDKey, e.ID))
		}
		seen[e.ID] = true
	}
	return nil
}

// Validate checks every section of the taxonomy
func (t *TaxonomyFile) Validate() error {
	if err := validateSection("category", t.Categories); err != nil {
		return err
	}
	if err := validateSection("priority", t.Priorities); err != nil {
		return err
	}
	return validateSection("department", t.Departments)
}

// ToDomain converts the file representation into the domain taxonomy
func (t *TaxonomyFile) ToDomain() *domainConfig.Taxonomy {
	out := &domainConfig.Taxonomy{}
	for _, e := range t.Categories {
		out.Categories = append(out.Categories, domainConfig.Category{ID: e.ID, Name: e.Name, Description: e.Description})
	}
	for _, e := range t.Priorities {
		out.Priorities = append(out.Priorities, domainConfig.Priority{ID: e.ID, Name: e.Name, Description: e.Description})
	}
	for _, e := range t.Departments {
		out.Departments = append(out.Departments, domainConfig.Department{ID: e.ID, Name: e.Name, Description: e.Description})
	}
	return out
}

// LoadTaxonomy reads and validates a taxonomy TOML file
func LoadTaxonomy(path string) (*domainConfig.Taxonomy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "taxonomy file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read taxonomy file", goerr.V(ConfigPathKey, path))
	}

	var file TaxonomyFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse taxonomy file",
			goerr.V(ConfigPathKey, path), goerr.V("cause", err.Error()))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid taxonomy file", goerr.V(ConfigPathKey, path))
	}

	return file.ToDomain(), nil
}

// Triage holds the lifecycle engine tuning flags
type Triage struct {
	maxRounds         int
	classifierTimeout time.Duration
	lockWait          time.Duration
	taxonomyPath      string
	recoveryInterval  time.Duration
	staleAfter        time.Duration
}

func (x *Triage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-clarification-rounds",
			Usage:       "Answered clarification rounds before triage is forced",
			Category:    "Triage",
			Value:       usecase.DefaultMaxClarificationRounds,
			Sources:     cli.EnvVars("CITYPULSE_MAX_CLARIFICATION_ROUNDS"),
			Destination: &x.maxRounds,
		},
		&cli.DurationFlag{
			Name:        "classifier-timeout",
			Usage:       "Timeout of a single classifier call",
			Category:    "Triage",
			Value:       usecase.DefaultClassifierTimeout,
			Sources:     cli.EnvVars("CITYPULSE_CLASSIFIER_TIMEOUT"),
			Destination: &x.classifierTimeout,
		},
		&cli.DurationFlag{
			Name:        "lock-wait",
			Usage:       "How long a follow-up waits for a busy issue before failing",
			Category:    "Triage",
			Value:       usecase.DefaultLockWait,
			Sources:     cli.EnvVars("CITYPULSE_LOCK_WAIT"),
			Destination: &x.lockWait,
		},
		&cli.StringFlag{
			Name:        "taxonomy",
			Usage:       "Taxonomy TOML file (built-in taxonomy when empty)",
			Category:    "Triage",
			Sources:     cli.EnvVars("CITYPULSE_TAXONOMY"),
			Destination: &x.taxonomyPath,
		},
		&cli.DurationFlag{
			Name:        "recovery-interval",
			Usage:       "Interval of the stalled triage sweep (0 disables it)",
			Category:    "Triage",
			Value:       time.Minute,
			Sources:     cli.EnvVars("CITYPULSE_RECOVERY_INTERVAL"),
			Destination: &x.recoveryInterval,
		},
		&cli.DurationFlag{
			Name:        "recovery-stale-after",
			Usage:       "Age after which an unfinished classification is resumed",
			Category:    "Triage",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("CITYPULSE_RECOVERY_STALE_AFTER"),
			Destination: &x.staleAfter,
		},
	}
}

func (x Triage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("max_rounds", x.maxRounds),
		slog.String("classifier_timeout", x.classifierTimeout.String()),
		slog.String("lock_wait", x.lockWait.String()),
		slog.String("taxonomy", x.taxonomyPath),
	)
}

// Taxonomy loads the configured taxonomy or returns the built-in one
func (x *Triage) Taxonomy() (*domainConfig.Taxonomy, error) {
	if x.taxonomyPath == "" {
		return domainConfig.DefaultTaxonomy(), nil
	}
	return LoadTaxonomy(x.taxonomyPath)
}

// Options returns the engine options for the configured bounds
func (x *Triage) Options() ([]usecase.Option, error) {
	if x.maxRounds < 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "max-clarification-rounds must not be negative",
			goerr.V("value", x.maxRounds))
	}
	if x.classifierTimeout <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "classifier-timeout must be positive",
			goerr.V("value", x.classifierTimeout.String()))
	}
	if x.lockWait <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "lock-wait must be positive",
			goerr.V("value", x.lockWait.String()))
	}

	return []usecase.Option{
		usecase.WithMaxClarificationRounds(x.maxRounds),
		usecase.WithClassifierTimeout(x.classifierTimeout),
		usecase.WithLockWait(x.lockWait),
	}, nil
}

// RecoveryInterval returns the sweep interval; zero disables recovery
func (x *Triage) RecoveryInterval() time.Duration {
	return x.recoveryInterval
}

// StaleAfter returns the age at which unfinished triage is resumed
func (x *Triage) StaleAfter() time.Duration {
	return x.staleAfter
}
