package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/cli/config"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

func writeTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

const validTaxonomy = `
[[category]]
id = "pothole"
name = "Pothole"

[[category]]
id = "broken_streetlight"
name = "Broken streetlight"

[[priority]]
id = "low"
name = "Low"

[[priority]]
id = "high"
name = "High"
description = "Should be addressed within days"

[[department]]
id = "public-works"
name = "Public Works"
`

func TestLoadTaxonomy(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		taxonomy, err := config.LoadTaxonomy(writeTaxonomy(t, validTaxonomy))
		gt.NoError(t, err).Required()
		gt.Array(t, taxonomy.Categories).Length(2)
		gt.Array(t, taxonomy.Priorities).Length(2)
		gt.Array(t, taxonomy.Departments).Length(1)
		gt.Bool(t, taxonomy.HasCategory(types.CategoryID("broken_streetlight"))).True()
		gt.Bool(t, taxonomy.HasPriority(types.PriorityID("critical"))).False()
		gt.Value(t, taxonomy.Priorities[1].Description).Equal("Should be addressed within days")
	})

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "duplicate ID",
			content: validTaxonomy + `
[[department]]
id = "public-works"
name = "Again"
`,
			wantErr: config.ErrDuplicateID,
		},
		{
			name: "invalid ID",
			content: `
[[category]]
id = "Pot Hole"
name = "Pothole"
`,
			wantErr: config.ErrInvalidID,
		},
		{
			name: "missing name",
			content: `
[[category]]
id = "pothole"
`,
			wantErr: config.ErrMissingName,
		},
		{
			name: "empty section",
			content: `
[[category]]
id = "pothole"
name = "Pothole"
`,
			wantErr: config.ErrEmptySection,
		},
		{
			name:    "broken TOML",
			content: `[[category]`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadTaxonomy(writeTaxonomy(t, tc.content))
			gt.Error(t, err).Is(tc.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadTaxonomy(filepath.Join(t.TempDir(), "nope.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})
}

func TestTriage(t *testing.T) {
	t.Run("built-in taxonomy by default", func(t *testing.T) {
		cfg := config.NewTriageForTest(3, time.Second, time.Second, "")
		taxonomy, err := cfg.Taxonomy()
		gt.NoError(t, err).Required()
		gt.Bool(t, taxonomy.HasCategory(types.CategoryID("pothole"))).True()

		opts, err := cfg.Options()
		gt.NoError(t, err)
		gt.Array(t, opts).Length(3)
	})

	t.Run("invalid bounds", func(t *testing.T) {
		_, err := config.NewTriageForTest(-1, time.Second, time.Second, "").Options()
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, err = config.NewTriageForTest(3, 0, time.Second, "").Options()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestLogger_Configure(t *testing.T) {
	t.Run("writes to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()
		closer()

		_, err = os.Stat(path)
		gt.NoError(t, err)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "console", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
