package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/cli"
)

func writeTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestRun_ValidateCommand_ValidTaxonomy(t *testing.T) {
	path := writeTaxonomy(t, `
[[category]]
id = "pothole"
name = "Pothole"
description = "Damaged road surface"

[[category]]
id = "illegal_graffiti"
name = "Illegal graffiti"

[[priority]]
id = "high"
name = "High"

[[department]]
id = "public-works"
name = "Public Works"
`)

	err := cli.Run(context.Background(), []string{"citypulse", "validate", "--taxonomy", path}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_InvalidTaxonomy(t *testing.T) {
	testCases := map[string]string{
		"bad id": `
[[category]]
id = "Pot Hole"
name = "Pothole"

[[priority]]
id = "high"
name = "High"

[[department]]
id = "public-works"
name = "Public Works"
`,
		"empty section": `
[[category]]
id = "pothole"
name = "Pothole"

[[department]]
id = "public-works"
name = "Public Works"
`,
		"duplicate id": `
[[category]]
id = "pothole"
name = "Pothole"

[[category]]
id = "pothole"
name = "Road hole"

[[priority]]
id = "high"
name = "High"

[[department]]
id = "public-works"
name = "Public Works"
`,
		"broken toml": `[[category]
id = `,
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			path := writeTaxonomy(t, content)
			err := cli.Run(context.Background(), []string{"citypulse", "validate", "--taxonomy", path}, "test")
			gt.Value(t, err).NotNil()
		})
	}
}

func TestRun_ValidateCommand_MissingTaxonomy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.toml")

	err := cli.Run(context.Background(), []string{"citypulse", "validate", "--taxonomy", path}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_RecoverCommand_MemoryBackend(t *testing.T) {
	err := cli.Run(context.Background(), []string{"citypulse", "recover"}, "test")
	gt.NoError(t, err)
}
