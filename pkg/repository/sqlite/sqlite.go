package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown rows
var ErrNotFound = model.ErrNotFound

// SQLite is a single-node repository backed by a local database file
type SQLite struct {
	db    *sql.DB
	issue *issueRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (or creates) the database at path and applies the schema
func New(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	// Single connection so concurrent transactions queue instead of failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to configure sqlite", goerr.V("pragma", pragma))
		}
	}

	s := &SQLite{
		db:    db,
		issue: newIssueRepository(db),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS issues (
			id           TEXT PRIMARY KEY,
			status       TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			triage_state TEXT NOT NULL,
			version      INTEGER NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			body         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_issues_created_at ON issues(created_at DESC, id);
		CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_issues_category ON issues(category, created_at DESC);
	`)
	if err != nil {
		return goerr.Wrap(err, "failed to migrate sqlite schema")
	}
	return nil
}

func (s *SQLite) Issue() interfaces.IssueRepository {
	return s.issue
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
