package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/repository/document"
	"github.com/secmon-lab/citypulse/pkg/utils/keylock"
)

// timeLayout sorts lexically in the same order as the instants it encodes
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type issueRepository struct {
	db    *sql.DB
	locks *keylock.Map[types.IssueID]
}

func newIssueRepository(db *sql.DB) *issueRepository {
	return &issueRepository{
		db:    db,
		locks: keylock.New[types.IssueID](),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeIssue(issue *model.Issue) (string, error) {
	raw, err := json.Marshal(document.FromModel(issue))
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode issue", goerr.V(model.IssueIDKey, issue.ID))
	}
	return string(raw), nil
}

func decodeIssue(body string) (*model.Issue, error) {
	var doc document.Issue
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode issue")
	}
	return doc.ToModel()
}

func (r *issueRepository) Create(ctx context.Context, issue *model.Issue) (*model.Issue, error) {
	created := issue.Clone()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	created.UpdatedAt = created.CreatedAt
	created.Version = 1

	body, err := encodeIssue(created)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO issues (id, status, category, triage_state, version, created_at, updated_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, created.ID.String(), created.Status.String(), string(created.Classification.Category),
		created.TriageState().String(), created.Version,
		formatTime(created.CreatedAt), formatTime(created.UpdatedAt), body)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, goerr.Wrap(model.ErrConflict, "issue already exists", goerr.V(model.IssueIDKey, created.ID))
		}
		return nil, goerr.Wrap(err, "failed to insert issue", goerr.V(model.IssueIDKey, created.ID))
	}

	return created, nil
}

func (r *issueRepository) Get(ctx context.Context, id types.IssueID) (*model.Issue, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM issues WHERE id = ?`, id.String()).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V(model.IssueIDKey, id))
	}

	return decodeIssue(body)
}

func (r *issueRepository) List(ctx context.Context, opts ...interfaces.ListIssueOption) ([]*model.Issue, error) {
	cfg := interfaces.BuildListIssueConfig(opts...)

	query := "SELECT body FROM issues WHERE 1=1"
	var args []any
	if s := cfg.Status(); s != nil {
		query += " AND status = ?"
		args = append(args, s.String())
	}
	if c := cfg.Category(); c != nil {
		query += " AND category = ?"
		args = append(args, string(*c))
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list issues")
	}
	defer rows.Close()

	issues := make([]*model.Issue, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, goerr.Wrap(err, "failed to scan issue")
		}
		issue, err := decodeIssue(body)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate issues")
	}

	return issues, nil
}

func (r *issueRepository) Update(ctx context.Context, id types.IssueID, mutate interfaces.IssueMutator) (*model.Issue, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin transaction", goerr.V(model.IssueIDKey, id))
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	if err := tx.QueryRowContext(ctx, `SELECT body FROM issues WHERE id = ?`, id.String()).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V(model.IssueIDKey, id))
	}

	existing, err := decodeIssue(body)
	if err != nil {
		return nil, err
	}

	working := existing.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	working.ID = existing.ID
	working.CreatedAt = existing.CreatedAt
	working.Version = existing.Version + 1
	working.UpdatedAt = time.Now().UTC()

	newBody, err := encodeIssue(working)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE issues
		SET status = ?, category = ?, triage_state = ?, version = ?, updated_at = ?, body = ?
		WHERE id = ? AND version = ?
	`, working.Status.String(), string(working.Classification.Category), working.TriageState().String(),
		working.Version, formatTime(working.UpdatedAt), newBody, id.String(), existing.Version)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update issue", goerr.V(model.IssueIDKey, id))
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, goerr.Wrap(model.ErrConflict, "issue changed during update",
			goerr.V(model.IssueIDKey, id), goerr.V("version", existing.Version))
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit issue update", goerr.V(model.IssueIDKey, id))
	}

	return working, nil
}

// Lock is process-local; the SQLite backend serves a single node
func (r *issueRepository) Lock(ctx context.Context, id types.IssueID) (func(), error) {
	return r.locks.Lock(ctx, id)
}
