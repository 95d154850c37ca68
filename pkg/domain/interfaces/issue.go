package interfaces

import (
	"context"

	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// IssueMutator mutates the latest committed state of an issue inside Update.
// Returning an error aborts the update and nothing is written.
type IssueMutator func(issue *model.Issue) error

// IssueRepository defines the interface for Issue data access
type IssueRepository interface {
	// Create stores a new issue. The ID is assigned by the caller.
	Create(ctx context.Context, issue *model.Issue) (*model.Issue, error)

	// Get retrieves an issue by ID. Unknown IDs yield model.ErrNotFound.
	Get(ctx context.Context, id types.IssueID) (*model.Issue, error)

	// List retrieves issues newest first with optional exact-match filters
	List(ctx context.Context, opts ...ListIssueOption) ([]*model.Issue, error)

	// Update performs a linearizable read-modify-write of a single issue.
	// Version and UpdatedAt are bumped on commit.
	Update(ctx context.Context, id types.IssueID, mutate IssueMutator) (*model.Issue, error)

	// Lock acquires the per-issue merge lock, waiting until ctx is done.
	// The returned function releases it.
	Lock(ctx context.Context, id types.IssueID) (func(), error)
}
