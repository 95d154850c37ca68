package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/utils/keylock"
)

type issueRepository struct {
	mu     sync.RWMutex
	issues map[types.IssueID]*model.Issue
	locks  *keylock.Map[types.IssueID]
}

func newIssueRepository() *issueRepository {
	return &issueRepository{
		issues: make(map[types.IssueID]*model.Issue),
		locks:  keylock.New[types.IssueID](),
	}
}

func (r *issueRepository) Create(ctx context.Context, issue *model.Issue) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.issues[issue.ID]; exists {
		return nil, goerr.Wrap(model.ErrConflict, "issue already exists", goerr.V(model.IssueIDKey, issue.ID))
	}

	created := issue.Clone()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	created.UpdatedAt = created.CreatedAt
	created.Version = 1

	r.issues[created.ID] = created
	return created.Clone(), nil
}

func (r *issueRepository) Get(ctx context.Context, id types.IssueID) (*model.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, exists := r.issues[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
	}

	return issue.Clone(), nil
}

func (r *issueRepository) List(ctx context.Context, opts ...interfaces.ListIssueOption) ([]*model.Issue, error) {
	cfg := interfaces.BuildListIssueConfig(opts...)

	r.mu.RLock()
	defer r.mu.RUnlock()

	issues := make([]*model.Issue, 0, len(r.issues))
	for _, issue := range r.issues {
		if s := cfg.Status(); s != nil && issue.Status != *s {
			continue
		}
		if c := cfg.Category(); c != nil && issue.Classification.Category != *c {
			continue
		}
		issues = append(issues, issue.Clone())
	}

	sort.Slice(issues, func(i, j int) bool {
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.After(issues[j].CreatedAt)
		}
		return issues[i].ID < issues[j].ID
	})

	return issues, nil
}

func (r *issueRepository) Update(ctx context.Context, id types.IssueID, mutate interfaces.IssueMutator) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.issues[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
	}

	// Mutate a copy so a failing mutator leaves the stored state untouched
	working := existing.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	working.ID = existing.ID
	working.CreatedAt = existing.CreatedAt
	working.Version = existing.Version + 1
	working.UpdatedAt = time.Now().UTC()

	r.issues[id] = working
	return working.Clone(), nil
}

func (r *issueRepository) Lock(ctx context.Context, id types.IssueID) (func(), error) {
	return r.locks.Lock(ctx, id)
}
