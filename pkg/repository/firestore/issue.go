package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/repository/document"
	"github.com/secmon-lab/citypulse/pkg/utils/keylock"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultLockLease = 30 * time.Second
	lockPollInterval = 100 * time.Millisecond
)

type issueRepository struct {
	client           *firestore.Client
	collectionPrefix string
	lockLease        time.Duration
	// local serializes holders in this process before the shared lease is tried
	local *keylock.Map[types.IssueID]
}

func newIssueRepository(client *firestore.Client) *issueRepository {
	return &issueRepository{
		client:    client,
		lockLease: defaultLockLease,
		local:     keylock.New[types.IssueID](),
	}
}

func (r *issueRepository) issuesCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_issues"
	}
	return "issues"
}

func (r *issueRepository) locksCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_issue_locks"
	}
	return "issue_locks"
}

func decodeIssue(snap *firestore.DocumentSnapshot) (*model.Issue, error) {
	var doc document.Issue
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode issue", goerr.V("doc_id", snap.Ref.ID))
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

	docRef := r.client.Collection(r.issuesCollection()).Doc(created.ID.String())
	if _, err := docRef.Create(ctx, document.FromModel(created)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(model.ErrConflict, "issue already exists", goerr.V(model.IssueIDKey, created.ID))
		}
		return nil, goerr.Wrap(err, "failed to create issue", goerr.V(model.IssueIDKey, created.ID))
	}

	return created, nil
}

func (r *issueRepository) Get(ctx context.Context, id types.IssueID) (*model.Issue, error) {
	snap, err := r.client.Collection(r.issuesCollection()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V(model.IssueIDKey, id))
	}

	return decodeIssue(snap)
}

func (r *issueRepository) List(ctx context.Context, opts ...interfaces.ListIssueOption) ([]*model.Issue, error) {
	cfg := interfaces.BuildListIssueConfig(opts...)

	query := r.client.Collection(r.issuesCollection()).Query
	if s := cfg.Status(); s != nil {
		query = query.Where("status", "==", s.String())
	}
	if c := cfg.Category(); c != nil {
		query = query.Where("category", "==", string(*c))
	}
	query = query.OrderBy("created_at", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	issues := make([]*model.Issue, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate issues")
		}

		issue, err := decodeIssue(snap)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}

	// Firestore orders by created_at only; ties are broken by ID here
	sort.SliceStable(issues, func(i, j int) bool {
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.After(issues[j].CreatedAt)
		}
		return issues[i].ID < issues[j].ID
	})

	return issues, nil
}

func (r *issueRepository) Update(ctx context.Context, id types.IssueID, mutate interfaces.IssueMutator) (*model.Issue, error) {
	docRef := r.client.Collection(r.issuesCollection()).Doc(id.String())

	var updated *model.Issue
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
			}
			return goerr.Wrap(err, "failed to get issue", goerr.V(model.IssueIDKey, id))
		}

		existing, err := decodeIssue(snap)
		if err != nil {
			return err
		}

		working := existing.Clone()
		if err := mutate(working); err != nil {
			return err
		}

		working.ID = existing.ID
		working.CreatedAt = existing.CreatedAt
		working.Version = existing.Version + 1
		working.UpdatedAt = time.Now().UTC()

		if err := tx.Set(docRef, document.FromModel(working)); err != nil {
			return goerr.Wrap(err, "failed to write issue", goerr.V(model.IssueIDKey, id))
		}
		updated = working
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

type lockDocument struct {
	Owner     string    `firestore:"owner"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// Lock acquires a lease document for the issue so that replicas sharing
// the database serialize classifier merges. An expired lease is taken over.
func (r *issueRepository) Lock(ctx context.Context, id types.IssueID) (func(), error) {
	releaseLocal, err := r.local.Lock(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := uuid.NewString()
	lockRef := r.client.Collection(r.locksCollection()).Doc(id.String())

	for {
		acquired, err := r.tryLease(ctx, lockRef, owner)
		if err != nil {
			releaseLocal()
			return nil, err
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, goerr.Wrap(ctx.Err(), "failed to acquire issue lock", goerr.V(model.IssueIDKey, id))
		case <-time.After(lockPollInterval):
		}
	}

	return func() {
		defer releaseLocal()
		// Release must outlive a cancelled request context
		_ = r.client.RunTransaction(context.WithoutCancel(ctx), func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(lockRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			}
			var doc lockDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Owner != owner {
				return nil
			}
			return tx.Delete(lockRef)
		})
	}, nil
}

func (r *issueRepository) tryLease(ctx context.Context, lockRef *firestore.DocumentRef, owner string) (bool, error) {
	acquired := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		now := time.Now().UTC()

		snap, err := tx.Get(lockRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read issue lock")
		}
		if err == nil {
			var doc lockDocument
			if err := snap.DataTo(&doc); err != nil {
				return goerr.Wrap(err, "failed to decode issue lock")
			}
			if doc.ExpiresAt.After(now) {
				return nil
			}
		}

		acquired = true
		return tx.Set(lockRef, lockDocument{
			Owner:     owner,
			ExpiresAt: now.Add(r.lockLease),
		})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to acquire issue lock lease")
	}
	return acquired, nil
}
