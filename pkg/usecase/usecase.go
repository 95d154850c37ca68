package usecase

import (
	"time"

	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model/config"
	"github.com/secmon-lab/citypulse/pkg/utils/async"
)

const (
	// DefaultMaxClarificationRounds bounds how many answered clarification
	// rounds an issue may go through before triage is forced
	DefaultMaxClarificationRounds = 3
	// DefaultClassifierTimeout bounds a single classifier call
	DefaultClassifierTimeout = 20 * time.Second
	// DefaultLockWait bounds the wait for the per-issue merge lock
	DefaultLockWait = 3 * time.Second
)

type UseCases struct {
	repo       interfaces.Repository
	classifier interfaces.Classifier
	imageStore interfaces.ImageStore
	notifier   interfaces.Notifier
	taxonomy   *config.Taxonomy
	dispatcher *async.Dispatcher
	now        func() time.Time

	maxRounds         int
	classifierTimeout time.Duration
	lockWait          time.Duration

	Issue *IssueUseCase
}

type Option func(*UseCases)

// WithClassifier injects the triage classifier. Without one every issue is
// triaged as degraded.
func WithClassifier(c interfaces.Classifier) Option {
	return func(uc *UseCases) {
		uc.classifier = c
	}
}

func WithImageStore(s interfaces.ImageStore) Option {
	return func(uc *UseCases) {
		uc.imageStore = s
	}
}

func WithNotifier(n interfaces.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

// WithTaxonomy drops classifier output that is not part of the taxonomy
func WithTaxonomy(t *config.Taxonomy) Option {
	return func(uc *UseCases) {
		uc.taxonomy = t
	}
}

func WithMaxClarificationRounds(n int) Option {
	return func(uc *UseCases) {
		uc.maxRounds = n
	}
}

func WithClassifierTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.classifierTimeout = d
	}
}

func WithLockWait(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.lockWait = d
	}
}

// WithClock replaces time.Now for event timestamps
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

// WithDispatcher sets the dispatcher used for notifications so the caller
// can wait for them on shutdown
func WithDispatcher(d *async.Dispatcher) Option {
	return func(uc *UseCases) {
		uc.dispatcher = d
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:              repo,
		now:               func() time.Time { return time.Now().UTC() },
		maxRounds:         DefaultMaxClarificationRounds,
		classifierTimeout: DefaultClassifierTimeout,
		lockWait:          DefaultLockWait,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.dispatcher == nil {
		uc.dispatcher = async.NewDispatcher()
	}
	if uc.maxRounds < 0 {
		uc.maxRounds = 0
	}

	uc.Issue = NewIssueUseCase(uc)

	return uc
}

// Wait blocks until background notifications finished
func (uc *UseCases) Wait() {
	uc.dispatcher.Wait()
}
