package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxImageSize is the per-photo upload limit
	MaxImageSize = 5 << 20

	maxParallelUploads = 3
)

// CreateIssueInput is a new report. Latitude and Longitude must be given together.
type CreateIssueInput struct {
	Description string
	Latitude    *float64
	Longitude   *float64
	Photos      []interfaces.ImageUpload
}

// ListIssuesInput holds optional exact-match filters. Empty means no filter.
type ListIssuesInput struct {
	Status   string
	Category string
}

// IssueUseCase is the only writer of classification, clarification
// questions and status of an issue
type IssueUseCase struct {
	uc *UseCases
}

func NewIssueUseCase(uc *UseCases) *IssueUseCase {
	return &IssueUseCase{uc: uc}
}

func (x *IssueUseCase) repo() interfaces.IssueRepository {
	return x.uc.repo.Issue()
}

func validateCreateInput(input CreateIssueInput) (*model.Location, error) {
	verr := &model.ValidationError{Message: "invalid issue"}

	if strings.TrimSpace(input.Description) == "" {
		verr.Fields = append(verr.Fields, "description")
	}

	var loc *model.Location
	switch {
	case input.Latitude == nil && input.Longitude == nil:
	case input.Latitude == nil || input.Longitude == nil:
		verr.Fields = append(verr.Fields, "lat", "lng")
	default:
		l, err := model.NewLocation(*input.Latitude, *input.Longitude)
		if err != nil {
			var fe *model.ValidationError
			if errors.As(err, &fe) {
				verr.Fields = append(verr.Fields, fe.Fields...)
			}
		} else {
			loc = l
		}
	}

	if len(input.Photos) > model.MaxImagesPerIssue {
		verr.Fields = append(verr.Fields, "photos")
	} else {
		for _, p := range input.Photos {
			if p.Size > MaxImageSize || !strings.HasPrefix(p.ContentType, "image/") || p.Body == nil {
				verr.Fields = append(verr.Fields, "photos")
				break
			}
		}
	}

	if verr.HasProblems() {
		return nil, goerr.Wrap(verr, "invalid issue input")
	}
	return loc, nil
}

// CreateIssue stores a new report and runs the first classification round.
// The returned issue is either triaged or awaiting clarification.
func (x *IssueUseCase) CreateIssue(ctx context.Context, input CreateIssueInput) (*model.Issue, error) {
	loc, err := validateCreateInput(input)
	if err != nil {
		return nil, err
	}

	issue, err := model.NewIssue(input.Description, loc, nil, x.uc.now())
	if err != nil {
		return nil, err
	}

	images, err := x.uploadImages(ctx, issue.ID, input.Photos)
	if err != nil {
		return nil, err
	}
	if err := issue.AttachImages(images); err != nil {
		return nil, err
	}

	created, err := x.repo().Create(ctx, issue)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create issue", goerr.V(model.IssueIDKey, issue.ID))
	}

	ctx = logging.With(ctx, logging.From(ctx).With(slog.String(model.IssueIDKey, created.ID.String())))
	logging.From(ctx).Info("issue created", "images", len(images))

	unlock, err := x.lock(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	classifying, err := x.repo().Update(ctx, created.ID, func(issue *model.Issue) error {
		if _, ok := issue.Triage.(model.Created); !ok {
			return goerr.Wrap(model.ErrConflict, "issue is no longer in created stage",
				goerr.V(model.IssueIDKey, issue.ID), goerr.V(model.TriageKey, issue.TriageState()))
		}
		issue.Triage = model.Classifying{Round: 0}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to start classification", goerr.V(model.IssueIDKey, created.ID))
	}

	return x.classify(ctx, classifying, 0)
}

func (x *IssueUseCase) uploadImages(ctx context.Context, issueID types.IssueID, photos []interfaces.ImageUpload) ([]model.Image, error) {
	if len(photos) == 0 {
		return nil, nil
	}
	if x.uc.imageStore == nil {
		return nil, goerr.New("image store is not configured", goerr.V(model.IssueIDKey, issueID))
	}

	images := make([]model.Image, len(photos))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelUploads)

	for i, photo := range photos {
		eg.Go(func() error {
			imageID := types.NewImageID()
			url, err := x.uc.imageStore.Put(ctx, issueID, imageID, photo)
			if err != nil {
				return goerr.Wrap(err, "failed to store image",
					goerr.V(model.IssueIDKey, issueID), goerr.V("filename", photo.Filename))
			}
			images[i] = model.Image{
				ID:          imageID,
				URL:         url,
				ContentType: photo.ContentType,
				Size:        photo.Size,
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		x.discardImages(ctx, issueID, images)
		return nil, err
	}
	return images, nil
}

// discardImages removes photos stored before a sibling upload failed. The
// issue is never persisted in that case, so nothing else references them.
func (x *IssueUseCase) discardImages(ctx context.Context, issueID types.IssueID, images []model.Image) {
	ctx = context.WithoutCancel(ctx)
	for _, img := range images {
		if img.ID == "" {
			continue
		}
		if err := x.uc.imageStore.Delete(ctx, issueID, img.ID); err != nil {
			logging.From(ctx).Warn("failed to discard uploaded image",
				model.IssueIDKey, issueID, "image_id", img.ID, "error", err.Error())
		}
	}
}

// GetIssue returns an issue by ID
func (x *IssueUseCase) GetIssue(ctx context.Context, id types.IssueID) (*model.Issue, error) {
	if err := id.Validate(); err != nil {
		// Malformed IDs can never exist
		return nil, goerr.Wrap(model.ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
	}

	issue, err := x.repo().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V(model.IssueIDKey, id))
	}
	return issue, nil
}

// ListIssues returns issues newest first
func (x *IssueUseCase) ListIssues(ctx context.Context, input ListIssuesInput) ([]*model.Issue, error) {
	var opts []interfaces.ListIssueOption

	if input.Status != "" {
		status, err := types.ParseIssueStatus(input.Status)
		if err != nil {
			return nil, goerr.Wrap(model.NewFieldError("unrecognized status filter", "status"),
				"invalid list filter", goerr.V(model.StatusKey, input.Status))
		}
		opts = append(opts, interfaces.WithStatus(status))
	}
	if input.Category != "" {
		opts = append(opts, interfaces.WithCategory(types.CategoryID(input.Category)))
	}

	issues, err := x.repo().List(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list issues")
	}
	return issues, nil
}

// SubmitFollowUp validates the answers of the pending clarification round
// and runs the next classification round. Invalid answers change nothing.
func (x *IssueUseCase) SubmitFollowUp(ctx context.Context, id types.IssueID, answers map[types.QuestionID]string) (*model.Issue, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
	}

	ctx = logging.With(ctx, logging.From(ctx).With(slog.String(model.IssueIDKey, id.String())))

	unlock, err := x.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := x.repo().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get issue", goerr.V(model.IssueIDKey, id))
	}

	awaiting, ok := current.Triage.(model.AwaitingClarification)
	if !ok {
		return nil, goerr.Wrap(model.ErrConflict, "issue is not awaiting clarification",
			goerr.V(model.IssueIDKey, id), goerr.V(model.TriageKey, current.TriageState()))
	}

	if verr := awaiting.ValidateAnswers(answers); verr != nil {
		return nil, goerr.Wrap(verr, "follow-up rejected", goerr.V(model.IssueIDKey, id))
	}

	answered := awaiting.Answered(answers)
	classifying, err := x.repo().Update(ctx, id, func(issue *model.Issue) error {
		// The pending round may have been closed by a status update since the read above
		latest, ok := issue.Triage.(model.AwaitingClarification)
		if !ok || latest.Round != awaiting.Round {
			return goerr.Wrap(model.ErrConflict, "clarification round changed concurrently",
				goerr.V(model.IssueIDKey, id), goerr.V(model.TriageKey, issue.TriageState()))
		}

		ev := issue.AppendEvent(types.EventTypeFollowUpSubmitted, "clarification answers submitted",
			map[string]string{"round": strconv.Itoa(latest.Round)}, x.uc.now())
		ev.Answers = answered
		issue.Triage = model.Classifying{Round: latest.Round}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to merge follow-up answers", goerr.V(model.IssueIDKey, id))
	}

	logging.From(ctx).Info("follow-up answers merged", "round", awaiting.Round, "answers", len(answered))

	return x.classify(ctx, classifying, awaiting.Round)
}

// UpdateStatus moves the issue status forward. Repeating the current status
// is a no-op. It does not wait for a running classification.
func (x *IssueUseCase) UpdateStatus(ctx context.Context, id types.IssueID, value string) (*model.Issue, error) {
	status, err := types.ParseIssueStatus(value)
	if err != nil {
		return nil, goerr.Wrap(model.NewFieldError("unrecognized status", "status"),
			"invalid status", goerr.V(model.StatusKey, value))
	}
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrNotFound, "issue not found", goerr.V(model.IssueIDKey, id))
	}

	var closedTriage bool
	updated, err := x.repo().Update(ctx, id, func(issue *model.Issue) error {
		closedTriage = false
		if issue.Status == status {
			return errNoChange
		}
		if !issue.Status.CanTransitionTo(status) {
			return goerr.Wrap(model.ErrConflict, "invalid status transition",
				goerr.V(model.IssueIDKey, id),
				goerr.V("from", issue.Status),
				goerr.V("to", status))
		}

		now := x.uc.now()
		issue.AppendEvent(types.EventTypeStatusChanged, "status changed", map[string]string{
			"from": issue.Status.String(),
			"to":   status.String(),
		}, now)
		issue.Status = status

		if _, ok := issue.Triage.(model.AwaitingClarification); ok && status == types.IssueStatusResolved {
			issue.Triage = model.Triaged{Outcome: types.TriageOutcomeClosed}
			issue.AppendEvent(types.EventTypeTriageClosed, "issue resolved before clarification finished", nil, now)
			closedTriage = true
		}
		return issue.Validate()
	})

	if errors.Is(err, errNoChange) {
		return x.GetIssue(ctx, id)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update status", goerr.V(model.IssueIDKey, id))
	}

	logging.From(ctx).Info("issue status changed",
		model.IssueIDKey, id, model.StatusKey, updated.Status, "triage_closed", closedTriage)

	if closedTriage {
		x.notify(ctx, updated)
	}
	return updated, nil
}

// RecoverStalled resumes classification of issues left in the Created or
// Classifying stage for longer than staleAfter, e.g. after a crash between
// commits. It returns the number of issues recovered.
func (x *IssueUseCase) RecoverStalled(ctx context.Context, staleAfter time.Duration) (int, error) {
	issues, err := x.repo().List(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list issues for recovery")
	}

	deadline := x.uc.now().Add(-staleAfter)
	recovered := 0
	for _, issue := range issues {
		if !isStalled(issue, deadline) {
			continue
		}

		if err := x.recover(ctx, issue.ID, deadline); err != nil {
			if errors.Is(err, model.ErrIssueBusy) {
				continue
			}
			return recovered, err
		}
		recovered++
	}

	return recovered, nil
}

func isStalled(issue *model.Issue, deadline time.Time) bool {
	switch issue.Triage.(type) {
	case model.Created, model.Classifying:
		return issue.UpdatedAt.Before(deadline)
	default:
		return false
	}
}

func (x *IssueUseCase) recover(ctx context.Context, id types.IssueID, deadline time.Time) error {
	ctx = logging.With(ctx, logging.From(ctx).With(slog.String(model.IssueIDKey, id.String())))

	unlock, err := x.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	round := -1
	issue, err := x.repo().Update(ctx, id, func(issue *model.Issue) error {
		if !isStalled(issue, deadline) {
			return errNoChange
		}
		switch s := issue.Triage.(type) {
		case model.Created:
			round = 0
			issue.Triage = model.Classifying{Round: 0}
		case model.Classifying:
			round = s.Round
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to resume classification", goerr.V(model.IssueIDKey, id))
	}

	logging.From(ctx).Warn("resuming stalled classification", "round", round)
	_, err = x.classify(ctx, issue, round)
	return err
}

// errNoChange aborts an update that would not change anything
var errNoChange = goerr.New("no change")

func (x *IssueUseCase) lock(ctx context.Context, id types.IssueID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, x.uc.lockWait)
	defer cancel()

	unlock, err := x.repo().Lock(lockCtx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "request cancelled while waiting for issue lock",
				goerr.V(model.IssueIDKey, id))
		}
		return nil, goerr.Wrap(model.ErrIssueBusy, "timed out waiting for issue lock",
			goerr.V(model.IssueIDKey, id), goerr.V("cause", err.Error()))
	}
	return unlock, nil
}

func (x *IssueUseCase) notify(ctx context.Context, issue *model.Issue) {
	if x.uc.notifier == nil {
		return
	}
	snapshot := issue.Clone()
	x.uc.dispatcher.Dispatch(ctx, func(ctx context.Context) error {
		return x.uc.notifier.NotifyTriaged(ctx, snapshot)
	})
}

// classify runs one bounded classifier round for an issue in the
// Classifying stage and commits the outcome. round is the number of
// clarification rounds answered so far. The merge lock must be held.
func (x *IssueUseCase) classify(ctx context.Context, issue *model.Issue, round int) (*model.Issue, error) {
	result, classifyErr := x.callClassifier(ctx, issue)
	if classifyErr != nil {
		logging.From(ctx).Warn("classifier unavailable, triage degraded",
			"round", round, "error", classifyErr.Error())
	}

	committed, err := x.repo().Update(ctx, issue.ID, func(issue *model.Issue) error {
		stage, ok := issue.Triage.(model.Classifying)
		if !ok || stage.Round != round {
			return goerr.Wrap(model.ErrConflict, "issue left the classifying stage",
				goerr.V(model.IssueIDKey, issue.ID), goerr.V(model.TriageKey, issue.TriageState()))
		}
		x.applyClassification(issue, round, result, classifyErr)
		return issue.Validate()
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to commit classification", goerr.V(model.IssueIDKey, issue.ID))
	}

	logging.From(ctx).Info("classification committed",
		"round", round,
		model.TriageKey, committed.TriageState(),
		"category", committed.Classification.Category)

	if _, ok := committed.Triage.(model.Triaged); ok {
		x.notify(ctx, committed)
	}
	return committed, nil
}

func (x *IssueUseCase) callClassifier(ctx context.Context, issue *model.Issue) (*model.ClassifyResult, error) {
	if x.uc.classifier == nil {
		return nil, goerr.Wrap(model.ErrClassifierUnavailable, "no classifier configured")
	}

	cctx, cancel := context.WithTimeout(ctx, x.uc.classifierTimeout)
	defer cancel()

	input := model.ClassifyInput{
		IssueID:      issue.ID,
		Description:  issue.Description,
		Location:     issue.Location,
		Images:       issue.Images,
		PriorAnswers: issue.PriorAnswers(),
	}

	type outcome struct {
		result *model.ClassifyResult
		err    error
	}
	// Buffered so an abandoned classifier goroutine never blocks
	done := make(chan outcome, 1)
	go func() {
		r, err := x.uc.classifier.Classify(cctx, input)
		done <- outcome{result: r, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, goerr.Wrap(model.ErrClassifierUnavailable, "classifier failed", goerr.V("cause", o.err.Error()))
		}
		if o.result == nil {
			return nil, goerr.Wrap(model.ErrClassifierUnavailable, "classifier returned no result")
		}
		return x.sanitize(o.result), nil
	case <-cctx.Done():
		return nil, goerr.Wrap(errClassifierTimeout, "classifier round cut off",
			goerr.V("timeout", x.uc.classifierTimeout.String()))
	}
}

// sanitize drops fields outside the taxonomy and repairs question shapes
func (x *IssueUseCase) sanitize(result *model.ClassifyResult) *model.ClassifyResult {
	out := &model.ClassifyResult{
		Classification: result.Classification,
		Questions:      model.NormalizeQuestions(result.Questions),
	}

	if t := x.uc.taxonomy; t != nil {
		if out.Classification.Category != "" && !t.HasCategory(out.Classification.Category) {
			out.Classification.Category = ""
		}
		if out.Classification.Priority != "" && !t.HasPriority(out.Classification.Priority) {
			out.Classification.Priority = ""
		}
		if out.Classification.Department != "" && !t.HasDepartment(out.Classification.Department) {
			out.Classification.Department = ""
		}
	}
	return out
}

// errClassifierTimeout marks a classifier round cut off by ClassifierTimeout
var errClassifierTimeout = goerr.Wrap(model.ErrClassifierUnavailable, "classifier timed out")

func degradeReason(err error) string {
	if errors.Is(err, errClassifierTimeout) {
		return "timeout"
	}
	return "unavailable"
}

// applyClassification moves an issue out of Classifying according to the
// classifier outcome
func (x *IssueUseCase) applyClassification(issue *model.Issue, round int, result *model.ClassifyResult, classifyErr error) {
	now := x.uc.now()

	if classifyErr != nil {
		issue.Triage = model.Triaged{Outcome: types.TriageOutcomeDegraded}
		issue.AppendEvent(types.EventTypeTriageDegraded, "automatic triage unavailable", map[string]string{
			"reason": degradeReason(classifyErr),
			"round":  strconv.Itoa(round),
		}, now)
		return
	}

	merged := issue.Classification.Merge(result.Classification)

	switch {
	case merged.IsComplete():
		issue.Classification = merged
		issue.Triage = model.Triaged{Outcome: types.TriageOutcomeClassified}
		issue.AppendEvent(types.EventTypeClassified, "issue classified", classificationData(merged, round), now)

	case len(result.Questions) == 0:
		// Nothing to ask and nothing usable; keep what was already known
		issue.Triage = model.Triaged{Outcome: types.TriageOutcomeDegraded}
		issue.AppendEvent(types.EventTypeTriageDegraded, "classifier returned an incomplete result without questions", map[string]string{
			"reason": "incomplete",
			"round":  strconv.Itoa(round),
		}, now)

	case round >= x.uc.maxRounds:
		issue.Classification = merged
		issue.Triage = model.Triaged{Outcome: types.TriageOutcomeForced}
		issue.AppendEvent(types.EventTypeTriageForced, "clarification round limit reached", classificationData(merged, round), now)

	case issue.Status == types.IssueStatusResolved:
		issue.Classification = merged
		issue.Triage = model.Triaged{Outcome: types.TriageOutcomeClosed}
		issue.AppendEvent(types.EventTypeTriageClosed, "issue resolved before clarification finished", nil, now)

	default:
		issue.Classification = merged
		issue.Triage = model.AwaitingClarification{Round: round + 1, Questions: result.Questions}
		issue.AppendEvent(types.EventTypeClarificationRequested, "clarification requested", map[string]string{
			"round":     strconv.Itoa(round + 1),
			"questions": strconv.Itoa(len(result.Questions)),
		}, now)
	}
}

func classificationData(c model.Classification, round int) map[string]string {
	data := map[string]string{"round": strconv.Itoa(round)}
	if c.Category != "" {
		data["category"] = c.Category.String()
	}
	if c.Priority != "" {
		data["priority"] = c.Priority.String()
	}
	if c.Department != "" {
		data["department"] = c.Department.String()
	}
	return data
}
