package classifier

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
)

// Disabled is used when no LLM is configured. Every issue ends up triaged
// as degraded and waits for manual classification.
type Disabled struct{}

var _ interfaces.Classifier = Disabled{}

func (Disabled) Classify(ctx context.Context, input model.ClassifyInput) (*model.ClassifyResult, error) {
	return nil, goerr.Wrap(model.ErrClassifierUnavailable, "classifier is not configured",
		goerr.V(model.IssueIDKey, input.IssueID))
}
