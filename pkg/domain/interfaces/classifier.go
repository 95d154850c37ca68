package interfaces

import (
	"context"

	"github.com/secmon-lab/citypulse/pkg/domain/model"
)

// Classifier produces triage for an issue. Implementations are treated as
// remote calls: they may block and may fail; callers bound them with ctx.
type Classifier interface {
	Classify(ctx context.Context, input model.ClassifyInput) (*model.ClassifyResult, error)
}
