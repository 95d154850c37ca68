package interfaces

import (
	"context"

	"github.com/secmon-lab/citypulse/pkg/domain/model"
)

// Notifier announces issues that reached the triaged stage
type Notifier interface {
	NotifyTriaged(ctx context.Context, issue *model.Issue) error
}
