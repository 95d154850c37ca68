package interfaces

import (
	"context"
	"io"

	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// ImageUpload is a photo received at issue creation
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageStore persists issue photos and returns a reference URL
type ImageStore interface {
	Put(ctx context.Context, issueID types.IssueID, imageID types.ImageID, upload ImageUpload) (string, error)
	// Delete removes a stored photo. Deleting a missing photo is not an error.
	Delete(ctx context.Context, issueID types.IssueID, imageID types.ImageID) error
}
