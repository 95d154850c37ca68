package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// GCS stores issue photos in a Cloud Storage bucket
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.ImageStore = &GCS{}

// GCSOption is a functional option for GCS configuration
type GCSOption func(*GCS)

// WithPrefix sets the object name prefix inside the bucket
func WithPrefix(prefix string) GCSOption {
	return func(g *GCS) {
		g.prefix = prefix
	}
}

// NewGCS creates a Cloud Storage backed image store using default credentials
func NewGCS(ctx context.Context, bucket string, opts ...GCSOption) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("GCS bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	g := &GCS{
		client: client,
		bucket: bucket,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func objectName(prefix string, issueID types.IssueID, imageID types.ImageID) string {
	return path.Join(prefix, "issues", issueID.String(), "images", imageID.String())
}

// Put uploads one photo and returns its gs:// URL. A failed copy aborts the
// upload so no partial object is committed.
func (g *GCS) Put(ctx context.Context, issueID types.IssueID, imageID types.ImageID, upload interfaces.ImageUpload) (string, error) {
	name := objectName(g.prefix, issueID, imageID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = upload.ContentType
	w.Metadata = map[string]string{
		"issue_id": issueID.String(),
		"filename": upload.Filename,
	}

	if _, err := io.Copy(w, upload.Body); err != nil {
		cancel()
		_ = w.Close()
		return "", goerr.Wrap(model.ErrStore, "failed to upload image",
			goerr.V("cause", err.Error()), goerr.V(model.IssueIDKey, issueID), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(model.ErrStore, "failed to finalize image upload",
			goerr.V("cause", err.Error()), goerr.V(model.IssueIDKey, issueID), goerr.V("object", name))
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, name), nil
}

// Delete removes an uploaded photo
func (g *GCS) Delete(ctx context.Context, issueID types.IssueID, imageID types.ImageID) error {
	name := objectName(g.prefix, issueID, imageID)
	if err := g.client.Bucket(g.bucket).Object(name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return goerr.Wrap(model.ErrStore, "failed to delete image",
			goerr.V("cause", err.Error()), goerr.V(model.IssueIDKey, issueID), goerr.V("object", name))
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
