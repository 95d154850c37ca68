package storage_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/service/storage"
)

func TestGCSPut(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set")
	}

	ctx := context.Background()
	store, err := storage.NewGCS(ctx, bucket, storage.WithPrefix("citypulse-test"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = store.Close() })

	issueID := types.NewIssueID()
	url, err := store.Put(ctx, issueID, types.NewImageID(), interfaces.ImageUpload{
		Filename:    "sign.png",
		ContentType: "image/png",
		Size:        3,
		Body:        strings.NewReader("png"),
	})
	gt.NoError(t, err).Required()
	gt.String(t, url).Contains("gs://" + bucket + "/citypulse-test/issues/" + issueID.String())
}
