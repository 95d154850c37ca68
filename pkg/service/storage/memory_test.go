package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/service/storage"
)

func TestMemoryPut(t *testing.T) {
	store := storage.NewMemory()
	issueID := types.NewIssueID()
	imageID := types.NewImageID()

	url, err := store.Put(context.Background(), issueID, imageID, interfaces.ImageUpload{
		Filename:    "hole.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("jpeg"),
	})
	gt.NoError(t, err).Required()
	gt.String(t, url).Equal("memory://issues/" + issueID.String() + "/images/" + imageID.String())

	obj, ok := store.Get(url)
	gt.Bool(t, ok).True()
	gt.Value(t, obj.ContentType).Equal("image/jpeg")
	gt.Value(t, string(obj.Data)).Equal("jpeg")

	_, ok = store.Get("memory://missing")
	gt.Bool(t, ok).False()
}

func TestMemoryDelete(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	issueID := types.NewIssueID()
	imageID := types.NewImageID()

	url, err := store.Put(ctx, issueID, imageID, interfaces.ImageUpload{
		Filename:    "graffiti.png",
		ContentType: "image/png",
		Body:        strings.NewReader("png"),
	})
	gt.NoError(t, err).Required()
	gt.Value(t, store.Len()).Equal(1)

	gt.NoError(t, store.Delete(ctx, issueID, imageID))
	_, ok := store.Get(url)
	gt.Bool(t, ok).False()
	gt.Value(t, store.Len()).Equal(0)

	// already gone
	gt.NoError(t, store.Delete(ctx, issueID, imageID))
}
