package safe_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/utils/safe"
)

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	ok := &closer{}
	safe.Close(ctx, ok, "photo")
	gt.Bool(t, ok.closed).True()

	failing := &closer{err: errors.New("disk gone")}
	safe.Close(ctx, failing, "photo")
	gt.Bool(t, failing.closed).True()

	safe.Close(ctx, nil, "photo")
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	safe.Write(ctx, &buf, []byte(`{"status":"healthy"}`))
	gt.Value(t, buf.String()).Equal(`{"status":"healthy"}`)

	safe.Write(ctx, brokenWriter{}, []byte("lost"))
	safe.Write(ctx, nil, []byte("ignored"))
}
