// Package safe wraps cleanup and response writes whose failures can only be
// logged.
package safe

import (
	"context"
	"io"

	"github.com/secmon-lab/citypulse/pkg/utils/logging"
)

// Close closes c, logging a failure together with the resource name. A nil
// closer is ignored.
func Close(ctx context.Context, c io.Closer, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.From(ctx).Warn("failed to close resource", "resource", resource, "error", err.Error())
	}
}

// Write sends a response body. A failed write means the client has gone away,
// so the error is logged and otherwise dropped.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if n, err := w.Write(data); err != nil {
		logging.From(ctx).Warn("failed to write response",
			"written", n, "size", len(data), "error", err.Error())
	}
}
