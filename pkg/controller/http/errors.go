package http

import (
	"errors"
	"net/http"

	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/utils/errutil"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
)

type errorResponse struct {
	Error       string   `json:"error"`
	Fields      []string `json:"fields,omitempty"`
	QuestionIDs []string `json:"question_ids,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
}

// handleError maps domain error kinds to HTTP responses. Anything that is
// not a known kind is logged, reported and answered with 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var resp errorResponse
	var status int

	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
		resp.Error = "validation failed"
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			resp.Error = verr.Message
			resp.Fields = verr.Fields
			for _, id := range verr.QuestionIDs() {
				resp.QuestionIDs = append(resp.QuestionIDs, id.String())
			}
		}

	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "issue not found"

	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
		resp.Error = "conflicting state transition"

	case errors.Is(err, model.ErrIssueBusy):
		status = http.StatusServiceUnavailable
		resp.Error = "issue is busy, retry later"
		resp.Retryable = true
		w.Header().Set("Retry-After", "1")

	default:
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	logging.From(ctx).Info("request rejected", "status", status, "error", err.Error())
	writeJSON(w, r, status, resp)
}
