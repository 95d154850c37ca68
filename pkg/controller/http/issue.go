package http

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/usecase"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/secmon-lab/citypulse/pkg/utils/safe"
)

const (
	// maxCreateBodySize leaves room for form fields and multipart framing
	maxCreateBodySize = model.MaxImagesPerIssue*usecase.MaxImageSize + 1<<20
	maxJSONBodySize   = 1 << 20
	multipartMemory   = 8 << 20
	sniffLength       = 512
)

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBodySize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleError(w, r, goerr.Wrap(model.NewFieldError("request body too large", "photos"), "invalid issue form"))
			return
		}
		handleError(w, r, goerr.Wrap(model.NewFieldError("malformed multipart form"),
			"invalid issue form", goerr.V("cause", err.Error())))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.From(r.Context()).Warn("failed to remove multipart temp files", "error", err.Error())
		}
	}()

	input, files, err := parseCreateForm(r.MultipartForm)
	defer func() {
		for _, f := range files {
			safe.Close(r.Context(), f, "photo")
		}
	}()
	if err != nil {
		handleError(w, r, err)
		return
	}

	issue, err := s.issueUC.CreateIssue(r.Context(), *input)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toCreateIssueResponse(issue))
}

// parseCreateForm checks the shape of the creation form. Opened photo files
// are returned so the caller can close them after the engine consumed them.
func parseCreateForm(form *multipart.Form) (*usecase.CreateIssueInput, []multipart.File, error) {
	verr := &model.ValidationError{Message: "invalid issue"}
	input := &usecase.CreateIssueInput{
		Description: formValue(form, "description"),
	}

	if strings.TrimSpace(input.Description) == "" {
		verr.Fields = append(verr.Fields, "description")
	}

	lat, latOK, latErr := parseCoordinate(formValue(form, "lat"))
	lng, lngOK, lngErr := parseCoordinate(formValue(form, "lng"))
	switch {
	case latErr != nil || lngErr != nil:
		if latErr != nil {
			verr.Fields = append(verr.Fields, "lat")
		}
		if lngErr != nil {
			verr.Fields = append(verr.Fields, "lng")
		}
	case latOK != lngOK:
		verr.Fields = append(verr.Fields, "lat", "lng")
	case latOK:
		input.Latitude = &lat
		input.Longitude = &lng
	}

	headers := form.File["photos"]
	if len(headers) > model.MaxImagesPerIssue {
		verr.Fields = append(verr.Fields, "photos")
		return nil, nil, goerr.Wrap(verr, "invalid issue form", goerr.V("photos", len(headers)))
	}

	var files []multipart.File
	for _, fh := range headers {
		if fh.Size > usecase.MaxImageSize {
			verr.Fields = append(verr.Fields, "photos")
			return nil, files, goerr.Wrap(verr, "photo too large",
				goerr.V("filename", fh.Filename), goerr.V("size", fh.Size))
		}

		f, err := fh.Open()
		if err != nil {
			return nil, files, goerr.Wrap(err, "failed to open uploaded photo", goerr.V("filename", fh.Filename))
		}
		files = append(files, f)

		contentType, err := detectContentType(f, fh.Header.Get("Content-Type"))
		if err != nil {
			return nil, files, goerr.Wrap(err, "failed to read uploaded photo", goerr.V("filename", fh.Filename))
		}
		if !strings.HasPrefix(contentType, "image/") {
			verr.Fields = append(verr.Fields, "photos")
			return nil, files, goerr.Wrap(verr, "photo is not an image",
				goerr.V("filename", fh.Filename), goerr.V("content_type", contentType))
		}

		input.Photos = append(input.Photos, interfaces.ImageUpload{
			Filename:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        f,
		})
	}

	if verr.HasProblems() {
		return nil, files, goerr.Wrap(verr, "invalid issue form")
	}
	return input, files, nil
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseCoordinate parses an optional numeric form value. ok is false when
// the value is blank. NaN and infinities are rejected.
func parseCoordinate(v string) (value float64, ok bool, err error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, goerr.New("coordinate must be a finite number", goerr.V("value", v))
	}
	return f, true, nil
}

// detectContentType trusts the declared type unless it is missing or
// generic, in which case the leading bytes are sniffed
func detectContentType(f multipart.File, declared string) (string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	buf := make([]byte, sniffLength)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.issueUC.GetIssue(r.Context(), types.IssueID(chi.URLParam(r, "id")))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toIssueResponse(issue))
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	issues, err := s.issueUC.ListIssues(r.Context(), usecase.ListIssuesInput{
		Status:   query.Get("status"),
		Category: query.Get("category"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := make([]issueResponse, len(issues))
	for i, issue := range issues {
		resp[i] = toIssueResponse(issue)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type followUpRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) submitFollowUp(w http.ResponseWriter, r *http.Request) {
	var req followUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, goerr.Wrap(model.NewFieldError("malformed follow-up body", "answers"),
			"invalid follow-up request", goerr.V("cause", err.Error())))
		return
	}

	answers := make(map[types.QuestionID]string, len(req.Answers))
	for id, answer := range req.Answers {
		answers[types.QuestionID(id)] = answer
	}

	issue, err := s.issueUC.SubmitFollowUp(r.Context(), types.IssueID(chi.URLParam(r, "id")), answers)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toIssueResponse(issue))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, goerr.Wrap(model.NewFieldError("malformed status body", "status"),
			"invalid status request", goerr.V("cause", err.Error())))
		return
	}

	if _, err := s.issueUC.UpdateStatus(r.Context(), types.IssueID(chi.URLParam(r, "id")), req.Status); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return goerr.Wrap(err, "failed to decode JSON body")
	}
	return nil
}
