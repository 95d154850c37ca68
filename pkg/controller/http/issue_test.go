package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/citypulse/pkg/controller/http"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/repository/memory"
	"github.com/secmon-lab/citypulse/pkg/service/storage"
	"github.com/secmon-lab/citypulse/pkg/usecase"
)

// fakeClassifier returns scripted results in order; the last one repeats
type fakeClassifier struct {
	mu      sync.Mutex
	calls   int
	results []*model.ClassifyResult
}

func (f *fakeClassifier) Classify(ctx context.Context, input model.ClassifyInput) (*model.ClassifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx], nil
}

var severityQuestion = model.ClarificationQuestion{
	ID:       "q1",
	Question: "How severe?",
	Type:     types.QuestionTypeChoice,
	Choices:  []string{"minor", "moderate", "severe"},
}

func potholeClassifier() *fakeClassifier {
	return &fakeClassifier{results: []*model.ClassifyResult{
		{Questions: []model.ClarificationQuestion{severityQuestion}},
		{Classification: model.Classification{Category: "pothole", Priority: "high", Department: "public-works"}},
	}}
}

func completeClassifier() *fakeClassifier {
	return &fakeClassifier{results: []*model.ClassifyResult{
		{Classification: model.Classification{Category: "pothole", Priority: "medium", Department: "public-works"}},
	}}
}

type testServer struct {
	handler http.Handler
	repo    *memory.Memory
}

func newTestServer(t *testing.T, classifier *fakeClassifier, opts ...usecase.Option) *testServer {
	t.Helper()
	repo := memory.New()
	opts = append([]usecase.Option{
		usecase.WithClassifier(classifier),
		usecase.WithImageStore(storage.NewMemory()),
	}, opts...)
	uc := usecase.New(repo, opts...)
	return &testServer{handler: httpctrl.New(uc.Issue), repo: repo}
}

type photo struct {
	filename    string
	contentType string
	data        []byte
}

func (s *testServer) create(t *testing.T, fields map[string]string, photos ...photo) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		gt.NoError(t, mw.WriteField(k, v)).Required()
	}
	for _, p := range photos {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="photos"; filename="`+p.filename+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		part, err := mw.CreatePart(h)
		gt.NoError(t, err).Required()
		_, err = part.Write(p.data)
		gt.NoError(t, err).Required()
	}
	gt.NoError(t, mw.Close()).Required()

	req := httptest.NewRequest(http.MethodPost, "/v1/issues", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		gt.NoError(t, err).Required()
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type questionJSON struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Choices  []string `json:"choices"`
}

type issueJSON struct {
	ID                     string         `json:"id"`
	Description            string         `json:"description"`
	Status                 string         `json:"status"`
	TriageState            string         `json:"triage_state"`
	TriageOutcome          string         `json:"triage_outcome"`
	Latitude               *float64       `json:"latitude"`
	Longitude              *float64       `json:"longitude"`
	Category               *string        `json:"category"`
	Priority               *string        `json:"priority"`
	Department             *string        `json:"department"`
	Images                 []any          `json:"images"`
	ClarificationQuestions []questionJSON `json:"clarification_questions"`
	Events                 []struct {
		Type string `json:"type"`
	} `json:"events"`
}

type errorJSON struct {
	Error       string   `json:"error"`
	Fields      []string `json:"fields"`
	QuestionIDs []string `json:"question_ids"`
	Retryable   bool     `json:"retryable"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v)).Required()
	return v
}

func TestPotholeScenario(t *testing.T) {
	s := newTestServer(t, potholeClassifier())

	rec := s.create(t, map[string]string{"description": "Large pothole on Main St"})
	gt.Value(t, rec.Code).Equal(http.StatusCreated)
	created := decode[issueJSON](t, rec)
	gt.Value(t, created.Status).Equal("open")
	gt.Value(t, created.TriageState).Equal("awaiting_clarification")
	gt.Value(t, created.ClarificationQuestions).Equal([]questionJSON{{
		ID:       "q1",
		Question: "How severe?",
		Type:     "choice",
		Choices:  []string{"minor", "moderate", "severe"},
	}})

	rec = s.do(t, http.MethodPost, "/v1/issues/"+created.ID+"/followup", map[string]any{
		"answers": map[string]string{"q1": "severe"},
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	updated := decode[issueJSON](t, rec)
	gt.Value(t, updated.TriageState).Equal("triaged")
	gt.Value(t, updated.TriageOutcome).Equal("classified")
	gt.Value(t, *updated.Category).Equal("pothole")
	gt.Value(t, *updated.Priority).Equal("high")
	gt.Value(t, *updated.Department).Equal("public-works")
	gt.Array(t, updated.ClarificationQuestions).Length(0)

	rec = s.do(t, http.MethodGet, "/v1/issues/"+created.ID, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	fetched := decode[issueJSON](t, rec)
	gt.Value(t, fetched.Description).Equal("Large pothole on Main St")
	gt.Array(t, fetched.Events).Length(4)
}

func TestFollowUpRejections(t *testing.T) {
	t.Run("answer outside choices leaves issue unchanged", func(t *testing.T) {
		s := newTestServer(t, potholeClassifier())
		created := decode[issueJSON](t, s.create(t, map[string]string{"description": "Large pothole on Main St"}))
		before := s.do(t, http.MethodGet, "/v1/issues/"+created.ID, nil).Body.String()

		rec := s.do(t, http.MethodPost, "/v1/issues/"+created.ID+"/followup", map[string]any{
			"answers": map[string]string{"q1": "catastrophic"},
		})
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode[errorJSON](t, rec).QuestionIDs).Equal([]string{"q1"})

		after := s.do(t, http.MethodGet, "/v1/issues/"+created.ID, nil).Body.String()
		gt.Value(t, after).Equal(before)
	})

	t.Run("missing answer lists question id", func(t *testing.T) {
		s := newTestServer(t, potholeClassifier())
		created := decode[issueJSON](t, s.create(t, map[string]string{"description": "Pothole"}))

		rec := s.do(t, http.MethodPost, "/v1/issues/"+created.ID+"/followup", map[string]any{
			"answers": map[string]string{},
		})
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode[errorJSON](t, rec).QuestionIDs).Equal([]string{"q1"})
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t, potholeClassifier())
		created := decode[issueJSON](t, s.create(t, map[string]string{"description": "Pothole"}))

		req := httptest.NewRequest(http.MethodPost, "/v1/issues/"+created.ID+"/followup", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("triaged issue is a conflict", func(t *testing.T) {
		s := newTestServer(t, completeClassifier())
		created := decode[issueJSON](t, s.create(t, map[string]string{"description": "Pothole"}))
		gt.Value(t, created.TriageState).Equal("triaged")

		rec := s.do(t, http.MethodPost, "/v1/issues/"+created.ID+"/followup", map[string]any{
			"answers": map[string]string{"q1": "severe"},
		})
		gt.Value(t, rec.Code).Equal(http.StatusConflict)
	})

	t.Run("unknown issue", func(t *testing.T) {
		s := newTestServer(t, completeClassifier())
		rec := s.do(t, http.MethodPost, "/v1/issues/"+types.NewIssueID().String()+"/followup", map[string]any{
			"answers": map[string]string{"q1": "severe"},
		})
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("busy issue is retryable", func(t *testing.T) {
		s := newTestServer(t, potholeClassifier(), usecase.WithLockWait(20*time.Millisecond))
		created := decode[issueJSON](t, s.create(t, map[string]string{"description": "Pothole"}))

		release, err := s.repo.Issue().Lock(context.Background(), types.IssueID(created.ID))
		gt.NoError(t, err).Required()
		defer release()

		rec := s.do(t, http.MethodPost, "/v1/issues/"+created.ID+"/followup", map[string]any{
			"answers": map[string]string{"q1": "severe"},
		})
		gt.Value(t, rec.Code).Equal(http.StatusServiceUnavailable)
		gt.Value(t, rec.Header().Get("Retry-After")).Equal("1")
		gt.Bool(t, decode[errorJSON](t, rec).Retryable).True()
	})
}

func TestCreateIssue(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("location and photos", func(t *testing.T) {
		s := newTestServer(t, completeClassifier())
		rec := s.create(t, map[string]string{
			"description": "Broken streetlight",
			"lat":         "40.7128",
			"lng":         "-74.0060",
		},
			photo{filename: "a.png", contentType: "image/png", data: png},
			photo{filename: "b.png", data: png},
		)
		gt.Value(t, rec.Code).Equal(http.StatusCreated)
		created := decode[issueJSON](t, rec)
		gt.Array(t, created.Images).Length(2)

		fetched := decode[issueJSON](t, s.do(t, http.MethodGet, "/v1/issues/"+created.ID, nil))
		gt.Value(t, *fetched.Latitude).Equal(40.7128)
		gt.Value(t, *fetched.Longitude).Equal(-74.0060)
	})

	t.Run("non finite coordinates do not break listing", func(t *testing.T) {
		s := newTestServer(t, completeClassifier())
		gt.Value(t, s.create(t, map[string]string{"description": "Pothole"}).Code).Equal(http.StatusCreated)

		rec := s.create(t, map[string]string{"description": "Graffiti", "lat": "NaN", "lng": "0"})
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

		list := s.do(t, http.MethodGet, "/v1/issues", nil)
		gt.Value(t, list.Code).Equal(http.StatusOK)
		gt.Array(t, decode[[]issueJSON](t, list)).Length(1)
	})

	cases := []struct {
		name   string
		fields map[string]string
		photos []photo
		want   []string
	}{
		{
			name:   "missing description",
			fields: map[string]string{"description": "  "},
			want:   []string{"description"},
		},
		{
			name:   "latitude without longitude",
			fields: map[string]string{"description": "x", "lat": "40.0"},
			want:   []string{"lat", "lng"},
		},
		{
			name:   "non numeric longitude",
			fields: map[string]string{"description": "x", "lat": "40.0", "lng": "east"},
			want:   []string{"lng"},
		},
		{
			name:   "latitude out of range",
			fields: map[string]string{"description": "x", "lat": "91", "lng": "0"},
			want:   []string{"lat"},
		},
		{
			name:   "NaN latitude",
			fields: map[string]string{"description": "x", "lat": "NaN", "lng": "0"},
			want:   []string{"lat"},
		},
		{
			name:   "infinite longitude",
			fields: map[string]string{"description": "x", "lat": "0", "lng": "Inf"},
			want:   []string{"lng"},
		},
		{
			name:   "NaN latitude and infinite longitude",
			fields: map[string]string{"description": "x", "lat": "NaN", "lng": "-Inf"},
			want:   []string{"lat", "lng"},
		},
		{
			name:   "too many photos",
			fields: map[string]string{"description": "x"},
			photos: []photo{
				{filename: "1.png", data: png}, {filename: "2.png", data: png}, {filename: "3.png", data: png},
				{filename: "4.png", data: png}, {filename: "5.png", data: png}, {filename: "6.png", data: png},
			},
			want: []string{"photos"},
		},
		{
			name:   "not an image",
			fields: map[string]string{"description": "x"},
			photos: []photo{{filename: "doc.txt", contentType: "text/plain", data: []byte("hello")}},
			want:   []string{"photos"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, completeClassifier())
			rec := s.create(t, tc.fields, tc.photos...)
			gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
			gt.Value(t, decode[errorJSON](t, rec).Fields).Equal(tc.want)

			list := decode[[]issueJSON](t, s.do(t, http.MethodGet, "/v1/issues", nil))
			gt.Array(t, list).Length(0)
		})
	}

	t.Run("oversized photo", func(t *testing.T) {
		s := newTestServer(t, completeClassifier())
		big := append(append([]byte{}, png...), bytes.Repeat([]byte{0}, usecase.MaxImageSize)...)
		rec := s.create(t, map[string]string{"description": "x"}, photo{filename: "big.png", contentType: "image/png", data: big})
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode[errorJSON](t, rec).Fields).Equal([]string{"photos"})
	})

	t.Run("not multipart", func(t *testing.T) {
		s := newTestServer(t, completeClassifier())
		rec := s.do(t, http.MethodPost, "/v1/issues", map[string]string{"description": "x"})
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t, completeClassifier())
	created := decode[issueJSON](t, s.create(t, map[string]string{"description": "Pothole"}))
	path := "/v1/issues/" + created.ID

	rec := s.do(t, http.MethodPatch, path, map[string]string{"status": "in_progress"})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, rec.Body.Len()).Equal(0)

	rec = s.do(t, http.MethodPatch, path, map[string]string{"status": "open"})
	gt.Value(t, rec.Code).Equal(http.StatusConflict)

	rec = s.do(t, http.MethodPatch, path, map[string]string{"status": "done"})
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	gt.Value(t, decode[errorJSON](t, rec).Fields).Equal([]string{"status"})

	rec = s.do(t, http.MethodPatch, path, map[string]string{"status": "resolved"})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	resolved := decode[issueJSON](t, s.do(t, http.MethodGet, path, nil))

	// Repeating resolved is a no-op
	rec = s.do(t, http.MethodPatch, path, map[string]string{"status": "resolved"})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	again := decode[issueJSON](t, s.do(t, http.MethodGet, path, nil))
	gt.Array(t, again.Events).Length(len(resolved.Events))
	gt.Value(t, again.Status).Equal("resolved")

	rec = s.do(t, http.MethodPatch, "/v1/issues/"+types.NewIssueID().String(), map[string]string{"status": "resolved"})
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
}

func TestGetAndListIssues(t *testing.T) {
	s := newTestServer(t, &fakeClassifier{results: []*model.ClassifyResult{
		{Classification: model.Classification{Category: "pothole", Priority: "high", Department: "public-works"}},
		{Classification: model.Classification{Category: "illegal_graffiti", Priority: "low", Department: "sanitation"}},
	}})

	first := decode[issueJSON](t, s.create(t, map[string]string{"description": "Pothole"}))
	second := decode[issueJSON](t, s.create(t, map[string]string{"description": "Graffiti"}))

	all := decode[[]issueJSON](t, s.do(t, http.MethodGet, "/v1/issues", nil))
	gt.Array(t, all).Length(2)

	graffiti := decode[[]issueJSON](t, s.do(t, http.MethodGet, "/v1/issues?category=illegal_graffiti", nil))
	gt.Array(t, graffiti).Length(1).Required()
	gt.Value(t, graffiti[0].ID).Equal(second.ID)

	gt.Value(t, s.do(t, http.MethodPatch, "/v1/issues/"+first.ID, map[string]string{"status": "resolved"}).Code).Equal(http.StatusOK)
	resolved := decode[[]issueJSON](t, s.do(t, http.MethodGet, "/v1/issues?status=resolved", nil))
	gt.Array(t, resolved).Length(1).Required()
	gt.Value(t, resolved[0].ID).Equal(first.ID)

	none := s.do(t, http.MethodGet, "/v1/issues?category=vandalism", nil)
	gt.Value(t, strings.TrimSpace(none.Body.String())).Equal("[]")

	rec := s.do(t, http.MethodGet, "/v1/issues?status=closed", nil)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

	rec = s.do(t, http.MethodGet, "/v1/issues/"+types.NewIssueID().String(), nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)

	rec = s.do(t, http.MethodGet, "/v1/issues/not-an-id", nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t, completeClassifier())

	rec := s.do(t, http.MethodGet, "/health", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, decode[map[string]string](t, rec)).Equal(map[string]string{
		"status":  "healthy",
		"service": "citypulse",
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/issues", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	gt.Bool(t, rec.Header().Get("Access-Control-Allow-Origin") != "").True()
	gt.String(t, rec.Header().Get("Access-Control-Allow-Methods")).Contains(http.MethodPost)
}
