package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/usecase"
	"github.com/secmon-lab/citypulse/pkg/utils/errutil"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/secmon-lab/citypulse/pkg/utils/safe"
)

// IssueUseCase is the lifecycle engine as seen by the HTTP layer
type IssueUseCase interface {
	CreateIssue(ctx context.Context, input usecase.CreateIssueInput) (*model.Issue, error)
	GetIssue(ctx context.Context, id types.IssueID) (*model.Issue, error)
	ListIssues(ctx context.Context, input usecase.ListIssuesInput) ([]*model.Issue, error)
	SubmitFollowUp(ctx context.Context, id types.IssueID, answers map[types.QuestionID]string) (*model.Issue, error)
	UpdateStatus(ctx context.Context, id types.IssueID, status string) (*model.Issue, error)
}

type Server struct {
	router         *chi.Mux
	issueUC        IssueUseCase
	allowedOrigins []string
}

type Options func(*Server)

// WithAllowedOrigins restricts CORS origins. All origins are allowed by default.
func WithAllowedOrigins(origins []string) Options {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func New(issueUC IssueUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:         r,
		issueUC:        issueUC,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler)

	r.Route("/v1/issues", func(r chi.Router) {
		r.Post("/", s.createIssue)
		r.Get("/", s.listIssues)
		r.Get("/{id}", s.getIssue)
		r.Patch("/{id}", s.updateStatus)
		r.Post("/{id}/followup", s.submitFollowUp)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger attaches the request ID to the context logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.From(ctx).With("request_id", middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(logging.With(ctx, logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "citypulse",
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}
