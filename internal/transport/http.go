package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/domain/catalog"
)

// Engine is the assignment engine surface used by the HTTP API.
type Engine interface {
	NextRecord(ctx context.Context, userID string) (*assignment.NextResult, error)
	AssignBatch(ctx context.Context, req assignment.AssignRequest) ([]string, error)
	Submit(ctx context.Context, req assignment.SubmitRequest) (*assignment.SubmitResult, error)
	ClearBatch(ctx context.Context, userID string) error
	AnnotationCount(ctx context.Context, userID string) (int, error)
	AllUsersProgress(ctx context.Context, totalRecords int) (map[string]annotation.Progress, error)
	Annotations(ctx context.Context) ([]annotation.Annotation, error)
	BatchSize(ctx context.Context) (int, error)
	SetBatchSize(ctx context.Context, n int) error
}

// ActivityReader lists audit entries.
type ActivityReader interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Catalog provides candidate order and record content.
type Catalog interface {
	Len() int
	IDs() []string
	Record(id string) (catalog.Record, bool)
}

// Config wires the HTTP server.
type Config struct {
	Engine   Engine
	Activity ActivityReader
	Catalog  Catalog
	Logger   *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	engine   Engine
	activity ActivityReader
	catalog  Catalog
	logger   *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{
		engine:   cfg.Engine,
		activity: cfg.Activity,
		catalog:  cfg.Catalog,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(UsernameMiddleware)

	r.Get("/health", srv.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/next", srv.handleNext)
			r.Post("/batch", srv.handleAssignBatch)
			r.Delete("/batch", srv.handleClearBatch)
			r.Post("/annotations", srv.handleSubmit)
			r.Get("/count", srv.handleCount)
		})
		r.Get("/progress", srv.handleProgress)
		r.Get("/annotations", srv.handleAnnotations)
		r.Get("/activity", srv.handleActivity)
		r.Get("/settings/batch-size", srv.handleGetBatchSize)
		r.Put("/settings/batch-size", srv.handleSetBatchSize)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type nextResponse struct {
	*assignment.NextResult
	Record map[string]json.RawMessage `json:"record,omitempty"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	next, err := s.engine.NextRecord(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := nextResponse{NextResult: next}
	if next.Status == assignment.StatusRecord {
		if rec, ok := s.catalog.Record(next.RecordID); ok {
			resp.Record = rec.Fields
		}
	}
	WriteResult(w, http.StatusOK, resp)
}

type assignBatchRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

type assignBatchResponse struct {
	Assigned []string `json:"assigned"`
}

func (s *Server) handleAssignBatch(w http.ResponseWriter, r *http.Request) {
	var req assignBatchRequest
	if err := ParseRequest(r.Body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	if req.BatchSize < 0 {
		WriteError(w, http.StatusBadRequest, CodeInvalidBatchSize, assignment.ErrInvalidBatchSize.Error())
		return
	}

	ids, err := s.engine.AssignBatch(r.Context(), assignment.AssignRequest{
		UserID:    chi.URLParam(r, "userID"),
		BatchSize: req.BatchSize,
		RecordIDs: s.catalog.IDs(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	WriteResult(w, http.StatusOK, assignBatchResponse{Assigned: ids})
}

func (s *Server) handleClearBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearBatch(r.Context(), chi.URLParam(r, "userID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	RecordID            string         `json:"record_id"`
	IsCorrect           bool           `json:"is_correct"`
	EditedTranslation   *string        `json:"edited_translation,omitempty"`
	EditedConversations []catalog.Turn `json:"edited_conversations,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := ParseRequest(r.Body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	userID := chi.URLParam(r, "userID")
	username, ok := UsernameFromContext(r.Context())
	if !ok {
		username = userID
	}

	sub := assignment.SubmitRequest{
		RecordID:  req.RecordID,
		UserID:    userID,
		Username:  username,
		IsCorrect: req.IsCorrect,
	}
	if !req.IsCorrect && (req.EditedTranslation != nil || req.EditedConversations != nil) {
		sub.Correction = &annotation.Correction{
			Translation:   req.EditedTranslation,
			Conversations: req.EditedConversations,
		}
	}

	result, err := s.engine.Submit(r.Context(), sub)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteResult(w, http.StatusOK, result)
}

type countResponse struct {
	Count        int  `json:"count"`
	BatchSize    int  `json:"batch_size"`
	LimitReached bool `json:"limit_reached"`
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.AnnotationCount(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	size, err := s.engine.BatchSize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteResult(w, http.StatusOK, countResponse{
		Count:        count,
		BatchSize:    size,
		LimitReached: assignment.ReachedLimit(count, size),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.engine.AllUsersProgress(r.Context(), s.catalog.Len())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list := make([]annotation.Progress, 0, len(progress))
	for _, p := range progress {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	WriteResult(w, http.StatusOK, list)
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Annotations(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []annotation.Annotation{}
	}
	WriteResult(w, http.StatusOK, list)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		WriteResult(w, http.StatusOK, []activity.ActivityEntry{})
		return
	}

	q := r.URL.Query()
	var opts activity.ListActivityOptions
	if v := q.Get("user_id"); v != "" {
		opts.UserID = &v
	}
	if v := q.Get("record_id"); v != "" {
		opts.RecordID = &v
	}
	if v := q.Get("type"); v != "" {
		t := activity.ActivityType(v)
		opts.ActivityType = &t
	}
	var err error
	if opts.Limit, err = queryInt(q.Get("limit"), 50); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidInput, "invalid limit")
		return
	}
	if opts.Offset, err = queryInt(q.Get("offset"), 0); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidInput, "invalid offset")
		return
	}

	entries, err := s.activity.GetRecentActivity(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	WriteResult(w, http.StatusOK, entries)
}

type batchSizeBody struct {
	BatchSize int `json:"batch_size"`
}

func (s *Server) handleGetBatchSize(w http.ResponseWriter, r *http.Request) {
	size, err := s.engine.BatchSize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteResult(w, http.StatusOK, batchSizeBody{BatchSize: size})
}

func (s *Server) handleSetBatchSize(w http.ResponseWriter, r *http.Request) {
	var req batchSizeBody
	if err := ParseRequest(r.Body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	if err := s.engine.SetBatchSize(r.Context(), req.BatchSize); err != nil {
		s.fail(w, r, err)
		return
	}
	WriteResult(w, http.StatusOK, req)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	WriteDomainError(w, err)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
