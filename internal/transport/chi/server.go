// Package chi is the HTTP surface: routing, request decoding, and the
// mapping from domain sentinel errors to response statuses.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/domain"
	engineuc "github.com/kailas-cloud/notedex/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/notedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/notedex/internal/usecase/ingest"
	mindmapuc "github.com/kailas-cloud/notedex/internal/usecase/mindmap"
	queryuc "github.com/kailas-cloud/notedex/internal/usecase/query"
	taskuc "github.com/kailas-cloud/notedex/internal/usecase/task"
)

// maxUploadBytes caps multipart upload size.
const maxUploadBytes = 64 << 20

// errorCode is the machine-readable error identifier in responses.
type errorCode string

const (
	codeBadRequest          errorCode = "bad_request"
	codeValidationFailed    errorCode = "validation_failed"
	codeEngineNotFound      errorCode = "engine_not_found"
	codeDocumentNotFound    errorCode = "document_not_found"
	codeTaskNotFound        errorCode = "task_not_found"
	codeNoDocuments         errorCode = "no_documents"
	codeBucketMissing       errorCode = "bucket_missing"
	codeRemoteUnavailable   errorCode = "remote_unavailable"
	codeImportFailed        errorCode = "import_failed"
	codeGenerationFailed    errorCode = "generation_failed"
	codeInternalError       errorCode = "internal_error"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the use case services behind the HTTP handlers.
type Server struct {
	engines       *engineuc.Service
	ingest        *ingestuc.Service
	tasks         *taskuc.Service
	queries       *queryuc.Service
	mindmaps      *mindmapuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	engines *engineuc.Service,
	ingest *ingestuc.Service,
	tasks *taskuc.Service,
	queries *queryuc.Service,
	mindmaps *mindmapuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engines:  engines,
		ingest:   ingest,
		tasks:    tasks,
		queries:  queries,
		mindmaps: mindmaps,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEngineNotFound, http.StatusNotFound, codeEngineNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrTaskNotFound, http.StatusNotFound, codeTaskNotFound),
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmptyFile, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedFileType, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNoDocuments, http.StatusBadRequest, codeNoDocuments),
		sentinelHandler(domain.ErrBucketMissing, http.StatusConflict, codeBucketMissing),
		sentinelHandler(domain.ErrImportFailed, http.StatusBadGateway, codeImportFailed),
		sentinelHandler(domain.ErrRemoteUnavailable, http.StatusBadGateway, codeRemoteUnavailable),
		sentinelHandler(domain.ErrBadMindMap, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// Routes mounts every API route on the router.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/engines", s.CreateEngine)
		r.Get("/engines", s.ListEngines)
		r.Get("/engines/{engineID}", s.GetEngine)
		r.Delete("/engines/{engineID}", s.DeleteEngine)

		r.Post("/engines/{engineID}/documents", s.UploadDocument)
		r.Get("/engines/{engineID}/documents", s.ListDocuments)
		r.Get("/engines/{engineID}/documents/{documentID}", s.GetDocument)
		r.Delete("/engines/{engineID}/documents/{documentID}", s.DeleteDocument)

		r.Post("/engines/{engineID}/mindmap", s.GenerateMindMap)

		r.Get("/tasks", s.ListTasks)
		r.Get("/tasks/{taskID}", s.GetTask)

		r.Post("/query", s.Query)
	})
}

// CreateEngine handles POST /api/v1/engines.
func (s *Server) CreateEngine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EngineName string `json:"engine_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.EngineName == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "engine_name is required")
		return
	}

	created, err := s.engines.Create(r.Context(), req.EngineName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListEngines handles GET /api/v1/engines.
func (s *Server) ListEngines(w http.ResponseWriter, r *http.Request) {
	engines, err := s.engines.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]engineView, len(engines))
	for i, e := range engines {
		items[i] = engineToView(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engines": items,
		"total":   len(items),
	})
}

// GetEngine handles GET /api/v1/engines/{engineID}.
func (s *Server) GetEngine(w http.ResponseWriter, r *http.Request) {
	detail, err := s.engines.Get(r.Context(), chirouter.URLParam(r, "engineID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := map[string]any{
		"engine":         engineToView(detail.Engine),
		"document_count": detail.DocumentCount,
	}
	if detail.Remote != nil {
		resp["remote"] = map[string]any{
			"display_name":   detail.Remote.DisplayName,
			"solution_type":  detail.Remote.SolutionType,
			"data_store_ids": detail.Remote.DataStoreIDs,
		}
	}
	if detail.Warning != "" {
		resp["warning"] = detail.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteEngine handles DELETE /api/v1/engines/{engineID}.
func (s *Server) DeleteEngine(w http.ResponseWriter, r *http.Request) {
	opts := engineuc.DeleteOptions{
		DeleteDataStore: queryFlag(r, "delete_data_store"),
		DeleteBlobFiles: queryFlag(r, "delete_gcs_files"),
	}

	result, err := s.engines.Delete(r.Context(), chirouter.URLParam(r, "engineID"), opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UploadDocument handles POST /api/v1/engines/{engineID}/documents. The file
// arrives as multipart field "file"; the response is an accepted task handle.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "failed to read file: "+err.Error())
		return
	}

	task, err := s.ingest.Accept(r.Context(), ingestuc.Upload{
		EngineID:    chirouter.URLParam(r, "engineID"),
		DataStoreID: r.URL.Query().Get("data_store_id"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskToView(task))
}

// ListDocuments handles GET /api/v1/engines/{engineID}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)

	docs, err := s.ingest.List(r.Context(), chirouter.URLParam(r, "engineID"),
		limit, offset, q.Get("sort_by"), q.Get("sort_order"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentView, len(docs))
	for i, d := range docs {
		items[i] = documentToView(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": items,
		"total":     len(items),
		"limit":     limit,
		"offset":    offset,
	})
}

// GetDocument handles GET /api/v1/engines/{engineID}/documents/{documentID}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingest.Get(r.Context(),
		chirouter.URLParam(r, "engineID"), chirouter.URLParam(r, "documentID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToView(doc))
}

// DeleteDocument handles DELETE /api/v1/engines/{engineID}/documents/{documentID}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingest.Delete(r.Context(),
		chirouter.URLParam(r, "engineID"), chirouter.URLParam(r, "documentID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GenerateMindMap handles POST /api/v1/engines/{engineID}/mindmap.
func (s *Server) GenerateMindMap(w http.ResponseWriter, r *http.Request) {
	m, err := s.mindmaps.Generate(r.Context(), chirouter.URLParam(r, "engineID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetTask handles GET /api/v1/tasks/{taskID}.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), chirouter.URLParam(r, "taskID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToView(t))
}

// ListTasks handles GET /api/v1/tasks.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]taskView, len(tasks))
	for i, t := range tasks {
		items[i] = taskToView(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": items,
		"total": len(items),
	})
}

// Query handles POST /api/v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		EngineID string `json:"engine_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.EngineID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "engine_id is required")
		return
	}

	answer, err := s.queries.Ask(r.Context(), req.EngineID, req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Views ---

type engineView struct {
	EngineID    string    `json:"engine_id"`
	EngineName  string    `json:"engine_name"`
	DataStoreID string    `json:"data_store_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func engineToView(e domain.Engine) engineView {
	return engineView{
		EngineID:    e.EngineID,
		EngineName:  e.EngineName,
		DataStoreID: e.DataStoreID,
		CreatedAt:   e.CreatedAt,
	}
}

type documentView struct {
	DocumentID  string    `json:"document_id"`
	EngineID    string    `json:"engine_id"`
	DataStoreID string    `json:"data_store_id"`
	Filename    string    `json:"filename"`
	URI         string    `json:"uri"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func documentToView(d domain.Document) documentView {
	return documentView{
		DocumentID:  d.DocumentID,
		EngineID:    d.EngineID,
		DataStoreID: d.DataStoreID,
		Filename:    d.Filename,
		URI:         d.BlobURI,
		FileSize:    d.FileSize,
		ContentType: d.ContentType,
		UploadedAt:  d.UploadedAt,
	}
}

type taskView struct {
	TaskID       string    `json:"task_id"`
	Filename     string    `json:"filename"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func taskToView(t domain.Task) taskView {
	return taskView{
		TaskID:       t.TaskID,
		Filename:     t.Filename,
		Status:       string(t.Status),
		Result:       t.Result,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// --- Helpers ---

func queryFlag(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEngineNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrTaskNotFound,
		domain.ErrEmptyQuery,
		domain.ErrEmptyFile,
		domain.ErrUnsupportedFileType,
		domain.ErrNoDocuments,
		domain.ErrBucketMissing,
		domain.ErrImportFailed,
		domain.ErrRemoteUnavailable,
		domain.ErrBadMindMap,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
