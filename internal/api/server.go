package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"truckplanner/internal/config"
	"truckplanner/internal/controller"
	"truckplanner/internal/logging"
	"truckplanner/internal/models"
	"truckplanner/internal/planapi"
	"truckplanner/internal/results"
	"truckplanner/internal/util"
	"truckplanner/internal/workflows"
)

const maxUploadBytes = 64 << 20

// Backend is what the server calls directly, outside the controller.
type Backend interface {
	Health(ctx context.Context) (planapi.Health, error)
	NoMultiStopCustomers(ctx context.Context) ([]string, error)
	SetNoMultiStopCustomers(ctx context.Context, customers []string) (int, error)
}

// Server exposes one controller session over loopback HTTP for a browser
// front-end. Headless runs go through Temporal when a client is configured.
type Server struct {
	cfg      config.Config
	ctrl     *controller.Controller
	backend  Backend
	temporal workflows.Starter
	log      *slog.Logger
}

type Options struct {
	Temporal workflows.Starter
	Logger   *slog.Logger
}

func NewServer(cfg config.Config, ctrl *controller.Controller, backend Backend, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Server{cfg: cfg, ctrl: ctrl, backend: backend, temporal: opts.Temporal, log: opts.Logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/backend/health", s.handleBackendHealth)
	mux.HandleFunc("/session/file", s.handleSelectFile)
	mux.HandleFunc("/session/upload", s.handleUpload)
	mux.HandleFunc("/session/preview", s.handlePreview)
	mux.HandleFunc("/session/config", s.handleConfig)
	mux.HandleFunc("/session/optimize", s.handleOptimize)
	mux.HandleFunc("/session/export/", s.handleExport)
	mux.HandleFunc("/session/state", s.handleState)
	mux.HandleFunc("/session/results", s.handleResults)
	mux.HandleFunc("/customers", s.handleCustomers)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleBackendHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.backend.Health(r.Context())
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := formFile(r.MultipartForm)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	data, err := readFormFile(fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	session := s.ctrl.SelectFile(filepath.Base(fh.Filename), contentType, data)
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

// handleUpload is the single "Upload & Preview" action; ?preview=false
// stops after the transfer.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var err error
	if r.URL.Query().Get("preview") == "false" {
		err = s.ctrl.Upload(r.Context())
	} else {
		_, err = s.ctrl.UploadAndPreview(r.Context())
	}
	if err != nil {
		s.writeStepErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	p, err := s.ctrl.FetchPreview(r.Context())
	if err != nil {
		s.writeStepErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preview":      p,
		"can_optimize": s.ctrl.CanOptimize(),
		"status":       s.ctrl.Status(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	store := s.ctrl.Config()
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"fields": store.Fields(), "multi_stop_enabled": controller.MultiStopEnabled})
	case http.MethodPost:
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		for name, value := range req {
			if err := store.SetField(name, value); err != nil {
				writeErr(w, http.StatusBadRequest, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"fields": store.Fields(), "multi_stop_enabled": controller.MultiStopEnabled})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	b, err := s.ctrl.Optimize(r.Context())
	if err != nil {
		s.writeStepErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": b, "status": s.ctrl.Status()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	kind, ok := models.ParseExportKind(strings.TrimPrefix(r.URL.Path, "/session/export/"))
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown export kind"))
		return
	}
	f, err := s.ctrl.Export(r.Context(), kind)
	if err != nil {
		s.writeStepErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": f, "status": s.ctrl.Status()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	b := s.ctrl.Results()
	if b == nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no results"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"truck_headers":      results.TruckHeaders,
		"trucks":             results.TruckRows(b),
		"assignment_headers": results.AssignmentHeaders,
		"assignments":        results.AssignmentRows(b),
		"sections":           results.SectionRows(b),
		"metrics":            results.MetricRows(b),
	})
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cs, err := s.backend.NoMultiStopCustomers(r.Context())
		if err != nil {
			writeErr(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": cs})
	case http.MethodPost:
		var req struct {
			Customers []string `json:"customers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		n, err := s.backend.SetNoMultiStopCustomers(r.Context(), req.Customers)
		if err != nil {
			writeErr(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": n})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

// handleRuns starts a headless plan run for a file already on the worker's
// disk.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("temporal is not configured"))
		return
	}
	var req workflows.PlanRunInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("file_path is required"))
		return
	}
	if req.PlanningWhse == "" {
		req.PlanningWhse = s.ctrl.Config().Planning().PlanningWhse
	}
	if req.Weights == (models.WeightConfig{}) {
		req.Weights = s.ctrl.Config().Snapshot()
	}
	if req.OptimizeTimeoutSeconds == 0 {
		req.OptimizeTimeoutSeconds = int(s.cfg.OptimizeTimeout.Seconds())
	}
	if req.ExportTimeoutSeconds == 0 {
		req.ExportTimeoutSeconds = int(s.cfg.ExportTimeout.Seconds())
	}
	id, err := workflows.StartPlanRun(r.Context(), s.temporal, s.cfg.TemporalTaskQueue, req)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("plan run started", "workflow_id", id, "file", req.FilePath)
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": id})
}

func (s *Server) handleRunScoped(w http.ResponseWriter, r *http.Request) {
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("temporal is not configured"))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if id == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	st, err := workflows.QueryPlanRun(r.Context(), s.temporal, id)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// writeStepErr maps controller errors; the status line is returned with the
// error so the front-end can show it.
func (s *Server) writeStepErr(w http.ResponseWriter, err error) {
	code := stepStatus(err)
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
		"status": s.ctrl.Status(),
	})
}

func stepStatus(err error) int {
	var valErr *models.ValidationError
	switch {
	case errors.Is(err, util.ErrNoFileSelected),
		errors.Is(err, util.ErrNotUploaded),
		errors.Is(err, util.ErrNoPreview),
		errors.Is(err, util.ErrMissingColumns),
		errors.Is(err, util.ErrStale),
		errors.Is(err, util.ErrInProgress):
		return http.StatusConflict
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func formFile(m *multipart.Form) (*multipart.FileHeader, bool) {
	if fhs := m.File["file"]; len(fhs) > 0 {
		return fhs[0], true
	}
	for _, v := range m.File {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
