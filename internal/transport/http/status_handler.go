package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/operations"
)

// RunReporter exposes the state of the current run
type RunReporter interface {
	Report() *operations.RunReport
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Run   *operations.RunReport `json:"run,omitempty"`
	State string                `json:"state"`
	Error *apperrors.APIError   `json:"error,omitempty"`
}

// StatusHandler serves the live run report
type StatusHandler struct {
	reporter RunReporter
	logger   *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(reporter RunReporter, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{
		reporter: reporter,
		logger:   logger.With(slog.String("handler", "status")),
	}
}

// Routes sets up the status routes
func (h *StatusHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetStatus)
	return r
}

// GetStatus handles GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var report *operations.RunReport
	if h.reporter != nil {
		report = h.reporter.Report()
	}
	if report == nil {
		render.JSON(w, r, StatusResponse{State: string(operations.OperationStatusPending)})
		return
	}

	resp := StatusResponse{Run: report, State: string(report.Status)}
	if report.Err != nil {
		apiErr := apperrors.FromError(report.Err)
		resp.Error = apiErr
		render.Status(r, apiErr.StatusCode)
		h.logger.DebugContext(r.Context(), "Reporting failed run",
			slog.String("run_id", report.RunID),
			slog.String("error_code", apiErr.ErrorCode))
	}
	render.JSON(w, r, resp)
}
