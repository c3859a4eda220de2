package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"organograma/internal/orgchart/service"
	"organograma/internal/policy"
	"organograma/pkg/platform/httputil"
	authmw "organograma/pkg/platform/middleware/auth"
	"organograma/pkg/requestcontext"
)

type Service interface {
	View(ctx context.Context, query string) (*service.ChartView, error)
	Select(ctx context.Context, id string) (*service.Selection, error)
}

// Handler serves the rendered org chart.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/orgchart", func(r chi.Router) {
		r.Use(authmw.RequireCapability(policy.ViewOrgChart, h.logger))
		r.Get("/", h.HandleView)
		r.Get("/nodes/{id}", h.HandleSelect)
	})
}

// HandleView handles GET /api/orgchart?q=.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()
	query := r.URL.Query().Get("q")

	view, err := h.service.View(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build org chart view",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.DebugContext(ctx, "org chart served",
		"request_id", requestID,
		"visible", len(view.Nodes),
		"total", view.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleSelect handles GET /api/orgchart/nodes/{id}.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	sel, err := h.service.Select(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to select org chart node",
			"request_id", requestcontext.RequestID(ctx),
			"person_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sel)
}
