package photos

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/httputil"
	"organograma/pkg/platform/sentinel"
)

// Getter reads stored photos.
type Getter interface {
	Get(ctx context.Context, key string) (*Object, error)
}

// Handler serves stored photos when no public bucket URL is configured.
type Handler struct {
	store  Getter
	logger *slog.Logger
}

func NewHandler(store Getter, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/photos/*", h.HandleGet)
}

// HandleGet handles GET /photos/fotos_perfil/<person>.<ext>.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "*")
	if !strings.HasPrefix(key, KeyPrefix) || strings.Contains(key, "..") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "photo not found"))
		return
	}

	obj, err := h.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "photo not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to read photo", "key", key, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read photo"))
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
