package httpserver

import (
	"net/http"
	"time"

	"organograma/internal/platform/config"
)

// New builds the HTTP server. Writes get a little longer than the request
// timeout so handlers can still send their timeout error.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
