// Package httpserver builds the API server with bounded timeouts. Documents
// flowing through the decrypt and redact endpoints can be large, so the write
// timeout is generous relative to the per-request middleware timeout.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server for the given handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
