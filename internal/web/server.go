// Package web serves the pinwatch status page and its JSON twin.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/sweeney/pinwatch/internal/status"
)

// Server exposes tracker state over HTTP: an auto-refreshing HTML page on
// / and the same snapshot as JSON on /index.json.
type Server struct {
	tracker *status.Tracker
	srv     *http.Server
}

// New creates a Server that will listen on addr. Nothing is bound until
// ListenAndServe.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed so tests can drive the server
// without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.servePage)
	mux.HandleFunc("/index.html", s.servePage)
	mux.HandleFunc("/index.json", s.serveJSON)
	return mux
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	// The "/" pattern is a catch-all; anything but the index is a 404.
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) serveJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}
