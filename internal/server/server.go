// Package server is the ambient outer HTTP surface around the retry core:
// it decodes the inbound request, decides whether the orchestrator's
// preconditions are met (spec §4.D: "if it is not a JSON object, or lacks
// a messages field, the orchestrator is not invoked — the outer proxy
// dispatches directly"), forwards the response, and records the
// orchestrator's metadata to the audit sink after the fact.
//
// Grounded on the teacher's internal/server/server.go: the same
// http.ServeMux + graceful-shutdown Run shape, trimmed from the
// account-pool/OAuth/admin-dashboard surface (out of this core's scope
// per spec.md §1) down to the single relay endpoint and a health check.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shapegate/ccproxy/internal/audit"
	"github.com/shapegate/ccproxy/internal/config"
	"github.com/shapegate/ccproxy/internal/dispatch"
	"github.com/shapegate/ccproxy/internal/events"
	"github.com/shapegate/ccproxy/internal/retry"
	"github.com/shapegate/ccproxy/internal/stream"
)

// maxBodyBytes bounds how much of the inbound request body the server will
// read into memory before handing it to the orchestrator.
const maxBodyBytes = 32 << 20

// Server is the outer HTTP surface wrapping one Orchestrator.
type Server struct {
	cfg          *config.Config
	orchestrator *retry.Orchestrator
	dispatcher   *dispatch.Dispatcher
	audit        *audit.Sink
	bus          *events.Bus
	httpServer   *http.Server
	version      string
}

// New builds a Server. auditSink and bus may be nil, in which case
// recording and event publication are simply skipped.
func New(cfg *config.Config, orch *retry.Orchestrator, d *dispatch.Dispatcher, auditSink *audit.Sink, bus *events.Bus, version string) *Server {
	srv := &Server{
		cfg:          cfg,
		orchestrator: orch,
		dispatcher:   d,
		audit:        auditSink,
		bus:          bus,
		version:      version,
	}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:        requestLogger(mux),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 30*time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return srv
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/messages", s.handleMessages)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway starting", "addr", s.httpServer.Addr, "version", s.version)
		errCh <- s.httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// handleHealth reports liveness; it deliberately does not touch the audit
// sink or upstream — this core has no persisted state to be unhealthy about.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleMessages is the one relay endpoint this core serves. It decodes the
// body, routes through the Orchestrator when the preconditions hold, and
// otherwise dispatches directly per the MalformedBody error-taxonomy entry
// (spec §7).
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	r.Body.Close()

	var body map[string]interface{}
	malformed := json.Unmarshal(raw, &body) != nil
	if !malformed {
		if _, ok := body["messages"]; !ok {
			malformed = true
		}
	}

	if malformed {
		s.dispatchDirect(w, r, raw)
		return
	}

	resp, meta, err := s.orchestrator.Execute(r.Context(), r.Header.Clone(), body)
	if err != nil {
		slog.Error("orchestrator execute failed", "error", err)
		writeError(w, http.StatusBadGateway, "api_error", "upstream dispatch failed")
		return
	}
	defer resp.Body.Close()

	s.forward(w, resp)
	s.recordAsync(meta)
}

// dispatchDirect implements the MalformedBody taxonomy entry: the body
// isn't shaped for the orchestrator, so it goes upstream untouched with no
// sanitization and no retry.
func (s *Server) dispatchDirect(w http.ResponseWriter, r *http.Request, raw []byte) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.UpstreamURL, bytes.NewReader(raw))
	if err != nil {
		writeError(w, http.StatusBadGateway, "api_error", "failed to build upstream request")
		return
	}
	req.Header = r.Header.Clone()
	req.Header.Del("content-length")

	resp, err := s.dispatcher.Send(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "api_error", "upstream dispatch failed")
		return
	}
	defer resp.Body.Close()
	s.forward(w, resp)
}

// forward writes resp to w, using the streaming gate to decide whether the
// body may be piped unbuffered (spec §4.E) or copied as an ordinary
// response.
func (s *Server) forward(w http.ResponseWriter, resp *http.Response) {
	copyHeader(w.Header(), resp.Header)
	if stream.IsStreaming(resp) {
		w.WriteHeader(resp.StatusCode)
		stream.Pipe(w, resp.Body)
		return
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// recordAsync publishes a bus event (a non-blocking send on the request's
// goroutine) and persists meta to the audit sink off the request's own
// goroutine, so a slow or failing sink never adds latency to the
// client-visible response (spec §1: audit is ambient, not part of the
// core's request path).
func (s *Server) recordAsync(meta retry.Metadata) {
	if s.bus != nil {
		s.bus.Publish(events.FromMetadata(meta))
	}
	if s.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.Record(ctx, meta); err != nil {
			slog.Warn("audit record failed", "error", err)
		}
	}()
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    errType,
			"message": msg,
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
