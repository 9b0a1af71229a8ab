// Package control is the resident's loopback HTTP endpoint. It doubles as the
// single-instance marker: a second process finds the resident by pinging the
// port range and delegates commands to it.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"screen-translate/src/metrics"
	"screen-translate/src/pipeline"
)

const (
	residentHost = "127.0.0.1"
	// residentHeader marks responses from our resident so a foreign service
	// on the same port is not mistaken for one.
	residentHeader = "X-Screen-Translate"
	residentValue  = "1"
)

// ErrNoFreePort is returned when every port in the range is taken.
var ErrNoFreePort = errors.New("no free control port in range")

// Action is a command the resident accepts.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionToggle Action = "toggle"
	ActionReload Action = "reload"
)

// Backend executes actions. The event loop implements it.
type Backend interface {
	Do(ctx context.Context, action Action) (pipeline.Status, error)
	Status() pipeline.Status
}

type Server struct {
	backend Backend
	metrics *metrics.Metrics
	logger  *slog.Logger

	srv  *http.Server
	port int
}

func NewServer(backend Backend, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, metrics: m, logger: logger.With("component", "control")}
}

// Router builds the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(rejectBrowsers)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(residentHeader, residentValue)
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, s.backend.Status(), http.StatusOK)
	})
	r.Post("/{action}", s.handleAction)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := Action(chi.URLParam(r, "action"))
	switch action {
	case ActionStart, ActionStop, ActionToggle, ActionReload:
	default:
		jsonError(w, "unknown action: "+string(action), http.StatusNotFound)
		return
	}
	st, err := s.backend.Do(r.Context(), action)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, st, http.StatusOK)
}

// Start binds the first free port in [start, end] on loopback and serves in
// the background.
func (s *Server) Start(start, end int) error {
	var lis net.Listener
	for port := start; port <= end; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort(residentHost, strconv.Itoa(port)))
		if err != nil {
			s.logger.Debug("control port busy", "port", port, "error", err)
			continue
		}
		lis, s.port = l, port
		break
	}
	if lis == nil {
		return fmt.Errorf("%w [%d, %d]", ErrNoFreePort, start, end)
	}
	s.srv = &http.Server{Handler: s.Router(), ReadHeaderTimeout: 3 * time.Second}
	s.logger.Info("control endpoint listening", "addr", lis.Addr().String())
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server stopped", "error", err)
		}
	}()
	return nil
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int { return s.port }

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLogger logs commands at info; polling endpoints only on errors.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.Method == http.MethodGet && wrapped.statusCode < 400 {
			return
		}
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", wrapped.statusCode, "elapsed", time.Since(start))
	})
}

// rejectBrowsers refuses requests carrying an Origin header so web pages
// cannot drive the resident through the loopback port.
func rejectBrowsers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") != "" {
			jsonError(w, "cross-origin requests are not allowed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}
