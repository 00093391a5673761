// Package host exposes the squad service to a virtual tabletop over HTTP and
// streams render, notice and highlight events over a websocket.
package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"squadcore/docs/schema/openapi"
	"squadcore/internal/archive"
	"squadcore/internal/blob"
	"squadcore/internal/core"
	"squadcore/internal/logging"
)

// Server routes host hooks to a core.Service.
type Server struct {
	svc      *core.Service
	hub      *Hub
	archive  *archive.Archive
	metrics  http.Handler
	logger   logging.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithArchive enables the /api/v1/archives endpoints.
func WithArchive(a *archive.Archive) Option { return func(s *Server) { s.archive = a } }

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option { return func(s *Server) { s.logger = logging.OrNoop(l) } }

// NewServer builds the router. hub may be nil, in which case /ws is not served.
func NewServer(svc *core.Service, hub *Hub, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		hub:    hub,
		logger: logging.Noop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	if s.hub != nil {
		r.HandleFunc("/ws", s.handleWS)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/openapi.yaml", handleOpenAPI).Methods(http.MethodGet)
	api.HandleFunc("/actors", s.handleListActors).Methods(http.MethodGet)
	api.HandleFunc("/actors", s.handleCreateActor).Methods(http.MethodPost)
	api.HandleFunc("/actors/{id}/tokens", s.handlePlaceToken).Methods(http.MethodPost)

	api.HandleFunc("/tokens", s.handleListTokens).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{id}", s.handleGetToken).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{id}", s.handleUpdateToken).Methods(http.MethodPatch)
	api.HandleFunc("/tokens/{id}", s.handleRemoveToken).Methods(http.MethodDelete)
	api.HandleFunc("/tokens/{id}/hover", s.handleHover).Methods(http.MethodPost)

	sq := api.PathPrefix("/squads/{member}").Subrouter()
	sq.HandleFunc("", s.handleGetSquad).Methods(http.MethodGet)
	sq.HandleFunc("/members", s.handleAddMember).Methods(http.MethodPost)
	sq.HandleFunc("/members/{target}", s.handleRemoveMember).Methods(http.MethodDelete)
	sq.HandleFunc("/captain", s.handleAssignCaptain).Methods(http.MethodPut)
	sq.HandleFunc("/captain", s.handleRemoveCaptain).Methods(http.MethodDelete)
	sq.HandleFunc("/stamina", s.handleStamina).Methods(http.MethodPost)
	sq.HandleFunc("/clones", s.handleClone).Methods(http.MethodPost)
	sq.HandleFunc("/captain-effects", s.handleCaptainEffects).Methods(http.MethodPost)

	api.HandleFunc("/verify", s.handleVerify).Methods(http.MethodGet)
	api.HandleFunc("/plugins", s.handlePlugins).Methods(http.MethodGet)

	if s.archive != nil {
		api.HandleFunc("/archives", s.handleListArchives).Methods(http.MethodGet)
		api.HandleFunc("/archives", s.handleExportArchive).Methods(http.MethodPost)
		api.HandleFunc("/archives/import", s.handleImportArchive).Methods(http.MethodPost)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request", "component", "host", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("host: response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.Spec())
}

// clientMessage is what clients may send over /ws.
type clientMessage struct {
	Type    string `json:"type"`
	TokenID string `json:"token_id"`
	Hovered bool   `json:"hovered"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "component", "host", "error", err)
		return
	}
	detach := s.hub.attach(conn)
	s.logger.Info("websocket connected", "component", "host", "remote", r.RemoteAddr)
	go func() {
		defer detach()
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				s.logger.Debug("websocket closed", "component", "host", "remote", r.RemoteAddr, "error", err)
				return
			}
			if msg.Type != "hover" {
				continue
			}
			if _, err := s.svc.HoverToken(context.Background(), msg.TokenID, msg.Hovered); err != nil {
				s.logger.Warn("hover failed", "component", "host", "token_id", msg.TokenID, "error", err)
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{err}
	}
	return nil
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return "invalid request body: " + b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error      string           `json:"error"`
	Message    string           `json:"message"`
	Status     int              `json:"status"`
	Violations []core.Violation `json:"violations,omitempty"`
}

func statusFor(err error) int {
	var (
		violation core.RuleViolationError
		bad       badRequest
	)
	switch {
	case errors.As(err, &bad), errors.Is(err, core.ErrNoSelection):
		return http.StatusBadRequest
	case core.IsNotFound(err), errors.Is(err, blob.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTypeMismatch):
		return http.StatusUnprocessableEntity
	case errors.As(err, &violation), errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: http.StatusText(status), Message: err.Error(), Status: status}
	var violation core.RuleViolationError
	if errors.As(err, &violation) {
		body.Violations = violation.Result.Violations
	}
	writeJSON(w, status, body)
}
