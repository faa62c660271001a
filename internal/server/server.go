// Package server exposes loft over HTTP: health checks, Prometheus metrics,
// the WebSocket endpoint and a JSON API over the snapshot store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dyluth/loft/internal/metrics"
	"github.com/dyluth/loft/internal/snapshot"
	"github.com/dyluth/loft/pkg/board"
)

// maxCheckpointBody bounds POST /checkpoints request bodies.
const maxCheckpointBody = 8 << 20

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Nil fields disable the
// matching routes or checks.
type Options struct {
	Addr      string
	Store     *snapshot.Store
	WebSocket http.Handler
	Metrics   *metrics.Metrics
	Redis     Pinger
}

// Server is loft's HTTP front end.
type Server struct {
	opts     Options
	server   *http.Server
	listener net.Listener
}

// New creates a server. Call Start to begin listening.
func New(opts Options) *Server {
	s := &Server{opts: opts}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthCheckHandler)

	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
	if s.opts.WebSocket != nil {
		mux.Handle("/ws", s.opts.WebSocket)
	}
	if s.opts.Store != nil {
		mux.HandleFunc("GET /checkpoints", s.listCheckpointsHandler)
		mux.HandleFunc("POST /checkpoints", s.saveCheckpointHandler)
		mux.HandleFunc("GET /checkpoints/{number}", s.getCheckpointHandler)
	}

	return mux
}

// Start binds the listen address and serves in the background.
// Bind errors are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Server] [ERROR] HTTP server error: %v", err)
		}
	}()

	log.Printf("[Server] [INFO] Listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status      string `json:"status"`
	Redis       string `json:"redis,omitempty"`
	Checkpoints *int   `json:"checkpoints,omitempty"`
	Error       string `json:"error,omitempty"`
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if every configured dependency is reachable, 503 otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{Status: "healthy"}
	if s.opts.Store != nil {
		n := s.opts.Store.GetSnapshotNumber()
		response.Checkpoints = &n
	}

	if s.opts.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.opts.Redis.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Redis = "disconnected"
			response.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response.Redis = "connected"
	}

	writeJSON(w, http.StatusOK, response)
}

// CheckpointSummary describes a checkpoint without its shapes.
type CheckpointSummary struct {
	Number      int    `json:"number"`
	UserID      string `json:"user_id"`
	ShapeCount  int    `json:"shape_count"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// ListResponse is returned by GET /checkpoints.
type ListResponse struct {
	Count       int                 `json:"count"`
	Checkpoints []CheckpointSummary `json:"checkpoints"`
}

// SaveRequest is the body of POST /checkpoints.
type SaveRequest struct {
	UserID string            `json:"user_id"`
	Shapes []board.ShapeItem `json:"shapes"`
}

// SaveResponse is returned by POST /checkpoints.
type SaveResponse struct {
	Number int `json:"number"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listCheckpointsHandler(w http.ResponseWriter, r *http.Request) {
	cps, err := s.opts.Store.Checkpoints(r.Context())
	if err != nil {
		log.Printf("[Server] [ERROR] Failed to list checkpoints: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list checkpoints"})
		return
	}

	resp := ListResponse{
		Count:       len(cps),
		Checkpoints: make([]CheckpointSummary, 0, len(cps)),
	}
	for _, cp := range cps {
		resp.Checkpoints = append(resp.Checkpoints, CheckpointSummary{
			Number:      cp.Number,
			UserID:      cp.UserID,
			ShapeCount:  len(cp.Shapes),
			CreatedAtMs: cp.CreatedAtMs,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getCheckpointHandler(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "checkpoint number must be an integer"})
		return
	}

	cp, err := s.opts.Store.LoadCheckpoint(r.Context(), number)
	if err != nil {
		if snapshot.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("checkpoint %d not found", number)})
			return
		}
		log.Printf("[Server] [ERROR] Failed to load checkpoint %d: %v", number, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load checkpoint"})
		return
	}

	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) saveCheckpointHandler(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckpointBody))
	dec.DisallowUnknownFields()

	var req SaveRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	for i := range req.Shapes {
		if err := req.Shapes[i].Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("shape %d: %v", i, err)})
			return
		}
	}

	number, err := s.opts.Store.SaveBoard(r.Context(), req.Shapes, req.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save checkpoint"})
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/checkpoints/%d", number))
	writeJSON(w, http.StatusCreated, SaveResponse{Number: number})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] [WARN] Failed to write response: %v", err)
	}
}
