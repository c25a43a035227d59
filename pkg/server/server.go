// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/perbu/tariffrag/pkg/pipeline"
	"github.com/perbu/tariffrag/pkg/rag"
)

const maxRequestBytes = 64 << 10

// Answerer runs one question through the pipeline. *pipeline.Pipeline
// implements it.
type Answerer interface {
	Run(ctx context.Context, question string) (pipeline.State, error)
}

// Server is the HTTP front end for an Answerer.
type Server struct {
	router   *chi.Mux
	addr     string
	answerer Answerer
	logger   *slog.Logger
}

// NewServer creates a server listening on addr with request ID, real IP,
// request logging and panic recovery middleware installed.
func NewServer(addr string, answerer Answerer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		addr:     addr,
		answerer: answerer,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Post("/ask", s.ask)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type source struct {
	SourceID    string   `json:"source_id"`
	SectionPath []string `json:"section_path,omitempty"`
	IsTable     bool     `json:"is_table,omitempty"`
}

type askResponse struct {
	Answer      string   `json:"answer"`
	RequestID   string   `json:"request_id"`
	SearchQuery string   `json:"search_query"`
	Sources     []source `json:"sources"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	st, err := s.answerer.Run(r.Context(), req.Question)
	switch {
	case err == nil:
	case errors.Is(err, rag.ErrIndexNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "index not initialized; run generate-embeddings first")
		return
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required")
		return
	default:
		s.logger.Error("ask failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := askResponse{
		RequestID:   st.RequestID,
		SearchQuery: st.SearchQuery(),
		Sources:     make([]source, 0, len(st.Context)),
	}
	if st.Answer != nil {
		resp.Answer = *st.Answer
	}
	for _, c := range st.Context {
		resp.Sources = append(resp.Sources, source{
			SourceID:    c.SourceID,
			SectionPath: c.SectionPath,
			IsTable:     c.IsTable,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
