// Package server provides the HTTP JSON API for the company grading
// service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/company-grader/internal/catalog"
	"github.com/jonathan/company-grader/internal/companies"
	"github.com/jonathan/company-grader/internal/evidence"
	"github.com/jonathan/company-grader/internal/grading"
	"github.com/jonathan/company-grader/internal/scores"
)

// evidenceRequestBudget caps the /rag endpoint's total retrieval time.
const evidenceRequestBudget = 60 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer    *http.Server
	orchestrator  *grading.Orchestrator
	catalogCache  *catalog.Cache
	retriever     *evidence.Retriever
	directory     *companies.Directory
	scores        *scores.Store
	generationKey string
	validate      *validator.Validate
}

// Config holds server configuration
type Config struct {
	Port         int
	Orchestrator *grading.Orchestrator
	CatalogCache *catalog.Cache
	Retriever    *evidence.Retriever
	Directory    *companies.Directory
	Scores       *scores.Store
	// GenerationKey is checked on /chat; its absence is a configuration
	// error surfaced to the caller rather than a silent failure.
	GenerationKey string
}

// New creates a new server instance
func New(cfg Config) *Server {
	s := &Server{
		orchestrator:  cfg.Orchestrator,
		catalogCache:  cfg.CatalogCache,
		retriever:     cfg.Retriever,
		directory:     cfg.Directory,
		scores:        cfg.Scores,
		generationKey: cfg.GenerationKey,
		validate:      validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /companies", s.handleListCompanies)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /rag", s.handleEvidence)
	mux.HandleFunc("POST /getScores", s.handleGetScores)
	mux.HandleFunc("POST /scores", s.handleRawScores)
	mux.HandleFunc("POST /catalog/refresh", s.handleCatalogRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // grading a full questionnaire is slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging with a short request id
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		start := time.Now()
		log.Printf("[%s] %s %s %s", requestID, r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s %s completed in %v", requestID, r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCatalogRefresh drops the cached questionnaire so the next grading
// run refetches it from the index.
func (s *Server) handleCatalogRefresh(w http.ResponseWriter, _ *http.Request) {
	s.catalogCache.Invalidate()
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
