package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jonathan/company-grader/internal/scores"
	"github.com/jonathan/company-grader/internal/types"
)

// ChatRequest represents the request body for /chat. CurrentURL is
// accepted for caller compatibility but unused: evidence is retrieved
// directly rather than through a loopback call.
type ChatRequest struct {
	CodeName   string `json:"code_name" validate:"required"`
	CurrentURL string `json:"currentUrl,omitempty"`
}

// AnswersResponse represents the response for /chat and /getScores
type AnswersResponse struct {
	Answers []types.Answer `json:"answers"`
	Error   string         `json:"error,omitempty"`
}

// EvidenceRequest represents the request body for /rag. Questions must be
// present but may be empty; an empty list yields an empty response.
type EvidenceRequest struct {
	CodeName  string           `json:"code_name" validate:"required"`
	Questions []types.Question `json:"questions"`
}

// ScoresRequest represents the request body for /getScores and /scores
type ScoresRequest struct {
	CodeName string `json:"code_name" validate:"required"`
}

// handleListCompanies lists the known companies
func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	records, err := s.directory.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch companies: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, records)
}

// handleChat grades a company's full questionnaire, or returns the
// persisted result when one exists
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.generationKey == "" {
		s.errorResponse(w, http.StatusInternalServerError, ErrMissingGenerationKey{}.Error())
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "code_name is required")
		return
	}

	answers, err := s.orchestrator.Grade(r.Context(), req.CodeName)
	if err != nil {
		log.Printf("Grading %s failed: %v", req.CodeName, err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, AnswersResponse{Answers: answers})
}

// handleEvidence retrieves evidence passages for the supplied questions
// under a fixed time budget
func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	var req EvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "code_name is required")
		return
	}
	if req.Questions == nil {
		s.errorResponse(w, http.StatusBadRequest, "questions is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), evidenceRequestBudget)
	defer cancel()

	items := make([]types.EvidenceItem, 0, len(req.Questions)*10)
	for _, question := range req.Questions {
		found, err := s.retriever.ForQuestion(ctx, req.CodeName, question)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch RAG data: "+err.Error())
			return
		}
		items = append(items, found...)
	}

	s.jsonResponse(w, http.StatusOK, items)
}

// handleGetScores returns the persisted answers for a company. Absent or
// malformed records yield an empty answer list with a descriptive error,
// matching what table-rendering callers expect.
func (s *Server) handleGetScores(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScoresRequest(w, r)
	if !ok {
		return
	}

	answers, err := s.scores.Get(r.Context(), req.CodeName)
	if err != nil {
		var malformed *scores.ErrMalformed
		switch {
		case errors.Is(err, scores.ErrNoRecord):
			s.jsonResponse(w, http.StatusOK, AnswersResponse{
				Answers: []types.Answer{},
				Error:   "No data found for the given code_name",
			})
		case errors.As(err, &malformed):
			s.jsonResponse(w, http.StatusOK, AnswersResponse{
				Answers: []types.Answer{},
				Error:   "Unexpected metadata structure",
			})
		default:
			s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch scores: "+err.Error())
		}
		return
	}

	s.jsonResponse(w, http.StatusOK, AnswersResponse{Answers: answers})
}

// handleRawScores returns the persisted metadata untouched, or 404
func (s *Server) handleRawScores(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScoresRequest(w, r)
	if !ok {
		return
	}

	metadata, err := s.scores.GetRaw(r.Context(), req.CodeName)
	if err != nil {
		if errors.Is(err, scores.ErrNoRecord) {
			s.errorResponse(w, http.StatusNotFound, "No data found for this company")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch scores: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, metadata)
}

func (s *Server) decodeScoresRequest(w http.ResponseWriter, r *http.Request) (ScoresRequest, bool) {
	var req ScoresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "code_name is required")
		return req, false
	}
	return req, true
}
