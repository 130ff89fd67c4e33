// Package scores persists and retrieves graded questionnaire results. Each
// company is one record in the scores index, keyed by code name, with the
// per-question results stored as index-aligned metadata arrays.
package scores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jonathan/company-grader/internal/types"
	"github.com/jonathan/company-grader/internal/vectorindex"
)

// ErrNoRecord indicates no persisted result exists for the code name.
var ErrNoRecord = errors.New("no score record for company")

// ErrMalformed indicates the persisted metadata is missing expected arrays.
// The record is unusable but the condition is recoverable: callers report
// it and may regrade.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed score record: %s", e.Reason)
}

// Index is the subset of the vector index client the store needs.
type Index interface {
	Upsert(ctx context.Context, namespace, id string, values []float64, metadata map[string]any) error
	Fetch(ctx context.Context, namespace, id string) (map[string]any, bool, error)
}

// Store reads and writes score records.
type Store struct {
	index Index
}

// NewStore creates a score store over the scores index.
func NewStore(index Index) *Store {
	return &Store{index: index}
}

// placeholderValues is the record's vector. The scores index is used purely
// as a keyed document store; its similarity metric never ranks these
// records.
var placeholderValues = []float64{0.55}

// Put upserts the full result for one company. Answers must already be in
// ascending question-id order; the arrays are stored index-aligned.
func (s *Store) Put(ctx context.Context, codeName string, answers []types.Answer) error {
	scoreValues := make([]string, len(answers))
	explanations := make([]string, len(answers))
	contexts := make([]string, len(answers))
	questions := make([]string, len(answers))
	questionIDs := make([]string, len(answers))
	for i, answer := range answers {
		scoreValues[i] = answer.Score
		explanations[i] = answer.Explanation
		contexts[i] = answer.Context
		questions[i] = answer.Question
		questionIDs[i] = strconv.Itoa(answer.QuestionID)
	}

	metadata := map[string]any{
		"scores":       scoreValues,
		"explanations": explanations,
		"contexts":     contexts,
		"questions":    questions,
		"questionIds":  questionIDs,
	}
	if err := s.index.Upsert(ctx, "", codeName, placeholderValues, metadata); err != nil {
		return fmt.Errorf("upserting scores for %s: %w", codeName, err)
	}
	return nil
}

// Get rebuilds the ordered answer list from a persisted record. Returns
// ErrNoRecord when the company has never been graded and *ErrMalformed when
// the metadata does not hold the expected arrays.
func (s *Store) Get(ctx context.Context, codeName string) ([]types.Answer, error) {
	metadata, err := s.GetRaw(ctx, codeName)
	if err != nil {
		return nil, err
	}

	scoreValues, ok := vectorindex.MetaStrings(metadata, "scores")
	if !ok {
		return nil, &ErrMalformed{Reason: "scores array absent"}
	}
	explanations, _ := vectorindex.MetaStrings(metadata, "explanations")
	contexts, _ := vectorindex.MetaStrings(metadata, "contexts")
	questions, _ := vectorindex.MetaStrings(metadata, "questions")
	questionIDs, hasIDs := vectorindex.MetaStrings(metadata, "questionIds")

	answers := make([]types.Answer, len(scoreValues))
	for i := range scoreValues {
		answers[i] = types.Answer{
			QuestionID:  recordID(questionIDs, hasIDs, i),
			Question:    at(questions, i),
			Score:       scoreValues[i],
			Explanation: at(explanations, i),
			Context:     at(contexts, i),
		}
	}
	return answers, nil
}

// GetRaw returns the persisted metadata map untouched, for callers that
// expose the record as-is. Returns ErrNoRecord when absent.
func (s *Store) GetRaw(ctx context.Context, codeName string) (map[string]any, error) {
	metadata, found, err := s.index.Fetch(ctx, "", codeName)
	if err != nil {
		return nil, fmt.Errorf("fetching scores for %s: %w", codeName, err)
	}
	if !found {
		return nil, ErrNoRecord
	}
	return metadata, nil
}

// recordID resolves a question id from the stored array, falling back to
// the 1-based position for records written before ids were persisted.
func recordID(questionIDs []string, hasIDs bool, i int) int {
	if hasIDs && i < len(questionIDs) {
		if id, err := strconv.Atoi(questionIDs[i]); err == nil {
			return id
		}
	}
	return i + 1
}

// at reads arrays that may be shorter than the scores array without
// panicking; missing positions surface as empty strings.
func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
