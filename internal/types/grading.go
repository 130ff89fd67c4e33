// Package types defines the shared domain types for the company grading
// service: the scoring-guide questions, retrieved evidence, graded answers,
// and company directory records.
package types

import (
	"regexp"
	"strings"
)

// QuestionType describes how a question is expected to be answered.
type QuestionType string

// Question types supported by the scoring guide.
const (
	// TypeGraded questions are scored on a 1-2 scale.
	TypeGraded QuestionType = "graded-1-2"
	// TypeBoolean questions are answered true/false.
	TypeBoolean QuestionType = "boolean"
)

// Question is one entry of the fixed scoring-guide questionnaire.
// The full catalog is immutable once fetched and shared across companies;
// ID is the stable ordering key.
type Question struct {
	ID          int          `json:"id"`
	Text        string       `json:"question"`
	Type        QuestionType `json:"type"`
	Criteria    string       `json:"criteria"`
	Guide       string       `json:"guide"`
	Definitions string       `json:"definitions"`
}

// EvidenceItem is one retrieved passage supporting a single question.
// Items are produced fresh per grading run and only survive embedded in the
// final answer's context string.
type EvidenceItem struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	SourceDocument string  `json:"pdf_name"`
	PageNumber     string  `json:"page_num"`
	Similarity     float64 `json:"similarity"`
	QuestionID     int     `json:"questionId"`
}

// Answer is the graded result for one question. Score is opaque text: the
// model may legitimately produce "0", "1", "2", "true", "false" or "N/A",
// and no numeric validation is applied.
type Answer struct {
	QuestionID  int    `json:"questionId"`
	Question    string `json:"question"`
	Score       string `json:"score"`
	Explanation string `json:"explanation"`
	Context     string `json:"context"`
}

// CompanyRecord is one entry of the company directory. CodeName is the sole
// join key across the evidence namespace, the score record id and the UI.
type CompanyRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CodeName string `json:"code_name"`
	IsReady  bool   `json:"is_ready"`
	IsGraded bool   `json:"is_graded"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CodeName derives the slug used as evidence namespace and score record id
// from a display name: lowercase, each whitespace run replaced by a double
// hyphen. "Acme Corp" becomes "acme--corp".
func CodeName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	return whitespaceRun.ReplaceAllString(slug, "--")
}
