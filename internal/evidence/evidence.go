// Package evidence retrieves per-question supporting passages from the
// company-namespaced vector index and renders them into prompt context
// blocks.
package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/company-grader/internal/llm"
	"github.com/jonathan/company-grader/internal/types"
	"github.com/jonathan/company-grader/internal/vectorindex"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 10

// Index is the subset of the vector index client the retriever needs.
type Index interface {
	Query(ctx context.Context, namespace string, vector []float64, topK int) ([]vectorindex.Match, error)
}

// Retriever embeds question text and queries the evidence index.
type Retriever struct {
	embedder llm.Embedder
	index    Index
	topK     int
}

// NewRetriever creates an evidence retriever. topK defaults to DefaultTopK.
func NewRetriever(embedder llm.Embedder, index Index, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// ForQuestion returns the top passages for one question from the company's
// namespace. Results carry the question id so callers can keep evidence
// strictly per-question.
func (r *Retriever) ForQuestion(ctx context.Context, codeName string, question types.Question) ([]types.EvidenceItem, error) {
	vector, err := r.embedder.Embed(ctx, question.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding question %d: %w", question.ID, err)
	}

	matches, err := r.index.Query(ctx, codeName, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("querying evidence for question %d: %w", question.ID, err)
	}

	items := make([]types.EvidenceItem, 0, len(matches))
	for _, match := range matches {
		items = append(items, types.EvidenceItem{
			ID:             match.ID,
			Text:           vectorindex.MetaString(match.Metadata, "text"),
			SourceDocument: vectorindex.MetaString(match.Metadata, "pdf_name"),
			PageNumber:     pageNumber(match.Metadata),
			Similarity:     match.Score,
			QuestionID:     question.ID,
		})
	}
	return items, nil
}

// pageNumber tolerates page_num stored as either string or number.
func pageNumber(metadata map[string]any) string {
	if s := vectorindex.MetaString(metadata, "page_num"); s != "" {
		return s
	}
	if n, ok := vectorindex.MetaInt(metadata, "page_num"); ok {
		return fmt.Sprintf("%d", n)
	}
	return ""
}

// FormatBlock renders the evidence block that goes into a question's user
// message. Each passage is cited as [doc: page] with its similarity printed
// to four decimal places.
func FormatBlock(questionID int, items []types.EvidenceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context for question %d:\n\n", questionID)
	for i, item := range items {
		fmt.Fprintf(&b, "Context %d: %s [%s: %s] (Similarity: %.4f)\n\n",
			i+1, item.Text, item.SourceDocument, item.PageNumber, item.Similarity)
	}
	return b.String()
}
