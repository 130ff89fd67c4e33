// Package catalog loads the fixed scoring-guide questionnaire from the
// vector index that stores it as metadata-only records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonathan/company-grader/internal/types"
	"github.com/jonathan/company-grader/internal/vectorindex"
)

// ErrEmptyCatalog indicates the scoring-guide index returned no questions.
// Grading is meaningless without a catalog, so callers treat this as fatal.
var ErrEmptyCatalog = errors.New("scoring guide catalog is empty")

// DefaultTopK matches the expected catalog size. The index has no listing
// primitive, so enumeration is a zero-vector query with K covering the
// whole record set.
const DefaultTopK = 40

// Index is the subset of the vector index client the catalog needs.
type Index interface {
	Query(ctx context.Context, namespace string, vector []float64, topK int) ([]vectorindex.Match, error)
}

// Client reads the questionnaire from the scoring-guide index.
type Client struct {
	index Index
	topK  int
}

// NewClient creates a catalog client. topK bounds the enumeration query and
// defaults to DefaultTopK.
func NewClient(index Index, topK int) *Client {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Client{index: index, topK: topK}
}

// Questions returns the full catalog sorted ascending by question id.
func (c *Client) Questions(ctx context.Context) ([]types.Question, error) {
	matches, err := c.index.Query(ctx, "", []float64{0}, c.topK)
	if err != nil {
		return nil, fmt.Errorf("querying scoring guide: %w", err)
	}

	questions := make([]types.Question, 0, len(matches))
	for _, match := range matches {
		id, ok := vectorindex.MetaInt(match.Metadata, "question_num")
		if !ok {
			// Records without a usable id cannot be ordered or graded.
			continue
		}
		questions = append(questions, types.Question{
			ID:          id,
			Text:        vectorindex.MetaString(match.Metadata, "question"),
			Type:        types.QuestionType(vectorindex.MetaString(match.Metadata, "type")),
			Criteria:    vectorindex.MetaString(match.Metadata, "criteria"),
			Guide:       vectorindex.MetaString(match.Metadata, "guide"),
			Definitions: vectorindex.MetaString(match.Metadata, "definitions"),
		})
	}
	if len(questions) == 0 {
		return nil, ErrEmptyCatalog
	}

	sort.Slice(questions, func(i, j int) bool {
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

// Source provides the questionnaire to the grading loop.
type Source interface {
	Questions(ctx context.Context) ([]types.Question, error)
}

// Cache wraps a Source with a loaded-once, shared, read-only copy. The
// catalog is global and identical for every company, so one fetch serves
// all requests until Invalidate is called.
type Cache struct {
	source Source

	mu        sync.RWMutex
	questions []types.Question
}

// NewCache creates a catalog cache over the given source.
func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

// Questions returns the cached catalog, loading it on first use.
func (c *Cache) Questions(ctx context.Context) ([]types.Question, error) {
	c.mu.RLock()
	if c.questions != nil {
		questions := c.questions
		c.mu.RUnlock()
		return questions, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.questions != nil {
		return c.questions, nil
	}

	questions, err := c.source.Questions(ctx)
	if err != nil {
		return nil, err
	}
	c.questions = questions
	return questions, nil
}

// Invalidate drops the cached catalog so the next read refetches it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.questions = nil
	c.mu.Unlock()
}
