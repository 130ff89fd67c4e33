// Package companies lists the known companies from the directory index.
package companies

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/jonathan/company-grader/internal/types"
	"github.com/jonathan/company-grader/internal/vectorindex"
)

// DefaultTopK bounds the listing query; the directory is enumerated with a
// zero-vector query the same way the scoring guide is.
const DefaultTopK = 50

// Index is the subset of the vector index client the directory needs.
type Index interface {
	Query(ctx context.Context, namespace string, vector []float64, topK int) ([]vectorindex.Match, error)
}

// Directory reads company records from the companies index.
type Directory struct {
	index Index
	topK  int
}

// NewDirectory creates a company directory client.
func NewDirectory(index Index, topK int) *Directory {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Directory{index: index, topK: topK}
}

// List returns all known companies sorted by numeric record id.
func (d *Directory) List(ctx context.Context) ([]types.CompanyRecord, error) {
	matches, err := d.index.Query(ctx, "", []float64{0}, d.topK)
	if err != nil {
		return nil, fmt.Errorf("querying companies: %w", err)
	}

	records := make([]types.CompanyRecord, 0, len(matches))
	for _, match := range matches {
		name := vectorindex.MetaString(match.Metadata, "name")
		if name == "" {
			name = "Unknown Company"
		}
		codeName := vectorindex.MetaString(match.Metadata, "code_name")
		if codeName == "" {
			codeName = types.CodeName(name)
		}
		records = append(records, types.CompanyRecord{
			ID:       match.ID,
			Name:     name,
			CodeName: codeName,
			IsReady:  vectorindex.MetaBool(match.Metadata, "is_ready"),
			IsGraded: vectorindex.MetaBool(match.Metadata, "is_graded"),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return numericID(records[i].ID) < numericID(records[j].ID)
	})
	return records, nil
}

// numericID orders ids numerically where possible; non-numeric ids sort
// last.
func numericID(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
