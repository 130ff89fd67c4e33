package companies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/company-grader/internal/vectorindex"
)

type fakeIndex struct {
	matches []vectorindex.Match
	err     error
	gotTopK int
}

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float64, topK int) ([]vectorindex.Match, error) {
	f.gotTopK = topK
	return f.matches, f.err
}

// TestList maps metadata and sorts by numeric id
func TestList(t *testing.T) {
	index := &fakeIndex{matches: []vectorindex.Match{
		{
			ID: "2",
			Metadata: map[string]any{
				"name": "Beta Inc", "code_name": "beta--inc", "is_ready": true, "is_graded": false,
			},
		},
		{
			ID: "1",
			Metadata: map[string]any{
				"name": "Acme Corp", "code_name": "acme--corp", "is_ready": true, "is_graded": true,
			},
		},
	}}
	directory := NewDirectory(index, 0)

	records, err := directory.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, DefaultTopK, index.gotTopK)

	assert.Equal(t, "Acme Corp", records[0].Name)
	assert.Equal(t, "acme--corp", records[0].CodeName)
	assert.True(t, records[0].IsGraded)
	assert.Equal(t, "Beta Inc", records[1].Name)
	assert.False(t, records[1].IsGraded)
}

// TestList_Defaults fills missing metadata with fallbacks
func TestList_Defaults(t *testing.T) {
	index := &fakeIndex{matches: []vectorindex.Match{
		{ID: "1", Metadata: map[string]any{}},
		{ID: "2", Metadata: map[string]any{"name": "Acme Corp"}},
	}}
	directory := NewDirectory(index, 0)

	records, err := directory.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Unknown Company", records[0].Name)
	// Missing code names are derived from the display name.
	assert.Equal(t, "acme--corp", records[1].CodeName)
}

// TestList_Error propagates index failures
func TestList_Error(t *testing.T) {
	directory := NewDirectory(&fakeIndex{err: errors.New("unavailable")}, 0)
	_, err := directory.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}
