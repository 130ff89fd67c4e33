package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/company-grader/internal/scores"
	"github.com/jonathan/company-grader/internal/types"
)

type fakeCatalog struct {
	questions []types.Question
	err       error
	calls     int
}

func (f *fakeCatalog) Questions(context.Context) ([]types.Question, error) {
	f.calls++
	return f.questions, f.err
}

type fakeEvidence struct {
	mu      sync.Mutex
	perCall map[int][]types.EvidenceItem
	err     error
	calls   int
}

func (f *fakeEvidence) ForQuestion(_ context.Context, _ string, question types.Question) ([]types.EvidenceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.perCall[question.ID], nil
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string][]types.Answer
	getErr  error
	putErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string][]types.Answer)}
}

func (f *fakeStore) Get(_ context.Context, codeName string) ([]types.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	answers, ok := f.records[codeName]
	if !ok {
		return nil, scores.ErrNoRecord
	}
	return answers, nil
}

func (f *fakeStore) Put(_ context.Context, codeName string, answers []types.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.records[codeName] = answers
	return nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

type fakeGenerator struct {
	mu       sync.Mutex
	response func(user string) (string, error)
	calls    int
	users    []string
	systems  []string
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.response == nil {
		return "---\nScore: 2\nExplanation: good fit\nContext: [Doc A: 4]", nil
	}
	return f.response(user)
}

func testQuestions(n int) []types.Question {
	questions := make([]types.Question, n)
	for i := range questions {
		questions[i] = types.Question{
			ID:   i + 1,
			Text: fmt.Sprintf("question %d", i+1),
			Type: types.TypeGraded,
		}
	}
	return questions
}

func newTestOrchestrator(catalog *fakeCatalog, ev *fakeEvidence, store *fakeStore, gen *fakeGenerator) *Orchestrator {
	return New(Config{
		Catalog:   catalog,
		Evidence:  ev,
		Store:     store,
		Generator: gen,
	})
}

// TestGrade_FullRun tests the compute path end to end
func TestGrade_FullRun(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(3)}
	ev := &fakeEvidence{perCall: map[int][]types.EvidenceItem{
		1: {{Text: "passage", SourceDocument: "a.pdf", PageNumber: "1", Similarity: 0.9, QuestionID: 1}},
	}}
	store := newFakeStore()
	gen := &fakeGenerator{}
	o := newTestOrchestrator(catalog, ev, store, gen)

	answers, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)

	require.Len(t, answers, 3)
	for i, answer := range answers {
		assert.Equal(t, i+1, answer.QuestionID)
		assert.Equal(t, "2", answer.Score)
		assert.Equal(t, "good fit", answer.Explanation)
	}
	assert.Equal(t, 3, ev.calls)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, answers, store.records["acme--corp"])

	// Every user message carries its own question's evidence only.
	assert.Contains(t, gen.users[0], "Context for question 1:")
	assert.Contains(t, gen.users[0], "passage")
	assert.Contains(t, gen.users[1], "Context for question 2:")
	assert.NotContains(t, gen.users[1], "passage")

	// System prompt embeds the full catalog.
	assert.Contains(t, gen.systems[0], `"question": "question 3"`)
}

// TestGrade_CachedResultIsVerbatim tests the idempotent read path: no
// generation calls on the second request
func TestGrade_CachedResultIsVerbatim(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(2)}
	store := newFakeStore()
	gen := &fakeGenerator{}
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, gen)

	first, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)
	require.Equal(t, 2, gen.calls)

	second, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, gen.calls, "cached read must not invoke the generator")
	assert.Equal(t, 1, store.puts)
}

// TestGrade_AllGenerationsFail still yields one answer per question,
// every one the sentinel triple
func TestGrade_AllGenerationsFail(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(5)}
	gen := &fakeGenerator{response: func(string) (string, error) {
		return "", errors.New("model overloaded")
	}}
	store := newFakeStore()
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, gen)

	answers, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)
	require.Len(t, answers, 5)
	seen := make(map[int]bool)
	for _, answer := range answers {
		assert.False(t, seen[answer.QuestionID], "duplicate question id")
		seen[answer.QuestionID] = true
		assert.Equal(t, SentinelScore, answer.Score)
		assert.Equal(t, SentinelExplanation, answer.Explanation)
		assert.Equal(t, SentinelContext, answer.Context)
	}
	assert.Equal(t, 1, store.puts, "sentinel-only runs still persist")
}

// TestGrade_SingleGenerationFailureIsolated records the sentinel for the
// failing question and grades the rest
func TestGrade_SingleGenerationFailureIsolated(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(3)}
	gen := &fakeGenerator{response: func(user string) (string, error) {
		if strings.Contains(user, "Question 2:") {
			return "", errors.New("transient failure")
		}
		return "---\nScore: 1\nExplanation: ok\nContext: [A: 1]", nil
	}}
	o := newTestOrchestrator(catalog, &fakeEvidence{}, newFakeStore(), gen)

	answers, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, "1", answers[0].Score)
	assert.Equal(t, SentinelScore, answers[1].Score)
	assert.Equal(t, "1", answers[2].Score)
}

// TestGrade_UnparsableOutputYieldsSentinel covers template violations
func TestGrade_UnparsableOutputYieldsSentinel(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(1)}
	gen := &fakeGenerator{response: func(string) (string, error) {
		return "I think the score is 2.", nil
	}}
	o := newTestOrchestrator(catalog, &fakeEvidence{}, newFakeStore(), gen)

	answers, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, SentinelScore, answers[0].Score)
}

// TestGrade_CatalogFailureIsFatal aborts the run with no persistence
func TestGrade_CatalogFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("empty catalog")}
	store := newFakeStore()
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, &fakeGenerator{})

	_, err := o.Grade(context.Background(), "acme--corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching question catalog")
	assert.Equal(t, 0, store.puts)
}

// TestGrade_EvidenceFailureIsFatal aborts before any generation
func TestGrade_EvidenceFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(3)}
	ev := &fakeEvidence{err: errors.New("namespace unavailable")}
	store := newFakeStore()
	gen := &fakeGenerator{}
	o := newTestOrchestrator(catalog, ev, store, gen)

	_, err := o.Grade(context.Background(), "acme--corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieving evidence")
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, store.puts)
}

// TestGrade_PersistFailureIsFatal surfaces upsert errors
func TestGrade_PersistFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(1)}
	store := newFakeStore()
	store.putErr = errors.New("index unavailable")
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, &fakeGenerator{})

	_, err := o.Grade(context.Background(), "acme--corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting scores")
}

// TestGrade_MalformedRecordTriggersRecompute treats a bad persisted record
// as a cache miss
func TestGrade_MalformedRecordTriggersRecompute(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(1)}
	store := newFakeStore()
	store.getErr = &scores.ErrMalformed{Reason: "scores array absent"}
	gen := &fakeGenerator{}
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, gen)

	answers, err := o.Grade(context.Background(), "acme--corp")
	require.NoError(t, err)
	assert.Len(t, answers, 1)
	assert.Equal(t, 1, gen.calls)
}

// TestGrade_StoreNetworkFailureIsFatal does not start an expensive run
// when the score store is unreachable
func TestGrade_StoreNetworkFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	gen := &fakeGenerator{}
	o := newTestOrchestrator(&fakeCatalog{questions: testQuestions(1)}, &fakeEvidence{}, store, gen)

	_, err := o.Grade(context.Background(), "acme--corp")
	require.Error(t, err)
	assert.Equal(t, 0, gen.calls)
}

// blockingGenerator returns a generator that blocks its first call until
// release is closed, closing started once the run is underway.
func blockingGenerator(started, release chan struct{}) *fakeGenerator {
	var once sync.Once
	return &fakeGenerator{response: func(string) (string, error) {
		once.Do(func() {
			close(started)
			<-release
		})
		return "---\nScore: 2\nExplanation: good fit\nContext: [A: 1]", nil
	}}
}

// TestGrade_CallerCancellationDetachesRun returns the caller's own error
// immediately while the detached run continues and still persists
func TestGrade_CallerCancellationDetachesRun(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(3)}
	started := make(chan struct{})
	release := make(chan struct{})
	gen := blockingGenerator(started, release)
	store := newFakeStore()
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, gen)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := o.Grade(ctx, "acme--corp")
		errc <- err
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, store.putCount())

	close(release)
	assert.Eventually(t, func() bool { return store.putCount() == 1 },
		time.Second, 5*time.Millisecond, "detached run must finish and persist")
}

// TestGrade_WaiterSurvivesInitiatorCancellation keeps a piggybacked caller
// with a live context alive when the caller that started the run disconnects
func TestGrade_WaiterSurvivesInitiatorCancellation(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(3)}
	started := make(chan struct{})
	release := make(chan struct{})
	gen := blockingGenerator(started, release)
	store := newFakeStore()
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, gen)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := o.Grade(ctxA, "acme--corp")
		errA <- err
	}()
	<-started

	type graded struct {
		answers []types.Answer
		err     error
	}
	resB := make(chan graded, 1)
	go func() {
		answers, err := o.Grade(context.Background(), "acme--corp")
		resB <- graded{answers, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	require.Len(t, got.answers, 3)
	assert.Equal(t, "2", got.answers[0].Score)
	assert.Equal(t, 1, store.putCount())
}

// TestGrade_ConcurrentFirstRequests verifies two simultaneous first-time
// requests complete without error and the persisted record equals the
// result of exactly one run
func TestGrade_ConcurrentFirstRequests(t *testing.T) {
	catalog := &fakeCatalog{questions: testQuestions(4)}
	store := newFakeStore()
	gen := &fakeGenerator{}
	o := newTestOrchestrator(catalog, &fakeEvidence{}, store, gen)

	var wg sync.WaitGroup
	results := make([][]types.Answer, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Grade(context.Background(), "acme--corp")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1])

	persisted := store.records["acme--corp"]
	require.Len(t, persisted, 4)
	assert.Equal(t, persisted, results[0])
}
