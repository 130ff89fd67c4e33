package grading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/company-grader/internal/evidence"
	"github.com/jonathan/company-grader/internal/llm"
	"github.com/jonathan/company-grader/internal/scores"
	"github.com/jonathan/company-grader/internal/types"
)

// DefaultEvidenceWorkers bounds the evidence-retrieval fan-out.
const DefaultEvidenceWorkers = 4

// DefaultRunTimeout caps one detached grading run.
const DefaultRunTimeout = 10 * time.Minute

// Catalog provides the questionnaire.
type Catalog interface {
	Questions(ctx context.Context) ([]types.Question, error)
}

// Evidence retrieves supporting passages for one question.
type Evidence interface {
	ForQuestion(ctx context.Context, codeName string, question types.Question) ([]types.EvidenceItem, error)
}

// ScoreStore persists and retrieves graded results.
type ScoreStore interface {
	Get(ctx context.Context, codeName string) ([]types.Answer, error)
	Put(ctx context.Context, codeName string, answers []types.Answer) error
}

// Orchestrator runs the full grading sequence for one company: cache
// check, catalog fetch, per-question evidence retrieval, per-question
// generation, parsing and persistence.
type Orchestrator struct {
	catalog    Catalog
	evidence   Evidence
	store      ScoreStore
	generator  llm.Generator
	workers    int
	runTimeout time.Duration

	flight singleflight.Group
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Catalog   Catalog
	Evidence  Evidence
	Store     ScoreStore
	Generator llm.Generator
	// EvidenceWorkers bounds concurrent evidence retrieval; defaults to
	// DefaultEvidenceWorkers.
	EvidenceWorkers int
	// RunTimeout caps one full grading run; defaults to DefaultRunTimeout.
	RunTimeout time.Duration
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	workers := cfg.EvidenceWorkers
	if workers <= 0 {
		workers = DefaultEvidenceWorkers
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Orchestrator{
		catalog:    cfg.Catalog,
		evidence:   cfg.Evidence,
		store:      cfg.Store,
		generator:  cfg.Generator,
		workers:    workers,
		runTimeout: runTimeout,
	}
}

// Grade returns the ordered answer list for a company, computing and
// persisting it on first request and serving the persisted copy afterwards.
// Concurrent first-time requests for the same code name share one run. The
// shared run is detached from the initiating request's context so one caller
// disconnecting cannot abort the run for the others; a caller whose own
// context ends returns immediately while the run continues to completion
// under the run timeout.
func (o *Orchestrator) Grade(ctx context.Context, codeName string) ([]types.Answer, error) {
	ch := o.flight.DoChan(codeName, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
		defer cancel()
		return o.grade(runCtx, codeName)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.([]types.Answer), nil
	}
}

func (o *Orchestrator) grade(ctx context.Context, codeName string) ([]types.Answer, error) {
	// Idempotent read path: a graded company is never regraded.
	cached, err := o.store.Get(ctx, codeName)
	if err == nil && len(cached) > 0 {
		log.Printf("[grading] %s: serving %d persisted answers", codeName, len(cached))
		return cached, nil
	}
	if err != nil && !recoverableCacheMiss(err) {
		return nil, fmt.Errorf("checking persisted scores: %w", err)
	}

	questions, err := o.catalog.Questions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching question catalog: %w", err)
	}
	log.Printf("[grading] %s: grading %d questions", codeName, len(questions))

	evidenceByQuestion, err := o.fetchEvidence(ctx, codeName, questions)
	if err != nil {
		return nil, err
	}

	system := BuildSystemPrompt(questions)
	answers := make([]types.Answer, 0, len(questions))
	for i, question := range questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		block := evidence.FormatBlock(question.ID, evidenceByQuestion[i])
		parsed := o.gradeQuestion(ctx, system, question, block)
		answers = append(answers, types.Answer{
			QuestionID:  question.ID,
			Question:    question.Text,
			Score:       parsed.Score,
			Explanation: parsed.Explanation,
			Context:     parsed.Context,
		})
	}

	if err := o.store.Put(ctx, codeName, answers); err != nil {
		return nil, fmt.Errorf("persisting scores: %w", err)
	}
	log.Printf("[grading] %s: persisted %d answers", codeName, len(answers))
	return answers, nil
}

// fetchEvidence retrieves evidence for every question with a bounded
// fan-out. Results stay indexed by question position so no question's
// evidence can leak into another's prompt. Any retrieval failure aborts
// the run.
func (o *Orchestrator) fetchEvidence(ctx context.Context, codeName string, questions []types.Question) ([][]types.EvidenceItem, error) {
	evidenceByQuestion := make([][]types.EvidenceItem, len(questions))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)
	for i, question := range questions {
		i, question := i, question
		group.Go(func() error {
			items, err := o.evidence.ForQuestion(groupCtx, codeName, question)
			if err != nil {
				return err
			}
			evidenceByQuestion[i] = items
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("retrieving evidence: %w", err)
	}
	return evidenceByQuestion, nil
}

// gradeQuestion runs one generation call and parses the response. A failed
// call records the sentinel triple instead of aborting the remaining
// questions, so one bad call cannot discard prior work.
func (o *Orchestrator) gradeQuestion(ctx context.Context, system string, question types.Question, evidenceBlock string) Parsed {
	raw, err := o.generator.Generate(ctx, system, BuildUserMessage(question, evidenceBlock))
	if err != nil {
		log.Printf("[grading] question %d: generation failed: %v", question.ID, err)
		return Sentinel()
	}
	return Parse(raw)
}

// recoverableCacheMiss reports whether a cache-check error means "compute
// from scratch" rather than "fail the run". An absent or malformed record
// is a miss; network failures are not, the store is needed again for the
// final upsert.
func recoverableCacheMiss(err error) bool {
	var malformed *scores.ErrMalformed
	return errors.Is(err, scores.ErrNoRecord) || errors.As(err, &malformed)
}
