// Package assignment implements quota-balanced condition assignment.
//
// Every participant is placed in one of the four (planning, feedback) cells
// the first time an assignment is requested. The cell is drawn uniformly from
// the cells that currently have the fewest participants, and once written it
// never changes.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/shared"
	"github.com/ashureev/ideation-study/internal/store"
)

// Recorder receives assignment events. Implemented by metrics.Metrics.
type Recorder interface {
	AssignmentCreated(cell domain.Cell)
}

// Engine resolves or creates a participant's permanent cell.
type Engine struct {
	repo     store.Repository
	policy   shared.RetryPolicy
	recorder Recorder
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used to break ties between cells.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock overrides the clock used for assignment timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetryPolicy bounds retries on database contention.
func WithRetryPolicy(policy shared.RetryPolicy) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithRecorder reports newly created assignments.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an assignment engine backed by repo.
func NewEngine(repo store.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		policy: shared.DefaultRetryPolicy,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveOrAssign returns the participant's cell, assigning one if needed.
// Contention is retried according to the engine's policy; if it persists the
// error wraps domain.ErrConcurrencyConflict.
func (e *Engine) ResolveOrAssign(ctx context.Context, participantID string) (domain.Cell, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return domain.Cell{}, &domain.ValidationError{Field: "participant_id"}
	}

	var (
		assignment *domain.ConditionAssignment
		created    bool
	)
	err := shared.RetryOnConflict(ctx, e.policy, "assign condition", isConflict, func() error {
		var err error
		assignment, created, err = e.repo.AssignCondition(ctx, participantID, e.now(), e.pick)
		return err
	})
	if err != nil {
		if isConflict(err) {
			slog.Warn("Assignment contention persisted", "participant_id", participantID, "error", err)
		} else {
			slog.Error("Assignment failed", "participant_id", participantID, "error", err)
		}
		return domain.Cell{}, fmt.Errorf("resolve condition for %s: %w", participantID, err)
	}

	if created {
		slog.Info("Condition assigned",
			"participant_id", participantID,
			"planning", assignment.Cell.Planning,
			"feedback", assignment.Cell.Feedback)
		if e.recorder != nil {
			e.recorder.AssignmentCreated(assignment.Cell)
		}
	}
	return assignment.Cell, nil
}

// Lookup returns the participant's cell without assigning one.
func (e *Engine) Lookup(ctx context.Context, participantID string) (*domain.ConditionAssignment, error) {
	return e.repo.GetAssignment(ctx, participantID)
}

func (e *Engine) pick(counts map[domain.Cell]int) domain.Cell {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return PickCell(counts, e.rng)
}

// PickCell draws uniformly among the cells tied for the minimum count.
// Cells missing from counts are treated as empty.
func PickCell(counts map[domain.Cell]int, rng *rand.Rand) domain.Cell {
	cells := domain.AllCells()

	minCount := -1
	var candidates []domain.Cell
	for _, c := range cells {
		n := counts[c]
		switch {
		case minCount < 0 || n < minCount:
			minCount = n
			candidates = append(candidates[:0], c)
		case n == minCount:
			candidates = append(candidates, c)
		}
	}
	return candidates[rng.IntN(len(candidates))]
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConcurrencyConflict)
}
