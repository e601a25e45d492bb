// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/ideation-study/internal/domain"
)

// CellPicker chooses a cell given the current per-cell assignment counts.
// It runs inside the assignment transaction and must not block.
type CellPicker func(counts map[domain.Cell]int) domain.Cell

// ExportTables lists the tables available to counts and export, in dump order.
var ExportTables = []string{
	"participants",
	"condition_assign",
	"baseline",
	"material_choice",
	"planning_input",
	"chat_log",
	"survey_t1",
	"survey_t2",
}

// IsExportTable reports whether name may be dumped.
func IsExportTable(name string) bool {
	for _, t := range ExportTables {
		if t == name {
			return true
		}
	}
	return false
}

// Repository defines the interface for persisting study data.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// GetParticipant retrieves a participant. Returns (nil, nil) if absent.
	GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error)

	// RecordConsent creates the participant with a consent time, or sets the
	// consent time on an existing participant that has none.
	RecordConsent(ctx context.Context, participantID string, at time.Time) error

	// EnsureParticipant creates the participant if it does not exist.
	EnsureParticipant(ctx context.Context, participantID string, now time.Time) error

	// GetAssignment retrieves the participant's condition. Returns (nil, nil) if unassigned.
	GetAssignment(ctx context.Context, participantID string) (*domain.ConditionAssignment, error)

	// AssignCondition returns the existing assignment or, inside one write
	// transaction, counts the cells, asks pick for one and persists it.
	// The boolean reports whether a new row was written.
	AssignCondition(ctx context.Context, participantID string, now time.Time, pick CellPicker) (*domain.ConditionAssignment, bool, error)

	// CountAssignments returns the number of participants per cell.
	CountAssignments(ctx context.Context) (map[domain.Cell]int, error)

	// UpsertBaseline creates or updates the baseline questionnaire.
	UpsertBaseline(ctx context.Context, b *domain.Baseline) error

	// UpsertMaterialChoice creates or updates the material choice.
	UpsertMaterialChoice(ctx context.Context, m *domain.MaterialChoice) error

	// UpsertPlanningInput creates or updates the planning input.
	UpsertPlanningInput(ctx context.Context, p *domain.PlanningInput) error

	// HasPlanningInput reports whether the participant submitted a plan.
	HasPlanningInput(ctx context.Context, participantID string) (bool, error)

	// ListTranscript returns the participant's chat log ordered by turn, user first.
	ListTranscript(ctx context.Context, participantID string) ([]domain.TranscriptEntry, error)

	// CountUserTurns returns the number of user-role entries for the participant.
	CountUserTurns(ctx context.Context, participantID string) (int, error)

	// AppendTurn writes both entries of a turn atomically. It fails with
	// domain.ErrConcurrencyConflict if pair.Turn is not the next turn.
	AppendTurn(ctx context.Context, pair domain.TurnPair) error

	// InsertSurvey writes a survey submission once. A second submission for
	// the same participant and stage fails with domain.ErrAlreadySubmitted.
	InsertSurvey(ctx context.Context, sub *domain.SurveySubmission) error

	// GetSurveyCreatedAt returns the raw stored submission timestamp.
	GetSurveyCreatedAt(ctx context.Context, participantID string, stage domain.Stage) (string, bool, error)

	// TableCounts returns the row count of every export table.
	TableCounts(ctx context.Context) (map[string]int64, error)

	// DumpTable returns the column names and stringified rows of an export table.
	DumpTable(ctx context.Context, table string) ([]string, [][]string, error)
}
