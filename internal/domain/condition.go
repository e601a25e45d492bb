package domain

import (
	"fmt"
	"time"
)

// Planning is the planning factor of the experiment.
type Planning string

const (
	PlanningPre  Planning = "pre"
	PlanningNone Planning = "none"
)

// Feedback is the feedback factor of the experiment.
type Feedback string

const (
	FeedbackFocused Feedback = "focused"
	FeedbackGeneric Feedback = "generic"
)

// Cell is one of the four fixed (planning, feedback) combinations.
type Cell struct {
	Planning Planning `json:"planning"`
	Feedback Feedback `json:"feedback"`
}

func (c Cell) String() string {
	return fmt.Sprintf("%s/%s", c.Planning, c.Feedback)
}

// Valid reports whether c is one of the known cells.
func (c Cell) Valid() bool {
	for _, known := range AllCells() {
		if c == known {
			return true
		}
	}
	return false
}

// AllCells returns the experimental cells in their canonical order.
func AllCells() []Cell {
	return []Cell{
		{Planning: PlanningPre, Feedback: FeedbackFocused},
		{Planning: PlanningPre, Feedback: FeedbackGeneric},
		{Planning: PlanningNone, Feedback: FeedbackFocused},
		{Planning: PlanningNone, Feedback: FeedbackGeneric},
	}
}

// ConditionAssignment is the permanent cell of a participant.
type ConditionAssignment struct {
	ParticipantID string    `json:"participant_id"`
	Cell          Cell      `json:"cell"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// RequiresPlanning returns true if the participant must submit a plan before chatting.
func (a *ConditionAssignment) RequiresPlanning() bool {
	return a.Cell.Planning == PlanningPre
}
