// Package domain contains core domain types for the ideation study.
package domain

import (
	"time"
)

// Participant represents a study participant identified by an opaque token.
type Participant struct {
	ParticipantID string     `json:"participant_id"`
	ConsentTime   *time.Time `json:"consent_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasConsented returns true if the participant went through the consent step.
func (p *Participant) HasConsented() bool {
	return p.ConsentTime != nil
}

// Baseline holds the pre-study questionnaire.
type Baseline struct {
	ParticipantID string
	GradeMajor    string
	CultureCourse string
	ChatbotExp    string
	Stress1W      string
	CreatedAt     time.Time
}

// MaterialChoice records which material direction the participant picked.
type MaterialChoice struct {
	ParticipantID   string
	ChosenDirection string
	ChosenLabel     string
	PageTime        string
	ChoiceTime      time.Time
	RTMs            *int64
	UserAgent       string
}

// PlanningInput is the pre-chat plan required from participants in the "pre" planning cell.
type PlanningInput struct {
	ParticipantID       string
	PlanGoal            string
	PlanAudienceContext string
	PlanElements        string
	PlanOutput          string
	CreatedAt           time.Time
}

// Validate checks the required planning fields.
func (p *PlanningInput) Validate() error {
	switch {
	case p.PlanGoal == "":
		return &ValidationError{Field: "plan_goal"}
	case p.PlanAudienceContext == "":
		return &ValidationError{Field: "plan_audience_context"}
	case p.PlanElements == "":
		return &ValidationError{Field: "plan_elements"}
	case p.PlanOutput == "":
		return &ValidationError{Field: "plan_output"}
	}
	return nil
}
