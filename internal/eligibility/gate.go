// Package eligibility decides when a participant may take the follow-up survey.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/ideation-study/internal/domain"
)

// Reason explains an eligibility decision.
type Reason string

const (
	ReasonStage1NotSubmitted Reason = "stage1_not_submitted"
	ReasonTimestampParse     Reason = "timestamp_parse_error"
	ReasonTooEarly           Reason = "too_early"
	ReasonOK                 Reason = "ok"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Eligible   bool       `json:"eligible"`
	EligibleAt *time.Time `json:"eligible_at,omitempty"`
	Reason     Reason     `json:"reason"`
}

// SurveyTimes reads stored survey submission timestamps.
type SurveyTimes interface {
	GetSurveyCreatedAt(ctx context.Context, participantID string, stage domain.Stage) (string, bool, error)
}

// Recorder receives eligibility decisions. Implemented by metrics.Metrics.
type Recorder interface {
	EligibilityChecked(reason string)
}

// Gate checks the follow-up delay against the stage-1 submission time.
type Gate struct {
	surveys  SurveyTimes
	delay    time.Duration
	now      func() time.Time
	recorder Recorder
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the clock used for the comparison.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithRecorder reports every decision.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// NewGate creates a gate that opens delay after stage 1 was submitted.
// A non-positive delay makes the follow-up available immediately.
func NewGate(surveys SurveyTimes, delay time.Duration, opts ...Option) *Gate {
	if delay < 0 {
		delay = 0
	}
	g := &Gate{surveys: surveys, delay: delay, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Delay returns the configured follow-up delay.
func (g *Gate) Delay() time.Duration { return g.delay }

// Check evaluates whether the participant may take the follow-up now.
// Storage failures are returned as errors; a malformed stored timestamp
// yields an ineligible decision instead.
func (g *Gate) Check(ctx context.Context, participantID string) (Decision, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Decision{}, &domain.ValidationError{Field: "participant_id"}
	}

	raw, ok, err := g.surveys.GetSurveyCreatedAt(ctx, participantID, domain.Stage1)
	if err != nil {
		return Decision{}, fmt.Errorf("read stage 1 submission for %s: %w", participantID, err)
	}

	d := g.decide(participantID, raw, ok)
	if g.recorder != nil {
		g.recorder.EligibilityChecked(string(d.Reason))
	}
	return d, nil
}

func (g *Gate) decide(participantID, raw string, submitted bool) Decision {
	if !submitted {
		return Decision{Reason: ReasonStage1NotSubmitted}
	}

	submittedAt, err := domain.ParseTimestamp(raw)
	if err != nil {
		slog.Warn("Stage 1 timestamp unreadable",
			"participant_id", participantID,
			"value", raw,
			"error", err)
		return Decision{Reason: ReasonTimestampParse}
	}

	eligibleAt := submittedAt.Add(g.delay).UTC()
	if g.now().Before(eligibleAt) {
		return Decision{EligibleAt: &eligibleAt, Reason: ReasonTooEarly}
	}
	return Decision{Eligible: true, EligibleAt: &eligibleAt, Reason: ReasonOK}
}
