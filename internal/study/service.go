// Package study orchestrates a participant's path through the study.
//
// The service ties the participant store, the assignment engine, the dialogue
// script and the follow-up gate together. Every method is request scoped; the
// only state kept between calls is the set of in-flight chat sends.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/ideation-study/internal/assignment"
	"github.com/ashureev/ideation-study/internal/dialogue"
	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/eligibility"
	"github.com/ashureev/ideation-study/internal/store"
)

// Recorder receives study events. Implemented by metrics.Metrics.
type Recorder interface {
	TurnRecorded(feedback domain.Feedback, phase string)
	ChatRejected(reason string)
	SurveySubmitted(stage domain.Stage)
}

type noopRecorder struct{}

func (noopRecorder) TurnRecorded(domain.Feedback, string) {}
func (noopRecorder) ChatRejected(string)                  {}
func (noopRecorder) SurveySubmitted(domain.Stage)         {}

// Rejection reasons reported to the Recorder.
const (
	RejectInFlight         = "in_flight"
	RejectPlanningRequired = "planning_required"
	RejectMaxTurns         = "max_turns_reached"
	RejectConflict         = "conflict"
)

// ChatReply is the result of a successful chat send.
type ChatReply struct {
	Turn      int    `json:"turn_id"`
	Assistant string `json:"assistant"`
	CanFinish bool   `json:"can_finish"`
	Threshold int    `json:"t1_threshold"`
	MaxTurns  int    `json:"max_turns"`
}

// ChatState describes where a participant is in the chat.
type ChatState struct {
	ParticipantID    string                   `json:"participant_id"`
	Planning         domain.Planning          `json:"planning"`
	Feedback         domain.Feedback          `json:"feedback"`
	UserTurns        int                      `json:"user_turns"`
	PlanningRequired bool                     `json:"planning_required"`
	CanFinish        bool                     `json:"can_finish"`
	Finished         bool                     `json:"finished"`
	Threshold        int                      `json:"t1_threshold"`
	MaxTurns         int                      `json:"max_turns"`
	Transcript       []domain.TranscriptEntry `json:"transcript"`
}

// Service runs the study flow for one deployment.
type Service struct {
	repo     store.Repository
	assign   *assignment.Engine
	script   *dialogue.Engine
	gate     *eligibility.Gate
	recorder Recorder
	now      func() time.Time
	newID    func() string

	// chatLocks holds one mutex per participant; entries are never removed.
	chatLocks sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how consent mints participant ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithRecorder reports chat and survey events.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a study service.
func NewService(repo store.Repository, assign *assignment.Engine, script *dialogue.Engine, gate *eligibility.Gate, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		assign:   assign,
		script:   script,
		gate:     gate,
		recorder: noopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireID(participantID string) (string, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return "", &domain.ValidationError{Field: "participant_id"}
	}
	return participantID, nil
}

// Consent records consent and returns the participant id. An empty id mints
// a new one; an existing participant keeps its first consent time.
func (s *Service) Consent(ctx context.Context, participantID string) (string, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		participantID = s.newID()
	}
	if err := s.repo.RecordConsent(ctx, participantID, s.now()); err != nil {
		return "", fmt.Errorf("record consent: %w", err)
	}
	slog.Info("Participant consented", "participant_id", participantID)
	return participantID, nil
}

// Participant returns the participant, creating it on first contact.
func (s *Service) Participant(ctx context.Context, participantID string) (*domain.Participant, error) {
	participantID, err := requireID(participantID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.EnsureParticipant(ctx, participantID, s.now()); err != nil {
		return nil, fmt.Errorf("ensure participant: %w", err)
	}
	p, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("participant %s: %w", participantID, domain.ErrNotFound)
	}
	return p, nil
}

// SubmitBaseline stores the baseline questionnaire.
func (s *Service) SubmitBaseline(ctx context.Context, b domain.Baseline) error {
	id, err := requireID(b.ParticipantID)
	if err != nil {
		return err
	}
	b.ParticipantID = id
	b.GradeMajor = strings.TrimSpace(b.GradeMajor)
	if b.GradeMajor == "" {
		return &domain.ValidationError{Field: "grade_major"}
	}
	b.CultureCourse = strings.TrimSpace(b.CultureCourse)
	b.ChatbotExp = strings.TrimSpace(b.ChatbotExp)
	b.Stress1W = strings.TrimSpace(b.Stress1W)
	b.CreatedAt = s.now()

	if err := s.repo.UpsertBaseline(ctx, &b); err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}
	return nil
}

// SubmitMaterialChoice stores the material choice and assigns the
// participant's condition.
func (s *Service) SubmitMaterialChoice(ctx context.Context, m domain.MaterialChoice) (domain.Cell, error) {
	id, err := requireID(m.ParticipantID)
	if err != nil {
		return domain.Cell{}, err
	}
	m.ParticipantID = id
	m.ChosenDirection = strings.TrimSpace(m.ChosenDirection)
	if m.ChosenDirection == "" {
		return domain.Cell{}, &domain.ValidationError{Field: "choice"}
	}
	m.ChoiceTime = s.now()

	if err := s.repo.UpsertMaterialChoice(ctx, &m); err != nil {
		return domain.Cell{}, fmt.Errorf("save material choice: %w", err)
	}
	return s.assign.ResolveOrAssign(ctx, id)
}

// Condition returns the participant's cell, assigning one if needed.
func (s *Service) Condition(ctx context.Context, participantID string) (domain.Cell, error) {
	return s.assign.ResolveOrAssign(ctx, participantID)
}

// SubmitPlanning stores the plan of a participant in the planning cell.
func (s *Service) SubmitPlanning(ctx context.Context, p domain.PlanningInput) error {
	id, err := requireID(p.ParticipantID)
	if err != nil {
		return err
	}
	p.ParticipantID = id
	p.PlanGoal = strings.TrimSpace(p.PlanGoal)
	p.PlanAudienceContext = strings.TrimSpace(p.PlanAudienceContext)
	p.PlanElements = strings.TrimSpace(p.PlanElements)
	p.PlanOutput = strings.TrimSpace(p.PlanOutput)

	cell, err := s.assign.ResolveOrAssign(ctx, id)
	if err != nil {
		return err
	}
	if cell.Planning != domain.PlanningPre {
		return domain.ErrPlanningNotRequired
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.CreatedAt = s.now()

	if err := s.repo.UpsertPlanningInput(ctx, &p); err != nil {
		return fmt.Errorf("save planning input: %w", err)
	}
	return nil
}

// ChatState returns the participant's condition and progress.
func (s *Service) ChatState(ctx context.Context, participantID string) (*ChatState, error) {
	id, err := requireID(participantID)
	if err != nil {
		return nil, err
	}
	cell, err := s.assign.ResolveOrAssign(ctx, id)
	if err != nil {
		return nil, err
	}

	planningRequired := false
	if cell.Planning == domain.PlanningPre {
		done, err := s.repo.HasPlanningInput(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check planning input: %w", err)
		}
		planningRequired = !done
	}

	entries, err := s.repo.ListTranscript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	if entries == nil {
		entries = []domain.TranscriptEntry{}
	}
	userTurns := dialogue.NextTurn(entries) - 1

	return &ChatState{
		ParticipantID:    id,
		Planning:         cell.Planning,
		Feedback:         cell.Feedback,
		UserTurns:        userTurns,
		PlanningRequired: planningRequired,
		CanFinish:        s.script.CanFinish(userTurns),
		Finished:         userTurns >= s.script.MaxTurns(),
		Threshold:        s.script.Stage1Threshold(),
		MaxTurns:         s.script.MaxTurns(),
		Transcript:       entries,
	}, nil
}

// SendChat records one user line and its scripted reply.
//
// Concurrent sends for the same participant are refused with
// domain.ErrConcurrencyConflict. A send past the ceiling fails with
// domain.ErrCeilingExceeded and writes nothing.
func (s *Service) SendChat(ctx context.Context, participantID, text string) (*ChatReply, error) {
	id, err := requireID(participantID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.ValidationError{Field: "text"}
	}

	lock, _ := s.chatLocks.LoadOrStore(id, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	if !mutex.TryLock() {
		slog.Warn("Chat send already in progress", "participant_id", id)
		s.recorder.ChatRejected(RejectInFlight)
		return nil, fmt.Errorf("chat send for %s: %w", id, domain.ErrConcurrencyConflict)
	}
	defer mutex.Unlock()

	cell, err := s.assign.ResolveOrAssign(ctx, id)
	if err != nil {
		return nil, err
	}

	if cell.Planning == domain.PlanningPre {
		done, err := s.repo.HasPlanningInput(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check planning input: %w", err)
		}
		if !done {
			s.recorder.ChatRejected(RejectPlanningRequired)
			return nil, domain.ErrPlanningRequired
		}
	}

	entries, err := s.repo.ListTranscript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	turn := dialogue.NextTurn(entries)

	reply, err := s.script.NextReply(cell.Planning, cell.Feedback, text, turn, dialogue.MemoryFromTranscript(entries))
	if err != nil {
		if errors.Is(err, domain.ErrCeilingExceeded) {
			slog.Info("Chat ceiling reached", "participant_id", id, "turn", turn)
			s.recorder.ChatRejected(RejectMaxTurns)
		}
		return nil, err
	}

	err = s.repo.AppendTurn(ctx, domain.TurnPair{
		ParticipantID: id,
		Turn:          turn,
		UserText:      text,
		AssistantText: reply,
		Timestamp:     s.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			slog.Warn("Chat turn conflict", "participant_id", id, "turn", turn, "error", err)
			s.recorder.ChatRejected(RejectConflict)
		} else {
			slog.Error("Failed to append chat turn", "participant_id", id, "turn", turn, "error", err)
		}
		return nil, fmt.Errorf("append turn: %w", err)
	}

	phase := s.script.PhaseOf(turn)
	s.recorder.TurnRecorded(cell.Feedback, string(phase))
	slog.Debug("Chat turn recorded",
		"participant_id", id,
		"turn", turn,
		"feedback", cell.Feedback,
		"phase", phase)

	return &ChatReply{
		Turn:      turn,
		Assistant: reply,
		CanFinish: s.script.CanFinish(turn),
		Threshold: s.script.Stage1Threshold(),
		MaxTurns:  s.script.MaxTurns(),
	}, nil
}

// Eligibility reports whether the participant may take the follow-up survey.
func (s *Service) Eligibility(ctx context.Context, participantID string) (eligibility.Decision, error) {
	return s.gate.Check(ctx, participantID)
}

// SubmitStage1 stores the stage-1 survey. It can be submitted once.
func (s *Service) SubmitStage1(ctx context.Context, participantID string, answers map[string]string) error {
	return s.submitSurvey(ctx, participantID, domain.Stage1, answers)
}

// SubmitStage2 stores the follow-up survey once the gate is open. A closed
// gate returns the decision together with domain.ErrNotEligible.
func (s *Service) SubmitStage2(ctx context.Context, participantID string, answers map[string]string) (eligibility.Decision, error) {
	d, err := s.gate.Check(ctx, participantID)
	if err != nil {
		return d, err
	}
	if !d.Eligible {
		return d, fmt.Errorf("follow-up for %s (%s): %w", participantID, d.Reason, domain.ErrNotEligible)
	}
	return d, s.submitSurvey(ctx, participantID, domain.Stage2, answers)
}

func (s *Service) submitSurvey(ctx context.Context, participantID string, stage domain.Stage, answers map[string]string) error {
	id, err := requireID(participantID)
	if err != nil {
		return err
	}
	sub := domain.NewSurveySubmission(id, stage, answers, s.now())
	if err := s.repo.InsertSurvey(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			slog.Info("Survey resubmission refused", "participant_id", id, "stage", stage.String())
		}
		return fmt.Errorf("save survey %s: %w", stage, err)
	}
	s.recorder.SurveySubmitted(stage)
	slog.Info("Survey submitted", "participant_id", id, "stage", stage.String())
	return nil
}

// Counts returns the row count of every export table.
func (s *Service) Counts(ctx context.Context) (map[string]int64, error) {
	return s.repo.TableCounts(ctx)
}

// Ping verifies the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
