// Package dialogue implements the turn-indexed scripted chat.
//
// Replies are a pure function of the participant's feedback condition, the
// turn index and a slot memory derived from the participant's own earlier
// turns. Nothing about the content of user input changes which line is
// produced; user text is only captured verbatim into the memory slots.
package dialogue

import (
	"fmt"
	"strings"

	"github.com/ashureev/ideation-study/internal/domain"
)

// StructuredTurns is the last turn of the structured ideation phase.
const StructuredTurns = 10

// summaryTurn interpolates the captured slots.
const summaryTurn = 10

// Slot names a remembered participant answer.
type Slot string

const (
	SlotCarrier    Slot = "carrier"
	SlotAudience   Slot = "aud"
	SlotElement    Slot = "elem"
	SlotAdjectives Slot = "adj"
	SlotConcept    Slot = "concept"
)

// captureTurns maps the user turn whose text fills each slot.
var captureTurns = map[int]Slot{
	3: SlotCarrier,
	4: SlotAudience,
	5: SlotElement,
	6: SlotAdjectives,
	8: SlotConcept,
}

// Memory holds slot values for one participant. A nil Memory is valid and empty.
type Memory map[Slot]string

// Get returns the slot value or the placeholder.
func (m Memory) Get(s Slot) string {
	if v, ok := m[s]; ok && v != "" {
		return v
	}
	return Placeholder
}

// MemoryFromTranscript rebuilds the slot memory from the participant's log.
func MemoryFromTranscript(entries []domain.TranscriptEntry) Memory {
	mem := make(Memory)
	for _, e := range entries {
		if e.Role != domain.RoleUser {
			continue
		}
		if slot, ok := captureTurns[e.Turn]; ok {
			mem[slot] = strings.TrimSpace(e.Text)
		}
	}
	return mem
}

// NextTurn derives the next turn index from the participant's log.
func NextTurn(entries []domain.TranscriptEntry) int {
	n := 0
	for _, e := range entries {
		if e.Role == domain.RoleUser {
			n++
		}
	}
	return n + 1
}

// Phase is the script phase a turn belongs to.
type Phase string

const (
	PhaseStructured Phase = "structured"
	PhaseReflective Phase = "reflective"
	PhaseTerminal   Phase = "terminal"
)

// Engine produces scripted replies within a turn ceiling.
type Engine struct {
	maxTurns        int
	stage1Threshold int
}

// NewEngine creates an engine. Non-positive values fall back to 20 and 10.
func NewEngine(maxTurns, stage1Threshold int) *Engine {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if stage1Threshold <= 0 {
		stage1Threshold = StructuredTurns
	}
	return &Engine{maxTurns: maxTurns, stage1Threshold: stage1Threshold}
}

// MaxTurns returns the turn ceiling.
func (e *Engine) MaxTurns() int { return e.maxTurns }

// Stage1Threshold returns the turn from which stage 1 may be finished.
func (e *Engine) Stage1Threshold() int { return e.stage1Threshold }

// PhaseOf returns the phase of turn.
func (e *Engine) PhaseOf(turn int) Phase {
	switch {
	case turn > e.maxTurns:
		return PhaseTerminal
	case turn <= StructuredTurns:
		return PhaseStructured
	default:
		return PhaseReflective
	}
}

// CanFinish reports whether the participant may move on to the stage-1 survey after turn.
func (e *Engine) CanFinish(turn int) bool {
	return turn >= e.stage1Threshold
}

// NextReply returns the scripted reply for turn.
//
// planning is accepted for interface stability but does not select text.
// userText is not inspected; memory capture happens from the stored
// transcript. mem may be nil, in which case summary slots render as
// placeholders. Only a turn above the ceiling is an error.
func (e *Engine) NextReply(planning domain.Planning, feedback domain.Feedback, userText string, turn int, mem Memory) (string, error) {
	if turn > e.maxTurns {
		return "", fmt.Errorf("turn %d exceeds %d: %w", turn, e.maxTurns, domain.ErrCeilingExceeded)
	}

	s := scriptFor(feedback)
	if turn <= StructuredTurns {
		line, ok := s.structured[turn]
		if !ok {
			return s.structuredFallback, nil
		}
		if turn == summaryTurn && feedback == domain.FeedbackFocused {
			return renderSummary(line, mem), nil
		}
		return line, nil
	}

	if line, ok := s.reflective[turn]; ok {
		return line, nil
	}
	return s.reflectiveFallback, nil
}

func renderSummary(template string, mem Memory) string {
	return strings.NewReplacer(
		"{carrier}", mem.Get(SlotCarrier),
		"{aud}", mem.Get(SlotAudience),
		"{elem}", mem.Get(SlotElement),
		"{adj}", mem.Get(SlotAdjectives),
		"{concept}", mem.Get(SlotConcept),
	).Replace(template)
}
