package dialogue

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/ideation-study/internal/domain"
)

func userTurns(texts ...string) []domain.TranscriptEntry {
	var entries []domain.TranscriptEntry
	for i, text := range texts {
		turn := i + 1
		entries = append(entries,
			domain.TranscriptEntry{Turn: turn, Role: domain.RoleUser, Text: text},
			domain.TranscriptEntry{Turn: turn, Role: domain.RoleAssistant, Text: "reply"},
		)
	}
	return entries
}

func TestNextReplyIsDeterministic(t *testing.T) {
	e := NewEngine(20, 10)

	a, err := e.NextReply(domain.PlanningPre, domain.FeedbackFocused, "hello", 1, nil)
	require.NoError(t, err)
	b, err := e.NextReply(domain.PlanningNone, domain.FeedbackFocused, "something else", 1, nil)
	require.NoError(t, err)

	assert.Equal(t, a, b, "planning and user text must not change the reply")
	assert.Equal(t, focusedScript.structured[1], a)
}

func TestNextReplySelectsFamilyByFeedback(t *testing.T) {
	e := NewEngine(20, 10)
	for turn := 1; turn <= 20; turn++ {
		focused, err := e.NextReply(domain.PlanningPre, domain.FeedbackFocused, "x", turn, nil)
		require.NoError(t, err)
		generic, err := e.NextReply(domain.PlanningPre, domain.FeedbackGeneric, "x", turn, nil)
		require.NoError(t, err)
		assert.NotEqual(t, focused, generic, "turn %d", turn)
	}
}

func TestSummaryInterpolatesMemory(t *testing.T) {
	e := NewEngine(20, 10)
	mem := Memory{
		SlotCarrier:    "A",
		SlotAudience:   "B",
		SlotElement:    "C",
		SlotAdjectives: "D",
		SlotConcept:    "E",
	}

	reply, err := e.NextReply(domain.PlanningNone, domain.FeedbackFocused, "", 10, mem)
	require.NoError(t, err)

	for _, v := range []string{"载体：A", "受众/场景：B", "核心元素：C", "气质：D", "概念句：E"} {
		assert.Contains(t, reply, v)
	}
	assert.NotContains(t, reply, "{")
	assert.NotContains(t, reply, Placeholder)
}

func TestSummaryWithoutMemoryUsesPlaceholders(t *testing.T) {
	e := NewEngine(20, 10)

	reply, err := e.NextReply(domain.PlanningNone, domain.FeedbackFocused, "", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(reply, Placeholder))
}

func TestSummaryWithPartialMemory(t *testing.T) {
	e := NewEngine(20, 10)
	mem := MemoryFromTranscript(userTurns("t1", "t2", "poster", "students"))

	reply, err := e.NextReply(domain.PlanningPre, domain.FeedbackFocused, "", 10, mem)
	require.NoError(t, err)
	assert.Contains(t, reply, "poster")
	assert.Contains(t, reply, "students")
	assert.Equal(t, 3, strings.Count(reply, Placeholder))
}

func TestGenericSummaryHasNoSlots(t *testing.T) {
	e := NewEngine(20, 10)
	reply, err := e.NextReply(domain.PlanningPre, domain.FeedbackGeneric, "", 10, Memory{SlotCarrier: "A"})
	require.NoError(t, err)
	assert.Equal(t, genericScript.structured[10], reply)
}

func TestOutOfScriptTurnsFallBack(t *testing.T) {
	e := NewEngine(25, 10)

	reply, err := e.NextReply(domain.PlanningPre, domain.FeedbackFocused, "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, focusedScript.structuredFallback, reply)

	reply, err = e.NextReply(domain.PlanningNone, domain.FeedbackGeneric, "", -3, nil)
	require.NoError(t, err)
	assert.Equal(t, genericScript.structuredFallback, reply)

	reply, err = e.NextReply(domain.PlanningPre, domain.FeedbackGeneric, "", 22, nil)
	require.NoError(t, err)
	assert.Equal(t, genericScript.reflectiveFallback, reply)

	reply, err = e.NextReply(domain.PlanningPre, domain.Feedback("unknown"), "", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, genericScript.structured[3], reply)
}

func TestCeilingExceeded(t *testing.T) {
	e := NewEngine(20, 10)

	_, err := e.NextReply(domain.PlanningPre, domain.FeedbackFocused, "", 20, nil)
	require.NoError(t, err)

	_, err = e.NextReply(domain.PlanningPre, domain.FeedbackFocused, "", 21, nil)
	assert.True(t, errors.Is(err, domain.ErrCeilingExceeded))
}

func TestMemoryFromTranscriptCapturesFixedTurns(t *testing.T) {
	mem := MemoryFromTranscript(userTurns("1", "2", " carrier ", "aud", "elem", "adj", "7", "concept", "9"))

	assert.Equal(t, Memory{
		SlotCarrier:    "carrier",
		SlotAudience:   "aud",
		SlotElement:    "elem",
		SlotAdjectives: "adj",
		SlotConcept:    "concept",
	}, mem)
}

func TestMemoryIgnoresAssistantEntries(t *testing.T) {
	entries := []domain.TranscriptEntry{
		{Turn: 3, Role: domain.RoleAssistant, Text: "not me"},
	}
	assert.Empty(t, MemoryFromTranscript(entries))
}

func TestNextTurnCountsUserEntries(t *testing.T) {
	assert.Equal(t, 1, NextTurn(nil))
	assert.Equal(t, 4, NextTurn(userTurns("a", "b", "c")))
}

func TestPhasesAndFinish(t *testing.T) {
	e := NewEngine(20, 10)

	assert.Equal(t, PhaseStructured, e.PhaseOf(1))
	assert.Equal(t, PhaseStructured, e.PhaseOf(10))
	assert.Equal(t, PhaseReflective, e.PhaseOf(11))
	assert.Equal(t, PhaseReflective, e.PhaseOf(20))
	assert.Equal(t, PhaseTerminal, e.PhaseOf(21))

	assert.False(t, e.CanFinish(9))
	assert.True(t, e.CanFinish(10))
	assert.True(t, e.CanFinish(20))
}
