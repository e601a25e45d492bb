package domain

import (
	"time"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is a single line of the chat log.
type TranscriptEntry struct {
	ParticipantID string    `json:"participant_id"`
	Turn          int       `json:"turn_id"`
	Role          Role      `json:"role"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"ts"`
}

// TurnPair is a user line and its scripted reply, written together.
type TurnPair struct {
	ParticipantID string
	Turn          int
	UserText      string
	AssistantText string
	Timestamp     time.Time
}

// Entries expands the pair into its two transcript rows, user first.
func (p TurnPair) Entries() []TranscriptEntry {
	return []TranscriptEntry{
		{ParticipantID: p.ParticipantID, Turn: p.Turn, Role: RoleUser, Text: p.UserText, Timestamp: p.Timestamp},
		{ParticipantID: p.ParticipantID, Turn: p.Turn, Role: RoleAssistant, Text: p.AssistantText, Timestamp: p.Timestamp},
	}
}
