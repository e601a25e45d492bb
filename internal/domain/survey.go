package domain

import (
	"strconv"
	"strings"
	"time"
)

// Stage identifies a survey stage.
type Stage int

const (
	Stage1 Stage = 1
	Stage2 Stage = 2
)

func (s Stage) String() string {
	return "t" + strconv.Itoa(int(s))
}

// SurveyItem maps a form key to its storage column.
type SurveyItem struct {
	Key    string
	Column string
}

var stage1Items = []SurveyItem{
	{"ti1", "triggered_interest_1"}, {"ti2", "triggered_interest_2"}, {"ti3", "triggered_interest_3"},
	{"s1", "support_1"}, {"s2", "support_2"}, {"s3", "support_3"}, {"s4", "support_4"},
	{"c1", "clarity_1"}, {"c2", "clarity_2"}, {"c3", "clarity_3"}, {"c4", "clarity_4"},
	{"task1", "task_1"}, {"task2", "task_2"}, {"task3", "task_3"},
	{"aff1", "affect_1"}, {"aff2", "affect_2"}, {"aff3", "affect_3"},
	{"mplan", "manip_plan"}, {"mfb", "manip_feedback"},
}

var stage2Items = []SurveyItem{
	{"mi1", "maintained_interest_1"}, {"mi2", "maintained_interest_2"}, {"mi3", "maintained_interest_3"},
	{"s1", "support_1"}, {"s2", "support_2"}, {"s3", "support_3"},
	{"c1", "clarity_1"}, {"c2", "clarity_2"}, {"c3", "clarity_3"},
	{"cont1", "cont_intent_1"},
}

// Items returns the items collected at this stage, in column order.
func (s Stage) Items() []SurveyItem {
	switch s {
	case Stage1:
		return stage1Items
	case Stage2:
		return stage2Items
	}
	return nil
}

// SurveySubmission is a write-once survey response.
// Answers that were missing or not a non-negative integer are stored as nil.
type SurveySubmission struct {
	ParticipantID string          `json:"participant_id"`
	Stage         Stage           `json:"stage"`
	Answers       map[string]*int `json:"answers"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewSurveySubmission builds a submission from raw form values, keeping only the stage's items.
func NewSurveySubmission(participantID string, stage Stage, raw map[string]string, now time.Time) *SurveySubmission {
	items := stage.Items()
	answers := make(map[string]*int, len(items))
	for _, item := range items {
		answers[item.Key] = parseAnswer(raw[item.Key])
	}
	return &SurveySubmission{
		ParticipantID: participantID,
		Stage:         stage,
		Answers:       answers,
		CreatedAt:     now,
	}
}

func parseAnswer(v string) *int {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
