package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewSurveySubmissionKeepsOnlyStageItems(t *testing.T) {
	raw := map[string]string{
		"ti1":   "5",
		"ti2":   " 3 ",
		"ti3":   "abc",
		"s1":    "-1",
		"bogus": "7",
	}
	sub := NewSurveySubmission("p1", Stage1, raw, time.Unix(0, 0))

	if len(sub.Answers) != len(Stage1.Items()) {
		t.Fatalf("expected %d answers, got %d", len(Stage1.Items()), len(sub.Answers))
	}
	if _, ok := sub.Answers["bogus"]; ok {
		t.Fatal("unexpected key outside the stage items")
	}
	if sub.Answers["ti1"] == nil || *sub.Answers["ti1"] != 5 {
		t.Fatalf("expected ti1=5, got %v", sub.Answers["ti1"])
	}
	if sub.Answers["ti2"] == nil || *sub.Answers["ti2"] != 3 {
		t.Fatalf("expected ti2=3, got %v", sub.Answers["ti2"])
	}
	if sub.Answers["ti3"] != nil {
		t.Fatal("expected non-numeric answer to be nil")
	}
	if sub.Answers["s1"] != nil {
		t.Fatal("expected negative answer to be nil")
	}
	if sub.Answers["mfb"] != nil {
		t.Fatal("expected missing answer to be nil")
	}
}

func TestAllCellsAreValidAndDistinct(t *testing.T) {
	seen := make(map[Cell]bool)
	for _, c := range AllCells() {
		if !c.Valid() {
			t.Fatalf("cell %s reported invalid", c)
		}
		if seen[c] {
			t.Fatalf("duplicate cell %s", c)
		}
		seen[c] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(seen))
	}
	if (Cell{Planning: "later", Feedback: FeedbackFocused}).Valid() {
		t.Fatal("expected unknown planning value to be invalid")
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("append: %w", &StorageError{Op: "append turn", Err: base})

	if !errors.Is(err, base) {
		t.Fatal("expected StorageError to unwrap to its cause")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "append turn" {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestPlanningInputValidate(t *testing.T) {
	p := &PlanningInput{PlanGoal: "g", PlanAudienceContext: "a", PlanElements: "e"}
	err := p.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "plan_output" {
		t.Fatalf("expected plan_output validation error, got %v", err)
	}
	p.PlanOutput = "o"
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
