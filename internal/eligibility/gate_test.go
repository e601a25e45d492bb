package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/ideation-study/internal/domain"
)

type fakeSurveys struct {
	raw map[string]string
	err error
}

func (f *fakeSurveys) GetSurveyCreatedAt(_ context.Context, participantID string, stage domain.Stage) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	if stage != domain.Stage1 {
		return "", false, nil
	}
	raw, ok := f.raw[participantID]
	return raw, ok, nil
}

type reasonRecorder struct{ reasons []string }

func (r *reasonRecorder) EligibilityChecked(reason string) { r.reasons = append(r.reasons, reason) }

var submitted = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func gateAt(t *testing.T, surveys SurveyTimes, delay time.Duration, now time.Time) *Gate {
	t.Helper()
	return NewGate(surveys, delay, WithClock(func() time.Time { return now }))
}

func TestCheckBoundary(t *testing.T) {
	surveys := &fakeSurveys{raw: map[string]string{"p": domain.FormatTimestamp(submitted)}}
	week := 7 * 24 * time.Hour

	tests := []struct {
		name     string
		now      time.Time
		eligible bool
		reason   Reason
	}{
		{"one minute early", submitted.Add(week - time.Minute), false, ReasonTooEarly},
		{"one nanosecond early", submitted.Add(week - time.Nanosecond), false, ReasonTooEarly},
		{"exactly at delay", submitted.Add(week), true, ReasonOK},
		{"long after", submitted.Add(30 * 24 * time.Hour), true, ReasonOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := gateAt(t, surveys, week, tt.now).Check(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, d.Eligible)
			assert.Equal(t, tt.reason, d.Reason)
			require.NotNil(t, d.EligibleAt)
			assert.True(t, d.EligibleAt.Equal(submitted.Add(week)))
		})
	}
}

func TestCheckZeroDelayIsImmediate(t *testing.T) {
	surveys := &fakeSurveys{raw: map[string]string{"p": domain.FormatTimestamp(submitted)}}

	d, err := gateAt(t, surveys, 0, submitted).Check(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, d.Eligible)
	assert.Equal(t, ReasonOK, d.Reason)
}

func TestCheckNegativeDelayIsClamped(t *testing.T) {
	g := NewGate(&fakeSurveys{}, -time.Hour)
	assert.Equal(t, time.Duration(0), g.Delay())
}

func TestCheckWithoutStage1(t *testing.T) {
	rec := &reasonRecorder{}
	g := NewGate(&fakeSurveys{}, time.Hour, WithRecorder(rec))

	d, err := g.Check(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Nil(t, d.EligibleAt)
	assert.Equal(t, ReasonStage1NotSubmitted, d.Reason)
	assert.Equal(t, []string{"stage1_not_submitted"}, rec.reasons)
}

func TestCheckMalformedTimestampFailsClosed(t *testing.T) {
	surveys := &fakeSurveys{raw: map[string]string{"p": "not a time"}}

	d, err := gateAt(t, surveys, 0, submitted.Add(365*24*time.Hour)).Check(context.Background(), "p")
	require.NoError(t, err)
	assert.False(t, d.Eligible)
	assert.Nil(t, d.EligibleAt)
	assert.Equal(t, ReasonTimestampParse, d.Reason)
}

func TestCheckAcceptsLegacyTimestampLayout(t *testing.T) {
	surveys := &fakeSurveys{raw: map[string]string{"p": "2026-05-04T09:30:00.123456"}}

	d, err := gateAt(t, surveys, time.Hour, submitted.Add(2*time.Hour)).Check(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, d.Eligible)
}

func TestCheckPropagatesStorageError(t *testing.T) {
	boom := &domain.StorageError{Op: "read survey timestamp", Err: errors.New("disk I/O error")}
	g := NewGate(&fakeSurveys{err: boom}, time.Hour)

	_, err := g.Check(context.Background(), "p")
	require.Error(t, err)
	var se *domain.StorageError
	assert.True(t, errors.As(err, &se))
}

func TestCheckRejectsEmptyID(t *testing.T) {
	_, err := NewGate(&fakeSurveys{}, 0).Check(context.Background(), "")
	assert.True(t, domain.IsValidation(err))
}
