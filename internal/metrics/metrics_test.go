package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/ideation-study/internal/domain"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	return w.Body.String()
}

func TestRecorders(t *testing.T) {
	m := New()

	cell := domain.Cell{Planning: domain.PlanningPre, Feedback: domain.FeedbackFocused}
	m.AssignmentCreated(cell)
	m.AssignmentCreated(cell)
	m.TurnRecorded(domain.FeedbackGeneric, "structured")
	m.ChatRejected("max_turns_reached")
	m.EligibilityChecked("too_early")
	m.SurveySubmitted(domain.Stage2)

	body := scrape(t, m)
	for _, want := range []string{
		`ideation_study_assignments_total{feedback="focused",planning="pre"} 2`,
		`ideation_study_chat_turns_total{feedback="generic",phase="structured"} 1`,
		`ideation_study_chat_rejections_total{reason="max_turns_reached"} 1`,
		`ideation_study_eligibility_checks_total{reason="too_early"} 1`,
		`ideation_study_surveys_submitted_total{stage="t2"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.AssignmentCreated(domain.Cell{})
	m.TurnRecorded(domain.FeedbackFocused, "reflective")
	m.ChatRejected("x")
	m.EligibilityChecked("ok")
	m.SurveySubmitted(domain.Stage1)

	called := false
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if !called {
		t.Error("nil middleware should pass through")
	}
}

func TestHandlerExposesRouteLatency(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/chat/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/7", http.NoBody))
	m.AssignmentCreated(domain.Cell{Planning: domain.PlanningNone, Feedback: domain.FeedbackGeneric})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`ideation_http_request_duration_seconds_count{method="GET",route="/api/chat/{id}",status="418"} 1`,
		`ideation_study_assignments_total{feedback="generic",planning="none"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
