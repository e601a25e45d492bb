//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/ideation-study/internal/assignment"
	"github.com/ashureev/ideation-study/internal/dialogue"
	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/eligibility"
	"github.com/ashureev/ideation-study/internal/identity"
	"github.com/ashureev/ideation-study/internal/store"
	"github.com/ashureev/ideation-study/internal/study"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestWriteStudyError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{&domain.ValidationError{Field: "text"}, http.StatusBadRequest, "text required"},
		{fmt.Errorf("wrap: %w", domain.ErrCeilingExceeded), http.StatusBadRequest, "max_turns_reached"},
		{domain.ErrPlanningRequired, http.StatusPreconditionRequired, "planning_required"},
		{domain.ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},
		{fmt.Errorf("append: %w", domain.ErrConcurrencyConflict), http.StatusConflict, "busy, please retry"},
		{&domain.StorageError{Op: "insert", Err: errors.New("disk full")}, http.StatusInternalServerError, "internal error, please retry"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeStudyError(w, httptest.NewRequest(http.MethodPost, "/api/x", http.NoBody), tt.err)
		if w.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, w.Code)
		}
		if !strings.Contains(w.Body.String(), tt.msg) {
			t.Errorf("%v: body %q missing %q", tt.err, w.Body.String(), tt.msg)
		}
	}
}

func TestFlattenAnswers(t *testing.T) {
	raw := map[string]json.RawMessage{
		"ti1": json.RawMessage(`5`),
		"ti2": json.RawMessage(`"6"`),
		"ti3": json.RawMessage(`null`),
		"s1":  json.RawMessage(`{"x":1}`),
	}
	got := flattenAnswers(raw)
	if got["ti1"] != "5" || got["ti2"] != "6" || got["ti3"] != "" || got["s1"] != "" {
		t.Errorf("unexpected answers %v", got)
	}
}

type server struct {
	router http.Handler
	repo   store.Repository
}

func newServer(t *testing.T, exportToken string) *server {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := study.NewService(repo,
		assignment.NewEngine(repo),
		dialogue.NewEngine(20, 10),
		eligibility.NewGate(repo, 0))

	r := chi.NewRouter()
	r.Use(identity.Middleware)
	NewHealthHandler(repo, time.Second).RegisterHealth(r)
	NewStudyHandler(svc, false).RegisterRoutes(r)
	NewAdminHandler(repo, exportToken).RegisterRoutes(r)
	return &server{router: r, repo: repo}
}

func (s *server) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, "")
	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthDegraded(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(downDB{}, 0).Health(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unreachable") {
		t.Errorf("expected database unreachable, got %s", w.Body.String())
	}
}

func TestConsentSetsCookie(t *testing.T) {
	s := newServer(t, "")
	w := s.do(t, http.MethodPost, "/api/consent", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ParticipantID string `json:"participant_id"`
	}
	decode(t, w, &resp)
	if resp.ParticipantID == "" {
		t.Fatal("expected a participant id")
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.CookieName && c.Value == resp.ParticipantID {
			found = true
		}
	}
	if !found {
		t.Error("expected participant cookie")
	}
}

func TestChatFlowOverHTTP(t *testing.T) {
	s := newServer(t, "")
	ctx := context.Background()

	_, _, err := s.repo.AssignCondition(ctx, "http-1", time.Now(), func(map[domain.Cell]int) domain.Cell {
		return domain.Cell{Planning: domain.PlanningNone, Feedback: domain.FeedbackFocused}
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	w := s.do(t, http.MethodPost, "/api/chat_send", map[string]string{"participant_id": "http-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing text: expected 400, got %d", w.Code)
	}

	for turn := 1; turn <= 20; turn++ {
		w = s.do(t, http.MethodPost, "/api/chat_send?pid=http-1", map[string]string{"text": "idea"})
		if w.Code != http.StatusOK {
			t.Fatalf("turn %d: expected 200, got %d: %s", turn, w.Code, w.Body.String())
		}
		var reply study.ChatReply
		decode(t, w, &reply)
		if reply.Turn != turn {
			t.Fatalf("expected turn %d, got %d", turn, reply.Turn)
		}
	}

	w = s.do(t, http.MethodPost, "/api/chat_send", map[string]string{"participant_id": "http-1", "text": "again"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "max_turns_reached") {
		t.Fatalf("expected max_turns_reached, got %d: %s", w.Code, w.Body.String())
	}

	n, err := s.repo.CountUserTurns(ctx, "http-1")
	if err != nil || n != 20 {
		t.Fatalf("expected 20 user turns, got %d (%v)", n, err)
	}

	w = s.do(t, http.MethodGet, "/api/chat_state?pid=http-1", nil)
	var state study.ChatState
	decode(t, w, &state)
	if state.UserTurns != 20 || !state.CanFinish || len(state.Transcript) != 40 {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestChatSendNeverSwapsParticipant(t *testing.T) {
	s := newServer(t, "")
	ctx := context.Background()
	generic := domain.Cell{Planning: domain.PlanningNone, Feedback: domain.FeedbackGeneric}
	for _, pid := range []string{"other-person", "参与者 01"} {
		if _, _, err := s.repo.AssignCondition(ctx, pid, time.Now(), func(map[domain.Cell]int) domain.Cell { return generic }); err != nil {
			t.Fatalf("assign %s: %v", pid, err)
		}
	}

	send := func(bodyID string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"participant_id": bodyID, "text": "idea"})
		r := httptest.NewRequest(http.MethodPost, "/api/chat_send", bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r.AddCookie(&http.Cookie{Name: identity.CookieName, Value: "other-person"})
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, r)
		return w
	}

	for _, bad := range []string{strings.Repeat("x", 129), "tab\there"} {
		w := send(bad)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "participant_id") {
			t.Fatalf("malformed id %q: expected 400, got %d: %s", bad, w.Code, w.Body.String())
		}
	}
	if n, err := s.repo.CountUserTurns(ctx, "other-person"); err != nil || n != 0 {
		t.Fatalf("cookie participant must have no turns, got %d (%v)", n, err)
	}

	w := send("参与者 01")
	if w.Code != http.StatusOK {
		t.Fatalf("opaque id: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if n, err := s.repo.CountUserTurns(ctx, "参与者 01"); err != nil || n != 1 {
		t.Fatalf("expected one turn under the body id, got %d (%v)", n, err)
	}
	if n, err := s.repo.CountUserTurns(ctx, "other-person"); err != nil || n != 0 {
		t.Fatalf("cookie participant must still have no turns, got %d (%v)", n, err)
	}
}

func TestConsentRejectsMalformedID(t *testing.T) {
	s := newServer(t, "")
	w := s.do(t, http.MethodPost, "/api/consent", map[string]string{"participant_id": strings.Repeat("y", 200)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.CookieName {
			t.Errorf("no cookie expected, got %q", c.Value)
		}
	}
	counts, err := s.repo.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["participants"] != 0 {
		t.Errorf("expected no participant rows, got %d", counts["participants"])
	}
}

func TestSurveyEndpoints(t *testing.T) {
	s := newServer(t, "")

	body := map[string]interface{}{
		"participant_id": "sv-1",
		"answers":        map[string]interface{}{"ti1": 6, "mfb": "3"},
	}
	if w := s.do(t, http.MethodPost, "/api/survey/t1", body); w.Code != http.StatusOK {
		t.Fatalf("t1: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/survey/t1", body); w.Code != http.StatusConflict {
		t.Fatalf("t1 resubmit: expected 409, got %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/survey/t2/eligibility?pid=sv-1", nil)
	var d eligibility.Decision
	decode(t, w, &d)
	if !d.Eligible || d.Reason != eligibility.ReasonOK {
		t.Fatalf("expected eligible with zero delay, got %+v", d)
	}

	w = s.do(t, http.MethodPost, "/api/survey/t2", map[string]interface{}{
		"participant_id": "nobody",
		"answers":        map[string]interface{}{"mi1": 4},
	})
	if w.Code != http.StatusForbidden || !strings.Contains(w.Body.String(), "stage1_not_submitted") {
		t.Fatalf("expected 403 stage1_not_submitted, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/survey/t2", map[string]interface{}{
		"participant_id": "sv-1",
		"answers":        map[string]interface{}{"mi1": 4},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("t2: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestExportRequiresToken(t *testing.T) {
	s := newServer(t, "secret")
	s.do(t, http.MethodPost, "/api/consent", nil)

	if w := s.do(t, http.MethodGet, "/_export/participants", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/_export/sqlite_master?token=secret", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disallowed table, got %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/_export/participants?token=secret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Body.String(), "\ufeffparticipant_id,consent_time,created_at") {
		t.Errorf("unexpected csv %q", w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/_export_all?token=secret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != len(store.ExportTables) {
		t.Errorf("expected %d files, got %d", len(store.ExportTables), len(zr.File))
	}
}

func TestDebugCounts(t *testing.T) {
	s := newServer(t, "")
	s.do(t, http.MethodPost, "/api/consent", nil)

	w := s.do(t, http.MethodGet, "/_debug/counts", nil)
	var counts map[string]int64
	decode(t, w, &counts)
	if counts["participants"] != 1 || counts["chat_log"] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}
