package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/identity"
	"github.com/ashureev/ideation-study/internal/study"
)

// StudyHandler handles the participant-facing study endpoints.
type StudyHandler struct {
	svc          *study.Service
	cookieSecure bool
}

// NewStudyHandler creates a study handler.
func NewStudyHandler(svc *study.Service, cookieSecure bool) *StudyHandler {
	return &StudyHandler{svc: svc, cookieSecure: cookieSecure}
}

// RegisterRoutes registers study routes.
func (h *StudyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/consent", h.Consent)
		r.Get("/me", h.GetMe)
		r.Post("/baseline", h.Baseline)
		r.Post("/material_choice", h.MaterialChoice)
		r.Get("/condition", h.Condition)
		r.Post("/planning", h.Planning)
		r.Get("/chat_state", h.ChatState)
		r.Post("/chat_send", h.ChatSend)
		r.Post("/survey/t1", h.SurveyStage1)
		r.Get("/survey/t2/eligibility", h.Eligibility)
		r.Post("/survey/t2", h.SurveyStage2)
	})
}

type idRequest struct {
	ParticipantID string `json:"participant_id"`
}

// Consent records consent and hands the participant id back in the body and a cookie.
func (h *StudyHandler) Consent(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	pid, err = h.svc.Consent(r.Context(), pid)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}

	identity.SetCookie(w, pid, h.cookieSecure || isSecure(r))
	JSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"participant_id": pid,
	})
}

// GetMe returns the participant record, creating it on first contact.
func (h *StudyHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	pid, err := participantID(r, "")
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	p, err := h.svc.Participant(r.Context(), pid)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

type baselineRequest struct {
	ParticipantID string `json:"participant_id"`
	GradeMajor    string `json:"grade_major"`
	CultureCourse string `json:"culture_course"`
	ChatbotExp    string `json:"chatbot_exp"`
	Stress1W      string `json:"stress_1w"`
}

// Baseline stores the baseline questionnaire.
func (h *StudyHandler) Baseline(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}

	err = h.svc.SubmitBaseline(r.Context(), domain.Baseline{
		ParticipantID: pid,
		GradeMajor:    req.GradeMajor,
		CultureCourse: req.CultureCourse,
		ChatbotExp:    req.ChatbotExp,
		Stress1W:      req.Stress1W,
	})
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "next": "material"})
}

type materialRequest struct {
	ParticipantID string `json:"participant_id"`
	Choice        string `json:"choice"`
	Label         string `json:"label"`
	PageTime      string `json:"page_time"`
	RTMs          *int64 `json:"rt_ms"`
}

// MaterialChoice stores the material choice and returns the assigned condition.
func (h *StudyHandler) MaterialChoice(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}

	cell, err := h.svc.SubmitMaterialChoice(r.Context(), domain.MaterialChoice{
		ParticipantID:   pid,
		ChosenDirection: req.Choice,
		ChosenLabel:     req.Label,
		PageTime:        req.PageTime,
		RTMs:            req.RTMs,
		UserAgent:       r.UserAgent(),
	})
	if err != nil {
		writeStudyError(w, r, err)
		return
	}

	next := "chat"
	if cell.Planning == domain.PlanningPre {
		next = "planning"
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"planning": cell.Planning,
		"feedback": cell.Feedback,
		"next":     next,
	})
}

// Condition returns the participant's cell, assigning one on first request.
func (h *StudyHandler) Condition(w http.ResponseWriter, r *http.Request) {
	pid, err := participantID(r, "")
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	cell, err := h.svc.Condition(r.Context(), pid)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, cell)
}

type planningRequest struct {
	ParticipantID       string `json:"participant_id"`
	PlanGoal            string `json:"plan_goal"`
	PlanAudienceContext string `json:"plan_audience_context"`
	PlanElements        string `json:"plan_elements"`
	PlanOutput          string `json:"plan_output"`
}

// Planning stores the pre-chat plan.
func (h *StudyHandler) Planning(w http.ResponseWriter, r *http.Request) {
	var req planningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}

	err = h.svc.SubmitPlanning(r.Context(), domain.PlanningInput{
		ParticipantID:       pid,
		PlanGoal:            req.PlanGoal,
		PlanAudienceContext: req.PlanAudienceContext,
		PlanElements:        req.PlanElements,
		PlanOutput:          req.PlanOutput,
	})
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "next": "chat"})
}

// ChatState returns the participant's chat progress and transcript.
func (h *StudyHandler) ChatState(w http.ResponseWriter, r *http.Request) {
	pid, err := participantID(r, "")
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	state, err := h.svc.ChatState(r.Context(), pid)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, state)
}

type chatRequest struct {
	ParticipantID string `json:"participant_id"`
	Text          string `json:"text"`
}

// ChatSend records a user line and returns the scripted reply.
func (h *StudyHandler) ChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	reply, err := h.svc.SendChat(r.Context(), pid, req.Text)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, reply)
}

type surveyRequest struct {
	ParticipantID string                     `json:"participant_id"`
	Answers       map[string]json.RawMessage `json:"answers"`
}

// SurveyStage1 stores the stage-1 survey.
func (h *StudyHandler) SurveyStage1(w http.ResponseWriter, r *http.Request) {
	var req surveyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	if err := h.svc.SubmitStage1(r.Context(), pid, flattenAnswers(req.Answers)); err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "stage": domain.Stage1.String()})
}

// Eligibility reports whether the follow-up survey is open.
func (h *StudyHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	pid, err := participantID(r, "")
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	d, err := h.svc.Eligibility(r.Context(), pid)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, d)
}

// SurveyStage2 stores the follow-up survey when the gate is open.
func (h *StudyHandler) SurveyStage2(w http.ResponseWriter, r *http.Request) {
	var req surveyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pid, err := participantID(r, req.ParticipantID)
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	d, err := h.svc.SubmitStage2(r.Context(), pid, flattenAnswers(req.Answers))
	if errors.Is(err, domain.ErrNotEligible) {
		slog.Info("Follow-up locked", "participant_id", pid, "reason", d.Reason)
		JSON(w, http.StatusForbidden, map[string]interface{}{
			"error":       "not_eligible",
			"reason":      d.Reason,
			"eligible_at": d.EligibleAt,
		})
		return
	}
	if err != nil {
		writeStudyError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "stage": domain.Stage2.String()})
}
