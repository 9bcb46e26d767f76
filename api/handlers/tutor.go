package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/tutor"
	"github.com/stemtutor/tutorflow/types"
)

// TutorHandler serves the tutoring session endpoints.
type TutorHandler struct {
	service *tutor.Service
	logger  *zap.Logger
}

// NewTutorHandler creates the handler.
func NewTutorHandler(service *tutor.Service, logger *zap.Logger) *TutorHandler {
	return &TutorHandler{
		service: service,
		logger:  logger.With(zap.String("handler", "tutor")),
	}
}

// HandleAnalyze serves POST /v1/analyze: starts a new tutoring session.
func (h *TutorHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req tutor.AnalyzeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	res, err := h.service.Analyze(r.Context(), &req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleResume serves POST /v1/resume: answers a suspended session.
func (h *TutorHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	var req tutor.ResumeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	res, err := h.service.Resume(r.Context(), &req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleState serves GET /v1/state/{id}: the session's current view.
func (h *TutorHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if strings.TrimSpace(sessionID) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "session id is required"), h.logger)
		return
	}

	res, err := h.service.GetState(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleQuota serves GET /v1/quota/{identity}: the identity's remaining
// budget, without consuming any of it. The tier comes from the query
// string and defaults to free.
func (h *TutorHandler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	tier := r.URL.Query().Get("tier")

	decision, err := h.service.Quota(r.Context(), identity, tier)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, decision)
}

// HandleQuotaReset serves DELETE /v1/quota/{identity}: restores the
// identity's full budget.
func (h *TutorHandler) HandleQuotaReset(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	if err := h.service.ResetQuota(r.Context(), identity); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"identity": identity, "quota": "reset"})
}
