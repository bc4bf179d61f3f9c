package recruitmenthandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/recruitment"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service *recruitment.Service
	Audit   *audit.Service
}

func NewHandler(service *recruitment.Service, auditService *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/recruitment", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/jobs", h.handleListJobs)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/jobs", h.handleCreateJob)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/jobs/{jobID}/close", h.handleCloseJob)
		r.Get("/candidates", h.handleListCandidates)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/candidates", h.handleCreateCandidate)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Put("/candidates/{candidateID}/stage", h.handleAdvanceCandidate)
	})
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	jobs, err := h.Service.ListJobs(r.Context(), user.CompanyID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "jobs_failed", "failed to list job postings", reqID)
		return
	}
	api.Success(w, jobs, reqID)
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload recruitment.Job
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("title", payload.Title)
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Service.CreateJob(r.Context(), user.CompanyID, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_create_failed", "failed to create job posting", reqID)
		return
	}

	h.recordAudit(r, user, "recruitment.job.create", "job_posting", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleCloseJob(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	jobID := chi.URLParam(r, "jobID")

	if err := h.Service.CloseJob(r.Context(), user.CompanyID, jobID); err != nil {
		if errors.Is(err, recruitment.ErrJobNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "job posting not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "job_close_failed", "failed to close job posting", reqID)
		return
	}

	h.recordAudit(r, user, "recruitment.job.close", "job_posting", jobID, nil)
	api.Success(w, map[string]string{"id": jobID, "status": "closed"}, reqID)
}

func (h *Handler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	candidates, err := h.Service.ListCandidates(r.Context(), user.CompanyID, r.URL.Query().Get("jobId"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "candidates_failed", "failed to list candidates", reqID)
		return
	}
	api.Success(w, candidates, reqID)
}

func (h *Handler) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload recruitment.Candidate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("jobId", payload.JobID)
	v.Required("name", payload.Name)
	v.Required("email", payload.Email)
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Service.CreateCandidate(r.Context(), user.CompanyID, payload)
	if err != nil {
		if errors.Is(err, recruitment.ErrJobNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "job posting not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "candidate_create_failed", "failed to create candidate", reqID)
		return
	}

	h.recordAudit(r, user, "recruitment.candidate.create", "candidate", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

type stagePayload struct {
	Stage string `json:"stage"`
}

func (h *Handler) handleAdvanceCandidate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	candidateID := chi.URLParam(r, "candidateID")

	var payload stagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	candidate, err := h.Service.AdvanceCandidate(r.Context(), user.CompanyID, candidateID, payload.Stage)
	if err != nil {
		switch {
		case errors.Is(err, recruitment.ErrCandidateNotFound):
			api.Fail(w, http.StatusNotFound, "not_found", "candidate not found", reqID)
		case errors.Is(err, recruitment.ErrInvalidStage):
			api.Fail(w, http.StatusBadRequest, "invalid_stage", "unknown candidate stage", reqID)
		case errors.Is(err, recruitment.ErrStageRegression):
			api.Fail(w, http.StatusConflict, "stage_regression", "candidate stage cannot move backwards", reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "stage_update_failed", "failed to update candidate stage", reqID)
		}
		return
	}

	h.recordAudit(r, user, "recruitment.candidate.stage", "candidate", candidateID, payload)
	api.Success(w, candidate, reqID)
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, entityType, entityID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
