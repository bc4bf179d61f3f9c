package compliancehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/compliance"
	"hrms/internal/domain/core"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service   *compliance.Service
	Employees *core.Store
	Audit     *audit.Service
}

func NewHandler(service *compliance.Service, employees *core.Store, auditService *audit.Service) *Handler {
	return &Handler{Service: service, Employees: employees, Audit: auditService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/compliance", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/policies", h.handleListPolicies)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/policies", h.handleCreatePolicy)
		r.Post("/policies/{policyID}/acknowledge", h.handleAcknowledge)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Get("/policies/{policyID}/acknowledgments", h.handleListAcknowledgments)
	})
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	policies, err := h.Service.ListPolicies(r.Context(), user.CompanyID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "policies_failed", "failed to list policies", reqID)
		return
	}
	api.Success(w, policies, reqID)
}

type policyPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload policyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("title", payload.Title)
	v.Required("body", payload.Body)
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Service.CreatePolicy(r.Context(), user.CompanyID, payload.Title, payload.Body)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "policy_create_failed", "failed to create policy", reqID)
		return
	}

	h.recordAudit(r, user, "compliance.policy.create", "policy", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	policyID := chi.URLParam(r, "policyID")

	emp, err := h.Employees.EmployeeByUserID(r.Context(), user.CompanyID, user.UserID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "no employee record for this user", reqID)
		return
	}

	ack, err := h.Service.Acknowledge(r.Context(), user.CompanyID, policyID, emp.ID)
	if err != nil {
		switch {
		case errors.Is(err, compliance.ErrPolicyNotFound):
			api.Fail(w, http.StatusNotFound, "not_found", "policy not found", reqID)
		case errors.Is(err, compliance.ErrAlreadyAcknowledged):
			api.Fail(w, http.StatusConflict, "already_acknowledged", "policy already acknowledged", reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "acknowledge_failed", "failed to acknowledge policy", reqID)
		}
		return
	}

	h.recordAudit(r, user, "compliance.policy.acknowledge", "policy", policyID, nil)
	api.Created(w, ack, reqID)
}

func (h *Handler) handleListAcknowledgments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	acks, err := h.Service.ListAcknowledgments(r.Context(), user.CompanyID, chi.URLParam(r, "policyID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "acknowledgments_failed", "failed to list acknowledgments", reqID)
		return
	}
	api.Success(w, acks, reqID)
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, entityType, entityID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
