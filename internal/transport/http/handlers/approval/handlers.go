package approvalhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/approval"
	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/platform/metrics"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service *approval.Service
	Audit   *audit.Service
	Metrics *metrics.Collector
}

func NewHandler(service *approval.Service, auditService *audit.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Audit: auditService, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/pending/me", h.handlePendingForMe)
		r.Get("/{flowID}", h.handleGet)
		r.Put("/{flowID}/approve", h.handleDecide)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var input approval.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	flow, err := h.Service.Create(r.Context(), actor, input)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordFlowCreated()
	}
	h.recordAudit(r, actor, "approval.flow.create", flow.ID, input)
	api.Created(w, flow, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	flows, err := h.Service.ListAll(r.Context(), actor)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}
	pg := shared.ParsePagination(r, 50, 200)
	api.Success(w, paginate(flows, pg), reqID)
}

func (h *Handler) handlePendingForMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	flows, err := h.Service.ListPendingForActor(r.Context(), actor)
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}
	api.Success(w, flows, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	flow, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "flowID"))
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}
	api.Success(w, flow, reqID)
}

type decidePayload struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	flowID := chi.URLParam(r, "flowID")

	var payload decidePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	flow, err := h.Service.Decide(r.Context(), actor, flowID, payload.Decision, payload.Comment)
	if h.Metrics != nil {
		h.Metrics.RecordDecision(errors.Is(err, approval.ErrVersionConflict))
	}
	if err != nil {
		h.writeError(w, err, reqID)
		return
	}

	h.recordAudit(r, actor, "approval.flow.decide", flowID, payload)
	api.Success(w, flow, reqID)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, reqID string) {
	var vErr approval.ValidationError
	switch {
	case errors.As(err, &vErr):
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", vErr.Error(),
			map[string]any{"fields": []map[string]string{{"field": vErr.Field, "reason": vErr.Reason}}}, reqID)
	case errors.Is(err, approval.ErrRoleNotAllowed):
		api.Fail(w, http.StatusForbidden, "forbidden", "role may not create approval flows", reqID)
	case errors.Is(err, approval.ErrNotPendingApprover):
		api.Fail(w, http.StatusForbidden, "not_pending_approver", "no pending approval step for this user", reqID)
	case errors.Is(err, approval.ErrFlowNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "approval flow not found", reqID)
	case errors.Is(err, approval.ErrFlowTerminal):
		api.Fail(w, http.StatusConflict, "flow_terminal", "approval flow already reached a final state", reqID)
	case errors.Is(err, approval.ErrVersionConflict):
		api.Fail(w, http.StatusConflict, "conflict", "approval flow was modified concurrently, retry", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "approval_failed", "approval operation failed", reqID)
	}
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, flowID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, "approval_flow", flowID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func paginate(flows []approval.Flow, pg shared.Pagination) []approval.Flow {
	if pg.Offset >= len(flows) {
		return []approval.Flow{}
	}
	end := pg.Offset + pg.Limit
	if end > len(flows) {
		end = len(flows)
	}
	return flows[pg.Offset:end]
}
