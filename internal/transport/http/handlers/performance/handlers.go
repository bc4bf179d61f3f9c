package performancehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/performance"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service *performance.Service
	Audit   *audit.Service
}

func NewHandler(service *performance.Service, auditService *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/kpis", h.handleListKPIs)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/kpis", h.handleCreateKPI)
		r.Get("/reviews", h.handleListReviews)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR, auth.RoleManager)).Post("/reviews", h.handleCreateReview)
		r.Get("/reviews/average", h.handleAverageScore)
	})
}

func (h *Handler) handleListKPIs(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	kpis, err := h.Service.ListKPIs(r.Context(), user.CompanyID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpis_failed", "failed to list kpis", reqID)
		return
	}
	api.Success(w, kpis, reqID)
}

func (h *Handler) handleCreateKPI(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload performance.KPI
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name)
	v.Positive("weight", payload.Weight)
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Service.CreateKPI(r.Context(), user.CompanyID, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpi_create_failed", "failed to create kpi", reqID)
		return
	}

	h.recordAudit(r, user, "performance.kpi.create", "kpi", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	reviews, err := h.Service.ListReviews(r.Context(), user.CompanyID, r.URL.Query().Get("employeeId"), r.URL.Query().Get("period"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "reviews_failed", "failed to list reviews", reqID)
		return
	}
	api.Success(w, reviews, reqID)
}

func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload performance.Review
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID)
	v.Required("kpiId", payload.KPIID)
	v.Required("period", payload.Period)
	if v.Reject(w, reqID) {
		return
	}

	payload.ReviewerID = user.UserID
	id, err := h.Service.CreateReview(r.Context(), user.CompanyID, payload)
	if err != nil {
		if errors.Is(err, performance.ErrInvalidScore) {
			api.Fail(w, http.StatusBadRequest, "invalid_score", "score must be between 1 and 5", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "review_create_failed", "failed to create review", reqID)
		return
	}

	h.recordAudit(r, user, "performance.review.create", "review", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleAverageScore(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_query", "employeeId is required", reqID)
		return
	}

	avg, err := h.Service.AverageScore(r.Context(), user.CompanyID, employeeID, r.URL.Query().Get("period"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "average_failed", "failed to compute average score", reqID)
		return
	}
	api.Success(w, map[string]any{"employeeId": employeeID, "average": avg}, reqID)
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, entityType, entityID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
