package authhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Auth  *auth.Service
	Audit *audit.Service
}

func NewHandler(authService *auth.Service, auditService *audit.Service) *Handler {
	return &Handler{Auth: authService, Audit: auditService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.With(middleware.RequireAuth).Get("/auth/me", h.handleMe)
	r.With(middleware.RequireRole(auth.RoleAdmin)).Put("/auth/users/{userID}/role", h.handleUpdateRole)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email)
	v.Required("password", payload.Password)
	if v.Reject(w, reqID) {
		return
	}

	result, err := h.Auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", reqID)
		return
	}

	api.Success(w, map[string]any{
		"token": result.Token,
		"user": userResponse{
			ID:    result.User.ID,
			Email: result.User.Email,
			Name:  result.User.Name,
			Role:  result.User.Role,
		},
	}, reqID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "bearer token required", reqID)
		return
	}

	if err := h.Auth.Logout(r.Context(), parts[1]); err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "invalid token", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "logged out"}, reqID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	found, err := h.Auth.Store.FindUserByID(r.Context(), user.CompanyID, user.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "user not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "lookup_failed", "failed to load user", reqID)
		return
	}
	api.Success(w, userResponse{ID: found.ID, Email: found.Email, Name: found.Name, Role: found.Role}, reqID)
}

type updateRolePayload struct {
	Role string `json:"role"`
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	userID := chi.URLParam(r, "userID")

	var payload updateRolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if !auth.ValidRole(payload.Role) {
		api.Fail(w, http.StatusBadRequest, "invalid_role", "unknown role", reqID)
		return
	}

	if err := h.Auth.Store.UpdateUserRole(r.Context(), actor.CompanyID, userID, payload.Role); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "user not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "update_failed", "failed to update role", reqID)
		return
	}

	h.recordAudit(r, actor, "auth.role.update", "user", userID, payload)
	api.Success(w, map[string]string{"id": userID, "role": payload.Role}, reqID)
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, entityType, entityID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
