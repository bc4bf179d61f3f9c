package corehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/core"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Store *core.Store
	Audit *audit.Service
}

func NewHandler(store *core.Store, auditService *audit.Service) *Handler {
	return &Handler{Store: store, Audit: auditService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleListEmployees)
		r.Get("/{employeeID}", h.handleGetEmployee)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/", h.handleCreateEmployee)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Put("/{employeeID}", h.handleUpdateEmployee)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Delete("/{employeeID}", h.handleDeactivateEmployee)
	})
	r.Route("/departments", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleListDepartments)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/", h.handleCreateDepartment)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Delete("/{departmentID}", h.handleDeleteDepartment)
	})
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	pg := shared.ParsePagination(r, 50, 200)

	// Employees only see their own record; the full roster carries salaries.
	if user.Role == auth.RoleEmployee {
		emp, err := h.Store.EmployeeByUserID(r.Context(), user.CompanyID, user.UserID)
		if err != nil {
			if errors.Is(err, core.ErrEmployeeNotFound) {
				api.Success(w, map[string]any{"items": []core.Employee{}, "total": 0}, reqID)
				return
			}
			api.Fail(w, http.StatusInternalServerError, "employees_failed", "failed to list employees", reqID)
			return
		}
		api.Success(w, map[string]any{"items": []core.Employee{emp}, "total": 1}, reqID)
		return
	}

	employees, total, err := h.Store.ListEmployees(r.Context(), user.CompanyID, pg.Limit, pg.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_failed", "failed to list employees", reqID)
		return
	}
	api.Success(w, map[string]any{"items": employees, "total": total}, reqID)
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	emp, err := h.Store.GetEmployee(r.Context(), user.CompanyID, employeeID)
	if err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_failed", "failed to load employee", reqID)
		return
	}

	// Another employee's record reads as absent rather than forbidden.
	if user.Role == auth.RoleEmployee && emp.UserID != user.UserID {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload core.Employee
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name)
	v.Required("email", payload.Email)
	v.Required("position", payload.Position)
	v.Positive("salary", payload.Salary)
	if v.Reject(w, reqID) {
		return
	}

	if payload.Status == "" {
		payload.Status = core.EmployeeActive
	}
	id, err := h.Store.CreateEmployee(r.Context(), user.CompanyID, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", reqID)
		return
	}

	h.recordAudit(r, user, "employee.create", "employee", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	var payload core.Employee
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	if err := h.Store.UpdateEmployee(r.Context(), user.CompanyID, employeeID, payload); err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", reqID)
		return
	}

	h.recordAudit(r, user, "employee.update", "employee", employeeID, payload)
	api.Success(w, map[string]string{"id": employeeID}, reqID)
}

func (h *Handler) handleDeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	if err := h.Store.DeactivateEmployee(r.Context(), user.CompanyID, employeeID); err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_deactivate_failed", "failed to deactivate employee", reqID)
		return
	}

	h.recordAudit(r, user, "employee.deactivate", "employee", employeeID, nil)
	api.Success(w, map[string]string{"id": employeeID, "status": core.EmployeeInactive}, reqID)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	departments, err := h.Store.ListDepartments(r.Context(), user.CompanyID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "departments_failed", "failed to list departments", reqID)
		return
	}
	api.Success(w, departments, reqID)
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload core.Department
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name)
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Store.CreateDepartment(r.Context(), user.CompanyID, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_create_failed", "failed to create department", reqID)
		return
	}

	h.recordAudit(r, user, "department.create", "department", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	departmentID := chi.URLParam(r, "departmentID")

	if err := h.Store.DeleteDepartment(r.Context(), user.CompanyID, departmentID); err != nil {
		if errors.Is(err, core.ErrDepartmentNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "department not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "department_delete_failed", "failed to delete department", reqID)
		return
	}

	h.recordAudit(r, user, "department.delete", "department", departmentID, nil)
	api.Success(w, map[string]string{"id": departmentID}, reqID)
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, entityType, entityID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
