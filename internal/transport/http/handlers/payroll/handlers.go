package payrollhandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/core"
	"hrms/internal/domain/payroll"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service   *payroll.Service
	Employees *core.Store
	Audit     *audit.Service
}

func NewHandler(service *payroll.Service, employees *core.Store, auditService *audit.Service) *Handler {
	return &Handler{Service: service, Employees: employees, Audit: auditService}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Put("/structures/{employeeID}", h.handleUpsertStructure)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Get("/structures/{employeeID}", h.handleGetStructure)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/generate", h.handleGenerate)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleHR)).Get("/records", h.handleListRecords)
		r.Get("/records/{recordID}", h.handleGetRecord)
		r.Get("/records/{recordID}/payslip", h.handlePayslip)
	})
}

type structurePayload struct {
	Basic      float64 `json:"basic"`
	Allowances float64 `json:"allowances"`
	Deductions float64 `json:"deductions"`
}

func (h *Handler) handleUpsertStructure(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	var payload structurePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Positive("basic", payload.Basic)
	v.Positive("allowances", payload.Allowances)
	v.Positive("deductions", payload.Deductions)
	if v.Reject(w, reqID) {
		return
	}

	if err := h.Service.UpsertStructure(r.Context(), user.CompanyID, employeeID, payload.Basic, payload.Allowances, payload.Deductions); err != nil {
		api.Fail(w, http.StatusInternalServerError, "structure_failed", "failed to save salary structure", reqID)
		return
	}

	h.recordAudit(r, user, "payroll.structure.upsert", employeeID, payload)
	api.Success(w, map[string]string{"employeeId": employeeID}, reqID)
}

func (h *Handler) handleGetStructure(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	structure, err := h.Service.GetStructure(r.Context(), user.CompanyID, chi.URLParam(r, "employeeID"))
	if err != nil {
		if errors.Is(err, payroll.ErrStructureNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "salary structure not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "structure_failed", "failed to load salary structure", reqID)
		return
	}
	api.Success(w, structure, reqID)
}

type generatePayload struct {
	Month string `json:"month"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if _, err := shared.ParseMonth(payload.Month); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_month", "month must be in YYYY-MM format", reqID)
		return
	}

	records, err := h.Service.GenerateMonth(r.Context(), user.CompanyID, payload.Month)
	if err != nil {
		if errors.Is(err, payroll.ErrMonthGenerated) {
			api.Fail(w, http.StatusConflict, "month_generated", "payroll already generated for this month", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "generate_failed", "failed to generate payroll", reqID)
		return
	}

	h.recordAudit(r, user, "payroll.generate", payload.Month, map[string]int{"records": len(records)})
	api.Created(w, records, reqID)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	records, err := h.Service.ListRecords(r.Context(), user.CompanyID, r.URL.Query().Get("employeeId"), r.URL.Query().Get("month"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "records_failed", "failed to list payroll records", reqID)
		return
	}
	api.Success(w, records, reqID)
}

// mayViewRecord reports whether the actor can read the given payroll record.
// hr/admin see everything; everyone else only their own record.
func (h *Handler) mayViewRecord(r *http.Request, user auth.UserContext, record payroll.Record) (bool, error) {
	if user.Role == auth.RoleAdmin || user.Role == auth.RoleHR {
		return true, nil
	}
	emp, err := h.Employees.EmployeeByUserID(r.Context(), user.CompanyID, user.UserID)
	if err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.EmployeeID == emp.ID, nil
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	record, err := h.Service.GetRecord(r.Context(), user.CompanyID, chi.URLParam(r, "recordID"))
	if err != nil {
		if errors.Is(err, payroll.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "payroll record not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "record_failed", "failed to load payroll record", reqID)
		return
	}

	allowed, err := h.mayViewRecord(r, user, record)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "record_failed", "failed to load payroll record", reqID)
		return
	}
	if !allowed {
		api.Fail(w, http.StatusNotFound, "not_found", "payroll record not found", reqID)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	recordID := chi.URLParam(r, "recordID")

	record, err := h.Service.GetRecord(r.Context(), user.CompanyID, recordID)
	if err != nil {
		if errors.Is(err, payroll.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "payroll record not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "payslip_failed", "failed to render payslip", reqID)
		return
	}
	allowed, err := h.mayViewRecord(r, user, record)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslip_failed", "failed to render payslip", reqID)
		return
	}
	if !allowed {
		api.Fail(w, http.StatusNotFound, "not_found", "payroll record not found", reqID)
		return
	}

	pdf, err := h.Service.PayslipPDF(r.Context(), user.CompanyID, recordID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payslip_failed", "failed to render payslip", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payslip-%s.pdf", recordID))
	if _, err := w.Write(pdf); err != nil {
		slog.Warn("payslip write failed", "err", err)
	}
}

func (h *Handler) recordAudit(r *http.Request, actor auth.UserContext, action, entityID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.CompanyID, actor.UserID, action, "payroll", entityID, middleware.GetRequestID(r.Context()), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
