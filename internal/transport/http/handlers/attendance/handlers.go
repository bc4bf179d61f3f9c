package attendancehandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/attendance"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/core"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service   *attendance.Service
	Employees *core.Store
}

func NewHandler(service *attendance.Service, employees *core.Store) *Handler {
	return &Handler{Service: service, Employees: employees}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/check-in", h.handleCheckIn)
		r.Post("/check-out", h.handleCheckOut)
		r.Get("/", h.handleList)
		r.Get("/summary", h.handleSummary)
	})
}

// selfEmployee maps the authenticated user to their employee record.
func (h *Handler) selfEmployee(w http.ResponseWriter, r *http.Request) (auth.UserContext, core.Employee, bool) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	emp, err := h.Employees.EmployeeByUserID(r.Context(), user.CompanyID, user.UserID)
	if err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "no employee record for this user", reqID)
			return user, core.Employee{}, false
		}
		api.Fail(w, http.StatusInternalServerError, "attendance_failed", "failed to resolve employee", reqID)
		return user, core.Employee{}, false
	}
	return user, emp, true
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, emp, ok := h.selfEmployee(w, r)
	if !ok {
		return
	}

	record, err := h.Service.CheckIn(r.Context(), user.CompanyID, emp.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, attendance.ErrAlreadyCheckedIn) {
			api.Fail(w, http.StatusConflict, "already_checked_in", "already checked in today", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "check_in_failed", "failed to check in", reqID)
		return
	}
	api.Created(w, record, reqID)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, emp, ok := h.selfEmployee(w, r)
	if !ok {
		return
	}

	record, err := h.Service.CheckOut(r.Context(), user.CompanyID, emp.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, attendance.ErrNoOpenCheckIn) {
			api.Fail(w, http.StatusConflict, "no_open_check_in", "no open check-in for today", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "check_out_failed", "failed to check out", reqID)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	pg := shared.ParsePagination(r, 50, 200)

	employeeID := r.URL.Query().Get("employeeId")
	if user.Role == auth.RoleEmployee {
		// Employees only see their own records.
		emp, err := h.Employees.EmployeeByUserID(r.Context(), user.CompanyID, user.UserID)
		if err != nil {
			api.Fail(w, http.StatusNotFound, "not_found", "no employee record for this user", reqID)
			return
		}
		employeeID = emp.ID
	}

	records, err := h.Service.List(r.Context(), user.CompanyID, employeeID, pg.Limit, pg.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_failed", "failed to list attendance", reqID)
		return
	}
	api.Success(w, records, reqID)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	month := r.URL.Query().Get("month")
	if _, err := shared.ParseMonth(month); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_month", "month must be in YYYY-MM format", reqID)
		return
	}

	employeeID := r.URL.Query().Get("employeeId")
	if user.Role == auth.RoleEmployee || employeeID == "" {
		emp, err := h.Employees.EmployeeByUserID(r.Context(), user.CompanyID, user.UserID)
		if err != nil {
			api.Fail(w, http.StatusNotFound, "not_found", "no employee record for this user", reqID)
			return
		}
		employeeID = emp.ID
	}

	summary, err := h.Service.Summary(r.Context(), user.CompanyID, employeeID, month)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_failed", "failed to compute summary", reqID)
		return
	}
	api.Success(w, summary, reqID)
}
