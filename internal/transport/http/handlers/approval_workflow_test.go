package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/approval"
	"hrms/internal/domain/auth"
	"hrms/internal/platform/metrics"
	"hrms/internal/platform/revoke"
	approvalhandler "hrms/internal/transport/http/handlers/approval"
	"hrms/internal/transport/http/middleware"
)

const testSecret = "workflow-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

type staticDirectory map[string]string

func (d staticDirectory) DisplayName(_ context.Context, _, userID string) (string, error) {
	name, ok := d[userID]
	if !ok {
		return "", fmt.Errorf("unknown user %s", userID)
	}
	return name, nil
}

func newApprovalRouter(t *testing.T) (http.Handler, *metrics.Collector) {
	t.Helper()
	store := approval.NewMemoryStore()
	directory := staticDirectory{
		"user-hr":    "Harriet Reyes",
		"user-mgr-a": "Ana Torres",
		"user-mgr-b": "Ben Okafor",
	}
	service := approval.NewService(store, directory, 3)
	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Auth(testSecret, revoke.NewMemory()))
	router.Route("/api/v1", func(r chi.Router) {
		approvalhandler.NewHandler(service, nil, collector).RegisterRoutes(r)
	})
	return router, collector
}

func tokenFor(t *testing.T, userID, companyID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, "jti-"+userID, auth.Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
	}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestApprovalWorkflowOverHTTP(t *testing.T) {
	router, _ := newApprovalRouter(t)

	hrToken := tokenFor(t, "user-hr", "company-1", auth.RoleHR)
	mgrAToken := tokenFor(t, "user-mgr-a", "company-1", auth.RoleManager)
	mgrBToken := tokenFor(t, "user-mgr-b", "company-1", auth.RoleManager)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/approvals", hrToken, map[string]any{
		"requestType": "leave",
		"requestId":   "leave-42",
		"requester":   "user-mgr-b",
		"approvers":   []string{"user-mgr-a", "user-mgr-b"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	var flow approval.Flow
	if err := json.Unmarshal(env.Data, &flow); err != nil {
		t.Fatalf("decode flow: %v", err)
	}
	if flow.ID == "" || flow.Status != approval.StatusPending || flow.CurrentLevel != 1 {
		t.Fatalf("unexpected created flow: %+v", flow)
	}
	if flow.Approvers[0].ApproverName != "Ana Torres" {
		t.Fatalf("approver name not resolved: %+v", flow.Approvers[0])
	}

	// The second-level approver cannot act before their level is reached,
	// but listing pending work already includes the flow for them.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/approvals/pending/me", mgrBToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending list status = %d", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodPut, "/api/v1/approvals/"+flow.ID+"/approve", mgrBToken, map[string]string{
		"decision": "approved",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("early approval status = %d, want 403", rec.Code)
	}

	rec, env = doJSON(t, router, http.MethodPut, "/api/v1/approvals/"+flow.ID+"/approve", mgrAToken, map[string]string{
		"decision": "approved",
		"comment":  "ok",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("first approval status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, &flow); err != nil {
		t.Fatalf("decode flow: %v", err)
	}
	if flow.Status != approval.StatusPending || flow.CurrentLevel != 2 {
		t.Fatalf("flow did not advance to level 2: %+v", flow)
	}

	rec, env = doJSON(t, router, http.MethodPut, "/api/v1/approvals/"+flow.ID+"/approve", mgrBToken, map[string]string{
		"decision": "approved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second approval status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, &flow); err != nil {
		t.Fatalf("decode flow: %v", err)
	}
	if flow.Status != approval.StatusApproved {
		t.Fatalf("flow not approved: %+v", flow)
	}

	// Terminal flows refuse further decisions.
	rec, env = doJSON(t, router, http.MethodPut, "/api/v1/approvals/"+flow.ID+"/approve", mgrAToken, map[string]string{
		"decision": "rejected",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("decision on terminal flow status = %d, want 409", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "flow_terminal" {
		t.Fatalf("unexpected error payload: %+v", env.Error)
	}
}

func TestApprovalRejectionOverHTTP(t *testing.T) {
	router, _ := newApprovalRouter(t)

	hrToken := tokenFor(t, "user-hr", "company-1", auth.RoleHR)
	mgrAToken := tokenFor(t, "user-mgr-a", "company-1", auth.RoleManager)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/approvals", hrToken, map[string]any{
		"requestType": "expense",
		"requestId":   "exp-7",
		"requester":   "user-hr",
		"approvers":   []string{"user-mgr-a", "user-mgr-b"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var flow approval.Flow
	if err := json.Unmarshal(env.Data, &flow); err != nil {
		t.Fatalf("decode flow: %v", err)
	}

	rec, env = doJSON(t, router, http.MethodPut, "/api/v1/approvals/"+flow.ID+"/approve", mgrAToken, map[string]string{
		"decision": "rejected",
		"comment":  "missing receipts",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rejection status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, &flow); err != nil {
		t.Fatalf("decode flow: %v", err)
	}
	if flow.Status != approval.StatusRejected {
		t.Fatalf("flow not rejected: %+v", flow)
	}
	if flow.Approvers[1].Status != approval.StatusPending {
		t.Fatalf("later step should stay pending after short-circuit: %+v", flow.Approvers[1])
	}
}

func TestApprovalAccessControlOverHTTP(t *testing.T) {
	router, _ := newApprovalRouter(t)

	hrToken := tokenFor(t, "user-hr", "company-1", auth.RoleHR)
	employeeToken := tokenFor(t, "user-emp", "company-1", auth.RoleEmployee)
	otherCompanyToken := tokenFor(t, "user-hr-2", "company-2", auth.RoleHR)

	// Employees may not create flows.
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/approvals", employeeToken, map[string]any{
		"requestType": "leave",
		"requestId":   "leave-1",
		"requester":   "user-emp",
		"approvers":   []string{"user-mgr-a"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee create status = %d, want 403", rec.Code)
	}

	// Anonymous requests are rejected outright.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/approvals", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", rec.Code)
	}

	// Validation failures carry field details.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/approvals", hrToken, map[string]any{
		"requestType": "vacation",
		"requestId":   "v-1",
		"requester":   "user-hr",
		"approvers":   []string{"user-mgr-a"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid type status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("unexpected error payload: %+v", env.Error)
	}

	// A flow is invisible outside its company.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/approvals", hrToken, map[string]any{
		"requestType": "leave",
		"requestId":   "leave-9",
		"requester":   "user-hr",
		"approvers":   []string{"user-mgr-a"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var flow approval.Flow
	if err := json.Unmarshal(env.Data, &flow); err != nil {
		t.Fatalf("decode flow: %v", err)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/approvals/"+flow.ID, otherCompanyToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-company get status = %d, want 404", rec.Code)
	}
}
