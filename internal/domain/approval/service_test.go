package approval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"hrms/internal/domain/auth"
)

const (
	companyOne = "company-1"
	companyTwo = "company-2"
)

func newTestService(store StoreAPI) *Service {
	svc := NewService(store, nil, 3)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var calls atomic.Int64
	svc.now = func() time.Time {
		return base.Add(time.Duration(calls.Add(1)) * time.Second)
	}
	return svc
}

func hrActor(userID string) auth.UserContext {
	return auth.UserContext{UserID: userID, CompanyID: companyOne, Role: auth.RoleHR}
}

func employeeActor(userID string) auth.UserContext {
	return auth.UserContext{UserID: userID, CompanyID: companyOne, Role: auth.RoleEmployee}
}

func mustCreate(t *testing.T, svc *Service, approvers ...string) Flow {
	t.Helper()
	flow, err := svc.Create(context.Background(), hrActor("hr-1"), CreateInput{
		RequestType: RequestLeave,
		RequestID:   "req-1",
		Requester:   "emp-9",
		Approvers:   approvers,
	})
	if err != nil {
		t.Fatalf("create flow: %v", err)
	}
	return flow
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.UserContext
		input   CreateInput
		wantErr error
	}{
		{
			name:    "employee cannot create",
			actor:   employeeActor("emp-1"),
			input:   CreateInput{RequestType: RequestLeave, RequestID: "r", Requester: "u", Approvers: []string{"a"}},
			wantErr: ErrRoleNotAllowed,
		},
		{
			name:    "manager cannot create",
			actor:   auth.UserContext{UserID: "mgr-1", CompanyID: companyOne, Role: auth.RoleManager},
			input:   CreateInput{RequestType: RequestLeave, RequestID: "r", Requester: "u", Approvers: []string{"a"}},
			wantErr: ErrRoleNotAllowed,
		},
		{
			name:  "unknown request type",
			actor: hrActor("hr-1"),
			input: CreateInput{RequestType: "vacation", RequestID: "r", Requester: "u", Approvers: []string{"a"}},
		},
		{
			name:  "missing request id",
			actor: hrActor("hr-1"),
			input: CreateInput{RequestType: RequestExpense, Requester: "u", Approvers: []string{"a"}},
		},
		{
			name:  "missing requester",
			actor: hrActor("hr-1"),
			input: CreateInput{RequestType: RequestExpense, RequestID: "r", Approvers: []string{"a"}},
		},
		{
			name:  "empty approver list",
			actor: hrActor("hr-1"),
			input: CreateInput{RequestType: RequestExpense, RequestID: "r", Requester: "u"},
		},
		{
			name:  "blank approver entry",
			actor: hrActor("hr-1"),
			input: CreateInput{RequestType: RequestExpense, RequestID: "r", Requester: "u", Approvers: []string{"a", "  "}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(NewMemoryStore())
			_, err := svc.Create(context.Background(), tc.actor, tc.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateAssignsLevelsInOrder(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	flow := mustCreate(t, svc, "appr-1", "appr-2", "appr-3")

	if flow.ID == "" {
		t.Fatal("expected generated flow id")
	}
	if flow.Status != StatusPending || flow.CurrentLevel != 1 {
		t.Fatalf("expected pending flow at level 1, got %s/%d", flow.Status, flow.CurrentLevel)
	}
	want := []string{"appr-1", "appr-2", "appr-3"}
	if len(flow.Approvers) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(flow.Approvers))
	}
	for i, step := range flow.Approvers {
		if step.Approver != want[i] {
			t.Fatalf("step %d: expected approver %s, got %s", i, want[i], step.Approver)
		}
		if step.Level != i+1 {
			t.Fatalf("step %d: expected level %d, got %d", i, i+1, step.Level)
		}
		if step.Status != StatusPending {
			t.Fatalf("step %d: expected pending, got %s", i, step.Status)
		}
		if step.ApprovedAt != nil {
			t.Fatalf("step %d: approvedAt must be unset at creation", i)
		}
	}
}

func TestSequentialApprovalChain(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	flow := mustCreate(t, svc, "appr-a", "appr-b")

	updated, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, "looks fine")
	if err != nil {
		t.Fatalf("first approval: %v", err)
	}
	if updated.CurrentLevel != 2 {
		t.Fatalf("expected currentLevel 2 after level-1 approval, got %d", updated.CurrentLevel)
	}
	if updated.Status != StatusPending {
		t.Fatalf("expected flow still pending, got %s", updated.Status)
	}
	if updated.Approvers[0].Status != StatusApproved || updated.Approvers[0].ApprovedAt == nil {
		t.Fatal("expected level-1 step approved with timestamp")
	}
	if updated.Approvers[0].Comment != "looks fine" {
		t.Fatalf("expected comment persisted, got %q", updated.Approvers[0].Comment)
	}

	final, err := svc.Decide(context.Background(), employeeActor("appr-b"), flow.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("second approval: %v", err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("expected approved flow after last level, got %s", final.Status)
	}
	if final.CurrentLevel < updated.CurrentLevel {
		t.Fatalf("currentLevel regressed from %d to %d", updated.CurrentLevel, final.CurrentLevel)
	}
}

func TestRejectionShortCircuits(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	flow := mustCreate(t, svc, "appr-a", "appr-b")

	rejected, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusRejected, "insufficient budget")
	if err != nil {
		t.Fatalf("rejection: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Fatalf("expected rejected flow, got %s", rejected.Status)
	}
	if rejected.Approvers[1].Status != StatusPending {
		t.Fatalf("remaining step should stay pending in the data, got %s", rejected.Approvers[1].Status)
	}

	// A terminal flow accepts no further decisions, even from an approver
	// whose own step is still pending.
	_, err = svc.Decide(context.Background(), employeeActor("appr-b"), flow.ID, StatusApproved, "")
	if !errors.Is(err, ErrFlowTerminal) {
		t.Fatalf("expected terminal-flow error, got %v", err)
	}

	stored, err := svc.Store.FindByID(context.Background(), companyOne, flow.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != StatusRejected || stored.Approvers[1].Status != StatusPending {
		t.Fatal("terminal flow must be frozen")
	}
}

func TestApprovedFlowIsFrozen(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	flow := mustCreate(t, svc, "appr-a")

	if _, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, ""); !errors.Is(err, ErrFlowTerminal) {
		t.Fatalf("expected terminal-flow error, got %v", err)
	}
}

func TestSameLevelCohortUnanimity(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)

	// The creation path assigns one approver per level, so a shared-level
	// cohort is seeded directly through the store.
	flow := Flow{
		CompanyID:   companyOne,
		RequestType: RequestExpense,
		RequestID:   "req-7",
		Requester:   "emp-9",
		Approvers: []Step{
			{Approver: "appr-a", Level: 1, Status: StatusPending},
			{Approver: "appr-b", Level: 1, Status: StatusPending},
			{Approver: "appr-c", Level: 2, Status: StatusPending},
		},
		CurrentLevel: 1,
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Create(context.Background(), &flow); err != nil {
		t.Fatalf("seed flow: %v", err)
	}

	afterFirst, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("first cohort approval: %v", err)
	}
	if afterFirst.CurrentLevel != 1 || afterFirst.Status != StatusPending {
		t.Fatalf("flow advanced before cohort unanimous: level=%d status=%s", afterFirst.CurrentLevel, afterFirst.Status)
	}

	afterSecond, err := svc.Decide(context.Background(), employeeActor("appr-b"), flow.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("second cohort approval: %v", err)
	}
	if afterSecond.CurrentLevel != 2 || afterSecond.Status != StatusPending {
		t.Fatalf("expected advance to level 2 pending, got level=%d status=%s", afterSecond.CurrentLevel, afterSecond.Status)
	}

	final, err := svc.Decide(context.Background(), employeeActor("appr-c"), flow.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("final approval: %v", err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", final.Status)
	}
}

func TestCohortRejectionRejectsWholeFlow(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)

	flow := Flow{
		CompanyID:   companyOne,
		RequestType: RequestExpense,
		RequestID:   "req-8",
		Requester:   "emp-9",
		Approvers: []Step{
			{Approver: "appr-a", Level: 1, Status: StatusPending},
			{Approver: "appr-b", Level: 1, Status: StatusPending},
		},
		CurrentLevel: 1,
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Create(context.Background(), &flow); err != nil {
		t.Fatalf("seed flow: %v", err)
	}

	rejected, err := svc.Decide(context.Background(), employeeActor("appr-b"), flow.ID, StatusRejected, "no")
	if err != nil {
		t.Fatalf("cohort rejection: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Fatalf("expected rejected flow, got %s", rejected.Status)
	}
}

func TestDecideEligibility(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	flow := mustCreate(t, svc, "appr-a")

	tests := []struct {
		name     string
		actor    auth.UserContext
		flowID   string
		decision string
		wantErr  error
	}{
		{
			name:     "unknown flow",
			actor:    employeeActor("appr-a"),
			flowID:   "missing",
			decision: StatusApproved,
			wantErr:  ErrFlowNotFound,
		},
		{
			name:     "cross-tenant actor sees not found",
			actor:    auth.UserContext{UserID: "appr-a", CompanyID: companyTwo, Role: auth.RoleEmployee},
			flowID:   flow.ID,
			decision: StatusApproved,
			wantErr:  ErrFlowNotFound,
		},
		{
			name:     "non-approver is forbidden",
			actor:    employeeActor("someone-else"),
			flowID:   flow.ID,
			decision: StatusApproved,
			wantErr:  ErrNotPendingApprover,
		},
		{
			name:     "invalid decision value",
			actor:    employeeActor("appr-a"),
			flowID:   flow.ID,
			decision: "maybe",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Decide(context.Background(), tc.actor, tc.flowID, tc.decision, "")
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLaterLevelApproverCannotActEarly(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	flow := mustCreate(t, svc, "appr-a", "appr-b")

	// appr-b holds the level-2 step; the flow is still at level 1.
	if _, err := svc.Decide(context.Background(), employeeActor("appr-b"), flow.ID, StatusApproved, ""); !errors.Is(err, ErrNotPendingApprover) {
		t.Fatalf("expected ErrNotPendingApprover for early approval, got %v", err)
	}

	// After level 1 clears, the same actor's decision lands.
	if _, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, ""); err != nil {
		t.Fatalf("level 1 approval: %v", err)
	}
	final, err := svc.Decide(context.Background(), employeeActor("appr-b"), flow.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("level 2 approval: %v", err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("flow status = %q, want approved", final.Status)
	}
}

func TestListPendingForActor(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)

	withApprover := mustCreate(t, svc, "appr-x", "appr-y")
	mustCreate(t, svc, "appr-y")

	otherTenant := Flow{
		CompanyID:    companyTwo,
		RequestType:  RequestLeave,
		RequestID:    "req-t2",
		Requester:    "emp-1",
		Approvers:    []Step{{Approver: "appr-x", Level: 1, Status: StatusPending}},
		CurrentLevel: 1,
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Create(context.Background(), &otherTenant); err != nil {
		t.Fatalf("seed other-tenant flow: %v", err)
	}

	pending, err := svc.ListPendingForActor(context.Background(), employeeActor("appr-x"))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != withApprover.ID {
		t.Fatalf("expected exactly the flow with appr-x pending, got %d flows", len(pending))
	}

	// A later-level step that is not yet actionable still counts as pending.
	pendingY, err := svc.ListPendingForActor(context.Background(), employeeActor("appr-y"))
	if err != nil {
		t.Fatalf("list pending for appr-y: %v", err)
	}
	if len(pendingY) != 2 {
		t.Fatalf("expected 2 flows with appr-y pending, got %d", len(pendingY))
	}

	// Once the step is decided the flow drops out of the pending view.
	if _, err := svc.Decide(context.Background(), employeeActor("appr-x"), withApprover.ID, StatusApproved, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	pending, err = svc.ListPendingForActor(context.Background(), employeeActor("appr-x"))
	if err != nil {
		t.Fatalf("list pending after decide: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending flows after decision, got %d", len(pending))
	}
}

func TestListAllNewestFirstAndTenantScoped(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)

	first := mustCreate(t, svc, "appr-a")
	second := mustCreate(t, svc, "appr-b")

	otherTenant := Flow{
		CompanyID:    companyTwo,
		RequestType:  RequestLeave,
		RequestID:    "req-t2",
		Requester:    "emp-1",
		Approvers:    []Step{{Approver: "appr-z", Level: 1, Status: StatusPending}},
		CurrentLevel: 1,
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Create(context.Background(), &otherTenant); err != nil {
		t.Fatalf("seed other-tenant flow: %v", err)
	}

	flows, err := svc.ListAll(context.Background(), employeeActor("anyone"))
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows for company-1, got %d", len(flows))
	}
	if flows[0].ID != second.ID || flows[1].ID != first.ID {
		t.Fatal("expected newest-created flow first")
	}
}

// conflictStore fails SaveDecision with a version conflict a fixed number of
// times before delegating to the wrapped store.
type conflictStore struct {
	StoreAPI
	conflicts int
	calls     int
}

func (c *conflictStore) SaveDecision(ctx context.Context, flow Flow, expectedVersion int64) error {
	c.calls++
	if c.calls <= c.conflicts {
		return ErrVersionConflict
	}
	return c.StoreAPI.SaveDecision(ctx, flow, expectedVersion)
}

func TestDecideRetriesOnVersionConflict(t *testing.T) {
	memory := NewMemoryStore()
	store := &conflictStore{StoreAPI: memory, conflicts: 2}
	svc := newTestService(store)

	flow := mustCreate(t, svc, "appr-a")

	updated, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("expected approved flow, got %s", updated.Status)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 save attempts, got %d", store.calls)
	}
}

func TestDecideSurfacesExhaustedConflict(t *testing.T) {
	memory := NewMemoryStore()
	store := &conflictStore{StoreAPI: memory, conflicts: 100}
	svc := newTestService(store)

	flow := mustCreate(t, svc, "appr-a")

	_, err := svc.Decide(context.Background(), employeeActor("appr-a"), flow.ID, StatusApproved, "")
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict after bounded retries, got %v", err)
	}
	if store.calls != svc.DecideRetries {
		t.Fatalf("expected %d save attempts, got %d", svc.DecideRetries, store.calls)
	}
}

func TestConcurrentCohortDecidersBothLand(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)

	flow := Flow{
		CompanyID:   companyOne,
		RequestType: RequestExpense,
		RequestID:   "req-9",
		Requester:   "emp-9",
		Approvers: []Step{
			{Approver: "appr-a", Level: 1, Status: StatusPending},
			{Approver: "appr-b", Level: 1, Status: StatusPending},
		},
		CurrentLevel: 1,
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Create(context.Background(), &flow); err != nil {
		t.Fatalf("seed flow: %v", err)
	}

	done := make(chan error, 2)
	for _, approver := range []string{"appr-a", "appr-b"} {
		go func(approver string) {
			_, err := svc.Decide(context.Background(), employeeActor(approver), flow.ID, StatusApproved, "")
			done <- err
		}(approver)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent decide: %v", err)
		}
	}

	stored, err := store.FindByID(context.Background(), companyOne, flow.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != StatusApproved {
		t.Fatalf("expected approved after both cohort members decide, got %s", stored.Status)
	}
	for i, step := range stored.Approvers {
		if step.Status != StatusApproved {
			t.Fatalf("step %d lost its decision: %s", i, step.Status)
		}
	}
}
