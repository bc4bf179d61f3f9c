package approval

import (
	"context"
	"errors"
	"strings"
	"time"

	"hrms/internal/domain/auth"
)

// Directory resolves user ids to display names for API responses. Lookups are
// best effort; a failed lookup leaves the name blank.
type Directory interface {
	DisplayName(ctx context.Context, companyID, userID string) (string, error)
}

type Service struct {
	Store         StoreAPI
	Directory     Directory
	DecideRetries int
	now           func() time.Time
}

func NewService(store StoreAPI, directory Directory, decideRetries int) *Service {
	if decideRetries < 1 {
		decideRetries = 1
	}
	return &Service{Store: store, Directory: directory, DecideRetries: decideRetries, now: time.Now}
}

type CreateInput struct {
	RequestType string   `json:"requestType"`
	RequestID   string   `json:"requestId"`
	Requester   string   `json:"requester"`
	Approvers   []string `json:"approvers"`
}

// Create builds a flow with one step per approver, level assigned by 1-based
// position, and persists it. Only hr and admin actors may create flows.
func (s *Service) Create(ctx context.Context, actor auth.UserContext, input CreateInput) (Flow, error) {
	if actor.Role != auth.RoleHR && actor.Role != auth.RoleAdmin {
		return Flow{}, ErrRoleNotAllowed
	}
	if !ValidRequestType(input.RequestType) {
		return Flow{}, invalid("requestType", "must be one of "+strings.Join(RequestTypes, ", "))
	}
	if strings.TrimSpace(input.RequestID) == "" {
		return Flow{}, invalid("requestId", "is required")
	}
	if strings.TrimSpace(input.Requester) == "" {
		return Flow{}, invalid("requester", "is required")
	}
	if len(input.Approvers) == 0 {
		return Flow{}, invalid("approvers", "must not be empty")
	}

	now := s.now().UTC()
	flow := Flow{
		CompanyID:    actor.CompanyID,
		RequestType:  input.RequestType,
		RequestID:    strings.TrimSpace(input.RequestID),
		Requester:    strings.TrimSpace(input.Requester),
		CurrentLevel: 1,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, approver := range input.Approvers {
		approver = strings.TrimSpace(approver)
		if approver == "" {
			return Flow{}, invalid("approvers", "entries must not be blank")
		}
		flow.Approvers = append(flow.Approvers, Step{
			Approver: approver,
			Level:    i + 1,
			Status:   StatusPending,
		})
	}

	if err := s.Store.Create(ctx, &flow); err != nil {
		return Flow{}, err
	}
	s.resolveNames(ctx, &flow)
	return flow, nil
}

// Get returns a single flow scoped to the actor's company.
func (s *Service) Get(ctx context.Context, actor auth.UserContext, flowID string) (Flow, error) {
	flow, err := s.Store.FindByID(ctx, actor.CompanyID, flowID)
	if err != nil {
		return Flow{}, err
	}
	s.resolveNames(ctx, &flow)
	return flow, nil
}

// ListAll returns every flow in the actor's company, newest first.
func (s *Service) ListAll(ctx context.Context, actor auth.UserContext) ([]Flow, error) {
	flows, err := s.Store.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		s.resolveNames(ctx, &flows[i])
	}
	return flows, nil
}

// ListPendingForActor returns flows on which the actor still has a pending
// step. The match is level-agnostic: a step at a later level that is not yet
// actionable still counts.
func (s *Service) ListPendingForActor(ctx context.Context, actor auth.UserContext) ([]Flow, error) {
	flows, err := s.Store.ListPendingForApprover(ctx, actor.CompanyID, actor.UserID)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		s.resolveNames(ctx, &flows[i])
	}
	return flows, nil
}

// Decide records the actor's decision on their pending step and runs the
// level-transition rules: a rejection terminates the whole flow immediately;
// an approval advances the flow once every step at the same level is approved,
// and approves the flow when no pending step exists at the next level.
//
// The write is conditional on the flow version read at the start of the
// attempt, so two concurrent deciders cannot overwrite each other; on a
// version conflict the whole read-validate-write cycle is retried up to
// DecideRetries times.
func (s *Service) Decide(ctx context.Context, actor auth.UserContext, flowID, decision, comment string) (Flow, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return Flow{}, invalid("status", "must be approved or rejected")
	}

	var lastErr error
	for attempt := 0; attempt < s.DecideRetries; attempt++ {
		flow, err := s.Store.FindByID(ctx, actor.CompanyID, flowID)
		if err != nil {
			return Flow{}, err
		}
		if flow.Terminal() {
			return Flow{}, ErrFlowTerminal
		}

		// Only a pending step at the active level is actionable; later-level
		// approvers must wait for their level to be reached.
		stepIndex := -1
		for i, step := range flow.Approvers {
			if step.Approver == actor.UserID && step.Status == StatusPending && step.Level == flow.CurrentLevel {
				stepIndex = i
				break
			}
		}
		if stepIndex < 0 {
			return Flow{}, ErrNotPendingApprover
		}

		decidedAt := s.now().UTC()
		step := &flow.Approvers[stepIndex]
		step.Status = decision
		step.Comment = comment
		step.ApprovedAt = &decidedAt

		if decision == StatusRejected {
			flow.Status = StatusRejected
		} else if flow.cohortApproved(step.Level) {
			flow.CurrentLevel++
			if !flow.hasPendingAtLevel(flow.CurrentLevel) {
				flow.Status = StatusApproved
			}
		}
		flow.UpdatedAt = decidedAt

		err = s.Store.SaveDecision(ctx, flow, flow.Version)
		if errors.Is(err, ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return Flow{}, err
		}
		flow.Version++
		s.resolveNames(ctx, &flow)
		return flow, nil
	}
	return Flow{}, lastErr
}

func (s *Service) resolveNames(ctx context.Context, flow *Flow) {
	if s.Directory == nil {
		return
	}
	if name, err := s.Directory.DisplayName(ctx, flow.CompanyID, flow.Requester); err == nil {
		flow.RequesterName = name
	}
	for i := range flow.Approvers {
		if name, err := s.Directory.DisplayName(ctx, flow.CompanyID, flow.Approvers[i].Approver); err == nil {
			flow.Approvers[i].ApproverName = name
		}
	}
}
