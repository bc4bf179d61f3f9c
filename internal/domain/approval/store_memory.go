package approval

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process StoreAPI used by tests. It enforces the same
// version check as the Postgres store so concurrency behavior matches.
type MemoryStore struct {
	mu    sync.Mutex
	flows map[string]Flow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: map[string]Flow{}}
}

func (m *MemoryStore) Create(_ context.Context, flow *Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	flow.ID = uuid.NewString()
	flow.Version = 1
	m.flows[flow.ID] = cloneFlow(*flow)
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, companyID, flowID string) (Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flow, ok := m.flows[flowID]
	if !ok || flow.CompanyID != companyID {
		return Flow{}, ErrFlowNotFound
	}
	return cloneFlow(flow), nil
}

func (m *MemoryStore) ListByCompany(_ context.Context, companyID string) ([]Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flows []Flow
	for _, flow := range m.flows {
		if flow.CompanyID == companyID {
			flows = append(flows, cloneFlow(flow))
		}
	}
	sortNewestFirst(flows)
	return flows, nil
}

func (m *MemoryStore) ListPendingForApprover(_ context.Context, companyID, approverID string) ([]Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flows []Flow
	for _, flow := range m.flows {
		if flow.CompanyID != companyID {
			continue
		}
		for _, step := range flow.Approvers {
			if step.Approver == approverID && step.Status == StatusPending {
				flows = append(flows, cloneFlow(flow))
				break
			}
		}
	}
	sortNewestFirst(flows)
	return flows, nil
}

func (m *MemoryStore) SaveDecision(_ context.Context, flow Flow, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.flows[flow.ID]
	if !ok || stored.CompanyID != flow.CompanyID {
		return ErrFlowNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	flow.Version = expectedVersion + 1
	m.flows[flow.ID] = cloneFlow(flow)
	return nil
}

func cloneFlow(flow Flow) Flow {
	steps := make([]Step, len(flow.Approvers))
	copy(steps, flow.Approvers)
	for i := range steps {
		if steps[i].ApprovedAt != nil {
			at := *steps[i].ApprovedAt
			steps[i].ApprovedAt = &at
		}
	}
	flow.Approvers = steps
	return flow
}

func sortNewestFirst(flows []Flow) {
	sort.SliceStable(flows, func(i, j int) bool {
		if flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].ID > flows[j].ID
		}
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})
}
