package approval

import "context"

// StoreAPI is the persistence port for approval flows. Every operation is
// scoped by company id; a flow outside the caller's company behaves exactly
// like a missing flow.
type StoreAPI interface {
	Create(ctx context.Context, flow *Flow) error
	FindByID(ctx context.Context, companyID, flowID string) (Flow, error)
	// ListByCompany returns the company's flows newest-created first.
	ListByCompany(ctx context.Context, companyID string) ([]Flow, error)
	// ListPendingForApprover returns flows with at least one step where the
	// given approver is still pending, regardless of the step's level.
	ListPendingForApprover(ctx context.Context, companyID, approverID string) ([]Flow, error)
	// SaveDecision writes the mutated flow conditional on expectedVersion still
	// being current, incrementing the stored version. Returns ErrVersionConflict
	// if another writer got there first.
	SaveDecision(ctx context.Context, flow Flow, expectedVersion int64) error
}
