package approval

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists flows in Postgres with the approver steps held as a JSONB
// array, mirroring the document layout the flows originated in. The version
// column backs SaveDecision's conditional write.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Create(ctx context.Context, flow *Flow) error {
	stepsJSON, err := json.Marshal(flow.Approvers)
	if err != nil {
		return err
	}
	err = s.DB.QueryRow(ctx, `
    INSERT INTO approval_flows (company_id, request_type, request_id, requester, approvers, current_level, status, version, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,1,$8,$8)
    RETURNING id
  `, flow.CompanyID, flow.RequestType, flow.RequestID, flow.Requester, stepsJSON, flow.CurrentLevel, flow.Status, flow.CreatedAt).Scan(&flow.ID)
	if err != nil {
		return err
	}
	flow.Version = 1
	return nil
}

func (s *Store) FindByID(ctx context.Context, companyID, flowID string) (Flow, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, company_id, request_type, request_id, requester, approvers, current_level, status, version, created_at, updated_at
    FROM approval_flows
    WHERE company_id = $1 AND id = $2
  `, companyID, flowID)
	flow, err := scanFlow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Flow{}, ErrFlowNotFound
	}
	return flow, err
}

func (s *Store) ListByCompany(ctx context.Context, companyID string) ([]Flow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, company_id, request_type, request_id, requester, approvers, current_level, status, version, created_at, updated_at
    FROM approval_flows
    WHERE company_id = $1
    ORDER BY created_at DESC
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFlows(rows)
}

func (s *Store) ListPendingForApprover(ctx context.Context, companyID, approverID string) ([]Flow, error) {
	match, err := json.Marshal([]map[string]string{{"approver": approverID, "status": StatusPending}})
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, company_id, request_type, request_id, requester, approvers, current_level, status, version, created_at, updated_at
    FROM approval_flows
    WHERE company_id = $1 AND approvers @> $2
    ORDER BY created_at DESC
  `, companyID, match)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFlows(rows)
}

func (s *Store) SaveDecision(ctx context.Context, flow Flow, expectedVersion int64) error {
	stepsJSON, err := json.Marshal(flow.Approvers)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE approval_flows
    SET approvers = $4, current_level = $5, status = $6, version = version + 1, updated_at = $7
    WHERE company_id = $1 AND id = $2 AND version = $3
  `, flow.CompanyID, flow.ID, expectedVersion, stepsJSON, flow.CurrentLevel, flow.Status, flow.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// The flow was just read, so a zero-row update means another writer
		// bumped the version in between.
		return ErrVersionConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (Flow, error) {
	var flow Flow
	var stepsJSON []byte
	if err := row.Scan(
		&flow.ID, &flow.CompanyID, &flow.RequestType, &flow.RequestID, &flow.Requester,
		&stepsJSON, &flow.CurrentLevel, &flow.Status, &flow.Version, &flow.CreatedAt, &flow.UpdatedAt,
	); err != nil {
		return Flow{}, err
	}
	if err := json.Unmarshal(stepsJSON, &flow.Approvers); err != nil {
		return Flow{}, err
	}
	return flow, nil
}

func collectFlows(rows pgx.Rows) ([]Flow, error) {
	var flows []Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}
