package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrAlreadyAcknowledged = errors.New("policy already acknowledged by employee")
)

type Policy struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

type Acknowledgment struct {
	ID             string    `json:"id"`
	PolicyID       string    `json:"policyId"`
	EmployeeID     string    `json:"employeeId"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
}

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) ListPolicies(ctx context.Context, companyID string) ([]Policy, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, body, version, created_at
    FROM policies
    WHERE company_id = $1
    ORDER BY created_at DESC
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		var policy Policy
		if err := rows.Scan(&policy.ID, &policy.Title, &policy.Body, &policy.Version, &policy.CreatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

func (s *Service) CreatePolicy(ctx context.Context, companyID, title, body string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO policies (company_id, title, body, version)
    VALUES ($1,$2,$3,1)
    RETURNING id
  `, companyID, title, body).Scan(&id)
	return id, err
}

func (s *Service) Acknowledge(ctx context.Context, companyID, policyID, employeeID string) (Acknowledgment, error) {
	var policyCount int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM policies WHERE company_id = $1 AND id = $2
  `, companyID, policyID).Scan(&policyCount); err != nil {
		return Acknowledgment{}, err
	}
	if policyCount == 0 {
		return Acknowledgment{}, ErrPolicyNotFound
	}

	var existing int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM policy_acknowledgments WHERE policy_id = $1 AND employee_id = $2
  `, policyID, employeeID).Scan(&existing); err != nil {
		return Acknowledgment{}, err
	}
	if existing > 0 {
		return Acknowledgment{}, ErrAlreadyAcknowledged
	}

	ack := Acknowledgment{PolicyID: policyID, EmployeeID: employeeID}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO policy_acknowledgments (company_id, policy_id, employee_id)
    VALUES ($1,$2,$3)
    RETURNING id, acknowledged_at
  `, companyID, policyID, employeeID).Scan(&ack.ID, &ack.AcknowledgedAt)
	return ack, err
}

func (s *Service) ListAcknowledgments(ctx context.Context, companyID, policyID string) ([]Acknowledgment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, policy_id, employee_id, acknowledged_at
    FROM policy_acknowledgments
    WHERE company_id = $1 AND policy_id = $2
    ORDER BY acknowledged_at DESC
  `, companyID, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acks []Acknowledgment
	for rows.Next() {
		var ack Acknowledgment
		if err := rows.Scan(&ack.ID, &ack.PolicyID, &ack.EmployeeID, &ack.AcknowledgedAt); err != nil {
			return nil, err
		}
		acks = append(acks, ack)
	}
	return acks, rows.Err()
}
