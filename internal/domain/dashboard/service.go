package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Summary struct {
	Headcount        int `json:"headcount"`
	PendingApprovals int `json:"pendingApprovals"`
	AttendanceToday  int `json:"attendanceToday"`
	OpenPositions    int `json:"openPositions"`
}

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Summary(ctx context.Context, companyID string) (Summary, error) {
	var summary Summary

	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM employees WHERE company_id = $1 AND status = 'active'
  `, companyID).Scan(&summary.Headcount); err != nil {
		return Summary{}, err
	}

	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM approval_flows WHERE company_id = $1 AND status = 'pending'
  `, companyID).Scan(&summary.PendingApprovals); err != nil {
		return Summary{}, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM attendance_records WHERE company_id = $1 AND day = $2
  `, companyID, today).Scan(&summary.AttendanceToday); err != nil {
		return Summary{}, err
	}

	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM job_postings WHERE company_id = $1 AND status = 'open'
  `, companyID).Scan(&summary.OpenPositions); err != nil {
		return Summary{}, err
	}

	return summary, nil
}
