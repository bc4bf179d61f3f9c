package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidScore = errors.New("score must be between 1 and 5")

type KPI struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Weight      float64   `json:"weight"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Review struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	KPIID      string    `json:"kpiId"`
	ReviewerID string    `json:"reviewerId"`
	Period     string    `json:"period"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) ListKPIs(ctx context.Context, companyID string) ([]KPI, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(description, ''), weight, created_at
    FROM kpis
    WHERE company_id = $1
    ORDER BY name
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kpis []KPI
	for rows.Next() {
		var kpi KPI
		if err := rows.Scan(&kpi.ID, &kpi.Name, &kpi.Description, &kpi.Weight, &kpi.CreatedAt); err != nil {
			return nil, err
		}
		kpis = append(kpis, kpi)
	}
	return kpis, rows.Err()
}

func (s *Service) CreateKPI(ctx context.Context, companyID string, kpi KPI) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO kpis (company_id, name, description, weight)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, companyID, kpi.Name, kpi.Description, kpi.Weight).Scan(&id)
	return id, err
}

func (s *Service) CreateReview(ctx context.Context, companyID string, review Review) (string, error) {
	if review.Score < 1 || review.Score > 5 {
		return "", ErrInvalidScore
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO performance_reviews (company_id, employee_id, kpi_id, reviewer_id, period, score, comment)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, companyID, review.EmployeeID, review.KPIID, review.ReviewerID, review.Period, review.Score, review.Comment).Scan(&id)
	return id, err
}

func (s *Service) ListReviews(ctx context.Context, companyID, employeeID, period string) ([]Review, error) {
	query := `
    SELECT id, employee_id, kpi_id, reviewer_id, period, score, COALESCE(comment, ''), created_at
    FROM performance_reviews
    WHERE company_id = $1
  `
	args := []any{companyID}
	if employeeID != "" {
		args = append(args, employeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if period != "" {
		args = append(args, period)
		query += fmt.Sprintf(" AND period = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		if err := rows.Scan(&review.ID, &review.EmployeeID, &review.KPIID, &review.ReviewerID,
			&review.Period, &review.Score, &review.Comment, &review.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// AverageScore computes an employee's mean review score for a period, or all
// periods when period is blank.
func (s *Service) AverageScore(ctx context.Context, companyID, employeeID, period string) (float64, error) {
	query := "SELECT COALESCE(AVG(score), 0) FROM performance_reviews WHERE company_id = $1 AND employee_id = $2"
	args := []any{companyID, employeeID}
	if period != "" {
		args = append(args, period)
		query += fmt.Sprintf(" AND period = $%d", len(args))
	}
	var avg float64
	err := s.DB.QueryRow(ctx, query, args...).Scan(&avg)
	return avg, err
}
