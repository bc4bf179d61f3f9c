package recruitment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StageApplied   = "applied"
	StageScreening = "screening"
	StageInterview = "interview"
	StageOffered   = "offered"
	StageHired     = "hired"
	StageRejected  = "rejected"
)

// stageOrder defines the forward pipeline; hired and rejected are terminal.
var stageOrder = map[string]int{
	StageApplied:   1,
	StageScreening: 2,
	StageInterview: 3,
	StageOffered:   4,
	StageHired:     5,
	StageRejected:  5,
}

var (
	ErrJobNotFound       = errors.New("job posting not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrInvalidStage      = errors.New("invalid candidate stage")
	ErrStageRegression   = errors.New("candidate stage cannot move backwards")
)

type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Department  string    `json:"department,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Candidate struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Stage     string    `json:"stage"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) ListJobs(ctx context.Context, companyID string) ([]Job, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, COALESCE(description, ''), COALESCE(department, ''), status, created_at
    FROM job_postings
    WHERE company_id = $1
    ORDER BY created_at DESC
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Description, &job.Department, &job.Status, &job.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Service) CreateJob(ctx context.Context, companyID string, job Job) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_postings (company_id, title, description, department, status)
    VALUES ($1,$2,$3,$4,'open')
    RETURNING id
  `, companyID, job.Title, job.Description, job.Department).Scan(&id)
	return id, err
}

func (s *Service) CloseJob(ctx context.Context, companyID, jobID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE job_postings SET status = 'closed' WHERE company_id = $1 AND id = $2
  `, companyID, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *Service) ListCandidates(ctx context.Context, companyID, jobID string) ([]Candidate, error) {
	query := `
    SELECT id, job_id, name, email, stage, COALESCE(notes, ''), created_at, updated_at
    FROM candidates
    WHERE company_id = $1
  `
	args := []any{companyID}
	if jobID != "" {
		args = append(args, jobID)
		query += fmt.Sprintf(" AND job_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var candidate Candidate
		if err := rows.Scan(&candidate.ID, &candidate.JobID, &candidate.Name, &candidate.Email,
			&candidate.Stage, &candidate.Notes, &candidate.CreatedAt, &candidate.UpdatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

func (s *Service) CreateCandidate(ctx context.Context, companyID string, candidate Candidate) (string, error) {
	var jobCount int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM job_postings WHERE company_id = $1 AND id = $2
  `, companyID, candidate.JobID).Scan(&jobCount); err != nil {
		return "", err
	}
	if jobCount == 0 {
		return "", ErrJobNotFound
	}

	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO candidates (company_id, job_id, name, email, stage, notes)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, companyID, candidate.JobID, candidate.Name, candidate.Email, StageApplied, candidate.Notes).Scan(&id)
	return id, err
}

// AdvanceCandidate moves a candidate to a later pipeline stage. Rejection is
// allowed from any non-terminal stage; other moves must go forward.
func (s *Service) AdvanceCandidate(ctx context.Context, companyID, candidateID, stage string) (Candidate, error) {
	targetRank, ok := stageOrder[stage]
	if !ok {
		return Candidate{}, ErrInvalidStage
	}

	var candidate Candidate
	err := s.DB.QueryRow(ctx, `
    SELECT id, job_id, name, email, stage, COALESCE(notes, ''), created_at, updated_at
    FROM candidates
    WHERE company_id = $1 AND id = $2
  `, companyID, candidateID).Scan(&candidate.ID, &candidate.JobID, &candidate.Name, &candidate.Email,
		&candidate.Stage, &candidate.Notes, &candidate.CreatedAt, &candidate.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Candidate{}, ErrCandidateNotFound
	}
	if err != nil {
		return Candidate{}, err
	}

	currentRank := stageOrder[candidate.Stage]
	if candidate.Stage == StageHired || candidate.Stage == StageRejected {
		return Candidate{}, ErrStageRegression
	}
	if stage != StageRejected && targetRank <= currentRank {
		return Candidate{}, ErrStageRegression
	}

	if _, err := s.DB.Exec(ctx, `
    UPDATE candidates SET stage = $3, updated_at = now() WHERE company_id = $1 AND id = $2
  `, companyID, candidateID, stage); err != nil {
		return Candidate{}, err
	}
	candidate.Stage = stage
	return candidate, nil
}
