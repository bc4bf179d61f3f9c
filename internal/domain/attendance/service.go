package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAlreadyCheckedIn = errors.New("employee already checked in today")
	ErrNoOpenCheckIn    = errors.New("employee has no open check-in today")
)

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) CheckIn(ctx context.Context, companyID, employeeID string, at time.Time) (Record, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM attendance_records
    WHERE company_id = $1 AND employee_id = $2 AND day = $3
  `, companyID, employeeID, day).Scan(&count); err != nil {
		return Record{}, err
	}
	if count > 0 {
		return Record{}, ErrAlreadyCheckedIn
	}

	record := Record{EmployeeID: employeeID, Day: day, CheckIn: at.UTC()}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO attendance_records (company_id, employee_id, day, check_in)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, companyID, employeeID, day, record.CheckIn).Scan(&record.ID)
	return record, err
}

func (s *Service) CheckOut(ctx context.Context, companyID, employeeID string, at time.Time) (Record, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	var record Record
	err := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, day, check_in
    FROM attendance_records
    WHERE company_id = $1 AND employee_id = $2 AND day = $3 AND check_out IS NULL
  `, companyID, employeeID, day).Scan(&record.ID, &record.EmployeeID, &record.Day, &record.CheckIn)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNoOpenCheckIn
	}
	if err != nil {
		return Record{}, err
	}

	checkOut := at.UTC()
	hours := checkOut.Sub(record.CheckIn).Hours()
	if hours < 0 {
		hours = 0
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE attendance_records SET check_out = $2, hours = $3 WHERE id = $1
  `, record.ID, checkOut, hours); err != nil {
		return Record{}, err
	}
	record.CheckOut = &checkOut
	record.Hours = hours
	return record, nil
}

func (s *Service) List(ctx context.Context, companyID, employeeID string, limit, offset int) ([]Record, error) {
	query := `
    SELECT id, employee_id, day, check_in, check_out, hours
    FROM attendance_records
    WHERE company_id = $1
  `
	args := []any{companyID}
	if employeeID != "" {
		query += " AND employee_id = $2"
		args = append(args, employeeID)
	}
	query += fmt.Sprintf(" ORDER BY day DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.ID, &record.EmployeeID, &record.Day, &record.CheckIn, &record.CheckOut, &record.Hours); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Summary aggregates one employee's attendance for a month given as "2006-01".
func (s *Service) Summary(ctx context.Context, companyID, employeeID, month string) (MonthlySummary, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return MonthlySummary{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, 0)

	summary := MonthlySummary{EmployeeID: employeeID, Month: month}
	err = s.DB.QueryRow(ctx, `
    SELECT COUNT(1), COALESCE(SUM(hours), 0)
    FROM attendance_records
    WHERE company_id = $1 AND employee_id = $2 AND day >= $3 AND day < $4
  `, companyID, employeeID, start, end).Scan(&summary.DaysWorked, &summary.TotalHours)
	return summary, err
}
