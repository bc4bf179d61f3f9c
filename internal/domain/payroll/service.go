package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jung-kurt/gofpdf"
)

var (
	ErrStructureNotFound = errors.New("salary structure not found")
	ErrRecordNotFound    = errors.New("payroll record not found")
	ErrMonthGenerated    = errors.New("payroll already generated for month")
)

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) UpsertStructure(ctx context.Context, companyID, employeeID string, basic, allowances, deductions float64) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO salary_structures (company_id, employee_id, basic, allowances, deductions)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (employee_id) DO UPDATE
    SET basic = EXCLUDED.basic, allowances = EXCLUDED.allowances, deductions = EXCLUDED.deductions, updated_at = now()
  `, companyID, employeeID, basic, allowances, deductions)
	return err
}

func (s *Service) GetStructure(ctx context.Context, companyID, employeeID string) (SalaryStructure, error) {
	var structure SalaryStructure
	err := s.DB.QueryRow(ctx, `
    SELECT employee_id, basic, allowances, deductions, updated_at
    FROM salary_structures
    WHERE company_id = $1 AND employee_id = $2
  `, companyID, employeeID).Scan(&structure.EmployeeID, &structure.Basic, &structure.Allowances, &structure.Deductions, &structure.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SalaryStructure{}, ErrStructureNotFound
	}
	return structure, err
}

// GenerateMonth creates one payroll record per active employee with a salary
// structure, for a month given as "2006-01". Re-generation is rejected.
func (s *Service) GenerateMonth(ctx context.Context, companyID, month string) ([]Record, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}

	var existing int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM payroll_records WHERE company_id = $1 AND month = $2
  `, companyID, month).Scan(&existing); err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrMonthGenerated
	}

	rows, err := s.DB.Query(ctx, `
    SELECT e.id, s.basic, s.allowances, s.deductions
    FROM employees e
    JOIN salary_structures s ON s.employee_id = e.id
    WHERE e.company_id = $1 AND e.status = 'active'
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.EmployeeID, &record.Basic, &record.Allowances, &record.Deductions); err != nil {
			return nil, err
		}
		record.Month = month
		record.Net = ComputeNet(record.Basic, record.Allowances, record.Deductions)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		err := s.DB.QueryRow(ctx, `
      INSERT INTO payroll_records (company_id, employee_id, month, basic, allowances, deductions, net)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      RETURNING id, generated_at
    `, companyID, records[i].EmployeeID, month, records[i].Basic, records[i].Allowances, records[i].Deductions, records[i].Net).
			Scan(&records[i].ID, &records[i].GeneratedAt)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Service) ListRecords(ctx context.Context, companyID, employeeID, month string) ([]Record, error) {
	query := `
    SELECT r.id, r.employee_id, e.name, r.month, r.basic, r.allowances, r.deductions, r.net, r.generated_at
    FROM payroll_records r
    JOIN employees e ON e.id = r.employee_id
    WHERE r.company_id = $1
  `
	args := []any{companyID}
	if employeeID != "" {
		args = append(args, employeeID)
		query += fmt.Sprintf(" AND r.employee_id = $%d", len(args))
	}
	if month != "" {
		args = append(args, month)
		query += fmt.Sprintf(" AND r.month = $%d", len(args))
	}
	query += " ORDER BY r.month DESC, e.name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.ID, &record.EmployeeID, &record.EmployeeName, &record.Month,
			&record.Basic, &record.Allowances, &record.Deductions, &record.Net, &record.GeneratedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Service) GetRecord(ctx context.Context, companyID, recordID string) (Record, error) {
	var record Record
	err := s.DB.QueryRow(ctx, `
    SELECT r.id, r.employee_id, e.name, r.month, r.basic, r.allowances, r.deductions, r.net, r.generated_at
    FROM payroll_records r
    JOIN employees e ON e.id = r.employee_id
    WHERE r.company_id = $1 AND r.id = $2
  `, companyID, recordID).Scan(&record.ID, &record.EmployeeID, &record.EmployeeName, &record.Month,
		&record.Basic, &record.Allowances, &record.Deductions, &record.Net, &record.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return record, err
}

// PayslipPDF renders a payroll record as a one-page payslip.
func (s *Service) PayslipPDF(ctx context.Context, companyID, recordID string) ([]byte, error) {
	record, err := s.GetRecord(ctx, companyID, recordID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", record.EmployeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Month: %s", record.Month))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Basic: %.2f", record.Basic))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Allowances: %.2f", record.Allowances))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Deductions: %.2f", record.Deductions))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Net pay: %.2f", record.Net))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
