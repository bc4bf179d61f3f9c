package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrDepartmentNotFound = errors.New("department not found")
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// DisplayName resolves a user id to a human-readable name for API responses.
func (s *Store) DisplayName(ctx context.Context, companyID, userID string) (string, error) {
	var name string
	err := s.DB.QueryRow(ctx, `
    SELECT name FROM users WHERE company_id = $1 AND id = $2
  `, companyID, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func (s *Store) ListEmployees(ctx context.Context, companyID string, limit, offset int) ([]Employee, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE company_id = $1", companyID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(user_id::text, ''), name, email, COALESCE(phone, ''), position,
           COALESCE(department_id::text, ''), salary, join_date, status, created_at, updated_at
    FROM employees
    WHERE company_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, companyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.UserID, &emp.Name, &emp.Email, &emp.Phone, &emp.Position,
			&emp.DepartmentID, &emp.Salary, &emp.JoinDate, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
			return nil, 0, err
		}
		employees = append(employees, emp)
	}
	return employees, total, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, companyID, employeeID string) (Employee, error) {
	var emp Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id, COALESCE(user_id::text, ''), name, email, COALESCE(phone, ''), position,
           COALESCE(department_id::text, ''), salary, join_date, status, created_at, updated_at
    FROM employees
    WHERE company_id = $1 AND id = $2
  `, companyID, employeeID).Scan(&emp.ID, &emp.UserID, &emp.Name, &emp.Email, &emp.Phone, &emp.Position,
		&emp.DepartmentID, &emp.Salary, &emp.JoinDate, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) EmployeeByUserID(ctx context.Context, companyID, userID string) (Employee, error) {
	var emp Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id, COALESCE(user_id::text, ''), name, email, COALESCE(phone, ''), position,
           COALESCE(department_id::text, ''), salary, join_date, status, created_at, updated_at
    FROM employees
    WHERE company_id = $1 AND user_id = $2
  `, companyID, userID).Scan(&emp.ID, &emp.UserID, &emp.Name, &emp.Email, &emp.Phone, &emp.Position,
		&emp.DepartmentID, &emp.Salary, &emp.JoinDate, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) CreateEmployee(ctx context.Context, companyID string, emp Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (company_id, user_id, name, email, phone, position, department_id, salary, join_date, status)
    VALUES ($1, NULLIF($2,'')::uuid, $3, $4, $5, $6, NULLIF($7,'')::uuid, $8, $9, $10)
    RETURNING id
  `, companyID, emp.UserID, emp.Name, emp.Email, emp.Phone, emp.Position, emp.DepartmentID, emp.Salary, emp.JoinDate, emp.Status).Scan(&id)
	return id, err
}

func (s *Store) UpdateEmployee(ctx context.Context, companyID, employeeID string, emp Employee) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET name = $3, email = $4, phone = $5, position = $6, department_id = NULLIF($7,'')::uuid,
        salary = $8, status = $9, updated_at = now()
    WHERE company_id = $1 AND id = $2
  `, companyID, employeeID, emp.Name, emp.Email, emp.Phone, emp.Position, emp.DepartmentID, emp.Salary, emp.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) DeactivateEmployee(ctx context.Context, companyID, employeeID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees SET status = $3, updated_at = now()
    WHERE company_id = $1 AND id = $2
  `, companyID, employeeID, EmployeeInactive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context, companyID string) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(manager_id::text, ''), created_at
    FROM departments
    WHERE company_id = $1
    ORDER BY name
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.ManagerID, &dep.CreatedAt); err != nil {
			return nil, err
		}
		departments = append(departments, dep)
	}
	return departments, rows.Err()
}

func (s *Store) CreateDepartment(ctx context.Context, companyID string, dep Department) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (company_id, name, manager_id)
    VALUES ($1, $2, NULLIF($3,'')::uuid)
    RETURNING id
  `, companyID, dep.Name, dep.ManagerID).Scan(&id)
	return id, err
}

func (s *Store) DeleteDepartment(ctx context.Context, companyID, departmentID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM departments WHERE company_id = $1 AND id = $2", companyID, departmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}
