package payroll

import "time"

type SalaryStructure struct {
	EmployeeID string    `json:"employeeId"`
	Basic      float64   `json:"basic"`
	Allowances float64   `json:"allowances"`
	Deductions float64   `json:"deductions"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Record struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	EmployeeName string    `json:"employeeName,omitempty"`
	Month        string    `json:"month"`
	Basic        float64   `json:"basic"`
	Allowances   float64   `json:"allowances"`
	Deductions   float64   `json:"deductions"`
	Net          float64   `json:"net"`
	GeneratedAt  time.Time `json:"generatedAt"`
}
