package core

import "time"

type Employee struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId,omitempty"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Position     string     `json:"position"`
	DepartmentID string     `json:"departmentId,omitempty"`
	Salary       float64    `json:"salary"`
	JoinDate     *time.Time `json:"joinDate,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ManagerID string    `json:"managerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	EmployeeActive   = "active"
	EmployeeInactive = "inactive"
)
