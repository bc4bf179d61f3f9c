package auth

import "time"

const (
	RoleAdmin    = "admin"
	RoleHR       = "hr"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

var AllRoles = []string{RoleAdmin, RoleHR, RoleManager, RoleEmployee}

func ValidRole(role string) bool {
	for _, candidate := range AllRoles {
		if role == candidate {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"companyId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserContext is the actor identity attached to each authenticated request:
// user id, tenant (company) id, and role.
type UserContext struct {
	UserID    string
	CompanyID string
	Role      string
}
