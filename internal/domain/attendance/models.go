package attendance

import "time"

type Record struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employeeId"`
	Day        time.Time  `json:"day"`
	CheckIn    time.Time  `json:"checkIn"`
	CheckOut   *time.Time `json:"checkOut,omitempty"`
	Hours      float64    `json:"hours"`
}

type MonthlySummary struct {
	EmployeeID string  `json:"employeeId"`
	Month      string  `json:"month"`
	DaysWorked int     `json:"daysWorked"`
	TotalHours float64 `json:"totalHours"`
}
