package approval

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	RequestLeave      = "leave"
	RequestExpense    = "expense"
	RequestEquipment  = "equipment"
	RequestPromotion  = "promotion"
	RequestTransfer   = "transfer"
	RequestAttendance = "attendance"
)

var RequestTypes = []string{
	RequestLeave,
	RequestExpense,
	RequestEquipment,
	RequestPromotion,
	RequestTransfer,
	RequestAttendance,
}

func ValidRequestType(requestType string) bool {
	for _, candidate := range RequestTypes {
		if requestType == candidate {
			return true
		}
	}
	return false
}

// Step is one approver's decision slot at a given level. Multiple steps may
// share a level; the flow advances past a level only when every step at that
// level is approved.
type Step struct {
	Approver     string     `json:"approver"`
	ApproverName string     `json:"approverName,omitempty"`
	Level        int        `json:"level"`
	Status       string     `json:"status"`
	Comment      string     `json:"comment,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
}

// Flow tracks one business request through sequential approval levels.
// Version guards conditional updates; every committed mutation increments it.
type Flow struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"-"`
	RequestType   string    `json:"requestType"`
	RequestID     string    `json:"requestId"`
	Requester     string    `json:"requester"`
	RequesterName string    `json:"requesterName,omitempty"`
	Approvers     []Step    `json:"approvers"`
	CurrentLevel  int       `json:"currentLevel"`
	Status        string    `json:"status"`
	Version       int64     `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Terminal reports whether the flow has reached a state that permits no
// further step mutations.
func (f Flow) Terminal() bool {
	return f.Status == StatusApproved || f.Status == StatusRejected
}

func (f Flow) cohortApproved(level int) bool {
	found := false
	for _, step := range f.Approvers {
		if step.Level != level {
			continue
		}
		found = true
		if step.Status != StatusApproved {
			return false
		}
	}
	return found
}

func (f Flow) hasPendingAtLevel(level int) bool {
	for _, step := range f.Approvers {
		if step.Level == level && step.Status == StatusPending {
			return true
		}
	}
	return false
}
