package employee

import (
	"time"

	"hrerp/internal/domain/auth"
)

// ID identifies an employee profile. Not interchangeable with auth.UserID.
type ID string

type Employee struct {
	ID         ID          `json:"id"`
	UserID     auth.UserID `json:"userId,omitempty"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Department string      `json:"department"`
	ManagerID  ID          `json:"managerId,omitempty"`
	IsActive   bool        `json:"isActive"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// NewEmployee carries everything needed to create the login identity and the
// profile together.
type NewEmployee struct {
	Email         string
	PasswordHash  string
	Role          string
	ApprovalLevel string
	Name          string
	Department    string
	ManagerID     ID
}
