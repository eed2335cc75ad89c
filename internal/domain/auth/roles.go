package auth

// UserID identifies a login identity. It is a different key space from
// employee profile ids and the two are never interchangeable.
type UserID string

const (
	RoleEmployee = "employee"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// ApprovalLevel1 is the user attribute that lets a non-approver act as a
// level-1 supervisor.
const ApprovalLevel1 = "level1"

var Roles = []string{RoleEmployee, RoleApprover, RoleAdmin}

func ValidRole(role string) bool {
	for _, candidate := range Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID        UserID
	Role          string
	ApprovalLevel string
	SessionID     string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// IsPrivileged reports whether the caller may act on other people's requests
// outside the approval chain (cancel, close open-ended reports).
func (i Identity) IsPrivileged() bool {
	return i.Role == RoleAdmin || i.Role == RoleApprover
}

type User struct {
	ID            UserID `json:"id"`
	Email         string `json:"email"`
	PasswordHash  string `json:"-"`
	Role          string `json:"role"`
	ApprovalLevel string `json:"approvalLevel,omitempty"`
	IsActive      bool   `json:"isActive"`
}

// CanSupervise reports whether the user may be chosen as a request's
// supervisor.
func (u User) CanSupervise() bool {
	return u.Role == RoleAdmin || u.Role == RoleApprover || u.ApprovalLevel == ApprovalLevel1
}
