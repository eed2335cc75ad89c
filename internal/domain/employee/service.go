package employee

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"hrerp/internal/domain/auth"
)

var ErrValidation = errors.New("validation failed")

type Creator interface {
	Create(ctx context.Context, in NewEmployee) (Employee, error)
}

type CreateInput struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	ApprovalLevel string `json:"approvalLevel"`
	Name          string `json:"name"`
	Department    string `json:"department"`
	ManagerID     ID     `json:"managerId"`
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(in.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if !auth.ValidRole(in.Role) {
		return fmt.Errorf("%w: invalid role", ErrValidation)
	}
	if in.ApprovalLevel != "" && in.ApprovalLevel != auth.ApprovalLevel1 {
		return fmt.Errorf("%w: invalid approval level", ErrValidation)
	}
	return nil
}

// Register validates the input, hashes the password and creates the profile.
func Register(ctx context.Context, store Creator, in CreateInput) (Employee, error) {
	if in.Role == "" {
		in.Role = auth.RoleEmployee
	}
	if err := in.Validate(); err != nil {
		return Employee{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Employee{}, err
	}
	return store.Create(ctx, NewEmployee{
		Email:         strings.TrimSpace(in.Email),
		PasswordHash:  hash,
		Role:          in.Role,
		ApprovalLevel: in.ApprovalLevel,
		Name:          strings.TrimSpace(in.Name),
		Department:    strings.TrimSpace(in.Department),
		ManagerID:     in.ManagerID,
	})
}
