package employee

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrerp/internal/domain/auth"
	"hrerp/internal/platform/querier"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInvalidManager = errors.New("manager not found")
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const employeeColumns = `id::text, COALESCE(user_id::text, ''), name, email, department,
           COALESCE(manager_id::text, ''), is_active, created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	var id, userID, managerID string
	if err := row.Scan(&id, &userID, &emp.Name, &emp.Email, &emp.Department, &managerID, &emp.IsActive, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	emp.ID = ID(id)
	emp.UserID = auth.UserID(userID)
	emp.ManagerID = ID(managerID)
	return emp, nil
}

func (s *Store) FindByID(ctx context.Context, id ID) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", string(id)))
}

func (s *Store) EmployeeFor(ctx context.Context, userID auth.UserID) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE user_id = $1", string(userID)))
}

func (s *Store) ListActive(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+employeeColumns+" FROM employees WHERE is_active = true ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// Create inserts the user row and the employee profile in one transaction.
func (s *Store) Create(ctx context.Context, in NewEmployee) (Employee, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Employee{}, err
	}
	defer tx.Rollback(ctx)

	if in.ManagerID != "" {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)", string(in.ManagerID)).Scan(&exists); err != nil {
			return Employee{}, err
		}
		if !exists {
			return Employee{}, ErrInvalidManager
		}
	}

	var userID string
	err = tx.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role, approval_level, is_active)
    VALUES ($1,$2,$3,$4,true)
    ON CONFLICT (email) DO NOTHING
    RETURNING id::text
  `, strings.ToLower(in.Email), in.PasswordHash, in.Role, in.ApprovalLevel).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrDuplicateEmail
		}
		return Employee{}, err
	}

	emp, err := scanEmployee(tx.QueryRow(ctx, `
    INSERT INTO employees (user_id, name, email, department, manager_id)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING `+employeeColumns,
		userID, in.Name, strings.ToLower(in.Email), in.Department, nullIfEmpty(string(in.ManagerID))))
	if err != nil {
		return Employee{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Employee{}, err
	}
	return emp, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
