package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// UserDirectory implements port.UserDirectory
type UserDirectory struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(db *sql.DB, logger *zap.Logger) port.UserDirectory {
	return &UserDirectory{
		db:     db,
		logger: logger,
	}
}

// GetUser retrieves a user with roles
func (d *UserDirectory) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	err := executor(ctx, d.db).QueryRowContext(ctx, `
		SELECT id, first_name, middle_name, last_name, email, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.FirstName, &u.MiddleName, &u.LastName, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		d.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.Roles, err = d.UserRoles(ctx, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserRoles returns the roles a user holds, ordered by id
func (d *UserDirectory) UserRoles(ctx context.Context, userID int64) ([]entity.RoleSummary, error) {
	rows, err := executor(ctx, d.db).QueryContext(ctx, `
		SELECT r.id, r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return scanRoles(rows)
}

// GetRoles resolves role ids, skipping unknown ones
func (d *UserDirectory) GetRoles(ctx context.Context, ids []int64) ([]entity.RoleSummary, error) {
	if len(ids) == 0 {
		return []entity.RoleSummary{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := executor(ctx, d.db).QueryContext(ctx,
		`SELECT id, name FROM roles WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	return scanRoles(rows)
}

// GetRoleByName looks up a role by its unique name
func (d *UserDirectory) GetRoleByName(ctx context.Context, name string) (*entity.RoleSummary, error) {
	var role entity.RoleSummary
	err := executor(ctx, d.db).QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE name = ?`, name).Scan(&role.ID, &role.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// UpsertRole inserts a role by name and fills in its id
func (d *UserDirectory) UpsertRole(ctx context.Context, role *entity.RoleSummary) error {
	err := executor(ctx, d.db).QueryRowContext(ctx, `
		INSERT INTO roles (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id
	`, role.Name).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert role: %w", err)
	}
	return nil
}

// UpsertUser writes a user keyed by id (or a new id when zero) and replaces
// the user's role memberships
func (d *UserDirectory) UpsertUser(ctx context.Context, u *entity.User) error {
	exec := executor(ctx, d.db)
	u.CreatedAt = utc(u.CreatedAt)

	var err error
	if u.ID == 0 {
		err = exec.QueryRowContext(ctx, `
			INSERT INTO users (first_name, middle_name, last_name, email, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id
		`, u.FirstName, u.MiddleName, u.LastName, u.Email, u.CreatedAt).Scan(&u.ID)
	} else {
		_, err = exec.ExecContext(ctx, `
			INSERT INTO users (id, first_name, middle_name, last_name, email, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				middle_name = excluded.middle_name,
				last_name = excluded.last_name,
				email = excluded.email
		`, u.ID, u.FirstName, u.MiddleName, u.LastName, u.Email, u.CreatedAt)
	}
	if err != nil {
		d.logger.Error("Failed to upsert user", zap.String("email", u.Email), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, u.ID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}
	for _, role := range u.Roles {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, u.ID, role.ID); err != nil {
			return fmt.Errorf("failed to insert user role: %w", err)
		}
	}
	return nil
}

func scanRoles(rows *sql.Rows) ([]entity.RoleSummary, error) {
	defer rows.Close()
	roles := []entity.RoleSummary{}
	for rows.Next() {
		var role entity.RoleSummary
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
