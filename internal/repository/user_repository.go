package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

// UserRepository handles persistence for enrolled users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, nome, matricula, turma, email, genero, cabine, turno, dias_semana"

// List returns all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY nome", userColumns)
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// FindByID returns one user or sql.ErrNoRows.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ?", userColumns)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a user. A matricula collision surfaces as
// ErrDuplicateMatricula so callers can roll back sensor-side state.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, nome, matricula, turma, email, genero, cabine, turno, dias_semana)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Nome, user.Matricula, user.Turma, user.Email,
		user.Genero, user.Cabine, user.Turno, user.DiasSemana)
	if err != nil {
		if isUniqueViolation(err, "users.matricula") {
			return appErrors.Clone(appErrors.ErrDuplicateMatricula, "")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update rewrites the full profile for the given id.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET nome = ?, matricula = ?, turma = ?, email = ?, genero = ?, cabine = ?, turno = ?, dias_semana = ?
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		user.Nome, user.Matricula, user.Turma, user.Email,
		user.Genero, user.Cabine, user.Turno, user.DiasSemana, user.ID)
	if err != nil {
		if isUniqueViolation(err, "users.matricula") {
			return appErrors.Clone(appErrors.ErrDuplicateMatricula, "")
		}
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrUserNotFound, "")
	}
	return nil
}

// Delete removes a user row; reports whether anything was deleted.
func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected > 0, nil
}

// NextFreeID returns the smallest positive id not yet assigned, so that
// template slots freed by deletions are reused.
func (r *UserRepository) NextFreeID(ctx context.Context) (int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM users ORDER BY id"); err != nil {
		return 0, fmt.Errorf("list user ids: %w", err)
	}
	var next int64 = 1
	for _, id := range ids {
		if id > next {
			break
		}
		next = id + 1
	}
	return next, nil
}

// RemoveDuplicates deletes users sharing a matricula, keeping the row
// with the lowest id per matricula. Returns the removed count.
func (r *UserRepository) RemoveDuplicates(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM users WHERE id NOT IN (SELECT MIN(id) FROM users GROUP BY matricula)")
	if err != nil {
		return 0, fmt.Errorf("remove duplicate users: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove duplicate users: %w", err)
	}
	return int(affected), nil
}

func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+constraint)
}
