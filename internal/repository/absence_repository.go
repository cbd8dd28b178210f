package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

// AbsenceRepository handles persistence for per-day absence markers.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs the repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

const absenceColumns = "id, user_id, user_name, user_turma, user_turno, date, reason, created_at"

const insertAbsenceQuery = `INSERT INTO faltas (user_id, user_name, user_turma, user_turno, date, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// Insert adds one absence marker. The (user, date) pair is unique.
func (r *AbsenceRepository) Insert(ctx context.Context, a *models.Absence) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertAbsenceQuery,
		a.UserID, a.UserName, a.UserTurma, a.UserTurno, a.Date, a.Reason, a.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, appErrors.New("DUPLICATE_ABSENCE", 409, "an absence for this user and date already exists")
		}
		return 0, fmt.Errorf("insert absence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert absence: %w", err)
	}
	return id, nil
}

// InitializeForDate inserts the given absence rows unless any absence
// already exists for that date; the presence check and the inserts run
// in one transaction, which is what makes the daily routine idempotent.
func (r *AbsenceRepository) InitializeForDate(ctx context.Context, date string, rows []models.Absence) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int
	if err := tx.GetContext(ctx, &existing, "SELECT COUNT(*) FROM faltas WHERE date = ?", date); err != nil {
		return 0, fmt.Errorf("count absences: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	for i := range rows {
		a := &rows[i]
		if _, err := tx.ExecContext(ctx, insertAbsenceQuery,
			a.UserID, a.UserName, a.UserTurma, a.UserTurno, a.Date, a.Reason, a.CreatedAt); err != nil {
			return 0, fmt.Errorf("insert absence for user %d: %w", a.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit absences: %w", err)
	}
	return len(rows), nil
}

// List returns absences matching the filter, newest date first.
func (r *AbsenceRepository) List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Turma != "" {
		where = append(where, "user_turma = ?")
		args = append(args, filter.Turma)
	}
	if filter.Date != "" {
		where = append(where, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.Month != "" {
		where = append(where, "date LIKE ?")
		args = append(args, filter.Month+"-%")
	}

	query := fmt.Sprintf("SELECT %s FROM faltas WHERE %s ORDER BY date DESC, user_name",
		absenceColumns, strings.Join(where, " AND "))
	var rows []models.Absence
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return rows, nil
}

// DeleteByID removes one absence; reports whether the row existed.
func (r *AbsenceRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM faltas WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete absence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete absence: %w", err)
	}
	return affected > 0, nil
}

// CountForDate counts absence markers on a calendar date.
func (r *AbsenceRepository) CountForDate(ctx context.Context, date string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM faltas WHERE date = ?", date); err != nil {
		return 0, fmt.Errorf("count absences: %w", err)
	}
	return count, nil
}
