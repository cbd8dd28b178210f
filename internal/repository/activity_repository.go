package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

// ActivityRepository handles persistence for clock events.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = "id, user_id, user_name, user_turma, user_cabine, user_turno, type, timestamp"

const insertActivityQuery = `INSERT INTO activities (user_id, user_name, user_turma, user_cabine, user_turno, type, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// Insert appends one activity record and returns its generated id.
func (r *ActivityRepository) Insert(ctx context.Context, a *models.Activity) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertActivityQuery,
		a.UserID, a.UserName, a.UserTurma, a.UserCabine, a.UserTurno, a.Type, a.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	return id, nil
}

// InsertCancellingAbsence appends an activity and removes the user's
// absence marker for the given date in one transaction, so no reader
// ever observes the user as both present and absent.
func (r *ActivityRepository) InsertCancellingAbsence(ctx context.Context, a *models.Activity, date string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, insertActivityQuery,
		a.UserID, a.UserName, a.UserTurma, a.UserCabine, a.UserTurno, a.Type, a.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM faltas WHERE user_id = ? AND date = ?", a.UserID, date); err != nil {
		return 0, fmt.Errorf("cancel absence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit activity: %w", err)
	}
	return id, nil
}

// MostRecentForUserBetween returns the latest activity for the user in
// [from, to), or sql.ErrNoRows when none exists.
func (r *ActivityRepository) MostRecentForUserBetween(ctx context.Context, userID int64, from, to time.Time) (*models.Activity, error) {
	var a models.Activity
	query := fmt.Sprintf(`SELECT %s FROM activities
WHERE user_id = ? AND timestamp >= ? AND timestamp < ?
ORDER BY timestamp DESC LIMIT 1`, activityColumns)
	err := r.db.GetContext(ctx, &a, query, userID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns activities matching the filter, newest first.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
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
	if filter.Nome != "" {
		where = append(where, "user_name LIKE ?")
		args = append(args, "%"+filter.Nome+"%")
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Month != "" {
		if start, err := time.ParseInLocation("2006-01", filter.Month, time.Local); err == nil {
			where = append(where, "timestamp >= ? AND timestamp < ?")
			args = append(args,
				start.UTC().Format(time.RFC3339),
				start.AddDate(0, 1, 0).UTC().Format(time.RFC3339))
		}
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM activities WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	query := fmt.Sprintf("SELECT %s FROM activities WHERE %s ORDER BY timestamp DESC LIMIT %d OFFSET %d",
		activityColumns, whereClause, size, (page-1)*size)

	var rows []models.Activity
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	return rows, total, nil
}

// ListAllBetween returns every activity in [from, to), optionally
// scoped to one turma, ordered by user then time. Report builders
// need the full range, so no paging applies.
func (r *ActivityRepository) ListAllBetween(ctx context.Context, from, to time.Time, turma string) ([]models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities
WHERE timestamp >= ? AND timestamp < ?`, activityColumns)
	args := []interface{}{from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if turma != "" {
		query += " AND user_turma = ?"
		args = append(args, turma)
	}
	query += " ORDER BY user_name, timestamp"

	rows := []models.Activity{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list activities for report: %w", err)
	}
	return rows, nil
}

// UpdateOne rewrites type and timestamp of an existing record, the only
// sanctioned correction path. Reports whether the row existed.
func (r *ActivityRepository) UpdateOne(ctx context.Context, id int64, newType models.ActivityType, ts time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE activities SET type = ?, timestamp = ? WHERE id = ?",
		newType, ts.UTC().Format(time.RFC3339), id)
	if err != nil {
		return false, fmt.Errorf("update activity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update activity: %w", err)
	}
	return affected > 0, nil
}

// FindByID returns one activity or sql.ErrNoRows.
func (r *ActivityRepository) FindByID(ctx context.Context, id int64) (*models.Activity, error) {
	var a models.Activity
	query := fmt.Sprintf("SELECT %s FROM activities WHERE id = ?", activityColumns)
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// ClearAll wipes every activity record.
func (r *ActivityRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM activities"); err != nil {
		return fmt.Errorf("clear activities: %w", err)
	}
	return nil
}

// DailyEntradaCounts returns, per local calendar day since from, how
// many distinct users clocked in. Days without entries are absent from
// the result; callers zero-fill.
func (r *ActivityRepository) DailyEntradaCounts(ctx context.Context, from time.Time) ([]models.DailyCount, error) {
	var rows []models.DailyCount
	query := `SELECT date(timestamp, 'localtime') AS date, COUNT(DISTINCT user_id) AS count
FROM activities
WHERE type = ? AND timestamp >= ?
GROUP BY date(timestamp, 'localtime')
ORDER BY date(timestamp, 'localtime')`
	if err := r.db.SelectContext(ctx, &rows, query, models.ActivityEntrada, from.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("daily entrada counts: %w", err)
	}
	return rows, nil
}

// CountDistinctEntradaBetween counts distinct users with an Entrada in
// [from, to).
func (r *ActivityRepository) CountDistinctEntradaBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	query := "SELECT COUNT(DISTINCT user_id) FROM activities WHERE type = ? AND timestamp >= ? AND timestamp < ?"
	err := r.db.GetContext(ctx, &count, query, models.ActivityEntrada,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("count entradas: %w", err)
	}
	return count, nil
}
