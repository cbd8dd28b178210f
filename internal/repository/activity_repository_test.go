package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

func TestActivityInsertCancellingAbsenceIsTransactional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewActivityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("DELETE FROM faltas WHERE user_id = \\? AND date = \\?").
		WithArgs(int64(5), "2026-03-09").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	activity := &models.Activity{
		UserID:    5,
		UserName:  "Maria",
		Type:      models.ActivityEntrada,
		Timestamp: models.NewISOTime(time.Date(2026, 3, 9, 10, 31, 0, 0, time.UTC)),
	}
	id, err := repo.InsertCancellingAbsence(context.Background(), activity, "2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityInsertCancellingAbsenceRollsBackOnDeleteFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewActivityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("DELETE FROM faltas").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.InsertCancellingAbsence(context.Background(), &models.Activity{UserID: 5}, "2026-03-09")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityMostRecentQueriesHalfOpenRange(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewActivityRepository(db)

	from := time.Date(2026, 3, 9, 3, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	rows := sqlmock.NewRows([]string{"id", "user_id", "user_name", "user_turma", "user_cabine", "user_turno", "type", "timestamp"}).
		AddRow(3, 5, "Maria", "3A", "C1", "manhã", "Entrada", "2026-03-09T10:31:02Z")
	mock.ExpectQuery("SELECT (.+) FROM activities\\s+WHERE user_id = \\? AND timestamp >= \\? AND timestamp < \\?").
		WithArgs(int64(5), from.Format(time.RFC3339), to.Format(time.RFC3339)).
		WillReturnRows(rows)

	activity, err := repo.MostRecentForUserBetween(context.Background(), 5, from, to)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityEntrada, activity.Type)
	assert.Equal(t, "2026-03-09T10:31:02Z", activity.Timestamp.UTC().Format(time.RFC3339))
}

func TestActivityDailyEntradaCounts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewActivityRepository(db)

	rows := sqlmock.NewRows([]string{"date", "count"}).
		AddRow("2026-03-08", 10).
		AddRow("2026-03-09", 12)
	mock.ExpectQuery("SELECT date\\(timestamp, ?'localtime'\\)").
		WillReturnRows(rows)

	counts, err := repo.DailyEntradaCounts(context.Background(), time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 12, counts[1].Count)
}
