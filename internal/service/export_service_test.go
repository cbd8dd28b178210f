package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type reportActivityStub struct {
	activities []models.Activity
	turma      string
}

func (s *reportActivityStub) ListAllBetween(_ context.Context, _, _ time.Time, turma string) ([]models.Activity, error) {
	s.turma = turma
	return s.activities, nil
}

type reportAbsenceStub struct {
	absences []models.Absence
	filter   models.AbsenceFilter
}

func (s *reportAbsenceStub) List(_ context.Context, filter models.AbsenceFilter) ([]models.Absence, error) {
	s.filter = filter
	return s.absences, nil
}

func reportTime(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, time.Local)
}

func TestFrequencyReportPairsFirstEntradaWithLastSaida(t *testing.T) {
	activities := &reportActivityStub{activities: []models.Activity{
		{UserID: 1, UserName: "Ana Souza", UserTurma: "3A", UserCabine: "12", Type: models.ActivityEntrada, Timestamp: models.NewISOTime(reportTime(9, 7, 30))},
		{UserID: 1, UserName: "Ana Souza", UserTurma: "3A", UserCabine: "12", Type: models.ActivitySaida, Timestamp: models.NewISOTime(reportTime(9, 12, 0))},
		{UserID: 1, UserName: "Ana Souza", UserTurma: "3A", UserCabine: "12", Type: models.ActivityEntrada, Timestamp: models.NewISOTime(reportTime(9, 13, 10))},
		{UserID: 1, UserName: "Ana Souza", UserTurma: "3A", UserCabine: "12", Type: models.ActivitySaida, Timestamp: models.NewISOTime(reportTime(9, 17, 45))},
	}}
	svc := NewExportService(activities, &reportAbsenceStub{}, nil, nil, nil)

	file, err := svc.FrequencyReport(context.Background(), "2026-03", "3A", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "3A", activities.turma)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "frequencia-2026-03.csv", file.Filename)

	body := string(file.Content)
	assert.Contains(t, body, "Ana Souza")
	assert.Contains(t, body, "09/03/2026")
	assert.Contains(t, body, "07:30")
	assert.Contains(t, body, "17:45")
	assert.NotContains(t, body, "12:00")
	assert.NotContains(t, body, "13:10")
}

func TestFrequencyReportMarksMissingSaida(t *testing.T) {
	activities := &reportActivityStub{activities: []models.Activity{
		{UserID: 2, UserName: "Bruno Lima", UserTurma: "3B", Type: models.ActivityEntrada, Timestamp: models.NewISOTime(reportTime(10, 8, 0))},
	}}
	svc := NewExportService(activities, &reportAbsenceStub{}, nil, nil, nil)

	file, err := svc.FrequencyReport(context.Background(), "2026-03", "", "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "08:00")
	assert.Contains(t, lines[1], "-")
}

func TestAbsenceReportWeightsDaysByPeriods(t *testing.T) {
	absences := &reportAbsenceStub{absences: []models.Absence{
		{UserID: 1, UserName: "Carla Dias", Date: "2026-03-02"},
		{UserID: 1, UserName: "Carla Dias", Date: "2026-03-05"},
		{UserID: 2, UserName: "Ana Souza", Date: "2026-03-03"},
	}}
	svc := NewExportService(&reportActivityStub{}, absences, nil, nil, nil)

	file, err := svc.AbsenceReport(context.Background(), "2026-03", "", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "2026-03", absences.filter.Month)
	assert.Equal(t, "faltas-2026-03.csv", file.Filename)

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	require.Len(t, lines, 3)
	// Rows sorted by name.
	assert.Contains(t, lines[1], "Ana Souza")
	assert.Contains(t, lines[1], "3")
	assert.Contains(t, lines[2], "Carla Dias")
	assert.Contains(t, lines[2], "6")
	assert.Contains(t, lines[2], "02/03, 05/03")
}

func TestAbsenceReportRendersPDF(t *testing.T) {
	absences := &reportAbsenceStub{absences: []models.Absence{
		{UserID: 1, UserName: "Carla Dias", Date: "2026-03-02"},
	}}
	svc := NewExportService(&reportActivityStub{}, absences, nil, nil, nil)

	file, err := svc.AbsenceReport(context.Background(), "2026-03", "", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestReportRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&reportActivityStub{}, &reportAbsenceStub{}, nil, nil, nil)

	_, err := svc.FrequencyReport(context.Background(), "2026-03", "", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportRejectsBadMonth(t *testing.T) {
	svc := NewExportService(&reportActivityStub{}, &reportAbsenceStub{}, nil, nil, nil)

	_, err := svc.FrequencyReport(context.Background(), "março", "", FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
