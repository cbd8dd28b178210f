package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

type dashActivityStub struct {
	daily   []models.DailyCount
	present int
}

func (s *dashActivityStub) DailyEntradaCounts(context.Context, time.Time) ([]models.DailyCount, error) {
	return s.daily, nil
}

func (s *dashActivityStub) CountDistinctEntradaBetween(context.Context, time.Time, time.Time) (int, error) {
	return s.present, nil
}

type dashAbsenceStub struct {
	count int
	dates []string
}

func (s *dashAbsenceStub) CountForDate(_ context.Context, date string) (int, error) {
	s.dates = append(s.dates, date)
	return s.count, nil
}

type dashUserStub struct {
	users []models.User
}

func (s *dashUserStub) List(context.Context) ([]models.User, error) {
	return s.users, nil
}

func TestDashboardStatsAggregates(t *testing.T) {
	day := time.Date(2026, 3, 9, 10, 0, 0, 0, time.Local)
	activities := &dashActivityStub{
		present: 12,
		daily: []models.DailyCount{
			{Date: "2026-03-07", Count: 9},
			{Date: "2026-03-09", Count: 12},
		},
	}
	absences := &dashAbsenceStub{count: 4}
	users := &dashUserStub{users: make([]models.User, 20)}

	svc := NewDashboardService(activities, absences, users, nil, nil)
	svc.now = func() time.Time { return day }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalUsers)
	assert.Equal(t, 12, stats.PresentToday)
	assert.Equal(t, 4, stats.AbsentToday)
	assert.Equal(t, []string{"2026-03-09"}, absences.dates)
}

func TestDashboardWeeklyIsZeroFilled(t *testing.T) {
	day := time.Date(2026, 3, 9, 10, 0, 0, 0, time.Local)
	activities := &dashActivityStub{
		daily: []models.DailyCount{{Date: "2026-03-05", Count: 3}},
	}
	svc := NewDashboardService(activities, &dashAbsenceStub{}, &dashUserStub{}, nil, nil)
	svc.now = func() time.Time { return day }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Weekly, 7)
	assert.Equal(t, "2026-03-03", stats.Weekly[0].Date)
	assert.Equal(t, "2026-03-09", stats.Weekly[6].Date)
	for _, bucket := range stats.Weekly {
		if bucket.Date == "2026-03-05" {
			assert.Equal(t, 3, bucket.Count)
		} else {
			assert.Zero(t, bucket.Count)
		}
	}
}
