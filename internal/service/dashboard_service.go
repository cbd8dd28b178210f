package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/models"
	"github.com/veritas-ponto/veritas-api/pkg/cache"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:stats"

type dashboardActivityRepository interface {
	DailyEntradaCounts(ctx context.Context, from time.Time) ([]models.DailyCount, error)
	CountDistinctEntradaBetween(ctx context.Context, from, to time.Time) (int, error)
}

type dashboardAbsenceRepository interface {
	CountForDate(ctx context.Context, date string) (int, error)
}

type dashboardUserRepository interface {
	List(ctx context.Context) ([]models.User, error)
}

// DashboardStats summarises today plus the trailing week.
type DashboardStats struct {
	TotalUsers   int                 `json:"totalUsers"`
	PresentToday int                 `json:"presentToday"`
	AbsentToday  int                 `json:"absentToday"`
	Weekly       []models.DailyCount `json:"weekly"`
}

// DashboardService aggregates attendance figures for the overview
// screen. Results are cached briefly when Redis is available.
type DashboardService struct {
	activities dashboardActivityRepository
	absences   dashboardAbsenceRepository
	users      dashboardUserRepository
	store      *cache.Store
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService constructs the dashboard service. store may be
// nil.
func NewDashboardService(activities dashboardActivityRepository, absences dashboardAbsenceRepository, users dashboardUserRepository, store *cache.Store, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		activities: activities,
		absences:   absences,
		users:      users,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Stats computes the overview figures.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	var cached DashboardStats
	if s.store.Get(ctx, dashboardCacheKey, &cached) {
		return &cached, nil
	}

	now := s.now()
	dayStart, dayEnd := localDayBounds(now)

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}

	present, err := s.activities.CountDistinctEntradaBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count present users")
	}

	absent, err := s.absences.CountForDate(ctx, models.LocalDate(now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count absences")
	}

	weekly, err := s.weeklyCounts(ctx, dayStart)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalUsers:   len(users),
		PresentToday: present,
		AbsentToday:  absent,
		Weekly:       weekly,
	}
	s.store.Set(ctx, dashboardCacheKey, stats)
	return stats, nil
}

// InvalidateCache drops the cached snapshot. Called whenever a new
// clock event lands.
func (s *DashboardService) InvalidateCache(ctx context.Context) {
	s.store.Invalidate(ctx, dashboardCacheKey)
}

// weeklyCounts returns one bucket per day for the 7 days ending today,
// zero-filled so charts render gaps as zeroes.
func (s *DashboardService) weeklyCounts(ctx context.Context, dayStart time.Time) ([]models.DailyCount, error) {
	from := dayStart.AddDate(0, 0, -6)
	counts, err := s.activities.DailyEntradaCounts(ctx, from)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly counts")
	}

	byDate := make(map[string]int, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}

	weekly := make([]models.DailyCount, 7)
	for i := 0; i < 7; i++ {
		date := from.AddDate(0, 0, i).Format(models.DateLayout)
		weekly[i] = models.DailyCount{Date: date, Count: byDate[date]}
	}
	return weekly, nil
}
