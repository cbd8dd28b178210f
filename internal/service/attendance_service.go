package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/events"
	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

// Device timestamps arrive as naive local wall-clock time.
const deviceTimestampLayout = "2006-01-02T15:04:05"

type activityRepository interface {
	Insert(ctx context.Context, a *models.Activity) (int64, error)
	InsertCancellingAbsence(ctx context.Context, a *models.Activity, date string) (int64, error)
	MostRecentForUserBetween(ctx context.Context, userID int64, from, to time.Time) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	UpdateOne(ctx context.Context, id int64, newType models.ActivityType, ts time.Time) (bool, error)
	FindByID(ctx context.Context, id int64) (*models.Activity, error)
	ClearAll(ctx context.Context) error
}

type absenceRepository interface {
	Insert(ctx context.Context, a *models.Absence) (int64, error)
	InitializeForDate(ctx context.Context, date string, rows []models.Absence) (int, error)
	List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

type attendanceUserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// ActivityNotifier dispatches clock event notifications.
type ActivityNotifier interface {
	NotifyActivity(user *models.User, activityType models.ActivityType, occurred time.Time)
}

type eventPublisher interface {
	Publish(eventType string, payload interface{})
}

// AttendanceService derives clock events from sensor identifications
// and keeps the absence ledger consistent with them.
type AttendanceService struct {
	activities activityRepository
	absences   absenceRepository
	users      attendanceUserRepository
	hub        eventPublisher
	notifier   ActivityNotifier
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAttendanceService constructs the attendance service. hub and
// notifier may be nil.
func NewAttendanceService(activities activityRepository, absences absenceRepository, users attendanceUserRepository, hub eventPublisher, notifier ActivityNotifier, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		activities: activities,
		absences:   absences,
		users:      users,
		hub:        hub,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// localDayBounds returns the half-open local calendar day containing t.
func localDayBounds(t time.Time) (time.Time, time.Time) {
	local := t.Local()
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 0, 1)
}

// NextActivityType derives the type of the user's next clock event at
// instant at. Only events of the same local calendar day count: a day
// with no events, or one whose latest event is an exit, yields an
// entry; otherwise an exit.
func (s *AttendanceService) NextActivityType(ctx context.Context, userID int64, at time.Time) (models.ActivityType, error) {
	from, to := localDayBounds(at)
	last, err := s.activities.MostRecentForUserBetween(ctx, userID, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ActivityEntrada, nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive next activity type")
	}
	if last.Type == models.ActivitySaida {
		return models.ActivityEntrada, nil
	}
	return models.ActivitySaida, nil
}

// LookupUser resolves a sensor slot id to the user plus the type the
// next clock event would take. Missing slots return sql.ErrNoRows.
func (s *AttendanceService) LookupUser(ctx context.Context, id int64) (*models.User, models.ActivityType, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	next, err := s.NextActivityType(ctx, id, s.now())
	if err != nil {
		return nil, "", err
	}
	return user, next, nil
}

// RecordActivity derives and persists a clock event for the user at
// instant at. An entry also clears any absence row for that local day
// in the same transaction.
func (s *AttendanceService) RecordActivity(ctx context.Context, userID int64, at time.Time) (*models.Activity, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	activityType, err := s.NextActivityType(ctx, userID, at)
	if err != nil {
		return nil, err
	}

	activity := &models.Activity{
		UserID:     user.ID,
		UserName:   user.Nome,
		UserTurma:  user.Turma,
		UserCabine: user.Cabine,
		UserTurno:  user.Turno,
		Type:       activityType,
		Timestamp:  models.NewISOTime(at),
	}

	var id int64
	if activityType == models.ActivityEntrada {
		id, err = s.activities.InsertCancellingAbsence(ctx, activity, models.LocalDate(at))
	} else {
		id, err = s.activities.Insert(ctx, activity)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record activity")
	}
	activity.ID = id

	s.logger.Info("activity recorded",
		zap.Int64("user_id", user.ID),
		zap.String("nome", user.Nome),
		zap.String("type", string(activityType)))

	if s.hub != nil {
		s.hub.Publish(events.TypeActivity, activity)
	}
	if s.notifier != nil {
		s.notifier.NotifyActivity(user, activityType, at)
	}
	return activity, nil
}

// RecordFromDevice handles a spontaneous identification reported by
// the sensor. A malformed timestamp falls back to the host clock; the
// sensor clock drifts and gets resynced over the same wire.
func (s *AttendanceService) RecordFromDevice(ctx context.Context, id int64, localTimestamp string) error {
	at, err := time.ParseInLocation(deviceTimestampLayout, localTimestamp, time.Local)
	if err != nil {
		s.logger.Warn("unparseable device timestamp, using host clock",
			zap.String("timestamp", localTimestamp), zap.Error(err))
		at = s.now()
	}
	_, err = s.RecordActivity(ctx, id, at)
	return err
}

// InitializeAbsences seeds one absence row per user scheduled on the
// given instant's local day. A day already holding rows is left
// untouched, so restarts and the midnight ticker can both call this.
func (s *AttendanceService) InitializeAbsences(ctx context.Context, at time.Time) (int, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	date := models.LocalDate(at)
	weekday := int(at.Local().Weekday())
	rows := make([]models.Absence, 0, len(users))
	for _, u := range users {
		if !u.DiasSemana.ContainsWeekday(weekday) {
			continue
		}
		rows = append(rows, models.Absence{
			UserID:    u.ID,
			UserName:  u.Nome,
			UserTurma: u.Turma,
			UserTurno: u.Turno,
			Date:      date,
			CreatedAt: models.NewISOTime(s.now()),
		})
	}

	inserted, err := s.absences.InitializeForDate(ctx, date, rows)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initialize absences")
	}
	if inserted > 0 {
		s.logger.Info("absence ledger initialized", zap.String("date", date), zap.Int("rows", inserted))
	}
	return inserted, nil
}

// ListActivities returns activities matching the filter with paging
// metadata.
func (s *AttendanceService) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	rows, total, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 100
	}
	totalPages := (total + size - 1) / size
	return rows, &models.Pagination{Page: page, PageSize: size, Total: total, TotalPages: totalPages}, nil
}

// CorrectActivityRequest describes an operator's manual fix of a
// recorded clock event.
type CorrectActivityRequest struct {
	Type      string `json:"type" validate:"required"`
	Timestamp string `json:"timestamp" validate:"required"`
}

// CorrectActivity rewrites the type and timestamp of a stored event.
func (s *AttendanceService) CorrectActivity(ctx context.Context, id int64, req CorrectActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	activityType, ok := models.NormalizeActivityType(req.Type)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be Entrada or Saída")
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		ts, err = time.ParseInLocation(deviceTimestampLayout, req.Timestamp, time.Local)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid timestamp")
		}
	}

	updated, err := s.activities.UpdateOne(ctx, id, activityType, ts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}

	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload activity")
	}
	if s.hub != nil {
		s.hub.Publish(events.TypeActivity, activity)
	}
	return activity, nil
}

// ClearActivities wipes the whole activity history. Used together
// with a sensor template wipe when re-provisioning a site.
func (s *AttendanceService) ClearActivities(ctx context.Context) error {
	if err := s.activities.ClearAll(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear activities")
	}
	s.logger.Warn("activity history cleared")
	return nil
}

// ManualAbsenceRequest records an absence entered by an operator.
type ManualAbsenceRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Date   string `json:"date" validate:"required"`
	Reason string `json:"reason"`
}

// AddAbsence inserts a manual absence row.
func (s *AttendanceService) AddAbsence(ctx context.Context, req ManualAbsenceRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	absence := &models.Absence{
		UserID:    user.ID,
		UserName:  user.Nome,
		UserTurma: user.Turma,
		UserTurno: user.Turno,
		Date:      req.Date,
		Reason:    req.Reason,
		CreatedAt: models.NewISOTime(s.now()),
	}
	id, err := s.absences.Insert(ctx, absence)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert absence")
	}
	absence.ID = id

	if s.hub != nil {
		s.hub.Publish(events.TypeAbsenceAdded, absence)
	}
	return absence, nil
}

// ListAbsences returns absence rows matching the filter.
func (s *AttendanceService) ListAbsences(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, error) {
	rows, err := s.absences.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	return rows, nil
}

// DeleteAbsence removes an absence row by id.
func (s *AttendanceService) DeleteAbsence(ctx context.Context, id int64) error {
	deleted, err := s.absences.DeleteByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete absence")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "absence not found")
	}
	if s.hub != nil {
		s.hub.Publish(events.TypeAbsenceDeleted, map[string]int64{"id": id})
	}
	return nil
}
