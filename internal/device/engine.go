package device

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

// Coordinator consumes status lines; while an enrollment handshake is
// in flight it owns the line stream exclusively.
type Coordinator interface {
	EnrollmentActive() bool
	HandleDeviceStatus(ctx context.Context, st DeviceStatus)
}

// AttendanceSink resolves identities and records clock events.
type AttendanceSink interface {
	LookupUser(ctx context.Context, id int64) (*models.User, models.ActivityType, error)
	RecordFromDevice(ctx context.Context, id int64, localTimestamp string) error
}

// Engine interprets each inbound line and dispatches it. Lines arrive
// one at a time from the transport's read goroutine, so dispatch is
// strictly sequential; the enrollment mutual exclusion needs no lock
// beyond the coordinator's own slot.
type Engine struct {
	coord      Coordinator
	attendance AttendanceSink
	sender     *CommandSender
	logger     *zap.Logger
}

// NewEngine constructs the protocol engine.
func NewEngine(coord Coordinator, attendance AttendanceSink, sender *CommandSender, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{coord: coord, attendance: attendance, sender: sender, logger: logger}
}

// HandleLine processes one framed line from the transport.
func (e *Engine) HandleLine(line string) {
	ctx := context.Background()

	msg, ok := Parse(line)
	if !ok {
		// Firmware debug output shares the wire with the protocol.
		e.logger.Debug("discarding non-protocol line", zap.String("line", line))
		return
	}

	// An in-flight enrollment owns the stream: only status lines are
	// meaningful, and touch events during provisioning are not valid
	// identity events.
	if e.coord.EnrollmentActive() {
		if st, isStatus := msg.(DeviceStatus); isStatus {
			e.coord.HandleDeviceStatus(ctx, st)
		}
		return
	}

	switch m := msg.(type) {
	case DeviceStatus:
		// Outside enrollment these are command acknowledgments
		// (deletions); the coordinator discards strays.
		e.coord.HandleDeviceStatus(ctx, m)
	case UserDataRequest:
		e.handleUserData(ctx, m)
	case ActivityEvent:
		if err := e.attendance.RecordFromDevice(ctx, m.ID, m.Timestamp); err != nil {
			e.logger.Error("failed to record device activity",
				zap.Int64("user_id", m.ID), zap.Error(err))
		}
	}
}

func (e *Engine) handleUserData(ctx context.Context, req UserDataRequest) {
	user, next, err := e.attendance.LookupUser(ctx, req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e.logger.Info("device asked for unknown user", zap.Int64("user_id", req.ID))
		} else {
			e.logger.Error("user lookup failed", zap.Int64("user_id", req.ID), zap.Error(err))
		}
		if sendErr := e.sender.UserNotFound(); sendErr != nil {
			e.logger.Error("failed to answer lookup miss", zap.Error(sendErr))
		}
		return
	}

	if err := e.sender.UserDataResponse(user.ID, user.Nome, user.Genero, next); err != nil {
		e.logger.Error("failed to answer user lookup", zap.Int64("user_id", req.ID), zap.Error(err))
	}
}
