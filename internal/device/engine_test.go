package device

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

type coordStub struct {
	active   bool
	statuses []DeviceStatus
}

func (c *coordStub) EnrollmentActive() bool { return c.active }

func (c *coordStub) HandleDeviceStatus(_ context.Context, st DeviceStatus) {
	c.statuses = append(c.statuses, st)
}

type sinkStub struct {
	user       *models.User
	next       models.ActivityType
	lookupErr  error
	recorded   []int64
	timestamps []string
	recordErr  error
}

func (s *sinkStub) LookupUser(_ context.Context, id int64) (*models.User, models.ActivityType, error) {
	if s.lookupErr != nil {
		return nil, "", s.lookupErr
	}
	return s.user, s.next, nil
}

func (s *sinkStub) RecordFromDevice(_ context.Context, id int64, ts string) error {
	s.recorded = append(s.recorded, id)
	s.timestamps = append(s.timestamps, ts)
	return s.recordErr
}

func newTestEngine(coord *coordStub, sink *sinkStub) (*Engine, *captureWriter) {
	w := &captureWriter{open: true}
	return NewEngine(coord, sink, NewCommandSender(w, nil), nil), w
}

func TestEngineRoutesStatusToCoordinator(t *testing.T) {
	coord := &coordStub{}
	sink := &sinkStub{}
	engine, _ := newTestEngine(coord, sink)

	engine.HandleLine(`{"status":"success","id":2}`)

	require.Len(t, coord.statuses, 1)
	assert.Equal(t, int64(2), coord.statuses[0].ID)
}

func TestEngineEnrollmentOwnsTheStream(t *testing.T) {
	coord := &coordStub{active: true}
	sink := &sinkStub{user: &models.User{ID: 3, Nome: "Ana"}, next: models.ActivityEntrada}
	engine, w := newTestEngine(coord, sink)

	// Status lines reach the coordinator.
	engine.HandleLine(`{"status":"info","id":3,"message":"posicione o dedo"}`)
	require.Len(t, coord.statuses, 1)

	// Touch events and lookups during capture are not identity events.
	engine.HandleLine(`{"status":"activity","id":3,"timestamp":"2026-03-09T08:00:00"}`)
	engine.HandleLine(`{"command":"GET_USER_DATA","id":3}`)
	assert.Empty(t, sink.recorded)
	assert.Empty(t, w.lines)
}

func TestEngineAnswersUserDataRequest(t *testing.T) {
	coord := &coordStub{}
	sink := &sinkStub{user: &models.User{ID: 7, Nome: "Bruno", Genero: "M"}, next: models.ActivitySaida}
	engine, w := newTestEngine(coord, sink)

	engine.HandleLine(`{"command":"GET_USER_DATA","id":7}`)

	cmd := w.last(t)
	assert.Equal(t, "USER_DATA_RESPONSE", cmd["command"])
	assert.EqualValues(t, 7, cmd["id"])
	assert.Equal(t, "Bruno", cmd["nome"])
	assert.Equal(t, "SAIDA", cmd["type"])
}

func TestEngineAnswersUnknownUserWithNotFound(t *testing.T) {
	coord := &coordStub{}
	sink := &sinkStub{lookupErr: sql.ErrNoRows}
	engine, w := newTestEngine(coord, sink)

	engine.HandleLine(`{"command":"GET_USER_DATA","id":99}`)

	assert.Equal(t, "USER_NOT_FOUND", w.last(t)["command"])
}

func TestEngineRecordsActivity(t *testing.T) {
	coord := &coordStub{}
	sink := &sinkStub{}
	engine, _ := newTestEngine(coord, sink)

	engine.HandleLine(`{"status":"activity","id":12,"timestamp":"2026-03-09T07:31:02"}`)

	require.Len(t, sink.recorded, 1)
	assert.Equal(t, int64(12), sink.recorded[0])
	assert.Equal(t, "2026-03-09T07:31:02", sink.timestamps[0])
}

func TestEngineIgnoresNoise(t *testing.T) {
	coord := &coordStub{}
	sink := &sinkStub{}
	engine, w := newTestEngine(coord, sink)

	engine.HandleLine("sensor boot v2.1")
	engine.HandleLine(`{"unrelated":true}`)

	assert.Empty(t, coord.statuses)
	assert.Empty(t, sink.recorded)
	assert.Empty(t, w.lines)
}
