package device

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

type captureWriter struct {
	lines []string
	open  bool
}

func (w *captureWriter) Write(data []byte) error {
	w.lines = append(w.lines, string(data))
	return nil
}

func (w *captureWriter) IsOpen() bool { return w.open }

func (w *captureWriter) last(t *testing.T) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, w.lines)
	raw := w.lines[len(w.lines)-1]
	require.True(t, strings.HasSuffix(raw, "\n"), "commands must be newline terminated")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	return decoded
}

func TestCommandWireShapes(t *testing.T) {
	w := &captureWriter{open: true}
	s := NewCommandSender(w, nil)

	require.NoError(t, s.Enroll(9))
	cmd := w.last(t)
	assert.Equal(t, "ENROLL", cmd["command"])
	assert.EqualValues(t, 9, cmd["id"])

	require.NoError(t, s.EnrollConfirmed())
	assert.Equal(t, "ENROLL_CONFIRMED", w.last(t)["command"])

	require.NoError(t, s.DeleteID(3))
	cmd = w.last(t)
	assert.Equal(t, "DELETE_ID", cmd["command"])
	assert.EqualValues(t, 3, cmd["id"])

	require.NoError(t, s.EmptyDatabase())
	assert.Equal(t, "EMPTY_DATABASE", w.last(t)["command"])

	require.NoError(t, s.SetBuzzer(false))
	cmd = w.last(t)
	assert.Equal(t, "SET_BUZZER", cmd["command"])
	assert.Equal(t, false, cmd["enabled"])

	require.NoError(t, s.UserNotFound())
	assert.Equal(t, "USER_NOT_FOUND", w.last(t)["command"])
}

func TestSetTimeUsesLocalClock(t *testing.T) {
	w := &captureWriter{open: true}
	s := NewCommandSender(w, nil)

	at := time.Date(2026, time.March, 9, 7, 45, 30, 0, time.Local)
	require.NoError(t, s.SetTime(at))

	cmd := w.last(t)
	assert.Equal(t, "SET_TIME", cmd["command"])
	assert.EqualValues(t, 2026, cmd["year"])
	assert.EqualValues(t, 3, cmd["month"])
	assert.EqualValues(t, 9, cmd["day"])
	assert.EqualValues(t, 7, cmd["hour"])
	assert.EqualValues(t, 45, cmd["minute"])
	assert.EqualValues(t, 30, cmd["second"])
}

func TestUserDataResponseCarriesNextType(t *testing.T) {
	w := &captureWriter{open: true}
	s := NewCommandSender(w, nil)

	require.NoError(t, s.UserDataResponse(5, "Maria Silva", "F", models.ActivitySaida))
	cmd := w.last(t)
	assert.Equal(t, "USER_DATA_RESPONSE", cmd["command"])
	assert.EqualValues(t, 5, cmd["id"])
	assert.Equal(t, "Maria Silva", cmd["nome"])
	assert.Equal(t, "F", cmd["genero"])
	assert.Equal(t, "SAIDA", cmd["type"])
}
