package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusLines(t *testing.T) {
	msg, ok := Parse(`{"status":"success","id":4,"message":"Digital cadastrada"}`)
	require.True(t, ok)
	st, isStatus := msg.(DeviceStatus)
	require.True(t, isStatus)
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, int64(4), st.ID)
	assert.Equal(t, "Digital cadastrada", st.Message)

	msg, ok = Parse(`{"status":"error","message":"timeout no sensor"}`)
	require.True(t, ok)
	st = msg.(DeviceStatus)
	assert.Equal(t, StatusError, st.Status)
	assert.Zero(t, st.ID)

	msg, ok = Parse(`{"status":"info","message":"aguardando"}`)
	require.True(t, ok)
	assert.Equal(t, StatusInfo, msg.(DeviceStatus).Status)
}

func TestParseActivityEvent(t *testing.T) {
	msg, ok := Parse(`{"status":"activity","id":12,"timestamp":"2026-03-09T07:31:02"}`)
	require.True(t, ok)
	ev, isActivity := msg.(ActivityEvent)
	require.True(t, isActivity)
	assert.Equal(t, int64(12), ev.ID)
	assert.Equal(t, "2026-03-09T07:31:02", ev.Timestamp)

	// Missing timestamp or id makes the event unusable.
	_, ok = Parse(`{"status":"activity","id":12}`)
	assert.False(t, ok)
	_, ok = Parse(`{"status":"activity","timestamp":"2026-03-09T07:31:02"}`)
	assert.False(t, ok)
}

func TestParseUserDataRequest(t *testing.T) {
	msg, ok := Parse(`{"command":"GET_USER_DATA","id":7}`)
	require.True(t, ok)
	req, isReq := msg.(UserDataRequest)
	require.True(t, isReq)
	assert.Equal(t, int64(7), req.ID)

	_, ok = Parse(`{"command":"GET_USER_DATA"}`)
	assert.False(t, ok)
}

func TestParseDiscardsNoise(t *testing.T) {
	for _, line := range []string{
		"",
		"booting sensor v2.1",
		"{not json",
		`{"status":"weird"}`,
		`{"command":"UNKNOWN","id":3}`,
	} {
		_, ok := Parse(line)
		assert.False(t, ok, "line %q should be discarded", line)
	}
}
