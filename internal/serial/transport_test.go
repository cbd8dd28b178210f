package serial

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory ReadWriteCloser fed by the test.
type fakePort struct {
	reader  *io.PipeReader
	feeder  *io.PipeWriter
	mu      sync.Mutex
	written []byte
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{reader: r, feeder: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.reader.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.feeder.Close()
	return p.reader.Close()
}

type lineCollector struct {
	mu     sync.Mutex
	lines  []string
	events []StatusEvent
}

func (c *lineCollector) onLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *lineCollector) onStatus(ev StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *lineCollector) snapshot() ([]string, []StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...), append([]StatusEvent(nil), c.events...)
}

func (c *lineCollector) waitLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lines, _ := c.snapshot()
		if len(lines) >= n {
			return lines
		}
		time.Sleep(5 * time.Millisecond)
	}
	lines, _ := c.snapshot()
	t.Fatalf("expected %d lines, got %d: %v", n, len(lines), lines)
	return nil
}

func newTestTransport(ports map[string]*fakePort) (*Transport, *lineCollector) {
	collector := &lineCollector{}
	opener := func(path string, baud int) (io.ReadWriteCloser, error) {
		port, ok := ports[path]
		if !ok {
			return nil, io.ErrClosedPipe
		}
		return port, nil
	}
	tr := NewTransport(opener, 115200, nil)
	tr.OnLine(collector.onLine)
	tr.OnStatus(collector.onStatus)
	return tr, collector
}

func TestTransportDeliversTrimmedLines(t *testing.T) {
	port := newFakePort()
	tr, collector := newTestTransport(map[string]*fakePort{"/dev/ttyUSB0": port})

	require.NoError(t, tr.Open("/dev/ttyUSB0"))
	assert.True(t, tr.IsOpen())
	assert.Equal(t, "/dev/ttyUSB0", tr.Path())

	go func() {
		port.feeder.Write([]byte("  {\"status\":\"info\"}  \r\n\n\n{\"status\":\"success\",\"id\":1}\n"))
	}()

	lines := collector.waitLines(t, 2)
	assert.Equal(t, `{"status":"info"}`, lines[0])
	assert.Equal(t, `{"status":"success","id":1}`, lines[1])

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsOpen())
}

func TestTransportWriteWhileClosedIsNoop(t *testing.T) {
	tr, _ := newTestTransport(nil)
	assert.NoError(t, tr.Write([]byte("{\"command\":\"ENROLL\"}\n")))
}

func TestTransportReopenSamePathIsNoop(t *testing.T) {
	port := newFakePort()
	tr, _ := newTestTransport(map[string]*fakePort{"/dev/ttyUSB0": port})

	require.NoError(t, tr.Open("/dev/ttyUSB0"))
	require.NoError(t, tr.Open("/dev/ttyUSB0"))
	assert.Equal(t, "/dev/ttyUSB0", tr.Path())
	tr.Close()
}

func TestTransportSwitchingPortsClosesOld(t *testing.T) {
	first := newFakePort()
	second := newFakePort()
	tr, collector := newTestTransport(map[string]*fakePort{
		"/dev/ttyUSB0": first,
		"/dev/ttyUSB1": second,
	})

	require.NoError(t, tr.Open("/dev/ttyUSB0"))
	require.NoError(t, tr.Open("/dev/ttyUSB1"))
	assert.Equal(t, "/dev/ttyUSB1", tr.Path())

	// Lines from the new port still arrive after the switch.
	go func() {
		second.feeder.Write([]byte("{\"status\":\"info\"}\n"))
	}()
	collector.waitLines(t, 1)
	tr.Close()
}

func TestTransportOpenFailureEmitsError(t *testing.T) {
	tr, collector := newTestTransport(nil)

	err := tr.Open("/dev/missing")
	require.Error(t, err)
	assert.False(t, tr.IsOpen())

	_, events := collector.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, StatusError, events[len(events)-1].Status)
}

func TestTransportEmptyPathRejected(t *testing.T) {
	tr, _ := newTestTransport(nil)
	assert.Error(t, tr.Open(""))
}

func TestTransportWritesReachPort(t *testing.T) {
	port := newFakePort()
	tr, _ := newTestTransport(map[string]*fakePort{"/dev/ttyUSB0": port})

	require.NoError(t, tr.Open("/dev/ttyUSB0"))
	require.NoError(t, tr.Write([]byte("{\"command\":\"SET_BUZZER\",\"enabled\":true}\n")))

	port.mu.Lock()
	written := string(port.written)
	port.mu.Unlock()
	assert.Contains(t, written, "SET_BUZZER")
	tr.Close()
}
