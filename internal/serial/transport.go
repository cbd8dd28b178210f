// Package serial owns the physical link to the fingerprint sensor and
// frames its byte stream into discrete text lines. Exactly one
// connection is open at any time; the sensor is a single physical
// device, so there is nothing to pool.
package serial

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Status describes the connection state reported to listeners.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// StatusEvent is emitted whenever the connection state changes.
type StatusEvent struct {
	Status Status `json:"status"`
	Path   string `json:"path"`
	Error  string `json:"error,omitempty"`
}

// PortOpener opens the underlying byte stream. Swapped out in tests.
type PortOpener func(path string, baud int) (io.ReadWriteCloser, error)

func defaultOpener(path string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(path, &serial.Mode{BaudRate: baud})
}

// ListPorts enumerates serial device paths available on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Transport frames the serial byte stream into trimmed, non-empty
// lines delivered one at a time to the line handler. All reads happen
// on a single goroutine per connection, so handlers observe lines in
// arrival order and never concurrently.
type Transport struct {
	opener   OpenerFunc
	baud     int
	logger   *zap.Logger
	onLine   func(string)
	onStatus func(StatusEvent)

	mu   sync.Mutex
	port io.ReadWriteCloser
	path string
	gen  uint64
}

// OpenerFunc aliases PortOpener for the constructor signature.
type OpenerFunc = PortOpener

// NewTransport builds a transport. A nil opener uses the real serial
// stack.
func NewTransport(opener OpenerFunc, baud int, logger *zap.Logger) *Transport {
	if opener == nil {
		opener = defaultOpener
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if baud <= 0 {
		baud = 115200
	}
	return &Transport{opener: opener, baud: baud, logger: logger}
}

// OnLine registers the per-line callback. Must be set before Open.
func (t *Transport) OnLine(fn func(string)) {
	t.onLine = fn
}

// OnStatus registers the connection-status callback.
func (t *Transport) OnStatus(fn func(StatusEvent)) {
	t.onStatus = fn
}

// Open connects to the given path. Opening the already-open path is a
// no-op success; opening a different path closes the old connection
// first, so the previous port is never left dangling.
func (t *Transport) Open(path string) error {
	if path == "" {
		return fmt.Errorf("serial: empty port path")
	}

	t.mu.Lock()
	if t.port != nil {
		if t.path == path {
			t.mu.Unlock()
			return nil
		}
		t.closeLocked(StatusDisconnected, "")
	}

	port, err := t.opener(path, t.baud)
	if err != nil {
		t.mu.Unlock()
		t.emit(StatusEvent{Status: StatusError, Path: path, Error: err.Error()})
		return fmt.Errorf("serial: open %s: %w", path, err)
	}

	t.port = port
	t.path = path
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.logger.Info("serial port opened", zap.String("path", path), zap.Int("baud", t.baud))
	t.emit(StatusEvent{Status: StatusConnected, Path: path})

	go t.readLoop(port, path, gen)
	return nil
}

// Write sends raw bytes to the device. While disconnected it is a
// no-op; command echoes simply never arrive and upper layers time out.
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	port := t.port
	path := t.path
	t.mu.Unlock()

	if port == nil {
		t.logger.Warn("serial write dropped, port not open", zap.ByteString("data", data))
		return nil
	}

	if _, err := port.Write(data); err != nil {
		t.logger.Error("serial write failed", zap.String("path", path), zap.Error(err))
		t.mu.Lock()
		if t.port == port {
			t.closeLocked(StatusError, err.Error())
		}
		t.mu.Unlock()
		return fmt.Errorf("serial: write: %w", err)
	}
	return nil
}

// Close tears the connection down.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	t.closeLocked(StatusDisconnected, "")
	return nil
}

// IsOpen reports whether a connection is currently open.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Path returns the currently open device path, or "".
func (t *Transport) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// closeLocked closes the port and emits a status event. Callers hold mu.
func (t *Transport) closeLocked(status Status, errMsg string) {
	path := t.path
	if err := t.port.Close(); err != nil {
		t.logger.Warn("serial close failed", zap.String("path", path), zap.Error(err))
	}
	t.port = nil
	t.path = ""
	t.gen++
	go t.emit(StatusEvent{Status: status, Path: path, Error: errMsg})
}

func (t *Transport) readLoop(port io.Reader, path string, gen uint64) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if fn := t.onLine; fn != nil {
			fn(line)
		}
	}

	err := scanner.Err()

	t.mu.Lock()
	if t.gen != gen {
		// The connection was already replaced or closed; this loop's
		// port is stale and its exit is not a status change.
		t.mu.Unlock()
		return
	}
	t.port = nil
	t.path = ""
	t.gen++
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("serial read failed", zap.String("path", path), zap.Error(err))
		t.emit(StatusEvent{Status: StatusError, Path: path, Error: err.Error()})
		return
	}
	t.logger.Info("serial port closed by device", zap.String("path", path))
	t.emit(StatusEvent{Status: StatusDisconnected, Path: path})
}

func (t *Transport) emit(ev StatusEvent) {
	if fn := t.onStatus; fn != nil {
		fn(ev)
	}
}
