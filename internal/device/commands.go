package device

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

// LineWriter is the transport surface the sender needs.
type LineWriter interface {
	Write(data []byte) error
	IsOpen() bool
}

// CommandSender serializes outbound commands as one JSON object per
// line. All sends are fire-and-forget; callers needing a completion
// signal correlate through the inbound line dispatch.
type CommandSender struct {
	w      LineWriter
	logger *zap.Logger
}

// NewCommandSender constructs a sender over the given transport.
func NewCommandSender(w LineWriter, logger *zap.Logger) *CommandSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandSender{w: w, logger: logger}
}

// IsOpen reports whether the underlying transport is connected.
func (s *CommandSender) IsOpen() bool {
	return s.w.IsOpen()
}

func (s *CommandSender) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	s.logger.Debug("sending command", zap.ByteString("command", data))
	return s.w.Write(append(data, '\n'))
}

type enrollCommand struct {
	Command string `json:"command"`
	ID      int64  `json:"id"`
}

type bareCommand struct {
	Command string `json:"command"`
}

type buzzerCommand struct {
	Command string `json:"command"`
	Enabled bool   `json:"enabled"`
}

type setTimeCommand struct {
	Command string `json:"command"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
	Hour    int    `json:"hour"`
	Minute  int    `json:"minute"`
	Second  int    `json:"second"`
}

type userDataResponse struct {
	Command string `json:"command"`
	ID      int64  `json:"id"`
	Nome    string `json:"nome"`
	Genero  string `json:"genero"`
	Type    string `json:"type"`
}

// Enroll starts a provisioning handshake for the reserved template id.
func (s *CommandSender) Enroll(id int64) error {
	return s.send(enrollCommand{Command: "ENROLL", ID: id})
}

// EnrollConfirmed closes the firmware-side provisioning UI.
func (s *CommandSender) EnrollConfirmed() error {
	return s.send(bareCommand{Command: "ENROLL_CONFIRMED"})
}

// DeleteID removes one template from the sensor.
func (s *CommandSender) DeleteID(id int64) error {
	return s.send(enrollCommand{Command: "DELETE_ID", ID: id})
}

// EmptyDatabase wipes every template on the sensor. Destructive.
func (s *CommandSender) EmptyDatabase() error {
	return s.send(bareCommand{Command: "EMPTY_DATABASE"})
}

// SetBuzzer toggles the sensor's beep.
func (s *CommandSender) SetBuzzer(enabled bool) error {
	return s.send(buzzerCommand{Command: "SET_BUZZER", Enabled: enabled})
}

// SetTime pushes the host's current local wall clock to the device.
func (s *CommandSender) SetTime(now time.Time) error {
	now = now.Local()
	return s.send(setTimeCommand{
		Command: "SET_TIME",
		Year:    now.Year(),
		Month:   int(now.Month()),
		Day:     now.Day(),
		Hour:    now.Hour(),
		Minute:  now.Minute(),
		Second:  now.Second(),
	})
}

// UserDataResponse answers a GET_USER_DATA lookup hit.
func (s *CommandSender) UserDataResponse(id int64, nome, genero string, next models.ActivityType) error {
	return s.send(userDataResponse{
		Command: "USER_DATA_RESPONSE",
		ID:      id,
		Nome:    nome,
		Genero:  genero,
		Type:    string(next),
	})
}

// UserNotFound answers a GET_USER_DATA lookup miss.
func (s *CommandSender) UserNotFound() error {
	return s.send(bareCommand{Command: "USER_NOT_FOUND"})
}
