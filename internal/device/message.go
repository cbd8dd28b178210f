// Package device speaks the newline-delimited JSON protocol of the
// fingerprint sensor firmware: it classifies inbound lines, dispatches
// them, and serializes outbound commands.
package device

import "encoding/json"

// Message is the tagged union of line shapes the firmware is known to
// emit. Each recognized field combination gets its own variant; lines
// matching none of them are treated as firmware debug noise.
type Message interface {
	isMessage()
}

// Status values the firmware reports.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInfo    = "info"
)

// DeviceStatus carries enrollment progress/result or a command
// acknowledgment: status is one of success, error or info.
type DeviceStatus struct {
	Status  string
	ID      int64
	Message string
}

// UserDataRequest asks the host for a user's name and next clock type
// so the firmware can display a personalized prompt.
type UserDataRequest struct {
	ID int64
}

// ActivityEvent reports a recognized fingerprint touch. Timestamp is
// the device's local wall clock as a naive ISO-like string.
type ActivityEvent struct {
	ID        int64
	Timestamp string
}

func (DeviceStatus) isMessage()    {}
func (UserDataRequest) isMessage() {}
func (ActivityEvent) isMessage()   {}

type rawLine struct {
	Command   string `json:"command"`
	Status    string `json:"status"`
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// Parse classifies one inbound line. ok is false for anything that is
// not valid JSON or matches no recognized shape; such lines are
// discarded upstream without error.
func Parse(line string) (Message, bool) {
	var raw rawLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, false
	}

	switch raw.Status {
	case "activity":
		if raw.ID > 0 && raw.Timestamp != "" {
			return ActivityEvent{ID: raw.ID, Timestamp: raw.Timestamp}, true
		}
		return nil, false
	case StatusSuccess, StatusError, StatusInfo:
		return DeviceStatus{Status: raw.Status, ID: raw.ID, Message: raw.Message}, true
	}

	if raw.Command == "GET_USER_DATA" && raw.ID > 0 {
		return UserDataRequest{ID: raw.ID}, true
	}

	return nil, false
}
