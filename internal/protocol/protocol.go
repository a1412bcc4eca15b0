// Package protocol implements the envelope contract spoken over the
// terminal device channel. Outbound traffic is limited to gpio commands;
// inbound traffic is decoded into a closed set of message variants so
// that malformed or unknown payloads can be dropped without disturbing
// the connection.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event tags carried in the envelope.
const (
	EventGpioCommand   = "gpio-command"
	EventTerminalState = "terminal-state"
	EventCommandAck    = "command-ack"
	EventCommandResult = "command-result"
)

// StatusCompleted is the only result status that triggers reconciliation.
const StatusCompleted = "completed"

// Envelope is the outer frame of every device message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GpioCommand is the payload of an outbound gpio-command envelope. The
// command id is duplicated into the legacy "id" field for older firmware.
type GpioCommand struct {
	CommandID       string `json:"commandId"`
	ID              string `json:"id"`
	GpioPin         int    `json:"gpioPin"`
	DurationSeconds int    `json:"durationSeconds"`
}

// EncodeGpioCommand builds the wire bytes for a gpio command. A
// non-positive duration is normalized to 0, meaning "device default".
func EncodeGpioCommand(commandID string, gpioPin, durationSeconds int) ([]byte, error) {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	payload, err := json.Marshal(GpioCommand{
		CommandID:       commandID,
		ID:              commandID,
		GpioPin:         gpioPin,
		DurationSeconds: durationSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gpio command: %w", err)
	}
	frame, err := json.Marshal(Envelope{Event: EventGpioCommand, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return frame, nil
}

// Message is one decoded inbound device message.
type Message interface {
	message()
}

// PinState is one GPIO pin entry of a terminal state report.
type PinState struct {
	ID               int    `json:"id"`
	Level            string `json:"level"`
	RemainingSeconds int    `json:"remainingSeconds"`
	TimerSeconds     int    `json:"timerSeconds"`
	FinishTimestamp  *int64 `json:"finishTimestamp,omitempty"`
}

// StateReport is the periodic telemetry snapshot a terminal sends. Raw
// keeps the full payload since devices attach free-form extras.
type StateReport struct {
	Pins []PinState
	Raw  json.RawMessage
}

// CommandAck acknowledges receipt of a command; it carries no structure
// the control plane acts on.
type CommandAck struct {
	Raw json.RawMessage
}

// CommandResult reports the outcome of a previously issued command.
type CommandResult struct {
	CommandID string          `json:"commandId"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Raw       json.RawMessage `json:"-"`
}

// Unrecognized covers unparseable frames and unknown event tags. The
// gateway logs and drops these.
type Unrecognized struct {
	Event  string
	Reason string
}

func (StateReport) message()   {}
func (CommandAck) message()    {}
func (CommandResult) message() {}
func (Unrecognized) message()  {}

// Completed reports whether the result status confirms execution. The
// comparison is case-insensitive; any other status is telemetry only.
func (r CommandResult) Completed() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), StatusCompleted)
}

// Decode parses one inbound frame into a message variant. Decode never
// returns an error: anything that does not match the contract comes back
// as Unrecognized.
func Decode(data []byte) Message {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Unrecognized{Reason: fmt.Sprintf("invalid envelope: %v", err)}
	}

	switch env.Event {
	case EventTerminalState:
		var body struct {
			Pins []PinState `json:"pins"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &body); err != nil {
				return Unrecognized{Event: env.Event, Reason: fmt.Sprintf("invalid state payload: %v", err)}
			}
		}
		return StateReport{Pins: body.Pins, Raw: env.Data}
	case EventCommandAck:
		return CommandAck{Raw: env.Data}
	case EventCommandResult:
		var result CommandResult
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &result); err != nil {
				return Unrecognized{Event: env.Event, Reason: fmt.Sprintf("invalid result payload: %v", err)}
			}
		}
		result.Raw = env.Data
		return result
	default:
		return Unrecognized{Event: env.Event, Reason: "unknown event"}
	}
}
