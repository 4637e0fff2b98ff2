package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Supported command names.
const (
	CommandTurnOn       = "turn_on"
	CommandTurnOff      = "turn_off"
	CommandSelectOption = "select_option"
)

// CommandMessage is the payload for entity command topics.
//
// JSON form:
//
//	{"command": "turn_on"}
//	{"command": "select_option", "option": "Strict"}
//
// Bare-text payloads "on" and "off" are accepted as shorthand for
// turn_on and turn_off.
type CommandMessage struct {
	Command string `json:"command"`
	Option  string `json:"option,omitempty"`
}

// parseCommand decodes an incoming command payload.
func parseCommand(payload []byte) (CommandMessage, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return CommandMessage{}, fmt.Errorf("%w: empty payload", ErrMalformedCommand)
	}

	if strings.HasPrefix(text, "{") {
		var cmd CommandMessage
		if err := json.Unmarshal([]byte(text), &cmd); err != nil {
			return CommandMessage{}, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
		}
		if cmd.Command == "" {
			return CommandMessage{}, fmt.Errorf("%w: missing command field", ErrMalformedCommand)
		}
		return cmd, nil
	}

	switch strings.ToLower(text) {
	case "on":
		return CommandMessage{Command: CommandTurnOn}, nil
	case "off":
		return CommandMessage{Command: CommandTurnOff}, nil
	default:
		return CommandMessage{Command: text}, nil
	}
}
