package entity

import (
	"context"
	"strings"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
)

// State vocabularies recognised by the switch mapping, in write priority
// order.
var (
	switchOnTokens  = []string{"on", "enabled", "allow", "true", "1"}
	switchOffTokens = []string{"off", "disabled", "deny", "false", "0"}
)

// Switch drives a capability with a switch control. The backend's state
// vocabulary varies per capability (on/off, allow/deny, enabled/disabled),
// so reads case-fold against a token set and writes pick from the declared
// options.
type Switch struct {
	Base
	client *backend.Client
}

// NewSwitch creates a switch entity over an already materialised base.
func NewSwitch(base Base, client *backend.Client) *Switch {
	return &Switch{Base: base, client: client}
}

// IsOn reports whether the capability's current state case-folds to one
// of the recognised on tokens. An unresolved capability reads as off.
func (s *Switch) IsOn() bool {
	cap, ok := s.Capability()
	if !ok {
		return false
	}

	state := strings.ToLower(strings.TrimSpace(cap.State))
	for _, token := range switchOnTokens {
		if state == token {
			return true
		}
	}
	return false
}

// State renders the publishable state, normalised to "on"/"off". False
// when the capability does not currently resolve.
func (s *Switch) State() (string, bool) {
	if _, ok := s.Capability(); !ok {
		return "", false
	}
	if s.IsOn() {
		return "on", true
	}
	return "off", true
}

// TurnOn writes the capability's on value and refreshes the coordinator.
func (s *Switch) TurnOn(ctx context.Context) error {
	return s.writeState(ctx, s.client, s.targetState(true))
}

// TurnOff writes the capability's off value and refreshes the coordinator.
func (s *Switch) TurnOff(ctx context.Context) error {
	return s.writeState(ctx, s.client, s.targetState(false))
}

// targetState picks the backend value for an on/off intent: the first
// declared option matching the intent's token set, else the first (on) or
// last (off) declared option, else the literal "on"/"off" when the
// capability declares no options at all.
func (s *Switch) targetState(turnOn bool) string {
	cap, ok := s.Capability()
	if !ok || len(cap.Control.Options) == 0 {
		if turnOn {
			return "on"
		}
		return "off"
	}

	byToken := make(map[string]string, len(cap.Control.Options))
	for _, opt := range cap.Control.Options {
		byToken[strings.ToLower(strings.TrimSpace(opt.Value))] = opt.Value
	}

	tokens := switchOnTokens
	if !turnOn {
		tokens = switchOffTokens
	}
	for _, token := range tokens {
		if value, ok := byToken[token]; ok {
			return value
		}
	}

	if turnOn {
		return cap.Control.Options[0].Value
	}
	return cap.Control.Options[len(cap.Control.Options)-1].Value
}
