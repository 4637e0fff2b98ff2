package entity

import (
	"context"
	"fmt"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
)

// Select drives a capability with an enumerated control. Consumers see
// option labels; the backend sees option values.
type Select struct {
	Base
	client *backend.Client
}

// NewSelect creates a select entity over an already materialised base.
func NewSelect(base Base, client *backend.Client) *Select {
	return &Select{Base: base, client: client}
}

// Options returns the selectable labels in backend order. Empty when the
// capability is unresolved.
func (s *Select) Options() []string {
	cap, ok := s.Capability()
	if !ok {
		return nil
	}

	labels := make([]string, 0, len(cap.Control.Options))
	for _, opt := range cap.Control.Options {
		labels = append(labels, opt.Label)
	}
	return labels
}

// CurrentOption resolves the capability's current state to its option
// label. False when the capability is unresolved or its state matches no
// declared option.
func (s *Select) CurrentOption() (string, bool) {
	cap, ok := s.Capability()
	if !ok {
		return "", false
	}
	opt, ok := cap.Option()
	if !ok {
		return "", false
	}
	return opt.Label, true
}

// State renders the publishable state: the current option label, or the
// raw backend state when it matches no declared option. False when the
// capability does not currently resolve.
func (s *Select) State() (string, bool) {
	if option, ok := s.CurrentOption(); ok {
		return option, true
	}
	if cap, ok := s.Capability(); ok {
		return cap.State, true
	}
	return "", false
}

// SelectOption writes the option matching the given label or raw value,
// then refreshes the coordinator. An option matching neither fails with a
// validation error and no write is issued.
func (s *Select) SelectOption(ctx context.Context, option string) error {
	cap, ok := s.Capability()
	if !ok {
		return fmt.Errorf("%w: capability %s is unavailable", backend.ErrValidation, s.capabilityID)
	}

	for _, opt := range cap.Control.Options {
		if opt.Label == option || opt.Value == option {
			return s.writeState(ctx, s.client, opt.Value)
		}
	}
	return fmt.Errorf("%w: unknown option %q", backend.ErrValidation, option)
}
