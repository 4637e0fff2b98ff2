package backend

// Capability scopes. A capability either belongs to one device or to the
// backend as a whole.
const (
	ScopeDevice = "device"
	ScopeGlobal = "global"
)

// Recognised control types. Anything else is preserved as-is but is not
// materialised into an interactive entity.
const (
	ControlTypeSwitch = "switch"
	ControlTypeSelect = "select"
)

// ControlOption is a single selectable value with its display label.
type ControlOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control describes how a capability is presented and driven.
// Type is a free-form tag from the backend; Options may be empty, in which
// case switch capabilities fall back to literal "on"/"off" values.
type Control struct {
	Type    string          `json:"type"`
	Options []ControlOption `json:"options"`
}

// Capability is one controllable setting, rebuilt wholesale every poll tick.
// Identity is stable across ticks by ID; the value itself is never mutated
// in place, so consumers must re-resolve it on every read.
type Capability struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Scope       string  `json:"scope"`
	Control     Control `json:"control"`
	Enabled     bool    `json:"enabled"`
	State       string  `json:"state"`
}

// Option returns the control option whose value matches the capability's
// current state, or false when no option matches.
func (c Capability) Option() (ControlOption, bool) {
	for _, opt := range c.Control.Options {
		if opt.Value == c.State {
			return opt, true
		}
	}
	return ControlOption{}, false
}

// Device is one network client known to the backend. ID prefers the MAC
// address and falls back to the backend-supplied id; it is never empty.
// Devices are reconstructed on every successful poll tick, never mutated
// across ticks.
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	MAC          string       `json:"mac,omitempty"`
	IP           string       `json:"ip,omitempty"`
	Vendor       string       `json:"vendor,omitempty"`
	Subnet       string       `json:"subnet,omitempty"`
	Online       bool         `json:"online"`
	Registered   bool         `json:"registered"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability returns the device capability with the given ID, or false when
// the device does not currently expose it.
func (d Device) Capability(capabilityID string) (Capability, bool) {
	for _, cap := range d.Capabilities {
		if cap.ID == capabilityID {
			return cap, true
		}
	}
	return Capability{}, false
}
