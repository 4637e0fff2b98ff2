// Package entity maps live backend identifiers to stable presentation
// objects whose backing data may appear, disappear, or go stale between
// polls.
//
// Resolution is always live: every read re-walks the owning coordinator's
// current snapshot, so an entity never caches capability state beyond the
// labels captured at creation time (used as display fallbacks when the
// backing record has vanished).
package entity

import (
	"context"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/coordinator"
)

// Entity is the common surface of all materialised capability entities.
type Entity interface {
	// UniqueID is stable across polls and survives the backing
	// capability disappearing: "{deviceID}_{capabilityID}" for device
	// scope, "global_{capabilityID}" for global scope.
	UniqueID() string
	// Name is the display name, falling back to creation-time labels
	// when the capability is currently unresolved.
	Name() string
	Scope() string
	Available() bool
	// State renders the entity's publishable state. False when the
	// backing capability does not currently resolve.
	State() (string, bool)
}

// Base holds the stable key of one capability entity and resolves it
// against the owning coordinator on every read.
type Base struct {
	scope        string
	deviceID     string
	capabilityID string

	devices *coordinator.Coordinator[coordinator.DeviceSnapshot]
	global  *coordinator.Coordinator[coordinator.GlobalSnapshot]

	fallbackDeviceName string
	fallbackLabel      string
}

// newDeviceBase binds an entity to one (device, capability) pair on the
// device coordinator.
func newDeviceBase(devices *coordinator.Coordinator[coordinator.DeviceSnapshot], device backend.Device, cap backend.Capability) Base {
	return Base{
		scope:              backend.ScopeDevice,
		deviceID:           device.ID,
		capabilityID:       cap.ID,
		devices:            devices,
		fallbackDeviceName: device.Name,
		fallbackLabel:      cap.Label,
	}
}

// newGlobalBase binds an entity to one global capability.
func newGlobalBase(global *coordinator.Coordinator[coordinator.GlobalSnapshot], cap backend.Capability) Base {
	return Base{
		scope:         backend.ScopeGlobal,
		capabilityID:  cap.ID,
		global:        global,
		fallbackLabel: cap.Label,
	}
}

// Scope returns "device" or "global".
func (b *Base) Scope() string {
	return b.scope
}

// DeviceID returns the owning device ID, empty for global scope.
func (b *Base) DeviceID() string {
	return b.deviceID
}

// CapabilityID returns the backend capability ID.
func (b *Base) CapabilityID() string {
	return b.capabilityID
}

// UniqueID returns the stable identifier, independent of whether the
// capability currently resolves.
func (b *Base) UniqueID() string {
	if b.scope == backend.ScopeDevice {
		return b.deviceID + "_" + b.capabilityID
	}
	return "global_" + b.capabilityID
}

// Device resolves the owning device in the current snapshot. Always false
// for global scope.
func (b *Base) Device() (backend.Device, bool) {
	if b.scope != backend.ScopeDevice || b.devices == nil {
		return backend.Device{}, false
	}
	snapshot, ok := b.devices.Snapshot()
	if !ok {
		return backend.Device{}, false
	}
	device, ok := snapshot[b.deviceID]
	return device, ok
}

// Capability resolves the backing capability in the current snapshot.
func (b *Base) Capability() (backend.Capability, bool) {
	if b.scope == backend.ScopeDevice {
		device, ok := b.Device()
		if !ok {
			return backend.Capability{}, false
		}
		return device.Capability(b.capabilityID)
	}

	if b.global == nil {
		return backend.Capability{}, false
	}
	snapshot, ok := b.global.Snapshot()
	if !ok {
		return backend.Capability{}, false
	}
	for _, cap := range snapshot {
		if cap.ID == b.capabilityID {
			return cap, true
		}
	}
	return backend.Capability{}, false
}

// Available reports whether the entity is currently usable: the last tick
// succeeded, the capability resolves, and for device scope the device
// resolves and is online. A stale snapshot after a failed tick makes the
// entity unavailable even though its data is still readable.
func (b *Base) Available() bool {
	if b.scope == backend.ScopeDevice {
		if b.devices == nil || !b.devices.LastSuccess() {
			return false
		}
		if _, ok := b.Capability(); !ok {
			return false
		}
		device, ok := b.Device()
		return ok && device.Online
	}

	if b.global == nil || !b.global.LastSuccess() {
		return false
	}
	_, ok := b.Capability()
	return ok
}

// Name returns the display name: "{device name} {capability label}" for
// device scope, the capability label alone for global scope. Unresolved
// records fall back to the labels captured at creation time, never to
// empty text.
func (b *Base) Name() string {
	label := b.fallbackLabel
	if cap, ok := b.Capability(); ok {
		label = cap.Label
	}

	if b.scope != backend.ScopeDevice {
		return label
	}

	deviceName := b.fallbackDeviceName
	if device, ok := b.Device(); ok {
		deviceName = device.Name
	}
	if deviceName == "" {
		deviceName = b.deviceID
	}
	return deviceName + " " + label
}

// refresh triggers an out-of-band tick on the owning coordinator after a
// successful write-back.
func (b *Base) refresh(ctx context.Context) error {
	if b.scope == backend.ScopeDevice {
		return b.devices.ForceRefresh(ctx)
	}
	return b.global.ForceRefresh(ctx)
}

// writeState pushes a new state value through the client, then refreshes
// the owning coordinator. A write failure is returned as-is and skips the
// refresh.
func (b *Base) writeState(ctx context.Context, client *backend.Client, state string) error {
	var err error
	if b.scope == backend.ScopeDevice {
		err = client.SetDeviceCapabilityState(ctx, b.deviceID, b.capabilityID, state)
	} else {
		err = client.SetGlobalCapabilityState(ctx, b.capabilityID, state)
	}
	if err != nil {
		return err
	}
	return b.refresh(ctx)
}
