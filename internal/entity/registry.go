package entity

import (
	"sort"
	"sync"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/coordinator"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
)

// Registry materialises entities lazily from coordinator snapshots.
//
// Materialisation is append-only: once a (device, capability) or global
// capability pair has produced an entity it is never removed, even when
// the backing capability disappears from the backend permanently. The
// entity then reads as perpetually unavailable rather than vanishing,
// which keeps downstream identities (topics, history rows) stable.
//
// Only switch and select control types materialise. Unrecognised control
// types stay visible in the snapshots but get no interactive entity.
type Registry struct {
	client  *backend.Client
	devices *coordinator.Coordinator[coordinator.DeviceSnapshot]
	global  *coordinator.Coordinator[coordinator.GlobalSnapshot]
	log     *logging.Logger

	mu       sync.RWMutex
	entities map[string]Entity
	onUpdate func(added []Entity)

	deviceToken string
	globalToken string
}

// NewRegistry creates an empty registry over the two coordinators.
func NewRegistry(
	client *backend.Client,
	devices *coordinator.Coordinator[coordinator.DeviceSnapshot],
	global *coordinator.Coordinator[coordinator.GlobalSnapshot],
	log *logging.Logger,
) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{
		client:   client,
		devices:  devices,
		global:   global,
		log:      log.With("component", "entity_registry"),
		entities: make(map[string]Entity),
	}
}

// SetUpdateHook registers a callback invoked after every sync, successful
// tick or not, with the entities added by that sync (possibly none). Must
// be set before Start. The callback runs on the coordinator's tick
// goroutine and must not block.
func (r *Registry) SetUpdateHook(fn func(added []Entity)) {
	r.onUpdate = fn
}

// Start subscribes the registry to both coordinators and runs one initial
// sync over whatever snapshots already exist.
func (r *Registry) Start() {
	r.deviceToken = r.devices.Subscribe(r.handleTick)
	r.globalToken = r.global.Subscribe(r.handleTick)
	r.handleTick()
}

// Stop cancels the coordinator subscriptions.
func (r *Registry) Stop() {
	r.devices.Unsubscribe(r.deviceToken)
	r.global.Unsubscribe(r.globalToken)
}

func (r *Registry) handleTick() {
	added := r.Sync()
	if r.onUpdate != nil {
		r.onUpdate(added)
	}
}

// Sync scans both snapshots and materialises entities for capabilities
// not yet represented. It returns the newly added entities.
func (r *Registry) Sync() []Entity {
	var added []Entity

	r.mu.Lock()

	if snapshot, ok := r.devices.Snapshot(); ok {
		for _, device := range snapshot {
			for _, cap := range device.Capabilities {
				base := newDeviceBase(r.devices, device, cap)
				if e := r.materialize(base, cap); e != nil {
					added = append(added, e)
				}
			}
		}
	}

	if snapshot, ok := r.global.Snapshot(); ok {
		for _, cap := range snapshot {
			base := newGlobalBase(r.global, cap)
			if e := r.materialize(base, cap); e != nil {
				added = append(added, e)
			}
		}
	}

	r.mu.Unlock()

	for _, e := range added {
		r.log.Info("entity materialised", "unique_id", e.UniqueID(), "name", e.Name())
	}
	return added
}

// materialize creates the entity for one capability unless its unique ID
// is already taken or its control type is not interactive. Caller holds
// the write lock.
func (r *Registry) materialize(base Base, cap backend.Capability) Entity {
	if _, exists := r.entities[base.UniqueID()]; exists {
		return nil
	}

	var e Entity
	switch cap.Control.Type {
	case backend.ControlTypeSwitch:
		e = NewSwitch(base, r.client)
	case backend.ControlTypeSelect:
		e = NewSelect(base, r.client)
	default:
		return nil
	}

	r.entities[base.UniqueID()] = e
	return e
}

// Get returns the entity with the given unique ID.
func (r *Registry) Get(uniqueID string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[uniqueID]
	return e, ok
}

// Entities returns all materialised entities sorted by unique ID.
func (r *Registry) Entities() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].UniqueID() < entities[j].UniqueID()
	})
	return entities
}

// Count returns the number of materialised entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
