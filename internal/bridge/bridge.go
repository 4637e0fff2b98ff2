package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/n1ckjansens/HA-Mikrotik/internal/coordinator"
	"github.com/n1ckjansens/HA-Mikrotik/internal/entity"
	"github.com/n1ckjansens/HA-Mikrotik/internal/history"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid command topic.
	minTopicParts = 3

	// commandTimeout bounds a single backend write triggered over MQTT.
	commandTimeout = 5 * time.Second

	// availabilityOnline and availabilityOffline are the retained
	// availability payloads.
	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

// Bridge mirrors materialised entities onto MQTT and routes commands back
// into them. It handles:
//   - Publishing retained state and availability on every poll tick
//   - Receiving entity commands and translating them to backend writes
//   - Recording state transitions into the history store
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqttClient MQTTClient
	registry   *entity.Registry
	devices    *coordinator.Coordinator[coordinator.DeviceSnapshot]
	recorder   history.Repository // Optional transition persistence
	telemetry  Telemetry          // Optional metric sink
	qos        byte
	log        *logging.Logger

	// Last published values for change detection. Entities in inFlight
	// have a command being executed: the poll pass leaves their state
	// alone so the resulting transition is attributed to the command.
	cacheMu    sync.Mutex
	stateCache map[string]string
	availCache map[string]bool
	inFlight   map[string]bool

	// Shutdown coordination
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Telemetry receives bridge metrics. Satisfied by *influxdb.Client.
// Optional - if nil, the bridge operates without telemetry.
type Telemetry interface {
	// WriteStateTransition records an entity state change.
	WriteStateTransition(entityID, scope, source string)

	// WriteSnapshotMetric records current snapshot sizes.
	WriteSnapshotMetric(deviceCount, entityCount int)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Registry is the entity registry the bridge mirrors. The bridge
	// owns the registry lifecycle: Start and Stop propagate to it.
	Registry *entity.Registry

	// Devices is the device coordinator, used for snapshot metrics.
	Devices *coordinator.Coordinator[coordinator.DeviceSnapshot]

	// Recorder is optional transition persistence.
	// If nil, the bridge operates without history recording.
	Recorder history.Repository

	// Telemetry is an optional metric sink.
	Telemetry Telemetry

	// QoS is the publish QoS level for state and availability.
	QoS byte

	// Logger is an optional structured logger.
	Logger *logging.Logger
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("bridge: entity registry is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("bridge: device coordinator is required")
	}

	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Bridge{
		mqttClient: opts.MQTTClient,
		registry:   opts.Registry,
		devices:    opts.Devices,
		recorder:   opts.Recorder,
		telemetry:  opts.Telemetry,
		qos:        opts.QoS,
		log:        log.With("component", "mqtt_bridge"),
		stateCache: make(map[string]string),
		availCache: make(map[string]bool),
		inFlight:   make(map[string]bool),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
	}, nil
}

// Start hooks the bridge into the registry, subscribes to command topics,
// and publishes the current state of every known entity.
func (b *Bridge) Start() error {
	b.registry.SetUpdateHook(func([]entity.Entity) {
		b.publishAll()
	})
	b.registry.Start()

	commandTopic := mqtt.Topics{}.AllCommands()
	if err := b.mqttClient.Subscribe(commandTopic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.log.Info("subscribed to commands", "topic", commandTopic)

	b.publishAll()

	b.log.Info("bridge started", "entities", b.registry.Count())
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.registry.Stop()
		b.log.Info("bridge stopped")
	})
}

// publishAll walks every materialised entity and publishes state and
// availability values that changed since the last pass. Runs on the
// coordinator tick goroutine, so it must not block on the backend.
func (b *Bridge) publishAll() {
	entities := b.registry.Entities()

	for _, e := range entities {
		state, hasState := e.State()
		available := e.Available()

		b.cacheMu.Lock()
		if b.inFlight[e.UniqueID()] {
			hasState = false
		}
		prevState, seenState := b.stateCache[e.UniqueID()]
		prevAvail, seenAvail := b.availCache[e.UniqueID()]
		if hasState {
			b.stateCache[e.UniqueID()] = state
		}
		b.availCache[e.UniqueID()] = available
		b.cacheMu.Unlock()

		if hasState && (!seenState || prevState != state) {
			b.publishState(e, state)
			if seenState {
				b.recordTransition(e, prevState, state, history.SourcePoll)
			}
		}
		if !seenAvail || prevAvail != available {
			b.publishAvailability(e, available)
		}
	}

	if b.telemetry != nil {
		deviceCount := 0
		if snapshot, ok := b.devices.Snapshot(); ok {
			deviceCount = len(snapshot)
		}
		b.telemetry.WriteSnapshotMetric(deviceCount, len(entities))
	}
}

func (b *Bridge) publishState(e entity.Entity, state string) {
	topic := mqtt.Topics{}.EntityState(e.UniqueID())
	if err := b.mqttClient.Publish(topic, []byte(state), b.qos, true); err != nil {
		b.log.Error("failed to publish state", "topic", topic, "error", err)
	}
}

func (b *Bridge) publishAvailability(e entity.Entity, available bool) {
	payload := availabilityOffline
	if available {
		payload = availabilityOnline
	}
	topic := mqtt.Topics{}.EntityAvailability(e.UniqueID())
	if err := b.mqttClient.Publish(topic, []byte(payload), b.qos, true); err != nil {
		b.log.Error("failed to publish availability", "topic", topic, "error", err)
	}
}

func (b *Bridge) recordTransition(e entity.Entity, oldState, newState, source string) {
	if b.recorder != nil {
		err := b.recorder.RecordTransition(b.ctx, e.UniqueID(), e.Scope(), oldState, newState, source)
		if err != nil {
			b.log.Error("failed to record transition", "entity", e.UniqueID(), "error", err)
		}
	}
	if b.telemetry != nil {
		b.telemetry.WriteStateTransition(e.UniqueID(), e.Scope(), source)
	}
}

// handleCommand processes a command message for one entity.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	entityID := parts[len(parts)-1]

	e, ok := b.registry.Get(entityID)
	if !ok {
		b.log.Warn("command for unknown entity", "entity", entityID)
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	cmd, err := parseCommand(payload)
	if err != nil {
		b.log.Warn("malformed command", "entity", entityID, "error", err)
		return err
	}

	b.log.Info("received command", "entity", entityID, "command", cmd.Command)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	// The write forces a coordinator refresh, which fires the poll pass
	// with the post-write state already in the snapshot. Holding the
	// entity in-flight keeps that pass from claiming the transition.
	b.setInFlight(entityID, true)
	defer b.setInFlight(entityID, false)

	if err := b.executeCommand(ctx, e, cmd); err != nil {
		b.log.Error("command failed", "entity", entityID, "command", cmd.Command, "error", err)
		return err
	}

	b.afterCommand(e)
	return nil
}

// executeCommand dispatches a parsed command to the entity.
func (b *Bridge) executeCommand(ctx context.Context, e entity.Entity, cmd CommandMessage) error {
	switch cmd.Command {
	case CommandTurnOn, CommandTurnOff:
		sw, ok := e.(*entity.Switch)
		if !ok {
			return fmt.Errorf("%w: %s is not a switch", ErrUnknownCommand, e.UniqueID())
		}
		if cmd.Command == CommandTurnOn {
			return sw.TurnOn(ctx)
		}
		return sw.TurnOff(ctx)

	case CommandSelectOption:
		sel, ok := e.(*entity.Select)
		if !ok {
			return fmt.Errorf("%w: %s is not a select", ErrUnknownCommand, e.UniqueID())
		}
		if cmd.Option == "" {
			return ErrMissingOption
		}
		return sel.SelectOption(ctx, cmd.Option)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
}

// afterCommand publishes the post-write state immediately instead of
// waiting for the next scheduled tick. The write already forced a refresh
// on the owning coordinator, so the snapshot is current. Like the poll
// pass, a first observation seeds the cache without a history entry.
func (b *Bridge) afterCommand(e entity.Entity) {
	state, hasState := e.State()
	if !hasState {
		return
	}

	b.cacheMu.Lock()
	prevState, seen := b.stateCache[e.UniqueID()]
	b.stateCache[e.UniqueID()] = state
	b.cacheMu.Unlock()

	if !seen || prevState != state {
		b.publishState(e, state)
		if seen {
			b.recordTransition(e, prevState, state, history.SourceCommand)
		}
	}
}

func (b *Bridge) setInFlight(entityID string, v bool) {
	b.cacheMu.Lock()
	if v {
		b.inFlight[entityID] = true
	} else {
		delete(b.inFlight, entityID)
	}
	b.cacheMu.Unlock()
}

