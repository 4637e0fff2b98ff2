package entity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/coordinator"
)

// testBackend is a mutable fake backend shared by the entity tests. Bodies
// can be swapped between ticks to simulate capabilities appearing and
// disappearing.
type testBackend struct {
	mu           sync.Mutex
	devices      string
	capabilities map[string]string
	global       string
	failAll      bool

	deviceFetches atomic.Int64
	patches       []patchCall
}

type patchCall struct {
	path  string
	state string
}

func (tb *testBackend) set(fn func(*testBackend)) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	fn(tb)
}

func (tb *testBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tb.mu.Lock()
		defer tb.mu.Unlock()

		if tb.failAll {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if r.Method == http.MethodPatch {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			tb.patches = append(tb.patches, patchCall{path: r.URL.Path, state: body["state"]})
			w.WriteHeader(http.StatusNoContent)
			return
		}

		switch {
		case r.URL.Path == "/api/devices":
			tb.deviceFetches.Add(1)
			w.Write([]byte(tb.devices))
		case r.URL.Path == "/api/global/capabilities":
			w.Write([]byte(tb.global))
		default:
			for id, body := range tb.capabilities {
				if r.URL.Path == "/api/devices/"+id+"/capabilities" {
					w.Write([]byte(body))
					return
				}
			}
			http.NotFound(w, r)
		}
	}
}

type testRig struct {
	backend *testBackend
	client  *backend.Client
	devices *coordinator.Coordinator[coordinator.DeviceSnapshot]
	global  *coordinator.Coordinator[coordinator.GlobalSnapshot]
}

func newTestRig(t *testing.T, tb *testBackend) *testRig {
	t.Helper()

	server := httptest.NewServer(tb.handler())
	t.Cleanup(server.Close)

	client := backend.NewClient(server.URL, "")
	rig := &testRig{
		backend: tb,
		client:  client,
		devices: coordinator.NewDevices(client, time.Minute, nil),
		global:  coordinator.NewGlobal(client, time.Minute, nil),
	}

	if err := rig.devices.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("devices tick error = %v", err)
	}
	if err := rig.global.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("global tick error = %v", err)
	}
	return rig
}

func defaultBackend() *testBackend {
	return &testBackend{
		devices: `[{"mac":"AA:BB","name":"Phone","online":true,"status":"registered"}]`,
		capabilities: map[string]string{
			"AA:BB": `[{"id":"block","label":"Internet block","control":{"type":"switch","options":[{"value":"allow"},{"value":"deny"}]},"state":"allow"}]`,
		},
		global: `[{"id":"mode","label":"House mode","control":{"type":"select","options":[{"value":"a","label":"Alpha"},{"value":"b","label":"Beta"}]},"state":"b"}]`,
	}
}

func deviceSwitch(t *testing.T, rig *testRig) *Switch {
	t.Helper()

	snapshot, _ := rig.devices.Snapshot()
	device, ok := snapshot["AA:BB"]
	if !ok {
		t.Fatal("device AA:BB missing from snapshot")
	}
	cap, ok := device.Capability("block")
	if !ok {
		t.Fatal("capability block missing")
	}
	return NewSwitch(newDeviceBase(rig.devices, device, cap), rig.client)
}

func globalSelect(t *testing.T, rig *testRig) *Select {
	t.Helper()

	snapshot, _ := rig.global.Snapshot()
	if len(snapshot) == 0 {
		t.Fatal("global snapshot empty")
	}
	return NewSelect(newGlobalBase(rig.global, snapshot[0]), rig.client)
}

func TestUniqueIDForms(t *testing.T) {
	rig := newTestRig(t, defaultBackend())

	if got := deviceSwitch(t, rig).UniqueID(); got != "AA:BB_block" {
		t.Errorf("device UniqueID = %q, want AA:BB_block", got)
	}
	if got := globalSelect(t, rig).UniqueID(); got != "global_mode" {
		t.Errorf("global UniqueID = %q, want global_mode", got)
	}
}

func TestDisplayNames(t *testing.T) {
	rig := newTestRig(t, defaultBackend())

	if got := deviceSwitch(t, rig).Name(); got != "Phone Internet block" {
		t.Errorf("device Name = %q", got)
	}
	if got := globalSelect(t, rig).Name(); got != "House mode" {
		t.Errorf("global Name = %q", got)
	}
}

func TestNameFallsBackWhenCapabilityVanishes(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)

	tb.set(func(tb *testBackend) {
		tb.capabilities["AA:BB"] = `[]`
	})
	if err := rig.devices.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh error = %v", err)
	}

	if _, ok := sw.Capability(); ok {
		t.Fatal("capability still resolves after removal")
	}
	if got := sw.Name(); got != "Phone Internet block" {
		t.Errorf("Name = %q, want creation-time fallback", got)
	}
	if sw.Available() {
		t.Error("Available() = true for vanished capability")
	}
}

func TestAvailability(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)
	sel := globalSelect(t, rig)

	if !sw.Available() || !sel.Available() {
		t.Fatal("entities unavailable after successful ticks")
	}

	// Device going offline makes the device entity unavailable; the
	// global entity does not care.
	tb.set(func(tb *testBackend) {
		tb.devices = `[{"mac":"AA:BB","name":"Phone","online":false,"status":"registered"}]`
	})
	rig.devices.ForceRefresh(context.Background())
	if sw.Available() {
		t.Error("device entity available while device offline")
	}
	if !sel.Available() {
		t.Error("global entity unavailable, device state must not matter")
	}

	// A failed tick flips availability but keeps the stale data readable.
	tb.set(func(tb *testBackend) { tb.failAll = true })
	rig.global.ForceRefresh(context.Background())
	if sel.Available() {
		t.Error("global entity available after failed tick")
	}
	if _, ok := sel.Capability(); !ok {
		t.Error("stale capability no longer readable after failed tick")
	}
}

func TestSwitchReadsState(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{"allow", true},
		{"on", true},
		{"Enabled", true},
		{" TRUE ", true},
		{"1", true},
		{"deny", false},
		{"off", false},
		{"garbage", false},
		{"", false},
	}

	for _, tt := range tests {
		tb := defaultBackend()
		tb.capabilities["AA:BB"] = `[{"id":"block","control":{"type":"switch"},"state":"` + tt.state + `"}]`
		rig := newTestRig(t, tb)

		if got := deviceSwitch(t, rig).IsOn(); got != tt.want {
			t.Errorf("state %q: IsOn() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestSwitchWriteResolvesVocabulary(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)

	if err := sw.TurnOn(context.Background()); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if err := sw.TurnOff(context.Background()); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}

	if len(tb.patches) != 2 {
		t.Fatalf("got %d PATCH calls, want 2", len(tb.patches))
	}
	if tb.patches[0].state != "allow" {
		t.Errorf("turn on wrote %q, want allow", tb.patches[0].state)
	}
	if tb.patches[1].state != "deny" {
		t.Errorf("turn off wrote %q, want deny", tb.patches[1].state)
	}
	if tb.patches[0].path != "/api/devices/AA:BB/capabilities/block" {
		t.Errorf("PATCH path = %q", tb.patches[0].path)
	}
}

func TestSwitchWriteLiteralFallbackWithoutOptions(t *testing.T) {
	tb := defaultBackend()
	tb.capabilities["AA:BB"] = `[{"id":"block","control":{"type":"switch"},"state":""}]`
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)

	sw.TurnOn(context.Background())
	sw.TurnOff(context.Background())

	if tb.patches[0].state != "on" || tb.patches[1].state != "off" {
		t.Errorf("wrote %q/%q, want literal on/off", tb.patches[0].state, tb.patches[1].state)
	}
}

func TestSwitchWritePositionalFallback(t *testing.T) {
	tb := defaultBackend()
	tb.capabilities["AA:BB"] = `[{"id":"block","control":{"type":"switch","options":[{"value":"fast"},{"value":"slow"}]},"state":"fast"}]`
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)

	sw.TurnOn(context.Background())
	sw.TurnOff(context.Background())

	if tb.patches[0].state != "fast" {
		t.Errorf("turn on wrote %q, want first option", tb.patches[0].state)
	}
	if tb.patches[1].state != "slow" {
		t.Errorf("turn off wrote %q, want last option", tb.patches[1].state)
	}
}

func TestWriteTriggersRefresh(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)

	before := tb.deviceFetches.Load()
	if err := sw.TurnOn(context.Background()); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if after := tb.deviceFetches.Load(); after != before+1 {
		t.Errorf("device fetches = %d, want refresh after write", after-before)
	}
}

func TestWriteFailureSkipsRefresh(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sw := deviceSwitch(t, rig)

	before := tb.deviceFetches.Load()
	tb.set(func(tb *testBackend) { tb.failAll = true })

	err := sw.TurnOn(context.Background())
	if !errors.Is(err, backend.ErrAPI) {
		t.Fatalf("TurnOn() error = %v, want ErrAPI", err)
	}
	if got := tb.deviceFetches.Load(); got != before {
		t.Errorf("device fetches = %d after failed write, want no refresh", got-before)
	}
}

func TestSelectRoundTrip(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sel := globalSelect(t, rig)

	current, ok := sel.CurrentOption()
	if !ok || current != "Beta" {
		t.Fatalf("CurrentOption() = %q, %v, want Beta", current, ok)
	}

	// Label and raw value both resolve to the option value.
	if err := sel.SelectOption(context.Background(), "Alpha"); err != nil {
		t.Fatalf("SelectOption(Alpha) error = %v", err)
	}
	if err := sel.SelectOption(context.Background(), "a"); err != nil {
		t.Fatalf("SelectOption(a) error = %v", err)
	}

	if len(tb.patches) != 2 {
		t.Fatalf("got %d PATCH calls, want 2", len(tb.patches))
	}
	for _, p := range tb.patches {
		if p.state != "a" {
			t.Errorf("wrote %q, want a", p.state)
		}
		if p.path != "/api/global/capabilities/mode" {
			t.Errorf("PATCH path = %q", p.path)
		}
	}
}

func TestSelectUnknownOption(t *testing.T) {
	tb := defaultBackend()
	rig := newTestRig(t, tb)
	sel := globalSelect(t, rig)

	err := sel.SelectOption(context.Background(), "Gamma")
	if !errors.Is(err, backend.ErrValidation) {
		t.Fatalf("SelectOption(Gamma) error = %v, want ErrValidation", err)
	}
	if len(tb.patches) != 0 {
		t.Errorf("got %d PATCH calls for invalid option, want 0", len(tb.patches))
	}
}

func TestSelectOptionsAndUnmatchedState(t *testing.T) {
	tb := defaultBackend()
	tb.global = `[{"id":"mode","control":{"type":"select","options":[{"value":"a","label":"Alpha"}]},"state":"zzz"}]`
	rig := newTestRig(t, tb)
	sel := globalSelect(t, rig)

	if got := sel.Options(); len(got) != 1 || got[0] != "Alpha" {
		t.Errorf("Options() = %v", got)
	}
	if _, ok := sel.CurrentOption(); ok {
		t.Error("CurrentOption() resolved for state outside options")
	}
}
