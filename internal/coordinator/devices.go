package coordinator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
)

// DeviceSnapshot maps device ID to the device with its capabilities
// attached. Only registered devices appear.
type DeviceSnapshot = map[string]backend.Device

// NewDevices creates the per-device coordinator. Each tick fetches the
// full device list, keeps registered devices, then fans out one
// capability fetch per device concurrently. The tick is all-or-nothing:
// if any capability fetch fails the snapshot is not replaced.
func NewDevices(client *backend.Client, interval time.Duration, log *logging.Logger) *Coordinator[DeviceSnapshot] {
	fetch := func(ctx context.Context) (DeviceSnapshot, error) {
		devices, err := client.FetchDevices(ctx)
		if err != nil {
			return nil, err
		}

		registered := make([]backend.Device, 0, len(devices))
		for _, device := range devices {
			if device.Registered {
				registered = append(registered, device)
			}
		}

		batches := make([][]backend.Capability, len(registered))
		g, gctx := errgroup.WithContext(ctx)
		for i, device := range registered {
			i, device := i, device
			g.Go(func() error {
				caps, err := client.FetchDeviceCapabilities(gctx, device.ID)
				if err != nil {
					return err
				}
				batches[i] = caps
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		snapshot := make(DeviceSnapshot, len(registered))
		for i, device := range registered {
			device.Capabilities = batches[i]
			snapshot[device.ID] = device
		}
		return snapshot, nil
	}

	return New("devices", interval, fetch, log)
}
