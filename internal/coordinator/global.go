package coordinator

import (
	"context"
	"time"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
)

// GlobalSnapshot is the ordered backend-wide capability list.
type GlobalSnapshot = []backend.Capability

// NewGlobal creates the global-capability coordinator. Each tick is a
// single fetch of the global capability list.
func NewGlobal(client *backend.Client, interval time.Duration, log *logging.Logger) *Coordinator[GlobalSnapshot] {
	fetch := func(ctx context.Context) (GlobalSnapshot, error) {
		return client.FetchGlobalCapabilities(ctx)
	}
	return New("global", interval, fetch, log)
}
