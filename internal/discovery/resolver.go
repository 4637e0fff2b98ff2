// Package discovery locates the backend endpoint when no base URL is
// configured.
//
// Candidates come from three places: explicit configuration, a supervisor
// hint (the managed add-on's published port), and a static fallback list.
// Candidates are probed in order with a lightweight device-list call; the
// first one that answers with valid JSON, or that answers with an
// authentication error (reachable, just needs credentials), wins.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
)

// ProbeTimeout bounds each candidate probe, shorter than the data-call
// timeout so a dead candidate does not stall startup.
const ProbeTimeout = 10 * time.Second

// Default backend ports per deployment mode.
const (
	DefaultStandalonePort = 8099
	DefaultAddonPort      = 8080
)

// ErrNoBackend is returned once every candidate has been exhausted.
var ErrNoBackend = errors.New("discovery: no reachable backend")

// DefaultCandidates is the static fallback list probed after explicit and
// supervisor-sourced candidates.
func DefaultCandidates() []string {
	return []string{
		fmt.Sprintf("http://homeassistant:%d", DefaultStandalonePort),
		fmt.Sprintf("http://localhost:%d", DefaultStandalonePort),
		fmt.Sprintf("http://127.0.0.1:%d", DefaultStandalonePort),
	}
}

// Resolver probes backend candidates and reports the first reachable one.
type Resolver struct {
	apiKey     string
	candidates []string
	supervisor *SupervisorClient
	log        *logging.Logger
}

// NewResolver creates a resolver over the given static candidates. The
// supervisor client is optional; when nil only the static candidates are
// probed.
func NewResolver(apiKey string, candidates []string, supervisor *SupervisorClient, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.Default()
	}
	return &Resolver{
		apiKey:     apiKey,
		candidates: candidates,
		supervisor: supervisor,
		log:        log.With("component", "discovery"),
	}
}

// Resolve returns the base URL of the first reachable backend candidate.
// Supervisor-hinted candidates are tried before the static list. It fails
// with ErrNoBackend only after every candidate has been probed.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.supervisor != nil {
		hinted, err := r.supervisor.Candidates(ctx)
		if err != nil {
			r.log.Debug("supervisor discovery failed", "error", err)
		} else if url, ok := r.tryCandidates(ctx, hinted); ok {
			return url, nil
		}
	}

	if url, ok := r.tryCandidates(ctx, r.candidates); ok {
		return url, nil
	}
	return "", ErrNoBackend
}

// tryCandidates normalises, deduplicates, and probes candidates in order,
// short-circuiting on the first hit.
func (r *Resolver) tryCandidates(ctx context.Context, candidates []string) (string, bool) {
	seen := make(map[string]struct{}, len(candidates))
	for _, raw := range candidates {
		candidate := NormalizeBaseURL(raw)
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		err := r.probe(ctx, candidate)
		switch {
		case err == nil:
			r.log.Info("backend discovered", "base_url", candidate)
			return candidate, true
		case errors.Is(err, backend.ErrAuth):
			// Reachable but needs credentials, still a resolution.
			r.log.Info("backend discovered, authentication required", "base_url", candidate)
			return candidate, true
		default:
			r.log.Debug("candidate not available", "base_url", candidate, "error", err)
		}
	}
	return "", false
}

// probe issues one device-list call against a candidate.
func (r *Resolver) probe(ctx context.Context, baseURL string) error {
	client := backend.NewClientWithTimeout(baseURL, r.apiKey, ProbeTimeout)
	_, err := client.FetchDevices(ctx)
	return err
}

// NormalizeBaseURL trims whitespace and trailing slashes. Empty input
// normalises to the empty string, which callers drop.
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
