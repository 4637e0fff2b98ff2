package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// DefaultSupervisorURL is the supervisor API endpoint inside a managed
// deployment.
const DefaultSupervisorURL = "http://supervisor"

// Addon is one entry from the supervisor's add-on directory.
type Addon struct {
	Slug      string
	Name      string
	Installed bool
	Port      int
}

// SupervisorClient asks the supervisor for the backend add-on's published
// port and turns it into a discovery candidate.
type SupervisorClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	addonSlug  string
}

// NewSupervisorClient creates a supervisor client. Returns nil when the
// token is empty, which disables supervisor discovery entirely.
func NewSupervisorClient(baseURL, token, addonSlug string) *SupervisorClient {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultSupervisorURL
	}
	return &SupervisorClient{
		httpClient: &http.Client{Timeout: ProbeTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		addonSlug:  strings.TrimSpace(addonSlug),
	}
}

// Candidates fetches the add-on directory, ranks entries against the
// configured slug, and returns the matched add-on's URL candidate. An
// empty slice with nil error means the add-on is simply not listed.
func (s *SupervisorClient) Candidates(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/addons", nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build supervisor request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: supervisor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("discovery: supervisor responded with HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discovery: read supervisor response: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("discovery: decode supervisor response: %w", err)
	}

	addon, ok := MatchAddon(ParseAddons(payload), s.addonSlug)
	if !ok {
		return nil, nil
	}

	port := addon.Port
	if port <= 0 {
		port = DefaultAddonPort
	}
	return []string{fmt.Sprintf("http://homeassistant:%d", port)}, nil
}

// ParseAddons extracts the add-on list from a supervisor response, which
// nests it under data.addons or exposes it top-level as addons.
func ParseAddons(payload any) []Addon {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}

	raw, ok := obj["addons"].([]any)
	if !ok {
		if data, isObj := obj["data"].(map[string]any); isObj {
			raw, _ = data["addons"].([]any)
		}
	}

	addons := make([]Addon, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		slug := firstString(entry, "slug", "addon", "id")
		if slug == "" {
			continue
		}

		addons = append(addons, Addon{
			Slug:      strings.ToLower(slug),
			Name:      firstString(entry, "name"),
			Installed: addonInstalled(entry),
			Port:      addonPort(entry),
		})
	}
	return addons
}

// MatchAddon resolves an ambiguous slug against the directory with a
// deterministic ranking: exact slug before repository-prefixed slug, then
// installed before not installed, then shorter slug, then lexicographic.
// The first-ranked candidate wins.
func MatchAddon(addons []Addon, slug string) (Addon, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Addon{}, false
	}

	suffix := "_" + slug
	matches := make([]Addon, 0, len(addons))
	for _, addon := range addons {
		if addon.Slug == slug || strings.HasSuffix(addon.Slug, suffix) {
			matches = append(matches, addon)
		}
	}
	if len(matches) == 0 {
		return Addon{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if (a.Slug == slug) != (b.Slug == slug) {
			return a.Slug == slug
		}
		if a.Installed != b.Installed {
			return a.Installed
		}
		if len(a.Slug) != len(b.Slug) {
			return len(a.Slug) < len(b.Slug)
		}
		return a.Slug < b.Slug
	})
	return matches[0], true
}

func firstString(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := entry[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func addonInstalled(entry map[string]any) bool {
	if installed, ok := entry["installed"].(bool); ok {
		return installed
	}
	if state, ok := entry["state"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(state)) {
		case "started", "stopped", "installed":
			return true
		}
	}
	return false
}

// addonPort reads ingress_port or port, accepting the numeric-string form
// the supervisor occasionally emits. Zero means not published.
func addonPort(entry map[string]any) int {
	for _, key := range []string{"ingress_port", "port"} {
		switch value := entry[key].(type) {
		case float64:
			if value > 0 {
				return int(value)
			}
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	return 0
}
