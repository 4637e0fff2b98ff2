// Package backend provides the normalizing HTTP client for the MikroTik
// Presence backend API.
//
// The backend's JSON is loosely shaped: lists arrive either as a bare array
// or wrapped in {"items": [...]}, device identity comes from a mac or an id
// field, and capability controls may be missing entirely. The client absorbs
// all of that here so the rest of the system only ever sees the typed model
// in types.go.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every data request against the backend.
const DefaultTimeout = 15 * time.Second

// Client is a stateless HTTP client for the backend API. It is safe for
// concurrent use; both coordinators and the write path share one instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a backend client for the given base URL. The API key is
// optional; when empty no Authorization header is sent. Trailing slashes on
// the base URL are stripped so path joining stays predictable.
func NewClient(baseURL, apiKey string) *Client {
	return NewClientWithTimeout(baseURL, apiKey, DefaultTimeout)
}

// NewClientWithTimeout creates a client with a non-default request timeout.
// Discovery probes use this with a shorter bound than data requests.
func NewClientWithTimeout(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
	}
}

// BaseURL returns the normalised base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchDevices retrieves all devices known to the backend, registered or
// not. Parsing is all-or-nothing: one device without a usable identity
// fails the whole batch with ErrValidation.
func (c *Client) FetchDevices(ctx context.Context) ([]Device, error) {
	payload, err := c.request(ctx, http.MethodGet, "/api/devices", nil)
	if err != nil {
		return nil, err
	}

	items, err := listItems(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid devices response", ErrMalformedResponse)
	}

	devices := make([]Device, 0, len(items))
	for _, item := range items {
		device, err := parseDevice(item)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// FetchDeviceCapabilities retrieves the capabilities of one device.
// Malformed items are skipped; a bad entry never loses the rest of the list.
func (c *Client) FetchDeviceCapabilities(ctx context.Context, deviceID string) ([]Capability, error) {
	path := "/api/devices/" + url.PathEscape(deviceID) + "/capabilities"
	payload, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return parseCapabilities(payload, ScopeDevice)
}

// FetchGlobalCapabilities retrieves the backend-wide capability list.
func (c *Client) FetchGlobalCapabilities(ctx context.Context) ([]Capability, error) {
	payload, err := c.request(ctx, http.MethodGet, "/api/global/capabilities", nil)
	if err != nil {
		return nil, err
	}
	return parseCapabilities(payload, ScopeGlobal)
}

// SetDeviceCapabilityState writes a new state for one device capability.
// An empty response body is success.
func (c *Client) SetDeviceCapabilityState(ctx context.Context, deviceID, capabilityID, state string) error {
	path := "/api/devices/" + url.PathEscape(deviceID) + "/capabilities/" + url.PathEscape(capabilityID)
	_, err := c.request(ctx, http.MethodPatch, path, map[string]string{"state": state})
	return err
}

// SetGlobalCapabilityState writes a new state for one global capability.
func (c *Client) SetGlobalCapabilityState(ctx context.Context, capabilityID, state string) error {
	path := "/api/global/capabilities/" + url.PathEscape(capabilityID)
	_, err := c.request(ctx, http.MethodPatch, path, map[string]string{"state": state})
	return err
}

// request performs one HTTP call and decodes the JSON response. It returns
// nil for an empty body, which write endpoints treat as success.
func (c *Client) request(ctx context.Context, method, path string, body any) (any, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", ErrAPI, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrAPI, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: timeout while connecting to backend", ErrAPI)
		}
		return nil, fmt.Errorf("%w: cannot connect to backend", ErrAPI)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrAPI, err)
	}
	bodyText := string(bodyBytes)

	var payload any
	decoded := false
	if strings.TrimSpace(bodyText) != "" {
		if err := json.Unmarshal(bodyBytes, &payload); err == nil {
			decoded = true
		}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrAuth, extractErrorMessage(payload, bodyText, "invalid authentication"))
	}
	if resp.StatusCode >= 400 {
		fallback := fmt.Sprintf("HTTP %d", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s", ErrAPI, extractErrorMessage(payload, bodyText, fallback))
	}

	if strings.TrimSpace(bodyText) == "" {
		return nil, nil
	}
	if !decoded {
		return nil, fmt.Errorf("%w: invalid JSON in response", ErrMalformedResponse)
	}
	return payload, nil
}

func isTimeout(err error) bool {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// extractErrorMessage pulls a human-readable message out of an error
// response: a nested error.message field, then a top-level message field,
// then the raw body text, then the supplied fallback.
func extractErrorMessage(payload any, bodyText, fallback string) string {
	if obj, ok := payload.(map[string]any); ok {
		if errObj, ok := obj["error"].(map[string]any); ok {
			if msg, ok := asString(errObj["message"]); ok {
				return msg
			}
		}
		if msg, ok := asString(obj["message"]); ok {
			return msg
		}
	}
	if body := strings.TrimSpace(bodyText); body != "" {
		return body
	}
	return fallback
}
