package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// listItems unwraps a list envelope: either a bare JSON array or an object
// with an "items" array. An object without an items field reads as an
// empty list, matching the backend's occasional bare status responses.
func listItems(payload any) ([]any, error) {
	switch v := payload.(type) {
	case []any:
		return v, nil
	case map[string]any:
		raw, ok := v["items"]
		if !ok {
			return []any{}, nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("items is not a list")
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}
}

// parseDevice normalises one raw device entry. Identity prefers the mac
// field and falls back to id; a device with neither is a validation error
// that fails the whole batch.
func parseDevice(raw any) (Device, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Device{}, fmt.Errorf("%w: invalid device item", ErrValidation)
	}

	mac, _ := asString(obj["mac"])
	id := mac
	if id == "" {
		id, _ = asString(obj["id"])
	}
	if id == "" {
		return Device{}, fmt.Errorf("%w: device id is missing", ErrValidation)
	}

	registered := false
	if v, ok := obj["registered"].(bool); ok {
		registered = v
	} else {
		status, _ := asString(obj["status"])
		registered = strings.ToLower(status) == "registered"
	}

	name, ok := asString(obj["name"])
	if !ok {
		name = id
	}
	ip, ok := asString(obj["ip"])
	if !ok {
		ip, _ = asString(obj["last_ip"])
	}
	subnet, ok := asString(obj["subnet"])
	if !ok {
		subnet, _ = asString(obj["last_subnet"])
	}
	vendor, _ := asString(obj["vendor"])

	return Device{
		ID:           id,
		Name:         name,
		MAC:          mac,
		IP:           ip,
		Vendor:       vendor,
		Subnet:       subnet,
		Online:       asBool(obj["online"], false),
		Registered:   registered,
		Capabilities: []Capability{},
	}, nil
}

// parseCapabilities normalises a capability list. Unlike device parsing it
// is item-tolerant: entries that are not objects or lack an id are skipped
// so one bad item never loses the rest of the list.
func parseCapabilities(payload any, defaultScope string) ([]Capability, error) {
	items, err := listItems(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid capabilities response", ErrMalformedResponse)
	}

	capabilities := make([]Capability, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id, ok := asString(obj["id"])
		if !ok {
			id, ok = asString(obj["capability_id"])
		}
		if !ok {
			continue
		}

		label, ok := asString(obj["label"])
		if !ok {
			label = id
		}
		scope, ok := asString(obj["scope"])
		if !ok {
			scope = defaultScope
		}
		description, _ := asString(obj["description"])
		state, _ := asString(obj["state"])

		capabilities = append(capabilities, Capability{
			ID:          id,
			Label:       label,
			Description: description,
			Scope:       scope,
			Control:     parseControl(obj["control"]),
			Enabled:     asBool(obj["enabled"], true),
			State:       state,
		})
	}
	return capabilities, nil
}

// parseControl normalises the control section. A missing or malformed
// section defaults to a switch with no options. Options accept both the
// object form {value, label} and a bare string (value doubles as label).
func parseControl(raw any) Control {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Control{Type: ControlTypeSwitch, Options: []ControlOption{}}
	}

	controlType, ok := asString(obj["type"])
	if !ok {
		controlType = ControlTypeSwitch
	}

	options := []ControlOption{}
	if rawOptions, ok := obj["options"].([]any); ok {
		for _, rawOption := range rawOptions {
			switch opt := rawOption.(type) {
			case map[string]any:
				value, ok := asString(opt["value"])
				if !ok {
					continue
				}
				label, ok := asString(opt["label"])
				if !ok {
					label = value
				}
				options = append(options, ControlOption{Value: value, Label: label})
			case string:
				if trimmed := strings.TrimSpace(opt); trimmed != "" {
					options = append(options, ControlOption{Value: opt, Label: opt})
				}
			}
		}
	}

	return Control{Type: controlType, Options: options}
}

// asString converts a JSON value to a trimmed, non-empty string. Numbers
// and booleans are stringified the way the backend occasionally sends ids.
func asString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// asBool converts a JSON value to bool with a fallback default. String
// forms of truthiness the backend uses are recognised.
func asBool(value any, def bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.TrimSpace(strings.ToLower(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		return def
	case float64:
		return v != 0
	default:
		return def
	}
}
