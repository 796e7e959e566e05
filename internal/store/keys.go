package store

import "strings"

// Keys builds the namespaced Redis key strings from spec.md §6's layout,
// grounded on original_source/indiredis/tools.py's _key() helper (prefix
// concatenated with ":"-joined key parts).
type Keys struct {
	Prefix string
}

func (k Keys) join(parts ...string) string {
	return k.Prefix + strings.Join(parts, ":")
}

// Devices is the set of all known device names.
func (k Keys) Devices() string { return k.join("devices") }

// Properties is the set of property names owned by device.
func (k Keys) Properties(device string) string { return k.join("properties", device) }

// Attributes is the hash of property-level attributes (including the kind
// tag) for (device, property).
func (k Keys) Attributes(device, property string) string {
	return k.join("attributes", property, device)
}

// Elements is the set of element names belonging to (device, property).
func (k Keys) Elements(device, property string) string {
	return k.join("elements", property, device)
}

// ElementAttributes is the hash of element-level attributes (including
// "value") for (device, property, element).
func (k Keys) ElementAttributes(device, property, element string) string {
	return k.join("elementattributes", element, property, device)
}

// Messages is the single most-recent site-wide message.
func (k Keys) Messages() string { return k.join("messages") }

// DeviceMessages is the single most-recent message for device.
func (k Keys) DeviceMessages(device string) string { return k.join("devicemessages", device) }

// PropertyMessages is the additive per-property bounded message log
// (SPEC_FULL.md §3 supplement, grounded on original_source's rolling
// per-property Messages list).
func (k Keys) PropertyMessages(device, property string) string {
	return k.join("logdata", property, device, "messages")
}

// LogData is a change-detected bounded log key for arbitrary kind/scope
// parts, e.g. Keys{}.LogData("numbervector", property, device).
func (k Keys) LogData(parts ...string) string {
	return k.join(append([]string{"logdata"}, parts...)...)
}
