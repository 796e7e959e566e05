// Package model is the typed representation of the INDI data model: devices,
// the five property vector kinds, their elements, messages, and deletions.
//
// Each vector kind shares a common Header and carries a kind-specific Body.
// Dispatch on Kind replaces the runtime class hierarchy the protocol's
// reference client uses; callers switch on Kind to reach the right Body.
package model

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// PropertyState is the state of a property vector. "Idle", "Ok", "Busy", or "Alert".
type PropertyState string

const (
	StateIdle  PropertyState = "Idle"
	StateOk    PropertyState = "Ok"
	StateBusy  PropertyState = "Busy"
	StateAlert PropertyState = "Alert"
)

// ParsePropertyState lower-cases and maps s onto the canonical state literal set.
// The wire never trusts case (spec §4.1), so this is the only way a state
// should be read off an incoming frame.
func ParsePropertyState(s string) PropertyState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return StateIdle
	case "ok":
		return StateOk
	case "busy":
		return StateBusy
	case "alert":
		return StateAlert
	default:
		return StateAlert
	}
}

// SwitchState is a switch element value. "On" or "Off".
type SwitchState string

const (
	SwitchOn  SwitchState = "On"
	SwitchOff SwitchState = "Off"
)

// ParseSwitchState lower-cases and maps onto the canonical switch literal set.
func ParseSwitchState(s string) SwitchState {
	if strings.EqualFold(strings.TrimSpace(s), "on") {
		return SwitchOn
	}
	return SwitchOff
}

// SwitchRule governs how many elements of a switch vector may be On at once.
type SwitchRule string

const (
	RuleOneOfMany SwitchRule = "OneOfMany"
	RuleAtMostOne SwitchRule = "AtMostOne"
	RuleAnyOfMany SwitchRule = "AnyOfMany"
)

// Permission is a permission hint for clients. "ro", "wo", or "rw".
type Permission string

const (
	PermReadOnly  Permission = "ro"
	PermWriteOnly Permission = "wo"
	PermReadWrite Permission = "rw"
)

// Kind identifies which of the five property vector kinds a Property carries.
type Kind string

const (
	KindText   Kind = "Text"
	KindNumber Kind = "Number"
	KindSwitch Kind = "Switch"
	KindLight  Kind = "Light"
	KindBLOB   Kind = "BLOB"
)

// Header holds the attributes common to every property vector kind.
type Header struct {
	Device    string
	Name      string
	Label     string
	Group     string
	State     PropertyState
	Timestamp time.Time
	Message   string
	Perm      Permission
	Timeout   int
}

// Property is one INDI property vector: a Header plus a kind-specific Body.
// Elements is keyed by element name for O(1) lookup, and Property.Ordered
// returns them in label order for display.
type Property struct {
	Header
	Kind     Kind
	Rule     SwitchRule // only meaningful when Kind == KindSwitch
	Elements map[string]*Element
}

// Element is one named field within a vector.
type Element struct {
	Device string
	Prop   string
	Name   string
	Label  string

	// Text/Number elements keep Value as the raw wire string (numbers are
	// never parsed to float64 in the model - see internal/numfmt for
	// display formatting). Switch elements keep Value as "On"/"Off". Light
	// elements keep Value as one of the PropertyState literals.
	Value string

	// Number-only.
	Format string
	Min    string
	Max    string
	Step   string

	// BLOB-only.
	BlobData   []byte
	BlobSize   int
	BlobFormat string
}

// NewProperty builds an empty property vector of the given kind, ready to
// have elements added to it by a defXxxVector frame.
func NewProperty(h Header, kind Kind, rule SwitchRule) *Property {
	if kind == KindLight {
		h.Perm = PermReadOnly
	}
	return &Property{
		Header:   h,
		Kind:     kind,
		Rule:     rule,
		Elements: map[string]*Element{},
	}
}

// SetElement installs or replaces an element by name.
func (p *Property) SetElement(e *Element) {
	p.Elements[e.Name] = e
}

// Ordered returns the property's elements sorted by label using a mixed
// alphanumeric comparison: runs of digits compare numerically rather than
// byte-by-byte, so "Elem2" sorts before "Elem10".
func (p *Property) Ordered() []*Element {
	out := make([]*Element, 0, len(p.Elements))
	for _, e := range p.Elements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessMixedAlphanumeric(out[i].Label, out[j].Label)
	})
	return out
}

// lessMixedAlphanumeric implements the digit-run-aware comparison that
// Property.Ordered uses for element display order. Device.Groups does not
// use it; it sorts group names with sort.Strings.
func lessMixedAlphanumeric(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		ca, cb := ra[i], rb[j]
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			starta, startb := i, j
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			na := strings.TrimLeft(string(ra[starta:i]), "0")
			nb := strings.TrimLeft(string(rb[startb:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(ra)-i < len(rb)-j
}

// Device owns a set of properties and a bounded list of device-scoped
// messages. No other package of the gateway builds these values (only this
// package's tests do); the durable source of truth is the Store.
type Device struct {
	Name       string
	Properties map[string]*Property
	Messages   []Message
}

// Message is a site-wide (Device == "") or device-scoped note from the server.
type Message struct {
	Device    string
	Timestamp time.Time
	Text      string
}

// NewDevice builds an empty device record.
func NewDevice(name string) *Device {
	return &Device{Name: name, Properties: map[string]*Property{}}
}

// Groups returns the sorted, de-duplicated set of property groups for a
// device, mirroring the teacher's device-group listing convention.
func (d *Device) Groups() []string {
	seen := map[string]bool{}
	for _, p := range d.Properties {
		seen[p.Group] = true
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}
