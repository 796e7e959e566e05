// Package blobpolicy tracks, per upstream source, whether BLOB vectors
// should be ingested/forwarded alongside or instead of non-BLOB traffic.
//
// Grounded on the teacher's BlobEnable type (indiclient.go): Never is the
// default, Also sends BLOBs in addition to normal traffic, Only suppresses
// everything but BLOBs. Here the policy is generalized from "this client"
// to "this source" (an arbitrary device, or one property of a device) so a
// bridge can apply it to whichever adapter received the enableBLOB frame.
package blobpolicy

import (
	"errors"
	"sync"
)

// State is the enable/disable state for BLOB delivery.
type State string

const (
	// Never is the default: no BLOB vectors are ingested or forwarded.
	Never = State("Never")
	// Also forwards BLOB vectors in addition to every other vector kind.
	Also = State("Also")
	// Only forwards BLOB vectors and suppresses every other vector kind.
	Only = State("Only")
)

// ErrInvalidState is returned when an enableBLOB frame names a value other
// than Never, Also, or Only.
var ErrInvalidState = errors.New("blobpolicy: invalid state")

// ParseState canonicalizes the chardata value of an enableBLOB frame.
func ParseState(s string) (State, error) {
	switch State(s) {
	case Never, Also, Only:
		return State(s), nil
	default:
		return "", ErrInvalidState
	}
}

type key struct {
	device string
	name   string // empty means "applies to the whole device"
}

// Policy holds the current BLOB-enable state per (device) or per
// (device, property), as set by Set. The gateway does not call Set when an
// enableBLOB frame passes through it, so an entry changes only when a
// caller sets it. A property-level entry overrides the device-level entry
// for that one property; absent entries default to Never.
//
// Policy is safe for concurrent use.
type Policy struct {
	mu       sync.RWMutex
	device   map[string]State
	property map[key]State
}

// New returns an empty Policy; every source defaults to Never.
func New() *Policy {
	return &Policy{
		device:   map[string]State{},
		property: map[key]State{},
	}
}

// Set applies state to device as a whole (name == "") or to one property of
// device (name != ""), per the scoping rule of the enableBLOB frame.
func (p *Policy) Set(device, name string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if name == "" {
		p.device[device] = state
		return
	}
	p.property[key{device: device, name: name}] = state
}

// StateFor returns the effective state for (device, name): the property
// override if one exists, else the device-level state, else Never.
func (p *Policy) StateFor(device, name string) State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.property[key{device: device, name: name}]; ok {
		return s
	}
	if s, ok := p.device[device]; ok {
		return s
	}
	return Never
}

// AllowBLOB reports whether a BLOB vector for (device, name) should be
// ingested/forwarded: true for Also and Only.
func (p *Policy) AllowBLOB(device, name string) bool {
	s := p.StateFor(device, name)
	return s == Also || s == Only
}

// AllowNonBLOB reports whether a non-BLOB vector for (device, name) should
// be ingested/forwarded: true for everything except Only.
func (p *Policy) AllowNonBLOB(device, name string) bool {
	return p.StateFor(device, name) != Only
}
