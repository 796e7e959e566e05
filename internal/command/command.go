// Package command is the issuer C8 names: helpers that compose INDI
// command frames and publish them on the "to-indi" channel, plus the
// sender-side decoder that turns a published payload (direct XML or an
// indirect "<cmd>:<key>" reference) back into wire bytes.
//
// Grounded on original_source/indiredis/toindi.py's SenderLoop (direct
// publish + Busy-before-transmit via a hash hset, never a setXxxVector
// alert) and sendtools.py's getProperties helper; generalized to also
// support the indirect store-backed argument encoding spec.md §4.8 calls
// for, which the original source doesn't implement directly but the spec
// requires for compatibility with existing clients.
package command

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/astrogateway/indi-gateway/internal/blobpolicy"
	"github.com/astrogateway/indi-gateway/internal/frame"
	"github.com/astrogateway/indi-gateway/internal/store"
)

// ToIndiChannel is the default pub/sub channel name for inbound commands
// (spec.md §6), overridable by the caller at construction time.
const ToIndiChannel = "to-indi"

// Issuer composes and publishes commands on the to-indi channel.
type Issuer struct {
	store   store.Store
	channel string
}

// NewIssuer returns an Issuer publishing on channel via s.
func NewIssuer(s store.Store, channel string) *Issuer {
	return &Issuer{store: s, channel: channel}
}

func (i *Issuer) publish(ctx context.Context, raw []byte) error {
	return i.store.Publish(ctx, i.channel, raw)
}

// GetProperties issues a getProperties request, device/name optional.
func (i *Issuer) GetProperties(ctx context.Context, device, name string) error {
	raw, err := frame.Serialize(&frame.GetProperties{Version: "1.7", Device: device, Name: name})
	if err != nil {
		return fmt.Errorf("command: getProperties: %w", err)
	}
	return i.publish(ctx, raw)
}

// EnableBLOB issues an enableBLOB request. This is not a "new" vector, so
// it does not set Busy.
func (i *Issuer) EnableBLOB(ctx context.Context, device, name string, state blobpolicy.State) error {
	raw, err := frame.Serialize(&frame.EnableBLOB{Device: device, Name: name, Value: string(state)})
	if err != nil {
		return fmt.Errorf("command: enableBLOB: %w", err)
	}
	return i.publish(ctx, raw)
}

// NewTextVector sends a newTextVector and sets the property Busy.
func (i *Issuer) NewTextVector(ctx context.Context, device, name string, values map[string]string) error {
	vec := &frame.NewTextVector{Device: device, Name: name}
	for elem, val := range values {
		vec.Texts = append(vec.Texts, frame.OneText{Name: elem, Value: val})
	}
	return i.sendNew(ctx, device, name, vec)
}

// NewNumberVector sends a newNumberVector and sets the property Busy.
func (i *Issuer) NewNumberVector(ctx context.Context, device, name string, values map[string]string) error {
	vec := &frame.NewNumberVector{Device: device, Name: name}
	for elem, val := range values {
		vec.Numbers = append(vec.Numbers, frame.OneNumber{Name: elem, Value: val})
	}
	return i.sendNew(ctx, device, name, vec)
}

// NewSwitchVector sends a newSwitchVector and sets the property Busy.
// values maps element name to "On" or "Off".
func (i *Issuer) NewSwitchVector(ctx context.Context, device, name string, values map[string]string) error {
	vec := &frame.NewSwitchVector{Device: device, Name: name}
	for elem, val := range values {
		vec.Switches = append(vec.Switches, frame.OneSwitch{Name: elem, Value: val})
	}
	return i.sendNew(ctx, device, name, vec)
}

// NewBLOBVector base64-encodes each payload and sends a newBLOBVector,
// setting the property Busy.
func (i *Issuer) NewBLOBVector(ctx context.Context, device, name string, blobs map[string][]byte, formats map[string]string) error {
	vec := &frame.NewBLOBVector{Device: device, Name: name}
	for elem, data := range blobs {
		vec.Blobs = append(vec.Blobs, frame.OneBLOB{
			Name:   elem,
			Size:   len(data),
			Format: formats[elem],
			Value:  base64.StdEncoding.EncodeToString(data),
		})
	}
	return i.sendNew(ctx, device, name, vec)
}

func (i *Issuer) sendNew(ctx context.Context, device, name string, vec interface{}) error {
	raw, err := frame.Serialize(vec)
	if err != nil {
		return fmt.Errorf("command: serialize %T: %w", vec, err)
	}
	if err := i.setBusy(ctx, device, name); err != nil {
		return err
	}
	return i.publish(ctx, raw)
}

// setBusy marks (device, name) Busy in the store without publishing a
// setXxxVector alert, reflecting locally-initiated intent rather than
// server confirmation (spec.md §4.8). A command for an unknown
// device/property is sent anyway (the remote may legitimately not have
// declared it to this gateway yet) but there is nothing to mark Busy.
func (i *Issuer) setBusy(ctx context.Context, device, name string) error {
	known, err := i.store.HasProperty(ctx, device, name)
	if err != nil {
		return fmt.Errorf("command: check property: %w", err)
	}
	if !known {
		return nil
	}
	return i.store.SetAttributes(ctx, device, name, map[string]string{"state": "Busy"})
}

// IsDirect reports whether a to-indi payload is the direct encoding (raw
// XML, starting with '<' after leading whitespace) rather than the
// indirect "<cmd>:<key>" encoding.
func IsDirect(payload []byte) bool {
	trimmed := strings.TrimLeft(string(payload), " \t\r\n")
	return strings.HasPrefix(trimmed, "<")
}
