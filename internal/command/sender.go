package command

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/astrogateway/indi-gateway/internal/frame"
	"github.com/astrogateway/indi-gateway/internal/store"
	"github.com/rickbassham/logging"
)

// newVectorTags is the set of to-indi tags that trigger Busy-before-
// transmit, matching toindi.py's SenderLoop._handle dispatch.
var newVectorTags = map[frame.Tag]bool{
	frame.TagNewTextVector:   true,
	frame.TagNewNumberVector: true,
	frame.TagNewSwitchVector: true,
	frame.TagNewBLOBVector:   true,
}

// Sender reads from the to-indi channel and forwards composed frames to a
// Transmitter (anything with a Send(frame []byte) error method, which
// internal/transport.Duplex satisfies), grounded on
// original_source/indiredis/toindi.py's SenderLoop.
type Sender struct {
	store store.Store
	out   Transmitter
	log   logging.Logger
}

// Transmitter is the minimal surface Sender needs from a transport.Duplex.
type Transmitter interface {
	Send(frame []byte) error
}

// NewSender returns a Sender that forwards decoded to-indi payloads to out.
func NewSender(s store.Store, out Transmitter, log logging.Logger) *Sender {
	return &Sender{store: s, out: out, log: log}
}

// Run subscribes to channel and processes messages until ctx is cancelled
// or the subscription closes.
func (s *Sender) Run(ctx context.Context, channel string) error {
	sub, err := s.store.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("command: subscribe %s: %w", channel, err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			if raw, ok := s.Handle(payload); ok {
				if err := s.out.Send(raw); err != nil {
					s.log.WithError(err).Warn("command: send to-indi frame")
				}
			}
		}
	}
}

// Handle resolves one to-indi payload (direct or indirect encoding) into
// wire bytes, setting Busy as a side effect for a newXxxVector command, and
// reports ok=false if the payload could not be resolved. It has the same
// shape as internal/bridge.Handler, so a Sender can serve as the redis->
// upstream direction of a Bridge without a separate Subscribe loop of its
// own (the bridge's own side adapter for the store supplies the payloads).
func (s *Sender) Handle(payload []byte) ([]byte, bool) {
	ctx := context.Background()
	raw, tag, device, name, err := s.resolve(ctx, payload)
	if err != nil {
		s.log.WithError(err).Warn("command: dropping to-indi message")
		return nil, false
	}

	if newVectorTags[tag] {
		if err := s.setBusy(ctx, device, name); err != nil {
			s.log.WithError(err).Warn("command: set busy")
		}
	}

	return raw, true
}

// resolve turns a to-indi payload into wire bytes plus the tag/device/name
// needed for Busy tracking, decoding either the direct (raw XML) or
// indirect ("<cmd>:<stringkey>") encoding.
func (s *Sender) resolve(ctx context.Context, payload []byte) (raw []byte, tag frame.Tag, device, name string, err error) {
	if IsDirect(payload) {
		tag, value, err := frame.Parse(payload)
		if err != nil {
			return nil, "", "", "", fmt.Errorf("command: parse direct payload: %w", err)
		}
		device, name = deviceAndName(value)
		return payload, tag, device, name, nil
	}
	return s.resolveIndirect(ctx, payload)
}

// resolveIndirect decodes "<cmd>:<stringkey>", where stringkey names a hash
// of vector-level attributes (device, name) and a list of per-element hash
// keys (name, value, and format for BLOBs). The keys are deleted from the
// store once consumed; they exist only to carry one command's arguments
// across the publish boundary.
func (s *Sender) resolveIndirect(ctx context.Context, payload []byte) (raw []byte, tag frame.Tag, device, name string, err error) {
	cmd, key, ok := strings.Cut(string(payload), ":")
	if !ok {
		return nil, "", "", "", fmt.Errorf("command: malformed indirect payload %q", payload)
	}
	tag = frame.Tag(cmd)

	attrs, err := s.store.HashRaw(ctx, key)
	if err != nil {
		return nil, "", "", "", fmt.Errorf("command: load %s: %w", key, err)
	}
	device, name = attrs["device"], attrs["name"]

	elementKeys, err := s.store.ListRaw(ctx, key+":elements")
	if err != nil {
		return nil, "", "", "", fmt.Errorf("command: load %s elements: %w", key, err)
	}

	defer func() {
		_ = s.store.DeleteRaw(ctx, append([]string{key, key + ":elements"}, elementKeys...)...)
	}()

	switch tag {
	case frame.TagGetProperties:
		raw, err = frame.Serialize(&frame.GetProperties{Version: "1.7", Device: device, Name: name})
	case frame.TagEnableBLOB:
		raw, err = frame.Serialize(&frame.EnableBLOB{Device: device, Name: name, Value: attrs["value"]})
	case frame.TagNewTextVector:
		raw, err = s.buildTextVector(ctx, device, name, elementKeys)
	case frame.TagNewNumberVector:
		raw, err = s.buildNumberVector(ctx, device, name, elementKeys)
	case frame.TagNewSwitchVector:
		raw, err = s.buildSwitchVector(ctx, device, name, elementKeys)
	case frame.TagNewBLOBVector:
		raw, err = s.buildBLOBVector(ctx, device, name, elementKeys)
	default:
		return nil, "", "", "", fmt.Errorf("command: unrecognised indirect command %q", cmd)
	}
	if err != nil {
		return nil, "", "", "", err
	}
	return raw, tag, device, name, nil
}

func (s *Sender) buildTextVector(ctx context.Context, device, name string, elementKeys []string) ([]byte, error) {
	vec := &frame.NewTextVector{Device: device, Name: name}
	for _, ek := range elementKeys {
		elem, err := s.store.HashRaw(ctx, ek)
		if err != nil {
			return nil, fmt.Errorf("command: load element %s: %w", ek, err)
		}
		vec.Texts = append(vec.Texts, frame.OneText{Name: elem["name"], Value: elem["value"]})
	}
	return frame.Serialize(vec)
}

func (s *Sender) buildNumberVector(ctx context.Context, device, name string, elementKeys []string) ([]byte, error) {
	vec := &frame.NewNumberVector{Device: device, Name: name}
	for _, ek := range elementKeys {
		elem, err := s.store.HashRaw(ctx, ek)
		if err != nil {
			return nil, fmt.Errorf("command: load element %s: %w", ek, err)
		}
		vec.Numbers = append(vec.Numbers, frame.OneNumber{Name: elem["name"], Value: elem["value"]})
	}
	return frame.Serialize(vec)
}

func (s *Sender) buildSwitchVector(ctx context.Context, device, name string, elementKeys []string) ([]byte, error) {
	vec := &frame.NewSwitchVector{Device: device, Name: name}
	for _, ek := range elementKeys {
		elem, err := s.store.HashRaw(ctx, ek)
		if err != nil {
			return nil, fmt.Errorf("command: load element %s: %w", ek, err)
		}
		vec.Switches = append(vec.Switches, frame.OneSwitch{Name: elem["name"], Value: elem["value"]})
	}
	return frame.Serialize(vec)
}

func (s *Sender) buildBLOBVector(ctx context.Context, device, name string, elementKeys []string) ([]byte, error) {
	vec := &frame.NewBLOBVector{Device: device, Name: name}
	for _, ek := range elementKeys {
		elem, err := s.store.HashRaw(ctx, ek)
		if err != nil {
			return nil, fmt.Errorf("command: load element %s: %w", ek, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(elem["value"])
		if err != nil {
			return nil, fmt.Errorf("command: decode element %s payload: %w", ek, err)
		}
		vec.Blobs = append(vec.Blobs, frame.OneBLOB{
			Name:   elem["name"],
			Size:   len(decoded),
			Format: elem["format"],
			Value:  elem["value"],
		})
	}
	return frame.Serialize(vec)
}

// setBusy mirrors toindi.py's SenderLoop._set_busy: only a known
// device/property is marked Busy, and no alert is published.
func (s *Sender) setBusy(ctx context.Context, device, name string) error {
	knownDevice, err := s.store.HasDevice(ctx, device)
	if err != nil {
		return fmt.Errorf("command: check device: %w", err)
	}
	if !knownDevice {
		return nil
	}
	knownProperty, err := s.store.HasProperty(ctx, device, name)
	if err != nil {
		return fmt.Errorf("command: check property: %w", err)
	}
	if !knownProperty {
		return nil
	}
	return s.store.SetAttributes(ctx, device, name, map[string]string{"state": "Busy"})
}

// deviceAndName extracts the device/name attributes common to every
// client->server vector frame, for Busy tracking of directly-published
// commands.
func deviceAndName(value interface{}) (device, name string) {
	switch v := value.(type) {
	case *frame.NewTextVector:
		return v.Device, v.Name
	case *frame.NewNumberVector:
		return v.Device, v.Name
	case *frame.NewSwitchVector:
		return v.Device, v.Name
	case *frame.NewBLOBVector:
		return v.Device, v.Name
	case *frame.GetProperties:
		return v.Device, v.Name
	case *frame.EnableBLOB:
		return v.Device, v.Name
	default:
		return "", ""
	}
}
