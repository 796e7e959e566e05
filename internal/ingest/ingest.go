// Package ingest is the C2-into-C3 glue: it applies a parsed server-side
// frame (def/set/message/delProperty) to the store, gates and persists
// BLOB payloads, and emits the from-indi alert for a complete frame. This
// is the bridge.Handler for every ingest direction (INDI/driver/MQTT ->
// store).
//
// Grounded on original_source/indiredis/fromindi.py: ParentProperty.write
// (sadd devices/properties, hmset attributes, sadd elements),
// TextVector/NumberVector/SwitchVector/LightVector/BLOBVector.update
// (mutate only the named elements), delProperty.write (cascade by
// presence/absence of a name), and log_received_per_device/Message.write
// for the device message log. BLOB payloads are decoded and handed to
// internal/blobsink rather than hashed into the store directly - a 1015-
// line original stores raw bytes in a Redis hash field, which does not
// scale past small test payloads and is exactly the persistence C9 names
// as a dedicated concern.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rickbassham/logging"

	"github.com/astrogateway/indi-gateway/internal/blobpolicy"
	"github.com/astrogateway/indi-gateway/internal/blobsink"
	"github.com/astrogateway/indi-gateway/internal/frame"
	"github.com/astrogateway/indi-gateway/internal/metrics"
	"github.com/astrogateway/indi-gateway/internal/store"
)

// Ingester turns parsed server-side frames into store mutations plus a
// from-indi alert, per device/property.
type Ingester struct {
	store   store.Store
	keys    store.Keys
	policy  *blobpolicy.Policy
	sink    *blobsink.Sink
	metrics *metrics.Registry
	log     logging.Logger

	// source identifies which upstream this ingester serves for BLOB
	// policy lookups (blobpolicy.Policy keys are per-device, shared by
	// every adapter talking about that device, so this is typically
	// unused — kept for symmetry with Source-scoped policy callers).
	source string
}

// New returns an Ingester. sink may be nil to skip BLOB persistence
// entirely (e.g. a client-only instance that only issues commands). keys
// must use the same Prefix as the Store, since LogSnapshot keys are built
// by the caller rather than namespaced internally. reg may be nil to skip
// metrics.
func New(s store.Store, keys store.Keys, policy *blobpolicy.Policy, sink *blobsink.Sink, reg *metrics.Registry, log logging.Logger, source string) *Ingester {
	return &Ingester{store: s, keys: keys, policy: policy, sink: sink, metrics: reg, log: log, source: source}
}

// Handle implements bridge.Handler: it applies raw (a complete, delimited
// frame) to the store and returns the from-indi alert bytes to publish, or
// ok=false if the frame produced no alert (a dropped set on an unknown
// property, BLOB-policy suppression, or an unrecognised/malformed frame).
func (in *Ingester) Handle(raw []byte) ([]byte, bool) {
	ctx := context.Background()
	tag, value, err := frame.Parse(raw)
	if err != nil {
		in.log.WithError(err).Warn("ingest: dropping unparsable frame")
		return nil, false
	}

	alert, err := in.apply(ctx, tag, value)
	if err != nil {
		in.log.WithError(err).WithField("tag", string(tag)).Warn("ingest: apply failed")
		return nil, false
	}
	if alert == "" {
		return nil, false
	}
	return []byte(alert), true
}

func (in *Ingester) apply(ctx context.Context, tag frame.Tag, value interface{}) (string, error) {
	switch v := value.(type) {
	case *frame.DefTextVector:
		return in.def(ctx, v.Device, v.Name, vectorAttrs(v.Label, v.Group, v.State, v.Perm, v.Timeout, v.Timestamp, v.Message, "Text", ""), defElements(v.Texts, func(e frame.DefText) (string, string) { return e.Name, e.Value }), tag)
	case *frame.DefNumberVector:
		return in.def(ctx, v.Device, v.Name, vectorAttrs(v.Label, v.Group, v.State, v.Perm, v.Timeout, v.Timestamp, v.Message, "Number", ""), defElements(v.Numbers, func(e frame.DefNumber) (string, string) { return e.Name, e.Value }), tag)
	case *frame.DefSwitchVector:
		return in.def(ctx, v.Device, v.Name, vectorAttrs(v.Label, v.Group, v.State, v.Perm, v.Timeout, v.Timestamp, v.Message, "Switch", string(v.Rule)), defElements(v.Switches, func(e frame.DefSwitch) (string, string) { return e.Name, e.Value }), tag)
	case *frame.DefLightVector:
		return in.def(ctx, v.Device, v.Name, vectorAttrs(v.Label, v.Group, v.State, "ro", 0, v.Timestamp, v.Message, "Light", ""), defElements(v.Lights, func(e frame.DefLight) (string, string) { return e.Name, e.Value }), tag)
	case *frame.DefBLOBVector:
		return in.defBLOB(ctx, v, tag)

	case *frame.SetTextVector:
		return in.set(ctx, v.Device, v.Name, v.State, v.Timestamp, v.Message, textElements(v.Texts), tag)
	case *frame.SetNumberVector:
		return in.set(ctx, v.Device, v.Name, v.State, v.Timestamp, v.Message, numberElements(v.Numbers), tag)
	case *frame.SetSwitchVector:
		return in.set(ctx, v.Device, v.Name, v.State, v.Timestamp, v.Message, switchElements(v.Switches), tag)
	case *frame.SetLightVector:
		return in.set(ctx, v.Device, v.Name, v.State, v.Timestamp, v.Message, lightElements(v.Lights), tag)
	case *frame.SetBLOBVector:
		return in.setBLOB(ctx, v, tag)

	case *frame.Message:
		return in.message(ctx, v.Device, v.Timestamp, v.Message)
	case *frame.DelProperty:
		return in.delProperty(ctx, v.Device, v.Name, v.Timestamp, v.Message)

	default:
		// Client->server frames (getProperties, enableBLOB, newXxxVector)
		// never arrive on an ingest pipeline; if one does, there is
		// nothing for the store to apply.
		return "", nil
	}
}

func vectorAttrs(label, group, state, perm string, timeout int, timestamp, message, kind, rule string) map[string]string {
	attrs := map[string]string{
		"label":   label,
		"group":   group,
		"state":   state,
		"perm":    perm,
		"timeout": itoa(timeout),
		"message": message,
		"kind":    kind,
	}
	if timestamp == "" {
		timestamp = nowISO()
	}
	attrs["timestamp"] = timestamp
	if rule != "" {
		attrs["rule"] = rule
	}
	return attrs
}

// defElements builds the element map of a defXxxVector, whose children use
// the Def* wire types rather than the One* types of a set.
func defElements[T any](items []T, nameValue func(T) (string, string)) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, e := range items {
		n, v := nameValue(e)
		out[n] = map[string]string{"name": n, "value": v}
	}
	return out
}

func textElements(items []frame.OneText) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, e := range items {
		out[e.Name] = map[string]string{"name": e.Name, "value": e.Value}
	}
	return out
}

func numberElements(items []frame.OneNumber) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, e := range items {
		out[e.Name] = map[string]string{"name": e.Name, "value": e.Value}
	}
	return out
}

func switchElements(items []frame.OneSwitch) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, e := range items {
		out[e.Name] = map[string]string{"name": e.Name, "value": e.Value}
	}
	return out
}

func lightElements(items []frame.OneLight) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, e := range items {
		out[e.Name] = map[string]string{"name": e.Name, "value": e.Value}
	}
	return out
}

// def installs or replaces a whole property vector: device/property
// membership, vector attributes, and every named element. Per spec.md
// §4.2, orphaned elements (present before, absent in this def) are
// deleted.
func (in *Ingester) def(ctx context.Context, device, name string, attrs map[string]string, elements map[string]map[string]string, tag frame.Tag) (string, error) {
	// defBLOBVector delegates here with tag == TagDefBLOBVector, which must
	// always pass: policy=Only forwards BLOB frames and suppresses
	// everything else (spec §4.5).
	if tag != frame.TagDefBLOBVector && in.policy != nil && !in.policy.AllowNonBLOB(device, name) {
		return "", nil
	}

	release := in.store.Lock(device, name)
	defer release()

	if err := in.store.AddDevice(ctx, device); err != nil {
		return "", err
	}
	if err := in.store.AddProperty(ctx, device, name); err != nil {
		return "", err
	}
	if err := in.store.SetAttributes(ctx, device, name, attrs); err != nil {
		return "", err
	}

	existing, err := in.store.ListElements(ctx, device, name)
	if err != nil {
		return "", err
	}
	keep := map[string]bool{}
	for elemName, fields := range elements {
		keep[elemName] = true
		if err := in.store.AddElement(ctx, device, name, elemName); err != nil {
			return "", err
		}
		if err := in.store.SetElement(ctx, device, name, elemName, fields); err != nil {
			return "", err
		}
	}
	for _, elemName := range existing {
		if !keep[elemName] {
			if err := in.store.RemoveElement(ctx, device, name, elemName); err != nil {
				return "", err
			}
		}
	}

	if err := in.logVectorSnapshot(ctx, device, name, attrs, elements, tag); err != nil {
		return "", err
	}

	return store.Alert(string(tag), name, device), nil
}

// set mutates only the named attrs/elements of an already-known property.
// A set referring to an unknown device/property is silently dropped per
// spec.md §4.2.
func (in *Ingester) set(ctx context.Context, device, name, state, timestamp, message string, elements map[string]map[string]string, tag frame.Tag) (string, error) {
	if in.policy != nil && !in.policy.AllowNonBLOB(device, name) {
		return "", nil
	}

	release := in.store.Lock(device, name)
	defer release()

	known, err := in.store.HasProperty(ctx, device, name)
	if err != nil {
		return "", err
	}
	if !known {
		return "", nil
	}

	attrs := map[string]string{}
	if state != "" {
		attrs["state"] = state
	}
	if message != "" {
		attrs["message"] = message
	}
	if timestamp == "" {
		timestamp = nowISO()
	}
	attrs["timestamp"] = timestamp
	if err := in.store.SetAttributes(ctx, device, name, attrs); err != nil {
		return "", err
	}

	for elemName, fields := range elements {
		if err := in.store.SetElement(ctx, device, name, elemName, fields); err != nil {
			return "", err
		}
	}

	if err := in.logVectorSnapshot(ctx, device, name, attrs, elements, tag); err != nil {
		return "", err
	}

	return store.Alert(string(tag), name, device), nil
}

// logVectorSnapshot records a def/set application onto C3's change-detected
// bounded logs (§4.3): the vector's attributes, its per-kind element log
// (textvector/numbervector/switchvector/lightvector/blobvector, keyed by
// tag), and, when the vector carries a non-empty message, that property's
// rolling message log (the PropertyMessages supplement).
func (in *Ingester) logVectorSnapshot(ctx context.Context, device, name string, attrs map[string]string, elements map[string]map[string]string, tag frame.Tag) error {
	timestamp := attrs["timestamp"]
	if timestamp == "" {
		timestamp = nowISO()
	}

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	if err := in.store.LogSnapshot(ctx, in.keys.LogData("attributes", name, device), timestamp, string(attrsJSON), store.DefaultLogLengths["attributes"]); err != nil {
		return err
	}

	if kind := vectorLogKind(tag); kind != "" {
		elementsJSON, err := json.Marshal(elements)
		if err != nil {
			return err
		}
		if err := in.store.LogSnapshot(ctx, in.keys.LogData(kind, name, device), timestamp, string(elementsJSON), store.DefaultLogLengths[kind]); err != nil {
			return err
		}
	}

	if message := attrs["message"]; message != "" {
		messageJSON, err := json.Marshal(message)
		if err != nil {
			return err
		}
		if err := in.store.LogSnapshot(ctx, in.keys.PropertyMessages(device, name), timestamp, string(messageJSON), store.DefaultLogLengths["messages"]); err != nil {
			return err
		}
	}

	return nil
}

// vectorLogKind maps a def/set tag to its DefaultLogLengths/LogData kind
// name, or "" for tags logVectorSnapshot never sees.
func vectorLogKind(tag frame.Tag) string {
	switch tag {
	case frame.TagDefTextVector, frame.TagSetTextVector:
		return "textvector"
	case frame.TagDefNumberVector, frame.TagSetNumberVector:
		return "numbervector"
	case frame.TagDefSwitchVector, frame.TagSetSwitchVector:
		return "switchvector"
	case frame.TagDefLightVector, frame.TagSetLightVector:
		return "lightvector"
	case frame.TagDefBLOBVector, frame.TagSetBLOBVector:
		return "blobvector"
	default:
		return ""
	}
}

func (in *Ingester) message(ctx context.Context, device, timestamp, text string) (string, error) {
	if timestamp == "" {
		timestamp = nowISO()
	}
	scope := store.SiteWide
	if device != "" {
		scope = device
	}
	if err := in.store.AppendMessage(ctx, scope, timestamp, text); err != nil {
		return "", err
	}
	return store.Alert("message", "", device), nil
}

// delProperty removes one property (name set) or cascades to the whole
// device (name empty), per spec.md §4.2.
func (in *Ingester) delProperty(ctx context.Context, device, name, _, _ string) (string, error) {
	if name == "" {
		release := in.store.Lock(device, store.SiteWide)
		defer release()
		if err := in.store.RemoveDevice(ctx, device); err != nil {
			return "", err
		}
		return store.Alert("delDevice", "", device), nil
	}

	release := in.store.Lock(device, name)
	defer release()
	if err := in.store.RemoveProperty(ctx, device, name); err != nil {
		return "", err
	}
	return store.Alert("delProperty", name, device), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05")
}

// defBLOB installs a defBLOBVector. defBLOB elements carry no payload (INDI
// sends definitions with empty bodies, spec §4.1), so there is nothing to
// hand to the sink yet - just the element membership and vector attrs.
func (in *Ingester) defBLOB(ctx context.Context, v *frame.DefBLOBVector, tag frame.Tag) (string, error) {
	attrs := vectorAttrs(v.Label, v.Group, v.State, v.Perm, v.Timeout, v.Timestamp, v.Message, "BLOB", "")
	elements := map[string]map[string]string{}
	for _, e := range v.Blobs {
		elements[e.Name] = map[string]string{"name": e.Name, "label": e.Label}
	}
	return in.def(ctx, v.Device, v.Name, attrs, elements, tag)
}

// setBLOB applies a setBLOBVector: for each element whose payload survives
// BLOB policy, the base64 payload is written to internal/blobsink and the
// element's store record is updated with the resulting path/format/size -
// not the payload itself. The decoded bytes live on disk and the store
// records only the path to them; a Redis hash field holding every image
// inline does not scale, which is exactly what C9 exists to avoid (see
// package doc).
func (in *Ingester) setBLOB(ctx context.Context, v *frame.SetBLOBVector, tag frame.Tag) (string, error) {
	if in.policy != nil && !in.policy.AllowBLOB(v.Device, v.Name) {
		if in.metrics != nil {
			in.metrics.BLOBPolicyDecisions.WithLabelValues(v.Device, "suppressed").Inc()
		}
		return "", nil
	}
	if in.metrics != nil {
		in.metrics.BLOBPolicyDecisions.WithLabelValues(v.Device, "forwarded").Inc()
	}

	release := in.store.Lock(v.Device, v.Name)
	defer release()

	known, err := in.store.HasProperty(ctx, v.Device, v.Name)
	if err != nil {
		return "", err
	}
	if !known {
		return "", nil
	}

	timestamp := v.Timestamp
	if timestamp == "" {
		timestamp = nowISO()
	}

	attrs := map[string]string{"timestamp": timestamp}
	if v.State != "" {
		attrs["state"] = v.State
	}
	if v.Message != "" {
		attrs["message"] = v.Message
	}
	if err := in.store.SetAttributes(ctx, v.Device, v.Name, attrs); err != nil {
		return "", err
	}

	elements := map[string]map[string]string{}
	for _, b := range v.Blobs {
		fields := map[string]string{
			"name":   b.Name,
			"format": b.Format,
			"size":   itoa(b.Size),
		}
		if in.sink != nil {
			path, err := in.sink.Write(v.Device, v.Name, b.Name, timestamp, b.Format, b.Value)
			if err != nil {
				in.log.WithError(err).WithField("element", b.Name).Warn("ingest: blob sink write failed, continuing")
			} else {
				fields["path"] = path
			}
		}
		if err := in.store.SetElement(ctx, v.Device, v.Name, b.Name, fields); err != nil {
			return "", err
		}
		elements[b.Name] = fields
	}

	if err := in.logVectorSnapshot(ctx, v.Device, v.Name, attrs, elements, tag); err != nil {
		return "", err
	}

	return store.Alert(string(tag), v.Name, v.Device), nil
}
