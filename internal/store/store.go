// Package store declares the abstract mapping-layer interface C3 of the
// gateway: devices, properties, attributes, elements, messages, and the
// change-detected bounded logs, plus the pub/sub primitives the bridge and
// command issuer build on. internal/store/redisstore provides the concrete
// Redis-backed implementation.
package store

import "context"

// SiteWide is the scope argument to AppendMessage for a message that isn't
// attributed to any one device.
const SiteWide = ""

// DefaultLogLengths is the maxLen used for each change-detected log kind
// when the caller doesn't override it. Number vectors get a longer buffer
// because values stream continuously.
var DefaultLogLengths = map[string]int{
	"devices":       50,
	"properties":    5,
	"attributes":    5,
	"elements":      5,
	"messages":      5,
	"textvector":    5,
	"numbervector":  50,
	"switchvector":  5,
	"lightvector":   5,
	"blobvector":    5,
}

// Message is one entry in a message log: an ISO-8601 timestamp and text.
type Message struct {
	Timestamp string
	Text      string
}

// Subscription delivers payloads published to a channel until Close is
// called.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Store is the abstract mapping layer every bridge, command issuer, and
// BLOB policy consults. Implementations must make hash/set/list operations
// atomic individually; multi-key property mutations are best-effort
// (pipelined), and a failed partial mutation is expected to be repaired by
// the next ingest from the same source (spec §5).
type Store interface {
	AddDevice(ctx context.Context, device string) error
	ListDevices(ctx context.Context) ([]string, error)
	HasDevice(ctx context.Context, device string) (bool, error)
	RemoveDevice(ctx context.Context, device string) error

	AddProperty(ctx context.Context, device, property string) error
	ListProperties(ctx context.Context, device string) ([]string, error)
	HasProperty(ctx context.Context, device, property string) (bool, error)
	RemoveProperty(ctx context.Context, device, property string) error

	SetAttributes(ctx context.Context, device, property string, attrs map[string]string) error
	GetAttributes(ctx context.Context, device, property string) (map[string]string, error)

	AddElement(ctx context.Context, device, property, element string) error
	ListElements(ctx context.Context, device, property string) ([]string, error)
	SetElement(ctx context.Context, device, property, element string, fields map[string]string) error
	GetElement(ctx context.Context, device, property, element string) (map[string]string, error)
	RemoveElement(ctx context.Context, device, property, element string) error

	// AppendMessage records text under scope (SiteWide, or a device name)
	// as the single most-recent "<timestamp> <text>" entry.
	AppendMessage(ctx context.Context, scope, timestamp, text string) error

	// LogSnapshot is the change-detected bounded log primitive (§4.3): a
	// no-op if jsonValue matches the current head of key's list, otherwise
	// prepends "<timestamp> <jsonValue>" and truncates to maxLen.
	LogSnapshot(ctx context.Context, key, timestamp, jsonValue string, maxLen int) error

	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// ListRaw, HashRaw and DeleteRaw give the command issuer (C8) access to
	// caller-chosen keys for the indirect command encoding's argument list
	// and element-key hashes, which aren't shaped like the domain keys
	// above.
	ListRaw(ctx context.Context, key string) ([]string, error)
	HashRaw(ctx context.Context, key string) (map[string]string, error)
	DeleteRaw(ctx context.Context, keys ...string) error

	// Lock serializes access to one (device, property) across concurrent
	// ingests, per the per-(device,property) critical section spec §5
	// calls for. The returned func releases the lock.
	Lock(device, property string) func()
}
