// Package redisstore is the Redis-backed implementation of store.Store,
// grounded on original_source/indiredis/tools.py's key layout (hashes for
// attributes, sets for membership, lists for bounded logs, pub/sub for
// alerts) and built against github.com/redis/go-redis/v9, the library
// SPEC_FULL.md's DOMAIN STACK wires in for the gateway's storage layer.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/astrogateway/indi-gateway/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store against a *redis.Client.
type Store struct {
	client *redis.Client
	keys   store.Keys

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Store that namespaces every key under prefix (pass "" for
// no namespacing).
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		keys:   store.Keys{Prefix: prefix},
		locks:  map[string]*sync.Mutex{},
	}
}

func (s *Store) AddDevice(ctx context.Context, device string) error {
	return s.client.SAdd(ctx, s.keys.Devices(), device).Err()
}

func (s *Store) ListDevices(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.keys.Devices()).Result()
}

func (s *Store) HasDevice(ctx context.Context, device string) (bool, error) {
	return s.client.SIsMember(ctx, s.keys.Devices(), device).Result()
}

func (s *Store) RemoveDevice(ctx context.Context, device string) error {
	properties, err := s.ListProperties(ctx, device)
	if err != nil {
		return fmt.Errorf("redisstore: list properties for cascade: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, property := range properties {
		s.queueRemoveProperty(pipe, device, property)
	}
	pipe.Del(ctx, s.keys.Properties(device))
	pipe.Del(ctx, s.keys.DeviceMessages(device))
	pipe.SRem(ctx, s.keys.Devices(), device)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) AddProperty(ctx context.Context, device, property string) error {
	return s.client.SAdd(ctx, s.keys.Properties(device), property).Err()
}

func (s *Store) ListProperties(ctx context.Context, device string) ([]string, error) {
	return s.client.SMembers(ctx, s.keys.Properties(device)).Result()
}

func (s *Store) HasProperty(ctx context.Context, device, property string) (bool, error) {
	return s.client.SIsMember(ctx, s.keys.Properties(device), property).Result()
}

func (s *Store) RemoveProperty(ctx context.Context, device, property string) error {
	pipe := s.client.TxPipeline()
	s.queueRemoveProperty(pipe, device, property)
	_, err := pipe.Exec(ctx)
	return err
}

// queueRemoveProperty appends the commands to delete one property's
// elements, attributes, and membership entry to an in-flight pipeline,
// without executing it - callers batch multiple properties (RemoveDevice)
// or just one (RemoveProperty) into a single TxPipeline.Exec.
func (s *Store) queueRemoveProperty(pipe redis.Pipeliner, device, property string) {
	ctx := context.Background()
	elements, err := s.client.SMembers(ctx, s.keys.Elements(device, property)).Result()
	if err == nil {
		for _, element := range elements {
			pipe.Del(ctx, s.keys.ElementAttributes(device, property, element))
		}
	}
	pipe.Del(ctx, s.keys.Elements(device, property))
	pipe.Del(ctx, s.keys.Attributes(device, property))
	pipe.SRem(ctx, s.keys.Properties(device), property)
}

func (s *Store) SetAttributes(ctx context.Context, device, property string, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		values[k] = v
	}
	return s.client.HSet(ctx, s.keys.Attributes(device, property), values).Err()
}

func (s *Store) GetAttributes(ctx context.Context, device, property string) (map[string]string, error) {
	return s.client.HGetAll(ctx, s.keys.Attributes(device, property)).Result()
}

func (s *Store) AddElement(ctx context.Context, device, property, element string) error {
	return s.client.SAdd(ctx, s.keys.Elements(device, property), element).Err()
}

func (s *Store) ListElements(ctx context.Context, device, property string) ([]string, error) {
	return s.client.SMembers(ctx, s.keys.Elements(device, property)).Result()
}

func (s *Store) SetElement(ctx context.Context, device, property, element string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return s.client.HSet(ctx, s.keys.ElementAttributes(device, property, element), values).Err()
}

func (s *Store) GetElement(ctx context.Context, device, property, element string) (map[string]string, error) {
	return s.client.HGetAll(ctx, s.keys.ElementAttributes(device, property, element)).Result()
}

func (s *Store) RemoveElement(ctx context.Context, device, property, element string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keys.ElementAttributes(device, property, element))
	pipe.SRem(ctx, s.keys.Elements(device, property), element)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) AppendMessage(ctx context.Context, scope, timestamp, text string) error {
	key := s.keys.Messages()
	if scope != store.SiteWide {
		key = s.keys.DeviceMessages(scope)
	}
	return s.client.Set(ctx, key, store.FormatEntry(timestamp, text), 0).Err()
}

func (s *Store) LogSnapshot(ctx context.Context, key, timestamp, jsonValue string, maxLen int) error {
	head, err := s.client.LIndex(ctx, key, 0).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if !store.ChangedEntry(head, jsonValue) {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, store.FormatEntry(timestamp, jsonValue))
	pipe.LTrim(ctx, key, 0, int64(maxLen-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) ListRaw(ctx context.Context, key string) ([]string, error) {
	return s.client.LRange(ctx, key, 0, -1).Result()
}

func (s *Store) HashRaw(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) DeleteRaw(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

func (s *Store) Subscribe(ctx context.Context, channel string) (store.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: subscribe %s: %w", channel, err)
	}
	return &subscription{pubsub: pubsub, out: toPayloadChan(pubsub)}, nil
}

func toPayloadChan(pubsub *redis.PubSub) <-chan []byte {
	in := pubsub.Channel()
	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range in {
			out <- []byte(msg.Payload)
		}
	}()
	return out
}

type subscription struct {
	pubsub *redis.PubSub
	out    <-chan []byte
}

func (sub *subscription) Messages() <-chan []byte { return sub.out }
func (sub *subscription) Close() error            { return sub.pubsub.Close() }

// Lock returns a release function for the per-(device,property) critical
// section spec §5 requires; it implements store.Store.Lock with a
// process-local sync.Mutex shard map, since go-redis has no cross-command
// critical-section primitive beyond WATCH/TxPipeline (which only protect a
// single round trip, not the multi-step def/set/del sequences this guards).
func (s *Store) Lock(device, property string) func() {
	key := device + "\x00" + property

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
