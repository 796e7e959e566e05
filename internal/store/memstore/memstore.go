// Package memstore is an in-memory store.Store implementation used by
// tests elsewhere in this module, the same role afero.NewMemMapFs() plays
// for the teacher's filesystem-touching tests: a fast, dependency-free
// double that satisfies the real interface instead of a real Redis server.
package memstore

import (
	"context"
	"sync"

	"github.com/astrogateway/indi-gateway/internal/store"
)

type propertyKey struct{ device, property string }
type elementKey struct{ device, property, element string }

// Store is a sync.Mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	devices    map[string]bool
	properties map[string]map[string]bool
	attributes map[propertyKey]map[string]string
	elements   map[propertyKey]map[string]bool
	elemAttrs  map[elementKey]map[string]string
	messages   map[string]string
	logs       map[string][]string
	lists      map[string][]string
	hashes     map[string]map[string]string

	subs map[string][]chan []byte

	locks map[string]*sync.Mutex
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		devices:    map[string]bool{},
		properties: map[string]map[string]bool{},
		attributes: map[propertyKey]map[string]string{},
		elements:   map[propertyKey]map[string]bool{},
		elemAttrs:  map[elementKey]map[string]string{},
		messages:   map[string]string{},
		logs:       map[string][]string{},
		lists:      map[string][]string{},
		hashes:     map[string]map[string]string{},
		subs:       map[string][]chan []byte{},
		locks:      map[string]*sync.Mutex{},
	}
}

func (s *Store) AddDevice(_ context.Context, device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[device] = true
	return nil
}

func (s *Store) ListDevices(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.devices))
	for d := range s.devices {
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) HasDevice(_ context.Context, device string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[device], nil
}

func (s *Store) RemoveDevice(_ context.Context, device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for property := range s.properties[device] {
		s.removePropertyLocked(device, property)
	}
	delete(s.properties, device)
	delete(s.devices, device)
	delete(s.messages, "device:"+device)
	return nil
}

func (s *Store) AddProperty(_ context.Context, device, property string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.properties[device] == nil {
		s.properties[device] = map[string]bool{}
	}
	s.properties[device][property] = true
	return nil
}

func (s *Store) ListProperties(_ context.Context, device string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.properties[device]))
	for p := range s.properties[device] {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) HasProperty(_ context.Context, device, property string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.properties[device][property], nil
}

func (s *Store) RemoveProperty(_ context.Context, device, property string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePropertyLocked(device, property)
	return nil
}

func (s *Store) removePropertyLocked(device, property string) {
	key := propertyKey{device, property}
	for element := range s.elements[key] {
		delete(s.elemAttrs, elementKey{device, property, element})
	}
	delete(s.elements, key)
	delete(s.attributes, key)
	delete(s.properties[device], property)
}

func (s *Store) SetAttributes(_ context.Context, device, property string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := propertyKey{device, property}
	if s.attributes[key] == nil {
		s.attributes[key] = map[string]string{}
	}
	for k, v := range attrs {
		s.attributes[key][k] = v
	}
	return nil
}

func (s *Store) GetAttributes(_ context.Context, device, property string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.attributes[propertyKey{device, property}]), nil
}

func (s *Store) AddElement(_ context.Context, device, property, element string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := propertyKey{device, property}
	if s.elements[key] == nil {
		s.elements[key] = map[string]bool{}
	}
	s.elements[key][element] = true
	return nil
}

func (s *Store) ListElements(_ context.Context, device, property string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := propertyKey{device, property}
	out := make([]string, 0, len(s.elements[key]))
	for e := range s.elements[key] {
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) SetElement(_ context.Context, device, property, element string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := elementKey{device, property, element}
	if s.elemAttrs[key] == nil {
		s.elemAttrs[key] = map[string]string{}
	}
	for k, v := range fields {
		s.elemAttrs[key][k] = v
	}
	return nil
}

func (s *Store) GetElement(_ context.Context, device, property, element string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.elemAttrs[elementKey{device, property, element}]), nil
}

func (s *Store) RemoveElement(_ context.Context, device, property, element string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := propertyKey{device, property}
	delete(s.elements[key], element)
	delete(s.elemAttrs, elementKey{device, property, element})
	return nil
}

func (s *Store) AppendMessage(_ context.Context, scope, timestamp, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "site"
	if scope != store.SiteWide {
		key = "device:" + scope
	}
	s.messages[key] = store.FormatEntry(timestamp, text)
	return nil
}

func (s *Store) LogSnapshot(_ context.Context, key, timestamp, jsonValue string, maxLen int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var head string
	if len(s.logs[key]) > 0 {
		head = s.logs[key][0]
	}
	if !store.ChangedEntry(head, jsonValue) {
		return nil
	}
	entries := append([]string{store.FormatEntry(timestamp, jsonValue)}, s.logs[key]...)
	if len(entries) > maxLen {
		entries = entries[:maxLen]
	}
	s.logs[key] = entries
	return nil
}

func (s *Store) Publish(_ context.Context, channel string, payload []byte) error {
	s.mu.Lock()
	subs := append([]chan []byte(nil), s.subs[channel]...)
	s.mu.Unlock()

	for _, ch := range subs {
		ch <- payload
	}
	return nil
}

type subscription struct {
	ch   chan []byte
	stop func()
}

func (sub *subscription) Messages() <-chan []byte { return sub.ch }
func (sub *subscription) Close() error {
	sub.stop()
	return nil
}

func (s *Store) Subscribe(_ context.Context, channel string) (store.Subscription, error) {
	ch := make(chan []byte, 16)

	s.mu.Lock()
	s.subs[channel] = append(s.subs[channel], ch)
	s.mu.Unlock()

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		peers := s.subs[channel]
		for i, c := range peers {
			if c == ch {
				s.subs[channel] = append(peers[:i], peers[i+1:]...)
				break
			}
		}
	}

	return &subscription{ch: ch, stop: stop}, nil
}

func (s *Store) ListRaw(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[key]...), nil
}

func (s *Store) HashRaw(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.hashes[key]), nil
}

func (s *Store) DeleteRaw(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.lists, key)
		delete(s.hashes, key)
	}
	return nil
}

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

// PushList and SetHash let tests seed the raw list/hash keys the indirect
// command encoding reads (ListRaw/HashRaw), which have no domain-shaped
// setter of their own.
func (s *Store) PushList(key string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], values...)
}

func (s *Store) SetHash(key string, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[key] = copyMap(fields)
}

// Logs returns the current entries for a LogSnapshot key, most recent
// first - the read-side counterpart to PushList/SetHash for tests that
// assert on bounded-log output.
func (s *Store) Logs(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs[key]...)
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
