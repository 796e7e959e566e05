package redisstore

import (
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// newTestStore builds a Store against a client with no live server. Lock
// is the only method exercised here that needs no network round trip; the
// rest of Store's behavior is grounded on go-redis's documented command
// semantics and the pure helpers covered by internal/store's own tests.
func newTestStore() *Store {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	return New(client, "indi:")
}

func Test_Lock_SameKeySerializes(t *testing.T) {
	s := newTestStore()

	unlock := s.Lock("Scope", "CONNECTION")

	acquired := make(chan struct{})
	go func() {
		release := s.Lock("Scope", "CONNECTION")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock should have blocked while the first is held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after release")
	}
}

func Test_Lock_DifferentKeysDoNotBlock(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		release := s.Lock("Scope", "CONNECTION")
		defer release()
	}()
	go func() {
		defer wg.Done()
		release := s.Lock("Camera", "CCD1")
		defer release()
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("locks on distinct (device, property) keys should not contend")
	}
}

func Test_New_NamespacesKeysWithPrefix(t *testing.T) {
	s := newTestStore()
	assert.Equal(t, "indi:devices", s.keys.Devices())
}
