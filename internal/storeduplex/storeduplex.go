// Package storeduplex adapts a store.Store's pub/sub channels to
// transport.Duplex, so internal/bridge's generic two-sided pipeline can
// pair a store-backed side with any upstream adapter (TCP, driver
// subprocess, MQTT) using the same machinery - worker pool, bounded
// deque, metrics - it already uses for every other side.
//
// Grounded on the duplex shape internal/transport's adapters share
// (Recv/Send/Done/Close); original_source has no equivalent, since
// indiredis's scripts talk to redis directly rather than through a
// generalized duplex abstraction.
package storeduplex

import (
	"context"
	"sync"

	"github.com/astrogateway/indi-gateway/internal/store"
)

// Duplex delivers payloads published to subChannel as Recv() frames, and
// publishes Send() frames to pubChannel.
type Duplex struct {
	store      store.Store
	pubChannel string
	sub        store.Subscription

	recv chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// New subscribes to subChannel and returns a Duplex publishing Send calls
// to pubChannel.
func New(ctx context.Context, st store.Store, subChannel, pubChannel string) (*Duplex, error) {
	sub, err := st.Subscribe(ctx, subChannel)
	if err != nil {
		return nil, err
	}

	d := &Duplex{
		store:      st,
		pubChannel: pubChannel,
		sub:        sub,
		recv:       make(chan []byte, 16),
		done:       make(chan struct{}),
	}
	go d.pump(ctx)
	return d, nil
}

func (d *Duplex) pump(ctx context.Context) {
	defer close(d.recv)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case payload, ok := <-d.sub.Messages():
			if !ok {
				return
			}
			select {
			case d.recv <- payload:
			case <-d.done:
				return
			}
		}
	}
}

func (d *Duplex) Recv() <-chan []byte   { return d.recv }
func (d *Duplex) Done() <-chan struct{} { return d.done }

// Send publishes frame to pubChannel. The store's Publish is used directly
// rather than going through command.Issuer, since by the time a Handler
// hands bytes to this Duplex (an ingest alert, or a resolved to-indi
// frame) no further translation is needed.
func (d *Duplex) Send(frame []byte) error {
	return d.store.Publish(context.Background(), d.pubChannel, frame)
}

func (d *Duplex) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		_ = d.sub.Close()
	})
	return nil
}
