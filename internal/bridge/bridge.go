// Package bridge is the orchestrator C7 names: it composes two transport
// adapters via two independent unidirectional pipelines, each backed by a
// bounded, drop-oldest deque, a worker pool running the caller's
// ingest/forward logic per frame, and a reconnect policy per adapter. New
// code (the teacher is a single INDI client, not a multi-transport
// bridge), but built from the teacher's reader/writer-goroutine-plus-
// channel idiom and the six topologies original_source pairs up
// (d_to_r/i_to_r/m_to_r/m_to_p).
package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rickbassham/logging"

	"github.com/astrogateway/indi-gateway/internal/metrics"
	"github.com/astrogateway/indi-gateway/internal/transport"
)

// deckCapacity is the fixed deque size spec.md §4.7 specifies.
const deckCapacity = 5

// workers is the size of the worker pool each pipeline uses to keep
// CPU-bound ingest/forward logic off the reader goroutine.
const workers = 4

// defaultReconnectBackoff is the retry delay for adapters with no adapter-
// specific policy (TCP per spec.md §4.6; MQTT relies on the client
// library's own AutoReconnect instead and does not use this).
const defaultReconnectBackoff = 2 * time.Second

// Handler processes one complete frame received from a side of the bridge.
// It returns the bytes to forward to the other side and whether to forward
// at all (false drops the frame, e.g. BLOB policy gating or a silently-
// dropped set on an unknown device/property).
type Handler func(frame []byte) (forward []byte, ok bool)

// Reconnector produces a fresh Duplex after its predecessor has
// disconnected. A nil Reconnector means that side is not reconnected; the
// bridge just stops that pipeline.
type Reconnector func(ctx context.Context) (transport.Duplex, error)

// Side is one endpoint of a Bridge.
type Side struct {
	Name      string
	Duplex    transport.Duplex
	Reconnect Reconnector
	Backoff   time.Duration // defaults to defaultReconnectBackoff
}

// endpoint holds the currently-live Duplex for one side, so that a
// reconnect discovered while running one direction (e.g. B's reconnect,
// found while draining B->A) is immediately visible to the other
// direction's sender (A->B, sending into B).
type endpoint struct {
	current atomic.Value // transport.Duplex
}

func newEndpoint(d transport.Duplex) *endpoint {
	e := &endpoint{}
	e.current.Store(d)
	return e
}

func (e *endpoint) get() transport.Duplex   { return e.current.Load().(transport.Duplex) }
func (e *endpoint) set(d transport.Duplex)  { e.current.Store(d) }

// Bridge wires A and B together via two Handler-driven pipelines: frames
// read from A are passed through HandleAtoB and forwarded to B, and
// symmetrically for B to A.
type Bridge struct {
	log logging.Logger

	a, b Side
	epA, epB *endpoint

	handleAtoB Handler
	handleBtoA Handler

	deckAtoB *deque
	deckBtoA *deque

	metrics *metrics.Registry
}

// New constructs a Bridge. Call Run to start both pipelines; Run blocks
// until ctx is canceled. metrics may be nil, in which case no counters are
// recorded.
func New(log logging.Logger, a, b Side, handleAtoB, handleBtoA Handler, reg *metrics.Registry) *Bridge {
	if a.Backoff == 0 {
		a.Backoff = defaultReconnectBackoff
	}
	if b.Backoff == 0 {
		b.Backoff = defaultReconnectBackoff
	}
	return &Bridge{
		log:        log,
		a:          a,
		b:          b,
		epA:        newEndpoint(a.Duplex),
		epB:        newEndpoint(b.Duplex),
		handleAtoB: handleAtoB,
		handleBtoA: handleBtoA,
		deckAtoB:   newDeque(deckCapacity),
		deckBtoA:   newDeque(deckCapacity),
		metrics:    reg,
	}
}

// Run starts both directional pipelines and blocks until ctx is canceled.
// When a side's Recv channel closes, that side's reader reconnects per its
// Reconnector; a side without one stops reading. Closing an adapter does
// not cancel the other direction or either sender loop: only canceling ctx
// stops them.
func (br *Bridge) Run(ctx context.Context) {
	done := make(chan struct{}, 2)

	go func() {
		br.runDirection(ctx, br.a, br.b.Name, br.epA, br.epB, br.handleAtoB, br.deckAtoB)
		done <- struct{}{}
	}()
	go func() {
		br.runDirection(ctx, br.b, br.a.Name, br.epB, br.epA, br.handleBtoA, br.deckBtoA)
		done <- struct{}{}
	}()

	<-ctx.Done()
	<-done
	<-done
}

// runDirection reads frames from src (via epSrc, the endpoint that may be
// swapped out by reconnects), runs handle on a worker pool, pushes
// accepted output onto deck, and drains deck into epDst.get().Send in a
// sender goroutine. On src disconnecting, it reconnects per src.Reconnect
// (if set), updates epSrc, and resumes; otherwise it returns.
func (br *Bridge) runDirection(ctx context.Context, src Side, dstName string, epSrc, epDst *endpoint, handle Handler, deck *deque) {
	senderDone := make(chan struct{})
	go br.sendLoop(ctx, dstName, epDst, deck, senderDone)
	go br.reportDequeDepth(ctx, src.Name, deck)
	defer func() {
		<-senderDone
	}()

	for {
		br.ingestLoop(ctx, src.Name, epSrc.get(), handle, deck)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if src.Reconnect == nil {
			return
		}

		next, err := br.reconnect(ctx, src)
		if err != nil {
			return
		}
		epSrc.set(next)
	}
}

func (br *Bridge) reconnect(ctx context.Context, side Side) (transport.Duplex, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(side.Backoff):
		}

		d, err := side.Reconnect(ctx)
		if err != nil {
			br.log.WithField("side", side.Name).WithError(err).Warn("bridge: reconnect failed, retrying")
			continue
		}
		return d, nil
	}
}

// ingestLoop reads frames from src until it disconnects or ctx is done,
// running handle on a bounded worker pool so XML parsing never blocks the
// socket read.
func (br *Bridge) ingestLoop(ctx context.Context, srcName string, src transport.Duplex, handle Handler, deck *deque) {
	sem := make(chan struct{}, workers)

	for {
		select {
		case <-ctx.Done():
			return
		case frm, ok := <-src.Recv():
			if !ok {
				return
			}
			if br.metrics != nil {
				br.metrics.FramesIngested.WithLabelValues(srcName).Inc()
			}
			sem <- struct{}{}
			go func(frm []byte) {
				defer func() { <-sem }()
				if forward, ok := handle(frm); ok {
					deck.Push(forward)
				}
			}(frm)
		}
	}
}

// reportDequeDepth periodically samples deck's depth and cumulative drop
// count into the gauge/counter pair, since those are only readable by
// polling the deque rather than on every push.
func (br *Bridge) reportDequeDepth(ctx context.Context, sideName string, deck *deque) {
	if br.metrics == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastDropped int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			br.metrics.DequeDepth.WithLabelValues(sideName).Set(float64(deck.Len()))
			if dropped := deck.Dropped(); dropped > lastDropped {
				br.metrics.FramesDropped.WithLabelValues(sideName).Add(float64(dropped - lastDropped))
				lastDropped = dropped
			}
		}
	}
}

func (br *Bridge) sendLoop(ctx context.Context, dstName string, epDst *endpoint, deck *deque, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deck.notify:
			for {
				frm, ok := deck.Pop()
				if !ok {
					break
				}
				if err := epDst.get().Send(frm); err != nil {
					br.log.WithField("side", dstName).WithError(err).Warn("bridge: send failed")
					continue
				}
				if br.metrics != nil {
					br.metrics.FramesForwarded.WithLabelValues(dstName).Inc()
				}
			}
		}
	}
}
