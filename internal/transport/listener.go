package transport

import (
	"fmt"
	"net"

	"github.com/rickbassham/logging"
)

// Listener accepts TCP clients on a configured port; each accepted
// connection becomes its own Duplex, delivered on Accepted. Per spec.md
// §4.6 each connection's inbound stream is framed independently. Listener
// itself feeds nothing to a connection's Send; cmd/indi-gateway bridges
// each accepted Duplex to an MQTT connection of its own.
type Listener struct {
	log      logging.Logger
	ln       net.Listener
	accepted chan Duplex
	done     chan struct{}
}

// Listen starts accepting connections on address ("host:port" or ":port").
func Listen(log logging.Logger, address string, bufferSize int) (*Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", address, err)
	}

	l := &Listener{
		log:      log,
		ln:       ln,
		accepted: make(chan Duplex),
		done:     make(chan struct{}),
	}
	go l.acceptLoop(bufferSize)
	return l, nil
}

// Accepted delivers one Duplex per accepted connection.
func (l *Listener) Accepted() <-chan Duplex { return l.accepted }

// Close stops accepting new connections. Already-accepted Duplexes are
// unaffected and must be closed individually by the caller.
func (l *Listener) Close() error {
	close(l.done)
	return l.ln.Close()
}

func (l *Listener) acceptLoop(bufferSize int) {
	defer close(l.accepted)
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				l.log.WithError(err).Warn("transport: accept error")
				return
			}
		}

		duplex := newConnDuplex(l.log.WithField("remote", conn.RemoteAddr().String()), conn, bufferSize)

		select {
		case l.accepted <- duplex:
		case <-l.done:
			duplex.Close()
			return
		}
	}
}
