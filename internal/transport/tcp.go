package transport

import (
	"io"
	"net"

	"github.com/rickbassham/logging"
)

// Dialer allows the TCP client to be tested without a real socket,
// mirroring the teacher's Dialer/NetworkDialer split in indiclient.go.
type Dialer interface {
	Dial(network, address string) (io.ReadWriteCloser, error)
}

// NetworkDialer is the production Dialer, backed by net.Dial.
type NetworkDialer struct{}

func (NetworkDialer) Dial(network, address string) (io.ReadWriteCloser, error) {
	return net.Dial(network, address)
}

// DialTCP connects to address over network ("tcp") via dialer and returns a
// Duplex framing the connection. This is the adapter used both for the raw
// INDI server connection and, with a different dialer, in tests.
func DialTCP(log logging.Logger, dialer Dialer, network, address string, bufferSize int) (Duplex, error) {
	conn, err := dialer.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return newConnDuplex(log, conn, bufferSize), nil
}
