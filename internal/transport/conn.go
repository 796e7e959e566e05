package transport

import (
	"io"
	"sync"

	"github.com/rickbassham/logging"

	"github.com/astrogateway/indi-gateway/internal/frame"
)

// connDuplex implements Duplex over any io.ReadWriteCloser, framing the
// read side with internal/frame and running reader/writer goroutines, the
// same shape as the teacher's startRead/startWrite pair in indiclient.go
// generalized from a fixed server connection to any stream (an outbound
// dial or an accepted inbound connection).
type connDuplex struct {
	log  logging.Logger
	conn io.ReadWriteCloser

	recv chan []byte
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newConnDuplex(log logging.Logger, conn io.ReadWriteCloser, bufferSize int) *connDuplex {
	c := &connDuplex{
		log:  log,
		conn: conn,
		recv: make(chan []byte, bufferSize),
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	c.startRead()
	c.startWrite()
	return c
}

func (c *connDuplex) Recv() <-chan []byte     { return c.recv }
func (c *connDuplex) Done() <-chan struct{}   { return c.done }

func (c *connDuplex) Send(f []byte) error {
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *connDuplex) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *connDuplex) startRead() {
	go func() {
		defer close(c.recv)
		defer c.Close()

		f := frame.New()
		buf := make([]byte, 32*1024)

		for {
			n, err := c.conn.Read(buf)
			if n > 0 {
				for _, frm := range f.Feed(buf[:n]) {
					select {
					case c.recv <- frm:
					case <-c.done:
						return
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					c.log.WithError(err).Warn("transport: read error")
				}
				return
			}
		}
	}()
}

func (c *connDuplex) startWrite() {
	go func() {
		for {
			select {
			case frm, ok := <-c.send:
				if !ok {
					return
				}
				if _, err := c.conn.Write(frm); err != nil {
					c.log.WithError(err).Warn("transport: write error")
					c.Close()
					return
				}
			case <-c.done:
				return
			}
		}
	}()
}
