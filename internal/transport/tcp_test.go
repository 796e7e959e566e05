package transport

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/rickbassham/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDialer struct {
	mock.Mock
}

func (m *mockDialer) Dial(network, address string) (io.ReadWriteCloser, error) {
	args := m.Called(network, address)
	c := args.Get(0)
	err := args.Error(1)
	if c == nil {
		return nil, err
	}
	return c.(io.ReadWriteCloser), err
}

// pipeConn joins a pipe pair into a single io.ReadWriteCloser, so the test
// can write "server" bytes in on one end and read "client" bytes out the
// other, the same role the teacher's mockConnection plays.
type pipeConn struct {
	r *io.PipeReader
	w io.WriteCloser
}

func (p *pipeConn) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeConn) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeConn) Close() error {
	p.r.Close()
	return p.w.Close()
}

func Test_DialTCP_FramesIncomingBytes(t *testing.T) {
	clientSide, serverSide := io.Pipe()
	conn := &pipeConn{r: clientSide, w: nopWriteCloser{io.Discard}}

	dialer := &mockDialer{}
	dialer.On("Dial", "tcp", "localhost:7624").Return(conn, nil)

	log := logging.NewLogger(os.Stdout, logging.JSONFormatter{}, logging.LogLevelInfo)
	duplex, err := DialTCP(log, dialer, "tcp", "localhost:7624", 4)
	require.NoError(t, err)

	go func() {
		serverSide.Write([]byte(`<getProperties version="1.7"/>`))
		serverSide.Close()
	}()

	select {
	case frm := <-duplex.Recv():
		assert.Equal(t, `<getProperties version="1.7"/>`, string(frm))
	case <-time.After(time.Second):
		t.Fatal("expected a frame from the dialed connection")
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
