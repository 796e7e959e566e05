package transport

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/rickbassham/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Listen_AcceptsAndFramesConnections(t *testing.T) {
	log := logging.NewLogger(os.Stdout, logging.JSONFormatter{}, logging.LogLevelInfo)

	l, err := Listen(log, "127.0.0.1:0", 4)
	require.NoError(t, err)
	defer l.Close()

	addr := l.ln.Addr().String()

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte(`<getProperties version="1.7"/>`))
	require.NoError(t, err)

	select {
	case duplex := <-l.Accepted():
		select {
		case frm := <-duplex.Recv():
			assert.Equal(t, `<getProperties version="1.7"/>`, string(frm))
		case <-time.After(time.Second):
			t.Fatal("expected a framed message from the accepted connection")
		}
	case <-time.After(time.Second):
		t.Fatal("expected an accepted connection")
	}
}
