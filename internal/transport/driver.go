package transport

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"

	"github.com/google/uuid"
	"github.com/rickbassham/logging"

	"github.com/astrogateway/indi-gateway/internal/blobpolicy"
)

// initialGetProperties is injected into a freshly spawned driver's sender
// queue so it declares its properties without the bridge having to ask.
const initialGetProperties = `<getProperties version="1.7"/>`

// driverConn adapts a subprocess's stdin/stdout pipes to io.ReadWriteCloser
// so it can reuse connDuplex's framing/reader/writer goroutines.
type driverConn struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser
}

func (d *driverConn) Read(p []byte) (int, error)  { return d.out.Read(p) }
func (d *driverConn) Write(p []byte) (int, error) { return d.in.Write(p) }
func (d *driverConn) Close() error {
	d.in.Close()
	d.out.Close()
	return d.cmd.Process.Kill()
}

// DriverProcess is the C6 driver-subprocess adapter: it spawns an
// executable, frames its stdout, feeds its stdin from the sender queue,
// line-logs stderr, and tracks its own BLOB policy, per spec.md §4.6.
type DriverProcess struct {
	Duplex

	// ID correlates this instance's log lines across restarts.
	ID string
	// Policy is this driver's own BLOB enable/disable state (C5); each
	// driver is a distinct BLOB source.
	Policy *blobpolicy.Policy

	path string
	args []string
}

// StartDriver spawns path with args, wires its pipes into a Duplex, and
// injects an initial getProperties request.
func StartDriver(log logging.Logger, path string, args []string, bufferSize int) (*DriverProcess, error) {
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stderr pipe: %w", err)
	}

	id := uuid.New().String()
	driverLog := log.WithField("driver", path).WithField("instance", id)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start %s: %w", path, err)
	}

	conn := &driverConn{cmd: cmd, in: stdin, out: stdout}
	duplex := newConnDuplex(driverLog, conn, bufferSize)

	go logStderr(driverLog, stderr)

	d := &DriverProcess{
		Duplex: duplex,
		ID:     id,
		Policy: blobpolicy.New(),
		path:   path,
		args:   args,
	}

	if err := d.Send([]byte(initialGetProperties)); err != nil {
		driverLog.WithError(err).Warn("could not queue initial getProperties")
	}

	return d, nil
}

func logStderr(log logging.Logger, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.WithField("stderr", scanner.Text()).Warn("driver stderr")
	}
}
