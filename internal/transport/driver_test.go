package transport

import (
	"os"
	"testing"
	"time"

	"github.com/rickbassham/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StartDriver_InjectsInitialGetProperties(t *testing.T) {
	log := logging.NewLogger(os.Stdout, logging.JSONFormatter{}, logging.LogLevelInfo)

	// "cat" echoes stdin back to stdout, standing in for a driver
	// executable that simply loops back whatever the gateway sends it -
	// enough to observe the adapter's own injected getProperties frame.
	d, err := StartDriver(log, "cat", nil, 4)
	require.NoError(t, err)
	defer d.Close()

	select {
	case frm := <-d.Recv():
		assert.Equal(t, `<getProperties version="1.7"/>`, string(frm))
	case <-time.After(2 * time.Second):
		t.Fatal("expected the injected getProperties frame to loop back")
	}

	assert.NotEmpty(t, d.ID)
	assert.NotNil(t, d.Policy)
}
