package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_MQTTClient_CommsFalseDropsSendSilently(t *testing.T) {
	m := &MQTTClient{
		comms: false,
		done:  make(chan struct{}),
	}

	err := m.Send([]byte(`<getProperties version="1.7"/>`))
	assert.NoError(t, err, "Send must drop silently rather than block or error when comms is disabled")
}
