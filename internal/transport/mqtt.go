package transport

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rickbassham/logging"
)

// qos2 is used for every MQTT subscribe/publish, per spec.md §4.6.
const qos2 = byte(2)

// publishWait bounds how long Send waits for a broker ack before giving up;
// the bounded deque upstream of the bridge is the real backpressure valve,
// this is a last-resort guard against a wedged broker connection.
const publishWait = 5 * time.Second

// MQTTClient is the C6 MQTT adapter: subscribes to an inbound topic at
// connect time, publishes outbound frames with an ack wait, and gates
// publishing on the comms flag (spec.md §4.6: "comms flag gates
// publishing: when false, outbound messages are dropped").
type MQTTClient struct {
	client   mqtt.Client
	outTopic string
	comms    bool
	log      logging.Logger

	recv chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// DialMQTT connects to broker, subscribes to inTopic with QoS 2, and
// returns a Duplex publishing to outTopic. comms gates Send: when false,
// Send is a silent no-op rather than blocking or erroring.
func DialMQTT(log logging.Logger, broker, clientID, inTopic, outTopic string, comms bool, bufferSize int) (*MQTTClient, error) {
	m := &MQTTClient{
		outTopic: outTopic,
		comms:    comms,
		log:      log,
		recv:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if inTopic == "" {
				return
			}
			if token := c.Subscribe(inTopic, qos2, m.handleMessage); token.Wait() && token.Error() != nil {
				log.WithField("topic", inTopic).WithError(token.Error()).Warn("mqtt: subscribe failed")
			}
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	m.client = client

	return m, nil
}

func (m *MQTTClient) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	select {
	case m.recv <- msg.Payload():
	case <-m.done:
	}
}

func (m *MQTTClient) Recv() <-chan []byte   { return m.recv }
func (m *MQTTClient) Done() <-chan struct{} { return m.done }

// Send publishes frame to the outbound topic with QoS 2, waiting up to
// publishWait for the broker's ack. When comms is false the frame is
// dropped without error, per the backpressure philosophy in spec.md §4.6.
func (m *MQTTClient) Send(frame []byte) error {
	if !m.comms {
		return nil
	}

	token := m.client.Publish(m.outTopic, qos2, false, frame)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("mqtt: publish to %s: %w", m.outTopic, ErrPublishTimeout)
	}
	return token.Error()
}

// Close disconnects from the broker and closes Done. The Recv channel is
// left open, and a lost broker connection closes neither (the paho client
// reconnects on its own).
func (m *MQTTClient) Close() error {
	m.closeOnce.Do(func() {
		m.client.Disconnect(250)
		close(m.done)
	})
	return nil
}
