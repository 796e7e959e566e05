package command

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rickbassham/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrogateway/indi-gateway/internal/store/memstore"
)

type fakeTransmitter struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeTransmitter) Send(frm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), frm...))
	return nil
}

func (f *fakeTransmitter) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestLogger() logging.Logger {
	return logging.NewLogger(os.Stdout, logging.JSONFormatter{}, logging.LogLevelInfo)
}

func Test_Sender_ForwardsDirectPayloadAndSetsBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ms := memstore.New()
	require.NoError(t, ms.AddDevice(ctx, "Scope"))
	require.NoError(t, ms.AddProperty(ctx, "Scope", "CONNECTION"))

	out := &fakeTransmitter{}
	sender := NewSender(ms, out, newTestLogger())

	go sender.Run(ctx, ToIndiChannel)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, ms.Publish(ctx, ToIndiChannel, []byte(`<newSwitchVector device="Scope" name="CONNECTION"><oneSwitch name="CONNECT">On</oneSwitch></newSwitchVector>`)))

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, time.Millisecond)
	assert.Contains(t, string(out.last()), "newSwitchVector")

	attrs, err := ms.GetAttributes(ctx, "Scope", "CONNECTION")
	require.NoError(t, err)
	assert.Equal(t, "Busy", attrs["state"])
}

func Test_Sender_GetPropertiesDoesNotSetBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ms := memstore.New()
	out := &fakeTransmitter{}
	sender := NewSender(ms, out, newTestLogger())

	go sender.Run(ctx, ToIndiChannel)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, ms.Publish(ctx, ToIndiChannel, []byte(`<getProperties version="1.7"/>`)))

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, time.Millisecond)
	assert.Contains(t, string(out.last()), "getProperties")
}

func Test_Sender_ResolvesIndirectSwitchVectorAndCleansUpKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ms := memstore.New()
	require.NoError(t, ms.AddDevice(ctx, "Scope"))
	require.NoError(t, ms.AddProperty(ctx, "Scope", "CONNECTION"))

	ms.SetHash("cmd:42", map[string]string{"device": "Scope", "name": "CONNECTION"})
	ms.PushList("cmd:42:elements", "cmd:42:e:0")
	ms.SetHash("cmd:42:e:0", map[string]string{"name": "CONNECT", "value": "On"})

	out := &fakeTransmitter{}
	sender := NewSender(ms, out, newTestLogger())

	go sender.Run(ctx, ToIndiChannel)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, ms.Publish(ctx, ToIndiChannel, []byte("newSwitchVector:cmd:42")))

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, time.Millisecond)
	sent := string(out.last())
	assert.Contains(t, sent, "newSwitchVector")
	assert.Contains(t, sent, `name="CONNECT"`)
	assert.Contains(t, sent, "On")

	attrs, err := ms.GetAttributes(ctx, "Scope", "CONNECTION")
	require.NoError(t, err)
	assert.Equal(t, "Busy", attrs["state"])

	remaining, err := ms.HashRaw(ctx, "cmd:42")
	require.NoError(t, err)
	assert.Empty(t, remaining, "resolved indirect keys must be deleted")
}

func Test_Sender_UnknownDeviceNotMarkedBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ms := memstore.New()
	out := &fakeTransmitter{}
	sender := NewSender(ms, out, newTestLogger())

	go sender.Run(ctx, ToIndiChannel)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, ms.Publish(ctx, ToIndiChannel, []byte(`<newTextVector device="Ghost" name="UNKNOWN"><oneText name="X">y</oneText></newTextVector>`)))

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, time.Millisecond)

	attrs, err := ms.GetAttributes(ctx, "Ghost", "UNKNOWN")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}
