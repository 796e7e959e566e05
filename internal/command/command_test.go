package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrogateway/indi-gateway/internal/blobpolicy"
	"github.com/astrogateway/indi-gateway/internal/store/memstore"
)

func Test_Issuer_NewSwitchVector_SetsBusyOnlyWhenKnown(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	issuer := NewIssuer(ms, ToIndiChannel)

	sub, err := ms.Subscribe(ctx, ToIndiChannel)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, issuer.NewSwitchVector(ctx, "Scope", "CONNECTION", map[string]string{"CONNECT": "On"}))

	raw := <-sub.Messages()
	assert.Contains(t, string(raw), "newSwitchVector")
	assert.Contains(t, string(raw), `device="Scope"`)

	attrs, err := ms.GetAttributes(ctx, "Scope", "CONNECTION")
	require.NoError(t, err)
	assert.Empty(t, attrs["state"], "unknown property must not be marked Busy")

	require.NoError(t, ms.AddDevice(ctx, "Scope"))
	require.NoError(t, ms.AddProperty(ctx, "Scope", "CONNECTION"))
	require.NoError(t, issuer.NewSwitchVector(ctx, "Scope", "CONNECTION", map[string]string{"CONNECT": "On"}))
	<-sub.Messages()

	attrs, err = ms.GetAttributes(ctx, "Scope", "CONNECTION")
	require.NoError(t, err)
	assert.Equal(t, "Busy", attrs["state"])
}

func Test_Issuer_GetProperties_DoesNotSetBusy(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	issuer := NewIssuer(ms, ToIndiChannel)

	sub, err := ms.Subscribe(ctx, ToIndiChannel)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, issuer.GetProperties(ctx, "Scope", ""))
	raw := <-sub.Messages()
	assert.Contains(t, string(raw), "getProperties")
}

func Test_Issuer_EnableBLOB(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	issuer := NewIssuer(ms, ToIndiChannel)

	sub, err := ms.Subscribe(ctx, ToIndiChannel)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, issuer.EnableBLOB(ctx, "Cam", "CCD1", blobpolicy.Only))
	raw := <-sub.Messages()
	assert.Contains(t, string(raw), "enableBLOB")
	assert.Contains(t, string(raw), "Only")
}

func Test_IsDirect(t *testing.T) {
	assert.True(t, IsDirect([]byte(`<getProperties version="1.7"/>`)))
	assert.True(t, IsDirect([]byte("  \n<newSwitchVector/>")))
	assert.False(t, IsDirect([]byte("newSwitchVector:cmd:123")))
}
