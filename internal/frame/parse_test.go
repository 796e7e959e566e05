package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse_DefSwitchVector(t *testing.T) {
	tag, value, err := Parse([]byte(sampleSwitchVector))
	require.NoError(t, err)
	assert.Equal(t, TagDefSwitchVector, tag)

	v, ok := value.(*DefSwitchVector)
	require.True(t, ok)
	assert.Equal(t, "Camera", v.Device)
	assert.Equal(t, "Binning", v.Name)
	assert.Equal(t, "OneOfMany", v.Rule)
	require.Len(t, v.Switches, 2)
	assert.Equal(t, "One", v.Switches[0].Name)
	assert.Equal(t, "Off", v.Switches[0].Value)
}

func Test_Parse_MissingRequiredAttribute(t *testing.T) {
	_, _, err := Parse([]byte(`<defTextVector name="PORT" perm="rw"><defText name="v">/dev/ttyUSB0</defText></defTextVector>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredAttribute)
}

func Test_RoundTrip_NewSwitchVector(t *testing.T) {
	original := &NewSwitchVector{
		Device:    "Scope",
		Name:      "CONNECTION",
		Timestamp: "2025-01-01T00:00:00",
		Switches: []OneSwitch{
			{Name: "CONNECT", Value: "On"},
			{Name: "DISCONNECT", Value: "Off"},
		},
	}

	raw, err := Serialize(original)
	require.NoError(t, err)

	tag, value, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TagNewSwitchVector, tag)

	got, ok := value.(*NewSwitchVector)
	require.True(t, ok)
	assert.Equal(t, original.Device, got.Device)
	assert.Equal(t, original.Name, got.Name)
	assert.Equal(t, original.Switches, got.Switches)
}

func Test_RoundTrip_GetProperties(t *testing.T) {
	original := &GetProperties{Version: "1.7"}
	raw, err := Serialize(original)
	require.NoError(t, err)
	assert.Equal(t, `<getProperties version="1.7"></getProperties>`, string(raw))

	tag, value, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TagGetProperties, tag)
	got := value.(*GetProperties)
	assert.Equal(t, "1.7", got.Version)
}

func Test_Parse_DelPropertyWholeDevice(t *testing.T) {
	tag, value, err := Parse([]byte(`<delProperty device="Scope" timestamp="2025-01-01T00:00:00"/>`))
	require.NoError(t, err)
	assert.Equal(t, TagDelProperty, tag)
	got := value.(*DelProperty)
	assert.Equal(t, "Scope", got.Device)
	assert.Empty(t, got.Name)
}
