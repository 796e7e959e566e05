package blobpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultIsNever(t *testing.T) {
	p := New()
	assert.False(t, p.AllowBLOB("Scope", "CCD1"))
	assert.True(t, p.AllowNonBLOB("Scope", "CCD1"))
}

func Test_DeviceLevelAlso(t *testing.T) {
	p := New()
	p.Set("Scope", "", Also)
	assert.True(t, p.AllowBLOB("Scope", "CCD1"))
	assert.True(t, p.AllowNonBLOB("Scope", "CCD1"))
}

func Test_DeviceLevelOnlySuppressesNonBLOB(t *testing.T) {
	p := New()
	p.Set("Scope", "", Only)
	assert.True(t, p.AllowBLOB("Scope", "CCD1"))
	assert.False(t, p.AllowNonBLOB("Scope", "CCD1"))
}

func Test_PropertyOverrideWinsOverDevice(t *testing.T) {
	p := New()
	p.Set("Scope", "", Only)
	p.Set("Scope", "CCD1", Never)
	assert.False(t, p.AllowBLOB("Scope", "CCD1"))
	assert.True(t, p.AllowNonBLOB("Scope", "CCD1"))

	// A different property on the same device still inherits the device
	// level state.
	assert.True(t, p.AllowBLOB("Scope", "CCD2"))
	assert.False(t, p.AllowNonBLOB("Scope", "CCD2"))
}

func Test_ParseState(t *testing.T) {
	s, err := ParseState("Also")
	require.NoError(t, err)
	assert.Equal(t, Also, s)

	_, err = ParseState("Sometimes")
	require.ErrorIs(t, err, ErrInvalidState)
}
