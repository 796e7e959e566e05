package numfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Sexagesimal_OverflowNormalization(t *testing.T) {
	// spec §8: "10:70:75" normalizes to degrees=11 minutes=11 seconds=15,
	// padded to width 9.
	assert.Equal(t, " 11:11:15", Format("%9.6m", "10:70:75"))
}

func Test_Sexagesimal_Selectors(t *testing.T) {
	assert.Equal(t, "10:30", Format("%5.3m", "10:30:00"))
	assert.Equal(t, "10:30.5", Format("%7.5m", "10:30:30"))
	assert.Equal(t, "10:30:15", Format("%8.6m", "10:30:15"))
	assert.Equal(t, "10:30:15.5", Format("%10.8m", "10:30:15.5"))
	assert.Equal(t, "10:30:15.50", Format("%11.9m", "10:30:15.5"))
}

func Test_Sexagesimal_Negative(t *testing.T) {
	assert.Equal(t, "-10:30:00", Format("%9.6m", "-10:30:00"))
}

func Test_Printf_PlainDecimal(t *testing.T) {
	assert.Equal(t, "3.50", Format("%.2f", "3.5"))
}

func Test_Printf_Sexagesimal_Input(t *testing.T) {
	// 1 + 30/60 + 0/3600 == 1.5
	assert.Equal(t, "1.50", Format("%.2f", "1:30:00"))
}

func Test_MissingSeconds_DefaultsToZero(t *testing.T) {
	assert.Equal(t, "10:30:00", Format("%8.6m", "10:30"))
}

func Test_SemicolonSeparator(t *testing.T) {
	assert.Equal(t, "10:30:00", Format("%8.6m", "10;30;00"))
}
