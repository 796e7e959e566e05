package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSwitchVector = `<defSwitchVector device="Camera" name="Binning" rule="OneOfMany" state="Ok" perm="rw" timeout="0" label="Binning">
   <defSwitch name="One" label="1:1">Off</defSwitch>
   <defSwitch name="Two" label="2:1">On</defSwitch>
</defSwitchVector>`

func Test_Framer_SingleChunk(t *testing.T) {
	f := New()
	frames := f.Feed([]byte(sampleSwitchVector))
	require.Len(t, frames, 1)
	assert.Equal(t, sampleSwitchVector, string(frames[0]))
}

func Test_Framer_ChunkInvariance(t *testing.T) {
	full := []byte(sampleSwitchVector + `<getProperties version="1.7"/>` + sampleSwitchVector)

	reference := New().Feed(full)
	require.Len(t, reference, 3)

	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		f := New()
		var got [][]byte
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			got = append(got, f.Feed(full[i:end])...)
		}
		require.Len(t, got, len(reference), "chunkSize=%d", chunkSize)
		for i := range reference {
			assert.Equal(t, string(reference[i]), string(got[i]), "chunkSize=%d frame=%d", chunkSize, i)
		}
	}
}

func Test_Framer_SelfClosingTag(t *testing.T) {
	f := New()
	frames := f.Feed([]byte(`<getProperties version="1.7"/>`))
	require.Len(t, frames, 1)
	assert.Equal(t, `<getProperties version="1.7"/>`, string(frames[0]))
}

func Test_Framer_DiscardsUnrecognisedNoise(t *testing.T) {
	f := New()
	frames := f.Feed([]byte(`<!-- a comment --><notreal attr="x"/>` + `<getProperties version="1.7"/>`))
	require.Len(t, frames, 1)
	assert.Equal(t, `<getProperties version="1.7"/>`, string(frames[0]))
}

func Test_Framer_LargeBlobWithoutDelimiterIsAcceptedAsOneChunk(t *testing.T) {
	f := New()
	header := []byte(`<setBLOBVector device="Cam" name="CCD1"><oneBLOB name="img" size="1" format=".fits">`)
	big := bytes.Repeat([]byte("A"), 40*1024)

	frames := f.Feed(header)
	assert.Empty(t, frames)

	frames = f.Feed(big)
	require.Len(t, frames, 1, "oversized undelimited payload should be flushed at the safety threshold")
}

func Test_Framer_LeadingWhitespaceStripped(t *testing.T) {
	f := New()
	frames := f.Feed([]byte("   \n\t<getProperties version=\"1.7\"/>"))
	require.Len(t, frames, 1)
	assert.Equal(t, `<getProperties version="1.7"/>`, string(frames[0]))
}
