package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse_DefaultsAndPositional(t *testing.T) {
	cfg, err := Parse([]string{"/var/blobs"})
	require.NoError(t, err)
	assert.Equal(t, "/var/blobs", cfg.BLOBFolder)
	assert.Equal(t, "7624", cfg.IPort)
	assert.Equal(t, "to-indi", cfg.ToIndiPub)
}

func Test_Parse_MissingPositionalErrors(t *testing.T) {
	_, err := Parse([]string{"--iport=7000"})
	assert.Error(t, err)
}

func Test_Parse_FlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--iport=9000", "--clientonly", "--driver=/bin/a", "--driver=/bin/b", "/var/blobs"})
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.IPort)
	assert.True(t, cfg.ClientOnly)
	assert.Equal(t, []string{"/bin/a", "/bin/b"}, cfg.Drivers)
}

func Test_Parse_JSONFileOverlaidAndOverriddenByFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"iport":"5555","rhost":"redis.example"}`), 0o644))

	cfg, err := Parse([]string{"--config=" + path, "--iport=6000", "/var/blobs"})
	require.NoError(t, err)
	assert.Equal(t, "6000", cfg.IPort, "flag must override the file")
	assert.Equal(t, "redis.example", cfg.RHost, "file value must apply when no flag overrides it")
}

func Test_Parse_MissingConfigFileErrors(t *testing.T) {
	_, err := Parse([]string{"--config=/does/not/exist.json", "/var/blobs"})
	assert.Error(t, err)
}

func Test_Validate_RequiresMQTTTopicsWhenBrokerSet(t *testing.T) {
	cfg := Defaults()
	cfg.BLOBFolder = "/var/blobs"
	cfg.MQTTBroker = "tcp://localhost:1883"
	cfg.MQTTSnoopData = ""

	err := cfg.Validate()
	assert.Error(t, err)
}
