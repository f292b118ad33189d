package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mpboot/constants"
	"mpboot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default(4)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Units, 4)
	assert.Equal(t, types.Identity(4), cfg.Primary().Identity)
	assert.ElementsMatch(t, []types.Identity{0, 4, 8, 12}, cfg.Identities())
	assert.Equal(t, TransportDoorbell, cfg.Transport)
	assert.Equal(t, uint64(constants.DefaultDiscoveryWindowMicros), cfg.DiscoveryWindowMicros)

	one := Default(1)
	require.NoError(t, one.Validate())
	assert.Equal(t, types.Identity(0), one.Primary().Identity)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"units": [
			{"identity": 16, "core": 0, "primary": true},
			{"identity": 2, "core": 1},
			{"identity": 9, "core": 2, "absent": true},
			{"identity": 5, "core": 3, "failSelfTest": true}
		],
		"transport": "polled",
		"counterBits": 24,
		"traceDepth": 16
	}`))
	require.NoError(t, err)
	assert.Len(t, cfg.Units, 4)
	assert.Equal(t, types.Identity(16), cfg.Primary().Identity)
	assert.True(t, cfg.Units[2].Absent)
	assert.True(t, cfg.Units[3].FailSelfTest)
	assert.Equal(t, TransportPolled, cfg.Transport)
	assert.Equal(t, uint(24), cfg.CounterBits)
	assert.Equal(t, uint64(1_000_000_000), cfg.TimerHz)
	assert.Equal(t, 16, cfg.TraceRing())
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"malformed":       `{"units": [`,
		"empty":           `{"units": []}`,
		"no primary":      `{"units": [{"identity": 1}]}`,
		"two primaries":   `{"units": [{"identity": 1, "primary": true}, {"identity": 2, "primary": true}]}`,
		"duplicate":       `{"units": [{"identity": 1, "primary": true}, {"identity": 1, "core": 1}]}`,
		"absent primary":  `{"units": [{"identity": 1, "primary": true, "absent": true}]}`,
		"bad transport":   `{"units": [{"identity": 1, "primary": true}], "transport": "smoke"}`,
		"bad trace depth": `{"units": [{"identity": 1, "primary": true}], "traceDepth": 12}`,
		"negative core":   `{"units": [{"identity": 1, "primary": true, "core": -1}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			if name != "malformed" {
				assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
			}
		})
	}
}

func TestTooManyUnits(t *testing.T) {
	cfg := Default(constants.MaxUnits + 1)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestTracingDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`{"units": [{"identity": 1, "primary": true}], "traceDepth": -1}`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.TraceRing())
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default(3)
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
