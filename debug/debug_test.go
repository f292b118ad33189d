package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture swaps in a buffer-backed logger for the duration of the test.
func capture(t *testing.T, level logiface.Level) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	var buf bytes.Buffer
	SetLogger(New(&buf, level))
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func TestDropMessage(t *testing.T) {
	buf := capture(t, logiface.LevelInformational)

	DropMessage("ENUM", "3 units")

	out := buf.String()
	assert.Contains(t, out, `"tag":"ENUM"`)
	assert.Contains(t, out, `"msg":"3 units"`)
	assert.Contains(t, out, `"lvl":"info"`)
}

func TestDropError(t *testing.T) {
	buf := capture(t, logiface.LevelInformational)

	DropError("DISPATCH", errors.New("unit 2 timed out"))
	DropError("STALE", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"err":"unit 2 timed out"`)
	assert.Contains(t, lines[0], `"tag":"DISPATCH"`)
	assert.Contains(t, lines[1], `"lvl":"warning"`)
	assert.Contains(t, lines[1], `"tag":"STALE"`)
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, logiface.LevelError)

	DropMessage("ENUM", "suppressed")
	assert.Zero(t, buf.Len())

	DropError("ENUM", errors.New("kept"))
	assert.NotZero(t, buf.Len())
}

func TestNilLoggerIsSilent(t *testing.T) {
	prev := Logger()
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(prev) })

	assert.NotPanics(t, func() {
		DropMessage("X", "y")
		DropError("X", errors.New("y"))
		Logger().Info().Int("n", 1).Log("z")
	})
}

func TestDropLimited(t *testing.T) {
	buf := capture(t, logiface.LevelInformational)
	SetRates(map[time.Duration]int{time.Hour: 2})
	t.Cleanup(func() { SetRates(DefaultRates) })

	err := errors.New("stale wake")
	assert.True(t, DropLimited("WAKE", err))
	assert.True(t, DropLimited("WAKE", err))
	assert.False(t, DropLimited("WAKE", err))
	assert.True(t, DropLimited("ENTRY", err), "tags are limited independently")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
}

func TestDropLimitedDisabled(t *testing.T) {
	buf := capture(t, logiface.LevelInformational)
	SetRates(nil)
	t.Cleanup(func() { SetRates(DefaultRates) })

	for i := 0; i < 20; i++ {
		require.True(t, DropLimited("WAKE", errors.New("x")))
	}
	assert.Equal(t, 20, strings.Count(buf.String(), "\n"))
}
