// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go: cold-path logging for the coordinator
//
// Purpose:
//   - Reports enumeration results, timeouts, stale wake signals, recovered
//     task panics and other infrequent events.
//   - Emits JSON lines through a logiface logger backed by stumpy.
//
// Notes:
//   - DropMessage / DropError keep call sites one-liners; Logger() is there
//     for the few places that want structured fields.
//   - Disabled levels cost a nil check: logiface returns a nil builder.
//   - DropLimited throttles per tag with catrate, for diagnostics a misbehaving
//     unit can repeat on every poll (stale wakes, late check-ins).
//
// ⚠️ Never invoke in hot loops; use only in failure diagnostics and boot milestones.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Log is the logger type used across the module.
type Log = logiface.Logger[*stumpy.Event]

var (
	current atomic.Pointer[Log]
	limiter atomic.Pointer[catrate.Limiter]
)

// DefaultRates bounds DropLimited per tag.
var DefaultRates = map[time.Duration]int{
	time.Second: 8,
	time.Minute: 64,
}

func init() {
	SetLogger(New(os.Stderr, logiface.LevelInformational))
	SetRates(DefaultRates)
}

// SetRates replaces the DropLimited rate table. A nil or empty table
// disables throttling.
func SetRates(rates map[time.Duration]int) {
	if len(rates) == 0 {
		limiter.Store(nil)
		return
	}
	limiter.Store(catrate.NewLimiter(rates))
}

// New builds a JSON logger writing to w at the given level.
func New(w io.Writer, level logiface.Level) *Log {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	)
}

// SetLogger replaces the package logger. A nil logger silences output.
func SetLogger(l *Log) {
	current.Store(l)
}

// Logger returns the package logger (possibly nil, which logiface tolerates).
func Logger() *Log {
	return current.Load()
}

// DropError logs err under prefix at error level. A nil err logs just the
// prefix as a warning, for tagged conditions that carry no error value.
func DropError(prefix string, err error) {
	l := Logger()
	if err != nil {
		l.Err().Str("tag", prefix).Err(err).Log(err.Error())
		return
	}
	l.Warning().Str("tag", prefix).Log(prefix)
}

// DropMessage logs an informational milestone.
func DropMessage(prefix, message string) {
	Logger().Info().Str("tag", prefix).Log(message)
}

// DropLimited is DropError throttled per prefix. It reports whether the
// event was logged.
func DropLimited(prefix string, err error) bool {
	if l := limiter.Load(); l != nil {
		if _, ok := l.Allow(prefix); !ok {
			return false
		}
	}
	DropError(prefix, err)
	return true
}
