// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🗺 PLATFORM TOPOLOGY
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Topology Description & Validation
//
// Description:
//   Describes the machine the simulated platform brings up: which hardware identities exist,
//   which one is the primary, which cores they sit on, which units are missing or fail their
//   self-test, and the shape of the platform timer and wake transport.
//
// Format:
//   JSON, decoded with sonnet. Every field except units has a default.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package topology

import (
	"errors"
	"fmt"
	"os"

	"mpboot/constants"
	"mpboot/types"

	"github.com/sugawarayuuta/sonnet"
)

// Transport kinds.
const (
	TransportDoorbell = "doorbell"
	TransportPolled   = "polled"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("topology: invalid")

// Unit describes one processing unit slot.
type Unit struct {
	Identity     types.Identity `json:"identity"`
	Core         int            `json:"core"`
	Primary      bool           `json:"primary,omitempty"`
	Absent       bool           `json:"absent,omitempty"`        // slot counted by MaxUnits but never responds
	FailSelfTest bool           `json:"failSelfTest,omitempty"` // boot self-test reports a fault
}

// Config is a complete platform description.
type Config struct {
	Units []Unit `json:"units"`

	TimerHz     uint64 `json:"timerHz,omitempty"`
	CounterBits uint   `json:"counterBits,omitempty"`
	TimerOffset uint64 `json:"timerOffset,omitempty"` // initial counter value, to force an early wrap

	Transport string `json:"transport,omitempty"`
	Pin       bool   `json:"pin,omitempty"`

	DiscoveryWindowMicros uint64 `json:"discoveryWindowMicros,omitempty"`
	TraceDepth            int    `json:"traceDepth,omitempty"` // <0 disables tracing
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Default returns an n-unit topology on cores 0..n-1. Identities are a
// rotation of 0, 4, 8, ... so topology order differs from registry order;
// the primary sits on core 0 with identity 4 (0 when n is 1).
func Default(n int) Config {
	units := make([]Unit, n)
	for i := range units {
		units[i] = Unit{
			Identity: types.Identity(((i + 1) % n) * 4),
			Core:     i,
			Primary:  i == 0,
		}
	}
	cfg := Config{Units: units}
	cfg.applyDefaults()
	return cfg
}

// Parse decodes and validates a JSON topology.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := sonnet.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("topology: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the topology file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("topology: %w", err)
	}
	return Parse(data)
}

// Marshal encodes cfg as JSON.
func (c Config) Marshal() ([]byte, error) {
	return sonnet.Marshal(c)
}

func (c *Config) applyDefaults() {
	if c.TimerHz == 0 {
		c.TimerHz = 1_000_000_000
	}
	if c.CounterBits == 0 {
		c.CounterBits = 64
	}
	if c.Transport == "" {
		c.Transport = TransportDoorbell
	}
	if c.DiscoveryWindowMicros == 0 {
		c.DiscoveryWindowMicros = constants.DefaultDiscoveryWindowMicros
	}
	if c.TraceDepth == 0 {
		c.TraceDepth = constants.DefaultTraceDepth
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Validate checks the structural rules the platform relies on.
func (c *Config) Validate() error {
	if len(c.Units) == 0 {
		return fmt.Errorf("%w: no units", ErrInvalid)
	}
	if len(c.Units) > constants.MaxUnits {
		return fmt.Errorf("%w: %d units exceeds %d", ErrInvalid, len(c.Units), constants.MaxUnits)
	}

	seen := make(map[types.Identity]struct{}, len(c.Units))
	primaries := 0
	for _, u := range c.Units {
		if _, dup := seen[u.Identity]; dup {
			return fmt.Errorf("%w: duplicate identity %#x", ErrInvalid, u.Identity)
		}
		seen[u.Identity] = struct{}{}
		if u.Primary {
			primaries++
			if u.Absent {
				return fmt.Errorf("%w: primary %#x marked absent", ErrInvalid, u.Identity)
			}
		}
		if u.Core < 0 {
			return fmt.Errorf("%w: unit %#x core %d", ErrInvalid, u.Identity, u.Core)
		}
	}
	if primaries != 1 {
		return fmt.Errorf("%w: %d primary units", ErrInvalid, primaries)
	}

	switch c.Transport {
	case TransportDoorbell, TransportPolled:
	default:
		return fmt.Errorf("%w: transport %q", ErrInvalid, c.Transport)
	}
	if c.CounterBits > 64 {
		return fmt.Errorf("%w: counter width %d", ErrInvalid, c.CounterBits)
	}
	if c.TraceDepth > 0 && c.TraceDepth&(c.TraceDepth-1) != 0 {
		return fmt.Errorf("%w: trace depth %d not a power of two", ErrInvalid, c.TraceDepth)
	}
	return nil
}

// Primary returns the primary unit. Validate guarantees exactly one.
func (c *Config) Primary() Unit {
	for _, u := range c.Units {
		if u.Primary {
			return u
		}
	}
	return Unit{}
}

// TraceRing returns the per-unit trace capacity, 0 when tracing is off.
func (c *Config) TraceRing() int {
	if c.TraceDepth < 0 {
		return 0
	}
	return c.TraceDepth
}

// Identities returns every configured identity in topology order.
func (c *Config) Identities() []types.Identity {
	ids := make([]types.Identity, len(c.Units))
	for i, u := range c.Units {
		ids[i] = u.Identity
	}
	return ids
}
