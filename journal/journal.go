// ════════════════════════════════════════════════════════════════════════════════════════════════
// 📒 BOOT JOURNAL
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: SQLite Record of Enumerations & Dispatches
//
// Description:
//   Persists what the coordinator observed: the registry of every generation (identity,
//   health, enabled) and the outcome of every dispatch (mode, budget, elapsed ticks, the
//   units still unfinished at a timeout). Written on the primary unit only, at enumeration
//   and at dispatch completion, never from an idle loop.
//
// Schema:
//   units(generation, idx, identity, health, is_bsp, enabled)
//   dispatches(id, generation, mode, target, single_threaded, exclude_self,
//              timeout_micros, selected, elapsed_ticks, unfinished JSON, error)
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package journal

import (
	"database/sql"
	"errors"
	"fmt"

	"mpboot/mp"
	"mpboot/types"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"
)

const schema = `
CREATE TABLE IF NOT EXISTS units (
	generation INTEGER NOT NULL,
	idx        INTEGER NOT NULL,
	identity   INTEGER NOT NULL,
	health     INTEGER NOT NULL,
	is_bsp     INTEGER NOT NULL,
	enabled    INTEGER NOT NULL,
	PRIMARY KEY (generation, idx)
);
CREATE TABLE IF NOT EXISTS dispatches (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	generation      INTEGER NOT NULL,
	mode            TEXT    NOT NULL,
	target          INTEGER NOT NULL,
	single_threaded INTEGER NOT NULL,
	exclude_self    INTEGER NOT NULL,
	timeout_micros  INTEGER NOT NULL,
	selected        INTEGER NOT NULL,
	elapsed_ticks   INTEGER NOT NULL,
	unfinished      TEXT    NOT NULL,
	error           TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatches_generation ON dispatches (generation);
`

// Store is an mp.Recorder backed by SQLite.
type Store struct {
	db         *sql.DB
	insertUnit *sql.Stmt
	insertCall *sql.Stmt
}

// Unit is one stored registry row.
type Unit struct {
	Generation uint32
	Index      int
	Identity   types.Identity
	Health     types.Health
	IsBSP      bool
	Enabled    bool
}

// Dispatch is one stored dispatch row.
type Dispatch struct {
	ID             int64
	Generation     uint32
	Mode           string
	Target         int
	SingleThreaded bool
	ExcludeSelf    bool
	TimeoutMicros  uint64
	Selected       int
	ElapsedTicks   uint64
	Unfinished     []int
	Err            string
}

// TimedOut reports whether the dispatch stopped waiting with units unfinished.
func (d Dispatch) TimedOut() bool {
	return len(d.Unfinished) > 0
}

// Open opens (creating if needed) the journal at path. ":memory:" keeps it
// in process memory.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// One connection: ":memory:" databases are per connection, and the
	// primary is the only writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	s := &Store{db: db}
	if s.insertUnit, err = db.Prepare(`INSERT OR REPLACE INTO units
		(generation, idx, identity, health, is_bsp, enabled) VALUES (?, ?, ?, ?, ?, ?)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: prepare units: %w", err)
	}
	if s.insertCall, err = db.Prepare(`INSERT INTO dispatches
		(generation, mode, target, single_threaded, exclude_self, timeout_micros, selected, elapsed_ticks, unfinished, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		s.insertUnit.Close()
		db.Close()
		return nil, fmt.Errorf("journal: prepare dispatches: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return errors.Join(s.insertUnit.Close(), s.insertCall.Close(), s.db.Close())
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// mp.Recorder
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// RecordEnumeration stores the registry of one generation atomically.
func (s *Store) RecordEnumeration(generation uint32, units []mp.UnitInfo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	stmt := tx.Stmt(s.insertUnit)
	for _, u := range units {
		if _, err := stmt.Exec(generation, u.Index, uint32(u.Identity), uint32(u.Health), u.IsBSP, u.Enabled); err != nil {
			tx.Rollback()
			return fmt.Errorf("journal: unit %d: %w", u.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

// RecordDispatch stores one dispatch outcome.
func (s *Store) RecordDispatch(rec mp.DispatchRecord) error {
	unfinished := rec.Unfinished
	if unfinished == nil {
		unfinished = []int{}
	}
	list, err := sonnet.Marshal(unfinished)
	if err != nil {
		return fmt.Errorf("journal: encode unfinished: %w", err)
	}
	var msg string
	if rec.Err != nil {
		msg = rec.Err.Error()
	}
	if _, err := s.insertCall.Exec(rec.Generation, rec.Mode, rec.Target, rec.SingleThreaded, rec.ExcludeSelf,
		int64(rec.TimeoutMicros), rec.Selected, int64(rec.ElapsedTicks), string(list), msg); err != nil {
		return fmt.Errorf("journal: dispatch: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// QUERIES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Generations returns every recorded generation, ascending.
func (s *Store) Generations() ([]uint32, error) {
	rows, err := s.db.Query(`SELECT DISTINCT generation FROM units ORDER BY generation`)
	if err != nil {
		return nil, fmt.Errorf("journal: generations: %w", err)
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var g uint32
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Units returns the registry of generation in processor-number order.
func (s *Store) Units(generation uint32) ([]Unit, error) {
	rows, err := s.db.Query(`SELECT idx, identity, health, is_bsp, enabled FROM units
		WHERE generation = ? ORDER BY idx`, generation)
	if err != nil {
		return nil, fmt.Errorf("journal: units: %w", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u := Unit{Generation: generation}
		var id, health uint32
		if err := rows.Scan(&u.Index, &id, &health, &u.IsBSP, &u.Enabled); err != nil {
			return nil, fmt.Errorf("journal: units: %w", err)
		}
		u.Identity, u.Health = types.Identity(id), types.Health(health)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Dispatches returns every dispatch recorded for generation, oldest first.
func (s *Store) Dispatches(generation uint32) ([]Dispatch, error) {
	rows, err := s.db.Query(`SELECT id, mode, target, single_threaded, exclude_self, timeout_micros,
		selected, elapsed_ticks, unfinished, error FROM dispatches WHERE generation = ? ORDER BY id`, generation)
	if err != nil {
		return nil, fmt.Errorf("journal: dispatches: %w", err)
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		d := Dispatch{Generation: generation}
		var (
			micros, elapsed int64
			list            string
		)
		if err := rows.Scan(&d.ID, &d.Mode, &d.Target, &d.SingleThreaded, &d.ExcludeSelf, &micros,
			&d.Selected, &elapsed, &list, &d.Err); err != nil {
			return nil, fmt.Errorf("journal: dispatches: %w", err)
		}
		d.TimeoutMicros, d.ElapsedTicks = uint64(micros), uint64(elapsed)
		if err := sonnet.Unmarshal([]byte(list), &d.Unfinished); err != nil {
			return nil, fmt.Errorf("journal: decode unfinished %q: %w", list, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TimeoutCount returns how many dispatches of generation timed out.
func (s *Store) TimeoutCount(generation uint32) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dispatches WHERE generation = ? AND unfinished != '[]'`,
		generation).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal: timeouts: %w", err)
	}
	return n, nil
}

var _ mp.Recorder = (*Store)(nil)
