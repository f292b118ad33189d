// Package selftest is the boot self-test each unit runs once before it
// reaches the entry trampoline. The unit hashes an identity-seeded pattern
// twice, one-shot and streamed in cache-line chunks, and compares digests;
// any divergence means the unit's execution path is not trustworthy.
//
// A passing unit reports Health 0. A failing unit reports a non-zero
// signature derived from the digest difference.
package selftest

import (
	"encoding/binary"
	"hash"

	"mpboot/types"

	"golang.org/x/crypto/sha3"
)

// PatternBytes is the size of the scratch pattern hashed by Run.
const PatternBytes = 4096

// chunk mirrors a cache line so the streamed digest walks the same stride a
// real unit's memory test would.
const chunk = 64

// pattern fills a PatternBytes buffer from a xorshift stream seeded by id.
func pattern(id types.Identity) []byte {
	buf := make([]byte, PatternBytes)
	x := uint64(id)*0x9E3779B97F4A7C15 | 1
	for i := 0; i < PatternBytes; i += 8 {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		binary.LittleEndian.PutUint64(buf[i:], x)
	}
	return buf
}

// streamed hashes p through h in chunk-sized writes.
func streamed(h hash.Hash, p []byte) []byte {
	for off := 0; off < len(p); off += chunk {
		h.Write(p[off : off+chunk])
	}
	return h.Sum(nil)
}

// Run executes the self-test for id. When fault is set the streamed pass is
// fed a corrupted pattern, modelling a unit whose memory path is broken.
func Run(id types.Identity, fault bool) types.Health {
	p := pattern(id)
	ref := sha3.Sum256(p)

	if fault {
		p[len(p)/2] ^= 0xFF
	}
	got := streamed(sha3.New256(), p)

	var sig uint32
	for i := 0; i < len(ref); i += 4 {
		sig ^= binary.LittleEndian.Uint32(ref[i:]) ^ binary.LittleEndian.Uint32(got[i:])
	}
	if sig == 0 {
		for i := range ref {
			if ref[i] != got[i] {
				sig = 1
				break
			}
		}
	}
	return types.Health(sig)
}
