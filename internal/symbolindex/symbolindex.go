// Package symbolindex implements the concurrent, lock-free symbol
// interning table described in spec.md §4.1: an open-addressed,
// linear-probing table keyed by a bounded ASCII symbol string, handing
// out dense uint32 ids that are stable for process lifetime.
//
// The table is append-only and never reclaims a slot. Publication
// follows the order mandated by the spec — key bytes, then id, then
// the active flag, each with release semantics — so a reader that
// observes active=true is guaranteed to see a fully-written key and
// id. This differs from original_source's SymbolIndex (which flips
// isActive to true before the key/id are written, admitting a reader
// race); this reimplementation splits "claimed" (used only to settle
// the CAS race between concurrent interners) from "active" (the
// publication flag readers wait on).
package symbolindex

import (
	"hash/fnv"
	"runtime"
	"sync/atomic"
)

// SymbolID is a dense, process-stable handle assigned on first
// registration of a symbol.
type SymbolID uint32

// InvalidID indicates "not found" or "table full".
const InvalidID SymbolID = 1<<32 - 1

// MaxKeyLen is the maximum symbol length in bytes (spec.md §3).
const MaxKeyLen = 8

// DefaultMaxSymbols is the default table capacity (spec.md §6).
const DefaultMaxSymbols = 10000

type slot struct {
	claimed atomic.Bool
	active  atomic.Bool
	id      atomic.Uint32
	key     [MaxKeyLen]byte
	keyLen  atomic.Uint32
}

// Index is a fixed-capacity, lock-free symbol intern table.
type Index struct {
	slots    []slot
	capacity uint32
	next     atomic.Uint32
}

// New creates an Index with room for capacity distinct symbols.
func New(capacity int) *Index {
	if capacity <= 0 {
		capacity = DefaultMaxSymbols
	}
	return &Index{
		slots:    make([]slot, capacity),
		capacity: uint32(capacity),
	}
}

func hashKey(key []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return h.Sum32()
}

func keyBytes(symbol string) ([MaxKeyLen]byte, int, bool) {
	var buf [MaxKeyLen]byte
	if len(symbol) == 0 || len(symbol) > MaxKeyLen {
		return buf, 0, false
	}
	copy(buf[:], symbol)
	return buf, len(symbol), true
}

func slotMatches(s *slot, key [MaxKeyLen]byte, keyLen int) bool {
	if int(s.keyLen.Load()) != keyLen {
		return false
	}
	return s.key == key
}

// Intern returns the SymbolID for symbol, registering it if this is
// the first time it has been seen. Symbols longer than MaxKeyLen bytes
// are rejected with InvalidID, per spec.md §4.1.
func (ix *Index) Intern(symbol string) SymbolID {
	key, keyLen, ok := keyBytes(symbol)
	if !ok {
		return InvalidID
	}
	start := hashKey(key[:keyLen]) % ix.capacity
	for i := uint32(0); i < ix.capacity; i++ {
		idx := (start + i) % ix.capacity
		s := &ix.slots[idx]

		if s.claimed.CompareAndSwap(false, true) {
			// We won this slot: publish key bytes, then id, then active,
			// each a release so a reader that later observes active=true
			// has already seen a consistent key/id pair.
			s.key = key
			s.keyLen.Store(uint32(keyLen))
			newID := ix.next.Add(1) - 1
			s.id.Store(uint32(newID))
			s.active.Store(true)
			return SymbolID(newID)
		}

		// Someone else claimed this slot first — it may be us racing
		// against another interner for the same key, or a different key
		// that hashed here. Wait for their publication to complete.
		for !s.active.Load() {
			runtime.Gosched()
		}
		if slotMatches(s, key, keyLen) {
			return SymbolID(s.id.Load())
		}
	}
	return InvalidID
}

// Lookup returns the SymbolID for symbol if it has already been
// interned, or InvalidID otherwise. It never allocates a new id.
func (ix *Index) Lookup(symbol string) SymbolID {
	key, keyLen, ok := keyBytes(symbol)
	if !ok {
		return InvalidID
	}
	start := hashKey(key[:keyLen]) % ix.capacity
	for i := uint32(0); i < ix.capacity; i++ {
		idx := (start + i) % ix.capacity
		s := &ix.slots[idx]
		if !s.claimed.Load() {
			// Linear probing always claims the first free slot on insert,
			// so an unclaimed slot means the key was never interned.
			return InvalidID
		}
		for !s.active.Load() {
			runtime.Gosched()
		}
		if slotMatches(s, key, keyLen) {
			return SymbolID(s.id.Load())
		}
	}
	return InvalidID
}

// Len returns the number of interned symbols.
func (ix *Index) Len() int {
	return int(ix.next.Load())
}

// Capacity returns the table's fixed capacity.
func (ix *Index) Capacity() int {
	return int(ix.capacity)
}
