// Package table implements the fixed-capacity longest-prefix-match routing
// table at the heart of the control plane (RFC 2453 route storage, without
// the RFC's timer-driven expiry — see Entry).
package table

import "github.com/ripd-project/ripd/internal/wire"

// MaxEntries is the compile-time capacity of the table. The core performs no
// dynamic allocation after startup; once MaxEntries entries are installed,
// further inserts of new keys fail silently.
const MaxEntries = 1000

// Entry is one routing table row: a destination prefix, its egress
// interface, next hop, and cumulative metric.
//
// Addr is stored masked to the high Len bits (canonical form) so that
// lookups never need to re-mask the stored value, only the query address.
// Entries are never expired by age; RFC 2453's 180s timeout / 120s
// garbage-collection state is intentionally not implemented (an unreachable
// route is only removed by an explicit withdraw).
type Entry struct {
	Addr    uint32
	Len     uint8
	IfIndex int
	NextHop uint32
	Metric  uint8
}

// key identifies a table row independent of its mutable fields.
type key struct {
	addr uint32
	len  uint8
}

// Table is a packed, fixed-capacity array of routes with at most one entry
// per (addr, len) pair. Deletion swaps the removed entry with the last live
// entry, so iteration order carries no meaning and must not be relied upon.
//
// Table is not safe for concurrent use; the control plane that owns it runs
// single-threaded by contract.
type Table struct {
	entries []Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make([]Entry, 0, MaxEntries)}
}

// Len returns the number of installed entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// indexOf returns the index of the entry matching k, or -1 if none exists.
func (t *Table) indexOf(k key) int {
	for i := range t.entries {
		if t.entries[i].Addr == k.addr && t.entries[i].Len == k.len {
			return i
		}
	}
	return -1
}

// Update installs, replaces, or withdraws entry depending on insert and the
// table's current contents, keyed on (entry.Addr, entry.Len). entry.Addr
// must already be masked to entry.Len high bits by the caller.
//
// insert=true: if a matching key exists, the entry is overwritten only when
// entry.Metric is strictly lower than the existing metric (true returned on
// overwrite, false if the existing route is kept); if no matching key
// exists, the entry is appended (true), or the insert is silently dropped if
// the table is at capacity (false).
//
// insert=false: a matching entry is removed by swapping in the last live
// entry (true, idempotently true even if no matching key exists — a
// withdraw of an absent route is not an error).
func (t *Table) Update(insert bool, entry Entry) bool {
	k := key{addr: entry.Addr, len: entry.Len}
	idx := t.indexOf(k)

	if !insert {
		if idx < 0 {
			return true
		}
		last := len(t.entries) - 1
		t.entries[idx] = t.entries[last]
		t.entries = t.entries[:last]
		return true
	}

	if idx >= 0 {
		if entry.Metric < t.entries[idx].Metric {
			t.entries[idx] = entry
			return true
		}
		return false
	}

	if len(t.entries) >= MaxEntries {
		return false
	}
	t.entries = append(t.entries, entry)
	return true
}

// Query performs a longest-prefix-match lookup for addr and reports the
// matching entry's next hop and egress interface. ok is false if no entry
// covers addr.
//
// Alignment is performed by right-shifting both the stored and query
// addresses by (32 - len) bits, equivalent to masking the high len bits,
// and comparing for equality; among matches, the entry with the largest len
// wins. The table's no-duplicate-key invariant means ties at the same len
// cannot occur.
func (t *Table) Query(addr uint32) (nextHop uint32, ifIndex int, ok bool) {
	bestLen := -1
	var best Entry

	for i := range t.entries {
		e := t.entries[i]
		shift := 32 - uint(e.Len)
		var stored, query uint32
		if shift >= 32 {
			stored, query = 0, 0
		} else {
			stored = e.Addr >> shift
			query = addr >> shift
		}
		if stored != query {
			continue
		}
		if int(e.Len) > bestLen {
			bestLen = int(e.Len)
			best = e
		}
	}

	if bestLen < 0 {
		return 0, 0, false
	}
	return best.NextHop, best.IfIndex, true
}

// Snapshot returns a copy of every installed entry. The slice order matches
// internal storage order and is not meaningful across calls that mutate the
// table.
func (t *Table) Snapshot() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// CanonicalAddr masks addr to its high prefixLen bits, the form Addr must be
// stored in.
func CanonicalAddr(addr uint32, prefixLen uint8) uint32 {
	return addr & wire.PrefixToMask(prefixLen)
}
