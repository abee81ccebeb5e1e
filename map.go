// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package densemap is a map from int32 keys to integer values for key ranges
// that are dense, or become dense over time, such as vertex indices or small
// identifiers. No hashing is performed: a key is located by direct offset
// arithmetic into a window of slots.
//
// # Layout
//
// A Map is made of three arrays:
//
//	slots    sparse, indexed by key-offset. 0 is a never used slot, n>0
//	         references entries[n-1].
//	entries  an arena of every entry record ever created for a used slot,
//	         live or tombstoned. Arena indices never change.
//	list     dense, list[0:Len()] holds the arena index of every live
//	         entry. An entry's rank is its position in list.
//
// For example, after Put(12, a), Put(10, b), Put(13, c), Remove(12) with an
// offset of 10:
//
//	slots:   [ 2 | 0 | 1 | 3 | 0 ... ]    (keys 10, 11, 12, 13, 14 ...)
//	entries: [ {12 a rank=-1} {10 b rank=1} {13 c rank=0} ]
//	list:    [ 2 | 1 ]
//
// Removal moves the last list element into the rank of the removed entry
// (swap-compaction) and marks the removed record as a tombstone (rank=-1).
// The tombstone stays in the arena and is reused if the key is put again, so
// repeated remove and reinsert cycles of the same key do not allocate.
//
// Iteration walks list, so it is proportional to Len() rather than to the
// size of the key window.
//
// # Growth
//
// When Put receives a key outside the window the slot window grows by at
// least the missing amount plus ~25% of its current length. Growth below the
// window reallocates the slots and copies them shifted up, moving offset
// down. Growth above the window extends the tail. The dense list grows by
// ~50% of its capacity, but never beyond the length of the slot window since
// a map cannot hold more live entries than it has addressable slots.
//
// A Map is NOT goroutine-safe.
package densemap

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

const (
	debug = false

	// DefaultCapacity is the length of the key window allocated by the first
	// Put into a map constructed without a range, and the default capacity of
	// the dense entry list.
	DefaultCapacity = 16

	// maxWindow is the largest number of slots in a window. Slot references
	// and ranks are stored as int32.
	maxWindow = int64(math.MaxInt32)

	// rankDeleted is the rank of a tombstoned entry.
	rankDeleted = -1
)

// Value is the set of value types a Map can hold.
type Value interface {
	constraints.Integer
}

// entry is a key/value record. A record with rank == rankDeleted is a
// tombstone.
type entry[V Value] struct {
	key   int32
	value V
	rank  int32
}

type config struct {
	hasRange     bool
	from, to     int32
	listCapacity int // -1 when unspecified
}

// Map is a map from int32 keys to values of type V with Put, Get, Remove,
// ContainsKey and All operations. See the package documentation for the
// layout.
//
// A Map is NOT goroutine-safe.
type Map[V Value] struct {
	// The allocator to use for the slots and list slices.
	allocator Allocator
	cfg       config
	// offset is the key addressed by slots[0].
	offset int32
	slots  []int32
	// entries is the arena of entry records referenced by slots and list.
	entries []entry[V]
	// list is the dense entry list. Its length is the list capacity and
	// list[:used] are the arena indexes of the live entries.
	list []int32
	// The number of live entries.
	used int
	// gen is incremented on every structural modification. Cursors compare
	// it to detect modification made outside of the cursor.
	gen uint64
}

// IntIntMap is a map from int32 keys to int32 values.
type IntIntMap = Map[int32]

// IntLongMap is a map from int32 keys to int64 values.
type IntLongMap = Map[int64]

// New constructs a new Map with the specified options. Without WithRange or
// WithSize the map starts out without a key window; the first Put allocates
// a window of DefaultCapacity keys centered on the key.
func New[V Value](options ...option[V]) *Map[V] {
	m := &Map[V]{
		allocator: defaultAllocator{},
		cfg:       config{listCapacity: -1},
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.cfg.hasRange {
		n := int64(m.cfg.to) - int64(m.cfg.from) + 1
		if n > maxWindow {
			panic(capacityExceeded(n))
		}
		listCapacity := m.cfg.listCapacity
		if listCapacity < 0 {
			listCapacity = int(min(n, DefaultCapacity))
		}
		listCapacity = int(min(int64(listCapacity), n))

		m.offset = m.cfg.from
		m.slots = m.allocator.AllocSlots(int(n))
		if listCapacity > 0 {
			m.list = m.allocator.AllocSlots(listCapacity)
			m.entries = make([]entry[V], 0, listCapacity)
		}
	}

	m.checkInvariants()
	return m
}

// NewIntInt constructs a new IntIntMap.
func NewIntInt(options ...option[int32]) *IntIntMap {
	return New[int32](options...)
}

// NewIntLong constructs a new IntLongMap.
func NewIntLong(options ...option[int64]) *IntLongMap {
	return New[int64](options...)
}

// Copy constructs a new Map holding the entries of src. The key window of the
// copy is chosen to fit the keys of src: the source window is reused when its
// keys are contiguous from its offset, otherwise a window is centered around
// the minimum and maximum keys of src. The options are applied after the
// window has been chosen and may override it.
func Copy[V Value](src *Map[V], options ...option[V]) *Map[V] {
	var from, to int32
	var listCapacity int
	if src.used > 0 {
		from, to = src.copyWindow()
		listCapacity = src.used
	} else {
		from, to = 0, DefaultCapacity-1
		listCapacity = DefaultCapacity
	}

	opts := make([]option[V], 0, 2+len(options))
	opts = append(opts, WithRange[V](from, to), WithListCapacity[V](listCapacity))
	opts = append(opts, options...)
	m := New[V](opts...)

	for i := 0; i < src.used; i++ {
		e := &src.entries[src.list[i]]
		m.Put(e.key, e.value)
	}
	return m
}

// copyWindow returns the window a copy of m should start with. m must not be
// empty.
func (m *Map[V]) copyWindow() (from, to int32) {
	offset := int64(m.offset)
	if m.ContainsKey(m.offset) {
		lastKey := offset + int64(m.used) - 1
		if m.ContainsKey(int32(lastKey)) {
			return m.offset, int32(lastKey)
		}

		maxKey := offset + int64(len(m.slots)) - 1
		if m.ContainsKey(int32(maxKey)) {
			return m.offset, int32(maxKey)
		}
	}

	lo := int64(m.entries[m.list[0]].key)
	hi := lo
	for i := 1; i < m.used; i++ {
		key := int64(m.entries[m.list[i]].key)
		if key < lo {
			lo = key
		} else if key > hi {
			hi = key
		}
	}

	// Split the unused space of the source window evenly below lo and above
	// hi. The result is always inside the source window.
	return int32((lo + offset + 1) >> 1), int32((hi + offset + int64(len(m.slots))) >> 1)
}

// Close closes the map, releasing the slot window and dense list back to its
// configured allocator. It is unnecessary to close a map using the default
// allocator. It is invalid to use a Map after it has been closed, though
// Close itself is idempotent.
func (m *Map[V]) Close() {
	if m.allocator == nil {
		return
	}
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
	}
	if m.list != nil {
		m.allocator.FreeSlots(m.list)
	}
	m.slots = nil
	m.list = nil
	m.entries = nil
	m.used = 0
	m.gen++
	m.allocator = nil
}

// find returns the arena index of the live entry for key, or -1.
func (m *Map[V]) find(key int32) int32 {
	i := int64(key) - int64(m.offset)
	if i < 0 || i >= int64(len(m.slots)) {
		return -1
	}
	ref := m.slots[i]
	if ref == 0 || m.entries[ref-1].rank == rankDeleted {
		return -1
	}
	return ref - 1
}

// ContainsKey returns true if the map holds an entry for key.
func (m *Map[V]) ContainsKey(key int32) bool {
	return m.find(key) >= 0
}

// Get retrieves the value from the map for the specified key. Unlike
// ContainsKey and Remove, Get fails for a key that is not present: the
// returned error matches ErrKeyNotFound. Callers that expect misses should
// call ContainsKey first.
func (m *Map[V]) Get(key int32) (V, error) {
	if idx := m.find(key); idx >= 0 {
		return m.entries[idx].value, nil
	}
	var zero V
	return zero, keyNotFound(key)
}

// Put inserts an entry into the map, overwriting the value of an existing
// entry with the same key. Returns true if the key was not present.
func (m *Map[V]) Put(key int32, value V) bool {
	m.ensureRange(key)

	i := int64(key) - int64(m.offset)
	ref := m.slots[i]
	if ref == 0 {
		if debug {
			fmt.Printf("put(%d): new entry rank=%d\n", key, m.used)
		}
		m.ensureListCapacity(m.used + 1)
		idx := int32(len(m.entries))
		m.entries = append(m.entries, entry[V]{key: key, value: value, rank: int32(m.used)})
		m.slots[i] = idx + 1
		m.list[m.used] = idx
		m.used++
		m.gen++
		m.checkInvariants()
		return true
	}

	e := &m.entries[ref-1]
	if e.rank == rankDeleted {
		if debug {
			fmt.Printf("put(%d): reusing tombstone rank=%d\n", key, m.used)
		}
		m.ensureListCapacity(m.used + 1)
		e.rank = int32(m.used)
		e.value = value
		m.list[m.used] = ref - 1
		m.used++
		m.gen++
		m.checkInvariants()
		return true
	}

	e.value = value
	return false
}

// Remove removes the entry corresponding to the specified key from the map.
// Returns false, without modifying the map, if the key is not present.
func (m *Map[V]) Remove(key int32) bool {
	idx := m.find(key)
	if idx < 0 {
		return false
	}
	m.removeAt(idx)
	return true
}

// removeAt removes the live entry at arena index idx by moving the last entry
// of the dense list into its rank.
func (m *Map[V]) removeAt(idx int32) {
	e := &m.entries[idx]
	rank := e.rank
	m.used--
	if int(rank) != m.used {
		last := m.list[m.used]
		m.list[rank] = last
		m.entries[last].rank = rank
		if debug {
			fmt.Printf("remove(%d): moved %d to rank=%d\n", e.key, m.entries[last].key, rank)
		}
	}
	e.rank = rankDeleted
	m.gen++
	m.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map[V]) Len() int {
	return m.used
}

// Clear removes all entries from the map. The key window and the entry
// records are retained for reuse.
func (m *Map[V]) Clear() {
	for i := 0; i < m.used; i++ {
		m.entries[m.list[i]].rank = rankDeleted
	}
	m.used = 0
	m.gen++
	m.checkInvariants()
}

// Equal returns true if m and other hold the same key/value pairs. The order
// of the entries is irrelevant. Maps of different lengths are never equal. A
// nil map is equal to an empty map.
func (m *Map[V]) Equal(other *Map[V]) bool {
	if m == other {
		return true
	}
	if other == nil {
		return m.used == 0
	}
	if m == nil {
		return other.used == 0
	}
	if m.used != other.used {
		return false
	}
	for i := 0; i < other.used; i++ {
		e := &other.entries[other.list[i]]
		idx := m.find(e.key)
		if idx < 0 || m.entries[idx].value != e.value {
			return false
		}
	}
	return true
}

// All calls yield sequentially for each key and value present in the map, in
// dense list order. If yield returns false, iteration stops. The map must not
// be structurally modified by yield: doing so panics with
// ErrConcurrentModification. Use an EntryCursor to remove entries while
// iterating.
//
// The signature follows the range-over-function form:
//
//	for k, v := range m.All {
//	  fmt.Printf("%d: %d\n", k, v)
//	}
func (m *Map[V]) All(yield func(key int32, value V) bool) {
	gen := m.gen
	for i := 0; i < m.used; i++ {
		e := &m.entries[m.list[i]]
		if !yield(e.key, e.value) {
			return
		}
		if m.gen != gen {
			panic(errors.WithStack(ErrConcurrentModification))
		}
	}
}

// Keys calls yield sequentially for each key present in the map, with the
// same rules as All.
func (m *Map[V]) Keys(yield func(key int32) bool) {
	m.All(func(key int32, _ V) bool {
		return yield(key)
	})
}

// String returns the entries of the map in dense list order.
func (m *Map[V]) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	for i := 0; i < m.used; i++ {
		if i > 0 {
			buf.WriteByte(' ')
		}
		e := &m.entries[m.list[i]]
		fmt.Fprintf(&buf, "%d:%d", e.key, e.value)
	}
	buf.WriteByte('}')
	return buf.String()
}

// ensureRange grows the slot window so that it covers key.
func (m *Map[V]) ensureRange(key int32) {
	if len(m.slots) == 0 {
		n := int64(max(DefaultCapacity, m.cfg.listCapacity))
		if n > maxWindow {
			panic(capacityExceeded(n))
		}
		offset := int64(key) - n>>1
		offset = max(offset, math.MinInt32)
		offset = min(offset, math.MaxInt32-n+1)
		if debug {
			fmt.Printf("grow(%d): initial window [%d, %d]\n", key, offset, offset+n-1)
		}
		m.slots = m.allocator.AllocSlots(int(n))
		m.offset = int32(offset)
		if m.cfg.listCapacity > 0 && len(m.list) == 0 {
			m.list = m.allocator.AllocSlots(m.cfg.listCapacity)
		}
		return
	}

	v := int64(key) - int64(m.offset)
	n := int64(len(m.slots))
	if v < 0 {
		m.growNegative(m.capacity(n-v) - n)
	} else if v >= n {
		m.growPositive(m.capacity(v+1) - n)
	}
}

// capacity returns the length of the slot window to grow to in order to hold
// at least minCapacity slots.
func (m *Map[V]) capacity(minCapacity int64) int64 {
	if minCapacity > maxWindow {
		panic(capacityExceeded(minCapacity))
	}
	oldCapacity := int64(len(m.slots))
	newCapacity := oldCapacity + oldCapacity>>2
	if newCapacity < minCapacity {
		newCapacity = minCapacity
	}
	return min(newCapacity, maxWindow)
}

// growNegative adds count slots below the window. The existing slots are
// copied to the top of a new buffer. count is clamped so that offset remains
// representable.
func (m *Map[V]) growNegative(count int64) {
	count = min(count, int64(m.offset)-math.MinInt32)
	if debug {
		fmt.Printf("grow: %d slots below %d\n", count, m.offset)
	}
	slots := m.allocator.AllocSlots(len(m.slots) + int(count))
	copy(slots[count:], m.slots)
	m.allocator.FreeSlots(m.slots)
	m.slots = slots
	m.offset -= int32(count)
}

// growPositive adds count slots above the window. count is clamped so that
// the last key of the window remains representable.
func (m *Map[V]) growPositive(count int64) {
	count = min(count, math.MaxInt32-(int64(m.offset)+int64(len(m.slots))-1))
	if debug {
		fmt.Printf("grow: %d slots above %d\n", count, int64(m.offset)+int64(len(m.slots))-1)
	}
	slots := m.allocator.AllocSlots(len(m.slots) + int(count))
	copy(slots, m.slots)
	m.allocator.FreeSlots(m.slots)
	m.slots = slots
}

// ensureListCapacity grows the dense list so that it can hold minCapacity
// entries. The list never grows beyond the length of the slot window.
func (m *Map[V]) ensureListCapacity(minCapacity int) {
	oldCapacity := len(m.list)
	if minCapacity <= oldCapacity {
		return
	}
	if oldCapacity == 0 {
		n := min(max(minCapacity, DefaultCapacity), len(m.slots))
		m.list = m.allocator.AllocSlots(n)
		return
	}

	growDelta := (1 + oldCapacity) >> 1
	if maxDelta := len(m.slots) - oldCapacity; growDelta > maxDelta {
		growDelta = maxDelta
	} else if minCapacity-oldCapacity > growDelta {
		growDelta = minCapacity - oldCapacity
	}
	if debug {
		fmt.Printf("grow: list capacity %d -> %d\n", oldCapacity, oldCapacity+growDelta)
	}

	list := m.allocator.AllocSlots(oldCapacity + growDelta)
	copy(list, m.list[:m.used])
	m.allocator.FreeSlots(m.list)
	m.list = list
}

func (m *Map[V]) checkInvariants() {
	if invariants {
		if m.used > len(m.list) {
			panic(fmt.Sprintf("invariant failed: used=%d exceeds list capacity %d\n%s",
				m.used, len(m.list), m.debugString()))
		}
		if len(m.list) > len(m.slots) {
			panic(fmt.Sprintf("invariant failed: list capacity %d exceeds window length %d\n%s",
				len(m.list), len(m.slots), m.debugString()))
		}
		for r := 0; r < m.used; r++ {
			idx := m.list[r]
			e := &m.entries[idx]
			if int(e.rank) != r {
				panic(fmt.Sprintf("invariant failed: list(%d): key %d has rank %d\n%s",
					r, e.key, e.rank, m.debugString()))
			}
			if ref := m.slots[int64(e.key)-int64(m.offset)]; ref != idx+1 {
				panic(fmt.Sprintf("invariant failed: list(%d): key %d slot references %d, expected %d\n%s",
					r, e.key, ref, idx+1, m.debugString()))
			}
		}
		var live, refs int
		for i, ref := range m.slots {
			if ref == 0 {
				continue
			}
			refs++
			e := &m.entries[ref-1]
			if int64(e.key) != int64(m.offset)+int64(i) {
				panic(fmt.Sprintf("invariant failed: slot(%d): key %d, expected %d\n%s",
					i, e.key, int64(m.offset)+int64(i), m.debugString()))
			}
			if e.rank != rankDeleted {
				live++
			}
		}
		if live != m.used {
			panic(fmt.Sprintf("invariant failed: found %d live entries, but used count is %d\n%s",
				live, m.used, m.debugString()))
		}
		if refs != len(m.entries) {
			panic(fmt.Sprintf("invariant failed: found %d referenced entries, but arena holds %d\n%s",
				refs, len(m.entries), m.debugString()))
		}
	}
}

func (m *Map[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "window=[%d, %d] used=%d list-capacity=%d\n",
		m.offset, int64(m.offset)+int64(len(m.slots))-1, m.used, len(m.list))
	for i, ref := range m.slots {
		if ref == 0 {
			continue
		}
		e := &m.entries[ref-1]
		if e.rank == rankDeleted {
			fmt.Fprintf(&buf, "  %4d: %d [deleted]\n", i, e.key)
		} else {
			fmt.Fprintf(&buf, "  %4d: %d=%d [rank=%d]\n", i, e.key, e.value, e.rank)
		}
	}
	return buf.String()
}
