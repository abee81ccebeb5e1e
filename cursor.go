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

package densemap

import "github.com/cockroachdb/errors"

// cursor walks the dense list of a map. It records the generation of the map
// when it was created and fails every call once the map has been modified by
// anything other than the cursor itself.
type cursor[V Value] struct {
	m    *Map[V]
	gen  uint64
	next int
	// last is the arena index of the entry returned by the previous call to
	// advance, or -1 if there is none or it has been removed.
	last int32
}

func makeCursor[V Value](m *Map[V]) cursor[V] {
	return cursor[V]{m: m, gen: m.gen, last: -1}
}

func (c *cursor[V]) hasNext() bool {
	return c.next < c.m.used
}

func (c *cursor[V]) advance() (int32, error) {
	if c.gen != c.m.gen {
		return -1, errors.WithStack(ErrConcurrentModification)
	}
	if c.next >= c.m.used {
		return -1, errors.WithStack(ErrNoSuchElement)
	}
	c.last = c.m.list[c.next]
	c.next++
	return c.last, nil
}

func (c *cursor[V]) remove() error {
	if c.gen != c.m.gen {
		return errors.WithStack(ErrConcurrentModification)
	}
	if c.last < 0 {
		return errors.WithStack(ErrNoSuchElement)
	}
	// The last entry of the list moves into the rank of the removed entry,
	// so step back to visit it next.
	c.next--
	c.m.removeAt(c.last)
	c.last = -1
	c.gen = c.m.gen
	return nil
}

// KeyCursor iterates over the keys of a Map. A KeyCursor is fail-fast: once
// the map is structurally modified other than through the cursor, every call
// to Next or Remove returns an error matching ErrConcurrentModification.
type KeyCursor[V Value] struct {
	c cursor[V]
}

// KeyCursor returns a cursor positioned before the first key of the map.
func (m *Map[V]) KeyCursor() *KeyCursor[V] {
	return &KeyCursor[V]{c: makeCursor(m)}
}

// HasNext returns true if Next would return another key.
func (kc *KeyCursor[V]) HasNext() bool {
	return kc.c.hasNext()
}

// Next returns the next key.
func (kc *KeyCursor[V]) Next() (int32, error) {
	idx, err := kc.c.advance()
	if err != nil {
		return 0, err
	}
	return kc.c.m.entries[idx].key, nil
}

// Remove removes the key returned by the previous call to Next from the map.
// It fails with ErrNoSuchElement if Next has not been called, or if Remove
// was already called since.
func (kc *KeyCursor[V]) Remove() error {
	return kc.c.remove()
}

// Entry is a handle to an entry of a Map returned by an EntryCursor. Updates
// through SetValue are visible through the map.
type Entry[V Value] struct {
	m   *Map[V]
	idx int32
}

// Key returns the key of the entry.
func (e Entry[V]) Key() int32 {
	return e.m.entries[e.idx].key
}

// Value returns the current value of the entry.
func (e Entry[V]) Value() V {
	return e.m.entries[e.idx].value
}

// SetValue overwrites the value of the entry. Calling SetValue after the
// entry has been removed from the map has no visible effect.
func (e Entry[V]) SetValue(value V) {
	e.m.entries[e.idx].value = value
}

// EntryCursor iterates over the entries of a Map, with the same fail-fast
// rules as KeyCursor.
type EntryCursor[V Value] struct {
	c cursor[V]
}

// EntryCursor returns a cursor positioned before the first entry of the map.
func (m *Map[V]) EntryCursor() *EntryCursor[V] {
	return &EntryCursor[V]{c: makeCursor(m)}
}

// HasNext returns true if Next would return another entry.
func (ec *EntryCursor[V]) HasNext() bool {
	return ec.c.hasNext()
}

// Next returns the next entry.
func (ec *EntryCursor[V]) Next() (Entry[V], error) {
	idx, err := ec.c.advance()
	if err != nil {
		return Entry[V]{}, err
	}
	return Entry[V]{m: ec.c.m, idx: idx}, nil
}

// Remove removes the entry returned by the previous call to Next from the
// map. It fails with ErrNoSuchElement if Next has not been called, or if
// Remove was already called since.
func (ec *EntryCursor[V]) Remove() error {
	return ec.c.remove()
}
