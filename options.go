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

// option provide an interface to do work on Map while it is being created.
type option[V Value] interface {
	apply(m *Map[V])
}

type rangeOption[V Value] struct {
	from, to int32
}

func (op rangeOption[V]) apply(m *Map[V]) {
	if op.from > op.to {
		panic(errors.Newf("densemap: invalid key range [%d, %d]", op.from, op.to))
	}
	m.cfg.from, m.cfg.to = op.from, op.to
	m.cfg.hasRange = true
}

// WithRange is an option to specify the initial key window [from, to] of a
// Map[V]. Keys outside the window are still accepted; the window grows to
// cover them.
func WithRange[V Value](from, to int32) option[V] {
	return rangeOption[V]{from, to}
}

// WithSize is an option to specify an initial key window of [0, n-1].
func WithSize[V Value](n int) option[V] {
	if n <= 0 || int64(n) > maxWindow {
		panic(errors.Newf("densemap: invalid size %d", n))
	}
	return rangeOption[V]{0, int32(n - 1)}
}

type listCapacityOption[V Value] struct {
	capacity int
}

func (op listCapacityOption[V]) apply(m *Map[V]) {
	if op.capacity < 0 {
		panic(errors.Newf("densemap: invalid list capacity %d", op.capacity))
	}
	m.cfg.listCapacity = op.capacity
}

// WithListCapacity is an option to specify the initial capacity of the dense
// entry list. The capacity never exceeds the length of the key window.
func WithListCapacity[V Value](capacity int) option[V] {
	return listCapacityOption[V]{capacity}
}

// Allocator specifies an interface for allocating and releasing the index
// buffers used by a Map: the slot window and the dense entry list. The
// default allocator utilizes Go's builtin make() and allows the GC to
// reclaim memory.
//
// If the allocator is manually managing memory then Map.Close must be called
// in order to ensure FreeSlots is called for the live buffers.
type Allocator interface {
	// AllocSlots should return a zeroed slice equivalent to
	// make([]int32, n).
	AllocSlots(n int) []int32

	// FreeSlots can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []int32)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocSlots(n int) []int32 {
	return make([]int32, n)
}

func (defaultAllocator) FreeSlots(v []int32) {
}

type allocatorOption[V Value] struct {
	allocator Allocator
}

func (op allocatorOption[V]) apply(m *Map[V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[V].
func WithAllocator[V Value](allocator Allocator) option[V] {
	return allocatorOption[V]{allocator}
}
