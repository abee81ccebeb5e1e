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

// Stats describes the memory layout of a Map.
type Stats struct {
	// Len is the number of live entries.
	Len int
	// Tombstones is the number of removed entries retained for reuse.
	Tombstones int
	// WindowLow and WindowHigh are the first and last key addressable
	// without growing. Both are 0 and Window is 0 for a map without a
	// window.
	WindowLow, WindowHigh int64
	Window                int
	ListCapacity          int
}

// Stats returns the current Stats of the map.
func (m *Map[V]) Stats() Stats {
	s := Stats{
		Len:          m.used,
		Tombstones:   len(m.entries) - m.used,
		Window:       len(m.slots),
		ListCapacity: len(m.list),
	}
	if len(m.slots) > 0 {
		s.WindowLow = int64(m.offset)
		s.WindowHigh = int64(m.offset) + int64(len(m.slots)) - 1
	}
	return s
}
