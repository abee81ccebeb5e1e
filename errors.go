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

var (
	// ErrKeyNotFound is returned by Map.Get when the key is not present.
	ErrKeyNotFound = errors.New("densemap: key not found")

	// ErrConcurrentModification is returned by a cursor when the map was
	// structurally modified other than through the cursor itself.
	ErrConcurrentModification = errors.New("densemap: concurrent modification")

	// ErrNoSuchElement is returned by a cursor when there is no current
	// element to remove, or no next element to return.
	ErrNoSuchElement = errors.New("densemap: no such element")

	// ErrCapacityExceeded is the value of the panic raised when the key
	// window would have to cover more keys than an int32 can address.
	ErrCapacityExceeded = errors.New("densemap: capacity exceeded")
)

func keyNotFound(key int32) error {
	return errors.Wrapf(ErrKeyNotFound, "key %d", key)
}

func capacityExceeded(minCapacity int64) error {
	return errors.Wrapf(ErrCapacityExceeded, "requested %d slots", minCapacity)
}
