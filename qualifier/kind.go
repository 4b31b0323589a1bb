// Copyright (c) 2025-present deep.rent GmbH (https://deep.rent)
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

package qualifier

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies a family of qualifiers. Each call to NewKind mints a new,
// unique identity; two kinds are the same only if they are the same pointer.
// The name exists for diagnostics and does not participate in identity, so
// unrelated packages may reuse a display name without colliding.
type Kind struct {
	name   string
	serial uint64
	hash   uint64
}

// Predeclared kinds backing the distinguished qualifiers.
var (
	KindAll     = NewKind("all")
	KindDefault = NewKind("default")
	KindNull    = NewKind("null")
	KindNamed   = NewKind("named")
)

var kindSerial atomic.Uint64

// NewKind creates a new, unique qualifier kind with the given display name.
// Kinds are typically declared once as package-level variables.
func NewKind(name string) *Kind {
	serial := kindSerial.Add(1)
	return &Kind{
		name:   name,
		serial: serial,
		hash:   mix(xxhash.Sum64String(name), serial),
	}
}

// Name returns the display name assigned at creation.
func (k *Kind) Name() string { return k.name }

// Hash returns the kind's precomputed hash. It combines the name hash with
// the creation serial, so two kinds sharing a name still hash apart.
func (k *Kind) Hash() uint64 { return k.hash }

// String returns the display name.
func (k *Kind) String() string { return k.name }

// key returns the canonical encoding of the kind, unique per identity.
func (k *Kind) key() string {
	return fmt.Sprintf("%s#%d", k.name, k.serial)
}

// mix folds b into a with an xxhash pass over the concatenated digests.
// It is the common combiner for all cached hashes in this package.
func mix(a, b uint64) uint64 {
	var buf [16]byte
	putUint64(buf[0:8], a)
	putUint64(buf[8:16], b)
	return xxhash.Sum64(buf[:])
}

func putUint64(b []byte, v uint64) {
	_ = b[7]
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}
