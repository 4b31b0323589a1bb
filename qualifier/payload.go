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
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Payload is typed user data carried by a qualifier. Implementations must be
// immutable; their hash and string form are folded into the owning
// qualifier's identity at construction time.
//
// The package ships payloads for the primitive types that cover practical
// use: StringPayload, IntPayload, FloatPayload, and BoolPayload. Custom
// implementations are possible but must guarantee that Equal implies equal
// Hash results.
type Payload interface {
	// Hash returns a stable hash of the payload value.
	Hash() uint64
	// Equal reports whether the payload equals another payload. Payloads of
	// different dynamic types are never equal.
	Equal(o Payload) bool
	// String returns a canonical textual form of the payload value.
	String() string
}

// StringPayload carries a string value.
type StringPayload string

func (p StringPayload) Hash() uint64 { return xxhash.Sum64String(string(p)) }

func (p StringPayload) Equal(o Payload) bool {
	q, ok := o.(StringPayload)
	return ok && p == q
}

func (p StringPayload) String() string { return strconv.Quote(string(p)) }

// IntPayload carries a signed integer value.
type IntPayload int64

func (p IntPayload) Hash() uint64 { return hashUint64(uint64(p)) }

func (p IntPayload) Equal(o Payload) bool {
	q, ok := o.(IntPayload)
	return ok && p == q
}

func (p IntPayload) String() string { return strconv.FormatInt(int64(p), 10) }

// FloatPayload carries a floating-point value. NaN payloads are equal to
// each other so that the hash/equality laws hold.
type FloatPayload float64

func (p FloatPayload) Hash() uint64 {
	f := float64(p)
	switch {
	case f == 0:
		f = 0 // fold -0 into +0
	case math.IsNaN(f):
		f = math.NaN() // fold NaN payloads onto one bit pattern
	}
	return hashUint64(math.Float64bits(f))
}

func (p FloatPayload) Equal(o Payload) bool {
	q, ok := o.(FloatPayload)
	if !ok {
		return false
	}
	if math.IsNaN(float64(p)) && math.IsNaN(float64(q)) {
		return true
	}
	return p == q
}

func (p FloatPayload) String() string {
	f := float64(p)
	if f == 0 {
		f = 0 // fold -0 into +0, as Hash does
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// BoolPayload carries a boolean value.
type BoolPayload bool

func (p BoolPayload) Hash() uint64 {
	if p {
		return hashUint64(1)
	}
	return hashUint64(0)
}

func (p BoolPayload) Equal(o Payload) bool {
	q, ok := o.(BoolPayload)
	return ok && p == q
}

func (p BoolPayload) String() string { return strconv.FormatBool(bool(p)) }

func hashUint64(v uint64) uint64 {
	var buf [8]byte
	putUint64(buf[:], v)
	return xxhash.Sum64(buf[:])
}
