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

// Package qualifier implements runtime annotations used to distinguish
// resources that share a value type.
//
// The core concepts are:
//   - Kind: A unique, named identity for a family of qualifiers.
//   - Payload: Optional typed user data carried by a qualifier.
//   - Qualifier: An immutable (kind, payload) annotation with a cached hash.
//   - Set: A small collection of qualifiers holding at most one per kind.
//
// Two qualifiers are equal when both their kinds and their payloads are
// equal. They are similar when only their kinds match, regardless of
// payload. During set matching, equality is the normal matching rule; the
// distinguished All qualifier is the exception and matches anything.
//
// # Usage
//
// Declare a kind once, then mint qualifiers from it:
//
//	var KindRegion = qualifier.NewKind("region")
//
//	eu := qualifier.New(KindRegion, qualifier.StringPayload("eu"))
//	us := qualifier.New(KindRegion, qualifier.StringPayload("us"))
//
//	eu.Equal(us)   // false: payloads differ
//	eu.Similar(us) // true: same kind
//
// Collect qualifiers into sets to form composite identities:
//
//	s := qualifier.NewSet(eu, qualifier.Named("primary"))
//	s.Size()                               // 2
//	s.Matches(qualifier.NewSet(eu))        // false
//	s.Contains(qualifier.Named("primary")) // true
//
// Inserting a qualifier whose kind is already present replaces the previous
// member, so a set never carries two payload variants of the same kind.
package qualifier

import (
	"fmt"
)

// Qualifier is an immutable runtime annotation consisting of a Kind and an
// optional Payload. The zero value is invalid; construct qualifiers with New
// or Tag, or use the predeclared All, Default, and Null.
type Qualifier struct {
	kind    *Kind
	payload Payload
	hash    uint64
}

// Predeclared qualifiers. All matches any other qualifier during set
// matching. Default and Null are plain zero-payload sentinels with no
// special matching behavior.
var (
	All     = Tag(KindAll)
	Default = Tag(KindDefault)
	Null    = Tag(KindNull)
)

// New creates a qualifier of the given kind carrying the given payload.
// A nil payload yields a zero-payload qualifier, equivalent to Tag(kind).
func New(kind *Kind, payload Payload) Qualifier {
	if kind == nil {
		panic("qualifier: nil kind")
	}
	h := kind.Hash()
	if payload != nil {
		h = mix(h, payload.Hash())
	}
	return Qualifier{kind: kind, payload: payload, hash: h}
}

// Tag creates a zero-payload qualifier of the given kind. For such
// qualifiers, equality collapses to kind identity.
func Tag(kind *Kind) Qualifier {
	return New(kind, nil)
}

// Named creates a qualifier of the predeclared KindNamed carrying the given
// name as a string payload. It is the common way to tell apart multiple
// resources of the same value type.
func Named(name string) Qualifier {
	return New(KindNamed, StringPayload(name))
}

// Kind returns the qualifier's kind.
func (q Qualifier) Kind() *Kind { return q.kind }

// Payload returns the qualifier's payload, or nil if it carries none.
func (q Qualifier) Payload() Payload { return q.payload }

// Hash returns the hash computed at construction time from the kind hash
// and the payload hash. Equal qualifiers have equal hashes.
func (q Qualifier) Hash() uint64 { return q.hash }

// Zero reports whether q is the invalid zero value.
func (q Qualifier) Zero() bool { return q.kind == nil }

// Equal reports whether q and o have the same kind and equal payloads.
// The comparison short-circuits on the cached hashes.
func (q Qualifier) Equal(o Qualifier) bool {
	if q.hash != o.hash || q.kind != o.kind {
		return false
	}
	if q.payload == nil || o.payload == nil {
		return q.payload == nil && o.payload == nil
	}
	return q.payload.Equal(o.payload)
}

// Similar reports whether q and o share the same kind, regardless of their
// payloads.
func (q Qualifier) Similar(o Qualifier) bool {
	return q.kind == o.kind
}

// Matches reports whether q matches o. Matching is equality, except that
// the All qualifier matches everything.
func (q Qualifier) Matches(o Qualifier) bool {
	if q.kind == KindAll || o.kind == KindAll {
		return true
	}
	return q.Equal(o)
}

// String returns a diagnostic representation of the form "kind" or
// "kind(payload)".
func (q Qualifier) String() string {
	if q.kind == nil {
		return "<zero>"
	}
	if q.payload == nil {
		return q.kind.Name()
	}
	return fmt.Sprintf("%s(%s)", q.kind.Name(), q.payload)
}

// key returns the canonical encoding of q used for stable set keys. Unlike
// String, it disambiguates distinct kinds that share a display name.
func (q Qualifier) key() string {
	if q.payload == nil {
		return q.kind.key()
	}
	return q.kind.key() + "=" + fmt.Sprintf("%T(%s)", q.payload, q.payload.String())
}
