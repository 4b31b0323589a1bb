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
	"iter"
	"slices"
	"strings"
)

// Set is an unordered collection of qualifiers keyed by kind, holding at
// most one qualifier per kind. Inserting a qualifier whose kind is already
// present replaces the previous member.
//
// The set maintains a cached hash equal to the xor of its members' hashes,
// so equal sets always hash alike and mutations update the hash in O(1).
type Set struct {
	members map[*Kind]Qualifier
	hash    uint64
}

// NewSet creates a set holding the given qualifiers. Later arguments win
// when two share a kind.
func NewSet(qs ...Qualifier) *Set {
	s := &Set{members: make(map[*Kind]Qualifier, len(qs))}
	for _, q := range qs {
		s.Update(q)
	}
	return s
}

// Size returns the number of members.
func (s *Set) Size() int { return len(s.members) }

// Hash returns the xor of all member hashes. The empty set hashes to zero.
func (s *Set) Hash() uint64 { return s.hash }

// Contains reports whether the set holds a qualifier equal to q.
func (s *Set) Contains(q Qualifier) bool {
	m, ok := s.members[q.kind]
	return ok && m.Equal(q)
}

// ContainsSimilar reports whether the set holds a qualifier of q's kind,
// regardless of payload.
func (s *Set) ContainsSimilar(q Qualifier) bool {
	_, ok := s.members[q.kind]
	return ok
}

// Update inserts q, replacing any member of the same kind.
func (s *Set) Update(q Qualifier) {
	if q.Zero() {
		panic("qualifier: zero qualifier in set")
	}
	if old, ok := s.members[q.kind]; ok {
		s.hash ^= old.hash
	}
	s.members[q.kind] = q
	s.hash ^= q.hash
}

// DeleteSimilar removes the member of q's kind, if any, and reports whether
// a member was removed.
func (s *Set) DeleteSimilar(q Qualifier) bool {
	old, ok := s.members[q.kind]
	if !ok {
		return false
	}
	delete(s.members, q.kind)
	s.hash ^= old.hash
	return true
}

// DeleteEqual removes the member equal to q, if any, and reports whether a
// member was removed. A similar member with a different payload is left in
// place.
func (s *Set) DeleteEqual(q Qualifier) bool {
	old, ok := s.members[q.kind]
	if !ok || !old.Equal(q) {
		return false
	}
	delete(s.members, q.kind)
	s.hash ^= old.hash
	return true
}

// All returns an iterator over the members in unspecified order.
func (s *Set) All() iter.Seq[Qualifier] {
	return func(yield func(Qualifier) bool) {
		for _, q := range s.members {
			if !yield(q) {
				return
			}
		}
	}
}

// Equal reports whether s and o hold equal members. The comparison
// short-circuits on the cached hashes.
func (s *Set) Equal(o *Set) bool {
	if s.hash != o.hash || len(s.members) != len(o.members) {
		return false
	}
	for kind, q := range s.members {
		m, ok := o.members[kind]
		if !ok || !m.Equal(q) {
			return false
		}
	}
	return true
}

// Matches reports whether every member of s matches some member of o and
// vice versa. Individual matching is equality, except that All matches
// everything; in the absence of All on either side, Matches reduces to
// Equal. The empty set matches only the empty set.
func (s *Set) Matches(o *Set) bool {
	return s.covers(o) && o.covers(s)
}

// covers reports whether every member of o matches some member of s.
func (s *Set) covers(o *Set) bool {
	for _, q := range o.members {
		found := false
		for _, m := range s.members {
			if m.Matches(q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{
		members: make(map[*Kind]Qualifier, len(s.members)),
		hash:    s.hash,
	}
	for kind, q := range s.members {
		c.members[kind] = q
	}
	return c
}

// Key returns a canonical textual encoding of the set: the member keys in a
// stable order, joined by commas. Equal sets produce equal keys, and
// distinct sets produce distinct keys, which makes the result suitable as a
// map-key component.
func (s *Set) Key() string {
	if len(s.members) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s.members))
	for _, q := range s.members {
		keys = append(keys, q.key())
	}
	slices.Sort(keys)
	return strings.Join(keys, ",")
}

// String returns a diagnostic representation of the form "{a, b(1)}".
func (s *Set) String() string {
	parts := make([]string, 0, len(s.members))
	for _, q := range s.members {
		parts = append(parts, q.String())
	}
	slices.Sort(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}
