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

package container

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/deep-rent/cdi/qualifier"
)

// ID is the type-erased identity of a resource: its instance type, its
// scope, and the canonical key of its qualifier set. IDs are immutable,
// comparable with ==, and usable as map keys. The scope participates in
// identity, so two resources with equal instance types and qualifiers but
// different scopes remain distinct.
type ID struct {
	typ   reflect.Type
	scope Scope
	quals string
	hash  uint64
}

func newID(typ reflect.Type, scope Scope, quals *qualifier.Set) ID {
	key := quals.Key()
	h := xxhash.Sum64String(typ.String())
	h = combine(h, scope.serial())
	h = combine(h, quals.Hash())
	return ID{typ: typ, scope: scope, quals: key, hash: h}
}

// Type returns the resource's instance type.
func (id ID) Type() reflect.Type { return id.typ }

// Scope returns the scope the resource is bound to.
func (id ID) Scope() Scope { return id.scope }

// Hash returns the hash cached at construction time. Equal IDs have equal
// hashes.
func (id ID) Hash() uint64 { return id.hash }

// Zero reports whether id is the invalid zero value.
func (id ID) Zero() bool { return id.typ == nil }

// String returns a diagnostic representation of the form
// "{quals}@type/scope", akin to a slot tag.
func (id ID) String() string {
	if id.typ == nil {
		return "<zero>"
	}
	return fmt.Sprintf("{%s}@%s/%s", id.quals, id.typ, id.scope.Name())
}

// Resource is a typed handle for a declared, scoped, qualified kind of
// instance. It binds the compile-time instance type T to a qualifier set
// and a scope; it holds no instances itself. Constructing a handle does not
// declare the resource with any container — registering a provider (or an
// explicit Declare) does.
type Resource[T any] struct {
	id    ID
	quals *qualifier.Set
}

// NewResource creates a handle for instances of type T in the given scope,
// distinguished by the given qualifiers. The handle keeps its own qualifier
// set and Qualifiers hands out copies, so mutating a returned set does not
// alter the handle's identity.
func NewResource[T any](scope Scope, quals ...qualifier.Qualifier) Resource[T] {
	if scope == nil {
		panic("container: nil scope")
	}
	set := qualifier.NewSet(quals...)
	typ := reflect.TypeFor[T]()
	return Resource[T]{id: newID(typ, scope, set), quals: set}
}

// ID returns the resource's type-erased identity.
func (r Resource[T]) ID() ID { return r.id }

// Qualifiers returns a copy of the resource's qualifier set.
func (r Resource[T]) Qualifiers() *qualifier.Set { return r.quals.Clone() }

// String returns the identity's diagnostic form.
func (r Resource[T]) String() string { return r.id.String() }

// combine folds b into a, mirroring the hash combiner used for qualifiers.
func combine(a, b uint64) uint64 {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(a >> (56 - 8*i))
		buf[i+8] = byte(b >> (56 - 8*i))
	}
	return xxhash.Sum64(buf[:])
}
