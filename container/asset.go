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

	"go.uber.org/multierr"
)

// Phase is a point in the lifecycle of an asset. Phases are strictly
// ordered; an asset's phase never decreases during its lifetime, and
// Disposed terminates it.
type Phase uint8

const (
	// Allocated means the asset slot exists but holds no value yet.
	Allocated Phase = iota
	// Provided means the provider has produced the instance.
	Provided
	// Injected means all registered injectors have run.
	Injected
	// Created means the initializer has run; the instance is ready for use.
	Created
	// Disposed means the disposer has run; the instance must not be used.
	Disposed
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case Allocated:
		return "allocated"
	case Provided:
		return "provided"
	case Injected:
		return "injected"
	case Created:
		return "created"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Asset is one storage slot for one instance: a type-erased value together
// with its current lifecycle phase. Assets start out Allocated and empty.
type Asset struct {
	value any
	phase Phase
}

func newAsset() *Asset {
	return &Asset{phase: Allocated}
}

// Value returns the stored instance, type-erased. It is nil until the asset
// reaches the Provided phase.
func (a *Asset) Value() any { return a.value }

// Phase returns the asset's current lifecycle phase.
func (a *Asset) Phase() Phase { return a.phase }

// set replaces the stored value. Injectors and disposers receive the
// instance by mutable reference, so their managers write the possibly
// mutated value back through set.
func (a *Asset) set(v any) { a.value = v }

// advance moves the asset to a later phase. Moving backwards indicates a
// bug in the engine and panics.
func (a *Asset) advance(p Phase) {
	if p < a.phase {
		panic(fmt.Sprintf(
			"container: asset phase regression from %s to %s", a.phase, p,
		))
	}
	a.phase = p
}

// ValueAs extracts the stored value at type T. A mismatch between T and the
// stored dynamic type is a programmer bug, not a user-input error, and
// panics.
func ValueAs[T any](a *Asset, id ID) T {
	if a.value == nil {
		var zero T
		return zero
	}
	t, ok := a.value.(T)
	if !ok {
		panic(fmt.Sprintf(
			"container: asset for %s holds %T, not %s",
			id, a.value, reflect.TypeFor[T](),
		))
	}
	return t
}

// Context is the backing store of a scope: a map from resource ids to the
// assets it owns. Contexts are not safe for concurrent use.
type Context struct {
	entries map[ID]*Asset
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{entries: make(map[ID]*Asset)}
}

// Size returns the number of assets held.
func (c *Context) Size() int { return len(c.entries) }

// GetOrAllocate returns the asset stored under id, allocating a fresh one
// if none exists. The boolean reports whether the entry was newly created.
func (c *Context) GetOrAllocate(id ID) (*Asset, bool) {
	if a, ok := c.entries[id]; ok {
		return a, false
	}
	a := newAsset()
	c.entries[id] = a
	return a, true
}

// Drop removes the entry under id without running its disposer. It is used
// to unwind provisioning that failed partway.
func (c *Context) Drop(id ID) {
	delete(c.entries, id)
}

// Clear disposes every asset through the given callback and empties the
// context. Disposal order is unspecified, but every entry is disposed
// exactly once. A failing disposer does not stop disposal of the remaining
// entries; all failures are aggregated into the returned error.
func (c *Context) Clear(dispose DisposeFunc) error {
	var err error
	for id, a := range c.entries {
		err = multierr.Append(err, dispose(id, a))
	}
	clear(c.entries)
	return err
}

// DisposeFunc destroys one asset on behalf of a context or scope. The
// container supplies an implementation that locates the resource's manager
// and runs its disposer.
type DisposeFunc func(id ID, a *Asset) error
