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
	"errors"
	"fmt"
	"slices"
)

// callback pairs a registered user function with the ordered list of
// resources whose instances must be resolved and passed as arguments when
// it runs. Arguments that are not resource handles are closed over at
// registration time instead, so they never appear here.
type callback struct {
	deps []ID
	// run invokes the user function. recv carries the current instance for
	// injectors, initializers, and disposers (nil for providers); args
	// carries the resolved dependency instances in declaration order. The
	// returned value replaces the stored instance.
	run func(recv any, args []any) (any, error)
}

// Manager holds everything registered for one resource: the provider, the
// ordered injectors, the optional initializer and disposer, and their
// injection lists. Managers are created through Declare (directly or as a
// side effect of Provide) and owned by the container.
//
// Each manager knows the concrete instance type of its resource; the
// generic registration functions perform the single downcast from the
// type-erased asset value at entry.
type Manager struct {
	id          ID
	provider    *callback
	injectors   []*callback
	initializer *callback
	disposer    *callback
}

// ID returns the identity of the managed resource.
func (m *Manager) ID() ID { return m.id }

// HasProvider reports whether a provider is installed.
func (m *Manager) HasProvider() bool { return m.provider != nil }

// HasInitializer reports whether an initializer is installed.
func (m *Manager) HasInitializer() bool { return m.initializer != nil }

// HasDisposer reports whether a disposer is installed.
func (m *Manager) HasDisposer() bool { return m.disposer != nil }

// NumInjectors returns the number of registered injectors.
func (m *Manager) NumInjectors() int { return len(m.injectors) }

// ProviderDeps returns the provider's injection list.
func (m *Manager) ProviderDeps() []ID {
	if m.provider == nil {
		return nil
	}
	return slices.Clone(m.provider.deps)
}

// InjectorDeps returns the injection list of the i-th injector.
func (m *Manager) InjectorDeps(i int) []ID {
	return slices.Clone(m.injectors[i].deps)
}

// InitializerDeps returns the initializer's injection list.
func (m *Manager) InitializerDeps() []ID {
	if m.initializer == nil {
		return nil
	}
	return slices.Clone(m.initializer.deps)
}

// DisposerDeps returns the disposer's injection list.
func (m *Manager) DisposerDeps() []ID {
	if m.disposer == nil {
		return nil
	}
	return slices.Clone(m.disposer.deps)
}

// setProvider installs the factory. Re-setting a provider is an illegal
// configuration.
func (m *Manager) setProvider(cb *callback) error {
	if m.provider != nil {
		return &ConfigError{ID: m.id, Reason: "provider already registered"}
	}
	m.provider = cb
	return nil
}

// addInjector appends an injector; registration order is invocation order.
func (m *Manager) addInjector(cb *callback) {
	m.injectors = append(m.injectors, cb)
}

// setInitializer installs the initializer, replacing any previous one.
func (m *Manager) setInitializer(cb *callback) {
	m.initializer = cb
}

// setDisposer installs the disposer, replacing any previous one.
func (m *Manager) setDisposer(cb *callback) {
	m.disposer = cb
}

// provide runs the provider and returns the produced instance. Provider
// dependencies are resolved to at least the Provided phase first.
func (m *Manager) provide(c *Container) (any, error) {
	if m.provider == nil {
		return nil, errors.New(reasonNoProvider)
	}
	return m.invoke(c, m.provider, nil, Provided)
}

// inject runs every injector in registration order against the instance and
// returns the possibly replaced value. Injector dependencies only need to
// be Provided, which is what lets the engine break cycles.
func (m *Manager) inject(c *Container, v any) (any, error) {
	for i, cb := range m.injectors {
		next, err := m.invoke(c, cb, v, Provided)
		if err != nil {
			return v, fmt.Errorf("injector %d: %w", i, err)
		}
		v = next
	}
	return v, nil
}

// initialize runs the initializer, if any, against the instance.
// Initializer dependencies are resolved to at least the Injected phase.
func (m *Manager) initialize(c *Container, v any) (any, error) {
	if m.initializer == nil {
		return v, nil
	}
	return m.invoke(c, m.initializer, v, Injected)
}

// dispose runs the disposer, if any, against the instance. Disposer
// dependencies are resolved to at least the Created phase.
func (m *Manager) dispose(c *Container, v any) (any, error) {
	if m.disposer == nil {
		return v, nil
	}
	return m.invoke(c, m.disposer, v, Created)
}

// invoke resolves the callback's injection list at the given minimum phase
// and runs the user function, converting panics into errors so a misbehaved
// callback cannot take down the engine.
func (m *Manager) invoke(
	c *Container,
	cb *callback,
	recv any,
	min Phase,
) (out any, err error) {
	args := make([]any, len(cb.deps))
	for i, dep := range cb.deps {
		v, err := c.get(dep, dep.Scope(), min)
		if err != nil {
			return recv, fmt.Errorf("dependency %s: %w", dep, err)
		}
		args[i] = v
	}
	defer func() {
		if r := recover(); r != nil {
			out = recv
			err = fmt.Errorf("panic in callback for %s: %v", m.id, r)
		}
	}()
	return cb.run(recv, args)
}

// recvAs downcasts the type-erased instance to its concrete type. Providers
// may legally produce a nil interface or pointer; that surfaces here as the
// zero value rather than a failed assertion.
func recvAs[T any](recv any) T {
	if recv == nil {
		var zero T
		return zero
	}
	return recv.(T)
}

// Declare returns the manager for r, creating an empty one if the resource
// was not declared before. Declaring the same resource twice yields the
// same manager.
func Declare[T any](c *Container, r Resource[T]) *Manager {
	return c.declare(r.ID())
}

// Provide installs a zero-dependency factory for r. Installing a second
// provider for the same resource fails with a ConfigError.
func Provide[T any](
	c *Container,
	r Resource[T],
	fn func() (T, error),
) error {
	return c.provide(r.ID(), &callback{
		run: func(_ any, _ []any) (any, error) {
			return fn()
		},
	})
}

// Provide1 installs a factory for r depending on one resource. The
// dependency is resolved to at least the Provided phase and passed as the
// factory argument.
func Provide1[T, A any](
	c *Container,
	r Resource[T],
	fn func(A) (T, error),
	a Resource[A],
) error {
	return c.provide(r.ID(), &callback{
		deps: []ID{a.ID()},
		run: func(_ any, args []any) (any, error) {
			return fn(args[0].(A))
		},
	})
}

// Provide2 installs a factory for r depending on two resources.
func Provide2[T, A, B any](
	c *Container,
	r Resource[T],
	fn func(A, B) (T, error),
	a Resource[A],
	b Resource[B],
) error {
	return c.provide(r.ID(), &callback{
		deps: []ID{a.ID(), b.ID()},
		run: func(_ any, args []any) (any, error) {
			return fn(args[0].(A), args[1].(B))
		},
	})
}

// Provide3 installs a factory for r depending on three resources.
func Provide3[T, A, B, C any](
	c *Container,
	r Resource[T],
	fn func(A, B, C) (T, error),
	a Resource[A],
	b Resource[B],
	cc Resource[C],
) error {
	return c.provide(r.ID(), &callback{
		deps: []ID{a.ID(), b.ID(), cc.ID()},
		run: func(_ any, args []any) (any, error) {
			return fn(args[0].(A), args[1].(B), args[2].(C))
		},
	})
}

// Inject appends a dependency-free injector for r. Injectors run in
// registration order after the provider, receiving the instance by mutable
// reference.
func Inject[T any](c *Container, r Resource[T], fn func(*T) error) {
	c.inject(r.ID(), &callback{
		run: func(recv any, _ []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t)
			return t, err
		},
	})
}

// Inject1 appends an injector for r depending on one resource. The
// dependency is resolved to at least the Provided phase, so injector edges
// may participate in dependency cycles.
func Inject1[T, A any](
	c *Container,
	r Resource[T],
	fn func(*T, A) error,
	a Resource[A],
) {
	c.inject(r.ID(), &callback{
		deps: []ID{a.ID()},
		run: func(recv any, args []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t, args[0].(A))
			return t, err
		},
	})
}

// Inject2 appends an injector for r depending on two resources.
func Inject2[T, A, B any](
	c *Container,
	r Resource[T],
	fn func(*T, A, B) error,
	a Resource[A],
	b Resource[B],
) {
	c.inject(r.ID(), &callback{
		deps: []ID{a.ID(), b.ID()},
		run: func(recv any, args []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t, args[0].(A), args[1].(B))
			return t, err
		},
	})
}

// Inject3 appends an injector for r depending on three resources.
func Inject3[T, A, B, C any](
	c *Container,
	r Resource[T],
	fn func(*T, A, B, C) error,
	a Resource[A],
	b Resource[B],
	cc Resource[C],
) {
	c.inject(r.ID(), &callback{
		deps: []ID{a.ID(), b.ID(), cc.ID()},
		run: func(recv any, args []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t, args[0].(A), args[1].(B), args[2].(C))
			return t, err
		},
	})
}

// Initialize installs the single initializer for r, replacing any previous
// one. It runs after all injectors, receiving the instance by mutable
// reference.
func Initialize[T any](c *Container, r Resource[T], fn func(*T) error) {
	c.initialize(r.ID(), &callback{
		run: func(recv any, _ []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t)
			return t, err
		},
	})
}

// Initialize1 installs an initializer for r depending on one resource. The
// dependency is resolved to at least the Injected phase.
func Initialize1[T, A any](
	c *Container,
	r Resource[T],
	fn func(*T, A) error,
	a Resource[A],
) {
	c.initialize(r.ID(), &callback{
		deps: []ID{a.ID()},
		run: func(recv any, args []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t, args[0].(A))
			return t, err
		},
	})
}

// Dispose installs the single disposer for r, replacing any previous one.
// It runs when the asset's context is cleared, receiving the instance by
// mutable reference.
func Dispose[T any](c *Container, r Resource[T], fn func(*T) error) {
	c.dispose(r.ID(), &callback{
		run: func(recv any, _ []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t)
			return t, err
		},
	})
}

// Dispose1 installs a disposer for r depending on one resource. The
// dependency is resolved to at least the Created phase; the checker's
// ordering constraint ensures it outlives r's disposal in consistent
// configurations.
func Dispose1[T, A any](
	c *Container,
	r Resource[T],
	fn func(*T, A) error,
	a Resource[A],
) {
	c.dispose(r.ID(), &callback{
		deps: []ID{a.ID()},
		run: func(recv any, args []any) (any, error) {
			t := recvAs[T](recv)
			err := fn(&t, args[0].(A))
			return t, err
		},
	})
}
