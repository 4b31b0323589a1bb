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

// Package container implements a lifecycle-managing dependency injection
// container. It resolves typed, qualified resources in dependency order,
// instantiates cyclically-dependent resources by interleaving provider-time
// and setter-time work, and disposes instances when their enclosing scope
// ends.
//
// The core concepts are:
//   - Resource: A typed handle naming a kind of instance by value type,
//     qualifier set, and scope.
//   - Manager: The per-resource record of provider, injectors, initializer,
//     and disposer, each with its declared dependency list.
//   - Scope: The storage policy deciding which requests share an instance
//     and when it is disposed.
//   - Phase: The lifecycle position of a stored instance, from Allocated
//     through Provided, Injected, and Created to Disposed.
//   - Container: The registry of managers and the owner of the
//     instantiation engine and the consistency checker.
//
// # Usage
//
// Model a feed whose reader and writer point at each other. The cycle is
// legal because the links are wired by injectors, which only need their
// dependency to exist, not to be fully wired:
//
//	type Reader struct{ W *Writer }
//	type Writer struct{ R *Reader }
//
//	c := container.New()
//	reader := container.NewResource[*Reader](c.Global())
//	writer := container.NewResource[*Writer](c.Global())
//
//	container.Provide(c, reader, func() (*Reader, error) {
//		return &Reader{}, nil
//	})
//	container.Provide(c, writer, func() (*Writer, error) {
//		return &Writer{}, nil
//	})
//	container.Inject1(c, reader, func(r **Reader, w *Writer) error {
//		(*r).W = w
//		return nil
//	}, writer)
//	container.Inject1(c, writer, func(w **Writer, r *Reader) error {
//		(*w).R = r
//		return nil
//	}, reader)
//
//	r := container.Must(c, reader)
//	w := container.Must(c, writer)
//	// r.W == w && w.R == r
//
// Had both links been provider arguments instead, no instantiation order
// would exist; the engine rejects the request and the offline checker
// (Container.Check) reports the cycle with both endpoints.
//
// Declaring resources is safe from multiple goroutines at once. The
// callbacks of one resource are installed on its manager without locking,
// so registering callbacks for the same resource concurrently is not safe.
// Instance resolution is a single logical task: the engine recurses through
// user-supplied providers and must not be driven from multiple goroutines
// at once.
package container

import (
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// Container is the registry of resource managers and the owner of the
// instantiation engine. The zero value is not usable; construct containers
// with New.
type Container struct {
	mu       sync.RWMutex
	managers map[ID]*Manager
	scopes   map[Scope]struct{}
	global   *GlobalScope
	logger   *slog.Logger
	engine   engine
}

// config holds configuration options for a Container.
type config struct {
	logger *slog.Logger
}

// Option configures a Container.
type Option func(*config)

// WithLogger provides a custom logger for the container. If not set, the
// container defaults to slog.Default(). A nil value is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.logger = log
		}
	}
}

// New creates an empty container with its own global scope.
func New(opts ...Option) *Container {
	cfg := config{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Container{
		managers: make(map[ID]*Manager),
		scopes:   make(map[Scope]struct{}),
		global:   newGlobalScope(),
		logger:   cfg.logger,
	}
	c.scopes[c.global] = struct{}{}
	return c
}

// Global returns the container's global scope: always active, cleared only
// by Clear or ClearScope.
func (c *Container) Global() *GlobalScope { return c.global }

// Managed returns the manager declared for id, or nil if the resource was
// never declared. Unlike declare, it does not create one.
func (c *Container) Managed(id ID) *Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.managers[id]
}

// Size returns the number of declared resources.
func (c *Container) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.managers)
}

// Clear disposes every scope's stored assets and then destroys all
// managers, returning the container to its freshly constructed state.
// Disposal failures are aggregated; clearing always completes.
func (c *Container) Clear() error {
	c.mu.Lock()
	scopes := make([]Scope, 0, len(c.scopes))
	for s := range c.scopes {
		scopes = append(scopes, s)
	}
	c.mu.Unlock()

	var err error
	for _, s := range scopes {
		err = multierr.Append(err, s.Clear(c.disposeAsset))
	}

	c.mu.Lock()
	c.managers = make(map[ID]*Manager)
	c.scopes = map[Scope]struct{}{c.global: {}}
	c.mu.Unlock()

	c.logger.Debug("Container cleared")
	return err
}

// ClearScope disposes every asset the given scope currently stores,
// leaving the scope itself usable. Managers are unaffected.
func (c *Container) ClearScope(s Scope) error {
	return s.Clear(c.disposeAsset)
}

// declare returns the manager for id, creating one if necessary, and
// remembers the resource's scope for Clear.
func (c *Container) declare(id ID) *Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.managers[id]
	if !ok {
		m = &Manager{id: id}
		c.managers[id] = m
		c.scopes[id.Scope()] = struct{}{}
		c.logger.Debug("Declared resource", "resource", id.String())
	}
	return m
}

func (c *Container) provide(id ID, cb *callback) error {
	if err := c.declare(id).setProvider(cb); err != nil {
		return err
	}
	c.logger.Debug("Registered provider",
		"resource", id.String(),
		"deps", len(cb.deps))
	return nil
}

func (c *Container) inject(id ID, cb *callback) {
	m := c.declare(id)
	m.addInjector(cb)
	c.logger.Debug("Registered injector",
		"resource", id.String(),
		"position", m.NumInjectors()-1)
}

func (c *Container) initialize(id ID, cb *callback) {
	c.declare(id).setInitializer(cb)
	c.logger.Debug("Registered initializer", "resource", id.String())
}

func (c *Container) dispose(id ID, cb *callback) {
	c.declare(id).setDisposer(cb)
	c.logger.Debug("Registered disposer", "resource", id.String())
}

// Get resolves r to a fully created instance, driving it (and anything it
// depends on) through the provider, injector, and initializer phases. The
// returned instance has reached at least the Created phase.
func Get[T any](c *Container, r Resource[T]) (T, error) {
	v, err := c.get(r.ID(), r.ID().Scope(), Created)
	if err != nil {
		c.unwind()
		var zero T
		return zero, err
	}
	return recvAs[T](v), nil
}

// Must resolves r like Get and panics on failure. It is intended for
// composition roots where a missing resource is unrecoverable.
func Must[T any](c *Container, r Resource[T]) T {
	v, err := Get(c, r)
	if err != nil {
		panic(err)
	}
	return v
}
