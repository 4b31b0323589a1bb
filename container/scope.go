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
	"sync/atomic"

	"go.uber.org/multierr"
)

// Scope is the policy that maps a resource id to the asset slot it should
// use. It determines whether instances are shared and when they are
// disposed. Scopes are bound into resource identities, so the same scope
// value must be used for every handle that should share storage.
//
// The package provides four policies: the container-owned GlobalScope, the
// turnstile-activated GuardedScope, the stack-activated LocalScope, and the
// never-persisting TransientScope.
type Scope interface {
	// Name returns the scope's diagnostic name.
	Name() string
	// GetAsset returns the asset slot for id and whether it was newly
	// allocated. It fails with an InactiveScopeError when the scope has no
	// live activation.
	GetAsset(id ID) (*Asset, bool, error)
	// DropAsset removes the slot for id without disposing it. The engine
	// calls it to unwind provisioning that failed partway.
	DropAsset(id ID)
	// Clear disposes every asset the scope currently stores through the
	// given callback. Failures are aggregated; disposal continues.
	Clear(dispose DisposeFunc) error

	serial() uint64
}

var scopeSerial atomic.Uint64

// scopeBase carries the identity shared by all scope implementations.
type scopeBase struct {
	name string
	id   uint64
}

func newScopeBase(name string) scopeBase {
	return scopeBase{name: name, id: scopeSerial.Add(1)}
}

func (s *scopeBase) Name() string   { return s.name }
func (s *scopeBase) serial() uint64 { return s.id }

// GlobalScope owns a single context that is always active and never cleared
// automatically. Every container owns one, obtained via Container.Global;
// its assets live until Container.Clear or an explicit Container.ClearScope.
type GlobalScope struct {
	scopeBase
	ctx *Context
}

func newGlobalScope() *GlobalScope {
	return &GlobalScope{
		scopeBase: newScopeBase("global"),
		ctx:       NewContext(),
	}
}

// GetAsset returns the slot for id; the global scope is always active.
func (s *GlobalScope) GetAsset(id ID) (*Asset, bool, error) {
	a, isNew := s.ctx.GetOrAllocate(id)
	return a, isNew, nil
}

// DropAsset removes the slot for id without disposing it.
func (s *GlobalScope) DropAsset(id ID) { s.ctx.Drop(id) }

// Clear disposes and removes every stored asset.
func (s *GlobalScope) Clear(dispose DisposeFunc) error {
	return s.ctx.Clear(dispose)
}

// Activation is a live entry into a guarded or local scope. Closing it ends
// the activation; closing the last activation of a guarded scope, or any
// activation of a local scope, disposes the context it guards. Close is
// idempotent.
type Activation struct {
	closed  bool
	release func() error
}

// Close ends the activation and runs any disposal it triggers. Calling
// Close again is a no-op.
func (a *Activation) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.release()
}

// GuardedScope shares one context among nested activations, counted by a
// turnstile. The first Enter creates the context; closing the last
// activation disposes it. Requests while no activation is live fail with an
// InactiveScopeError.
type GuardedScope struct {
	scopeBase
	count int
	ctx   *Context
}

// NewGuardedScope creates a guarded scope with the given diagnostic name.
// Each call mints a distinct scope identity.
func NewGuardedScope(name string) *GuardedScope {
	return &GuardedScope{scopeBase: newScopeBase(name)}
}

// Enter increments the turnstile and returns the activation that decrements
// it again. The container parameter supplies the disposers run when the
// turnstile returns to zero.
func (s *GuardedScope) Enter(c *Container) *Activation {
	s.count++
	if s.ctx == nil {
		s.ctx = NewContext()
	}
	return &Activation{release: func() error {
		if s.count > 1 {
			s.count--
			return nil
		}
		// Dispose while the scope still counts as active, so disposers can
		// resolve dependencies out of the context being torn down.
		err := s.ctx.Clear(c.disposeAsset)
		s.count = 0
		s.ctx = nil
		return err
	}}
}

// Active reports whether the scope currently has a live activation.
func (s *GuardedScope) Active() bool { return s.count > 0 }

// GetAsset returns the slot for id within the shared context, or an
// InactiveScopeError while the turnstile is at zero.
func (s *GuardedScope) GetAsset(id ID) (*Asset, bool, error) {
	if s.count == 0 {
		return nil, false, &InactiveScopeError{Scope: s.name}
	}
	a, isNew := s.ctx.GetOrAllocate(id)
	return a, isNew, nil
}

// DropAsset removes the slot for id without disposing it.
func (s *GuardedScope) DropAsset(id ID) {
	if s.ctx != nil {
		s.ctx.Drop(id)
	}
}

// Clear disposes the shared context regardless of the turnstile state.
func (s *GuardedScope) Clear(dispose DisposeFunc) error {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Clear(dispose)
}

// LocalScope stacks contexts: each activation pushes a fresh context, asset
// requests target the top of the stack, and closing an activation pops and
// disposes its context. Nested activations therefore produce nested,
// distinct instances. Requests while the stack is empty fail with an
// InactiveScopeError.
type LocalScope struct {
	scopeBase
	stack []*Context
}

// NewLocalScope creates a local scope with the given diagnostic name. Each
// call mints a distinct scope identity.
func NewLocalScope(name string) *LocalScope {
	return &LocalScope{scopeBase: newScopeBase(name)}
}

// Enter pushes a fresh context and returns the activation that pops and
// disposes it again. Activations are expected to close in reverse entry
// order; an out-of-order close still disposes exactly its own context.
func (s *LocalScope) Enter(c *Container) *Activation {
	ctx := NewContext()
	s.stack = append(s.stack, ctx)
	return &Activation{release: func() error {
		// Dispose before popping, so disposers can resolve dependencies out
		// of the context being torn down.
		err := ctx.Clear(c.disposeAsset)
		for i := len(s.stack) - 1; i >= 0; i-- {
			if s.stack[i] == ctx {
				s.stack = append(s.stack[:i], s.stack[i+1:]...)
				break
			}
		}
		return err
	}}
}

// Depth returns the number of live activations.
func (s *LocalScope) Depth() int { return len(s.stack) }

// GetAsset returns the slot for id within the top context, or an
// InactiveScopeError while the stack is empty.
func (s *LocalScope) GetAsset(id ID) (*Asset, bool, error) {
	if len(s.stack) == 0 {
		return nil, false, &InactiveScopeError{Scope: s.name}
	}
	a, isNew := s.stack[len(s.stack)-1].GetOrAllocate(id)
	return a, isNew, nil
}

// DropAsset removes the slot for id from the top context without disposing
// it.
func (s *LocalScope) DropAsset(id ID) {
	if n := len(s.stack); n > 0 {
		s.stack[n-1].Drop(id)
	}
}

// Clear disposes every stacked context, bottom to top, and empties the
// stack. Live activations become no-ops when closed afterwards.
func (s *LocalScope) Clear(dispose DisposeFunc) error {
	var err error
	for _, ctx := range s.stack {
		err = multierr.Append(err, ctx.Clear(dispose))
	}
	s.stack = nil
	return err
}

// TransientScope never persists instances: every request constructs afresh,
// and nothing is stored once provisioning completes. The scope briefly
// tracks assets while their providers run so that a provider recursively
// requesting its own resource is still caught by the engine's cycle check.
type TransientScope struct {
	scopeBase
	inflight map[ID]*Asset
}

// NewTransientScope creates a transient scope with the given diagnostic
// name. Each call mints a distinct scope identity.
func NewTransientScope(name string) *TransientScope {
	return &TransientScope{
		scopeBase: newScopeBase(name),
		inflight:  make(map[ID]*Asset),
	}
}

// GetAsset returns a fresh slot for id, unless the same resource is already
// being provisioned, in which case the in-flight slot is returned so the
// engine can detect the cycle.
func (s *TransientScope) GetAsset(id ID) (*Asset, bool, error) {
	if a, ok := s.inflight[id]; ok {
		return a, false, nil
	}
	a := newAsset()
	s.inflight[id] = a
	return a, true, nil
}

// DropAsset releases the in-flight slot for id.
func (s *TransientScope) DropAsset(id ID) { delete(s.inflight, id) }

// provisioned releases the in-flight slot once the provider has produced a
// value; from here on, further requests construct afresh.
func (s *TransientScope) provisioned(id ID) { delete(s.inflight, id) }

// Clear drops any in-flight slots. The scope stores nothing else, so there
// is nothing to dispose; ownership of transient instances rests with their
// consumers.
func (s *TransientScope) Clear(DisposeFunc) error {
	clear(s.inflight)
	return nil
}

var (
	_ Scope = (*GlobalScope)(nil)
	_ Scope = (*GuardedScope)(nil)
	_ Scope = (*LocalScope)(nil)
	_ Scope = (*TransientScope)(nil)
)
