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

// engine holds the deferred-work state of one logical resolution task.
// Providers run eagerly during a request, but injection and initialization
// are deferred onto the two work stacks so that cyclically-dependent
// resources can interleave: a cycle made only of provider edges can never be
// resolved, while an injector edge breaks one, because injectors only need
// their dependency to be Provided, not fully wired.
//
// Creation work is preferred over injection work when both are pending, so
// fully-injected assets finish before newly-injected ones pile up
// unfinalized.
type engine struct {
	injectq []*deferred
	createq []*deferred
	depth   int
}

// deferred is one unit of postponed lifecycle work for an asset.
type deferred struct {
	id    ID
	scope Scope
	asset *Asset
	mgr   *Manager
}

// get drives the asset for id to at least the target phase and returns its
// value. It is the single instantiation entry point; providers, injectors,
// initializers, and disposers all route their dependency lookups back
// through it with the minimum phase their kind requires.
func (c *Container) get(id ID, scope Scope, target Phase) (any, error) {
	c.engine.depth++
	defer func() { c.engine.depth-- }()

	asset, isNew, err := scope.GetAsset(id)
	if err != nil {
		return nil, err
	}

	if isNew {
		if err := c.provision(id, scope, asset); err != nil {
			return nil, err
		}
	} else if asset.Phase() == Allocated {
		// The request re-entered a resource that is currently being
		// provisioned from within its own provider chain. No injector edge
		// can break a cycle that closes before the value exists.
		return nil, &InstantiationError{ID: id, Reason: reasonCycle}
	}

	for asset.Phase() < target {
		progressed, err := c.drainOne()
		if err != nil {
			return nil, err
		}
		if !progressed {
			return nil, &InstantiationError{ID: id, Reason: reasonCycle}
		}
	}

	// The outermost request leaves no work behind: everything deferred on
	// behalf of nested requests is finished before the value is handed out.
	if c.engine.depth == 1 {
		if err := c.drainAll(); err != nil {
			return nil, err
		}
	}

	return asset.Value(), nil
}

// provision runs the provider for a freshly allocated asset and schedules
// the remaining lifecycle work. On any failure the asset is removed from
// its scope again, so a later request starts from scratch.
func (c *Container) provision(id ID, scope Scope, asset *Asset) error {
	mgr := c.Managed(id)
	if mgr == nil {
		scope.DropAsset(id)
		return &InstantiationError{ID: id, Reason: reasonUndeclared}
	}

	v, err := mgr.provide(c)
	if err != nil {
		scope.DropAsset(id)
		return &InstantiationError{ID: id, Reason: "provider failed", Cause: err}
	}
	asset.set(v)
	asset.advance(Provided)
	c.logger.Debug("Provided instance", "resource", id.String())

	// A transient scope only tracks the asset while the provider runs;
	// release it now so later requests construct afresh.
	if t, ok := scope.(interface{ provisioned(ID) }); ok {
		t.provisioned(id)
	}

	d := &deferred{id: id, scope: scope, asset: asset, mgr: mgr}
	if mgr.NumInjectors() > 0 {
		c.engine.injectq = append(c.engine.injectq, d)
	} else {
		asset.advance(Injected)
	}
	if asset.Phase() == Injected {
		if mgr.HasInitializer() {
			c.engine.createq = append(c.engine.createq, d)
		} else {
			asset.advance(Created)
		}
	}
	return nil
}

// drainOne performs one unit of deferred work, preferring creation over
// injection, and reports whether any work was available.
func (c *Container) drainOne() (bool, error) {
	if n := len(c.engine.createq); n > 0 {
		d := c.engine.createq[n-1]
		c.engine.createq = c.engine.createq[:n-1]
		v, err := d.mgr.initialize(c, d.asset.Value())
		if err != nil {
			d.scope.DropAsset(d.id)
			return false, &InstantiationError{
				ID: d.id, Reason: "initializer failed", Cause: err,
			}
		}
		d.asset.set(v)
		d.asset.advance(Created)
		c.logger.Debug("Created instance", "resource", d.id.String())
		return true, nil
	}

	if n := len(c.engine.injectq); n > 0 {
		d := c.engine.injectq[n-1]
		c.engine.injectq = c.engine.injectq[:n-1]
		v, err := d.mgr.inject(c, d.asset.Value())
		if err != nil {
			d.scope.DropAsset(d.id)
			return false, &InstantiationError{
				ID: d.id, Reason: "injection failed", Cause: err,
			}
		}
		d.asset.set(v)
		d.asset.advance(Injected)
		if d.mgr.HasInitializer() {
			c.engine.createq = append(c.engine.createq, d)
		} else {
			d.asset.advance(Created)
		}
		return true, nil
	}

	return false, nil
}

// drainAll finishes every piece of deferred work.
func (c *Container) drainAll() error {
	for len(c.engine.createq) > 0 || len(c.engine.injectq) > 0 {
		if _, err := c.drainOne(); err != nil {
			return err
		}
	}
	return nil
}

// unwind discards deferred work left behind by a failed request and drops
// the affected assets from their scopes, so that a later request starts
// their provisioning from scratch instead of finding them stranded below
// the Created phase. It only acts once the whole resolution task has
// unwound.
func (c *Container) unwind() {
	if c.engine.depth != 0 {
		return
	}
	for _, d := range c.engine.injectq {
		d.scope.DropAsset(d.id)
	}
	for _, d := range c.engine.createq {
		d.scope.DropAsset(d.id)
	}
	c.engine.injectq = nil
	c.engine.createq = nil
}

// disposeAsset destroys one asset on behalf of a context being cleared. A
// missing manager or a failing disposer is reported but must not stop the
// caller from disposing the remaining assets; assets are never disposed
// twice.
func (c *Container) disposeAsset(id ID, asset *Asset) error {
	if asset.Phase() == Disposed {
		return nil
	}

	mgr := c.Managed(id)
	if mgr == nil {
		asset.advance(Disposed)
		return &DisposalError{ID: id, Reason: "no manager found"}
	}

	v, err := mgr.dispose(c, asset.Value())
	asset.set(v)
	asset.advance(Disposed)
	if err != nil {
		c.logger.Error("Disposer failed",
			"resource", id.String(),
			"error", err)
		return &DisposalError{ID: id, Reason: "disposer failed", Cause: err}
	}
	c.logger.Debug("Disposed instance", "resource", id.String())
	return nil
}
