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

package container_test

import (
	"testing"

	"github.com/deep-rent/cdi/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardedScope_Turnstile(t *testing.T) {
	c := container.New()
	scope := container.NewGuardedScope("session")
	r := container.NewResource[*int](scope)

	require.NoError(t, container.Provide(c, r, func() (*int, error) {
		return new(int), nil
	}))

	t.Run("inactive scope rejects requests", func(t *testing.T) {
		require.False(t, scope.Active())
		_, err := container.Get(c, r)
		require.Error(t, err)

		var inactive *container.InactiveScopeError
		require.ErrorAs(t, err, &inactive)
		assert.Equal(t, "session", inactive.Scope)
	})

	outer := scope.Enter(c)
	v1 := container.Must(c, r)

	t.Run("nested activations share one context", func(t *testing.T) {
		inner := scope.Enter(c)
		assert.Same(t, v1, container.Must(c, r))

		require.NoError(t, inner.Close())
		assert.Same(t, v1, container.Must(c, r),
			"context survives until the last activation closes")
	})

	require.NoError(t, outer.Close())
	require.False(t, scope.Active())

	t.Run("reactivation starts a fresh context", func(t *testing.T) {
		act := scope.Enter(c)
		defer act.Close()

		v2 := container.Must(c, r)
		assert.NotSame(t, v1, v2)
	})
}

func TestGuardedScope_DisposesOnLastClose(t *testing.T) {
	c := container.New()
	scope := container.NewGuardedScope("session")
	r := container.NewResource[*int](scope)

	disposed := 0
	require.NoError(t, container.Provide(c, r, func() (*int, error) {
		return new(int), nil
	}))
	container.Dispose(c, r, func(**int) error {
		disposed++
		return nil
	})

	outer := scope.Enter(c)
	inner := scope.Enter(c)
	container.Must(c, r)

	require.NoError(t, inner.Close())
	assert.Zero(t, disposed, "inner close must not dispose the shared context")

	require.NoError(t, outer.Close())
	assert.Equal(t, 1, disposed)

	t.Run("close is idempotent", func(t *testing.T) {
		require.NoError(t, outer.Close())
		assert.Equal(t, 1, disposed)
	})
}

func TestLocalScope_Stacking(t *testing.T) {
	c := container.New()
	scope := container.NewLocalScope("task")
	r := container.NewResource[*int](scope)

	require.NoError(t, container.Provide(c, r, func() (*int, error) {
		n := new(int)
		*n = 10
		return n, nil
	}))

	t.Run("empty stack rejects requests", func(t *testing.T) {
		_, err := container.Get(c, r)
		require.Error(t, err)

		var inactive *container.InactiveScopeError
		require.ErrorAs(t, err, &inactive)
	})

	outer := scope.Enter(c)
	p1 := container.Must(c, r)
	require.Equal(t, 10, *p1)

	inner := scope.Enter(c)
	assert.Equal(t, 2, scope.Depth())
	p2 := container.Must(c, r)
	assert.NotSame(t, p1, p2, "nested activations hold distinct instances")

	require.NoError(t, inner.Close())
	assert.Same(t, p1, container.Must(c, r),
		"popping the inner context re-exposes the outer instance")

	require.NoError(t, outer.Close())
	assert.Zero(t, scope.Depth())
}

func TestLocalScope_DisposesOnClose(t *testing.T) {
	c := container.New()
	scope := container.NewLocalScope("task")
	r := container.NewResource[*int](scope)

	var disposed []*int
	require.NoError(t, container.Provide(c, r, func() (*int, error) {
		return new(int), nil
	}))
	container.Dispose(c, r, func(p **int) error {
		disposed = append(disposed, *p)
		return nil
	})

	outer := scope.Enter(c)
	p1 := container.Must(c, r)
	inner := scope.Enter(c)
	p2 := container.Must(c, r)

	require.NoError(t, inner.Close())
	require.Equal(t, []*int{p2}, disposed,
		"closing the inner activation disposes only its context")

	require.NoError(t, outer.Close())
	assert.Equal(t, []*int{p2, p1}, disposed)
}

func TestContainer_ClearScope(t *testing.T) {
	c := container.New()
	r := container.NewResource[*int](c.Global())

	disposed := 0
	require.NoError(t, container.Provide(c, r, func() (*int, error) {
		return new(int), nil
	}))
	container.Dispose(c, r, func(**int) error {
		disposed++
		return nil
	})

	p1 := container.Must(c, r)
	require.NoError(t, c.ClearScope(c.Global()))
	assert.Equal(t, 1, disposed)

	// The manager survives, so the scope refills on demand.
	p2 := container.Must(c, r)
	assert.NotSame(t, p1, p2)
}

func TestScopes_ClearViaContainer(t *testing.T) {
	c := container.New()
	guarded := container.NewGuardedScope("session")
	rg := container.NewResource[*int](guarded)
	rGlobal := container.NewResource[*int](c.Global())

	disposed := 0
	count := func(**int) error { disposed++; return nil }

	require.NoError(t, container.Provide(c, rg, func() (*int, error) {
		return new(int), nil
	}))
	container.Dispose(c, rg, count)
	require.NoError(t, container.Provide(c, rGlobal, func() (*int, error) {
		return new(int), nil
	}))
	container.Dispose(c, rGlobal, count)

	act := guarded.Enter(c)
	container.Must(c, rg)
	container.Must(c, rGlobal)

	require.NoError(t, c.Clear())
	assert.Equal(t, 2, disposed, "Clear reaches every scope's context")

	// The activation's own close finds nothing left to dispose.
	require.NoError(t, act.Close())
	assert.Equal(t, 2, disposed)
}
