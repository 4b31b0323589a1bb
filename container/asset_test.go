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
	"errors"
	"testing"

	"github.com/deep-rent/cdi/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_Ordering(t *testing.T) {
	phases := []container.Phase{
		container.Allocated,
		container.Provided,
		container.Injected,
		container.Created,
		container.Disposed,
	}
	for i := 1; i < len(phases); i++ {
		assert.True(t, phases[i-1] < phases[i],
			"%s must precede %s", phases[i-1], phases[i])
	}

	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	assert.Equal(t,
		[]string{"allocated", "provided", "injected", "created", "disposed"},
		names)
}

func TestAsset_ValueAs(t *testing.T) {
	c := container.New()
	r := container.NewResource[int](c.Global())

	require.NoError(t, container.Provide(c, r, func() (int, error) {
		return 42, nil
	}))
	require.Equal(t, 42, container.Must(c, r))

	asset, isNew, err := c.Global().GetAsset(r.ID())
	require.NoError(t, err)
	require.False(t, isNew)

	assert.True(t, asset.Phase() >= container.Created,
		"a fetched instance has reached at least the Created phase")
	assert.Equal(t, 42, container.ValueAs[int](asset, r.ID()))

	t.Run("mismatched type is a programmer bug", func(t *testing.T) {
		assert.Panics(t, func() {
			container.ValueAs[string](asset, r.ID())
		})
	})

	t.Run("empty asset reads as zero", func(t *testing.T) {
		ctx := container.NewContext()
		a, _ := ctx.GetOrAllocate(r.ID())
		assert.Zero(t, container.ValueAs[int](a, r.ID()))
	})
}

func TestContext_GetOrAllocate(t *testing.T) {
	c := container.New()
	r := container.NewResource[int](c.Global())
	ctx := container.NewContext()

	a1, isNew := ctx.GetOrAllocate(r.ID())
	require.True(t, isNew)
	require.NotNil(t, a1)
	assert.Equal(t, container.Allocated, a1.Phase())
	assert.Nil(t, a1.Value())

	a2, isNew := ctx.GetOrAllocate(r.ID())
	assert.False(t, isNew)
	assert.Same(t, a1, a2)
	assert.Equal(t, 1, ctx.Size())
}

func TestContext_Drop(t *testing.T) {
	c := container.New()
	r := container.NewResource[int](c.Global())
	ctx := container.NewContext()

	ctx.GetOrAllocate(r.ID())
	ctx.Drop(r.ID())
	assert.Zero(t, ctx.Size())

	_, isNew := ctx.GetOrAllocate(r.ID())
	assert.True(t, isNew, "a dropped entry is recreated from scratch")
}

func TestContext_Clear(t *testing.T) {
	c := container.New()
	r1 := container.NewResource[int](c.Global())
	r2 := container.NewResource[string](c.Global())
	r3 := container.NewResource[bool](c.Global())

	t.Run("every entry disposed exactly once", func(t *testing.T) {
		ctx := container.NewContext()
		ctx.GetOrAllocate(r1.ID())
		ctx.GetOrAllocate(r2.ID())

		seen := make(map[container.ID]int)
		err := ctx.Clear(func(id container.ID, _ *container.Asset) error {
			seen[id]++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, map[container.ID]int{r1.ID(): 1, r2.ID(): 1}, seen)
		assert.Zero(t, ctx.Size())
	})

	t.Run("a failing disposer does not stop the rest", func(t *testing.T) {
		ctx := container.NewContext()
		ctx.GetOrAllocate(r1.ID())
		ctx.GetOrAllocate(r2.ID())
		ctx.GetOrAllocate(r3.ID())

		boom := errors.New("boom")
		disposed := 0
		err := ctx.Clear(func(id container.ID, _ *container.Asset) error {
			disposed++
			if id == r2.ID() {
				return boom
			}
			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, disposed)
		assert.Zero(t, ctx.Size())
	})
}
