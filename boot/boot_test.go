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

package boot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deep-rent/cdi/boot"
	"github.com/deep-rent/cdi/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type worker struct {
	started bool
	closed  bool
}

func declareWorker(c *container.Container) container.Resource[*worker] {
	r := container.NewResource[*worker](c.Global())
	container.Provide(c, r, func() (*worker, error) {
		return &worker{}, nil
	})
	container.Dispose(c, r, func(w **worker) error {
		(*w).closed = true
		return nil
	})
	return r
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	c := container.New()
	r := declareWorker(c)

	ctx, cancel := context.WithCancel(t.Context())
	var w *worker

	done := make(chan error, 1)
	go func() {
		done <- boot.Run(c, []boot.Component{
			boot.Use(c, r, func(ctx context.Context, v *worker) error {
				w = v
				v.started = true
				<-ctx.Done()
				return ctx.Err()
			}),
		}, boot.WithContext(ctx), boot.WithTimeout(5*time.Second))
	}()

	// Give the component a moment to start, then trigger the shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}

	require.NotNil(t, w)
	assert.True(t, w.started)
	assert.True(t, w.closed, "disposer must run during teardown")
}

func TestRun_NaturalExit(t *testing.T) {
	c := container.New()
	r := declareWorker(c)

	var w *worker
	err := boot.Run(c, []boot.Component{
		boot.Use(c, r, func(ctx context.Context, v *worker) error {
			w = v
			return nil // done immediately
		}),
	})
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, w.closed)
}

func TestRun_ComponentError(t *testing.T) {
	c := container.New()
	r := declareWorker(c)
	boom := errors.New("boom")

	err := boot.Run(c, []boot.Component{
		boot.Use(c, r, func(context.Context, *worker) error {
			return boom
		}),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRun_ComponentPanic(t *testing.T) {
	c := container.New()

	err := boot.Run(c, []boot.Component{
		boot.Func("panicky", func(context.Context) error {
			panic("component panicked")
		}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component panicked")
}

func TestRun_ResolutionFailure(t *testing.T) {
	c := container.New()
	r := container.NewResource[*worker](c.Global()) // never provided

	err := boot.Run(c, []boot.Component{
		boot.Use(c, r, func(context.Context, *worker) error {
			t.Error("component must not run")
			return nil
		}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared resource")
}

func TestRun_MultipleComponents(t *testing.T) {
	c := container.New()

	errFirst := errors.New("first failed")
	started := make(chan struct{})

	err := boot.Run(c, []boot.Component{
		boot.Func("first", func(ctx context.Context) error {
			<-started
			return errFirst
		}),
		boot.Func("second", func(ctx context.Context) error {
			close(started)
			// A failure in the sibling cancels this context.
			<-ctx.Done()
			return ctx.Err()
		}),
	}, boot.WithTimeout(5*time.Second))

	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
}
