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

// Package boot runs an application whose object graph is managed by a
// container. It resolves the declared component resources, runs them
// concurrently until they finish or a shutdown signal arrives, and then
// clears the container so that every registered disposer executes.
//
// # Usage
//
//	c := container.New()
//	server := container.NewResource[*Server](c.Global())
//	// ... register providers, injectors, and disposers ...
//
//	err := boot.Run(c, []boot.Component{
//		boot.Use(c, server, func(ctx context.Context, s *Server) error {
//			return s.Listen(ctx)
//		}),
//	})
//
// Run blocks until all components return, any component fails, or SIGTERM /
// SIGINT is received. In every case, the container is cleared before Run
// returns, so resources are released in the disposers' care.
package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/deep-rent/cdi/container"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the default duration to wait for components to return
// after a shutdown signal is received.
const DefaultTimeout = 10 * time.Second

// Component is one runnable part of the application. Components are built
// with Use, which defers resource resolution until Run starts.
type Component struct {
	// Name identifies the component in logs and errors.
	Name string
	// resolve materializes the component's resource out of the container
	// and returns the function to run. It executes on the runner's main
	// goroutine, because instance resolution is a single logical task.
	resolve func() (func(ctx context.Context) error, error)
}

// Use builds a component around the resource r. When Run starts, the
// resource is resolved to a fully created instance and handed to fn
// together with the runner's context; fn should return once the context is
// canceled.
func Use[T any](
	c *container.Container,
	r container.Resource[T],
	fn func(ctx context.Context, v T) error,
) Component {
	return Component{
		Name: r.ID().String(),
		resolve: func() (func(ctx context.Context) error, error) {
			v, err := container.Get(c, r)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				return fn(ctx, v)
			}, nil
		},
	}
}

// Func wraps a plain function as a component that does not need a managed
// resource of its own.
func Func(name string, fn func(ctx context.Context) error) Component {
	return Component{
		Name: name,
		resolve: func() (func(ctx context.Context) error, error) {
			return fn, nil
		},
	}
}

// config holds configuration options for the runner.
type config struct {
	logger  *slog.Logger
	timeout time.Duration
	signals []os.Signal
	ctx     context.Context
}

// Option configures the runner.
type Option func(*config)

// WithLogger provides a custom logger for the runner. If not set, the
// runner defaults to slog.Default(). A nil value is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithTimeout sets a custom timeout for the graceful shutdown. If the
// components take longer than this duration to return after a shutdown
// signal, Run gives up and reports an error. A non-positive duration is
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSignals customizes which OS signals trigger a shutdown. If not used,
// SIGTERM and SIGINT do.
func WithSignals(signals ...os.Signal) Option {
	return func(c *config) {
		if len(signals) > 0 {
			c.signals = signals
		}
	}
}

// WithContext sets a parent context for the runner. Canceling it triggers
// a graceful shutdown. If not set, context.Background() is used. A nil
// value is ignored.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// Run resolves every component out of the container, runs them all until
// they return, one fails, or a shutdown signal arrives, and finally clears
// the container so that all disposers execute. It returns the first
// component error, a shutdown-timeout error, or any disposal failure.
func Run(
	c *container.Container,
	components []Component,
	opts ...Option,
) (err error) {
	cfg := config{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := signal.NotifyContext(cfg.ctx, cfg.signals...)
	defer cancel()

	// The container is torn down whichever way Run exits, so disposers are
	// guaranteed to execute.
	defer func() {
		if cerr := c.Clear(); cerr != nil {
			cfg.logger.Error("Container teardown failed", "error", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	// Resolution happens up front and sequentially: the instantiation
	// engine is a single logical task and must not be driven from the
	// component goroutines.
	runnables := make([]func(ctx context.Context) error, len(components))
	for i, comp := range components {
		run, rerr := comp.resolve()
		if rerr != nil {
			return fmt.Errorf("component %s: %w", comp.Name, rerr)
		}
		runnables[i] = run
	}

	g, gCtx := errgroup.WithContext(ctx)
	cfg.logger.Info("Application started", "components", len(components))

	for i, run := range runnables {
		name := components[i].Name
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := string(debug.Stack())
					err = fmt.Errorf(
						"component %s panic: %v\nstack: %s", name, r, stack,
					)
				}
			}()
			return run(gCtx)
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("application exited with error: %w", err)
		}
		cfg.logger.Info("Application stopped")
		return nil

	case <-ctx.Done():
		cfg.logger.Info("Shutdown signal received, initiating graceful shutdown")

		timer := time.NewTimer(cfg.timeout)
		defer timer.Stop()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("error during graceful shutdown: %w", err)
			}
			cfg.logger.Info("Shutdown completed successfully")
			return nil
		case <-timer.C:
			return fmt.Errorf("shutdown timed out after %v", cfg.timeout)
		}
	}
}
