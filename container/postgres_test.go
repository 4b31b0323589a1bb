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
	"context"
	"database/sql"
	"testing"

	"github.com/deep-rent/cdi/container"
	"github.com/deep-rent/cdi/qualifier"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestContainer_ManagedDatabase exercises the full lifecycle of a
// container-managed database handle against a real postgres: the provider
// opens the pool, a guarded scope shares it among nested activations, and
// the disposer closes it when the last activation ends.
func TestContainer_ManagedDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("cdi"),
		postgres.WithUsername("cdi"),
		postgres.WithPassword("secret"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	c := container.New()
	scope := container.NewGuardedScope("request")
	db := container.NewResource[*sql.DB](scope, qualifier.Named("primary"))

	opened := 0
	require.NoError(t, container.Provide(c, db, func() (*sql.DB, error) {
		pool, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		if err := pool.PingContext(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		opened++
		return pool, nil
	}))
	container.Dispose(c, db, func(pool **sql.DB) error {
		return (*pool).Close()
	})

	t.Run("requests outside the scope fail", func(t *testing.T) {
		_, err := container.Get(c, db)
		var inactive *container.InactiveScopeError
		require.ErrorAs(t, err, &inactive)
	})

	act := scope.Enter(c)
	pool := container.Must(c, db)

	var one int
	require.NoError(t, pool.QueryRowContext(ctx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	t.Run("nested activations share the pool", func(t *testing.T) {
		inner := scope.Enter(c)
		defer inner.Close()
		assert.Same(t, pool, container.Must(c, db))
		assert.Equal(t, 1, opened)
	})

	require.NoError(t, act.Close())
	assert.Error(t, pool.PingContext(ctx),
		"closing the last activation must close the pool")

	t.Run("reactivation opens a fresh pool", func(t *testing.T) {
		act := scope.Enter(c)
		defer act.Close()

		fresh := container.Must(c, db)
		assert.NotSame(t, pool, fresh)
		require.NoError(t, fresh.PingContext(ctx))
		assert.Equal(t, 2, opened)
	})
}
