package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// migrationState — снимок (максимальная версия, число применённых).
func migrationState(t *testing.T, ctx context.Context, store *Store) (int64, int) {
	t.Helper()

	version, count, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	return version, count
}

func TestMigratorPostgresUpDownLifecycle(t *testing.T) {
	store := connectIntegrationStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Начинаем с чистого листа: откатываем всё, что могло остаться
	// от предыдущих прогонов.
	require.NoError(t, store.MigrateDown(ctx, 100))
	version, count := migrationState(t, ctx, store)
	require.Zero(t, version)
	require.Zero(t, count)

	// Полный прогон вверх применяет обе миграции.
	require.NoError(t, store.MigrateUp(ctx, 0))
	version, count = migrationState(t, ctx, store)
	require.EqualValues(t, 2, version)
	require.Equal(t, 2, count)

	// Повторный прогон ничего не меняет.
	require.NoError(t, store.MigrateUp(ctx, 0))
	version, count = migrationState(t, ctx, store)
	require.EqualValues(t, 2, version)
	require.Equal(t, 2, count)

	// Откат одной миграции снимает только верхнюю.
	require.NoError(t, store.MigrateDown(ctx, 1))
	version, count = migrationState(t, ctx, store)
	require.EqualValues(t, 1, version)
	require.Equal(t, 1, count)

	// steps<=0 для down означает одну миграцию.
	require.NoError(t, store.MigrateDown(ctx, 0))
	version, count = migrationState(t, ctx, store)
	require.Zero(t, version)
	require.Zero(t, count)

	// Down на пустой схеме — no-op.
	require.NoError(t, store.MigrateDown(ctx, 1))

	// Возвращаем схему, чтобы не ломать соседние интеграционные тесты.
	require.NoError(t, store.MigrateUp(ctx, 0))
}

func TestMigratorNilStoreGuards(t *testing.T) {
	t.Parallel()

	var store *Store
	ctx := context.Background()

	require.Error(t, store.MigrateUp(ctx, 0))
	require.Error(t, store.MigrateDown(ctx, 1))

	_, _, err := store.MigrationStatus(ctx)
	require.Error(t, err)
}
