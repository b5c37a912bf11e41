package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"embed"
)

// Миграции зашиты в бинарь, чтобы cmd/migrate и авто-миграция при старте
// работали без доступа к исходникам.
//
//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsGlob = "sql/migrations/*.sql"
	// Ключ advisory-лока: одновременный запуск нескольких реплик не должен
	// гонять DDL параллельно.
	migrationLockKey = int64(73045192)

	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var migrationFileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type migration struct {
	version int64
	name    string
	upSQL   string
	downSQL string
}

type parsedMigrationFile struct {
	version   int64
	name      string
	direction string
	body      string
}

// MigrateUp применяет недостающие up-миграции; steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(ctx context.Context, conn *sql.Conn, migrations []migration) error {
		return applyPendingUp(ctx, conn, migrations, steps)
	})
}

// MigrateDown откатывает последние steps миграций; steps<=0 трактуется как 1.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(ctx context.Context, conn *sql.Conn, migrations []migration) error {
		return rollbackApplied(ctx, conn, migrations, steps)
	})
}

// MigrationStatus возвращает максимальную применённую версию и число записей
// в schema_migrations.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	if err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*)
		FROM schema_migrations
	`).Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}

	return version, count, nil
}

// withMigrationLock готовит соединение: advisory-лок, таблица версий,
// загруженный список миграций — и передаёт управление fn.
func (s *Store) withMigrationLock(
	ctx context.Context,
	fn func(ctx context.Context, conn *sql.Conn, migrations []migration) error,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	return fn(ctx, conn, migrations)
}

func applyPendingUp(ctx context.Context, conn *sql.Conn, migrations []migration, steps int) error {
	applied, err := appliedVersionSet(ctx, conn)
	if err != nil {
		return err
	}

	done := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := runMigrationTx(ctx, conn, m, "up"); err != nil {
			return err
		}
		done++
		if steps > 0 && done >= steps {
			break
		}
	}

	return nil
}

func rollbackApplied(ctx context.Context, conn *sql.Conn, migrations []migration, steps int) error {
	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.version] = m
	}

	versions, err := latestAppliedVersions(ctx, conn, steps)
	if err != nil {
		return err
	}

	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		if err := runMigrationTx(ctx, conn, m, "down"); err != nil {
			return err
		}
	}

	return nil
}

// runMigrationTx выполняет SQL миграции и запись в schema_migrations
// в одной транзакции.
func runMigrationTx(ctx context.Context, conn *sql.Conn, m migration, direction string) error {
	body := m.upSQL
	if direction == "down" {
		body = m.downSQL
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %d): %w", direction, m.version, err)
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, m.version, m.name, err)
	}

	if direction == "up" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, name, applied_at)
			VALUES ($1, $2, NOW())
		`, m.version, m.name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.version)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, m.version, m.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, m.version, m.name, err)
	}

	return nil
}

func appliedVersionSet(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	return applied, nil
}

func latestAppliedVersions(ctx context.Context, conn *sql.Conn, limit int) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT version
		FROM schema_migrations
		ORDER BY version DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations desc: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration desc: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations desc: %w", err)
	}

	return versions, nil
}

func parseMigrationFilename(path string) (parsedMigrationFile, error) {
	base := filepath.Base(path)
	matches := migrationFileRe.FindStringSubmatch(base)
	if len(matches) != 4 {
		return parsedMigrationFile{}, fmt.Errorf("invalid migration file name: %s", base)
	}

	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return parsedMigrationFile{}, fmt.Errorf("parse migration version from %s: %w", base, err)
	}

	return parsedMigrationFile{
		version:   version,
		name:      matches[2],
		direction: matches[3],
	}, nil
}

func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	parsed := make([]parsedMigrationFile, 0, len(files))
	for _, file := range files {
		p, err := parseMigrationFilename(file)
		if err != nil {
			return nil, err
		}

		bodyRaw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		p.body = strings.TrimSpace(string(bodyRaw))
		if p.body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", filepath.Base(file))
		}

		parsed = append(parsed, p)
	}

	return pairMigrations(parsed)
}

// pairMigrations сводит up/down половинки в полные миграции и проверяет,
// что ни одна половинка не потеряна и не задублирована.
func pairMigrations(files []parsedMigrationFile) ([]migration, error) {
	byVersion := make(map[int64]*migration)
	for _, f := range files {
		m, ok := byVersion[f.version]
		if !ok {
			m = &migration{version: f.version, name: f.name}
			byVersion[f.version] = m
		} else if m.name != f.name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", f.version, m.name, f.name)
		}

		switch f.direction {
		case "up":
			if m.upSQL != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", f.version)
			}
			m.upSQL = f.body
		case "down":
			if m.downSQL != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", f.version)
			}
			m.downSQL = f.body
		}
	}

	versions := make([]int64, 0, len(byVersion))
	for version := range byVersion {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	migrations := make([]migration, 0, len(versions))
	for _, version := range versions {
		m := byVersion[version]
		if m.upSQL == "" || m.downSQL == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", m.version, m.name)
		}
		migrations = append(migrations, *m)
	}

	return migrations, nil
}
