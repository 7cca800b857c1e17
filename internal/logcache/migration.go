package logcache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/newhook/tidybot/internal/logging"
	tbsignal "github.com/newhook/tidybot/internal/signal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one versioned schema change, read from a file named
// <version>_<name>.sql with "-- +up" and "-- +down" sections.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// RunMigrations applies the pending cache schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrationsFS(ctx, db, migrationsFS)
}

func runMigrationsFS(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		logging.Debug("applying cache migration", "version", m.Version, "name", m.Name)

		tbsignal.BlockSignals()
		err := applyMigration(ctx, db, m)
		tbsignal.UnblockSignals()
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func readMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		base := strings.TrimSuffix(path.Base(p), ".sql")
		version, name, ok := strings.Cut(base, "_")
		if !ok {
			return fmt.Errorf("invalid migration filename: %s", path.Base(p))
		}

		up, down := splitSections(string(content))
		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			UpSQL:   up,
			DownSQL: down,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// splitSections returns the bodies of the "-- +up" and "-- +down" sections.
// Lines before the first marker are ignored.
func splitSections(content string) (up, down string) {
	var upLines, downLines []string
	var current *[]string

	for _, line := range strings.Split(content, "\n") {
		switch trimmed := strings.TrimSpace(line); {
		case strings.HasPrefix(trimmed, "-- +up"):
			current = &upLines
		case strings.HasPrefix(trimmed, "-- +down"):
			current = &downLines
		case current != nil:
			*current = append(*current, line)
		}
	}

	return strings.Join(upLines, "\n"), strings.Join(downLines, "\n")
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.UpSQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// splitStatements splits on semicolons outside quoted strings and drops
// "--" comment lines.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		if quote == 0 && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, r := range line {
			switch {
			case quote != 0:
				if r == quote {
					quote = 0
				}
			case r == '\'' || r == '"':
				quote = r
			case r == ';':
				flush()
				continue
			}
			current.WriteRune(r)
		}
		current.WriteRune('\n')
	}
	flush()

	return statements
}
