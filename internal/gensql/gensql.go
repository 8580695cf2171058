// Package gensql turns recorded table definitions into CREATE and
// ALTER statements. The ALTER path replays both versions of a table
// through the migrator in a scratch directory: the old version seeds
// the stored metadata, the new version migrates against it, and the
// filtered statement log is the diff.
package gensql

import (
	"fmt"
	"os"
	"strings"

	"github.com/declsql/declsql/internal/dialect"
	"github.com/declsql/declsql/internal/migrator"
	"github.com/declsql/declsql/internal/sandbox"
)

// Create renders the CREATE TABLE statement for one recorded table.
// An empty dialect is inferred from the table's DAL.
func Create(t *sandbox.Table, dialectName string) (string, error) {
	d, err := resolveDialect(t, dialectName)
	if err != nil {
		return "", err
	}

	dir, cleanup, err := scratchDir("")
	if err != nil {
		return "", err
	}
	defer cleanup()

	stmt, err := migrator.New(d, dir).CreateTable(t)
	if err != nil {
		return "", err
	}
	return stmt + "\n", nil
}

// Alter renders the ALTER and UPDATE statements that migrate the old
// version of a table to the new one. Identical versions yield "". A
// non-empty scratch directory is reused and kept, which lets callers
// chain migrations; otherwise a temporary directory is created and
// removed.
func Alter(oldT, newT *sandbox.Table, dialectName, scratch string) (string, error) {
	d, err := resolveDialect(newT, dialectName)
	if err != nil {
		return "", err
	}

	dir, cleanup, err := scratchDir(scratch)
	if err != nil {
		return "", err
	}
	defer cleanup()

	m := migrator.New(d, dir)

	// Seed the stored metadata with the old version, then start the
	// log fresh so it only holds the migration statements.
	if err := m.MigrateTable(oldT); err != nil {
		return "", fmt.Errorf("seeding old definition of %s: %w", oldT.Name, err)
	}
	if err := m.ResetLog(); err != nil {
		return "", err
	}

	if err := m.MigrateTable(newT); err != nil {
		return "", fmt.Errorf("migrating %s: %w", newT.Name, err)
	}

	log, err := m.Log()
	if err != nil {
		return "", err
	}
	return filterMigration(log), nil
}

// Generate renders the statements for one table transition: both
// versions present yields the ALTER path, a new-only table its CREATE
// statement, and an old-only table a DROP.
func Generate(oldT, newT *sandbox.Table, dialectName, scratch string) (string, error) {
	switch {
	case newT == nil && oldT == nil:
		return "", fmt.Errorf("no table definition given")
	case oldT == nil:
		return Create(newT, dialectName)
	case newT == nil:
		return fmt.Sprintf("DROP TABLE %s;\n", oldT.Name), nil
	default:
		return Alter(oldT, newT, dialectName, scratch)
	}
}

// filterMigration keeps only the statement lines that change an
// existing table. Everything else in the log (table creation during
// seeding, metadata notes) is noise for the diff.
func filterMigration(log string) string {
	var sb strings.Builder
	for _, line := range strings.Split(log, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "ALTER ") || strings.HasPrefix(trimmed, "UPDATE ") {
			sb.WriteString(trimmed)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func resolveDialect(t *sandbox.Table, explicit string) (string, error) {
	if explicit != "" {
		return dialect.Resolve(explicit)
	}
	if t != nil && t.DAL() != nil && t.DAL().Dialect() != "" {
		return dialect.Resolve(t.DAL().Dialect())
	}
	return "", fmt.Errorf("no dialect given and none recorded on the table definition")
}

// scratchDir returns the directory to materialize metadata in. A
// caller-supplied directory is created if needed and kept; an empty
// argument yields a temporary directory removed by the cleanup func.
func scratchDir(dir string) (string, func(), error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating scratch directory: %w", err)
		}
		return dir, func() {}, nil
	}
	tmp, err := os.MkdirTemp("", "declsql-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	return tmp, func() { os.RemoveAll(tmp) }, nil
}
