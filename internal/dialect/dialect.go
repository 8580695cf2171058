// Package dialect maps the abstract field kinds recorded by the
// sandbox onto concrete SQL types for the supported database dialects,
// and resolves dialect names, aliases, and connection strings.
package dialect

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/declsql/declsql/internal/sandbox"
)

// Canonical dialect names. These double as database/sql driver names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
	MySQL    = "mysql"
)

// aliases maps accepted spellings to canonical dialect names.
var aliases = map[string]string{
	"postgres":   Postgres,
	"postgresql": Postgres,
	"psql":       Postgres,
	"pg":         Postgres,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"mysql":      MySQL,
	"mariadb":    MySQL,
}

// Supported returns the canonical dialect names in stable order.
func Supported() []string {
	return []string{Postgres, SQLite, MySQL}
}

// Resolve maps a dialect name or alias to its canonical form,
// case-insensitively.
func Resolve(name string) (string, error) {
	canonical, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unsupported dialect %q (supported: %s)",
			name, strings.Join(Supported(), ", "))
	}
	return canonical, nil
}

// Available returns the supported dialects whose database/sql driver is
// linked into the binary.
func Available() []string {
	registered := make(map[string]bool)
	for _, name := range sql.Drivers() {
		registered[name] = true
	}
	var out []string
	for _, d := range Supported() {
		if registered[d] {
			out = append(out, d)
		}
	}
	return out
}

// IsAvailable reports whether the dialect's driver is linked in.
func IsAvailable(dialect string) bool {
	for _, d := range Available() {
		if d == dialect {
			return true
		}
	}
	return false
}

// FromConnString infers the dialect from a connection string scheme.
func FromConnString(connStr string) (string, error) {
	if scheme, _, found := strings.Cut(connStr, "://"); found {
		if canonical, err := Resolve(scheme); err == nil {
			return canonical, nil
		}
	}
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		if canonical, err := Resolve(u.Scheme); err == nil {
			return canonical, nil
		}
	}
	return "", fmt.Errorf("unable to detect dialect from connection string %q", connStr)
}

// typeMap holds the per-dialect rendering of each abstract field kind.
// Kinds with a parameter (string length, reference target, decimal
// precision) are handled in TypeFor.
var typeMap = map[string]map[string]string{
	Postgres: {
		"id":       "SERIAL PRIMARY KEY",
		"string":   "VARCHAR(%d)",
		"text":     "TEXT",
		"integer":  "INTEGER",
		"bigint":   "BIGINT",
		"boolean":  "BOOLEAN",
		"datetime": "TIMESTAMP",
		"date":     "DATE",
		"time":     "TIME",
		"double":   "DOUBLE PRECISION",
		"blob":     "BYTEA",
		"json":     "JSONB",
	},
	SQLite: {
		"id":       "INTEGER PRIMARY KEY AUTOINCREMENT",
		"string":   "VARCHAR(%d)",
		"text":     "TEXT",
		"integer":  "INTEGER",
		"bigint":   "BIGINT",
		"boolean":  "BOOLEAN",
		"datetime": "TIMESTAMP",
		"date":     "DATE",
		"time":     "TIME",
		"double":   "DOUBLE",
		"blob":     "BLOB",
		"json":     "TEXT",
	},
	MySQL: {
		"id":       "INT AUTO_INCREMENT PRIMARY KEY",
		"string":   "VARCHAR(%d)",
		"text":     "LONGTEXT",
		"integer":  "INT",
		"bigint":   "BIGINT",
		"boolean":  "TINYINT(1)",
		"datetime": "DATETIME",
		"date":     "DATE",
		"time":     "TIME",
		"double":   "DOUBLE",
		"blob":     "LONGBLOB",
		"json":     "JSON",
	},
}

// referenceType is the integer kind used for foreign-key columns.
var referenceType = map[string]string{
	Postgres: "INTEGER",
	SQLite:   "INTEGER",
	MySQL:    "INT",
}

// TypeFor renders the SQL type of a column for the given canonical
// dialect.
func TypeFor(dialect string, col *sandbox.Column) (string, error) {
	kinds, ok := typeMap[dialect]
	if !ok {
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}

	kind := strings.TrimSpace(col.Type)
	switch {
	case kind == "string":
		length := col.Length
		if length <= 0 {
			length = 512
		}
		return fmt.Sprintf(kinds["string"], length), nil
	case strings.HasPrefix(kind, "reference "):
		target := strings.TrimSpace(strings.TrimPrefix(kind, "reference "))
		table, column, found := strings.Cut(target, ".")
		if !found {
			column = "id"
		}
		return fmt.Sprintf("%s REFERENCES %s(%s) ON DELETE CASCADE",
			referenceType[dialect], table, column), nil
	case strings.HasPrefix(kind, "decimal("):
		return strings.ToUpper(kind), nil
	}

	t, ok := kinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown field kind %q for column %s", col.Type, col.Name)
	}
	return t, nil
}

// ColumnSQL renders a full column definition: name, type, and the
// NOT NULL, UNIQUE, and DEFAULT clauses the column carries.
func ColumnSQL(dialect string, col *sandbox.Column) (string, error) {
	t, err := TypeFor(dialect, col)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(col.Name)
	sb.WriteString(" ")
	sb.WriteString(t)

	if col.Type != "id" {
		if col.Notnull {
			sb.WriteString(" NOT NULL")
		}
		if col.Unique {
			sb.WriteString(" UNIQUE")
		}
		if col.HasDefault {
			if lit, ok := DefaultLiteral(dialect, col.Default); ok {
				sb.WriteString(" DEFAULT ")
				sb.WriteString(lit)
			}
		}
	}
	return sb.String(), nil
}

// DefaultLiteral renders a recorded default value as a SQL literal.
// Values with no literal rendering (placeholders, functions) report
// false and are omitted from generated statements.
func DefaultLiteral(dialect string, v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", true
	case bool:
		if dialect == MySQL {
			if val {
				return "1", true
			}
			return "0", true
		}
		if val {
			return "TRUE", true
		}
		return "FALSE", true
	case int:
		return fmt.Sprintf("%d", val), true
	case int64:
		return fmt.Sprintf("%d", val), true
	case float64:
		return fmt.Sprintf("%g", val), true
	case nil:
		return "NULL", true
	default:
		return "", false
	}
}
