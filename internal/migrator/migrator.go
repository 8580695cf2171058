// Package migrator generates DDL from recorded table definitions
// without a live database. Each table's field layout is materialized
// to a .table metadata file in a scratch directory; migrating a table
// against that directory diffs the recorded definition with the stored
// one and appends the resulting statements to sql.log. Running the
// same definitions against a directory seeded from an older version of
// the schema therefore yields exactly the ALTER statements between the
// two versions.
package migrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/declsql/declsql/internal/dialect"
	"github.com/declsql/declsql/internal/sandbox"
)

// logName is the file collecting every statement the migrator emits.
const logName = "sql.log"

// FieldDef is the persisted form of one column. Defaults are stored as
// rendered SQL literals so comparisons stay dialect-stable.
type FieldDef struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Notnull bool    `json:"notnull,omitempty"`
	Unique  bool    `json:"unique,omitempty"`
	Length  int     `json:"length,omitempty"`
	Default *string `json:"default,omitempty"`
}

// TableDef is the content of a .table metadata file.
type TableDef struct {
	Table  string     `json:"table"`
	Fields []FieldDef `json:"fields"`
}

// Migrator materializes and migrates table definitions in one scratch
// directory for one dialect.
type Migrator struct {
	dialect string
	dir     string
}

// New creates a migrator. The dialect must be canonical and the
// directory must exist.
func New(dialectName, dir string) *Migrator {
	return &Migrator{dialect: dialectName, dir: dir}
}

// Dir returns the scratch directory.
func (m *Migrator) Dir() string { return m.dir }

func (m *Migrator) tableFile(name string) string {
	return filepath.Join(m.dir, name+".table")
}

// Has reports whether the directory holds metadata for the table.
func (m *Migrator) Has(name string) bool {
	_, err := os.Stat(m.tableFile(name))
	return err == nil
}

// CreateTable renders the CREATE TABLE statement for a recorded table,
// stores its metadata file, and logs the statement. It fails when the
// table already exists in the directory.
func (m *Migrator) CreateTable(t *sandbox.Table) (string, error) {
	if m.Has(t.Name) {
		return "", fmt.Errorf("table %s already migrated in %s", t.Name, m.dir)
	}

	var defs []string
	for _, col := range t.Fields {
		def, err := dialect.ColumnSQL(m.dialect, col)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, "    "+def)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s(\n%s\n);", t.Name, strings.Join(defs, ",\n"))

	if err := m.writeTableDef(t); err != nil {
		return "", err
	}
	if err := m.log(stmt); err != nil {
		return "", err
	}
	return stmt, nil
}

// MigrateTable diffs a recorded table against its stored metadata,
// logs the ALTER and UPDATE statements that close the gap, and rewrites
// the metadata file. A table with no stored metadata is created.
func (m *Migrator) MigrateTable(t *sandbox.Table) error {
	if !m.Has(t.Name) {
		_, err := m.CreateTable(t)
		return err
	}

	stored, err := m.readTableDef(t.Name)
	if err != nil {
		return err
	}
	current, err := m.toTableDef(t)
	if err != nil {
		return err
	}

	stmts, err := m.diffFields(t, stored, current)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := m.log(stmt); err != nil {
			return err
		}
	}
	return m.writeTableDef(t)
}

// DropTable logs a DROP TABLE statement and removes the metadata file.
func (m *Migrator) DropTable(name string) error {
	if err := m.log(fmt.Sprintf("DROP TABLE %s;", name)); err != nil {
		return err
	}
	err := os.Remove(m.tableFile(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing metadata for %s: %w", name, err)
	}
	return nil
}

// diffFields compares the stored and current field layouts the same
// way on every dialect, then renders only the statements the dialect
// can express. SQLite can only add columns in place, so drops and
// in-place changes are silently skipped there.
func (m *Migrator) diffFields(t *sandbox.Table, stored, current *TableDef) ([]string, error) {
	storedMap := make(map[string]FieldDef, len(stored.Fields))
	for _, f := range stored.Fields {
		storedMap[f.Name] = f
	}
	currentMap := make(map[string]FieldDef, len(current.Fields))
	for _, f := range current.Fields {
		currentMap[f.Name] = f
	}

	var stmts []string

	// Added columns, in declaration order.
	for _, f := range current.Fields {
		if _, exists := storedMap[f.Name]; exists {
			continue
		}
		col := t.Field(f.Name)
		def, err := dialect.ColumnSQL(m.dialect, col)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", t.Name, def))

		// Existing rows need the default backfilled before a NOT NULL
		// constraint can hold.
		if f.Notnull && f.Default != nil {
			stmts = append(stmts, fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL;",
				t.Name, f.Name, *f.Default, f.Name))
		}
	}

	// Removed columns, in stored order.
	for _, f := range stored.Fields {
		if _, exists := currentMap[f.Name]; exists {
			continue
		}
		if m.dialect == dialect.SQLite {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", t.Name, f.Name))
	}

	// Changed columns, in current order.
	for _, f := range current.Fields {
		old, exists := storedMap[f.Name]
		if !exists {
			continue
		}
		changed, err := m.alterColumn(t, old, f)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, changed...)
	}

	return stmts, nil
}

func (m *Migrator) alterColumn(t *sandbox.Table, old, cur FieldDef) ([]string, error) {
	typeChanged := old.Type != cur.Type || old.Length != cur.Length
	notnullChanged := old.Notnull != cur.Notnull
	defaultChanged := !sameDefault(old.Default, cur.Default)
	uniqueAdded := cur.Unique && !old.Unique

	if !typeChanged && !notnullChanged && !defaultChanged && !uniqueAdded {
		return nil, nil
	}

	col := t.Field(cur.Name)

	switch m.dialect {
	case dialect.SQLite:
		// In-place column changes are not expressible.
		return nil, nil

	case dialect.MySQL:
		var stmts []string
		if typeChanged || notnullChanged || defaultChanged {
			def, err := dialect.ColumnSQL(m.dialect, col)
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", t.Name, err)
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", t.Name, def))
		}
		if uniqueAdded {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD UNIQUE (%s);", t.Name, cur.Name))
		}
		return stmts, nil

	default: // postgres
		var stmts []string
		if typeChanged {
			sqlType, err := dialect.TypeFor(m.dialect, col)
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", t.Name, err)
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;",
				t.Name, cur.Name, sqlType))
		}
		if notnullChanged {
			verb := "DROP"
			if cur.Notnull {
				verb = "SET"
				if cur.Default != nil {
					stmts = append(stmts, fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL;",
						t.Name, cur.Name, *cur.Default, cur.Name))
				}
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s NOT NULL;",
				t.Name, cur.Name, verb))
		}
		if defaultChanged {
			if cur.Default != nil {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
					t.Name, cur.Name, *cur.Default))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;",
					t.Name, cur.Name))
			}
		}
		if uniqueAdded {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD UNIQUE (%s);", t.Name, cur.Name))
		}
		return stmts, nil
	}
}

func sameDefault(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func (m *Migrator) toTableDef(t *sandbox.Table) (*TableDef, error) {
	def := &TableDef{Table: t.Name}
	for _, col := range t.Fields {
		f := FieldDef{
			Name:    col.Name,
			Type:    col.Type,
			Notnull: col.Notnull,
			Unique:  col.Unique,
		}
		if col.Type == "string" {
			f.Length = col.Length
			if f.Length <= 0 {
				f.Length = 512
			}
		}
		if col.HasDefault {
			if lit, ok := dialect.DefaultLiteral(m.dialect, col.Default); ok {
				f.Default = &lit
			}
		}
		def.Fields = append(def.Fields, f)
	}
	return def, nil
}

func (m *Migrator) writeTableDef(t *sandbox.Table) error {
	def, err := m.toTableDef(t)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", t.Name, err)
	}
	if err := os.WriteFile(m.tableFile(t.Name), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", t.Name, err)
	}
	return nil
}

func (m *Migrator) readTableDef(name string) (*TableDef, error) {
	data, err := os.ReadFile(m.tableFile(name))
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", name, err)
	}
	var def TableDef
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", name, err)
	}
	return &def, nil
}

// log appends one statement to sql.log. Statements may span multiple
// lines; a blank line separates entries.
func (m *Migrator) log(stmt string) error {
	f, err := os.OpenFile(filepath.Join(m.dir, logName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening sql.log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(stmt + "\n"); err != nil {
		return fmt.Errorf("appending to sql.log: %w", err)
	}
	return nil
}

// Log returns the raw contents of sql.log ("" when nothing was logged).
func (m *Migrator) Log() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, logName))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sql.log: %w", err)
	}
	return string(data), nil
}

// ResetLog truncates sql.log, keeping table metadata intact. The diff
// engine uses it to separate the seeding phase from the migration
// phase.
func (m *Migrator) ResetLog() error {
	err := os.Remove(filepath.Join(m.dir, logName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncating sql.log: %w", err)
	}
	return nil
}
