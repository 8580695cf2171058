// Package sandbox provides the schema-builder used by interpreted
// schema-definition snippets. A DAL records table structure declared
// through DefineTable and never opens a database connection; it exists
// purely so that declaration code can run in isolation and be diffed.
package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// DAL is a recording database abstraction layer. It accepts table
// definitions and keeps them in declaration order. All query-shaped
// operations are no-ops that return neutral values, so snippets that
// mix declarations with incidental queries still run.
type DAL struct {
	dialect string
	tables  map[string]*Table
	order   []string
}

// New creates a recording DAL. The dialect may be empty; it is only
// used when the caller later asks the diff engine to infer one.
func New(dialect string) *DAL {
	return &DAL{
		dialect: dialect,
		tables:  make(map[string]*Table),
	}
}

// Open creates a recording DAL from a connection string, keeping only
// the dialect implied by its scheme. No connection is made.
func Open(connString string) *DAL {
	scheme, _, found := strings.Cut(connString, "://")
	if !found {
		return New("")
	}
	return New(strings.ToLower(scheme))
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefineTable records a table definition and returns its snapshot.
// Redefining a table replaces the earlier snapshot, which is how
// placeholder declarations injected by the repair loop get superseded.
//
// DefineTable panics on malformed input: table definitions run inside
// variable initializers and loose statements in interpreted snippets,
// where an error return has nowhere to go. The execution orchestrator
// recovers the panic and classifies it.
func (d *DAL) DefineTable(name string, fields ...*Column) *Table {
	if !tableNameRe.MatchString(name) {
		panic(&DefinitionError{Table: name, Reason: "invalid table name"})
	}

	t := &Table{Name: name, dal: d}

	// Implicit auto-increment primary key, unless the snippet declares
	// its own id field.
	hasID := false
	for _, f := range fields {
		if f.Name == "id" {
			hasID = true
			break
		}
	}
	if !hasID {
		t.Fields = append(t.Fields, &Column{Name: "id", Type: "id", Notnull: true})
	}

	seen := map[string]bool{"id": !hasID}
	for _, f := range fields {
		if f == nil {
			continue
		}
		if seen[f.Name] {
			panic(&DefinitionError{Table: name, Reason: fmt.Sprintf("duplicate field %s", f.Name)})
		}
		seen[f.Name] = true

		if ref, ok := referencedTable(f.Type); ok && !d.Has(ref) {
			panic(&RelationError{Table: name, Ref: ref})
		}

		t.Fields = append(t.Fields, f)
	}

	if _, exists := d.tables[name]; !exists {
		d.order = append(d.order, name)
	}
	d.tables[name] = t
	return t
}

func referencedTable(fieldType string) (string, bool) {
	rest, ok := strings.CutPrefix(fieldType, "reference ")
	if !ok {
		return "", false
	}
	// "reference person.id" references the person table.
	ref, _, _ := strings.Cut(strings.TrimSpace(rest), ".")
	return ref, ref != ""
}

// Has reports whether a table with the given name was defined.
func (d *DAL) Has(name string) bool {
	_, ok := d.tables[name]
	return ok
}

// Table returns the snapshot for name, or nil when undefined.
func (d *DAL) Table(name string) *Table {
	return d.tables[name]
}

// Tables returns the defined table names in declaration order.
func (d *DAL) Tables() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Dialect returns the dialect the DAL was created with ("" when unknown).
func (d *DAL) Dialect() string { return d.dialect }

// Commit is a no-op; the sandbox never talks to a database.
func (d *DAL) Commit() {}

// ExecuteSQL is a no-op that swallows would-be queries in snippets.
func (d *DAL) ExecuteSQL(sql string, args ...any) Value { return Value{} }

// Table is the recorded snapshot of one DefineTable call.
type Table struct {
	Name   string
	Fields []*Column

	dal *DAL
}

// DAL returns the builder that recorded this table.
func (t *Table) DAL() *DAL { return t.dal }

// Field returns the named column, or nil.
func (t *Table) Field(name string) *Column {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Insert is a no-op recording stand-in for row insertion.
func (t *Table) Insert(args ...any) Value { return Value{} }

// Truncate is a no-op.
func (t *Table) Truncate() Value { return Value{} }

// Column describes a single field of a table definition.
type Column struct {
	Name       string
	Type       string
	Notnull    bool
	Unique     bool
	Length     int
	Default    any
	HasDefault bool
}

const defaultLength = 512

// Field constructs a column definition. Kind is one of the sandbox
// field kinds (string, text, integer, bigint, boolean, datetime, date,
// time, double, decimal(n,m), blob, json, id) or "reference <table>".
func Field(name, kind string, opts ...Option) *Column {
	c := &Column{Name: name, Type: kind, Length: defaultLength}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Column.
type Option func(*Column)

// NotNull marks the column as NOT NULL.
func NotNull() Option {
	return func(c *Column) { c.Notnull = true }
}

// Unique marks the column as UNIQUE.
func Unique() Option {
	return func(c *Column) { c.Unique = true }
}

// Length sets the length of string-kind columns.
func Length(n int) Option {
	return func(c *Column) { c.Length = n }
}

// Default records a column default. Values that cannot be rendered as
// SQL literals (functions, placeholders) are kept but excluded from
// generated statements.
func Default(v any) Option {
	return func(c *Column) {
		c.Default = v
		c.HasDefault = true
	}
}

// Requires attaches validators. The sandbox accepts and ignores them;
// they matter to the application, not to the schema shape.
func Requires(v ...any) Option {
	return func(c *Column) {}
}

// RelationError reports a reference field whose target table has not
// been defined yet.
type RelationError struct {
	Table string // table being defined
	Ref   string // table referenced
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("cannot resolve reference %s in %s definition", e.Ref, e.Table)
}

// DefinitionError reports an invalid table definition.
type DefinitionError struct {
	Table  string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid definition of table %s: %s", e.Table, e.Reason)
}
