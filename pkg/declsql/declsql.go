// Package declsql provides a public API for turning declarative table
// definitions into SQL CREATE and ALTER statements.
//
// Definitions are plain Go snippets executed against a recording DAL;
// nothing ever touches a real database. Two versions of the same
// definition diff into the ALTER statements that migrate one to the
// other.
//
// Basic usage:
//
//	db := declsql.NewDAL("postgres")
//	person := db.DefineTable("person",
//	    declsql.Field("name", "string", declsql.NotNull()),
//	    declsql.Field("email", "string", declsql.Unique()),
//	)
//	sql, err := declsql.CreateSQL(person, "postgres")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(sql)
//
// For CLI usage, install the declsql command:
//
//	go install github.com/declsql/declsql/cmd/declsql@latest
package declsql

import (
	"github.com/declsql/declsql/internal/dialect"
	"github.com/declsql/declsql/internal/engine"
	"github.com/declsql/declsql/internal/gensql"
	"github.com/declsql/declsql/internal/sandbox"
)

// DAL records table definitions without touching a database.
type DAL = sandbox.DAL

// Table is the recorded snapshot of one table definition.
type Table = sandbox.Table

// Column describes a single field of a table definition.
type Column = sandbox.Column

// Option configures a Column.
type Option = sandbox.Option

// Options controls how snippets are executed and repaired.
type Options = engine.Options

// Result holds the generated SQL and execution details.
type Result = engine.Result

// Schema is the snapshot of a single definition version.
type Schema = engine.Schema

// NewDAL returns a recording DAL bound to the given dialect.
func NewDAL(dialectName string) *DAL {
	return sandbox.New(dialectName)
}

// OpenDAL returns a recording DAL whose dialect is taken from the
// connection string scheme, e.g. "postgres://localhost/app".
func OpenDAL(connString string) *DAL {
	return sandbox.Open(connString)
}

// Field builds a column definition for DAL.DefineTable.
func Field(name, kind string, opts ...Option) *Column {
	return sandbox.Field(name, kind, opts...)
}

// NotNull marks a field as NOT NULL.
func NotNull() Option { return sandbox.NotNull() }

// Unique marks a field as UNIQUE.
func Unique() Option { return sandbox.Unique() }

// Length sets the rendered length of a string field.
func Length(n int) Option { return sandbox.Length(n) }

// Default sets the field default value.
func Default(v any) Option { return sandbox.Default(v) }

// Requires records a validation requirement. It only exists so that
// snippets carrying validators execute cleanly; it has no effect on
// the generated SQL.
func Requires(v ...any) Option { return sandbox.Requires(v...) }

// CreateSQL renders the CREATE TABLE statement for a table.
//
// An empty dialect falls back to the dialect recorded on the table's
// DAL.
func CreateSQL(t *Table, dialectName string) (string, error) {
	return gensql.Create(t, dialectName)
}

// AlterSQL renders the statements that migrate oldT into newT.
//
// scratch names a directory for intermediate migration state; pass ""
// to use a temporary directory that is removed afterwards.
func AlterSQL(oldT, newT *Table, dialectName, scratch string) (string, error) {
	return gensql.Alter(oldT, newT, dialectName, scratch)
}

// GenerateSQL dispatches on which side exists: CREATE when only newT
// is given, DROP when only oldT, ALTER when both.
func GenerateSQL(oldT, newT *Table, dialectName, scratch string) (string, error) {
	return gensql.Generate(oldT, newT, dialectName, scratch)
}

// Run executes two versions of a definition snippet and returns the
// SQL that migrates the first to the second. An empty before snippet
// yields plain CREATE statements.
//
// Example:
//
//	res, err := declsql.Run(oldCode, newCode, declsql.Options{Dialect: "postgres"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.SQL)
func Run(before, after string, opts Options) (*Result, error) {
	return engine.Run(before, after, opts)
}

// Snapshot executes a single definition snippet and returns the
// tables it records, without generating SQL.
func Snapshot(code string, opts Options) (*Schema, error) {
	return engine.Snapshot(code, opts)
}

// SupportedDialects returns the list of supported SQL dialects.
func SupportedDialects() []string {
	return dialect.Supported()
}
