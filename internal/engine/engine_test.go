package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traefik/yaegi/interp"

	"github.com/declsql/declsql/internal/sandbox"
)

const personV1 = `db.DefineTable("person",
	Field("name", "string", NotNull()),
)`

const personV2 = `db.DefineTable("person",
	Field("name", "string", NotNull()),
	Field("age", "integer"),
)`

func TestRunCreate(t *testing.T) {
	res, err := Run("", personV1, Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Equal(t, "postgres", res.Dialect)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.SQL, "-- start person --")
	assert.Contains(t, res.SQL, "CREATE TABLE person(")
	assert.Contains(t, res.SQL, "name VARCHAR(512) NOT NULL")
	assert.Contains(t, res.SQL, EndMarker)
}

func TestRunAlter(t *testing.T) {
	res, err := Run(personV1, personV2, Options{Dialect: "sqlite"})
	require.NoError(t, err)

	assert.Contains(t, res.SQL, "ALTER TABLE person ADD COLUMN age INTEGER;")
	assert.NotContains(t, res.SQL, "CREATE TABLE")
}

const profileV1 = `db.DefineTable("person",
	Field("name", "string"),
	Field("nickname", "string"),
)`

const profileV2 = `db.DefineTable("person",
	Field("name", "string", NotNull()),
	Field("birthday", "datetime"),
)`

func TestRunAlterPostgresFullChange(t *testing.T) {
	res, err := Run(profileV1, profileV2, Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Contains(t, res.SQL, "ALTER TABLE person ADD COLUMN birthday TIMESTAMP;")
	assert.Contains(t, res.SQL, "ALTER TABLE person ALTER COLUMN name SET NOT NULL;")
	assert.Contains(t, res.SQL, "ALTER TABLE person DROP COLUMN nickname;")
}

func TestRunAlterSQLiteAddOnly(t *testing.T) {
	res, err := Run(profileV1, profileV2, Options{Dialect: "sqlite"})
	require.NoError(t, err)

	// SQLite can only add columns in place.
	assert.Contains(t, res.SQL, "ALTER TABLE person ADD COLUMN birthday TIMESTAMP;")
	assert.NotContains(t, res.SQL, "NOT NULL")
	assert.NotContains(t, res.SQL, "DROP COLUMN")
}

func TestRunDropForRemovedTable(t *testing.T) {
	res, err := Run(personV1, "", Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Contains(t, res.SQL, "DROP TABLE person;")
}

func TestRunDialectAlias(t *testing.T) {
	res, err := Run("", personV1, Options{Dialect: "psql"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", res.Dialect)
}

func TestRunMissingNameWithoutMagicFails(t *testing.T) {
	code := `
if debugEnabled {
	db.DefineTable("debug_log")
}
` + personV1

	_, err := Run("", code, Options{Dialect: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--magic")
	assert.Contains(t, err.Error(), "debugEnabled")
}

func TestRunMagicStubsUndefinedName(t *testing.T) {
	code := `
if debugEnabled {
	db.DefineTable("debug_log")
}
` + personV1

	res, err := Run("", code, Options{Dialect: "postgres", Magic: true})
	require.NoError(t, err)

	assert.Greater(t, res.Attempts, 1)
	assert.Contains(t, res.SQL, "CREATE TABLE person(")
	// The guarded branch is treated as never taken.
	assert.NotContains(t, res.SQL, "debug_log")
}

func TestRunMagicStubValueUsage(t *testing.T) {
	code := `db.DefineTable("person",
	Field("name", "string", Default(settings.Attr("default_name").String())),
)`

	res, err := Run("", code, Options{Dialect: "postgres", Magic: true})
	require.NoError(t, err)

	// The placeholder stringifies to "", which becomes the default.
	assert.Contains(t, res.SQL, "DEFAULT ''")
}

func TestRunRelationRepair(t *testing.T) {
	code := `db.DefineTable("book",
	Field("title", "string"),
	Field("written_by", "reference author"),
)`

	res, err := Run("", code, Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Greater(t, res.Attempts, 1)
	assert.Contains(t, res.SQL, "-- start book --")
	assert.Contains(t, res.SQL, "REFERENCES author(id)")
	// The placeholder table stays out of the output.
	assert.NotContains(t, res.SQL, "-- start author --")
}

func TestRunImportRepair(t *testing.T) {
	code := `import "acme/models"

` + personV1

	res, err := Run("", code, Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Greater(t, res.Attempts, 1)
	assert.Contains(t, res.SQL, "CREATE TABLE person(")
}

func TestRunNoTablesCallsFunction(t *testing.T) {
	code := `func defineTables(db *DAL) {
	db.DefineTable("person", Field("name", "string"))
}`

	res, err := Run("", code, Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Greater(t, res.Attempts, 1)
	assert.Contains(t, res.SQL, "CREATE TABLE person(")
}

func TestRunCustomFunctionHint(t *testing.T) {
	code := `func setupSchema(db *DAL) {
	db.DefineTable("person", Field("name", "string"))
}`

	// The default function name does not match, so the run fails with
	// guidance naming the candidates tried.
	_, err := Run("", code, Options{Dialect: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defineTables")

	res, err := Run("", code, Options{Dialect: "postgres", Functions: []string{"setupSchema"}})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "CREATE TABLE person(")
}

func TestRunNoTablesAnywhereFails(t *testing.T) {
	_, err := Run("", `x := 1
_ = x`, Options{Dialect: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables found")
}

func TestRunUnrepairablePanicFailsFast(t *testing.T) {
	_, err := Run("", `panic("boom")`, Options{Dialect: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing snippet")
}

func TestRunSanitizeRejectsConnectionBinding(t *testing.T) {
	code := `db := Open("postgres://prod-host/app")
` + personV1

	_, err := Run("", code, Options{Dialect: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--magic")

	// With magic the binding is stripped and the run proceeds on the
	// recording DAL.
	res, err := Run("", code, Options{Dialect: "postgres", Magic: true})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "CREATE TABLE person(")
}

func TestRunNoDialect(t *testing.T) {
	_, err := Run("", personV1, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialect")
}

func TestRunExplicitTableFilter(t *testing.T) {
	code := personV1 + "\n" + `db.DefineTable("pet", Field("kind", "string"))`

	res, err := Run("", code, Options{Dialect: "postgres", Tables: []string{"pet"}})
	require.NoError(t, err)

	assert.Contains(t, res.SQL, "-- start pet --")
	assert.NotContains(t, res.SQL, "-- start person --")
}

func TestRunNoop(t *testing.T) {
	res, err := Run(personV1, personV2, Options{Dialect: "postgres", Noop: true})
	require.NoError(t, err)

	assert.Empty(t, res.SQL)
	assert.Contains(t, res.Scaffold, `. "declsql/sandbox"`)
	assert.Contains(t, res.Scaffold, "dbOld := db")
	assert.Contains(t, res.Scaffold, `"age"`)
}

func TestRunSyntaxError(t *testing.T) {
	_, err := Run("", `db.DefineTable("person"`, Options{Dialect: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing new snippet")
}

func TestSnapshot(t *testing.T) {
	schema, err := Snapshot(personV2, Options{Dialect: "postgres"})
	require.NoError(t, err)

	assert.Equal(t, []string{"person"}, schema.Tables)
	tbl := schema.DAL.Table("person")
	require.NotNil(t, tbl)
	assert.NotNil(t, tbl.Field("age"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, failNoTables, classify(errNoTables).kind)
	assert.Equal(t, failNoTables, classify(fmt.Errorf("render: %w", errNoTables)).kind)

	f := classify(errors.New(`7:3: undefined: maxNameLength`))
	assert.Equal(t, failMissingName, f.kind)
	assert.Equal(t, []string{"maxNameLength"}, f.names)

	f = classify(errors.New(`1:21: import "acme/models" error: unable to find source related to: "acme/models"`))
	assert.Equal(t, failImport, f.kind)
	assert.Equal(t, "acme/models", f.path)

	f = classify(interp.Panic{Value: &sandbox.RelationError{Table: "book", Ref: "author"}})
	assert.Equal(t, failRelation, f.kind)
	assert.Equal(t, "author", f.table)

	assert.Equal(t, failOther, classify(errors.New("something else")).kind)
}

func TestMaxRetriesBound(t *testing.T) {
	// Guards the loop budget against accidental changes.
	assert.Equal(t, 30, MaxRetries)
	assert.True(t, strings.HasPrefix(fmt.Sprintf(StartMarkerFormat, "t"), "-- start "))
}
