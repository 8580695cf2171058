package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declsql/declsql/internal/script"
)

func parse(t *testing.T, src string) *script.File {
	t.Helper()
	f, err := script.Parse(src)
	require.NoError(t, err)
	return f
}

func source(t *testing.T, f *script.File) string {
	t.Helper()
	out, err := f.Source()
	require.NoError(t, err)
	return out
}

func TestRemoveImport(t *testing.T) {
	f := parse(t, "import (\n\t\"fmt\"\n\t\"os\"\n)\n\nfmt.Println(1)")

	assert.True(t, RemoveImport(f, "os"))
	out := source(t, f)
	assert.NotContains(t, out, `"os"`)
	assert.Contains(t, out, `"fmt"`)

	// Removing the last spec drops the declaration entirely.
	assert.True(t, RemoveImport(f, "fmt"))
	assert.NotContains(t, source(t, f), "import")

	assert.False(t, RemoveImport(f, "fmt"))
}

func TestRemoveLocalImports(t *testing.T) {
	f := parse(t, "import (\n\t\"fmt\"\n\t\"./models\"\n\t\"../shared\"\n)")

	assert.True(t, RemoveLocalImports(f))
	out := source(t, f)
	assert.Contains(t, out, `"fmt"`)
	assert.NotContains(t, out, "models")
	assert.NotContains(t, out, "shared")

	assert.False(t, RemoveLocalImports(f))
}

func TestRemoveSpecificVariables(t *testing.T) {
	f := parse(t, `
db := Open("postgres://localhost/app")
database := db
my_database := New("sqlite3")
my_database.DefineTable("person")
`)

	assert.True(t, RemoveSpecificVariables(f, "db", "database"))
	out := source(t, f)
	assert.NotContains(t, out, "Open(")
	assert.NotContains(t, out, "database := db")
	// Exact-name match only: my_database survives.
	assert.Contains(t, out, "my_database := New(\"sqlite3\")")
	assert.Contains(t, out, "my_database.DefineTable")
}

func TestRemoveSpecificVariablesMixedAssignment(t *testing.T) {
	f := parse(t, `x, db := setup()
use(x)`)

	assert.True(t, RemoveSpecificVariables(f, "db"))
	out := source(t, f)
	assert.Contains(t, out, "x, _ := setup()")
}

func TestRemoveSpecificVariablesVarDecl(t *testing.T) {
	f := parse(t, `var db = Open("mysql://h/d")
var keep = 1
_ = keep`)

	assert.True(t, RemoveSpecificVariables(f, "db"))
	out := source(t, f)
	assert.NotContains(t, out, "Open(")
	assert.Contains(t, out, "var keep = 1")
}

func TestRemoveSpecificVariablesInsideBlocks(t *testing.T) {
	f := parse(t, `
if ready {
	db := Open("sqlite://x")
	db.DefineTable("t")
}
`)
	assert.True(t, RemoveSpecificVariables(f, "db"))
	assert.NotContains(t, source(t, f), "Open(")
}

func TestAddFunctionCallAfterEveryDeclaration(t *testing.T) {
	f := parse(t, `
func defineTables(db *DAL) {
	db.DefineTable("person")
}

x := 1
_ = x

func defineTables(db *DAL) {
	db.DefineTable("pet")
}
`)

	assert.True(t, AddFunctionCall(f, "defineTables"))
	out := source(t, f)
	assert.Equal(t, 2, strings.Count(out, "defineTables(db)"))

	// Each call sits directly after its declaration.
	first := strings.Index(out, "defineTables(db)")
	assert.Greater(t, first, strings.Index(out, `"person"`))
	assert.Less(t, first, strings.Index(out, `"pet"`))
}

func TestAddFunctionCallExplicitArguments(t *testing.T) {
	f := parse(t, `
func build(db *DAL, prefix string) {
	db.DefineTable(prefix + "_person")
}
`)

	assert.True(t, AddFunctionCall(f, `build(db, "app")`))
	assert.Contains(t, source(t, f), `build(db, "app")`)
}

func TestAddFunctionCallNoMatchIsNoOp(t *testing.T) {
	f := parse(t, `x := 1
_ = x`)
	before := source(t, f)

	assert.False(t, AddFunctionCall(f, "defineTables"))
	assert.Equal(t, before, source(t, f))
}

func TestRemoveDeadConditionals(t *testing.T) {
	f := parse(t, `
if debugMode {
	db.DefineTable("debug_log")
}
db.DefineTable("person")
`)

	assert.True(t, RemoveDeadConditionals(f, "debugMode"))
	out := source(t, f)
	assert.NotContains(t, out, "debug_log")
	assert.Contains(t, out, `"person"`)
}

func TestRemoveDeadConditionalsKeepsElse(t *testing.T) {
	f := parse(t, `
if flags.Attr("verbose").String() != "" {
	db.DefineTable("verbose_log")
} else {
	db.DefineTable("quiet_log")
}
`)

	assert.True(t, RemoveDeadConditionals(f, "flags"))
	out := source(t, f)
	assert.NotContains(t, out, "verbose_log")
	assert.Contains(t, out, "quiet_log")
	assert.NotContains(t, out, "if ")
}

func TestRemoveDeadConditionalsUnrelatedCondUntouched(t *testing.T) {
	f := parse(t, `
if enabled {
	db.DefineTable("t")
}
`)
	assert.False(t, RemoveDeadConditionals(f, "other"))
	assert.Contains(t, source(t, f), "if enabled")
}
