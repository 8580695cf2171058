package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineTableRecordsFields(t *testing.T) {
	db := New("postgres")
	tbl := db.DefineTable("person",
		Field("name", "string", NotNull()),
		Field("age", "integer"),
	)

	require.NotNil(t, tbl)
	assert.Equal(t, []string{"person"}, db.Tables())
	assert.True(t, db.Has("person"))

	// Implicit primary key comes first.
	require.Len(t, tbl.Fields, 3)
	assert.Equal(t, "id", tbl.Fields[0].Name)
	assert.Equal(t, "id", tbl.Fields[0].Type)
	assert.Equal(t, "name", tbl.Fields[1].Name)
	assert.True(t, tbl.Fields[1].Notnull)
	assert.Equal(t, 512, tbl.Fields[1].Length)
}

func TestDefineTableExplicitID(t *testing.T) {
	db := New("")
	tbl := db.DefineTable("thing", Field("id", "bigint"))

	require.Len(t, tbl.Fields, 1)
	assert.Equal(t, "bigint", tbl.Fields[0].Type)
}

func TestDefineTableRedefinitionReplaces(t *testing.T) {
	db := New("")
	db.DefineTable("person", Field("name", "string"))
	db.DefineTable("person", Field("name", "string"), Field("age", "integer"))

	assert.Equal(t, []string{"person"}, db.Tables())
	assert.NotNil(t, db.Table("person").Field("age"))
}

func TestDefineTableUnresolvedReferencePanics(t *testing.T) {
	db := New("")

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		var relErr *RelationError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, "author", relErr.Ref)
		assert.Equal(t, "book", relErr.Table)
		assert.Equal(t, "cannot resolve reference author in book definition", err.Error())
	}()

	db.DefineTable("book", Field("written_by", "reference author"))
}

func TestDefineTableResolvedReference(t *testing.T) {
	db := New("")
	db.DefineTable("author", Field("name", "string"))
	tbl := db.DefineTable("book", Field("written_by", "reference author.id"))

	assert.Equal(t, "reference author.id", tbl.Field("written_by").Type)
}

func TestDefineTableInvalidName(t *testing.T) {
	db := New("")
	assert.PanicsWithError(t, "invalid definition of table 1person: invalid table name", func() {
		db.DefineTable("1person")
	})
}

func TestDefineTableDuplicateField(t *testing.T) {
	db := New("")
	assert.Panics(t, func() {
		db.DefineTable("person", Field("name", "string"), Field("name", "text"))
	})
}

func TestOpenExtractsDialect(t *testing.T) {
	assert.Equal(t, "sqlite", Open("sqlite://memory").Dialect())
	assert.Equal(t, "postgres", Open("postgres://user:pw@host/db").Dialect())
	assert.Equal(t, "", Open("not-a-conn-string").Dialect())
}

func TestFieldOptions(t *testing.T) {
	c := Field("email", "string", Unique(), Length(128), Default("nobody"))

	assert.True(t, c.Unique)
	assert.Equal(t, 128, c.Length)
	assert.True(t, c.HasDefault)
	assert.Equal(t, "nobody", c.Default)
}

func TestValuePlaceholder(t *testing.T) {
	v := Empty()
	assert.Equal(t, "", v.String())
	assert.Equal(t, v, v.Attr("anything").Index(3).Call(1, "x"))
}

func TestSymbolsExportSurface(t *testing.T) {
	syms := Symbols()
	pkg, ok := syms[ImportPath+"/sandbox"]
	require.True(t, ok)

	for _, name := range []string{"New", "Open", "Field", "NotNull", "Unique", "Length", "Default", "Empty", "DAL", "Table", "Column"} {
		assert.Contains(t, pkg, name)
	}
	assert.Contains(t, ExportedNames(), "Field")
}
