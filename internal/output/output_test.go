package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `-- start person --
CREATE TABLE person(
    id SERIAL PRIMARY KEY,
    name VARCHAR(512) NOT NULL
);
-- END OF MIGRATION --
-- start pet --
ALTER TABLE pet ADD COLUMN name VARCHAR(512);
-- END OF MIGRATION --
`

var day = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestRenderSQLStripsMarkers(t *testing.T) {
	out := RenderSQL(sample)

	assert.NotContains(t, out, "-- start")
	assert.NotContains(t, out, "END OF MIGRATION")
	assert.Contains(t, out, "CREATE TABLE person(")
	assert.Contains(t, out, "ALTER TABLE pet ADD COLUMN")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRenderMigrations(t *testing.T) {
	out, notes := RenderMigrations(sample, "", day)
	assert.Empty(t, notes)

	assert.Contains(t, out, "func create_person_20260824_001(db *sql.DB) error {")
	assert.Contains(t, out, "func alter_pet_20260824_001(db *sql.DB) error {")
	assert.Contains(t, out, "db.Exec(`")
	assert.NotContains(t, out, "-- start")
}

func TestRenderMigrationsSkipsDuplicates(t *testing.T) {
	existing, _ := RenderMigrations(sample, "", day)

	out, notes := RenderMigrations(sample, existing, day)
	assert.Empty(t, out)
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].Message, "already exists")
}

func TestRenderMigrationsBumpsAlterSuffix(t *testing.T) {
	first := `-- start pet --
ALTER TABLE pet ADD COLUMN name VARCHAR(512);
-- END OF MIGRATION --
`
	second := `-- start pet --
ALTER TABLE pet ADD COLUMN age INT;
-- END OF MIGRATION --
`
	existing, _ := RenderMigrations(first, "", day)

	out, notes := RenderMigrations(second, existing, day)
	assert.Empty(t, notes)
	assert.Contains(t, out, "func alter_pet_20260824_002(")
}

func TestRenderMigrationsCreateCollisionSkips(t *testing.T) {
	first := `CREATE TABLE person(id SERIAL PRIMARY KEY);
-- END OF MIGRATION --
`
	second := `CREATE TABLE person(id SERIAL PRIMARY KEY, name VARCHAR(10));
-- END OF MIGRATION --
`
	existing, _ := RenderMigrations(first, "", day)

	out, notes := RenderMigrations(second, existing, day)
	assert.Empty(t, out)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "different contents")
}

func TestRenderMigrationsUnknownStatement(t *testing.T) {
	out, _ := RenderMigrations("SELECT 1;\n-- END OF MIGRATION --\n", "", day)
	assert.Contains(t, out, "func unknown_migration_20260824_001(")
}

func TestHeader(t *testing.T) {
	assert.Contains(t, Header(), "package migrations")
	assert.Contains(t, Header(), `import "database/sql"`)
}

func TestSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"sql", "migration"}, SupportedFormats())
}
