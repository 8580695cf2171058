package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declsql/declsql/internal/output"
)

// saveFlags snapshots the package-level flag state and restores it when
// the test finishes, so tests can mutate flags freely.
func saveFlags(t *testing.T) {
	t.Helper()
	savedFormat, savedFile, savedDialect := outputFormat, outputFile, dialectFlag
	savedMagic, savedVerbose, savedNoop := magic, verbose, noop
	t.Cleanup(func() {
		outputFormat, outputFile, dialectFlag = savedFormat, savedFile, savedDialect
		magic, verbose, noop = savedMagic, savedVerbose, savedNoop
	})
}

func chtemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestPickPrefersChangedFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var val string
	cmd.Flags().StringVar(&val, "dialect", "", "")

	assert.Equal(t, "from-config", pick(cmd, "dialect", "", "from-config"))

	require.NoError(t, cmd.Flags().Set("dialect", "mysql"))
	assert.Equal(t, "mysql", pick(cmd, "dialect", "mysql", "from-config"))
}

func TestEngineOptionsRejectsUnknownFormat(t *testing.T) {
	saveFlags(t)
	chtemp(t)

	outputFormat = "bogus"
	_, err := engineOptions(&cobra.Command{Use: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestEngineOptionsMergesConfig(t *testing.T) {
	saveFlags(t)
	chtemp(t)

	data := "dialect: sqlite3\nmagic: true\n"
	require.NoError(t, os.WriteFile(".declsql.yaml", []byte(data), 0o644))

	outputFormat = output.FormatSQL
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&dialectFlag, "dialect", "", "")

	opts, err := engineOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", opts.Dialect)
	assert.True(t, opts.Magic)

	// An explicit flag beats the config file.
	require.NoError(t, cmd.Flags().Set("dialect", "postgres"))
	opts, err = engineOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, "postgres", opts.Dialect)
}

func TestWriteOutputStdoutStripsMarkers(t *testing.T) {
	saveFlags(t)
	outputFormat = output.FormatSQL
	outputFile = ""

	var buf bytes.Buffer
	cmd := &cobra.Command{Use: "x"}
	cmd.SetOut(&buf)

	contents := "-- start person --\nCREATE TABLE person(id SERIAL PRIMARY KEY);\n-- END OF MIGRATION --\n"
	require.NoError(t, writeOutput(cmd, contents))

	got := buf.String()
	assert.Contains(t, got, "CREATE TABLE person")
	assert.NotContains(t, got, "-- start")
	assert.NotContains(t, got, "END OF MIGRATION")
}

func TestWriteOutputBootstrapsMigrationFile(t *testing.T) {
	saveFlags(t)
	outputFormat = output.FormatMigration
	outputFile = filepath.Join(t.TempDir(), "migrations.go")

	cmd := &cobra.Command{Use: "x"}
	contents := "-- start person --\nCREATE TABLE person(id SERIAL PRIMARY KEY);\n-- END OF MIGRATION --\n"
	require.NoError(t, writeOutput(cmd, contents))

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	got := string(data)
	assert.True(t, strings.HasPrefix(got, "package migrations"))
	assert.Contains(t, got, `import "database/sql"`)
	assert.Contains(t, got, "func create_person_")
	assert.Contains(t, got, "CREATE TABLE person")

	// A second run with the same statement only reports a duplicate.
	require.NoError(t, writeOutput(cmd, contents))
	again, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Equal(t, got, string(again))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "declsql "+Version)
}

func TestDialectsListsSupported(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"dialects"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	got := buf.String()
	assert.Contains(t, got, "postgres")
	assert.Contains(t, got, "sqlite3")
	assert.Contains(t, got, "mysql")
}
