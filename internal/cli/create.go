package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/declsql/declsql/internal/engine"
	"github.com/declsql/declsql/internal/source"
)

var createCmd = &cobra.Command{
	Use:   "create [file[@version]]",
	Short: "Generate CREATE TABLE statements from a schema definition",
	Long: `create executes one version of a schema-definition file and prints
the CREATE TABLE statements for every table it defines.

With no argument the definition is read from stdin. A version suffix
selects a git revision, e.g. models.go@main or models.go@b3f2409.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) > 0 && args[0] != "-" {
		arg = args[0]
	}
	defaultVersion := source.VersionStdin
	if arg != "" {
		defaultVersion = source.VersionCurrent
	}
	ref := source.Parse(arg, defaultVersion)

	code, err := source.Load(ref, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("no code found in %s", ref)
	}

	opts, err := engineOptions(cmd)
	if err != nil {
		return err
	}

	res, err := engine.Run("", code, opts)
	if err != nil {
		return err
	}
	if opts.Noop {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Scaffold)
		return nil
	}
	return writeOutput(cmd, res.SQL)
}
