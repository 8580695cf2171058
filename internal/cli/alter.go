package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/declsql/declsql/internal/engine"
	"github.com/declsql/declsql/internal/source"
)

var alterCmd = &cobra.Command{
	Use:   "alter [before[@version]] [after[@version]]",
	Short: "Generate ALTER statements between two versions of a schema definition",
	Long: `alter executes two versions of a schema-definition file and prints
the statements that migrate the first to the second.

With a single argument the file's last commit is compared against the
working tree. Version suffixes select arbitrary git revisions:

  declsql alter models.go                     # HEAD vs working tree
  declsql alter models.go@v1.0 models.go      # tag vs working tree
  declsql alter old_models.go new_models.go   # two files`,
	Args: cobra.MaximumNArgs(2),
	RunE: runAlter,
}

func runAlter(cmd *cobra.Command, args []string) error {
	var beforeArg, afterArg string
	if len(args) > 0 {
		beforeArg = args[0]
	}
	if len(args) > 1 {
		afterArg = args[1]
	}

	beforeRef, afterRef, err := source.ParsePair(beforeArg, afterArg)
	if err != nil {
		return err
	}

	stdin := cmd.InOrStdin()
	before, err := source.Load(beforeRef, stdin)
	if err != nil {
		return err
	}
	after, err := source.Load(afterRef, stdin)
	if err != nil {
		return err
	}
	if strings.TrimSpace(before) == "" {
		return fmt.Errorf("no code found in %s", beforeRef)
	}
	if strings.TrimSpace(after) == "" {
		return fmt.Errorf("no code found in %s", afterRef)
	}
	if before == after {
		return fmt.Errorf("the two versions (%s and %s) are identical, nothing to migrate", beforeRef, afterRef)
	}

	opts, err := engineOptions(cmd)
	if err != nil {
		return err
	}

	res, err := engine.Run(before, after, opts)
	if err != nil {
		return err
	}
	if opts.Noop {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Scaffold)
		return nil
	}
	return writeOutput(cmd, res.SQL)
}
