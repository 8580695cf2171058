package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/declsql/declsql/internal/dialect"
)

// Set via -ldflags at release build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "declsql %s (%s)\n", Version, runtime.Version())
		if verbose {
			fmt.Fprintf(out, "  commit:   %s\n", Commit)
			fmt.Fprintf(out, "  built:    %s\n", BuildDate)
			fmt.Fprintf(out, "  dialects: %s\n", strings.Join(dialect.Available(), ", "))
		}
	},
}
