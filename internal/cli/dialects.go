package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/declsql/declsql/internal/dialect"
)

var dialectsCmd = &cobra.Command{
	Use:   "dialects",
	Short: "List the supported SQL dialects",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, d := range dialect.Supported() {
			if dialect.IsAvailable(d) {
				fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), d)
			} else {
				fmt.Fprintf(out, "%s %s (driver not linked)\n", color.RedString("✗"), d)
			}
		}
	},
}
