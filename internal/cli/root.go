// Package cli implements the command-line interface for declsql.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/declsql/declsql/internal/config"
	"github.com/declsql/declsql/internal/engine"
	"github.com/declsql/declsql/internal/output"
)

var (
	// Global flags
	cfgFile      string
	dialectFlag  string
	magic        bool
	verbose      bool
	noop         bool
	outputFormat string
	outputFile   string
	functions    []string
	tablesFlag   []string
	scratchDir   string
)

var rootCmd = &cobra.Command{
	Use:   "declsql",
	Short: "Generate SQL migrations from declarative schema definitions",
	Long: `declsql turns versions of a schema-definition file into SQL,
without connecting to a database.

The definition code runs against a recording DAL inside an embedded
interpreter; two versions of the same file yield the ALTER statements
between them.

Examples:
  # CREATE statements for the current working tree
  declsql create models.go --dialect postgres

  # ALTER statements between the last commit and the working tree
  declsql alter models.go --dialect postgres

  # ALTER statements between two git revisions
  declsql alter models.go@v1.0 models.go@main

  # Pipe a definition through stdin
  cat models.go | declsql create - --dialect sqlite

  # Show the recorded schema of a definition file
  declsql inspect models.go`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: "+config.FileName+" found upward from the working directory)")
	rootCmd.PersistentFlags().StringVarP(&dialectFlag, "dialect", "d", "", "SQL dialect: postgres, sqlite, mysql (or an alias)")
	rootCmd.PersistentFlags().BoolVar(&magic, "magic", false, "Repair snippets automatically: stub unresolved names, strip connection bindings and local imports")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noop, "noop", false, "Print the generated scaffold instead of executing it")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", output.FormatSQL, "Output format: "+strings.Join(output.SupportedFormats(), ", "))
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output-file", "o", "", "Append output to this file instead of printing (- for stdout)")
	rootCmd.PersistentFlags().StringSliceVar(&functions, "function", nil, "Function to call when no tables are defined at the top level (default: "+engine.DefaultFunction+")")
	rootCmd.PersistentFlags().StringSliceVarP(&tablesFlag, "table", "t", nil, "Restrict output to these tables")
	rootCmd.PersistentFlags().StringVar(&scratchDir, "scratch-dir", "", "Keep table metadata in this directory between runs")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(alterCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(dialectsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// engineOptions merges flags over the project config into run options.
// Flags the user set explicitly always win.
func engineOptions(cmd *cobra.Command) (engine.Options, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return engine.Options{}, err
	}

	opts := engine.Options{
		Dialect:    pick(cmd, "dialect", dialectFlag, cfg.Dialect),
		Magic:      magic || cfg.Magic,
		Tables:     tablesFlag,
		Functions:  functions,
		ScratchDir: pick(cmd, "scratch-dir", scratchDir, cfg.ScratchDir),
		Noop:       noop,
		Logger:     buildLogger(verbose || cfg.Verbose),
	}
	if len(opts.Functions) == 0 {
		opts.Functions = cfg.Functions
	}

	if !cmd.Flags().Changed("format") && cfg.Format != "" {
		outputFormat = cfg.Format
	}
	if !cmd.Flags().Changed("output-file") && cfg.OutputFile != "" {
		outputFile = cfg.OutputFile
	}

	switch outputFormat {
	case output.FormatSQL, output.FormatMigration:
	default:
		return engine.Options{}, fmt.Errorf("unknown format %q (supported: %s)",
			outputFormat, strings.Join(output.SupportedFormats(), ", "))
	}
	return opts, nil
}

func pick(cmd *cobra.Command, flag, flagValue, cfgValue string) string {
	if cmd.Flags().Changed(flag) || cfgValue == "" {
		return flagValue
	}
	return cfgValue
}

func buildLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// writeOutput renders the raw statement stream in the selected format
// and sends it to stdout or appends it to the output file.
func writeOutput(cmd *cobra.Command, contents string) error {
	toStdout := outputFile == "" || outputFile == "-"

	var rendered string
	switch outputFormat {
	case output.FormatMigration:
		existing := ""
		if !toStdout {
			if data, err := os.ReadFile(outputFile); err == nil {
				existing = string(data)
			}
		}
		var notes []output.Note
		rendered, notes = output.RenderMigrations(contents, existing, time.Now())
		for _, note := range notes {
			color.Yellow("migration %s %s", note.Name, note.Message)
		}
	default:
		rendered = output.RenderSQL(contents)
	}

	if toStdout {
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	}

	if outputFormat == output.FormatMigration {
		if info, err := os.Stat(outputFile); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
			if err := os.WriteFile(outputFile, []byte(output.Header()), 0o644); err != nil {
				return fmt.Errorf("bootstrapping %s: %w", outputFile, err)
			}
			color.Green("new migration file %s created", outputFile)
		}
	}

	if strings.TrimSpace(rendered) == "" {
		color.Yellow("nothing to write to %s", outputFile)
		return nil
	}

	f, err := os.OpenFile(outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", outputFile, err)
	}
	defer f.Close()
	if _, err := f.WriteString(rendered); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	color.Green("written migration(s) to %s", outputFile)
	return nil
}
