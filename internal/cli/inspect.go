package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/declsql/declsql/internal/dialect"
	"github.com/declsql/declsql/internal/engine"
	"github.com/declsql/declsql/internal/sandbox"
	"github.com/declsql/declsql/internal/source"
)

var inspectAs string

var inspectCmd = &cobra.Command{
	Use:   "inspect [file[@version]]",
	Short: "Show the tables and fields a schema definition records",
	Long: `inspect executes one version of a schema-definition file and prints
the recorded tables without generating any SQL. Useful to check what
the generator sees before running create or alter.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectAs, "as", "table", "Output style: table, json, yaml")
}

// tableInfo is the serializable view of one recorded table.
type tableInfo struct {
	Table  string      `json:"table" yaml:"table"`
	Fields []fieldInfo `json:"fields" yaml:"fields"`
}

type fieldInfo struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	NotNull bool   `json:"notnull,omitempty" yaml:"notnull,omitempty"`
	Unique  bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	Default string `json:"default,omitempty" yaml:"default,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
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

	opts, err := engineOptions(cmd)
	if err != nil {
		return err
	}

	schema, err := engine.Snapshot(code, opts)
	if err != nil {
		return err
	}

	infos := make([]tableInfo, 0, len(schema.Tables))
	for _, name := range schema.Tables {
		if tbl := schema.DAL.Table(name); tbl != nil {
			infos = append(infos, toTableInfo(tbl))
		}
	}

	out := cmd.OutOrStdout()
	switch inspectAs {
	case "json":
		return writeInspectJSON(out, infos)
	case "yaml":
		return writeInspectYAML(out, infos)
	case "table":
		writeInspectTables(out, infos)
		return nil
	default:
		return fmt.Errorf("unknown output style %q (supported: table, json, yaml)", inspectAs)
	}
}

func toTableInfo(t *sandbox.Table) tableInfo {
	info := tableInfo{Table: t.Name}
	for _, f := range t.Fields {
		fi := fieldInfo{
			Name:    f.Name,
			Type:    f.Type,
			NotNull: f.Notnull,
			Unique:  f.Unique,
		}
		if f.HasDefault {
			if lit, ok := dialect.DefaultLiteral(dialect.Postgres, f.Default); ok {
				fi.Default = lit
			}
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}

func writeInspectTables(w io.Writer, infos []tableInfo) {
	for _, info := range infos {
		color.New(color.Bold).Fprintf(w, "%s (%d fields)\n", info.Table, len(info.Fields))

		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"Field", "Type", "Not Null", "Unique", "Default"})
		tw.SetBorder(false)
		for _, f := range info.Fields {
			tw.Append([]string{f.Name, f.Type, yesNo(f.NotNull), yesNo(f.Unique), f.Default})
		}
		tw.Render()
		fmt.Fprintln(w)
	}
}

func writeInspectJSON(w io.Writer, infos []tableInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(infos)
}

func writeInspectYAML(w io.Writer, infos []tableInfo) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(infos)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
