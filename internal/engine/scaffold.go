package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/declsql/declsql/internal/dialect"
	"github.com/declsql/declsql/internal/gensql"
	"github.com/declsql/declsql/internal/sandbox"
	"github.com/declsql/declsql/internal/script"
	"github.com/declsql/declsql/internal/stub"
)

// errNoTables signals a run that executed cleanly but defined nothing.
var errNoTables = errors.New("no-tables-found")

// assemble renders the combined scaffold script for the current repair
// state: sandbox imports, the recording DAL bindings, stubs for
// unresolved names, placeholder tables, and both snippets with the DAL
// swap between them.
func (r *runner) assemble() (string, error) {
	beforeSrc, err := r.before.Source()
	if err != nil {
		return "", err
	}
	afterSrc, err := r.after.Source()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "import (\n\t. %q\n)\n\n", sandbox.ImportPath)
	fmt.Fprintf(&sb, "db := New(%q)\ndatabase := db\n_ = database\n\n", r.dialect)

	if block := stub.Generate(r.stubbed); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	r.writePlaceholders(&sb)

	sb.WriteString(beforeSrc)
	sb.WriteString("\n\n")

	// Swap in a fresh DAL for the new version; the old one stays
	// reachable for the diff.
	sb.WriteString("dbOld := db\n_ = dbOld\n")
	fmt.Fprintf(&sb, "db = New(%q)\ndatabase = db\n\n", r.dialect)
	r.writePlaceholders(&sb)

	sb.WriteString(afterSrc)
	sb.WriteString("\n")

	return sb.String(), nil
}

// writePlaceholders defines one empty table per unresolved reference
// target. They exist so reference fields resolve; they never reach the
// output.
func (r *runner) writePlaceholders(sb *strings.Builder) {
	for _, name := range r.placeholders {
		fmt.Fprintf(sb, "db.DefineTable(%q)\n", name)
	}
	if len(r.placeholders) > 0 {
		sb.WriteString("\n")
	}
}

// execute runs the scaffold in a fresh interpreter and extracts the
// two recording DALs.
func (r *runner) execute(src string) (oldDAL, newDAL *sandbox.DAL, err error) {
	f, err := script.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing scaffold: %w", err)
	}
	chunks, err := f.Chunks()
	if err != nil {
		return nil, nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, nil, fmt.Errorf("loading interpreter stdlib: %w", err)
	}
	if err := i.Use(sandbox.Symbols()); err != nil {
		return nil, nil, fmt.Errorf("loading sandbox symbols: %w", err)
	}

	for _, chunk := range chunks {
		if _, err := i.Eval(chunk); err != nil {
			return nil, nil, err
		}
	}

	oldDAL, err = dalBinding(i, "dbOld")
	if err != nil {
		return nil, nil, err
	}
	newDAL, err = dalBinding(i, "db")
	if err != nil {
		return nil, nil, err
	}
	return oldDAL, newDAL, nil
}

func dalBinding(i *interp.Interpreter, name string) (*sandbox.DAL, error) {
	v, err := i.Eval(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s binding: %w", name, err)
	}
	dal, ok := v.Interface().(*sandbox.DAL)
	if !ok {
		return nil, fmt.Errorf("%s is no longer a DAL binding", name)
	}
	return dal, nil
}

// render turns the two recorded schema versions into marker-delimited
// statement blocks, one per table.
func (r *runner) render(oldDAL, newDAL *sandbox.DAL) (string, error) {
	d := r.dialect
	if d == "" {
		for _, dal := range []*sandbox.DAL{newDAL, oldDAL} {
			if dal.Dialect() == "" {
				continue
			}
			resolved, err := dialect.Resolve(dal.Dialect())
			if err != nil {
				return "", fmt.Errorf("connection string dialect: %w", err)
			}
			d = resolved
			break
		}
	}
	if d == "" {
		return "", fmt.Errorf("no dialect given and none recorded: pass one explicitly or open the DAL with a connection string")
	}
	r.dialect = d

	tables := r.selectTables(oldDAL, newDAL)
	if len(tables) == 0 {
		return "", errNoTables
	}

	var sb strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&sb, StartMarkerFormat+"\n", table)
		sql, err := gensql.Generate(oldDAL.Table(table), newDAL.Table(table), d, r.opts.ScratchDir)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", table, err)
		}
		sb.WriteString(sql)
		sb.WriteString(EndMarker + "\n")
	}
	return sb.String(), nil
}

// selectTables returns the tables to emit: the explicit list when
// given, otherwise the union of both versions in first-seen order,
// minus placeholder tables.
func (r *runner) selectTables(oldDAL, newDAL *sandbox.DAL) []string {
	if len(r.opts.Tables) > 0 {
		return r.opts.Tables
	}

	skip := make(map[string]bool, len(r.placeholders))
	for _, p := range r.placeholders {
		skip[p] = true
	}

	var tables []string
	seen := make(map[string]bool)
	for _, name := range append(oldDAL.Tables(), newDAL.Tables()...) {
		if seen[name] || skip[name] {
			continue
		}
		seen[name] = true
		tables = append(tables, name)
	}
	return tables
}
