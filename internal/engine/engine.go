// Package engine executes schema-definition snippets speculatively and
// self-heals common failures. Two snippet versions run against
// recording DALs inside an embedded interpreter; when a run fails, the
// failure is classified and a targeted repair is applied before the
// next attempt. The number of attempts is bounded, so the loop always
// terminates.
package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/declsql/declsql/internal/analyze"
	"github.com/declsql/declsql/internal/dialect"
	"github.com/declsql/declsql/internal/rewrite"
	"github.com/declsql/declsql/internal/sandbox"
	"github.com/declsql/declsql/internal/script"
)

// MaxRetries bounds the repair loop. Every repair consumes one attempt
// and strictly shrinks the space of possible failures, so the loop
// converges well before the bound in practice.
const MaxRetries = 30

// Markers delimiting each table's statements in the raw output.
const (
	StartMarkerFormat = "-- start %s --"
	EndMarker         = "-- END OF MIGRATION --"
)

// DefaultFunction is the function name tried when a run defines no
// tables at the top level.
const DefaultFunction = "defineTables"

// Options configures a run.
type Options struct {
	// Dialect is a dialect name or alias. Empty means infer from the
	// connection strings the snippets pass to Open.
	Dialect string

	// Tables restricts output to the named tables. Empty means every
	// table either snippet defines.
	Tables []string

	// Magic enables source repairs that change snippet semantics:
	// stubbing unresolved names, stripping connection bindings and
	// local imports, and dropping conditionals that guard on stubs.
	Magic bool

	// Functions are called when no tables are defined at the top
	// level. Defaults to [DefaultFunction].
	Functions []string

	// ScratchDir, when set, is reused for table metadata between runs.
	ScratchDir string

	// Noop renders the combined scaffold without executing it.
	Noop bool

	Logger *zap.Logger
}

// Result is a successful run.
type Result struct {
	// SQL holds the marker-delimited statements, one block per table.
	SQL string
	// Scaffold is the combined script of the final attempt.
	Scaffold string
	// Dialect is the canonical dialect the statements target.
	Dialect string
	// Attempts is the number of executions, including the final
	// successful one.
	Attempts int
}

// Run executes the old and new snippet versions and returns the
// statements migrating one to the other. An empty before snippet
// yields pure CREATE output; an empty after snippet yields DROPs.
func Run(before, after string, opts Options) (*Result, error) {
	r, err := newRunner(before, after, opts)
	if err != nil {
		return nil, err
	}
	return r.run()
}

type runner struct {
	opts   Options
	log    *zap.Logger
	before *script.File
	after  *script.File

	dialect      string   // canonical, may stay "" until execution
	stubbed      []string // names bound to placeholders
	placeholders []string // tables defined to satisfy references, excluded from output
}

func newRunner(before, after string, opts Options) (*runner, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Functions) == 0 {
		opts.Functions = []string{DefaultFunction}
	}

	r := &runner{opts: opts, log: opts.Logger}

	if opts.Dialect != "" {
		d, err := dialect.Resolve(opts.Dialect)
		if err != nil {
			return nil, err
		}
		r.dialect = d
	}

	var err error
	if r.before, err = script.Parse(before); err != nil {
		return nil, fmt.Errorf("parsing old snippet: %w", err)
	}
	if r.after, err = script.Parse(after); err != nil {
		return nil, fmt.Errorf("parsing new snippet: %w", err)
	}

	if err := r.sanitize(r.before, "old snippet"); err != nil {
		return nil, err
	}
	if err := r.sanitize(r.after, "new snippet"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *runner) run() (*Result, error) {
	if r.opts.Noop {
		src, err := r.assemble()
		if err != nil {
			return nil, err
		}
		return &Result{Scaffold: src, Dialect: r.dialect}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		src, err := r.assemble()
		if err != nil {
			return nil, err
		}
		r.log.Debug("executing scaffold",
			zap.Int("attempt", attempt),
			zap.Int("stubbed", len(r.stubbed)),
			zap.Int("placeholders", len(r.placeholders)))

		oldDAL, newDAL, execErr := r.execute(src)
		var sql string
		if execErr == nil {
			sql, execErr = r.render(oldDAL, newDAL)
		}
		if execErr == nil {
			r.log.Debug("run succeeded", zap.Int("attempt", attempt))
			return &Result{SQL: sql, Scaffold: src, Dialect: r.dialect, Attempts: attempt}, nil
		}
		lastErr = execErr

		fail := classify(execErr)
		r.log.Debug("run failed",
			zap.Int("attempt", attempt),
			zap.String("kind", fail.kind.String()),
			zap.Error(execErr))

		if err := r.repair(fail, src); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("snippet could not be repaired automatically after %d attempts: %w",
		MaxRetries, lastErr)
}

// repair applies the fix for one classified failure, or returns a
// terminal error when no fix applies.
func (r *runner) repair(fail failure, src string) error {
	switch fail.kind {
	case failNoTables:
		added := false
		for _, fn := range r.opts.Functions {
			if rewrite.AddFunctionCall(r.before, fn) {
				added = true
			}
			if rewrite.AddFunctionCall(r.after, fn) {
				added = true
			}
		}
		if !added {
			return fmt.Errorf("no tables found at the top level or in %s: "+
				"define tables through db.DefineTable or database.DefineTable, "+
				"or pass --function to name the function that does",
				strings.Join(r.opts.Functions, ", "))
		}
		return nil

	case failMissingName:
		if !r.opts.Magic {
			return fmt.Errorf("snippet references undefined names %v: define these or use --magic",
				fail.names)
		}
		// The interpreter reports one name at a time; static analysis
		// of the whole scaffold finds the rest in one pass.
		names := fail.names
		if f, err := script.Parse(src); err == nil {
			names = append(names, analyze.MissingVariables(f, r.resolver())...)
		}
		r.stubbed = mergeNames(r.stubbed, names)
		rewrite.RemoveDeadConditionals(r.before, r.stubbed...)
		rewrite.RemoveDeadConditionals(r.after, r.stubbed...)
		return nil

	case failImport:
		removed := rewrite.RemoveImport(r.before, fail.path)
		if rewrite.RemoveImport(r.after, fail.path) {
			removed = true
		}
		if !removed {
			return fmt.Errorf("unresolvable import %q not found in either snippet", fail.path)
		}
		return nil

	case failRelation:
		for _, p := range r.placeholders {
			if p == fail.table {
				return fmt.Errorf("reference to table %s could not be satisfied", fail.table)
			}
		}
		r.placeholders = append(r.placeholders, fail.table)
		return nil

	default:
		return fmt.Errorf("executing snippet: %w", fail.err)
	}
}

// resolver reports the names the scaffold environment provides: the
// dot-imported sandbox surface and the bindings the scaffold itself
// declares.
func (r *runner) resolver() analyze.Resolver {
	known := map[string]bool{"db": true, "database": true, "dbOld": true, "empty": true}
	for _, name := range sandbox.ExportedNames() {
		known[name] = true
	}
	for _, name := range r.stubbed {
		known[name] = true
	}
	return func(name string) bool { return known[name] }
}

func mergeNames(have []string, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, n := range have {
		seen[n] = true
	}
	for _, n := range add {
		if !seen[n] {
			seen[n] = true
			have = append(have, n)
		}
	}
	return have
}
