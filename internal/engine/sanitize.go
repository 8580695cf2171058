package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/declsql/declsql/internal/analyze"
	"github.com/declsql/declsql/internal/rewrite"
	"github.com/declsql/declsql/internal/script"
)

// connectionNames are the bindings the scaffold owns. A snippet that
// binds them itself would run its migrations against whatever it
// connected to.
var connectionNames = []string{"db", "database"}

// sanitize refuses or strips the snippet constructs that would touch a
// real database: top-level db and database bindings, and imports of
// files next to the original source. Without Magic these are hard
// errors. Function parameters named db are fine; the scaffold passes
// its own recording DAL to those.
func (r *runner) sanitize(f *script.File, label string) error {
	var bound []string
	for _, name := range analyze.TopLevelBindings(f) {
		for _, conn := range connectionNames {
			if name == conn {
				bound = append(bound, name)
			}
		}
	}

	if len(bound) > 0 {
		if !r.opts.Magic {
			return fmt.Errorf("%s binds %s: remove the binding or use --magic to avoid migrating a real database",
				label, strings.Join(bound, " and "))
		}
		rewrite.RemoveSpecificVariables(f, connectionNames...)
		r.log.Debug("stripped connection bindings",
			zap.String("snippet", label), zap.Strings("names", bound))
	}

	if analyze.HasLocalImports(f) {
		if !r.opts.Magic {
			return fmt.Errorf("%s uses local imports: remove them or use --magic", label)
		}
		rewrite.RemoveLocalImports(f)
		r.log.Debug("stripped local imports", zap.String("snippet", label))
	}
	return nil
}
