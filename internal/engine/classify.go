package engine

import (
	"errors"
	"regexp"

	"github.com/traefik/yaegi/interp"

	"github.com/declsql/declsql/internal/sandbox"
)

type failKind int

const (
	failOther failKind = iota
	failNoTables
	failMissingName
	failImport
	failRelation
)

func (k failKind) String() string {
	switch k {
	case failNoTables:
		return "no-tables"
	case failMissingName:
		return "missing-name"
	case failImport:
		return "import"
	case failRelation:
		return "relation"
	default:
		return "other"
	}
}

// failure is one classified run error plus the data its repair needs.
type failure struct {
	kind  failKind
	names []string // missing-name
	path  string   // import
	table string   // relation
	err   error
}

var (
	undefinedRe = regexp.MustCompile(`undefined: ([A-Za-z_]\w*)`)
	importRe    = regexp.MustCompile(`unable to find source related to: "?([^"\s]+)"?`)
)

// classify decides which repair a run failure calls for. Interpreter
// panics carry the sandbox error values; everything else is matched on
// the interpreter's message text.
func classify(err error) failure {
	if errors.Is(err, errNoTables) {
		return failure{kind: failNoTables, err: err}
	}

	var p interp.Panic
	if errors.As(err, &p) {
		if inner, ok := p.Value.(error); ok {
			var rel *sandbox.RelationError
			if errors.As(inner, &rel) {
				return failure{kind: failRelation, table: rel.Ref, err: err}
			}
		}
	}

	msg := err.Error()
	if m := importRe.FindStringSubmatch(msg); m != nil {
		return failure{kind: failImport, path: m[1], err: err}
	}
	if ms := undefinedRe.FindAllStringSubmatch(msg, -1); ms != nil {
		var names []string
		for _, m := range ms {
			names = append(names, m[1])
		}
		return failure{kind: failMissingName, names: names, err: err}
	}

	return failure{kind: failOther, err: err}
}
