// Package analyze inspects parsed snippets without executing them. It
// answers the questions the repair loop asks between attempts: which
// names does this snippet define, which does it use without defining,
// does it import anything local, and which functions look like they
// define tables.
package analyze

import (
	"go/ast"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/declsql/declsql/internal/script"
)

// Resolver reports whether a bare name is known to the execution
// environment, for names a snippet neither defines nor imports. The
// orchestrator passes one backed by the sandbox export table plus the
// packages it preloads into the interpreter.
type Resolver func(name string) bool

// universe is the set of predeclared Go identifiers. Names in it are
// never reported missing.
var universe = map[string]bool{
	"bool": true, "byte": true, "complex64": true, "complex128": true,
	"error": true, "float32": true, "float64": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"rune": true, "string": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"uintptr": true, "any": true, "comparable": true,
	"true": true, "false": true, "iota": true, "nil": true,
	"append": true, "cap": true, "clear": true, "close": true,
	"complex": true, "copy": true, "delete": true, "imag": true,
	"len": true, "make": true, "max": true, "min": true, "new": true,
	"panic": true, "print": true, "println": true, "real": true,
	"recover": true,
}

// DefinedVariables returns the sorted set of names a snippet binds:
// assignment targets, declaration names, function names and parameters,
// range variables, and import package names.
func DefinedVariables(f *script.File) []string {
	defined, _ := collect(f, nil)
	return sorted(defined)
}

// MissingVariables returns the sorted set of names a snippet uses
// without binding, excluding predeclared identifiers and names the
// resolver knows. A nil resolver resolves nothing.
func MissingVariables(f *script.File, resolve Resolver) []string {
	defined, used := collect(f, resolve)
	var missing []string
	for name := range used {
		if defined[name] || universe[name] {
			continue
		}
		if resolve != nil && resolve(name) {
			continue
		}
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

// TopLevelBindings returns the sorted names bound by loose top-level
// statements and var declarations: assignment and short-declaration
// targets plus var-decl names. Function parameters and names bound
// inside bodies are not included.
func TopLevelBindings(f *script.File) []string {
	defined := make(map[string]bool)
	bind := func(name string) {
		if name != "" && name != "_" {
			defined[name] = true
		}
	}

	for _, n := range f.Nodes {
		if n.Kind == script.KindStmt {
			switch v := n.Stmt.(type) {
			case *ast.AssignStmt:
				for _, lhs := range v.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						bind(id.Name)
					}
				}
			case *ast.DeclStmt:
				if decl, ok := v.Decl.(*ast.GenDecl); ok && decl.Tok == token.VAR {
					bindValueSpecs(decl, bind)
				}
			}
			continue
		}
		if decl, ok := n.Decl.(*ast.GenDecl); ok && decl.Tok == token.VAR {
			bindValueSpecs(decl, bind)
		}
	}
	return sorted(defined)
}

func bindValueSpecs(decl *ast.GenDecl, bind func(string)) {
	for _, spec := range decl.Specs {
		if vs, ok := spec.(*ast.ValueSpec); ok {
			for _, name := range vs.Names {
				bind(name.Name)
			}
		}
	}
}

// importSpecs collects the specs of every top-level import declaration,
// in order of appearance.
func importSpecs(f *script.File) []*ast.ImportSpec {
	var specs []*ast.ImportSpec
	for _, n := range f.Nodes {
		if n.Kind != script.KindDecl {
			continue
		}
		decl, ok := n.Decl.(*ast.GenDecl)
		if !ok || decl.Tok != token.IMPORT {
			continue
		}
		for _, spec := range decl.Specs {
			if imp, ok := spec.(*ast.ImportSpec); ok {
				specs = append(specs, imp)
			}
		}
	}
	return specs
}

// ImportedPaths returns every import path in the snippet, in order.
func ImportedPaths(f *script.File) []string {
	var paths []string
	for _, spec := range importSpecs(f) {
		if p, err := strconv.Unquote(spec.Path.Value); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// HasLocalImports reports whether the snippet imports a relative path.
// Such imports point at files next to the original schema definition,
// which do not exist in the execution environment.
func HasLocalImports(f *script.File) bool {
	for _, p := range ImportedPaths(f) {
		if IsLocalImport(p) {
			return true
		}
	}
	return false
}

// IsLocalImport reports whether path is filesystem-relative.
func IsLocalImport(path string) bool {
	return path == "." || path == ".." ||
		strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../")
}

// FuncInfo describes a top-level function declaration of a snippet.
type FuncInfo struct {
	Name         string
	Params       []string // parameter names, in order
	DefinesTable bool     // body contains a DefineTable call
}

// Functions returns the snippet's top-level function declarations in
// order of appearance.
func Functions(f *script.File) []FuncInfo {
	var infos []FuncInfo
	for _, n := range f.Nodes {
		if n.Kind != script.KindDecl {
			continue
		}
		fn, ok := n.Decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		info := FuncInfo{Name: fn.Name.Name}
		if fn.Type.Params != nil {
			for _, field := range fn.Type.Params.List {
				for _, name := range field.Names {
					info.Params = append(info.Params, name.Name)
				}
			}
		}
		if fn.Body != nil {
			ast.Inspect(fn.Body, func(node ast.Node) bool {
				if call, ok := node.(*ast.CallExpr); ok {
					if sel, ok := call.Fun.(*ast.SelectorExpr); ok && sel.Sel.Name == "DefineTable" {
						info.DefinesTable = true
					}
				}
				return true
			})
		}
		infos = append(infos, info)
	}
	return infos
}

// TableDefiningFunctions returns the names of top-level functions whose
// bodies contain a DefineTable call. When a run yields no tables, the
// repair loop appends calls to these.
func TableDefiningFunctions(f *script.File) []string {
	var names []string
	for _, info := range Functions(f) {
		if info.DefinesTable {
			names = append(names, info.Name)
		}
	}
	return names
}

// HasTopLevelDefineTable reports whether any loose statement of the
// snippet calls DefineTable directly.
func HasTopLevelDefineTable(f *script.File) bool {
	for _, n := range f.Nodes {
		if n.Kind != script.KindStmt {
			continue
		}
		found := false
		ast.Inspect(n.Stmt, func(node ast.Node) bool {
			if _, ok := node.(*ast.FuncLit); ok {
				return false
			}
			if call, ok := node.(*ast.CallExpr); ok {
				if sel, ok := call.Fun.(*ast.SelectorExpr); ok && sel.Sel.Name == "DefineTable" {
					found = true
				}
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

// collect walks the whole snippet once, gathering binding occurrences
// and use occurrences of plain identifiers. Like the repair loop it
// serves, it is deliberately scope-blind: a name bound anywhere counts
// as defined everywhere.
func collect(f *script.File, resolve Resolver) (defined, used map[string]bool) {
	defined = make(map[string]bool)
	used = make(map[string]bool)

	bind := func(name string) {
		if name != "" && name != "_" {
			defined[name] = true
		}
	}
	use := func(id *ast.Ident) {
		if id != nil && id.Name != "_" {
			used[id.Name] = true
		}
	}

	var walk func(node ast.Node)
	walk = func(node ast.Node) {
		ast.Inspect(node, func(n ast.Node) bool {
			switch v := n.(type) {
			case *ast.AssignStmt:
				for _, lhs := range v.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						bind(id.Name)
					} else {
						walk(lhs)
					}
				}
				for _, rhs := range v.Rhs {
					walk(rhs)
				}
				return false
			case *ast.ValueSpec:
				for _, name := range v.Names {
					bind(name.Name)
				}
				if v.Type != nil {
					walk(v.Type)
				}
				for _, val := range v.Values {
					walk(val)
				}
				return false
			case *ast.TypeSpec:
				bind(v.Name.Name)
				walk(v.Type)
				return false
			case *ast.FuncDecl:
				bind(v.Name.Name)
				bindFieldList(v.Recv, bind)
				bindFuncType(v.Type, bind, walk)
				if v.Body != nil {
					walk(v.Body)
				}
				return false
			case *ast.FuncLit:
				bindFuncType(v.Type, bind, walk)
				walk(v.Body)
				return false
			case *ast.RangeStmt:
				for _, expr := range []ast.Expr{v.Key, v.Value} {
					if id, ok := expr.(*ast.Ident); ok {
						bind(id.Name)
					}
				}
				walk(v.X)
				walk(v.Body)
				return false
			case *ast.ImportSpec:
				bindImport(v, bind, resolve)
				return false
			case *ast.SelectorExpr:
				walk(v.X)
				return false
			case *ast.KeyValueExpr:
				// Keys in composite literals are usually field names,
				// not variable references.
				if _, ok := v.Key.(*ast.Ident); !ok {
					walk(v.Key)
				}
				walk(v.Value)
				return false
			case *ast.LabeledStmt:
				walk(v.Stmt)
				return false
			case *ast.BranchStmt:
				return false
			case *ast.Ident:
				use(v)
				return false
			}
			return true
		})
	}

	for _, n := range f.Nodes {
		if n.Kind == script.KindDecl {
			walk(n.Decl)
		} else {
			walk(n.Stmt)
		}
	}
	return defined, used
}

func bindFieldList(fl *ast.FieldList, bind func(string)) {
	if fl == nil {
		return
	}
	for _, field := range fl.List {
		for _, name := range field.Names {
			bind(name.Name)
		}
	}
}

func bindFuncType(ft *ast.FuncType, bind func(string), walk func(ast.Node)) {
	bindFieldList(ft.Params, bind)
	bindFieldList(ft.Results, bind)
	if ft.Params != nil {
		for _, field := range ft.Params.List {
			walk(field.Type)
		}
	}
	if ft.Results != nil {
		for _, field := range ft.Results.List {
			walk(field.Type)
		}
	}
}

// bindImport binds the names an import makes visible: the explicit
// alias, or the last path element. A dot import binds every exported
// name the resolver recognizes, so nothing a wildcard provides is ever
// reported missing.
func bindImport(spec *ast.ImportSpec, bind func(string), resolve Resolver) {
	if spec.Name != nil {
		if spec.Name.Name == "." {
			// Handled by the resolver: dot-imported names resolve as
			// environment names during MissingVariables.
			return
		}
		bind(spec.Name.Name)
		return
	}
	path, err := strconv.Unquote(spec.Path.Value)
	if err != nil {
		return
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	bind(path)
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
