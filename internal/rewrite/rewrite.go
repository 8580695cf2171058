// Package rewrite applies the snippet transformations the repair loop
// and the sanitizer rely on. Every transformation edits the parsed
// syntax tree in place; serialization back to source happens in the
// script package.
package rewrite

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/declsql/declsql/internal/analyze"
	"github.com/declsql/declsql/internal/script"
)

// RemoveImport deletes every import of the given path from the snippet,
// in both grouped and single-spec form. It reports whether anything was
// removed.
func RemoveImport(f *script.File, path string) bool {
	removed := false
	kept := f.Nodes[:0]
	for _, n := range f.Nodes {
		if n.Kind == script.KindDecl {
			if decl, ok := n.Decl.(*ast.GenDecl); ok && decl.Tok == token.IMPORT {
				if stripImportSpecs(decl, func(p string) bool { return p == path }) {
					removed = true
				}
				if len(decl.Specs) == 0 {
					continue // drop the emptied declaration
				}
			}
		}
		kept = append(kept, n)
	}
	f.Nodes = kept
	return removed
}

// RemoveLocalImports deletes every relative-path import. Those point at
// files that sat next to the original schema definition and cannot be
// satisfied inside the execution environment.
func RemoveLocalImports(f *script.File) bool {
	removed := false
	kept := f.Nodes[:0]
	for _, n := range f.Nodes {
		if n.Kind == script.KindDecl {
			if decl, ok := n.Decl.(*ast.GenDecl); ok && decl.Tok == token.IMPORT {
				if stripImportSpecs(decl, analyze.IsLocalImport) {
					removed = true
				}
				if len(decl.Specs) == 0 {
					continue
				}
			}
		}
		kept = append(kept, n)
	}
	f.Nodes = kept
	return removed
}

func stripImportSpecs(decl *ast.GenDecl, drop func(path string) bool) bool {
	removed := false
	kept := decl.Specs[:0]
	for _, spec := range decl.Specs {
		imp, ok := spec.(*ast.ImportSpec)
		if !ok {
			kept = append(kept, spec)
			continue
		}
		p, err := strconv.Unquote(imp.Path.Value)
		if err == nil && drop(p) {
			removed = true
			continue
		}
		kept = append(kept, spec)
	}
	decl.Specs = kept
	return removed
}

// RemoveSpecificVariables deletes every binding of the given names.
// Assignments whose targets are all named are removed outright, side
// effects included; mixed assignments keep running with the named
// targets blanked. The match is on exact names, so scrubbing "db" never
// touches "my_db".
//
// The sanitizer uses this to strip connection-opening bindings of db
// and database from user snippets before the execution scaffold, which
// provides its own, runs them.
func RemoveSpecificVariables(f *script.File, names ...string) bool {
	target := make(map[string]bool, len(names))
	for _, name := range names {
		target[name] = true
	}

	changed := false
	kept := f.Nodes[:0]
	for _, n := range f.Nodes {
		if n.Kind == script.KindStmt {
			stmt, c := scrubStmt(n.Stmt, target)
			changed = changed || c
			if stmt == nil {
				continue
			}
			n.Stmt = stmt
		} else if decl, ok := n.Decl.(*ast.GenDecl); ok && decl.Tok == token.VAR {
			c := scrubValueSpecs(decl, target)
			changed = changed || c
			if len(decl.Specs) == 0 {
				continue
			}
		} else if fn, ok := n.Decl.(*ast.FuncDecl); ok && fn.Body != nil {
			changed = scrubBlock(fn.Body, target) || changed
		}
		kept = append(kept, n)
	}
	f.Nodes = kept
	return changed
}

// scrubStmt returns the statement with named bindings removed, or nil
// when the whole statement should be dropped.
func scrubStmt(stmt ast.Stmt, target map[string]bool) (ast.Stmt, bool) {
	switch v := stmt.(type) {
	case *ast.AssignStmt:
		matched, total := 0, 0
		for _, lhs := range v.Lhs {
			if id, ok := lhs.(*ast.Ident); ok {
				total++
				if target[id.Name] {
					matched++
				}
			} else {
				total++
			}
		}
		if matched == 0 {
			return stmt, false
		}
		if matched == total {
			return nil, true
		}
		for i, lhs := range v.Lhs {
			if id, ok := lhs.(*ast.Ident); ok && target[id.Name] {
				v.Lhs[i] = ast.NewIdent("_")
			}
		}
		return stmt, true
	case *ast.DeclStmt:
		if decl, ok := v.Decl.(*ast.GenDecl); ok && decl.Tok == token.VAR {
			changed := scrubValueSpecs(decl, target)
			if len(decl.Specs) == 0 {
				return nil, true
			}
			return stmt, changed
		}
		return stmt, false
	case *ast.BlockStmt:
		return stmt, scrubBlock(v, target)
	case *ast.IfStmt:
		changed := scrubBlock(v.Body, target)
		if v.Else != nil {
			els, c := scrubStmt(v.Else, target)
			changed = changed || c
			v.Else = els
		}
		return stmt, changed
	case *ast.ForStmt:
		return stmt, scrubBlock(v.Body, target)
	case *ast.RangeStmt:
		return stmt, scrubBlock(v.Body, target)
	default:
		return stmt, false
	}
}

func scrubBlock(block *ast.BlockStmt, target map[string]bool) bool {
	changed := false
	kept := block.List[:0]
	for _, stmt := range block.List {
		out, c := scrubStmt(stmt, target)
		changed = changed || c
		if out != nil {
			kept = append(kept, out)
		}
	}
	block.List = kept
	return changed
}

func scrubValueSpecs(decl *ast.GenDecl, target map[string]bool) bool {
	changed := false
	kept := decl.Specs[:0]
	for _, spec := range decl.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			kept = append(kept, spec)
			continue
		}
		matched, total := 0, len(vs.Names)
		for _, name := range vs.Names {
			if target[name.Name] {
				matched++
			}
		}
		if matched == total && total > 0 {
			changed = true
			continue
		}
		if matched > 0 {
			for i, name := range vs.Names {
				if target[name.Name] {
					vs.Names[i] = ast.NewIdent("_")
				}
			}
			changed = true
		}
		kept = append(kept, spec)
	}
	decl.Specs = kept
	return changed
}

// AddFunctionCall appends a call to the named function after every
// top-level declaration of it. The call argument defaults to db for
// each parameter; a hint of the form "name(arg, ...)" supplies explicit
// arguments instead. Nothing happens when no declaration matches.
func AddFunctionCall(f *script.File, hint string) bool {
	name := hint
	var explicit *ast.CallExpr
	if strings.Contains(hint, "(") {
		expr, err := parser.ParseExpr(hint)
		if err != nil {
			return false
		}
		call, ok := expr.(*ast.CallExpr)
		if !ok {
			return false
		}
		callee, ok := call.Fun.(*ast.Ident)
		if !ok {
			return false
		}
		name = callee.Name
		// The parsed expression carries positions from ParseExpr's own
		// file set; rendering it against the script's file set would
		// scatter line breaks through the call.
		clearPositions(call)
		explicit = call
	}

	added := false
	var out []*script.Node
	for _, n := range f.Nodes {
		out = append(out, n)
		if n.Kind != script.KindDecl {
			continue
		}
		fn, ok := n.Decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name != name {
			continue
		}

		call := explicit
		if call == nil {
			call = &ast.CallExpr{Fun: ast.NewIdent(name)}
			if fn.Type.Params != nil {
				for _, field := range fn.Type.Params.List {
					for range field.Names {
						call.Args = append(call.Args, ast.NewIdent("db"))
					}
					if len(field.Names) == 0 {
						call.Args = append(call.Args, ast.NewIdent("db"))
					}
				}
			}
		}
		out = append(out, &script.Node{Kind: script.KindStmt, Stmt: &ast.ExprStmt{X: call}})
		added = true
	}
	if added {
		f.Nodes = out
	}
	return added
}

func clearPositions(node ast.Node) {
	ast.Inspect(node, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.Ident:
			v.NamePos = token.NoPos
		case *ast.BasicLit:
			v.ValuePos = token.NoPos
		case *ast.CallExpr:
			v.Lparen, v.Rparen = token.NoPos, token.NoPos
		case *ast.ParenExpr:
			v.Lparen, v.Rparen = token.NoPos, token.NoPos
		case *ast.UnaryExpr:
			v.OpPos = token.NoPos
		case *ast.BinaryExpr:
			v.OpPos = token.NoPos
		case *ast.IndexExpr:
			v.Lbrack, v.Rbrack = token.NoPos, token.NoPos
		case *ast.CompositeLit:
			v.Lbrace, v.Rbrace = token.NoPos, token.NoPos
		}
		return true
	})
}

// RemoveDeadConditionals deletes every if statement whose condition
// references one of the given names. The names belong to placeholder
// stubs, which carry no boolean meaning, so the falsy branch is taken
// statically: the else branch is inlined and the guarded body dropped.
func RemoveDeadConditionals(f *script.File, names ...string) bool {
	target := make(map[string]bool, len(names))
	for _, name := range names {
		target[name] = true
	}

	changed := false
	var kept []*script.Node
	for _, n := range f.Nodes {
		if n.Kind == script.KindStmt {
			stmts, c := stripDeadIfs([]ast.Stmt{n.Stmt}, target)
			changed = changed || c
			for _, s := range stmts {
				kept = append(kept, &script.Node{Kind: script.KindStmt, Stmt: s})
			}
			continue
		}
		if fn, ok := n.Decl.(*ast.FuncDecl); ok && fn.Body != nil {
			list, c := stripDeadIfs(fn.Body.List, target)
			fn.Body.List = list
			changed = changed || c
		}
		kept = append(kept, n)
	}
	f.Nodes = kept
	return changed
}

func stripDeadIfs(list []ast.Stmt, target map[string]bool) ([]ast.Stmt, bool) {
	changed := false
	var out []ast.Stmt
	for _, stmt := range list {
		ifStmt, ok := stmt.(*ast.IfStmt)
		if !ok {
			if block, isBlock := stmt.(*ast.BlockStmt); isBlock {
				inner, c := stripDeadIfs(block.List, target)
				block.List = inner
				changed = changed || c
			}
			out = append(out, stmt)
			continue
		}
		if !condUses(ifStmt.Cond, target) {
			inner, c := stripDeadIfs(ifStmt.Body.List, target)
			ifStmt.Body.List = inner
			changed = changed || c
			out = append(out, ifStmt)
			continue
		}
		changed = true
		switch els := ifStmt.Else.(type) {
		case nil:
			// guarded body dropped entirely
		case *ast.BlockStmt:
			inner, _ := stripDeadIfs(els.List, target)
			out = append(out, inner...)
		case *ast.IfStmt:
			inner, _ := stripDeadIfs([]ast.Stmt{els}, target)
			out = append(out, inner...)
		}
	}
	return out, changed
}

func condUses(expr ast.Expr, target map[string]bool) bool {
	found := false
	ast.Inspect(expr, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if condUses(sel.X, target) {
				found = true
			}
			return false
		}
		if id, ok := n.(*ast.Ident); ok && target[id.Name] {
			found = true
		}
		return !found
	})
	return found
}
