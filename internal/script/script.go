// Package script parses and serializes schema-definition snippets.
//
// Snippets are written in the interpreter's REPL dialect: import
// declarations, named function/type/var declarations, and loose
// top-level statements may appear in any order. That dialect is not a
// valid Go source file, so this package segments source text with the
// Go scanner and parses each top-level segment separately: declaration
// segments as a pseudo-file, statement segments wrapped in a function
// body. Every transformation elsewhere operates on the resulting
// syntax trees and re-serializes them; raw text splicing never happens.
package script

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// Kind distinguishes the two node shapes of the script dialect.
type Kind int

const (
	// KindDecl is an import, func, type, const, or var declaration.
	KindDecl Kind = iota
	// KindStmt is a loose top-level statement.
	KindStmt
)

// Node is one top-level unit of a script: exactly one of Decl or Stmt
// is set, according to Kind.
type Node struct {
	Kind Kind
	Decl ast.Decl
	Stmt ast.Stmt
}

// File is a parsed script.
type File struct {
	fset  *token.FileSet
	Nodes []*Node
}

// Fset returns the file set the script's nodes were parsed against.
func (f *File) Fset() *token.FileSet { return f.fset }

// Parse parses script source. Syntax errors propagate to the caller;
// no recovery is attempted here.
func Parse(src string) (*File, error) {
	f := &File{fset: token.NewFileSet()}

	segments, err := segment(src)
	if err != nil {
		return nil, err
	}

	for _, seg := range segments {
		if strings.TrimSpace(seg.text) == "" {
			continue
		}
		if seg.decl {
			decls, err := parseDecls(f.fset, seg.text)
			if err != nil {
				return nil, err
			}
			for _, d := range decls {
				f.Nodes = append(f.Nodes, &Node{Kind: KindDecl, Decl: d})
			}
		} else {
			stmts, err := parseStmts(f.fset, seg.text)
			if err != nil {
				return nil, err
			}
			for _, s := range stmts {
				f.Nodes = append(f.Nodes, &Node{Kind: KindStmt, Stmt: s})
			}
		}
	}

	return f, nil
}

// Source re-serializes the script from its syntax trees.
func (f *File) Source() (string, error) {
	var parts []string
	for _, n := range f.Nodes {
		text, err := f.Render(n)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

// Chunks returns one source string per node, in order. The execution
// orchestrator feeds these to the interpreter one at a time, which
// keeps failure positions attributable to a single unit.
func (f *File) Chunks() ([]string, error) {
	chunks := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		text, err := f.Render(n)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, text)
	}
	return chunks, nil
}

// Render serializes a single node.
func (f *File) Render(n *Node) (string, error) {
	var sb strings.Builder
	var node any
	if n.Kind == KindDecl {
		node = n.Decl
	} else {
		node = n.Stmt
	}
	if err := format.Node(&sb, f.fset, node); err != nil {
		return "", fmt.Errorf("rendering script node: %w", err)
	}
	return sb.String(), nil
}

// segment splits source into top-level units using the Go scanner,
// which understands strings, comments, and automatic semicolons.
type segmentInfo struct {
	text string
	decl bool
}

func segment(src string) ([]segmentInfo, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("snippet", fset.Base(), len(src))

	var scanErr error
	errh := func(pos token.Position, msg string) {
		if scanErr == nil {
			scanErr = fmt.Errorf("%s: %s", pos, msg)
		}
	}

	var s scanner.Scanner
	s.Init(file, []byte(src), errh, 0)

	var segments []segmentInfo
	depth := 0
	start := 0
	first := token.ILLEGAL // first token of the current segment
	second := token.ILLEGAL

	flush := func(end int) {
		text := src[start:end]
		if strings.TrimSpace(text) != "" {
			segments = append(segments, segmentInfo{text: text, decl: isDeclStart(first, second)})
		}
		first, second = token.ILLEGAL, token.ILLEGAL
	}

	for {
		pos, tok, lit := s.Scan()
		if scanErr != nil {
			return nil, fmt.Errorf("scanning snippet: %w", scanErr)
		}
		if tok == token.EOF {
			flush(len(src))
			break
		}

		offset := file.Offset(pos)

		switch tok {
		case token.LPAREN, token.LBRACE, token.LBRACK:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACK:
			depth--
		case token.SEMICOLON:
			if depth == 0 {
				flush(offset)
				start = offset
				if lit == ";" {
					start++ // skip the literal semicolon
				}
				continue
			}
		}

		if tok != token.COMMENT {
			if first == token.ILLEGAL {
				first = tok
			} else if second == token.ILLEGAL {
				second = tok
			}
		}
	}

	return segments, nil
}

// isDeclStart reports whether a segment opens a declaration. A func
// keyword followed by anything but an identifier is a function literal
// in statement position, not a declaration.
func isDeclStart(first, second token.Token) bool {
	switch first {
	case token.IMPORT, token.TYPE, token.CONST, token.VAR:
		return true
	case token.FUNC:
		return second == token.IDENT
	default:
		return false
	}
}

func parseDecls(fset *token.FileSet, text string) ([]ast.Decl, error) {
	file, err := parser.ParseFile(fset, "snippet.go", "package main\n"+text, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing declaration: %w", err)
	}
	return file.Decls, nil
}

func parseStmts(fset *token.FileSet, text string) ([]ast.Stmt, error) {
	wrapped := "package main\nfunc _() {\n" + text + "\n}"
	file, err := parser.ParseFile(fset, "snippet.go", wrapped, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing statement: %w", err)
	}
	fn, ok := file.Decls[len(file.Decls)-1].(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return nil, fmt.Errorf("parsing statement: unexpected wrapper shape")
	}
	return fn.Body.List, nil
}
