//go:build ignore

// check_naked_goroutine.go rejects `go` statements in non-test code under
// internal/. Background work goes through internal/pkg/worker so shutdown can
// drain it.
//
// Suppress a single statement with a //nolint:naked-goroutine comment on the
// same or previous line, or a whole function via its doc comment.
//
// Usage: go run scripts/ci/check_naked_goroutine.go

package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

const nolintTag = "nolint:naked-goroutine"

// exemptPaths may spawn goroutines directly.
var exemptPaths = []string{
	"internal/pkg/worker",
}

type lineRange struct{ start, end int }

func main() {
	const root = "internal"
	if _, err := os.Stat(root); os.IsNotExist(err) {
		fmt.Println("[naked-goroutine] SKIP: internal/ not present")
		return
	}

	var violations []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		if exempt(filepath.ToSlash(path)) {
			return nil
		}

		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}

		suppressed := suppressedRanges(fset, node)
		ast.Inspect(node, func(n ast.Node) bool {
			goStmt, ok := n.(*ast.GoStmt)
			if !ok {
				return true
			}
			line := fset.Position(goStmt.Pos()).Line
			for _, r := range suppressed {
				if line >= r.start && line <= r.end {
					return true
				}
			}
			violations = append(violations, fmt.Sprintf(
				"%s:%d: naked goroutine; submit to worker.Pools instead", path, line))
			return true
		})
		return nil
	})
	if err != nil {
		fmt.Printf("[naked-goroutine] FAIL: walk internal/: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Println("[naked-goroutine] FAIL: naked goroutines found")
		for _, v := range violations {
			fmt.Println(v)
		}
		os.Exit(1)
	}
	fmt.Println("[naked-goroutine] OK")
}

func exempt(path string) bool {
	for _, p := range exemptPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func suppressedRanges(fset *token.FileSet, node *ast.File) []lineRange {
	var out []lineRange
	for _, decl := range node.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Doc == nil {
			continue
		}
		for _, c := range fn.Doc.List {
			if strings.Contains(c.Text, nolintTag) {
				out = append(out, lineRange{
					start: fset.Position(fn.Body.Pos()).Line,
					end:   fset.Position(fn.Body.End()).Line,
				})
			}
		}
	}
	for _, cg := range node.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, nolintTag) {
				line := fset.Position(c.Pos()).Line
				out = append(out, lineRange{line, line + 1})
			}
		}
	}
	return out
}
