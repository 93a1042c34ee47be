//go:build ignore

// check_no_runtime_mock.go fails when non-test code under cmd/ or internal/
// constructs a gomock double. Mocks live next to their interfaces but are
// only wired from tests.
//
// Usage: go run scripts/ci/check_no_runtime_mock.go

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

const runtimeMockNolint = "//nolint:runtime-mock"

func main() {
	var violations []string

	for _, dir := range []string{"cmd", "internal"} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			// Mock definitions themselves.
			if strings.HasPrefix(filepath.Base(path), "mock_") {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil || strings.Contains(string(content), runtimeMockNolint) {
				return nil
			}

			fset := token.NewFileSet()
			node, err := parser.ParseFile(fset, path, content, 0)
			if err != nil {
				return nil
			}

			ast.Inspect(node, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				var name string
				switch fun := call.Fun.(type) {
				case *ast.Ident:
					name = fun.Name
				case *ast.SelectorExpr:
					name = fun.Sel.Name
				}
				if strings.HasPrefix(name, "NewMock") {
					violations = append(violations, fmt.Sprintf("%s:%d: runtime code must not call %s()",
						path, fset.Position(call.Pos()).Line, name))
				}
				return true
			})
			return nil
		})
	}

	if len(violations) == 0 {
		fmt.Println("OK: no runtime mock wiring found")
		return
	}

	fmt.Println("FAIL: runtime mock wiring detected")
	for _, v := range violations {
		fmt.Println(" -", v)
	}
	fmt.Println("Rule: mocks are test-only. Runtime must wire real senders.")
	os.Exit(1)
}
