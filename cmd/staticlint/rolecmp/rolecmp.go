// Package rolecmp defines an analyzer that reports role checks written
// against raw string literals instead of the user.Role enumeration.
package rolecmp

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer flags `x == "ADMIN"`, `x != "USER"` and `case "ADMIN":` outside
// the package that owns the enumeration.
var Analyzer = &analysis.Analyzer{
	Name: "rolecmp",
	Doc:  "prohibits comparing roles with the string literals \"ADMIN\" and \"USER\"",
	Run:  run,
}

var roleLiterals = map[string]bool{
	"ADMIN": true,
	"USER":  true,
}

// ownerPackage is the package allowed to map role names to values.
const ownerPackage = "user"

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() == ownerPackage {
		return nil, nil
	}

	for _, file := range pass.Files {
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) || strings.HasSuffix(filename, "_test.go") {
			continue
		}

		ast.Inspect(file, func(n ast.Node) bool {
			switch node := n.(type) {
			case *ast.BinaryExpr:
				if node.Op != token.EQL && node.Op != token.NEQ {
					return true
				}
				for _, operand := range []ast.Expr{node.X, node.Y} {
					if name, ok := roleLiteral(operand); ok {
						pass.Reportf(node.Pos(), "compare with user.Role instead of the literal %q", name)
					}
				}

			case *ast.CaseClause:
				for _, expr := range node.List {
					if name, ok := roleLiteral(expr); ok {
						pass.Reportf(expr.Pos(), "switch on user.Role instead of the literal %q", name)
					}
				}
			}

			return true
		})
	}

	return nil, nil
}

func roleLiteral(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}

	value, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}

	return value, roleLiterals[value]
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
