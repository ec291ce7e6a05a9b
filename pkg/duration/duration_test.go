package duration_test

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/duration"
)

func TestOrdering(t *testing.T) {
	assert.Less(t, duration.RemoteTimeout, duration.RemoteTimeoutMax)
	assert.Less(t, duration.RetryFast, duration.RetryStd)
	assert.Less(t, duration.RetryStd, duration.RetryMax)
	assert.LessOrEqual(t, duration.DialTimeout, duration.RegistryFetch)
}

// Struct fields holding durations must reference this package, not literals.
func TestNoHardcodedDurationFields(t *testing.T) {
	root := projectRoot(t)
	fields := map[string]bool{"Timeout": true, "Interval": true, "Delay": true, "Backoff": true}

	var violations []string
	for _, dir := range []string{"pkg", "cmd"} {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			if strings.HasSuffix(path, "_test.go") || filepath.Base(path) == "duration.go" {
				return nil
			}
			fset := token.NewFileSet()
			file, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return nil
			}
			report := func(field string, e ast.Expr) {
				pos := fset.Position(e.Pos())
				rel, _ := filepath.Rel(root, pos.Filename)
				violations = append(violations, fmt.Sprintf("%s:%d: %s", rel, pos.Line, field))
			}
			ast.Inspect(file, func(n ast.Node) bool {
				switch n := n.(type) {
				case *ast.KeyValueExpr:
					if id, ok := n.Key.(*ast.Ident); ok && fields[id.Name] && literalDuration(n.Value) {
						report(id.Name, n.Value)
					}
				case *ast.AssignStmt:
					for i, lhs := range n.Lhs {
						sel, ok := lhs.(*ast.SelectorExpr)
						if ok && fields[sel.Sel.Name] && i < len(n.Rhs) && literalDuration(n.Rhs[i]) {
							report(sel.Sel.Name, n.Rhs[i])
						}
					}
				}
				return true
			})
			return nil
		})
		require.NoError(t, err)
	}

	assert.Empty(t, violations, "use duration.* constants")
}

// literalDuration matches `N * time.Unit`.
func literalDuration(e ast.Expr) bool {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok {
		return false
	}
	if _, ok := bin.X.(*ast.BasicLit); !ok {
		return false
	}
	sel, ok := bin.Y.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "time"
}

func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}
