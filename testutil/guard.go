// Package testutil holds import-boundary assertions used by the architecture
// tests of squadcore packages.
package testutil

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// ImportPredicate reports whether an import path is forbidden.
type ImportPredicate func(importPath string) bool

// AnyOf forbids an import when any of preds does.
func AnyOf(preds ...ImportPredicate) ImportPredicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

// DomainImportForbidden matches the shared domain package. Plugins reach it
// through the aliases in internal/core instead.
func DomainImportForbidden(path string) bool {
	return path == "squadcore/pkg/domain" ||
		strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden matches module-internal packages. Standard library
// internals such as internal/race carry no leading element and are allowed,
// since every `go list -deps` output contains them.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// HostTransportForbidden matches the HTTP and websocket stack of the host
// adapter. The squad engine talks to the host only through its interfaces.
func HostTransportForbidden(path string) bool {
	switch {
	case path == "net/http", strings.HasPrefix(path, "net/http/"):
		return true
	case strings.HasPrefix(path, "github.com/gorilla/"):
		return true
	case path == "squadcore/internal/host":
		return true
	}
	return false
}

// AssertNoDirectImports parses the non-test .go files directly inside dir
// and fails if any import satisfies forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden ImportPredicate, reason string) {
	t.Helper()
	viols, err := importViolations(dir, false, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfViolations(t, "forbidden direct imports detected", reason, viols)
}

// AssertNoTreeImports is AssertNoDirectImports over dir and every directory
// below it.
func AssertNoTreeImports(t testing.TB, dir string, forbidden ImportPredicate, reason string) {
	t.Helper()
	viols, err := importViolations(dir, true, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfViolations(t, "forbidden imports detected", reason, viols)
}

// AssertNoTransitiveDependency shells out to `go list -deps pattern` and
// fails if any listed package satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden ImportPredicate, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	failIfViolations(t, "forbidden transitive dependency detected", reason, viols)
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func importViolations(root string, recursive bool, forbidden ImportPredicate) ([]string, error) {
	fset := token.NewFileSet()
	var viols []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range file.Imports {
			ip, _ := strconv.Unquote(imp.Path.Value)
			if forbidden(ip) {
				rel, _ := filepath.Rel(root, path)
				viols = append(viols, ip+" (in "+filepath.ToSlash(rel)+")")
			}
		}
		return nil
	})
	return viols, err
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, headline, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", headline, reason, strings.Join(viols, "\n"))
	}
}
