package domain

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"testforge.dev/pkg/testforge/internal/adapter"
	m "testforge.dev/pkg/testforge/internal/model"
)

// Discoverer finds existing tests, maps them onto the code graph, and marks
// coverage.
type Discoverer interface {
	// Discover walks testRoot for _test.go files and returns the test
	// collection. A tree with zero test files is a valid empty result, not
	// an error. Units reachable from a resolved test target get Covered set.
	Discover(ctx context.Context, graph *Graph, testRoot m.Path) ([]m.TestCase, []m.Diagnostic, error)

	// MarkCoverage recomputes the Covered flag for every unit from the
	// given test collection. The improvement loop reuses it after
	// integrating accepted tests.
	MarkCoverage(graph *Graph, tests []m.TestCase)
}

type astDiscoverer struct {
	fs adapter.SourceFSAdapter
}

// NewDiscoverer creates a Discoverer over the filesystem adapter.
func NewDiscoverer(fs adapter.SourceFSAdapter) Discoverer {
	return &astDiscoverer{fs: fs}
}

func (d *astDiscoverer) Discover(ctx context.Context, graph *Graph, testRoot m.Path) ([]m.TestCase, []m.Diagnostic, error) {
	var (
		tests []m.TestCase
		diags []m.Diagnostic
	)

	if _, err := d.fs.FileInfo(testRoot); err != nil {
		// A missing test directory means an untested project, which is a
		// legitimate starting state.
		slog.Info("test root absent, starting with empty suite", "root", testRoot)
		return nil, nil, nil
	}

	err := d.fs.WalkGoFiles(testRoot, nil, func(path m.Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !strings.HasSuffix(string(path), "_test.go") {
			return nil
		}

		fileTests, parseErr := d.parseTestFile(path, graph)
		if parseErr != nil {
			diags = append(diags, m.Diagnostic{
				Kind:    m.DiagParseFailure,
				Subject: string(path),
				Detail:  parseErr.Error(),
			})

			return nil
		}

		tests = append(tests, fileTests...)

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk test tree: %w", err)
	}

	sort.Slice(tests, func(i, j int) bool {
		if tests[i].File != tests[j].File {
			return tests[i].File < tests[j].File
		}

		return tests[i].Name < tests[j].Name
	})

	d.MarkCoverage(graph, tests)

	slog.Info("discovered tests", "root", testRoot, "tests", len(tests))

	return tests, diags, nil
}

// MarkCoverage sets Covered on every unit reachable from a resolved target.
func (d *astDiscoverer) MarkCoverage(graph *Graph, tests []m.TestCase) {
	for _, unit := range graph.Units() {
		unit.Covered = false
	}

	for _, test := range tests {
		if !test.HasTarget() {
			continue
		}

		for _, unit := range graph.Reachable(test.Target) {
			unit.Covered = true
		}
	}
}

func (d *astDiscoverer) parseTestFile(path m.Path, graph *Graph) ([]m.TestCase, error) {
	src, err := d.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, string(path), src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	var tests []m.TestCase

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !isTestFunc(fn) {
			continue
		}

		assertions := countAssertions(fn)
		mocks := countMocks(fn)
		target := resolveTarget(fn, graph)

		test := m.TestCase{
			ID:         uuid.NewString(),
			Name:       fn.Name.Name,
			File:       path,
			Kind:       classifyTest(fn, path, target, assertions),
			Target:     target,
			Assertions: assertions,
			Mocks:      mocks,
			Source:     sliceSource(src, fset, fn.Pos(), fn.End()),
		}

		tests = append(tests, test)
	}

	return tests, nil
}

func isTestFunc(fn *ast.FuncDecl) bool {
	if !strings.HasPrefix(fn.Name.Name, "Test") || len(fn.Name.Name) == len("Test") {
		return false
	}

	return fn.Type.Params != nil && len(fn.Type.Params.List) == 1
}

// countAssertions counts recognized assertion constructs: testify assert and
// require calls, and t.Error/t.Fatal variants.
func countAssertions(fn *ast.FuncDecl) int {
	if fn.Body == nil {
		return 0
	}

	count := 0

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}

		recv, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}

		switch recv.Name {
		case "assert", "require":
			count++
		case "t":
			switch sel.Sel.Name {
			case "Error", "Errorf", "Fatal", "Fatalf", "Fail", "FailNow":
				count++
			}
		}

		return true
	})

	return count
}

// countMocks counts recognized mocking constructs: testify mock.On setups,
// gomock EXPECT chains, and NewMock* constructors.
func countMocks(fn *ast.FuncDecl) int {
	if fn.Body == nil {
		return 0
	}

	count := 0

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			if ident, ok := node.Fun.(*ast.Ident); ok && strings.HasPrefix(ident.Name, "NewMock") {
				count++
			}

			if sel, ok := node.Fun.(*ast.SelectorExpr); ok {
				switch sel.Sel.Name {
				case "On", "EXPECT":
					count++
				default:
					if strings.HasPrefix(sel.Sel.Name, "NewMock") {
						count++
					}
				}
			}
		}

		return true
	})

	return count
}

// resolveTarget maps a test to a code unit: an explicit call of the unit in
// the body wins, then name similarity against the arena.
func resolveTarget(fn *ast.FuncDecl, graph *Graph) m.UnitID {
	if graph == nil {
		return m.UnitID{}
	}

	// Called names, longest qualified form first.
	called := referencedNames(fn, fn.Name.Name)

	for _, name := range called {
		for _, unit := range graph.Units() {
			if bareName(unit.ID.Name) == bareName(name) {
				return unit.ID
			}
		}
	}

	// TestFooBar / TestFooBar_EdgeCase → FooBar.
	base := strings.TrimPrefix(fn.Name.Name, "Test")
	if i := strings.IndexByte(base, '_'); i > 0 {
		base = base[:i]
	}

	for _, unit := range graph.Units() {
		if strings.EqualFold(bareName(unit.ID.Name), base) {
			return unit.ID
		}
	}

	return m.UnitID{}
}

func classifyTest(fn *ast.FuncDecl, path m.Path, target m.UnitID, assertions int) m.TestKind {
	name := strings.ToLower(fn.Name.Name)
	if strings.Contains(name, "integration") || strings.Contains(string(path), "integration") {
		return m.TestIntegration
	}

	if target.Name == "" && assertions == 0 {
		return m.TestUnknown
	}

	return m.TestUnit
}
