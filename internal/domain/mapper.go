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
	"sync"

	"golang.org/x/sync/errgroup"

	"testforge.dev/pkg/testforge/internal/adapter"
	m "testforge.dev/pkg/testforge/internal/model"
)

// Mapper builds the dependency graph of a source tree.
type Mapper interface {
	// Map parses every source file under root into code units. Parse
	// failures are per-file diagnostics; mapping never aborts on one bad
	// file. Two runs over unchanged source yield identical graphs.
	Map(ctx context.Context, root m.Path, exclude []string) (*Graph, []m.Diagnostic, error)
}

type astMapper struct {
	fs      adapter.SourceFSAdapter
	workers int
}

// NewMapper creates a Mapper that parses Go source with the given worker
// pool size.
func NewMapper(fs adapter.SourceFSAdapter, workers int) Mapper {
	if workers < 1 {
		workers = 1
	}

	return &astMapper{fs: fs, workers: workers}
}

// fileUnits is the parse result for one file, assembled into the graph only
// after all files finished so node order stays deterministic.
type fileUnits struct {
	path  m.Path
	units []*m.CodeUnit
}

func (mp *astMapper) Map(ctx context.Context, root m.Path, exclude []string) (*Graph, []m.Diagnostic, error) {
	if _, err := mp.fs.FileInfo(root); err != nil {
		return nil, nil, &m.ConfigError{Field: "source_root", Reason: fmt.Sprintf("cannot stat %s: %v", root, err)}
	}

	var paths []m.Path

	err := mp.fs.WalkGoFiles(root, exclude, func(path m.Path) error {
		if strings.HasSuffix(string(path), "_test.go") {
			return nil
		}

		paths = append(paths, path)

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk source tree: %w", err)
	}

	var (
		mu      sync.Mutex
		parsed  []fileUnits
		diags   []m.Diagnostic
		group   errgroup.Group
	)

	group.SetLimit(mp.workers)

	for _, path := range paths {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			units, parseErr := mp.parseFile(path)

			mu.Lock()
			defer mu.Unlock()

			if parseErr != nil {
				slog.Warn("parse failure", "file", path, "error", parseErr)
				diags = append(diags, m.Diagnostic{
					Kind:    m.DiagParseFailure,
					Subject: string(path),
					Detail:  parseErr.Error(),
				})

				return nil
			}

			parsed = append(parsed, fileUnits{path: path, units: units})

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	// Assemble in path order so the arena layout does not depend on worker
	// scheduling.
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].path < parsed[j].path })
	sort.Slice(diags, func(i, j int) bool { return diags[i].Subject < diags[j].Subject })

	graph := NewGraph()

	for _, file := range parsed {
		for _, unit := range file.units {
			graph.AddUnit(unit)
		}
	}

	graph.ResolveEdges()

	slog.Info("mapped source tree", "root", root, "units", graph.Len(), "parse_failures", len(diags))

	return graph, diags, nil
}

func (mp *astMapper) parseFile(path m.Path) ([]*m.CodeUnit, error) {
	src, err := mp.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, string(path), src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	pkg := file.Name.Name

	var units []*m.CodeUnit

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}

			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}

				units = append(units, &m.CodeUnit{
					ID:         m.UnitID{Name: pkg + "." + ts.Name.Name, Kind: m.UnitClass},
					File:       path,
					StartLine:  fset.Position(ts.Pos()).Line,
					EndLine:    fset.Position(ts.End()).Line,
					Complexity: 1,
					Source:     sliceSource(src, fset, ts.Pos(), ts.End()),
				})
			}

		case *ast.FuncDecl:
			unit := &m.CodeUnit{
				File:       path,
				StartLine:  fset.Position(d.Pos()).Line,
				EndLine:    fset.Position(d.End()).Line,
				Complexity: cyclomaticComplexity(d),
				Source:     sliceSource(src, fset, d.Pos(), d.End()),
			}

			if recv := receiverName(d); recv != "" {
				unit.ID = m.UnitID{Name: pkg + "." + recv + "." + d.Name.Name, Kind: m.UnitMethod}
			} else {
				unit.ID = m.UnitID{Name: pkg + "." + d.Name.Name, Kind: m.UnitFunction}
			}

			unit.Dependencies = referencedNames(d, d.Name.Name)

			units = append(units, unit)
		}
	}

	return units, nil
}

// cyclomaticComplexity counts branching constructs plus one: if, for, range,
// case and comm clauses, and short-circuit boolean operators.
func cyclomaticComplexity(fn *ast.FuncDecl) int {
	complexity := 1

	if fn.Body == nil {
		return complexity
	}

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			complexity++
		case *ast.BinaryExpr:
			if node.Op == token.LAND || node.Op == token.LOR {
				complexity++
			}
		}

		return true
	})

	return complexity
}

// referencedNames collects identifiers invoked or selected inside the
// function body. Resolution against the arena happens later; here the names
// are recorded as-is, self-references excluded.
func referencedNames(fn *ast.FuncDecl, self string) []string {
	if fn.Body == nil {
		return nil
	}

	seen := make(map[string]struct{})

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		switch fun := call.Fun.(type) {
		case *ast.Ident:
			if fun.Name != self {
				seen[fun.Name] = struct{}{}
			}
		case *ast.SelectorExpr:
			if x, ok := fun.X.(*ast.Ident); ok {
				seen[x.Name+"."+fun.Sel.Name] = struct{}{}
			}
		}

		return true
	})

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}

	typ := fn.Recv.List[0].Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}

	switch t := typ.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr: // generic receiver
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	case *ast.IndexListExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	}

	return ""
}

func sliceSource(src []byte, fset *token.FileSet, from, to token.Pos) string {
	start := fset.Position(from).Offset
	end := fset.Position(to).Offset

	if start < 0 || end > len(src) || start > end {
		return ""
	}

	return string(src[start:end])
}
