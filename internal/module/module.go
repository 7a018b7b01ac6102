// Package module implements the loader of spec §3.4/§4.4: path resolution,
// a parse cache, import-chain cycle detection, and export extraction.
// Mirrors the teacher's TranslateUnit-per-file model (arch.go's ArchParser
// registry pattern of a process-wide table, here threaded explicitly as a
// Loader the driver owns, per spec §9.1's "compilation context passed
// explicitly" row) instead of a package-level global.
package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/diag"
	"github.com/tyl-lang/tyl/internal/lexer"
	"github.com/tyl-lang/tyl/internal/macro"
	"github.com/tyl-lang/tyl/internal/parser"
	"github.com/tyl-lang/tyl/internal/token"
)

// ExportKind classifies a module export (spec §3.4).
type ExportKind int

const (
	ExportFunction ExportKind = iota
	ExportRecord
	ExportEnum
	ExportConstant
	ExportType
	ExportModule
)

// Export is `{ name, qualified-name, public?, kind, location }`.
type Export struct {
	Name          string
	QualifiedName string
	Public        bool
	Kind          ExportKind
	Location      token.Location
}

// Module is `{ name, file-path, parent-module, exports, imports, submodules,
// AST, loaded?, builtin? }` (spec §3.4).
type Module struct {
	Name       string
	FilePath   string
	Parent     *Module
	Exports    []Export
	Imports    []string
	Submodules []*Module
	AST        *ast.Program
	Loaded     bool
	Builtin    bool
}

// Loader owns the module cache, the macro registry, the in-flight import
// chain (for cycle detection), the diagnostic bag, and the source-extension
// and search-path configuration. One Loader is created per compilation.
type Loader struct {
	SearchPaths []string
	Ext         string // source extension, default ".tyl"

	cache map[string]*Module // keyed by resolved absolute path
	chain []string           // in-flight resolved paths, for cycle detection
	Bag   *diag.Bag
	Reg   *macro.Registry
}

func NewLoader(bag *diag.Bag, reg *macro.Registry, searchPaths []string) *Loader {
	ext := ".tyl"
	return &Loader{
		SearchPaths: searchPaths,
		Ext:         ext,
		cache:       map[string]*Module{},
		Bag:         bag,
		Reg:         reg,
	}
}

// ResolveModulePath implements spec §4.4 resolveModulePath(name, fromFile).
func (l *Loader) ResolveModulePath(name, fromFile string) (string, error) {
	if strings.ContainsAny(name, "/\\") || strings.HasSuffix(name, l.Ext) {
		candidates := []string{}
		if fromFile != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(fromFile), name))
		}
		for _, sp := range l.SearchPaths {
			candidates = append(candidates, filepath.Join(sp, name))
		}
		candidates = append(candidates, name)
		for _, c := range candidates {
			if fileExists(c) {
				return filepath.Clean(c), nil
			}
		}
		return "", fmt.Errorf("cannot resolve module file %q", name)
	}

	// a::b::c -> a/b/c.ext
	rel := strings.ReplaceAll(name, "::", string(filepath.Separator)) + l.Ext
	var tried []string
	for _, sp := range l.SearchPaths {
		cand := filepath.Join(sp, rel)
		tried = append(tried, cand)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	// directory containing mod.<ext>
	dirRel := strings.ReplaceAll(name, "::", string(filepath.Separator))
	for _, sp := range l.SearchPaths {
		cand := filepath.Join(sp, dirRel, "mod"+l.Ext)
		tried = append(tried, cand)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	return "", fmt.Errorf("cannot resolve module %q (tried %s)", name, strings.Join(tried, ", "))
}

// LoadModule implements spec §4.4 loadModule(name, fromFile): cache hit
// returns immediately; an in-flight chain hit reports a circular-import
// diagnostic (spec §8 property 7, scenario S6) rendering the full chain.
// A module enters the cache only after its imports are loaded, and an
// import's error is returned once the remaining imports are processed.
func (l *Loader) LoadModule(name, fromFile string, at token.Location) (*Module, error) {
	path, err := l.ResolveModulePath(name, fromFile)
	if err != nil {
		return nil, err
	}
	if m, ok := l.cache[path]; ok {
		return m, nil
	}
	if idx := indexOf(l.chain, path); idx >= 0 {
		chain := append(append([]string{}, l.chain[idx:]...), path)
		d := diag.CircularImport(baseNames(chain), at)
		l.Bag.Add(d)
		return nil, fmt.Errorf("%s", d.Message)
	}

	l.chain = append(l.chain, path)
	defer func() { l.chain = l.chain[:len(l.chain)-1] }()

	src, err := os.ReadFile(path)
	if err != nil {
		l.Bag.Add(diag.Diagnostic{Level: diag.Error, Code: "E9001", Message: err.Error(), Span: at})
		return nil, err
	}

	toks := lexer.Lex(src, path, l.Bag)
	prog := parser.Parse(toks, path, l.Bag, l.Reg)

	m := &Module{
		Name:     moduleNameFromPath(path),
		FilePath: path,
		AST:      prog,
		Loaded:   true,
	}

	var importErr error
	for _, decl := range prog.Decls {
		use, ok := decl.(*ast.UseDecl)
		if !ok {
			continue
		}
		m.Imports = append(m.Imports, use.Path)
		sub, err := l.LoadModule(use.Path, path, use.Location())
		if err != nil {
			importErr = err // already recorded as a diagnostic
			continue
		}
		sub.Parent = m
		m.Submodules = append(m.Submodules, sub)
	}

	m.Exports = extractExports(prog)
	l.cache[path] = m
	return m, importErr
}

// extractExports implements spec §4.4's export rule: public records and
// functions; enums and constants are public by default.
func extractExports(prog *ast.Program) []Export {
	var exports []Export
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if !d.Flags.Hidden {
				exports = append(exports, Export{Name: d.Name, QualifiedName: d.Name, Public: true, Kind: ExportFunction, Location: d.Location()})
			}
		case *ast.RecordDecl:
			exports = append(exports, Export{Name: d.Name, QualifiedName: d.Name, Public: true, Kind: ExportRecord, Location: d.Location()})
		case *ast.EnumDecl:
			exports = append(exports, Export{Name: d.Name, QualifiedName: d.Name, Public: true, Kind: ExportEnum, Location: d.Location()})
		case *ast.VarDecl:
			if d.Kind == ast.VarConst {
				exports = append(exports, Export{Name: d.Name, QualifiedName: d.Name, Public: true, Kind: ExportConstant, Location: d.Location()})
			}
		case *ast.TypeAliasDecl:
			exports = append(exports, Export{Name: d.Name, QualifiedName: d.Name, Public: true, Kind: ExportType, Location: d.Location()})
		}
	}
	return lo.UniqBy(exports, func(e Export) string { return e.Name })
}

func moduleNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func indexOf(xs []string, v string) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func baseNames(paths []string) []string {
	return lo.Map(paths, func(p string, _ int) string { return filepath.Base(p) })
}
