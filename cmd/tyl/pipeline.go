package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/diag"
	"github.com/tyl-lang/tyl/internal/macro"
	"github.com/tyl-lang/tyl/internal/module"
	"github.com/tyl-lang/tyl/internal/optimizer"
	"github.com/tyl-lang/tyl/internal/pgo"
	"github.com/tyl-lang/tyl/internal/token"
	"github.com/tyl-lang/tyl/internal/types"
)

func parseOptLevel(flag string) (optimizer.Level, error) {
	switch strings.ToLower(flag) {
	case "0":
		return optimizer.O0, nil
	case "1":
		return optimizer.O1, nil
	case "2":
		return optimizer.O2, nil
	case "3":
		return optimizer.O3, nil
	case "s":
		return optimizer.Os, nil
	case "z":
		return optimizer.Oz, nil
	case "fast":
		return optimizer.Ofast, nil
	}
	return optimizer.O0, fmt.Errorf("unknown optimisation level %q (want 0,1,2,3,s,z,fast)", flag)
}

// resolveImports walks rootProg's top-level `use` declarations (spec §6.2),
// loading each referenced file or package through internal/module (which
// recursively loads its own imports and detects cycles), and flattens the
// whole import graph into one combined Program. Declaration order is
// submodules-before-importer so a later pass never sees a forward
// reference it wouldn't see in a single merged file.
func resolveImports(rootProg *ast.Program, sourcePath string, bag *diag.Bag, reg *macro.Registry) (*ast.Program, error) {
	loader := module.NewLoader(bag, reg, []string{filepath.Dir(sourcePath)})

	var merged []ast.Statement
	visited := map[string]bool{filepath.Clean(sourcePath): true}
	var failed bool
	for _, d := range rootProg.Decls {
		use, ok := d.(*ast.UseDecl)
		if !ok {
			continue
		}
		m, err := loader.LoadModule(use.Path, sourcePath, use.Location())
		if err != nil {
			failed = true
			continue // the loader already recorded a diagnostic
		}
		flattenModule(m, visited, &merged)
	}
	for _, d := range rootProg.Decls {
		if _, ok := d.(*ast.UseDecl); ok {
			continue
		}
		merged = append(merged, d)
	}
	if failed {
		return nil, fmt.Errorf("import resolution failed")
	}
	return &ast.Program{Decls: merged}, nil
}

func flattenModule(m *module.Module, visited map[string]bool, out *[]ast.Statement) {
	if visited[m.FilePath] {
		return
	}
	visited[m.FilePath] = true
	for _, sub := range m.Submodules {
		flattenModule(sub, visited, out)
	}
	for _, d := range m.AST.Decls {
		if _, ok := d.(*ast.UseDecl); ok {
			continue
		}
		*out = append(*out, d)
	}
}

func printTokens(w io.Writer, toks []token.Token) {
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	for _, t := range toks {
		fmt.Fprintf(bw, "%s\t%-12s %q\n", t.Loc, t.Kind, t.Lexeme)
	}
}

// dumpAST prints a compact, deterministic indented tree for -a/--ast. It
// covers the declaration and statement shapes the rest of the pipeline
// actually understands; anything else renders via its Go type name so the
// dump never panics on a node codegen itself doesn't model yet.
func dumpAST(w io.Writer, prog *ast.Program) {
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	for _, d := range prog.Decls {
		dumpStmt(bw, d, 0)
	}
}

func dumpStmt(w *bufio.Writer, s ast.Statement, depth int) {
	ind := strings.Repeat("  ", depth)
	switch n := s.(type) {
	case *ast.FuncDecl:
		fmt.Fprintf(w, "%sfunc %s(%d params) -> %s\n", ind, n.Name, len(n.Params), n.RetType)
		if n.Body != nil {
			for _, st := range n.Body.Stmts {
				dumpStmt(w, st, depth+1)
			}
		}
	case *ast.RecordDecl:
		fmt.Fprintf(w, "%srecord %s (%d fields) derive=%v\n", ind, n.Name, len(n.Fields), n.Derive)
	case *ast.EnumDecl:
		fmt.Fprintf(w, "%senum %s (%d variants)\n", ind, n.Name, len(n.Variants))
	case *ast.TypeAliasDecl:
		fmt.Fprintf(w, "%stype %s = %s\n", ind, n.Name, n.Underlying)
	case *ast.UseDecl:
		fmt.Fprintf(w, "%suse %q\n", ind, n.Path)
	case *ast.VarDecl:
		fmt.Fprintf(w, "%svar %s: %s\n", ind, n.Name, n.Type)
	case *ast.IfStmt:
		fmt.Fprintf(w, "%sif\n", ind)
		for _, st := range n.Then.Stmts {
			dumpStmt(w, st, depth+1)
		}
		if n.Else != nil {
			fmt.Fprintf(w, "%selse\n", ind)
			dumpStmt(w, n.Else, depth+1)
		}
	case *ast.WhileStmt:
		fmt.Fprintf(w, "%swhile\n", ind)
		for _, st := range n.Body.Stmts {
			dumpStmt(w, st, depth+1)
		}
	case *ast.Block:
		for _, st := range n.Stmts {
			dumpStmt(w, st, depth)
		}
	case *ast.ReturnStmt:
		fmt.Fprintf(w, "%sreturn\n", ind)
	case *ast.ExprStmt:
		fmt.Fprintf(w, "%sexpr\n", ind)
	default:
		fmt.Fprintf(w, "%s%T\n", ind, n)
	}
}

// collectDropTypes finds every record type that derives Drop (spec §4.6.2
// rule 8/9: a Drop record is never register-allocated).
func collectDropTypes(prog *ast.Program) map[string]bool {
	out := map[string]bool{}
	for _, d := range prog.Decls {
		if r, ok := d.(*ast.RecordDecl); ok {
			for _, derive := range r.Derive {
				if derive == "Drop" {
					out[r.Name] = true
				}
			}
		}
	}
	return out
}

func collectFuncNames(prog *ast.Program) map[string]bool {
	out := map[string]bool{}
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			out[fn.Name] = true
		}
	}
	return out
}

// collectRefinements builds the refinement-type registry codegen consults
// (spec §4.6.2 rule 14) from every `type Name = Underlying where <constraint>`
// alias in the program.
func collectRefinements(prog *ast.Program) *types.Registry {
	reg := types.NewRegistry()
	for _, d := range prog.Decls {
		alias, ok := d.(*ast.TypeAliasDecl)
		if !ok || alias.Refinement == nil {
			continue
		}
		constraint := constraintString(alias.Refinement)
		if constraint == "" {
			continue
		}
		reg.Define(types.Refinement{
			Name:       alias.Name,
			Underlying: alias.Underlying,
			Constraint: constraint,
		})
	}
	return reg
}

// constraintString renders a refinement's guard expression back into the
// "_ OP literal" shape internal/codegen's refinementCheckOperands expects.
// Only the simple comparison-against-an-integer-literal shape spec §3.3
// illustrates is handled; anything else yields "" and collectRefinements
// leaves the alias unregistered, so no runtime check is generated for it (a
// looser, not a stricter, runtime check — it never rejects a value the
// source author didn't also intend to allow).
func constraintString(x ast.Expression) string {
	bin, ok := x.(*ast.BinaryExpr)
	if !ok {
		return ""
	}
	lit, ok := bin.Right.(*ast.IntegerLiteral)
	if !ok {
		return ""
	}
	if _, ok := bin.Left.(*ast.Placeholder); !ok {
		return ""
	}
	return fmt.Sprintf("_ %s %d", bin.Op, lit.Value)
}

// exportedSymbols gathers every @export-attributed top-level function, the
// set a DLL export table or DEF file enumerates (spec §6.1's --def/--export,
// SUPPLEMENTED FEATURES #5).
func exportedSymbols(prog *ast.Program) []string {
	var names []string
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Flags.Export {
			names = append(names, fn.Name)
		}
	}
	sort.Strings(names)
	return names
}

func containsStr(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// writeDefFile writes a Microsoft module-definition file listing exports,
// the textual format --def is meant to drive (the binary import-library
// step itself is the external linker's job, per spec §1).
func writeDefFile(path string, exports []string) error {
	var b strings.Builder
	b.WriteString("EXPORTS\n")
	for _, e := range exports {
		fmt.Fprintf(&b, "    %s\n", e)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func loadProfile(path string) (*pgo.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.HasSuffix(path, ".prof") || isTextProfile(f) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return pgo.ParseText(f)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return pgo.ParseBinary(f)
}

func isTextProfile(f *os.File) bool {
	header := make([]byte, len("# tyl-profile"))
	n, _ := f.Read(header)
	return n == len(header) && string(header) == "# tyl-profile"
}
