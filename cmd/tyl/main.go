// Command tyl is the self-hosted Tyl compiler's command-line driver (spec
// §6.1): it lexes, parses, expands macros, resolves `use` imports, runs the
// optimiser pipeline, generates x86-64 Windows machine code, and writes a
// PE32+ executable or COFF object. Mirrors the teacher's root `main.go`:
// a single cobra.Command, flags read inside Run, and os.Exit the only place
// a non-zero status is raised — every package below this file returns a
// plain Go error or a *diag.Bag instead of calling os.Exit itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tyl-lang/tyl/internal/codegen"
	"github.com/tyl-lang/tyl/internal/diag"
	"github.com/tyl-lang/tyl/internal/expander"
	"github.com/tyl-lang/tyl/internal/lexer"
	"github.com/tyl-lang/tyl/internal/macro"
	"github.com/tyl-lang/tyl/internal/optimizer"
	"github.com/tyl-lang/tyl/internal/parser"
)

// exit codes per spec §6.1
const (
	exitOK       = 0
	exitCompiler = 1
	exitInternal = 2
)

var verbose bool

var command = &cobra.Command{
	Use:  "tyl [options] <file.tyl>",
	Args: cobra.ExactArgs(1),
	Run:  runCompile,
}

func init() {
	flags := command.Flags()
	flags.StringP("output", "o", "", "output path (defaults: a.exe / a.dll / a.o)")
	flags.BoolP("obj", "S", false, "emit object file")
	flags.Bool("dll", false, "emit DLL")
	flags.String("def", "", "DEF file for DLL exports")
	flags.Bool("implib", false, "also write import library (.lib)")
	flags.StringArray("export", nil, "export symbol (repeatable)")
	flags.StringArrayP("lib", "l", nil, "link static lib or object (extension chooses)")
	flags.Bool("link", false, "link mode (combine .o files into .exe / .dll)")
	flags.BoolP("tokens", "t", false, "print token stream")
	flags.BoolP("ast", "a", false, "print AST")
	flags.BoolP("asm", "s", false, "dump generated assembly")
	flags.BoolVarP(&verbose, "verbose", "v", false, "per-pass transformation counts")
	flags.StringP("opt-level", "O", "0", "optimisation level: 0,1,2,3,s,z,fast")
	flags.Bool("no-typecheck", false, "bypass type checker")
	flags.Bool("map", false, "emit a map file")
	// Not in spec §6.1's literal table: needed to make -Ofast's
	// profile-guided pass (spec §4.5.10/§6.4) reachable from the CLI at
	// all, since nothing else feeds internal/pgo a .prof file. Justified
	// in DESIGN.md.
	flags.String("profile", "", "profile-data file (.prof) for -Ofast")
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCompiler)
	}
}

func runCompile(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			os.Exit(exitInternal)
		}
	}()

	flags := cmd.Flags()
	sourcePath := args[0]

	output, _ := flags.GetString("output")
	emitObj, _ := flags.GetBool("obj")
	emitDLL, _ := flags.GetBool("dll")
	defFile, _ := flags.GetString("def")
	implib, _ := flags.GetBool("implib")
	exportSyms, _ := flags.GetStringArray("export")
	libs, _ := flags.GetStringArray("lib")
	linkMode, _ := flags.GetBool("link")
	showTokens, _ := flags.GetBool("tokens")
	showAST, _ := flags.GetBool("ast")
	showAsm, _ := flags.GetBool("asm")
	optLevelFlag, _ := flags.GetString("opt-level")
	noTypecheck, _ := flags.GetBool("no-typecheck")
	wantMap, _ := flags.GetBool("map")
	profilePath, _ := flags.GetString("profile")

	_ = noTypecheck // type checking is an external collaborator (spec §1); nothing to bypass at this layer

	if linkMode || len(libs) > 0 {
		fmt.Fprintln(os.Stderr, "E5000: combining existing object/library files is the external linker's job (spec §1) and is not implemented by this driver")
		os.Exit(exitCompiler)
	}
	if emitDLL {
		fmt.Fprintln(os.Stderr, "E4000: DLL output is not implemented at this codegen level (see DESIGN.md)")
		os.Exit(exitCompiler)
	}

	level, err := parseOptLevel(optLevelFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCompiler)
	}

	src, err := os.ReadFile(sourcePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCompiler)
	}

	bag := diag.NewBag()
	reg := macro.NewRegistry()

	toks := lexer.Lex(src, sourcePath, bag)
	if showTokens {
		printTokens(os.Stdout, toks)
	}

	rootProg := parser.Parse(toks, sourcePath, bag, reg)
	if bag.HasErrors() {
		bag.RenderToStderr(src)
		os.Exit(exitCompiler)
	}

	prog, err := resolveImports(rootProg, sourcePath, bag, reg)
	if err != nil {
		bag.RenderToStderr(src)
		os.Exit(exitCompiler)
	}
	prog = expander.Expand(prog, reg)

	if showAST {
		dumpAST(os.Stdout, prog)
	}

	if bag.HasErrors() {
		bag.RenderToStderr(src)
		os.Exit(exitCompiler)
	}

	dropTypes := collectDropTypes(prog)
	funcNames := collectFuncNames(prog)
	refinements := collectRefinements(prog)

	driver := optimizer.NewDriver(level, verbose)
	if level == optimizer.Ofast && profilePath != "" {
		if prof, err := loadProfile(profilePath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load profile %q: %v\n", profilePath, err)
		} else {
			driver.Profile = prof
		}
	}
	n := driver.Run(prog)
	if verbose {
		fmt.Fprintf(os.Stderr, "optimizer: %d total transformation(s)\n", n)
	}

	gen := codegen.NewGenerator(dropTypes, refinements, funcNames)
	if showAsm {
		gen.Buf.EnableListing()
	}
	if !gen.GenerateProgram(prog) {
		gen.Diags.RenderToStderr(src)
		os.Exit(exitCompiler)
	}

	if showAsm {
		text, err := codegen.DumpAssembly(gen.Buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not format assembly dump: %v\n", err)
		} else {
			fmt.Fprint(os.Stdout, text)
		}
	}

	allExports := exportedSymbols(prog)
	for _, s := range exportSyms {
		if !containsStr(allExports, s) {
			allExports = append(allExports, s)
		}
	}

	if emitObj {
		writeObject(gen.Buf, output, src)
	} else {
		writeExecutable(gen.Buf, output, src, wantMap)
	}

	if defFile != "" {
		if err := writeDefFile(defFile, allExports); err != nil {
			fmt.Fprintf(os.Stderr, "E9002: %v\n", err)
			os.Exit(exitCompiler)
		}
	}
	if implib {
		fmt.Fprintln(os.Stderr, "warning: --implib (.lib import library generation) is not implemented at this level")
	}

	os.Exit(exitOK)
}
