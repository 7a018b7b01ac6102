// Package macro holds the global table of user-defined infix operators,
// statement macros, and DSL transformers that the parser and expander both
// consult (spec §2, §4.3). The teacher keeps one process-wide `parsers` map
// (arch.go's RegisterParser/GetParser); this registry follows the same
// shape but is instantiated per compilation context rather than held in a
// package-level var, since spec §9.1 requires the context be threaded
// explicitly rather than live as a global.
package macro

import "github.com/tyl-lang/tyl/internal/ast"

// InfixOp is a user-registered `macro infix "op" prec` operator symbol.
type InfixOp struct {
	Symbol     string
	Precedence int
	FuncName   string // mangled function name, e.g. "__infix_<+>"
}

// Declarative is a `macro name(params): body` declaration.
type Declarative struct {
	Name   string
	Params []string
	Body   *ast.Block
}

// DSLTransformer converts raw captured DSL source into an expression; used
// for built-in DSL kinds (sql/html/regex/json/asm) and any user `syntax NAME`.
type DSLTransformer func(raw string) (ast.Expression, error)

// Registry is the active macro/DSL/infix-operator table for one compilation.
type Registry struct {
	Infix    map[string]InfixOp
	Macros   map[string]Declarative
	DSL      map[string]DSLTransformer
	DSLNames map[string]bool // pre-scanned `syntax NAME` declarations
	Layers   map[string][]Declarative
	active   map[string]bool // layers activated by `use layer "name"`
}

func NewRegistry() *Registry {
	r := &Registry{
		Infix:    map[string]InfixOp{},
		Macros:   map[string]Declarative{},
		DSL:      map[string]DSLTransformer{},
		DSLNames: map[string]bool{},
		Layers:   map[string][]Declarative{},
		active:   map[string]bool{},
	}
	r.registerBuiltinDSLNames()
	return r
}

func (r *Registry) registerBuiltinDSLNames() {
	for _, name := range []string{"sql", "html", "regex", "json", "asm"} {
		r.DSLNames[name] = true
	}
}

// RegisterInfix stores a `macro infix "op" prec` declaration found during
// the parser's pre-scan (spec §4.2).
func (r *Registry) RegisterInfix(symbol string, precedence int) InfixOp {
	op := InfixOp{Symbol: symbol, Precedence: precedence, FuncName: MangleInfix(symbol)}
	r.Infix[symbol] = op
	return op
}

// IsUserOperator reports whether symbol was registered via RegisterInfix.
func (r *Registry) IsUserOperator(symbol string) (InfixOp, bool) {
	op, ok := r.Infix[symbol]
	return op, ok
}

// RegisterSyntaxName records a `syntax NAME` declaration's name during the
// parser's pre-scan so the main parse recognises it as a DSL block header.
func (r *Registry) RegisterSyntaxName(name string) {
	r.DSLNames[name] = true
}

// RegisterDSL attaches a Go-level transformer to a DSL name.
func (r *Registry) RegisterDSL(name string, t DSLTransformer) {
	r.DSL[name] = t
}

// RegisterMacro stores a declarative `macro name(params): body`.
func (r *Registry) RegisterMacro(name string, m Declarative) {
	r.Macros[name] = m
}

// ActivateLayer brings a named layer's macros into the active registry
// (spec §4.3 step 1: `use layer "name"` activates that layer's macros).
func (r *Registry) ActivateLayer(name string) {
	r.active[name] = true
	for _, m := range r.Layers[name] {
		r.Macros[m.Name] = m
	}
}

// Lookup finds a declarative macro by name.
func (r *Registry) Lookup(name string) (Declarative, bool) {
	m, ok := r.Macros[name]
	return m, ok
}

// mangleTable is the deterministic CUSTOM_OP -> function-name fallback used
// when no user operator is registered for the symbol (spec §4.3 step 3).
var mangleTable = map[string]string{
	"**": "__op_starstar", "++": "__op_plusplus", "--": "__op_minusminus",
	"%%": "__op_percentpercent", "^^": "__op_caretcaret", "@@": "__op_atat",
}

// MangleInfix produces the deterministic fallback name for a CUSTOM_OP
// symbol, or the registered-operator name format for any other symbol.
func MangleInfix(symbol string) string {
	if name, ok := mangleTable[symbol]; ok {
		return name
	}
	return "__infix_" + symbol
}

// IsMangledCustomOp reports whether symbol is one of the built-in repeated
// operator-character tokens with a deterministic fallback mangling (spec
// §4.3 step 3), as opposed to a standard operator lexeme.
func IsMangledCustomOp(symbol string) bool {
	_, ok := mangleTable[symbol]
	return ok
}
