// Package ast defines the Tyl abstract syntax tree: a tagged sum type per
// node family (Expression, and Statement, which also holds every
// declaration node) rather than the
// virtual-base-class + dynamic_cast hierarchy of the original implementation,
// per spec §9.1's "language-neutral strategy" row for AST representation.
package ast

import "github.com/tyl-lang/tyl/internal/token"

// Node is implemented by every AST node; every node carries a source
// location (spec §3.2).
type Node interface {
	Location() token.Location
}

// Expression is the root type for every expression-family node.
type Expression interface {
	Node
	exprNode()
}

// Statement is the root type for every statement-family node, which also
// covers declarations (spec groups function/record/... declarations under
// "Declarations" in prose but they are parsed and walked as statements).
type Statement interface {
	Node
	stmtNode()
}

// Base supplies Location() to every concrete node without reimplementing it.
type Base struct {
	Loc token.Location
}

func (b Base) Location() token.Location { return b.Loc }

// ---- Value: the closed sum type for literal/CTFE values (spec §9.1) ----

type ValueKind int

const (
	ValNil ValueKind = iota
	ValBool
	ValInt
	ValFloat
	ValString
	ValList
	ValRecord
	ValRange
)

// Value is the "lazy, polymorphic any value" the interpreter and constant
// folder pass around, represented as a closed tagged union instead of a
// template/variant (spec §9.1).
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	List   []Value
	Record map[string]Value
	// Range fields, valid when Kind == ValRange
	RangeFrom, RangeTo int64
	RangeInclusive     bool
}

func NilValue() Value            { return Value{Kind: ValNil} }
func BoolValue(b bool) Value     { return Value{Kind: ValBool, Bool: b} }
func IntValue(i int64) Value     { return Value{Kind: ValInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: ValFloat, Float: f} }
func StrValue(s string) Value    { return Value{Kind: ValString, Str: s} }

// ---- Expressions ----

type IntegerLiteral struct {
	Base
	Value  int64
	Suffix string
}

func (*IntegerLiteral) exprNode() {}

type FloatLiteral struct {
	Base
	Value  float64
	Suffix string
}

func (*FloatLiteral) exprNode() {}

type BoolLiteral struct {
	Base
	Value bool
}

func (*BoolLiteral) exprNode() {}

type NilLiteral struct{ Base }

func (*NilLiteral) exprNode() {}

type CharLiteral struct {
	Base
	Value rune
}

func (*CharLiteral) exprNode() {}

type StringLiteral struct {
	Base
	Value string
}

func (*StringLiteral) exprNode() {}

type ByteStringLiteral struct {
	Base
	Value []byte
	Raw   bool
}

func (*ByteStringLiteral) exprNode() {}

// InterpolatedString alternates text fragments and sub-expressions (spec §3.2).
type InterpolatedString struct {
	Base
	Fragments []string
	Exprs     []Expression
}

func (*InterpolatedString) exprNode() {}

type Identifier struct {
	Base
	Name string
}

func (*Identifier) exprNode() {}

// Placeholder is the bare `_` token used either as a lambda shorthand anchor
// or inside a refinement-type constraint (spec §3.2, §3.3).
type Placeholder struct{ Base }

func (*Placeholder) exprNode() {}

type BinaryExpr struct {
	Base
	Op    string
	Left  Expression
	Right Expression
}

func (*BinaryExpr) exprNode() {}

type UnaryExpr struct {
	Base
	Op      string
	Operand Expression
}

func (*UnaryExpr) exprNode() {}

// TernaryExpr covers both `c ? a : b` and `a if c else b` surface forms
// (spec §3.2); both lower to the same node.
type TernaryExpr struct {
	Base
	Cond, Then, Else Expression
}

func (*TernaryExpr) exprNode() {}

type AssignExpr struct {
	Base
	Op     string // "=", "+=", "-=", "*=", "/=", "%="
	Target Expression
	Value  Expression
}

func (*AssignExpr) exprNode() {}

type Arg struct {
	Name  string // empty unless this is a named argument
	Value Expression
}

type CallExpr struct {
	Base
	Callee  Expression
	Args    []Arg
	TypeArg []string
}

func (*CallExpr) exprNode() {}

type MethodCallExpr struct {
	Base
	Receiver Expression
	Method   string
	Args     []Arg
	TypeArg  []string
}

func (*MethodCallExpr) exprNode() {}

type MemberExpr struct {
	Base
	Receiver Expression
	Name     string
}

func (*MemberExpr) exprNode() {}

type IndexExpr struct {
	Base
	Receiver Expression
	Index    Expression
}

func (*IndexExpr) exprNode() {}

type RangeExpr struct {
	Base
	From, To  Expression
	Inclusive bool
}

func (*RangeExpr) exprNode() {}

type ListExpr struct {
	Base
	Elements []Expression
}

func (*ListExpr) exprNode() {}

type RecordFieldInit struct {
	Name  string
	Value Expression
}

type RecordExpr struct {
	Base
	TypeName string
	Fields   []RecordFieldInit
}

func (*RecordExpr) exprNode() {}

type MapEntry struct{ Key, Value Expression }

type MapExpr struct {
	Base
	Entries []MapEntry
}

func (*MapExpr) exprNode() {}

// LambdaExpr covers both `|x| expr` and `|_it| ...` auto-lifted placeholder
// forms (spec §3.2, §4.2).
type LambdaExpr struct {
	Base
	Params []string
	Body   Expression
}

func (*LambdaExpr) exprNode() {}

type ListComprehension struct {
	Base
	Elem    Expression
	VarName string
	Iter    Expression
	Cond    Expression // nil if absent
}

func (*ListComprehension) exprNode() {}

type AddrOfExpr struct {
	Base
	Operand Expression
}

func (*AddrOfExpr) exprNode() {}

type DerefExpr struct {
	Base
	Operand Expression
}

func (*DerefExpr) exprNode() {}

type BorrowExpr struct {
	Base
	Mut     bool
	Operand Expression
}

func (*BorrowExpr) exprNode() {}

type CastExpr struct {
	Base
	Operand Expression
	Type    string
}

func (*CastExpr) exprNode() {}

type NewExpr struct {
	Base
	Type string
	Args []Arg
}

func (*NewExpr) exprNode() {}

// PropagateExpr is the postfix `?` operator.
type PropagateExpr struct {
	Base
	Operand Expression
}

func (*PropagateExpr) exprNode() {}

// SafeNavExpr is `a?.b`.
type SafeNavExpr struct {
	Base
	Receiver Expression
	Name     string
}

func (*SafeNavExpr) exprNode() {}

type TypeCheckExpr struct {
	Base
	Operand Expression
	Type    string
}

func (*TypeCheckExpr) exprNode() {}

type SpaceshipExpr struct {
	Base
	Left, Right Expression
}

func (*SpaceshipExpr) exprNode() {}

type PipeExpr struct {
	Base
	Left, Right Expression
}

func (*PipeExpr) exprNode() {}

type ChanSendExpr struct {
	Base
	Chan  Expression
	Value Expression
}

func (*ChanSendExpr) exprNode() {}

type ChanRecvExpr struct {
	Base
	Chan Expression
}

func (*ChanRecvExpr) exprNode() {}

type AwaitExpr struct {
	Base
	Operand Expression
}

func (*AwaitExpr) exprNode() {}

type SpawnExpr struct {
	Base
	Body Expression
}

func (*SpawnExpr) exprNode() {}

// MakeExpr covers the make-* family: Future, ThreadPool, CancelToken,
// Channel, Mutex, RWLock, Cond, Semaphore, Atomic[T], Box/Rc/Arc/Weak/Cell/
// RefCell[T] constructors (spec §3.2).
type MakeExpr struct {
	Base
	Kind     string // "Future", "Atomic", "Box", "Rc", "Arc", "Weak", "Cell", "RefCell", "Mutex", "RWLock", "Cond", "Semaphore", "ThreadPool", "CancelToken", "Channel"
	ElemType string
	Args     []Arg
	ChanCap  int // buffered-channel capacity, 0 means unbuffered
}

func (*MakeExpr) exprNode() {}

type PerformExpr struct {
	Base
	Effect string
	Op     string
	Args   []Arg
}

func (*PerformExpr) exprNode() {}

type HandleExpr struct {
	Base
	Effect string
	Body   Expression
	Arms   []HandleArm
}

type HandleArm struct {
	Op     string
	Params []string
	Body   Expression
}

func (*HandleExpr) exprNode() {}

type ResumeExpr struct {
	Base
	Value Expression
}

func (*ResumeExpr) exprNode() {}

// TypeMetadataExpr covers sizeof/alignof/is_pod/is_primitive (spec §3.2, §4.5.5).
type TypeMetadataExpr struct {
	Base
	Op   string // "sizeof", "alignof", "is_pod", "is_primitive"
	Type string
}

func (*TypeMetadataExpr) exprNode() {}

// BlockExpr allows a Block to appear where an expression is expected (e.g.
// the body of an expression-level `if`).
type BlockExpr struct {
	Base
	Block *Block
}

func (*BlockExpr) exprNode() {}

// ---- Statements ----

type Block struct {
	Base
	Stmts []Statement
}

func (*Block) stmtNode() {}

type ExprStmt struct {
	Base
	X Expression
}

func (*ExprStmt) stmtNode() {}

// VarDeclKind distinguishes let/mut/const (spec §3.2).
type VarDeclKind int

const (
	VarLet VarDeclKind = iota
	VarMut
	VarConst
)

type VarDecl struct {
	Base
	Kind VarDeclKind
	Name string
	Type string // canonical type string, empty if inferred
	Init Expression
}

func (*VarDecl) stmtNode() {}

// MultiVarDecl covers chained assignment `mut x = mut y = mut z = v` (spec §4.2).
type MultiVarDecl struct {
	Base
	Kind  VarDeclKind
	Names []string
	Init  Expression
}

func (*MultiVarDecl) stmtNode() {}

type DestructurePattern struct {
	Tuple  bool // true: (a,b); false: {x,y}
	Names  []string
	Fields []string // record field names, parallel to Names when !Tuple
}

type DestructureDecl struct {
	Base
	Kind    VarDeclKind
	Pattern DestructurePattern
	Init    Expression
}

func (*DestructureDecl) stmtNode() {}

type IfStmt struct {
	Base
	Unless bool
	Cond   Expression
	Then   *Block
	Else   Statement // *Block or *IfStmt, nil if absent
}

func (*IfStmt) stmtNode() {}

// IfLetStmt covers `if let pattern = expr { ... }`.
type IfLetStmt struct {
	Base
	Pattern DestructurePattern
	Single  string // non-destructuring binding name, used when Pattern is empty
	Init    Expression
	Then    *Block
	Else    Statement
}

func (*IfLetStmt) stmtNode() {}

type WhileStmt struct {
	Base
	Label string
	Cond  Expression
	Body  *Block
}

func (*WhileStmt) stmtNode() {}

type ForStmt struct {
	Base
	Label   string
	VarName string
	Iter    Expression
	Body    *Block
}

func (*ForStmt) stmtNode() {}

type LoopStmt struct {
	Base
	Label string
	Body  *Block
}

func (*LoopStmt) stmtNode() {}

type MatchArm struct {
	// Pattern classification: literal, range, wildcard, identifier-bind
	IsWildcard bool
	Literal    Expression
	RangeFrom  Expression
	RangeTo    Expression
	Bind       string
	Guard      Expression
	Body       *Block
}

type MatchStmt struct {
	Base
	Subject Expression
	Arms    []MatchArm
}

func (*MatchStmt) stmtNode() {}

type ReturnStmt struct {
	Base
	Value Expression // nil if bare `return`
}

func (*ReturnStmt) stmtNode() {}

type BreakStmt struct {
	Base
	Label string
}

func (*BreakStmt) stmtNode() {}

type ContinueStmt struct {
	Base
	Label string
}

func (*ContinueStmt) stmtNode() {}

type DeleteStmt struct {
	Base
	Target Expression
}

func (*DeleteStmt) stmtNode() {}

type LockStmt struct {
	Base
	Target Expression
	Body   *Block
}

func (*LockStmt) stmtNode() {}

// WithStmt lowers `with acquire as name: body` to guaranteed release on all
// exit paths (spec §5).
type WithStmt struct {
	Base
	Acquire Expression
	Name    string
	Body    *Block
}

func (*WithStmt) stmtNode() {}

// ScopeStmt covers both `scope label: body` and `scope timeout N: body`
// (spec §5, §9.2 disambiguated by peeking the next identifier).
type ScopeStmt struct {
	Base
	Label     string
	IsTimeout bool
	TimeoutMS Expression
	Body      *Block
}

func (*ScopeStmt) stmtNode() {}

type RequireStmt struct {
	Base
	Cond Expression
}

func (*RequireStmt) stmtNode() {}

type EnsureStmt struct {
	Base
	Cond Expression
}

func (*EnsureStmt) stmtNode() {}

type ComptimeBlock struct {
	Base
	Body *Block
}

func (*ComptimeBlock) stmtNode() {}

type ComptimeAssert struct {
	Base
	Cond Expression
}

func (*ComptimeAssert) stmtNode() {}

// ---- Declarations (also Statements, per the Statement doc) ----

type CallingConvention int

const (
	ConvDefault CallingConvention = iota
	ConvCdecl
	ConvStdcall
	ConvFastcall
	ConvWin64
)

// DeclFlags is the "compact struct of booleans" strategy from spec §9.1 for
// bitpacked attribute flags on declarations.
type DeclFlags struct {
	Naked    bool
	Extern   bool
	Comptime bool
	Async    bool
	Export   bool
	Hidden   bool
	Weak     bool
	Inline   bool
	NoInline bool
}

type GenericParamKind int

const (
	GenericType GenericParamKind = iota
	GenericLifetime
	GenericHigherKinded
)

type GenericParam struct {
	Name       string
	Kind       GenericParamKind
	Constraint []string // e.g. "Concept" + "Other" from `T: Concept + Other`
}

type Param struct {
	Name    string
	Type    string
	Default Expression // nil if absent
}

type FuncDecl struct {
	Base
	Name     string
	Generics []GenericParam
	Params   []Param
	RetType  string
	Conv     CallingConvention
	Flags    DeclFlags
	Body     *Block // nil for extern/naked-without-body declarations
	Derive   []string
	Attrs    []string
}

func (*FuncDecl) stmtNode() {}

type FieldDecl struct {
	Name string
	Type string
}

type RecordDecl struct {
	Base
	Name     string
	Generics []GenericParam
	Fields   []FieldDecl
	Derive   []string
	Repr     string // "C", "packed", "align(N)" or ""
}

func (*RecordDecl) stmtNode() {}

type UnionDecl struct {
	Base
	Name   string
	Fields []FieldDecl
}

func (*UnionDecl) stmtNode() {}

type EnumVariant struct {
	Name          string
	Discriminant  *int64 // nil if not specified
	TupleFields   []string
	RecordFields  []FieldDecl
}

type EnumDecl struct {
	Base
	Name     string
	Variants []EnumVariant
	Derive   []string
}

func (*EnumDecl) stmtNode() {}

type TypeAliasDecl struct {
	Base
	Name       string
	Underlying string
	// Refinement: `where _ > 0`-style constraint, nil if plain alias
	Refinement Expression
}

func (*TypeAliasDecl) stmtNode() {}

type TraitDecl struct {
	Base
	Name        string
	Generics    []GenericParam
	SuperTraits []string
	Methods     []*FuncDecl
}

func (*TraitDecl) stmtNode() {}

type ImplDecl struct {
	Base
	TraitName string // empty for an inherent impl
	TypeName  string
	Methods   []*FuncDecl
}

func (*ImplDecl) stmtNode() {}

type ConceptDecl struct {
	Base
	Name  string
	Exprs []Expression
}

func (*ConceptDecl) stmtNode() {}

type EffectOp struct {
	Name    string
	Params  []Param
	RetType string
}

type EffectDecl struct {
	Base
	Name string
	Ops  []EffectOp
}

func (*EffectDecl) stmtNode() {}

type UseDecl struct {
	Base
	Path  string // file path or pkg::mod path
	Alias string
	// Names non-empty for `use pkg::mod::{a,b}`; "*" entry for `use pkg::*`
	Names []string
}

func (*UseDecl) stmtNode() {}

type ExternBlock struct {
	Base
	ABI     string
	Library string
	Funcs   []*FuncDecl
}

func (*ExternBlock) stmtNode() {}

type MacroDecl struct {
	Base
	Name   string
	Params []string
	Body   *Block
}

func (*MacroDecl) stmtNode() {}

// SyntaxMacroDecl registers a `syntax NAME` DSL block transformer.
type SyntaxMacroDecl struct {
	Base
	Name     string
	RawBody  string
	Delegate string // registered transformer function name, empty if none
}

func (*SyntaxMacroDecl) stmtNode() {}

type LayerDecl struct {
	Base
	Name    string
	Members []Statement
}

func (*LayerDecl) stmtNode() {}

type UnsafeBlock struct {
	Base
	Body *Block
}

func (*UnsafeBlock) stmtNode() {}

type InlineAsm struct {
	Base
	Text string
}

func (*InlineAsm) stmtNode() {}

// InfixMacroDecl is `macro infix "op" prec` (spec §4.2 pre-scan, §4.3).
type InfixMacroDecl struct {
	Base
	Symbol     string
	Precedence int
	Func       string // mangled function name the expander rewrites calls to
}

func (*InfixMacroDecl) stmtNode() {}

// Program is the root of a parsed file.
type Program struct {
	Base
	Decls []Statement
}
