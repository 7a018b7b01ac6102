// Package token defines the lexical token model shared by the lexer,
// parser and macro expander.
package token

import "fmt"

// Kind is the closed enumeration of token kinds the lexer can produce.
type Kind int

const (
	EOF Kind = iota
	ILLEGAL

	// layout
	NEWLINE
	INDENT
	DEDENT

	// literals
	INTEGER
	FLOAT
	STRING
	INTERP_STRING
	CHAR
	BYTE_STRING
	RAW_BYTE_STRING
	LIFETIME
	IDENTIFIER
	ATTRIBUTE

	// keyword marker - individual keywords are IDENTIFIER-shaped but
	// classified via the Keywords table below and carry kind KEYWORD
	KEYWORD

	// operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	STARSTAR
	PLUSPLUS
	MINUSMINUS
	PERCENTPERCENT
	CARETCARET
	ATAT
	CUSTOM_OP
	ASSIGN
	DEFINE // :=
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
	EQ
	NEQ
	LT
	LE
	GT
	GE
	SPACESHIP // <=>
	AND
	OR
	NOT
	BIT_AND
	BIT_OR
	BIT_XOR
	BIT_NOT
	SHL
	SHR
	ARROW     // ->
	FAT_ARROW // =>
	DOT
	QUESTION_DOT // ?.
	QUESTION     // ?
	QUESTION_QUESTION
	DOTDOT   // ..
	DOTDOTEQ // ..=
	PIPE     // |>
	COLON
	COLONCOLON
	SEMI
	COMMA
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	AMP     // &
	AMP_MUT // &mut context is handled by parser, lexer emits AMP + KEYWORD(mut)
	AT
	HASH
	CHAN_SEND // <-
	BACKSLASH
)

// Keywords is the closed set of reserved words (~100 entries per spec §3.1).
// Identifiers matching an entry here are re-classified to KEYWORD by the
// lexer; Lexeme retains the exact spelling so the parser can switch on it.
var Keywords = map[string]bool{
	"fn": true, "let": true, "mut": true, "const": true, "if": true, "else": true,
	"unless": true, "match": true, "trait": true, "impl": true, "unsafe": true,
	"async": true, "await": true, "spawn": true, "chan": true, "Mutex": true,
	"RWLock": true, "Cond": true, "Semaphore": true, "Atomic": true, "Box": true,
	"Rc": true, "Arc": true, "Weak": true, "Cell": true, "RefCell": true,
	"effect": true, "handle": true, "perform": true, "resume": true,
	"comptime": true, "require": true, "ensure": true, "with": true,
	"scope": true, "is": true, "for": true, "while": true, "loop": true,
	"break": true, "continue": true, "return": true, "delete": true,
	"lock": true, "record": true, "union": true, "enum": true, "type": true,
	"use": true, "module": true, "extern": true, "macro": true, "syntax": true,
	"layer": true, "asm": true, "true": true, "false": true, "nil": true,
	"new": true, "concept": true, "where": true, "as": true, "in": true,
	"self": true, "Self": true, "pub": true, "static": true, "cdecl": true,
	"stdcall": true, "fastcall": true, "win64": true, "naked": true,
	"export": true, "hidden": true, "weak": true, "inline": true, "noinline": true,
	"sizeof": true, "alignof": true, "is_pod": true, "is_primitive": true,
	"Future": true, "ThreadPool": true, "CancelToken": true, "Channel": true,
	"then": true, "do": true, "end": true, "elif": true, "i8": true, "i16": true,
	"i32": true, "i64": true, "i128": true, "u8": true, "u16": true, "u32": true,
	"u64": true, "u128": true, "f16": true, "f32": true, "f64": true, "f128": true,
	"int": true, "float": true, "str": true, "bool": true, "char": true, "void": true,
}

// LiteralKind distinguishes the payload carried on a token's Literal.
type LiteralKind int

const (
	LitNone LiteralKind = iota
	LitInt
	LitFloat
	LitStr
)

// Literal is the closed three-arm tagged union a token's literal value may
// hold, per spec §3.1 ("literal is one of: absent, int64, float64, string").
type Literal struct {
	Kind LiteralKind
	Int  int64
	Flt  float64
	Str  string
}

// Location carries filename, 1-based line, 1-based column, per spec §3.1.
type Location struct {
	Filename string
	Line     int
	Column   int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}

// Token is `{ kind, lexeme, location, literal }`.
type Token struct {
	Kind    Kind
	Lexeme  string
	Loc     Location
	Literal Literal
}

func (t Token) IsKeyword(word string) bool {
	return t.Kind == KEYWORD && t.Lexeme == word
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindNames = map[Kind]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", NEWLINE: "NEWLINE", INDENT: "INDENT", DEDENT: "DEDENT",
	INTEGER: "INTEGER", FLOAT: "FLOAT", STRING: "STRING", INTERP_STRING: "INTERP_STRING",
	CHAR: "CHAR", BYTE_STRING: "BYTE_STRING", RAW_BYTE_STRING: "RAW_BYTE_STRING",
	LIFETIME: "LIFETIME", IDENTIFIER: "IDENTIFIER", ATTRIBUTE: "ATTRIBUTE", KEYWORD: "KEYWORD",
	CUSTOM_OP: "CUSTOM_OP", CHAN_SEND: "CHAN_SEND", SPACESHIP: "SPACESHIP",
	QUESTION_DOT: "QUESTION_DOT", DOTDOTEQ: "DOTDOTEQ",
}
