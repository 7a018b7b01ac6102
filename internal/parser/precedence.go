package parser

import "github.com/tyl-lang/tyl/internal/token"

// Precedence levels, low to high (spec §4.2).
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecTernary
	PrecNullCoalesce
	PrecPipe
	PrecOr
	PrecAnd
	PrecBitOr
	PrecBitXor
	PrecBitAnd
	PrecEquality
	PrecComparison
	PrecRange
	PrecTerm
	PrecFactor
	PrecUnary
	PrecPostfix
	PrecPrimary
)

// infixPrecedence maps built-in infix-capable token kinds to their level.
// CUSTOM_OP tokens parse at FACTOR whether or not the symbol is a
// user-registered infix operator; the precedence a `macro infix`
// declaration records in the registry is not consulted (spec §4.2, §4.3).
var infixPrecedence = map[token.Kind]Precedence{
	token.ASSIGN:         PrecAssignment,
	token.PLUS_ASSIGN:    PrecAssignment,
	token.MINUS_ASSIGN:   PrecAssignment,
	token.STAR_ASSIGN:    PrecAssignment,
	token.SLASH_ASSIGN:   PrecAssignment,
	token.PERCENT_ASSIGN: PrecAssignment,
	token.QUESTION:       PrecTernary,
	token.QUESTION_QUESTION: PrecNullCoalesce,
	token.PIPE:           PrecPipe,
	token.OR:             PrecOr,
	token.AND:            PrecAnd,
	token.BIT_OR:         PrecBitOr,
	token.BIT_XOR:        PrecBitXor,
	// The lexer only ever emits AMP for a single '&' (spec §4.1); the same
	// token serves as both the bitwise-and infix operator here and the
	// address-of/reference prefix operator in parseUnary, disambiguated by
	// parser position rather than by a separate token kind.
	token.AMP:            PrecBitAnd,
	token.EQ:             PrecEquality,
	token.NEQ:            PrecEquality,
	token.LT:              PrecComparison,
	token.LE:              PrecComparison,
	token.GT:              PrecComparison,
	token.GE:              PrecComparison,
	token.SPACESHIP:       PrecComparison,
	token.DOTDOT:          PrecRange,
	token.DOTDOTEQ:        PrecRange,
	token.PLUS:            PrecTerm,
	token.MINUS:           PrecTerm,
	token.STAR:            PrecFactor,
	token.SLASH:           PrecFactor,
	token.PERCENT:         PrecFactor,
	token.CUSTOM_OP:       PrecFactor,
	token.DOT:             PrecPostfix,
	token.QUESTION_DOT:    PrecPostfix,
	token.LBRACKET:        PrecPostfix,
	token.LPAREN:          PrecPostfix,
}

func precedenceOf(k token.Kind) Precedence {
	if p, ok := infixPrecedence[k]; ok {
		return p
	}
	return PrecNone
}
