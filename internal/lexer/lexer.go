// Package lexer turns Tyl source text into a token stream, synthesising
// INDENT/DEDENT the way an indentation-sensitive grammar requires (spec §4.1).
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tyl-lang/tyl/internal/diag"
	"github.com/tyl-lang/tyl/internal/token"
)

// suffixes is the closed set of numeric literal suffixes (spec §4.1).
var suffixes = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true,
	"f16": true, "f32": true, "f64": true, "f128": true,
}

// floatSuffixes forces FLOAT kind regardless of whether a '.' was seen.
var floatSuffixes = map[string]bool{"f16": true, "f32": true, "f64": true, "f128": true}

// Lexer scans one source file into a token slice.
type Lexer struct {
	src      []byte
	filename string
	pos      int
	line     int
	col      int

	indents       []int
	atLineStart   bool
	pendingTokens []token.Token
	lastWasLayout bool // NEWLINE/INDENT suppression state
	bag           *diag.Bag
}

// New creates a Lexer over src, reporting into bag.
func New(src []byte, filename string, bag *diag.Bag) *Lexer {
	return &Lexer{
		src:         src,
		filename:    filename,
		line:        1,
		col:         1,
		indents:     []int{0},
		atLineStart: true,
		bag:         bag,
	}
}

// Lex runs the full scan and returns a token slice terminated by EOF.
func Lex(src []byte, filename string, bag *diag.Bag) []token.Token {
	l := New(src, filename, bag)
	return l.lexAll()
}

func (l *Lexer) loc() token.Location {
	return token.Location{Filename: l.filename, Line: l.line, Column: l.col}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) lexAll() []token.Token {
	var out []token.Token
	for {
		if l.atLineStart {
			toks := l.handleLineStart()
			out = append(out, toks...)
			if l.pos >= len(l.src) {
				break
			}
		}
		if l.pos >= len(l.src) {
			break
		}
		tok, ok := l.next()
		if ok {
			if tok.Kind == token.NEWLINE {
				if l.lastOut(out) == token.NEWLINE || len(out) == 0 {
					// coalesce consecutive NEWLINE tokens
				} else {
					out = append(out, tok)
				}
				l.atLineStart = true
				continue
			}
			out = append(out, tok)
		}
	}
	// flush remaining DEDENTs at EOF
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		out = append(out, token.Token{Kind: token.DEDENT, Loc: l.loc()})
	}
	out = append(out, token.Token{Kind: token.EOF, Loc: l.loc()})
	return out
}

func (l *Lexer) lastOut(out []token.Token) token.Kind {
	if len(out) == 0 {
		return token.ILLEGAL
	}
	return out[len(out)-1].Kind
}

// handleLineStart computes indentation width and emits INDENT/DEDENT.
// Comment-only and blank lines never alter indentation (spec §4.1).
func (l *Lexer) handleLineStart() []token.Token {
	l.atLineStart = false
	start := l.pos
	width := 0
	for l.pos < len(l.src) {
		c := l.peek()
		if c == ' ' {
			width++
			l.advance()
		} else if c == '\t' {
			width += 4
			l.advance()
		} else {
			break
		}
	}
	_ = start
	c := l.peek()
	if c == 0 || c == '\n' || c == '\r' || (c == '/' && l.peekAt(1) == '/') {
		// blank or comment-only line: skip to end of line, do not touch indentation
		for l.pos < len(l.src) && l.peek() != '\n' {
			l.advance()
		}
		if l.pos < len(l.src) {
			l.advance()
		}
		l.atLineStart = true
		return nil
	}

	top := l.indents[len(l.indents)-1]
	var out []token.Token
	if width > top {
		l.indents = append(l.indents, width)
		out = append(out, token.Token{Kind: token.INDENT, Loc: l.loc()})
		l.lastWasLayout = true
	} else if width < top {
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			out = append(out, token.Token{Kind: token.DEDENT, Loc: l.loc()})
		}
		if l.indents[len(l.indents)-1] != width {
			l.bag.Add(diag.Diagnostic{
				Level:   diag.Error,
				Code:    "E0003",
				Message: "inconsistent indentation",
				Span:    l.loc(),
			})
			l.indents = append(l.indents, width)
		}
		l.lastWasLayout = true
	}
	return out
}

// next scans a single token (not NEWLINE-coalescing; caller handles that).
func (l *Lexer) next() (token.Token, bool) {
	l.skipSpacesAndComments()
	if l.pos >= len(l.src) {
		return token.Token{}, false
	}
	start := l.loc()
	c := l.peek()

	switch {
	case c == '\n':
		l.advance()
		return token.Token{Kind: token.NEWLINE, Loc: start}, true
	case c == '\'':
		return l.lexCharOrLifetime(start)
	case c == '"':
		return l.lexString(start, false)
	case c == 'b' && l.peekAt(1) == '"':
		l.advance()
		return l.lexByteString(start, false)
	case c == 'b' && l.peekAt(1) == 'r' && l.peekAt(2) == '"':
		l.advance()
		l.advance()
		return l.lexByteString(start, true)
	case c == '@':
		return l.lexAttribute(start)
	case c == '#' && l.peekAt(1) == '[':
		return l.lexHashAttribute(start)
	case isDigit(c):
		return l.lexNumber(start)
	case isIdentStart(c):
		return l.lexIdentifier(start)
	default:
		return l.lexOperator(start)
	}
}

func (l *Lexer) skipSpacesAndComments() {
	for l.pos < len(l.src) {
		c := l.peek()
		if c == ' ' || c == '\t' || c == '\r' {
			l.advance()
			continue
		}
		if c == '/' && l.peekAt(1) == '/' {
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		break
	}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentCont(c byte) bool  { return isIdentStart(c) || isDigit(c) }

func (l *Lexer) lexIdentifier(start token.Location) (token.Token, bool) {
	begin := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.advance()
	}
	lex := string(l.src[begin:l.pos])
	kind := token.IDENTIFIER
	if token.Keywords[lex] {
		kind = token.KEYWORD
	}
	return token.Token{Kind: kind, Lexeme: lex, Loc: start}, true
}

func (l *Lexer) lexNumber(start token.Location) (token.Token, bool) {
	begin := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.pos
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if isDigit(l.peek()) {
			isFloat = true
			for l.pos < len(l.src) && isDigit(l.peek()) {
				l.advance()
			}
		} else {
			l.pos = save
		}
	}
	numText := string(l.src[begin:l.pos])
	suffix := ""
	if isIdentStart(l.peek()) {
		sbegin := l.pos
		for l.pos < len(l.src) && isIdentCont(l.peek()) {
			l.advance()
		}
		cand := string(l.src[sbegin:l.pos])
		if suffixes[cand] {
			suffix = cand
		} else {
			l.pos = sbegin
		}
	}
	if floatSuffixes[suffix] {
		isFloat = true
	}
	lex := numText + suffix
	if isFloat {
		v, _ := strconv.ParseFloat(numText, 64)
		return token.Token{Kind: token.FLOAT, Lexeme: lex, Loc: start,
			Literal: token.Literal{Kind: token.LitFloat, Flt: v}}, true
	}
	v, _ := strconv.ParseInt(numText, 10, 64)
	return token.Token{Kind: token.INTEGER, Lexeme: lex, Loc: start,
		Literal: token.Literal{Kind: token.LitInt, Int: v}}, true
}

// lexCharOrLifetime disambiguates `'` followed by an identifier (lifetime,
// spec §4.1) from a char literal.
func (l *Lexer) lexCharOrLifetime(start token.Location) (token.Token, bool) {
	// 'name  (no closing quote before a non-identifier char) => lifetime
	if isIdentStart(l.peekAt(1)) {
		save, saveLine, saveCol := l.pos, l.line, l.col
		l.advance() // '
		begin := l.pos
		for l.pos < len(l.src) && isIdentCont(l.peek()) {
			l.advance()
		}
		if l.peek() != '\'' {
			lex := string(l.src[begin:l.pos])
			return token.Token{Kind: token.LIFETIME, Lexeme: "'" + lex, Loc: start}, true
		}
		l.pos, l.line, l.col = save, saveLine, saveCol
	}
	l.advance() // opening '
	var r rune
	switch l.peek() {
	case '\\':
		l.advance()
		r = l.lexEscape()
	default:
		sz := 1
		if l.peek() >= 0x80 {
			rr, n := utf8.DecodeRune(l.src[l.pos:])
			r, sz = rr, n
		} else {
			r = rune(l.peek())
		}
		for i := 0; i < sz; i++ {
			l.advance()
		}
	}
	if l.peek() == '\'' {
		l.advance()
	} else {
		l.bag.Add(diag.Diagnostic{Level: diag.Error, Code: "E0002", Message: "unterminated char literal", Span: start})
	}
	return token.Token{Kind: token.CHAR, Loc: start,
		Literal: token.Literal{Kind: token.LitInt, Int: int64(r)}}, true
}

// lexEscape handles \n \t \r \\ \" \' \{ \xNN \u{...}.
func (l *Lexer) lexEscape() rune {
	c := l.peek()
	switch c {
	case 'n':
		l.advance()
		return '\n'
	case 't':
		l.advance()
		return '\t'
	case 'r':
		l.advance()
		return '\r'
	case '\\':
		l.advance()
		return '\\'
	case '"':
		l.advance()
		return '"'
	case '\'':
		l.advance()
		return '\''
	case '{':
		l.advance()
		return '{'
	case 'x':
		l.advance()
		var v int64
		for i := 0; i < 2 && isHex(l.peek()); i++ {
			v = v*16 + int64(hexVal(l.peek()))
			l.advance()
		}
		return rune(v)
	case 'u':
		l.advance()
		if l.peek() == '{' {
			l.advance()
			var v int64
			for l.peek() != '}' && l.pos < len(l.src) {
				v = v*16 + int64(hexVal(l.peek()))
				l.advance()
			}
			if l.peek() == '}' {
				l.advance()
			}
			return rune(v)
		}
		return 'u'
	default:
		l.advance()
		return rune(c)
	}
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
func hexVal(c byte) int {
	switch {
	case isDigit(c):
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

// lexString scans a double-quoted string, recording interpolation segments
// with \x01 ... \x02 markers around embedded expression source (spec §3.1, §4.1).
func (l *Lexer) lexString(start token.Location, raw bool) (token.Token, bool) {
	l.advance() // opening quote
	var sb strings.Builder
	interpolated := false
	for {
		if l.pos >= len(l.src) {
			l.bag.Add(diag.Diagnostic{Level: diag.Error, Code: "E0001", Message: "unterminated string literal", Span: start})
			break
		}
		c := l.peek()
		if c == '"' {
			l.advance()
			break
		}
		if c == '\x01' || c == '\x02' {
			l.bag.Add(diag.Diagnostic{Level: diag.Error, Code: "E0001",
				Message: "raw control bytes 0x01/0x02 are not permitted in string content", Span: l.loc()})
			l.advance()
			continue
		}
		if !raw && c == '\\' {
			l.advance()
			sb.WriteRune(l.lexEscape())
			continue
		}
		if !raw && c == '{' && l.peekAt(1) != '{' {
			interpolated = true
			sb.WriteByte('\x01')
			l.advance()
			depth := 1
			for depth > 0 {
				if l.pos >= len(l.src) {
					l.bag.Add(diag.Diagnostic{Level: diag.Error, Code: "E0002",
						Message: "unterminated string interpolation", Span: start})
					break
				}
				ch := l.peek()
				if ch == '{' {
					depth++
				} else if ch == '}' {
					depth--
					if depth == 0 {
						l.advance()
						break
					}
				}
				sb.WriteByte(ch)
				l.advance()
			}
			sb.WriteByte('\x02')
			continue
		}
		sb.WriteByte(c)
		l.advance()
	}
	kind := token.STRING
	if interpolated {
		kind = token.INTERP_STRING
	}
	return token.Token{Kind: kind, Loc: start, Literal: token.Literal{Kind: token.LitStr, Str: sb.String()}}, true
}

func (l *Lexer) lexByteString(start token.Location, raw bool) (token.Token, bool) {
	tok, _ := l.lexString(start, raw)
	tok.Kind = token.BYTE_STRING
	if raw {
		tok.Kind = token.RAW_BYTE_STRING
	}
	return tok, true
}

func (l *Lexer) lexAttribute(start token.Location) (token.Token, bool) {
	l.advance() // @
	begin := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.advance()
	}
	name := string(l.src[begin:l.pos])
	raw := name
	if l.peek() == '(' {
		argBegin := l.pos
		depth := 0
		for l.pos < len(l.src) {
			c := l.peek()
			if c == '(' {
				depth++
			} else if c == ')' {
				depth--
				l.advance()
				if depth == 0 {
					break
				}
				continue
			}
			l.advance()
		}
		raw = name + string(l.src[argBegin:l.pos])
	}
	return token.Token{Kind: token.ATTRIBUTE, Lexeme: name, Loc: start,
		Literal: token.Literal{Kind: token.LitStr, Str: raw}}, true
}

func (l *Lexer) lexHashAttribute(start token.Location) (token.Token, bool) {
	l.advance() // #
	l.advance() // [
	begin := l.pos
	depth := 1
	for l.pos < len(l.src) && depth > 0 {
		c := l.peek()
		if c == '[' {
			depth++
		} else if c == ']' {
			depth--
			if depth == 0 {
				break
			}
		}
		l.advance()
	}
	raw := string(l.src[begin:l.pos])
	if l.peek() == ']' {
		l.advance()
	}
	return token.Token{Kind: token.ATTRIBUTE, Lexeme: raw, Loc: start,
		Literal: token.Literal{Kind: token.LitStr, Str: raw}}, true
}

// lexOperator performs maximal-munch operator scanning (spec §4.1).
func (l *Lexer) lexOperator(start token.Location) (token.Token, bool) {
	c := l.advance()
	two := func(b byte) bool {
		if l.peek() == b {
			l.advance()
			return true
		}
		return false
	}
	switch c {
	case '+':
		if two('+') {
			return mk(token.PLUSPLUS, "++", start), true
		}
		if two('=') {
			return mk(token.PLUS_ASSIGN, "+=", start), true
		}
		return mk(token.PLUS, "+", start), true
	case '-':
		if two('-') {
			return mk(token.MINUSMINUS, "--", start), true
		}
		if two('=') {
			return mk(token.MINUS_ASSIGN, "-=", start), true
		}
		if two('>') {
			return mk(token.ARROW, "->", start), true
		}
		return mk(token.MINUS, "-", start), true
	case '*':
		if two('*') {
			return mk(token.STARSTAR, "**", start), true
		}
		if two('=') {
			return mk(token.STAR_ASSIGN, "*=", start), true
		}
		return mk(token.STAR, "*", start), true
	case '/':
		if two('=') {
			return mk(token.SLASH_ASSIGN, "/=", start), true
		}
		return mk(token.SLASH, "/", start), true
	case '%':
		if two('%') {
			return mk(token.PERCENTPERCENT, "%%", start), true
		}
		if two('=') {
			return mk(token.PERCENT_ASSIGN, "%=", start), true
		}
		return mk(token.PERCENT, "%", start), true
	case '^':
		if two('^') {
			return mk(token.CARETCARET, "^^", start), true
		}
		return mk(token.BIT_XOR, "^", start), true
	case '@':
		if two('@') {
			return mk(token.ATAT, "@@", start), true
		}
		return mk(token.AT, "@", start), true
	case '=':
		if two('=') {
			return mk(token.EQ, "==", start), true
		}
		if two('>') {
			return mk(token.FAT_ARROW, "=>", start), true
		}
		return mk(token.ASSIGN, "=", start), true
	case '!':
		if two('=') {
			return mk(token.NEQ, "!=", start), true
		}
		return mk(token.NOT, "!", start), true
	case '<':
		if l.peek() == '=' && l.peekAt(1) == '>' {
			l.advance()
			l.advance()
			return mk(token.SPACESHIP, "<=>", start), true
		}
		if two('=') {
			return mk(token.LE, "<=", start), true
		}
		if two('<') {
			return mk(token.SHL, "<<", start), true
		}
		if two('-') {
			return mk(token.CHAN_SEND, "<-", start), true
		}
		return mk(token.LT, "<", start), true
	case '>':
		if two('=') {
			return mk(token.GE, ">=", start), true
		}
		if two('>') {
			return mk(token.SHR, ">>", start), true
		}
		return mk(token.GT, ">", start), true
	case '&':
		if two('&') {
			return mk(token.AND, "&&", start), true
		}
		return mk(token.AMP, "&", start), true
	case '|':
		if two('|') {
			return mk(token.OR, "||", start), true
		}
		if two('>') {
			return mk(token.PIPE, "|>", start), true
		}
		return mk(token.BIT_OR, "|", start), true
	case '?':
		if two('.') {
			return mk(token.QUESTION_DOT, "?.", start), true
		}
		if two('?') {
			return mk(token.QUESTION_QUESTION, "??", start), true
		}
		return mk(token.QUESTION, "?", start), true
	case '.':
		if two('.') {
			if two('=') {
				return mk(token.DOTDOTEQ, "..=", start), true
			}
			return mk(token.DOTDOT, "..", start), true
		}
		return mk(token.DOT, ".", start), true
	case ':':
		if two(':') {
			return mk(token.COLONCOLON, "::", start), true
		}
		if two('=') {
			return mk(token.DEFINE, ":=", start), true
		}
		return mk(token.COLON, ":", start), true
	case ';':
		return mk(token.SEMI, ";", start), true
	case ',':
		return mk(token.COMMA, ",", start), true
	case '(':
		return mk(token.LPAREN, "(", start), true
	case ')':
		return mk(token.RPAREN, ")", start), true
	case '{':
		return mk(token.LBRACE, "{", start), true
	case '}':
		return mk(token.RBRACE, "}", start), true
	case '[':
		return mk(token.LBRACKET, "[", start), true
	case ']':
		return mk(token.RBRACKET, "]", start), true
	case '~':
		return mk(token.BIT_NOT, "~", start), true
	default:
		lex := string(c)
		// repeated custom operator characters form CUSTOM_OP (maximal munch)
		if isCustomOpChar(c) {
			for isCustomOpChar(l.peek()) {
				lex += string(l.advance())
			}
			if len(lex) > 1 {
				return mk(token.CUSTOM_OP, lex, start), true
			}
		}
		l.bag.Add(diag.Diagnostic{Level: diag.Error, Code: "E0001",
			Message: fmt.Sprintf("unexpected character %q", c), Span: start})
		return token.Token{Kind: token.ILLEGAL, Lexeme: lex, Loc: start}, true
	}
}

func isCustomOpChar(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '^', '@', '!', '~', '$':
		return true
	}
	return false
}

func mk(k token.Kind, lex string, loc token.Location) token.Token {
	return token.Token{Kind: k, Lexeme: lex, Loc: loc}
}
