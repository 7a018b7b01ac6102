package parser

import (
	"strings"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/lexer"
	"github.com/tyl-lang/tyl/internal/token"
)

var makeKeywords = map[string]bool{
	"Future": true, "ThreadPool": true, "CancelToken": true, "Channel": true,
	"Mutex": true, "RWLock": true, "Cond": true, "Semaphore": true, "Atomic": true,
	"Box": true, "Rc": true, "Arc": true, "Weak": true, "Cell": true, "RefCell": true,
}

// parseExpression is the entry point of the precedence-climbing expression
// parser (spec §4.2): it parses one unary/primary operand then folds in
// infix operators whose precedence is at least minPrec.
func (p *Parser) parseExpression(minPrec Precedence) ast.Expression {
	left := p.parseUnary()
	return p.parseBinaryRHS(left, minPrec)
}

func (p *Parser) canStartExpr() bool {
	switch p.cur().Kind {
	case token.NEWLINE, token.SEMI, token.RBRACE, token.RPAREN, token.RBRACKET,
		token.COMMA, token.COLON, token.EOF, token.DEDENT:
		return false
	}
	return true
}

func (p *Parser) parseBinaryRHS(left ast.Expression, minPrec Precedence) ast.Expression {
	for {
		if minPrec <= PrecTernary && p.atKeyword("if") {
			loc := p.cur().Loc
			p.advance()
			cond := p.parseExpression(PrecTernary + 1)
			p.expectKeyword("else")
			elseE := p.parseExpression(PrecTernary)
			left = &ast.TernaryExpr{Base: baseAt(loc), Cond: cond, Then: left, Else: elseE}
			continue
		}
		// A bare `?` reaching here (rather than being consumed as postfix
		// propagate in parsePostfix) can only be the ternary spelling,
		// since parsePostfix already swallows `?` unless it is directly
		// followed by `:` (spec §3.2's two `?`-surface-forms note).
		if minPrec <= PrecTernary && p.check(token.QUESTION) {
			loc := p.cur().Loc
			p.advance()
			thenE := p.parseExpression(PrecTernary)
			p.expect(token.COLON, ":")
			elseE := p.parseExpression(PrecTernary)
			left = &ast.TernaryExpr{Base: baseAt(loc), Cond: left, Then: thenE, Else: elseE}
			continue
		}
		if minPrec <= PrecAssignment && p.check(token.CHAN_SEND) {
			loc := p.advance().Loc
			val := p.parseExpression(PrecAssignment)
			left = &ast.ChanSendExpr{Base: baseAt(loc), Chan: left, Value: val}
			continue
		}

		k := p.cur().Kind
		prec := precedenceOf(k)
		if k == token.CUSTOM_OP {
			if _, ok := p.reg.IsUserOperator(p.cur().Lexeme); ok {
				prec = PrecFactor
			}
		}
		if prec == PrecNone || prec < minPrec {
			return left
		}
		opTok := p.advance()
		switch opTok.Kind {
		case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN, token.SLASH_ASSIGN, token.PERCENT_ASSIGN:
			right := p.parseExpression(PrecAssignment)
			left = &ast.AssignExpr{Base: baseAt(opTok.Loc), Op: opTok.Lexeme, Target: left, Value: right}
		case token.DOT:
			left = p.parseMemberOrCall(left, opTok.Loc, false)
		case token.QUESTION_DOT:
			left = p.parseMemberOrCall(left, opTok.Loc, true)
		case token.LBRACKET:
			idx := p.parseExpression(PrecAssignment)
			p.expect(token.RBRACKET, "]")
			left = &ast.IndexExpr{Base: baseAt(opTok.Loc), Receiver: left, Index: idx}
		case token.LPAREN:
			left = p.finishCall(left, opTok.Loc)
		case token.DOTDOT, token.DOTDOTEQ:
			inclusive := opTok.Kind == token.DOTDOTEQ
			var to ast.Expression
			if p.canStartExpr() {
				to = p.parseExpression(PrecTerm)
			}
			left = &ast.RangeExpr{Base: baseAt(opTok.Loc), From: left, To: to, Inclusive: inclusive}
		case token.PIPE:
			right := p.parseExpression(PrecPipe + 1)
			left = &ast.PipeExpr{Base: baseAt(opTok.Loc), Left: left, Right: right}
		case token.QUESTION_QUESTION:
			right := p.parseExpression(PrecNullCoalesce + 1)
			left = &ast.BinaryExpr{Base: baseAt(opTok.Loc), Op: "??", Left: left, Right: right}
		case token.SPACESHIP:
			right := p.parseExpression(PrecComparison + 1)
			left = &ast.SpaceshipExpr{Base: baseAt(opTok.Loc), Left: left, Right: right}
		case token.AND:
			right := p.parseExpression(PrecAnd + 1)
			left = &ast.BinaryExpr{Base: baseAt(opTok.Loc), Op: "&&", Left: left, Right: right}
		case token.OR:
			right := p.parseExpression(PrecOr + 1)
			left = &ast.BinaryExpr{Base: baseAt(opTok.Loc), Op: "||", Left: left, Right: right}
		default:
			right := p.parseExpression(prec + 1)
			left = &ast.BinaryExpr{Base: baseAt(opTok.Loc), Op: opTok.Lexeme, Left: left, Right: right}
		}
	}
}

func (p *Parser) parseMemberOrCall(left ast.Expression, loc token.Location, safe bool) ast.Expression {
	name := p.expect(token.IDENTIFIER, "member name").Lexeme
	if safe {
		return &ast.SafeNavExpr{Base: baseAt(loc), Receiver: left, Name: name}
	}
	return &ast.MemberExpr{Base: baseAt(loc), Receiver: left, Name: name}
}

func (p *Parser) parseArg() ast.Arg {
	if p.check(token.IDENTIFIER) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == token.COLON {
		name := p.advance().Lexeme
		p.advance() // ':'
		return ast.Arg{Name: name, Value: autoLiftPlaceholder(p.parseExpression(PrecAssignment))}
	}
	return ast.Arg{Value: autoLiftPlaceholder(p.parseExpression(PrecAssignment))}
}

func (p *Parser) finishCall(callee ast.Expression, loc token.Location) ast.Expression {
	var args []ast.Arg
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		args = append(args, p.parseArg())
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN, ")")
	if m, ok := callee.(*ast.MemberExpr); ok {
		return &ast.MethodCallExpr{Base: baseAt(loc), Receiver: m.Receiver, Method: m.Name, Args: args}
	}
	return &ast.CallExpr{Base: baseAt(loc), Callee: callee, Args: args}
}

// ---- unary / prefix ----

func (p *Parser) parseUnary() ast.Expression {
	switch {
	case p.check(token.MINUS), p.check(token.PLUS), p.check(token.NOT), p.check(token.BIT_NOT):
		op := p.advance()
		return &ast.UnaryExpr{Base: baseAt(op.Loc), Op: op.Lexeme, Operand: p.parseUnary()}
	case p.check(token.STAR):
		op := p.advance()
		return &ast.DerefExpr{Base: baseAt(op.Loc), Operand: p.parseUnary()}
	case p.check(token.AMP):
		op := p.advance()
		mut := p.matchKeyword("mut")
		if mut {
			return &ast.BorrowExpr{Base: baseAt(op.Loc), Mut: true, Operand: p.parseUnary()}
		}
		return &ast.AddrOfExpr{Base: baseAt(op.Loc), Operand: p.parseUnary()}
	case p.check(token.CHAN_SEND):
		op := p.advance()
		return &ast.ChanRecvExpr{Base: baseAt(op.Loc), Chan: p.parseUnary()}
	case p.atKeyword("await"):
		op := p.advance()
		return &ast.AwaitExpr{Base: baseAt(op.Loc), Operand: p.parseUnary()}
	case p.atKeyword("spawn"):
		op := p.advance()
		return &ast.SpawnExpr{Base: baseAt(op.Loc), Body: p.parseUnary()}
	case p.atKeyword("resume"):
		op := p.advance()
		var val ast.Expression
		if p.canStartExpr() {
			val = p.parseUnary()
		}
		return &ast.ResumeExpr{Base: baseAt(op.Loc), Value: val}
	case p.atKeyword("new"):
		return p.parseNewExpr()
	case p.atKeyword("perform"):
		return p.parsePerformExpr()
	case p.atKeyword("handle"):
		return p.parseHandleExpr()
	case p.atKeyword("sizeof"), p.atKeyword("alignof"), p.atKeyword("is_pod"), p.atKeyword("is_primitive"):
		return p.parseTypeMetadataExpr()
	case p.cur().Kind == token.KEYWORD && makeKeywords[p.cur().Lexeme]:
		return p.parseMakeExpr()
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseNewExpr() ast.Expression {
	loc := p.advance().Loc // 'new'
	ty := p.parseTypeCore()
	var args []ast.Arg
	if p.match(token.LPAREN) {
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			args = append(args, p.parseArg())
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN, ")")
	}
	return &ast.NewExpr{Base: baseAt(loc), Type: ty, Args: args}
}

func (p *Parser) parsePerformExpr() ast.Expression {
	loc := p.advance().Loc // 'perform'
	effect := p.expect(token.IDENTIFIER, "effect name").Lexeme
	p.expect(token.DOT, ".")
	op := p.expect(token.IDENTIFIER, "operation name").Lexeme
	var args []ast.Arg
	if p.match(token.LPAREN) {
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			args = append(args, p.parseArg())
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN, ")")
	}
	return &ast.PerformExpr{Base: baseAt(loc), Effect: effect, Op: op, Args: args}
}

// parseHandleExpr parses `handle Effect <body-block> with op(params) => expr ...`
// (spec §3.2's effect-handling surface form).
func (p *Parser) parseHandleExpr() ast.Expression {
	loc := p.advance().Loc // 'handle'
	effect := p.expect(token.IDENTIFIER, "effect name").Lexeme
	bodyLoc := p.cur().Loc
	bodyBlk := p.parseBodyBlock()
	h := &ast.HandleExpr{Base: baseAt(loc), Effect: effect, Body: &ast.BlockExpr{Base: baseAt(bodyLoc), Block: bodyBlk}}
	if p.matchKeyword("with") {
		p.skipNewlines()
		indented := p.match(token.INDENT)
		for p.check(token.IDENTIFIER) && !p.check(token.EOF) {
			opName := p.advance().Lexeme
			var params []string
			if p.match(token.LPAREN) {
				for !p.check(token.RPAREN) && !p.check(token.EOF) {
					params = append(params, p.expect(token.IDENTIFIER, "parameter").Lexeme)
					if !p.match(token.COMMA) {
						break
					}
				}
				p.expect(token.RPAREN, ")")
			}
			p.expect(token.FAT_ARROW, "=>")
			armBody := p.parseExpression(PrecAssignment)
			h.Arms = append(h.Arms, ast.HandleArm{Op: opName, Params: params, Body: armBody})
			if !p.match(token.COMMA) {
				p.skipNewlines()
			}
			if p.check(token.DEDENT) || p.check(token.RBRACE) || p.check(token.EOF) {
				break
			}
		}
		if indented {
			p.match(token.DEDENT)
		}
	}
	return h
}

func (p *Parser) parseTypeMetadataExpr() ast.Expression {
	t := p.advance()
	p.expect(token.LPAREN, "(")
	ty := p.parseType()
	p.expect(token.RPAREN, ")")
	return &ast.TypeMetadataExpr{Base: baseAt(t.Loc), Op: t.Lexeme, Type: ty}
}

// parseMakeExpr covers the make-* family: Future/ThreadPool/CancelToken/
// Channel/Mutex/RWLock/Cond/Semaphore/Atomic/Box/Rc/Arc/Weak/Cell/RefCell
// constructors (spec §3.2).
func (p *Parser) parseMakeExpr() ast.Expression {
	t := p.advance()
	m := &ast.MakeExpr{Base: baseAt(t.Loc), Kind: t.Lexeme}
	if p.match(token.LBRACKET) {
		m.ElemType = p.parseType()
		p.expect(token.RBRACKET, "]")
	}
	if p.match(token.LPAREN) {
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			m.Args = append(m.Args, p.parseArg())
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN, ")")
	}
	if t.Lexeme == "Channel" && len(m.Args) > 0 {
		if il, ok := m.Args[0].Value.(*ast.IntegerLiteral); ok {
			m.ChanCap = int(il.Value)
		}
	}
	return m
}

// ---- postfix ----

func (p *Parser) parsePostfix() ast.Expression {
	x := p.parsePrimary()
	for {
		switch {
		case p.atKeyword("as"):
			loc := p.advance().Loc
			ty := p.parseType()
			x = &ast.CastExpr{Base: baseAt(loc), Operand: x, Type: ty}
		case p.atKeyword("is"):
			loc := p.advance().Loc
			ty := p.parseType()
			x = &ast.TypeCheckExpr{Base: baseAt(loc), Operand: x, Type: ty}
		case p.check(token.QUESTION) && (p.pos+1 >= len(p.toks) || p.toks[p.pos+1].Kind != token.COLON):
			loc := p.advance().Loc
			x = &ast.PropagateExpr{Base: baseAt(loc), Operand: x}
		default:
			return x
		}
	}
}

// ---- primary ----

func (p *Parser) parsePrimary() ast.Expression {
	t := p.cur()
	switch t.Kind {
	case token.INTEGER:
		p.advance()
		return &ast.IntegerLiteral{Base: baseAt(t.Loc), Value: t.Literal.Int, Suffix: numSuffix(t.Lexeme)}
	case token.FLOAT:
		p.advance()
		return &ast.FloatLiteral{Base: baseAt(t.Loc), Value: t.Literal.Flt, Suffix: numSuffix(t.Lexeme)}
	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Base: baseAt(t.Loc), Value: t.Literal.Str}
	case token.INTERP_STRING:
		p.advance()
		return p.parseInterpolated(t)
	case token.CHAR:
		p.advance()
		return &ast.CharLiteral{Base: baseAt(t.Loc), Value: rune(t.Literal.Int)}
	case token.BYTE_STRING, token.RAW_BYTE_STRING:
		p.advance()
		return &ast.ByteStringLiteral{Base: baseAt(t.Loc), Value: []byte(t.Literal.Str), Raw: t.Kind == token.RAW_BYTE_STRING}
	case token.LIFETIME:
		p.advance()
		return &ast.Identifier{Base: baseAt(t.Loc), Name: t.Lexeme}
	case token.IDENTIFIER:
		p.advance()
		if t.Lexeme == "_" {
			return &ast.Placeholder{Base: baseAt(t.Loc)}
		}
		if p.reg.DSLNames[t.Lexeme] && p.check(token.COLON) {
			return p.parseDSLBlockExpr(t.Lexeme, t.Loc)
		}
		if p.check(token.LBRACE) && p.looksLikeRecordLiteral() {
			return p.parseRecordLiteral(t.Lexeme, t.Loc)
		}
		return &ast.Identifier{Base: baseAt(t.Loc), Name: t.Lexeme}
	case token.KEYWORD:
		return p.parseKeywordPrimary(t)
	case token.LPAREN:
		return p.parseParenExpr()
	case token.LBRACKET:
		return p.parseListOrComprehension()
	case token.LBRACE:
		return p.parseMapLiteral()
	case token.OR:
		loc := p.advance().Loc
		return &ast.LambdaExpr{Base: baseAt(loc), Body: p.parseExpression(PrecAssignment)}
	case token.BIT_OR:
		return p.parseLambda()
	default:
		p.errorf("E1003", "unexpected token %s %q in expression", t.Kind, t.Lexeme)
		p.advance()
		return &ast.Identifier{Base: baseAt(t.Loc), Name: "<error>"}
	}
}

func (p *Parser) parseKeywordPrimary(t token.Token) ast.Expression {
	switch t.Lexeme {
	case "true":
		p.advance()
		return &ast.BoolLiteral{Base: baseAt(t.Loc), Value: true}
	case "false":
		p.advance()
		return &ast.BoolLiteral{Base: baseAt(t.Loc), Value: false}
	case "nil":
		p.advance()
		return &ast.NilLiteral{Base: baseAt(t.Loc)}
	default:
		p.advance()
		return &ast.Identifier{Base: baseAt(t.Loc), Name: t.Lexeme}
	}
}

func (p *Parser) parseLambda() ast.Expression {
	loc := p.advance().Loc // '|'
	var params []string
	for !p.check(token.BIT_OR) && !p.check(token.EOF) {
		params = append(params, p.expect(token.IDENTIFIER, "lambda parameter").Lexeme)
		if p.match(token.COLON) {
			p.parseType()
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.BIT_OR, "|")
	return &ast.LambdaExpr{Base: baseAt(loc), Params: params, Body: p.parseExpression(PrecAssignment)}
}

func (p *Parser) parseParenExpr() ast.Expression {
	loc := p.advance().Loc // '('
	if p.match(token.RPAREN) {
		return &ast.NilLiteral{Base: baseAt(loc)}
	}
	e := p.parseExpression(PrecAssignment)
	p.expect(token.RPAREN, ")")
	return e
}

func (p *Parser) parseListOrComprehension() ast.Expression {
	loc := p.advance().Loc // '['
	if p.match(token.RBRACKET) {
		return &ast.ListExpr{Base: baseAt(loc)}
	}
	first := p.parseExpression(PrecAssignment)
	if p.matchKeyword("for") {
		varName := p.expect(token.IDENTIFIER, "loop variable").Lexeme
		p.expectKeyword("in")
		iter := p.parseExpression(PrecRange)
		var cond ast.Expression
		if p.matchKeyword("if") {
			cond = p.parseExpression(PrecAssignment)
		}
		p.expect(token.RBRACKET, "]")
		return &ast.ListComprehension{Base: baseAt(loc), Elem: first, VarName: varName, Iter: iter, Cond: cond}
	}
	elems := []ast.Expression{first}
	for p.match(token.COMMA) {
		if p.check(token.RBRACKET) {
			break
		}
		elems = append(elems, p.parseExpression(PrecAssignment))
	}
	p.expect(token.RBRACKET, "]")
	return &ast.ListExpr{Base: baseAt(loc), Elements: elems}
}

func (p *Parser) parseMapLiteral() ast.Expression {
	loc := p.advance().Loc // '{'
	m := &ast.MapExpr{Base: baseAt(loc)}
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		key := p.parseExpression(PrecTernary + 1)
		p.expect(token.COLON, ":")
		val := p.parseExpression(PrecAssignment)
		m.Entries = append(m.Entries, ast.MapEntry{Key: key, Value: val})
		if !p.match(token.COMMA) {
			p.skipNewlines()
			break
		}
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return m
}

func (p *Parser) looksLikeRecordLiteral() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	if p.toks[p.pos+1].Kind == token.RBRACE {
		return true
	}
	return p.toks[p.pos+1].Kind == token.IDENTIFIER && p.pos+2 < len(p.toks) && p.toks[p.pos+2].Kind == token.COLON
}

func (p *Parser) parseRecordLiteral(typeName string, loc token.Location) ast.Expression {
	p.advance() // '{'
	rec := &ast.RecordExpr{Base: baseAt(loc), TypeName: typeName}
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		fname := p.expect(token.IDENTIFIER, "field name").Lexeme
		p.expect(token.COLON, ":")
		val := p.parseExpression(PrecAssignment)
		rec.Fields = append(rec.Fields, ast.RecordFieldInit{Name: fname, Value: val})
		if !p.match(token.COMMA) {
			p.skipNewlines()
			break
		}
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return rec
}

// parseDSLBlockExpr desugars a `name: <raw text until DEDENT>` DSL block
// into a call to the registry-mangled `__dsl_<name>` function, mirroring
// the `__infix_<op>` mangling convention the macro registry already uses
// for user infix operators (spec §4.3 step 4). The expander resolves these
// calls against the registered DSLTransformer for <name>.
func (p *Parser) parseDSLBlockExpr(name string, loc token.Location) ast.Expression {
	raw := p.captureDSLBlock()
	return &ast.CallExpr{
		Base:   baseAt(loc),
		Callee: &ast.Identifier{Base: baseAt(loc), Name: "__dsl_" + name},
		Args:   []ast.Arg{{Value: &ast.StringLiteral{Base: baseAt(loc), Value: raw}}},
	}
}

// parseInterpolated splits the \x01/\x02-delimited segments the lexer
// embedded in an INTERP_STRING literal back into text fragments and
// sub-expressions, re-lexing and re-parsing each embedded expression source
// range independently (spec §3.1, §4.1).
func (p *Parser) parseInterpolated(t token.Token) ast.Expression {
	raw := t.Literal.Str
	lit := &ast.InterpolatedString{Base: baseAt(t.Loc)}
	var cur strings.Builder
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c == '\x01' {
			lit.Fragments = append(lit.Fragments, cur.String())
			cur.Reset()
			j := i + 1
			for j < len(raw) && raw[j] != '\x02' {
				j++
			}
			lit.Exprs = append(lit.Exprs, p.parseSubExpr(raw[i+1:j], t.Loc))
			if j < len(raw) {
				j++
			}
			i = j
			continue
		}
		cur.WriteByte(c)
		i++
	}
	lit.Fragments = append(lit.Fragments, cur.String())
	return lit
}

func (p *Parser) parseSubExpr(src string, loc token.Location) ast.Expression {
	toks := lexer.Lex([]byte(src), loc.Filename, p.bag)
	sub := &Parser{toks: toks, bag: p.bag, reg: p.reg, file: loc.Filename}
	return sub.parseExpression(PrecAssignment)
}

func numSuffix(lexeme string) string {
	for _, suf := range []string{"i128", "u128", "f128", "i64", "u64", "f64", "i32", "u32", "f32", "i16", "u16", "f16", "i8", "u8"} {
		if strings.HasSuffix(lexeme, suf) {
			return suf
		}
	}
	return ""
}

// autoLiftPlaceholder implements the bare-`_`-as-lambda-shorthand auto-lift
// for common shapes (spec §4.2): an argument expression containing a
// Placeholder not already under an explicit LambdaExpr is rewritten into a
// single-parameter lambda binding "_it" in place of each Placeholder.
func autoLiftPlaceholder(e ast.Expression) ast.Expression {
	if !containsPlaceholder(e) {
		return e
	}
	body := replacePlaceholder(e, "_it")
	return &ast.LambdaExpr{Base: baseAt(e.Location()), Params: []string{"_it"}, Body: body}
}

func containsPlaceholder(e ast.Expression) bool {
	switch x := e.(type) {
	case *ast.Placeholder:
		return true
	case *ast.BinaryExpr:
		return containsPlaceholder(x.Left) || containsPlaceholder(x.Right)
	case *ast.UnaryExpr:
		return containsPlaceholder(x.Operand)
	case *ast.MemberExpr:
		return containsPlaceholder(x.Receiver)
	case *ast.MethodCallExpr:
		if containsPlaceholder(x.Receiver) {
			return true
		}
		for _, a := range x.Args {
			if containsPlaceholder(a.Value) {
				return true
			}
		}
		return false
	case *ast.CallExpr:
		for _, a := range x.Args {
			if containsPlaceholder(a.Value) {
				return true
			}
		}
		return false
	case *ast.IndexExpr:
		return containsPlaceholder(x.Receiver) || containsPlaceholder(x.Index)
	case *ast.TernaryExpr:
		return containsPlaceholder(x.Cond) || containsPlaceholder(x.Then) || containsPlaceholder(x.Else)
	default:
		return false
	}
}

func replacePlaceholder(e ast.Expression, name string) ast.Expression {
	switch x := e.(type) {
	case *ast.Placeholder:
		return &ast.Identifier{Base: x.Base, Name: name}
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Base: x.Base, Op: x.Op, Left: replacePlaceholder(x.Left, name), Right: replacePlaceholder(x.Right, name)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Base: x.Base, Op: x.Op, Operand: replacePlaceholder(x.Operand, name)}
	case *ast.MemberExpr:
		return &ast.MemberExpr{Base: x.Base, Receiver: replacePlaceholder(x.Receiver, name), Name: x.Name}
	case *ast.MethodCallExpr:
		args := make([]ast.Arg, len(x.Args))
		for i, a := range x.Args {
			args[i] = ast.Arg{Name: a.Name, Value: replacePlaceholder(a.Value, name)}
		}
		return &ast.MethodCallExpr{Base: x.Base, Receiver: replacePlaceholder(x.Receiver, name), Method: x.Method, Args: args, TypeArg: x.TypeArg}
	case *ast.CallExpr:
		args := make([]ast.Arg, len(x.Args))
		for i, a := range x.Args {
			args[i] = ast.Arg{Name: a.Name, Value: replacePlaceholder(a.Value, name)}
		}
		return &ast.CallExpr{Base: x.Base, Callee: x.Callee, Args: args, TypeArg: x.TypeArg}
	case *ast.IndexExpr:
		return &ast.IndexExpr{Base: x.Base, Receiver: replacePlaceholder(x.Receiver, name), Index: replacePlaceholder(x.Index, name)}
	case *ast.TernaryExpr:
		return &ast.TernaryExpr{Base: x.Base, Cond: replacePlaceholder(x.Cond, name), Then: replacePlaceholder(x.Then, name), Else: replacePlaceholder(x.Else, name)}
	default:
		return e
	}
}
