package parser

import (
	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/token"
)

// parseStatement dispatches on the leading keyword; anything else falls
// through to an expression statement (spec §4.2). A leading lifetime label
// (e.g. 'outer:) is consumed ahead of while/for/loop.
func (p *Parser) parseStatement() ast.Statement {
	label := p.parseOptionalLabel()
	switch {
	case p.check(token.LBRACE):
		return p.parseBlock()
	case p.atKeyword("let"), p.atKeyword("mut"), p.atKeyword("const"):
		return p.parseVarDecl()
	case p.check(token.IDENTIFIER) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == token.DEFINE:
		loc := p.cur().Loc
		name := p.advance().Lexeme
		p.advance() // ':='
		return &ast.VarDecl{Base: baseAt(loc), Kind: ast.VarLet, Name: name, Init: p.parseExpression(PrecAssignment)}
	case p.atKeyword("if"), p.atKeyword("unless"):
		return p.parseIfStmt()
	case p.atKeyword("while"):
		return p.parseWhileStmt(label)
	case p.atKeyword("for"):
		return p.parseForStmt(label)
	case p.atKeyword("loop"):
		return p.parseLoopStmt(label)
	case p.atKeyword("match"):
		return p.parseMatchStmt()
	case p.atKeyword("return"):
		return p.parseReturnStmt()
	case p.atKeyword("break"):
		return p.parseBreakStmt()
	case p.atKeyword("continue"):
		return p.parseContinueStmt()
	case p.atKeyword("delete"):
		return p.parseDeleteStmt()
	case p.atKeyword("lock"):
		return p.parseLockStmt()
	case p.atKeyword("with"):
		return p.parseWithStmt()
	case p.atKeyword("scope"):
		return p.parseScopeStmt()
	case p.atKeyword("require"):
		return p.parseRequireStmt()
	case p.atKeyword("ensure"):
		return p.parseEnsureStmt()
	case p.atKeyword("comptime"):
		return p.parseComptimeStmt()
	case p.atKeyword("unsafe"):
		return p.parseUnsafeBlock()
	case p.atKeyword("fn"):
		attrs, derive := p.parseAttributes()
		return p.parseFuncDecl(attrs, derive)
	default:
		loc := p.cur().Loc
		e := p.parseExpression(PrecAssignment)
		return &ast.ExprStmt{Base: baseAt(loc), X: e}
	}
}

// parseOptionalLabel recognises `'label:` immediately before a loop
// statement (spec §4.2's loop-label surface form).
func (p *Parser) parseOptionalLabel() string {
	if p.check(token.LIFETIME) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == token.COLON {
		lbl := p.advance().Lexeme
		p.advance() // ':'
		return lbl
	}
	return ""
}

func varKindFromKeyword(w string) ast.VarDeclKind {
	switch w {
	case "mut":
		return ast.VarMut
	case "const":
		return ast.VarConst
	default:
		return ast.VarLet
	}
}

func (p *Parser) parseDestructurePattern() ast.DestructurePattern {
	if p.match(token.LPAREN) {
		pat := ast.DestructurePattern{Tuple: true}
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			pat.Names = append(pat.Names, p.expect(token.IDENTIFIER, "binding name").Lexeme)
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN, ")")
		return pat
	}
	p.expect(token.LBRACE, "{")
	pat := ast.DestructurePattern{}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		field := p.expect(token.IDENTIFIER, "field name").Lexeme
		bind := field
		if p.match(token.COLON) {
			bind = p.expect(token.IDENTIFIER, "binding name").Lexeme
		}
		pat.Fields = append(pat.Fields, field)
		pat.Names = append(pat.Names, bind)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACE, "}")
	return pat
}

// parseVarDecl handles let/mut/const, tuple/record destructuring, and the
// chained-assignment surface form `mut x = mut y = mut z = v` which lowers
// to a single MultiVarDecl (spec §4.2).
func (p *Parser) parseVarDecl() ast.Statement {
	loc := p.cur().Loc
	kind := varKindFromKeyword(p.advance().Lexeme)
	if p.check(token.LPAREN) || p.check(token.LBRACE) {
		pattern := p.parseDestructurePattern()
		p.expect(token.ASSIGN, "=")
		init := p.parseExpression(PrecAssignment)
		return &ast.DestructureDecl{Base: baseAt(loc), Kind: kind, Pattern: pattern, Init: init}
	}
	name := p.expect(token.IDENTIFIER, "variable name").Lexeme
	ty := ""
	if p.match(token.COLON) {
		ty = p.parseType()
	}
	if !p.match(token.ASSIGN) {
		return &ast.VarDecl{Base: baseAt(loc), Kind: kind, Name: name, Type: ty}
	}
	if p.atKeyword("let") || p.atKeyword("mut") || p.atKeyword("const") {
		rest := p.parseVarDecl()
		switch r := rest.(type) {
		case *ast.VarDecl:
			return &ast.MultiVarDecl{Base: baseAt(loc), Kind: kind, Names: []string{name, r.Name}, Init: r.Init}
		case *ast.MultiVarDecl:
			return &ast.MultiVarDecl{Base: baseAt(loc), Kind: kind, Names: append([]string{name}, r.Names...), Init: r.Init}
		default:
			return &ast.VarDecl{Base: baseAt(loc), Kind: kind, Name: name, Type: ty}
		}
	}
	init := p.parseExpression(PrecAssignment)
	return &ast.VarDecl{Base: baseAt(loc), Kind: kind, Name: name, Type: ty, Init: init}
}

// parseBodyBlock accepts the three block surface forms the rest of the
// grammar uses for control-flow bodies; a bare single statement is wrapped
// in a one-statement block as a fallback (spec §4.2).
func (p *Parser) parseBodyBlock() *ast.Block {
	switch {
	case p.check(token.COLON), p.check(token.LBRACE):
		return p.parseBlock()
	case p.atKeyword("then"):
		return p.parseBlockUntilKeywords("end")
	case p.atKeyword("do"):
		return p.parseBlockUntilKeywords("end")
	default:
		loc := p.cur().Loc
		return &ast.Block{Base: baseAt(loc), Stmts: []ast.Statement{p.parseStatementOrSync()}}
	}
}

// parseIfStmt parses `if`/`unless`, dispatching to IfLetStmt when the
// `let`-binding surface form follows (spec §4.2).
func (p *Parser) parseIfStmt() ast.Statement {
	loc := p.cur().Loc
	unless := p.atKeyword("unless")
	p.advance() // 'if' or 'unless'
	if p.matchKeyword("let") {
		pattern, single := p.parseLetBinding()
		p.expect(token.ASSIGN, "=")
		init := p.parseExpression(PrecAssignment)
		then := p.parseBodyBlock()
		ifLet := &ast.IfLetStmt{Base: baseAt(loc), Pattern: pattern, Single: single, Init: init, Then: then}
		ifLet.Else = p.parseElseOrElif()
		return ifLet
	}
	cond := p.parseExpression(PrecAssignment)
	then := p.parseBodyBlock()
	stmt := &ast.IfStmt{Base: baseAt(loc), Unless: unless, Cond: cond, Then: then}
	stmt.Else = p.parseElseOrElif()
	return stmt
}

func (p *Parser) parseLetBinding() (ast.DestructurePattern, string) {
	if p.check(token.LPAREN) || p.check(token.LBRACE) {
		return p.parseDestructurePattern(), ""
	}
	return ast.DestructurePattern{}, p.expect(token.IDENTIFIER, "binding name").Lexeme
}

func (p *Parser) parseElseOrElif() ast.Statement {
	if p.atKeyword("elif") {
		loc := p.cur().Loc
		p.advance()
		cond := p.parseExpression(PrecAssignment)
		then := p.parseBodyBlock()
		stmt := &ast.IfStmt{Base: baseAt(loc), Cond: cond, Then: then}
		stmt.Else = p.parseElseOrElif()
		return stmt
	}
	if p.matchKeyword("else") {
		if p.atKeyword("if") {
			return p.parseIfStmt()
		}
		return p.parseBodyBlock()
	}
	return nil
}

func (p *Parser) parseWhileStmt(label string) *ast.WhileStmt {
	loc := p.cur().Loc
	p.expectKeyword("while")
	cond := p.parseExpression(PrecAssignment)
	body := p.parseBodyBlock()
	return &ast.WhileStmt{Base: baseAt(loc), Label: label, Cond: cond, Body: body}
}

func (p *Parser) parseForStmt(label string) *ast.ForStmt {
	loc := p.cur().Loc
	p.expectKeyword("for")
	name := p.expect(token.IDENTIFIER, "loop variable").Lexeme
	p.expectKeyword("in")
	iter := p.parseExpression(PrecRange)
	body := p.parseBodyBlock()
	return &ast.ForStmt{Base: baseAt(loc), Label: label, VarName: name, Iter: iter, Body: body}
}

func (p *Parser) parseLoopStmt(label string) *ast.LoopStmt {
	loc := p.cur().Loc
	p.expectKeyword("loop")
	body := p.parseBodyBlock()
	return &ast.LoopStmt{Base: baseAt(loc), Label: label, Body: body}
}

func (p *Parser) parseMatchStmt() *ast.MatchStmt {
	loc := p.cur().Loc
	p.expectKeyword("match")
	subject := p.parseExpression(PrecAssignment)
	p.skipNewlines()
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	stmt := &ast.MatchStmt{Base: baseAt(loc), Subject: subject}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		stmt.Arms = append(stmt.Arms, p.parseMatchArm())
		if !p.match(token.COMMA) {
			p.skipNewlines()
		}
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return stmt
}

func (p *Parser) parseMatchArm() ast.MatchArm {
	arm := ast.MatchArm{}
	switch {
	case p.check(token.IDENTIFIER) && p.cur().Lexeme == "_":
		p.advance()
		arm.IsWildcard = true
	case p.check(token.IDENTIFIER):
		arm.Bind = p.advance().Lexeme
	default:
		pat := p.parseExpression(PrecRange)
		if r, ok := pat.(*ast.RangeExpr); ok {
			arm.RangeFrom, arm.RangeTo = r.From, r.To
		} else {
			arm.Literal = pat
		}
	}
	if p.matchKeyword("if") {
		arm.Guard = p.parseExpression(PrecAssignment)
	}
	p.expect(token.FAT_ARROW, "=>")
	if p.check(token.LBRACE) {
		arm.Body = p.parseBlock()
	} else {
		loc := p.cur().Loc
		e := p.parseExpression(PrecAssignment)
		arm.Body = &ast.Block{Base: baseAt(loc), Stmts: []ast.Statement{&ast.ExprStmt{Base: baseAt(loc), X: e}}}
	}
	return arm
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	loc := p.cur().Loc
	p.advance()
	if !p.canStartExpr() {
		return &ast.ReturnStmt{Base: baseAt(loc)}
	}
	return &ast.ReturnStmt{Base: baseAt(loc), Value: p.parseExpression(PrecAssignment)}
}

func (p *Parser) parseBreakStmt() *ast.BreakStmt {
	loc := p.cur().Loc
	p.advance()
	label := ""
	if p.check(token.LIFETIME) {
		label = p.advance().Lexeme
	}
	return &ast.BreakStmt{Base: baseAt(loc), Label: label}
}

func (p *Parser) parseContinueStmt() *ast.ContinueStmt {
	loc := p.cur().Loc
	p.advance()
	label := ""
	if p.check(token.LIFETIME) {
		label = p.advance().Lexeme
	}
	return &ast.ContinueStmt{Base: baseAt(loc), Label: label}
}

func (p *Parser) parseDeleteStmt() *ast.DeleteStmt {
	loc := p.cur().Loc
	p.advance()
	return &ast.DeleteStmt{Base: baseAt(loc), Target: p.parseExpression(PrecAssignment)}
}

func (p *Parser) parseLockStmt() *ast.LockStmt {
	loc := p.cur().Loc
	p.advance()
	target := p.parseExpression(PrecAssignment)
	body := p.parseBodyBlock()
	return &ast.LockStmt{Base: baseAt(loc), Target: target, Body: body}
}

func (p *Parser) parseWithStmt() *ast.WithStmt {
	loc := p.cur().Loc
	p.advance()
	acquire := p.parseExpression(PrecAssignment)
	name := ""
	if p.matchKeyword("as") {
		name = p.expect(token.IDENTIFIER, "binding name").Lexeme
	}
	body := p.parseBodyBlock()
	return &ast.WithStmt{Base: baseAt(loc), Acquire: acquire, Name: name, Body: body}
}

func (p *Parser) parseScopeStmt() *ast.ScopeStmt {
	loc := p.cur().Loc
	p.advance()
	stmt := &ast.ScopeStmt{Base: baseAt(loc)}
	if p.check(token.IDENTIFIER) && p.cur().Lexeme == "timeout" {
		p.advance()
		stmt.IsTimeout = true
		stmt.TimeoutMS = p.parseExpression(PrecRange)
	} else if p.check(token.IDENTIFIER) {
		stmt.Label = p.advance().Lexeme
	}
	stmt.Body = p.parseBodyBlock()
	return stmt
}

func (p *Parser) parseRequireStmt() *ast.RequireStmt {
	loc := p.cur().Loc
	p.advance()
	return &ast.RequireStmt{Base: baseAt(loc), Cond: p.parseExpression(PrecAssignment)}
}

func (p *Parser) parseEnsureStmt() *ast.EnsureStmt {
	loc := p.cur().Loc
	p.advance()
	return &ast.EnsureStmt{Base: baseAt(loc), Cond: p.parseExpression(PrecAssignment)}
}

func (p *Parser) parseComptimeStmt() ast.Statement {
	loc := p.cur().Loc
	p.advance()
	if p.matchKeyword("assert") {
		return &ast.ComptimeAssert{Base: baseAt(loc), Cond: p.parseExpression(PrecAssignment)}
	}
	return &ast.ComptimeBlock{Base: baseAt(loc), Body: p.parseBodyBlock()}
}
