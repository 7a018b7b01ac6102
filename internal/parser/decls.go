package parser

import (
	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/macro"
	"github.com/tyl-lang/tyl/internal/token"
)

func (p *Parser) parseFieldList() []ast.FieldDecl {
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	var fields []ast.FieldDecl
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		name := p.expect(token.IDENTIFIER, "field name").Lexeme
		p.expect(token.COLON, ":")
		ty := p.parseType()
		fields = append(fields, ast.FieldDecl{Name: name, Type: ty})
		if !p.match(token.COMMA) {
			p.skipNewlines()
		}
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return fields
}

func (p *Parser) parseRecordDecl(derive []string) *ast.RecordDecl {
	loc := p.cur().Loc
	p.expectKeyword("record")
	name := p.expect(token.IDENTIFIER, "record name").Lexeme
	generics := p.parseGenerics()
	fields := p.parseFieldList()
	return &ast.RecordDecl{Base: baseAt(loc), Name: name, Generics: generics, Fields: fields, Derive: derive}
}

func (p *Parser) parseUnionDecl() *ast.UnionDecl {
	loc := p.cur().Loc
	p.expectKeyword("union")
	name := p.expect(token.IDENTIFIER, "union name").Lexeme
	fields := p.parseFieldList()
	return &ast.UnionDecl{Base: baseAt(loc), Name: name, Fields: fields}
}

func (p *Parser) parseEnumDecl(derive []string) *ast.EnumDecl {
	loc := p.cur().Loc
	p.expectKeyword("enum")
	name := p.expect(token.IDENTIFIER, "enum name").Lexeme
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	var variants []ast.EnumVariant
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		vname := p.expect(token.IDENTIFIER, "variant name").Lexeme
		v := ast.EnumVariant{Name: vname}
		if p.match(token.ASSIGN) {
			tok := p.expect(token.INTEGER, "integer discriminant")
			d := tok.Literal.Int
			v.Discriminant = &d
		} else if p.match(token.LPAREN) {
			for !p.check(token.RPAREN) && !p.check(token.EOF) {
				v.TupleFields = append(v.TupleFields, p.parseType())
				if !p.match(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN, ")")
		} else if p.check(token.LBRACE) {
			v.RecordFields = p.parseFieldList()
		}
		variants = append(variants, v)
		if !p.match(token.COMMA) {
			p.skipNewlines()
		}
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return &ast.EnumDecl{Base: baseAt(loc), Name: name, Variants: variants, Derive: derive}
}

func (p *Parser) parseTypeAliasDecl() *ast.TypeAliasDecl {
	loc := p.cur().Loc
	p.expectKeyword("type")
	name := p.expect(token.IDENTIFIER, "type name").Lexeme
	p.expect(token.ASSIGN, "=")
	underlying := p.parseType()
	decl := &ast.TypeAliasDecl{Base: baseAt(loc), Name: name, Underlying: underlying}
	if p.matchKeyword("where") {
		decl.Refinement = p.parseExpression(PrecAssignment)
	}
	return decl
}

func (p *Parser) parseTraitDecl() *ast.TraitDecl {
	loc := p.cur().Loc
	p.expectKeyword("trait")
	name := p.expect(token.IDENTIFIER, "trait name").Lexeme
	generics := p.parseGenerics()
	var super []string
	if p.match(token.COLON) {
		super = append(super, p.expect(token.IDENTIFIER, "super-trait name").Lexeme)
		for p.match(token.AMP) {
			super = append(super, p.expect(token.IDENTIFIER, "super-trait name").Lexeme)
		}
	}
	decl := &ast.TraitDecl{Base: baseAt(loc), Name: name, Generics: generics, SuperTraits: super}
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		attrs, derive := p.parseAttributes()
		decl.Methods = append(decl.Methods, p.parseFuncDecl(attrs, derive))
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return decl
}

func (p *Parser) parseImplDecl() *ast.ImplDecl {
	loc := p.cur().Loc
	p.expectKeyword("impl")
	first := p.parseType()
	decl := &ast.ImplDecl{Base: baseAt(loc)}
	if p.matchKeyword("for") {
		decl.TraitName = first
		decl.TypeName = p.parseType()
	} else {
		decl.TypeName = first
	}
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		attrs, derive := p.parseAttributes()
		decl.Methods = append(decl.Methods, p.parseFuncDecl(attrs, derive))
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return decl
}

func (p *Parser) parseConceptDecl() *ast.ConceptDecl {
	loc := p.cur().Loc
	p.expectKeyword("concept")
	name := p.expect(token.IDENTIFIER, "concept name").Lexeme
	decl := &ast.ConceptDecl{Base: baseAt(loc), Name: name}
	if p.match(token.LBRACE) {
		p.skipNewlines()
		for !p.check(token.RBRACE) && !p.check(token.EOF) {
			decl.Exprs = append(decl.Exprs, p.parseExpression(PrecAssignment))
			p.skipNewlines()
		}
		p.expect(token.RBRACE, "}")
	}
	return decl
}

func (p *Parser) parseEffectDecl() *ast.EffectDecl {
	loc := p.cur().Loc
	p.expectKeyword("effect")
	name := p.expect(token.IDENTIFIER, "effect name").Lexeme
	decl := &ast.EffectDecl{Base: baseAt(loc), Name: name}
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		opName := p.expect(token.IDENTIFIER, "effect operation name").Lexeme
		params := p.parseParams()
		ret := ""
		if p.match(token.ARROW) {
			ret = p.parseType()
		}
		decl.Ops = append(decl.Ops, ast.EffectOp{Name: opName, Params: params, RetType: ret})
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return decl
}

func (p *Parser) parseUseDecl() *ast.UseDecl {
	loc := p.cur().Loc
	p.expectKeyword("use")
	decl := &ast.UseDecl{Base: baseAt(loc)}
	if p.check(token.STRING) {
		decl.Path = p.advance().Literal.Str
		if p.matchKeyword("as") {
			decl.Alias = p.expect(token.IDENTIFIER, "alias name").Lexeme
		}
		return decl
	}
	path := p.expect(token.IDENTIFIER, "module path").Lexeme
	for p.match(token.COLONCOLON) {
		if p.match(token.STAR) {
			path += "::*"
			decl.Names = []string{"*"}
			decl.Path = path
			return decl
		}
		if p.match(token.LBRACE) {
			for !p.check(token.RBRACE) && !p.check(token.EOF) {
				decl.Names = append(decl.Names, p.expect(token.IDENTIFIER, "import name").Lexeme)
				if !p.match(token.COMMA) {
					break
				}
			}
			p.expect(token.RBRACE, "}")
			decl.Path = path
			return decl
		}
		path += "::" + p.expect(token.IDENTIFIER, "module path segment").Lexeme
	}
	decl.Path = path
	return decl
}

func (p *Parser) parseExternBlock() *ast.ExternBlock {
	loc := p.cur().Loc
	p.expectKeyword("extern")
	abi := "cdecl"
	if p.check(token.STRING) {
		abi = p.advance().Literal.Str
	}
	library := ""
	if p.matchKeyword("from") && p.check(token.STRING) {
		library = p.advance().Literal.Str
	}
	decl := &ast.ExternBlock{Base: baseAt(loc), ABI: abi, Library: library}
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		attrs, derive := p.parseAttributes()
		fn := p.parseFuncDecl(attrs, derive)
		fn.Flags.Extern = true
		decl.Funcs = append(decl.Funcs, fn)
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return decl
}

// parseMacroOrInfixDecl handles both `macro infix "op" prec` (already
// registered during prescan; here it is re-parsed into an AST node for
// completeness/diagnostics) and `macro name(params): body`.
func (p *Parser) parseMacroOrInfixDecl() ast.Statement {
	loc := p.cur().Loc
	p.expectKeyword("macro")
	if p.check(token.IDENTIFIER) && p.cur().Lexeme == "infix" {
		p.advance()
		symbol := p.expect(token.STRING, "operator symbol").Literal.Str
		prec := 0
		if p.check(token.INTEGER) {
			prec = int(p.advance().Literal.Int)
		}
		op, ok := p.reg.IsUserOperator(symbol)
		if !ok {
			op = p.reg.RegisterInfix(symbol, prec)
		}
		return &ast.InfixMacroDecl{Base: baseAt(loc), Symbol: symbol, Precedence: prec, Func: op.FuncName}
	}
	name := p.expect(token.IDENTIFIER, "macro name").Lexeme
	p.expect(token.LPAREN, "(")
	var params []string
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		params = append(params, p.expect(token.IDENTIFIER, "macro parameter").Lexeme)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN, ")")
	body := p.parseBlock()
	decl := &ast.MacroDecl{Base: baseAt(loc), Name: name, Params: params, Body: body}
	p.reg.RegisterMacro(name, macro.Declarative{Name: name, Params: params, Body: body})
	return decl
}

func (p *Parser) parseSyntaxMacroDecl() *ast.SyntaxMacroDecl {
	loc := p.cur().Loc
	p.expectKeyword("syntax")
	name := p.expect(token.IDENTIFIER, "syntax name").Lexeme
	p.reg.RegisterSyntaxName(name)
	raw := p.captureDSLBlock()
	return &ast.SyntaxMacroDecl{Base: baseAt(loc), Name: name, RawBody: raw}
}

// captureDSLBlock grabs raw content between INDENT and the matching DEDENT
// verbatim, for DSL blocks (spec §4.3 step 4). It reconstructs source text
// from lexemes since the lexer does not retain original byte spans here.
func (p *Parser) captureDSLBlock() string {
	if !p.match(token.COLON) {
		return ""
	}
	p.skipNewlines()
	if !p.match(token.INDENT) {
		return ""
	}
	var sb []string
	depth := 1
	for depth > 0 && !p.check(token.EOF) {
		switch p.cur().Kind {
		case token.INDENT:
			depth++
		case token.DEDENT:
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		case token.NEWLINE:
			sb = append(sb, "\n")
		default:
			sb = append(sb, p.cur().Lexeme)
		}
		if depth > 0 {
			p.advance()
		}
	}
	out := ""
	for _, s := range sb {
		out += s
		if s != "\n" {
			out += " "
		}
	}
	return out
}

func (p *Parser) parseLayerDecl() *ast.LayerDecl {
	loc := p.cur().Loc
	p.expectKeyword("layer")
	name := p.expect(token.IDENTIFIER, "layer name").Lexeme
	decl := &ast.LayerDecl{Base: baseAt(loc), Name: name}
	p.expect(token.LBRACE, "{")
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		decl.Members = append(decl.Members, p.parseTopLevel())
		p.skipNewlines()
	}
	p.expect(token.RBRACE, "}")
	return decl
}

func (p *Parser) parseUnsafeBlock() *ast.UnsafeBlock {
	loc := p.cur().Loc
	p.expectKeyword("unsafe")
	return &ast.UnsafeBlock{Base: baseAt(loc), Body: p.parseBlock()}
}

