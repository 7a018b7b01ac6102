package parser

import (
	"fmt"
	"strings"

	"github.com/tyl-lang/tyl/internal/token"
)

// parseType recognises the canonical type-string grammar of spec §3.3 and
// returns its canonical textual form directly, since types are represented
// as strings throughout this pipeline (spec §3.3, §9.2).
func (p *Parser) parseType() string {
	t := p.parseTypeCore()
	if p.match(token.QUESTION) {
		t += "?"
	}
	return t
}

func (p *Parser) parseTypeCore() string {
	switch {
	case p.match(token.STAR):
		return "*" + p.parseTypeCore()
	case p.match(token.AMP):
		lifetime := ""
		if p.check(token.LIFETIME) {
			lifetime = p.advance().Lexeme + " "
		}
		if p.matchKeyword("mut") {
			return "&" + lifetime + "mut " + p.parseTypeCore()
		}
		return "&" + lifetime + p.parseTypeCore()
	case p.match(token.LBRACKET):
		elem := p.parseType()
		if p.match(token.SEMI) {
			size := p.parseTypeArrayLength()
			p.expect(token.RBRACKET, "]")
			return fmt.Sprintf("[%s; %s]", elem, size)
		}
		p.expect(token.RBRACKET, "]")
		return fmt.Sprintf("[%s]", elem)
	case p.atKeyword("fn"):
		p.advance()
		p.expect(token.LPAREN, "(")
		var params []string
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			params = append(params, p.parseType())
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN, ")")
		ret := "void"
		if p.match(token.ARROW) {
			ret = p.parseType()
		}
		return fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), ret)
	default:
		name := p.parseTypeName()
		if p.match(token.LBRACKET) {
			var args []string
			for !p.check(token.RBRACKET) && !p.check(token.EOF) {
				if p.check(token.INTEGER) {
					args = append(args, p.advance().Lexeme)
				} else {
					args = append(args, p.parseType())
				}
				if !p.match(token.COMMA) {
					break
				}
			}
			p.expect(token.RBRACKET, "]")
			return fmt.Sprintf("%s[%s]", name, strings.Join(args, ", "))
		}
		return name
	}
}

func (p *Parser) parseTypeName() string {
	if p.check(token.IDENTIFIER) || p.check(token.KEYWORD) {
		name := p.advance().Lexeme
		for p.match(token.COLONCOLON) {
			name += "::" + p.advance().Lexeme
		}
		return name
	}
	p.errorf("E1002", "expected a type name, found %q", p.cur().Lexeme)
	return "int"
}

func (p *Parser) parseTypeArrayLength() string {
	if p.check(token.INTEGER) {
		return p.advance().Lexeme
	}
	return p.parseTypeName()
}
