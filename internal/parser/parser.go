// Package parser implements a hand-written recursive-descent,
// precedence-climbing parser for Artemis (spec.md §4.2). The teacher
// generates its parser with goyacc from a .y grammar that is not present
// in the retrieved pack and cannot be regenerated without invoking the Go
// toolchain; spec.md §4.2/§9 explicitly allow an equivalent hand-written
// representation, so this package parses directly off internal/lexer's
// token channel using the productions implied by spec.md's AST table.
package parser

import (
	"fmt"

	"github.com/vladisrael/arx-lang/internal/ast"
	"github.com/vladisrael/arx-lang/internal/diag"
	"github.com/vladisrael/arx-lang/internal/lexer"
	"github.com/vladisrael/arx-lang/internal/token"
)

// Parse lexes and parses src, returning the resulting ast.File. Parse
// errors are fatal and reported as "parsing failed" per spec.md §4.2/§7.
func Parse(src string, warn *diag.Collector) (*ast.File, error) {
	l := lexer.New(src, warn)
	go l.Run()

	p := &parser{lex: l}
	p.advance()

	f, err := p.parseFile()
	if err != nil {
		return nil, diag.Errorf(diag.ErrParse, "parsing failed: %s", err)
	}
	return f, nil
}

// parser holds one token of lookahead over the lexer's channel.
type parser struct {
	lex  *lexer.Lexer
	tok  lexer.Token
	prev lexer.Token
}

func (p *parser) advance() {
	p.prev = p.tok
	t, ok := p.lex.Next()
	if !ok {
		t = lexer.Token{Kind: token.EOF, Line: p.prev.Line}
	}
	p.tok = t
}

func (p *parser) at(k token.Kind) bool { return p.tok.Kind == k }

func (p *parser) expect(k token.Kind) (lexer.Token, error) {
	if p.tok.Kind != k {
		return lexer.Token{}, fmt.Errorf("line %d: expected %s, got %s %q", p.tok.Line, k, p.tok.Kind, p.tok.Val)
	}
	t := p.tok
	p.advance()
	return t, nil
}

// ---- top level ----

func (p *parser) parseFile() (*ast.File, error) {
	f := &ast.File{}
	for p.at(token.USING) {
		p.advance()
		name, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		f.Usings = append(f.Usings, name.Val)
	}
	for !p.at(token.EOF) {
		decl, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		f.Decls = append(f.Decls, decl)
	}
	if len(f.Decls) == 0 {
		return nil, fmt.Errorf("program has no top-level declarations")
	}
	return f, nil
}

func (p *parser) parseTopDecl() (*ast.Node, error) {
	if p.at(token.CLASS) {
		return p.parseClass()
	}
	return p.parseFunction()
}

// parseTypeName parses a declared type name: a scalar keyword, `list:elem`,
// `any:ClassName`, or a bare class-name identifier (spec.md §4.2).
func (p *parser) parseTypeName() (typ, elem string, err error) {
	switch p.tok.Kind {
	case token.TYPE_INT, token.TYPE_FLOAT, token.TYPE_STRING, token.TYPE_BOOL, token.TYPE_VOID:
		typ = p.tok.Kind.String()
		p.advance()
		return typ, "", nil
	case token.TYPE_LIST:
		p.advance()
		if _, err = p.expect(token.COLON); err != nil {
			return "", "", err
		}
		elemTyp, _, err := p.parseTypeName()
		if err != nil {
			return "", "", err
		}
		return "list", elemTyp, nil
	case token.TYPE_ANY:
		p.advance()
		if _, err = p.expect(token.COLON); err != nil {
			return "", "", err
		}
		cls, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return "", "", err
		}
		return "any", cls.Val, nil
	case token.IDENTIFIER:
		typ = p.tok.Val
		p.advance()
		return typ, "", nil
	default:
		return "", "", fmt.Errorf("line %d: expected type name, got %s", p.tok.Line, p.tok.Kind)
	}
}

func (p *parser) parseFunction() (*ast.Node, error) {
	line := p.tok.Line
	typ, _, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockStatements()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.FUNCTION, Line: line, Name: name.Val, Type: typ, Params: params, Children: body}, nil
}

func (p *parser) parseParams() ([]ast.Param, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(token.RPAREN) {
		typ, elem, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if elem != "" {
			typ = typ + ":" + elem
		}
		name, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Type: typ, Name: name.Val})
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parseClass() (*ast.Node, error) {
	line := p.tok.Line
	p.advance() // 'class'
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var members []*ast.Node
	for !p.at(token.RBRACE) {
		m, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.CLASS, Line: line, Name: name.Val, Children: members}, nil
}

// parseMember parses a field or method. Both start with `<type> ID`; a
// following `(` disambiguates a method, per spec.md §4.2.
func (p *parser) parseMember() (*ast.Node, error) {
	line := p.tok.Line
	typ, _, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if p.at(token.LPAREN) {
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlockStatements()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.METHOD, Line: line, Name: name.Val, Type: typ, Params: params, Children: body}, nil
	}

	field := &ast.Node{Kind: ast.FIELD, Line: line, Name: name.Val, Type: typ}
	if p.at(token.ASSIGN) {
		p.advance()
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		field.Children = []*ast.Node{init}
	}
	if _, err := p.tryExpectSemi(); err != nil {
		return nil, err
	}
	return field, nil
}

// ---- statements ----

func (p *parser) parseBlockStatements() ([]*ast.Node, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var stmts []*ast.Node
	for !p.at(token.RBRACE) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) parseBlockNode() (*ast.Node, error) {
	line := p.tok.Line
	stmts, err := p.parseBlockStatements()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.BLOCK, Line: line, Children: stmts}, nil
}

func (p *parser) parseStatement() (*ast.Node, error) {
	line := p.tok.Line
	switch p.tok.Kind {
	case token.RETURN:
		p.advance()
		if p.at(token.LBRACE) {
			return nil, fmt.Errorf("line %d: expected expression or ';' after return", line)
		}
		if consumed, err := p.tryExpectSemi(); err != nil {
			return nil, err
		} else if consumed {
			return &ast.Node{Kind: ast.RETURN_VOID, Line: line}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.RETURN, Line: line, Children: []*ast.Node{e}}, nil
	case token.BREAK:
		p.advance()
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.BREAK, Line: line}, nil
	case token.CONTINUE:
		p.advance()
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.CONTINUE, Line: line}, nil
	case token.IF:
		return p.parseIfChain()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseForIn()
	case token.TYPE_INT, token.TYPE_FLOAT, token.TYPE_STRING, token.TYPE_BOOL, token.TYPE_LIST, token.TYPE_ANY:
		return p.parseDeclare()
	default:
		return p.parseSimpleStatement()
	}
}

// expectSemi/tryExpectSemi model Artemis's C-like `;` statement
// terminator (spec.md S1-S6 example programs all terminate simple
// statements with `;`).
func (p *parser) expectSemi() error {
	if p.tok.Kind != token.SEMI {
		return fmt.Errorf("line %d: expected ';', got %s %q", p.tok.Line, p.tok.Kind, p.tok.Val)
	}
	p.advance()
	return nil
}

func (p *parser) tryExpectSemi() (bool, error) {
	if p.tok.Kind == token.SEMI {
		p.advance()
		return true, nil
	}
	return false, nil
}

func (p *parser) parseDeclare() (*ast.Node, error) {
	line := p.tok.Line
	typ, elem, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemi(); err != nil {
		return nil, err
	}
	switch typ {
	case "list":
		return &ast.Node{Kind: ast.DECLARE_LIST, Line: line, Name: name.Val, ElemType: elem, Children: []*ast.Node{rhs}}, nil
	case "any":
		return &ast.Node{Kind: ast.DECLARE_CUSTOM, Line: line, Name: name.Val, Type: elem, Children: []*ast.Node{rhs}}, nil
	default:
		return &ast.Node{Kind: ast.DECLARE, Line: line, Name: name.Val, Type: typ, Children: []*ast.Node{rhs}}, nil
	}
}

// parseSimpleStatement parses an assignment, a post-inc/dec, or a bare
// expression statement (e.g. a method call used for its side effect).
func (p *parser) parseSimpleStatement() (*ast.Node, error) {
	line := p.tok.Line
	e, err := p.parsePostfixable()
	if err != nil {
		return nil, err
	}
	switch p.tok.Kind {
	case token.ASSIGN:
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.ASSIGN, Line: line, Children: []*ast.Node{e, rhs}}, nil
	case token.INC:
		p.advance()
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.POSTINC, Line: line, Children: []*ast.Node{e}}, nil
	case token.DEC:
		p.advance()
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.POSTDEC, Line: line, Children: []*ast.Node{e}}, nil
	default:
		if err := p.expectSemi(); err != nil {
			return nil, err
		}
		return e, nil
	}
}

func (p *parser) parseIfChain() (*ast.Node, error) {
	line := p.tok.Line
	var branches []ast.Branch
	for {
		p.advance() // 'if'
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		guard, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		body, err := p.parseBlockNode()
		if err != nil {
			return nil, err
		}
		branches = append(branches, ast.Branch{Guard: guard, Body: body})
		if p.at(token.ELSE) {
			p.advance()
			if p.at(token.IF) {
				continue
			}
			elseBody, err := p.parseBlockNode()
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.Branch{Guard: nil, Body: elseBody})
			break
		}
		break
	}
	return &ast.Node{Kind: ast.IF_CHAIN, Line: line, Branches: branches}, nil
}

func (p *parser) parseWhile() (*ast.Node, error) {
	line := p.tok.Line
	p.advance()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	guard, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlockNode()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.WHILE, Line: line, Children: []*ast.Node{guard, body}}, nil
}

func (p *parser) parseForIn() (*ast.Node, error) {
	line := p.tok.Line
	p.advance()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	typ, _, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	list, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlockNode()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.FOR_IN, Line: line, Type: typ, Name: name.Val, Children: []*ast.Node{list, body}}, nil
}

// ---- expressions ----
// Precedence (low to high): comparisons (non-associative) > + - > * /
// (spec.md §4.2).

func (p *parser) parseExpr() (*ast.Node, error) {
	return p.parseComparison()
}

func (p *parser) parseComparison() (*ast.Node, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOp(p.tok.Kind); ok {
		line := p.tok.Line
		p.advance()
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.BINOP, Line: line, Data: op, Children: []*ast.Node{lhs, rhs}}, nil
	}
	return lhs, nil
}

func comparisonOp(k token.Kind) (string, bool) {
	switch k {
	case token.EQ:
		return "==", true
	case token.NEQ:
		return "!=", true
	case token.LE:
		return "<=", true
	case token.GE:
		return ">=", true
	case token.LT:
		return "<", true
	case token.GT:
		return ">", true
	}
	return "", false
}

func (p *parser) parseAdditive() (*ast.Node, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) || p.at(token.MINUS) {
		op := "+"
		if p.at(token.MINUS) {
			op = "-"
		}
		line := p.tok.Line
		p.advance()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = &ast.Node{Kind: ast.BINOP, Line: line, Data: op, Children: []*ast.Node{lhs, rhs}}
	}
	return lhs, nil
}

func (p *parser) parseMultiplicative() (*ast.Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.STAR) || p.at(token.SLASH) {
		op := "*"
		if p.at(token.SLASH) {
			op = "/"
		}
		line := p.tok.Line
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &ast.Node{Kind: ast.BINOP, Line: line, Data: op, Children: []*ast.Node{lhs, rhs}}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (*ast.Node, error) {
	if p.at(token.MINUS) {
		line := p.tok.Line
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		zero := &ast.Node{Kind: ast.INT, Line: line, Data: int64(0)}
		return &ast.Node{Kind: ast.BINOP, Line: line, Data: "-", Children: []*ast.Node{zero, operand}}, nil
	}
	return p.parsePostfixable()
}

// parsePostfixable parses a primary expression followed by any number of
// `.field`/`.method(...)` accesses, matching spec.md's get_attr /
// call_method member-access chain.
func (p *parser) parsePostfixable() (*ast.Node, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at(token.DOT) {
		line := p.tok.Line
		p.advance()
		name, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if p.at(token.LPAREN) {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.Node{Kind: ast.CALL_METHOD, Line: line, Name: name.Val, Children: []*ast.Node{e, args}}
		} else {
			e = &ast.Node{Kind: ast.GET_ATTR, Line: line, Name: name.Val, Children: []*ast.Node{e}}
		}
	}
	return e, nil
}

func (p *parser) parsePrimary() (*ast.Node, error) {
	line := p.tok.Line
	switch p.tok.Kind {
	case token.INTEGER:
		v := p.tok.Val
		p.advance()
		return &ast.Node{Kind: ast.INT, Line: line, Data: parseIntLiteral(v)}, nil
	case token.FLOAT:
		v := p.tok.Val
		p.advance()
		return &ast.Node{Kind: ast.FLOAT, Line: line, Data: parseFloatLiteral(v)}, nil
	case token.STRING:
		v := stringValue(p.tok)
		p.advance()
		return &ast.Node{Kind: ast.STRING, Line: line, Data: v}, nil
	case token.TRUE:
		p.advance()
		return &ast.Node{Kind: ast.BOOL, Line: line, Data: true}, nil
	case token.FALSE:
		p.advance()
		return &ast.Node{Kind: ast.BOOL, Line: line, Data: false}, nil
	case token.THIS:
		p.advance()
		return &ast.Node{Kind: ast.THIS, Line: line}, nil
	case token.LPAREN:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case token.LBRACK:
		return p.parseListLiteral()
	case token.IDENTIFIER:
		name := p.tok.Val
		p.advance()
		if p.at(token.LPAREN) {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &ast.Node{Kind: ast.CALL, Line: line, Name: name, Children: []*ast.Node{args}}, nil
		}
		return &ast.Node{Kind: ast.VAR, Line: line, Data: name}, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected token %s %q in expression", line, p.tok.Kind, p.tok.Val)
	}
}

func (p *parser) parseListLiteral() (*ast.Node, error) {
	line := p.tok.Line
	p.advance() // '['
	var elems []*ast.Node
	for !p.at(token.RBRACK) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(token.RBRACK); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.LIST_LITERAL, Line: line, Children: elems}, nil
}

func (p *parser) parseArgs() (*ast.Node, error) {
	line := p.tok.Line
	p.advance() // '('
	var args []*ast.Node
	for !p.at(token.RPAREN) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.ARG_LIST, Line: line, Children: args}, nil
}
