// Package parser reads a PTC-Lisp token stream into an AST through a
// single recursive-descent entry point that always returns a result
// (program or errors) rather than panicking.
package parser

import (
	"strconv"

	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/lexer"
	"github.com/ptcrunner/ptcrunner/internal/lisp/token"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// Parser turns a token stream into a slice of top-level AST nodes.
type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token
}

// Parse reads every top-level form in source and returns the AST, or
// the first *taxonomy.Failure{Reason: parse_error} encountered.
func Parse(source string) (nodes []ast.Node, err error) {
	defer func() {
		// Last-resort net: a bug in the reader becomes a structured
		// parse_error instead of a panic crossing the public API.
		if r := recover(); r != nil {
			nodes = nil
			err = taxonomy.New(taxonomy.ParseError, "internal parser error").WithDetail("recovered", r)
		}
	}()

	p := &Parser{lex: lexer.New(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var out []ast.Node
	for p.cur.Kind != token.EOF {
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.lex.NextToken()
	if err != nil {
		if le, ok := err.(*lexer.LexError); ok {
			return parseErrAt(le.Pos, le.Message)
		}
		return parseErrAt(token.Position{}, err.Error())
	}
	p.peek = tok
	return nil
}

func parseErrAt(pos token.Position, msg string) error {
	return taxonomy.New(taxonomy.ParseError, msg).
		WithDetail("line", pos.Line).
		WithDetail("column", pos.Column)
}

func (p *Parser) parseExpr() (ast.Node, error) {
	switch p.cur.Kind {
	case token.EOF:
		return nil, parseErrAt(p.cur.Pos, "unexpected end of input")
	case token.Quote:
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.QuotedLit{Position: pos, Expr: inner}, nil
	case token.LParen:
		return p.parseSeq(token.RParen, "(", ")", func(pos token.Position, children []ast.Node) ast.Node {
			return &ast.List{Position: pos, Children: children}
		})
	case token.LBracket:
		return p.parseSeq(token.RBracket, "[", "]", func(pos token.Position, children []ast.Node) ast.Node {
			return &ast.VectorLit{Position: pos, Children: children}
		})
	case token.LBrace:
		node, err := p.parseSeq(token.RBrace, "{", "}", func(pos token.Position, children []ast.Node) ast.Node {
			return &ast.MapLit{Position: pos, Children: children}
		})
		if err != nil {
			return nil, err
		}
		if m, ok := node.(*ast.MapLit); ok && len(m.Children)%2 != 0 {
			return nil, parseErrAt(m.Position, "map literal must have an even number of forms")
		}
		return node, nil
	case token.HashBrace:
		return p.parseSeq(token.RBrace, "#{", "}", func(pos token.Position, children []ast.Node) ast.Node {
			return &ast.SetLit{Position: pos, Children: children}
		})
	case token.RParen, token.RBracket, token.RBrace:
		return nil, parseErrAt(p.cur.Pos, "unexpected '"+p.cur.Lexeme+"' with no matching opener")
	case token.Int:
		pos, lex := p.cur.Pos, p.cur.Lexeme
		v, err := strconv.ParseInt(lex, 10, 64)
		if err != nil {
			return nil, parseErrAt(pos, "invalid integer literal "+lex)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Value: v}, nil
	case token.Float:
		pos, lex := p.cur.Pos, p.cur.Lexeme
		v, err := strconv.ParseFloat(lex, 64)
		if err != nil {
			return nil, parseErrAt(pos, "invalid float literal "+lex)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Value: v}, nil
	case token.String:
		pos, lex := p.cur.Pos, p.cur.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{Position: pos, Value: lex}, nil
	case token.Keyword:
		pos, lex := p.cur.Pos, p.cur.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		ns, name := splitNamespace(lex)
		return &ast.Literal{Position: pos, Value: ast.Keyword{Namespace: ns, Name: name}}, nil
	case token.Symbol:
		pos, lex := p.cur.Pos, p.cur.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch lex {
		case "nil":
			return &ast.Literal{Position: pos, Value: nil}, nil
		case "true":
			return &ast.Literal{Position: pos, Value: true}, nil
		case "false":
			return &ast.Literal{Position: pos, Value: false}, nil
		}
		ns, name := splitNamespace(lex)
		return &ast.Var{Position: pos, Namespace: ns, Name: name}, nil
	default:
		return nil, parseErrAt(p.cur.Pos, "unexpected token "+p.cur.Lexeme)
	}
}

func (p *Parser) parseSeq(closeKind token.Kind, openLex, closeLex string, build func(token.Position, []ast.Node) ast.Node) (ast.Node, error) {
	pos := p.cur.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	var children []ast.Node
	for p.cur.Kind != closeKind {
		if p.cur.Kind == token.EOF {
			return nil, parseErrAt(pos, "unterminated '"+openLex+"': missing closing '"+closeLex+"'")
		}
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return build(pos, children), nil
}

func splitNamespace(lex string) (ns, name string) {
	for i := 0; i < len(lex); i++ {
		if lex[i] == '/' && i > 0 && i < len(lex)-1 {
			return lex[:i], lex[i+1:]
		}
	}
	return "", lex
}
