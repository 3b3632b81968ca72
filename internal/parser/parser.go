// Package parser is a small hand-written recursive-descent/Pratt parser
// over the lexer's token stream, producing internal/ast trees. Per spec
// §1 it is an external collaborator of no research interest beyond its
// output AST, so it stays deliberately thin next to the four core
// components (semantic analysis, compiler, VM, GC).
package parser

import (
	"fmt"

	"github.com/element-run/element/internal/ast"
	"github.com/element-run/element/internal/lexer"
)

type Parser struct {
	toks []lexer.Token
	pos  int
}

func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse parses a full source unit into the implicit top-level function body.
func Parse(src string) (*ast.FunctionNode, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := New(toks)
	body, err := p.parseStatements(lexer.TEOF)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionNode{
		IsMain: true,
		Body:   &ast.Block{Statements: body, ExplicitFunctionBlock: true},
	}, nil
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) at(t lexer.TokenType) bool { return p.cur().Type == t }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(t lexer.TokenType, what string) (lexer.Token, error) {
	if !p.at(t) {
		c := p.cur()
		return lexer.Token{}, fmt.Errorf("parse error at %d:%d: expected %s, found %q", c.Line, c.Column, what, c.Text)
	}
	return p.advance(), nil
}

func pos(t lexer.Token) ast.Pos { return ast.Pos{Line: t.Line, Column: t.Column} }

// --- statements ---

func (p *Parser) parseStatements(end lexer.TokenType) ([]ast.Node, error) {
	var stmts []ast.Node
	for !p.at(end) && !p.at(lexer.TEOF) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		for p.at(lexer.TSemi) {
			p.advance()
		}
	}
	return stmts, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	open, err := p.expect(lexer.TLBrace, "'{'")
	if err != nil {
		return nil, err
	}
	stmts, err := p.parseStatements(lexer.TRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.Block{Base: ast.Base{Pos: pos(open)}, Statements: stmts}, nil
}

func (p *Parser) parseStatement() (ast.Node, error) {
	switch p.cur().Type {
	case lexer.TIf:
		return p.parseIf()
	case lexer.TWhile:
		return p.parseWhile()
	case lexer.TFor:
		return p.parseFor()
	case lexer.TBreak:
		p.advance()
		var val ast.Node
		if !p.atStmtEnd() {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			val = v
		}
		return &ast.BreakStmt{Value: val}, nil
	case lexer.TContinue:
		p.advance()
		return &ast.ContinueStmt{}, nil
	case lexer.TReturn:
		p.advance()
		var val ast.Node
		if !p.atStmtEnd() {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			val = v
		}
		return &ast.ReturnStmt{Value: val}, nil
	default:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keep := p.atStmtEnd() && !p.at(lexer.TSemi)
		return &ast.ExprStmt{Expr: e, KeepValue: keep}, nil
	}
}

func (p *Parser) atStmtEnd() bool {
	switch p.cur().Type {
	case lexer.TSemi, lexer.TRBrace, lexer.TEOF:
		return true
	}
	return false
}

func (p *Parser) parseIf() (ast.Node, error) {
	t := p.advance()
	if _, err := p.expect(lexer.TLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TRParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseNode ast.Node
	if p.at(lexer.TElse) {
		p.advance()
		if p.at(lexer.TIf) {
			elseNode, err = p.parseIf()
		} else {
			elseNode, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: elseNode}, nil
}

func (p *Parser) parseWhile() (ast.Node, error) {
	p.advance()
	if _, err := p.expect(lexer.TLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Node, error) {
	p.advance()
	if _, err := p.expect(lexer.TLParen, "'('"); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.TIdent, "loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TIn, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{VarName: name.Text, Iterable: iter, Body: body}, nil
}

// --- expressions (precedence climbing) ---

func (p *Parser) parseExpr() (ast.Node, error) {
	return p.parseAssign()
}

func (p *Parser) parseAssign() (ast.Node, error) {
	left, err := p.parseThread()
	if err != nil {
		return nil, err
	}
	var compound ast.BinaryOp
	switch p.cur().Type {
	case lexer.TAssign:
		compound = ""
	case lexer.TPlusAssign:
		compound = ast.OpAdd
	case lexer.TMinusAssign:
		compound = ast.OpSub
	case lexer.TStarAssign:
		compound = ast.OpMul
	case lexer.TSlashAssign:
		compound = ast.OpDiv
	case lexer.TPercentAssign:
		compound = ast.OpMod
	default:
		return left, nil
	}
	p.advance()
	value, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &ast.AssignExpr{Target: left, Value: value, Compound: compound}, nil
}

func (p *Parser) parseThread() (ast.Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TArrow) {
		p.advance()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpThreadArrow, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TAnd) {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TEq) || p.at(lexer.TNeq) {
		op := ast.OpEq
		if p.cur().Type == lexer.TNeq {
			op = ast.OpNeq
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Node, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Type {
		case lexer.TLt:
			op = ast.OpLt
		case lexer.TGt:
			op = ast.OpGt
		case lexer.TLe:
			op = ast.OpLe
		case lexer.TGe:
			op = ast.OpGe
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseXor() (ast.Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TXor) {
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpXor, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseConcat() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TTilde) {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpConcat, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TPlus) || p.at(lexer.TMinus) {
		op := ast.OpAdd
		if p.cur().Type == lexer.TMinus {
			op = ast.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Type {
		case lexer.TStar:
			op = ast.OpMul
		case lexer.TSlash:
			op = ast.OpDiv
		case lexer.TPercent:
			op = ast.OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

// parsePower is right-associative: 2^3^2 == 2^(3^2).
func (p *Parser) parsePower() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.TCaret) {
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: ast.OpPow, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Node, error) {
	var op ast.UnaryOp
	switch p.cur().Type {
	case lexer.TPlus:
		op = ast.OpUnaryPlus
	case lexer.TMinus:
		op = ast.OpUnaryMinus
	case lexer.TBang:
		op = ast.OpUnaryNot
	case lexer.TTilde:
		op = ast.OpUnaryConcat
	case lexer.THash:
		op = ast.OpUnarySizeOf
	default:
		return p.parsePostfix()
	}
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Op: op, Operand: operand}, nil
}

func (p *Parser) parsePostfix() (ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case lexer.TLParen:
			p.advance()
			var args []ast.Node
			for !p.at(lexer.TRParen) {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(lexer.TComma) {
					p.advance()
				}
			}
			if _, err := p.expect(lexer.TRParen, "')'"); err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Callee: expr, Args: args}
		case lexer.TLBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TRBracket, "']'"); err != nil {
				return nil, err
			}
			expr = &ast.BinaryExpr{Op: ast.OpIndex, Left: expr, Right: idx}
		case lexer.TDot:
			p.advance()
			name, err := p.expect(lexer.TIdent, "member name")
			if err != nil {
				return nil, err
			}
			expr = &ast.BinaryExpr{Op: ast.OpMember, Left: expr, Right: &ast.VariableNode{VariableType: ast.VarNamed, Name: name.Text}}
		case lexer.TPush:
			p.advance()
			val, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			expr = &ast.PushExpr{Array: expr, Value: val}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	t := p.cur()
	switch t.Type {
	case lexer.TInt:
		p.advance()
		return &ast.IntLit{Value: t.Int}, nil
	case lexer.TFloat:
		p.advance()
		return &ast.FloatLit{Value: t.Float}, nil
	case lexer.TString:
		p.advance()
		return &ast.StringLit{Value: t.Text}, nil
	case lexer.TTrue:
		p.advance()
		return &ast.BoolLit{Value: true}, nil
	case lexer.TFalse:
		p.advance()
		return &ast.BoolLit{Value: false}, nil
	case lexer.TNil:
		p.advance()
		return &ast.NilLit{}, nil
	case lexer.TThis:
		p.advance()
		return &ast.VariableNode{VariableType: ast.VarThis}, nil
	case lexer.TDollarDollar:
		p.advance()
		return &ast.VariableNode{VariableType: ast.VarDollarDollar}, nil
	case lexer.TPositional:
		p.advance()
		return &ast.VariableNode{VariableType: ast.VarPositional, Positional: int(t.Int)}, nil
	case lexer.TUnderscore:
		p.advance()
		return &ast.VariableNode{VariableType: ast.VarUnderscore}, nil
	case lexer.TIdent:
		p.advance()
		return &ast.VariableNode{VariableType: ast.VarNamed, Name: t.Text}, nil
	case lexer.TReturn, lexer.TBreak, lexer.TContinue:
		// Control flow as an operand, as in the `cond or return x` idiom:
		// parsed exactly like the statement form.
		return p.parseStatement()
	case lexer.TYield:
		p.advance()
		var val ast.Node
		if !p.atStmtEnd() && !p.at(lexer.TRParen) {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			val = v
		}
		return &ast.YieldExpr{Value: val}, nil
	case lexer.TLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.TLBracket:
		return p.parseArrayLit()
	case lexer.TObjOpen:
		return p.parseObjectLit()
	case lexer.TFuncSigil:
		return p.parseFunctionLit(false)
	case lexer.TFuncShort:
		return p.parseFunctionLit(true)
	}
	return nil, fmt.Errorf("parse error at %d:%d: unexpected token %q", t.Line, t.Column, t.Text)
}

func (p *Parser) parseArrayLit() (ast.Node, error) {
	p.advance()
	var elems []ast.Node
	for !p.at(lexer.TRBracket) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(lexer.TComma) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Elements: elems}, nil
}

func (p *Parser) parseObjectLit() (ast.Node, error) {
	p.advance() // [=
	var pairs []ast.ObjectPair
	for !p.at(lexer.TRBracket) {
		key, err := p.expect(lexer.TIdent, "object key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TAssign, "'='"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, ast.ObjectPair{
			Key:   &ast.VariableNode{VariableType: ast.VarNamed, Name: key.Text},
			Value: val,
		})
		if p.at(lexer.TComma) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ast.ObjectLit{Pairs: pairs}, nil
}

// parseFunctionLit handles both `:(params){ body }` and the zero-arg
// shorthand `::expr`, which is sugar for `:() { expr }`.
func (p *Parser) parseFunctionLit(short bool) (ast.Node, error) {
	p.advance()
	fn := &ast.FunctionNode{}
	if short {
		e, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		fn.Body = &ast.Block{
			Statements:            []ast.Node{&ast.ExprStmt{Expr: e, KeepValue: true}},
			ExplicitFunctionBlock: true,
		}
		return &ast.FunctionLit{Fn: fn}, nil
	}
	if _, err := p.expect(lexer.TLParen, "'('"); err != nil {
		return nil, err
	}
	for !p.at(lexer.TRParen) {
		name, err := p.expect(lexer.TIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, name.Text)
		if p.at(lexer.TComma) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	body.ExplicitFunctionBlock = true
	fn.Body = body
	return &ast.FunctionLit{Fn: fn}, nil
}
