// Package parser implements a recursive-descent parser with one-token
// pushback over the unlab token stream (spec §4.2).
package parser

import (
	"strconv"

	"github.com/luckboy/unlab-gpu/internal/ast"
	"github.com/luckboy/unlab-gpu/internal/lexer"
	"github.com/luckboy/unlab-gpu/internal/token"
	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// RunWithDocIdent is the default name the parser recognizes as the
// doc-include directive (spec §4.2, §4.9, open question: configurable,
// default "runwithdoc").
const RunWithDocIdent = "runwithdoc"

// Include records a `runwithdoc("file")` directive discovered while parsing;
// the doc-tree generator re-enters the parser on this file using the
// enclosing module as the include site.
type Include struct {
	Pos  token.Pos
	File string
}

// Parser parses one source file into a Tree.
type Parser struct {
	lx      *lexer.Lexer
	path    string
	docMode bool
	runWithDocIdent string

	tok     token.Token
	havePushback bool
	pushback token.Token

	// repDepth > 0 means we are inside a repeating construct (module/function
	// body, matrix row list, ...): premature EOF there is `Repetition`.
	repDepth int

	Includes []Include
}

// New creates a Parser reading tokens from lx.
func New(path string, lx *lexer.Lexer, docMode bool) *Parser {
	return &Parser{lx: lx, path: path, docMode: docMode, runWithDocIdent: RunWithDocIdent}
}

// SetRunWithDocIdent overrides the include-directive identifier (spec §9
// open question: the doc-generator configures this rather than hardwiring
// it).
func (p *Parser) SetRunWithDocIdent(id string) { p.runWithDocIdent = id }

func (p *Parser) advance() error {
	if p.havePushback {
		p.tok = p.pushback
		p.havePushback = false
		return nil
	}
	t, err := p.lx.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) pushBack(t token.Token) {
	p.pushback = p.tok
	p.havePushback = true
	p.tok = t
}

// peekIsNewline reports whether the current token is a Newline.
func (p *Parser) peekIsNewline() bool { return p.tok.Kind == token.Newline }

func (p *Parser) skipNewlines() error {
	for p.tok.Kind == token.Newline {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) eofErr() error {
	if p.repDepth > 0 {
		return uerr.ParserEof(p.path, uerr.Repetition)
	}
	return uerr.ParserEof(p.path, uerr.NoRepetition)
}

func (p *Parser) expect(k token.Kind, unclosedMsg string) error {
	if p.tok.Kind == token.EOF {
		return p.eofErr()
	}
	if p.tok.Kind != k {
		if unclosedMsg != "" {
			return uerr.Parser(p.tok.Pos.Uerr(), unclosedMsg)
		}
		return uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	return p.advance()
}

// ParseTree parses an entire file (module body at top level).
func ParseTree(path string, lx *lexer.Lexer, docMode bool) (*ast.Tree, []Include, error) {
	p := New(path, lx, docMode)
	if err := p.advance(); err != nil {
		return nil, nil, err
	}
	nodes, err := p.parseBody(false)
	if err != nil {
		return nil, nil, err
	}
	if p.tok.Kind != token.EOF {
		return nil, nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	return &ast.Tree{Nodes: nodes}, p.Includes, nil
}

// parseBody parses a sequence of definitions/statements until `end` (if
// nested) or EOF (if top level).
func (p *Parser) parseBody(nested bool) ([]Node, error) {
	return p.parseBodyUntil(nested, token.End)
}

// Node aliases ast.Node to keep this file's signatures short.
type Node = ast.Node

func (p *Parser) parseBodyUntil(nested bool, endTok token.Kind) ([]ast.Node, error) {
	p.repDepth++
	defer func() { p.repDepth-- }()

	var nodes []ast.Node
	for {
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		if p.tok.Kind == token.EOF {
			if nested {
				return nil, p.eofErr()
			}
			return nodes, nil
		}
		if nested && (p.tok.Kind == endTok || p.tok.Kind == token.Else) {
			return nodes, nil
		}
		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
}

func (p *Parser) parseNode() (ast.Node, error) {
	doc, hasDoc := p.lx.TakeDoc()
	switch p.tok.Kind {
	case token.Function:
		return p.parseFunDef(doc, hasDoc)
	case token.Module:
		return p.parseModDef(doc, hasDoc)
	case token.Use:
		return p.parseUse()
	default:
		return p.parseStmt()
	}
}

func (p *Parser) parseFunDef(doc string, hasDoc bool) (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil { // consume 'function'
		return nil, err
	}
	if p.tok.Kind != token.Ident {
		return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	name := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(token.LParen, "unclosed parenthesis"); err != nil {
		return nil, err
	}
	var args []string
	for p.tok.Kind != token.RParen {
		if p.tok.Kind != token.Ident {
			return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
		}
		args = append(args, p.tok.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == token.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if err := p.expect(token.RParen, "unclosed parenthesis"); err != nil {
		return nil, err
	}
	body, err := p.parseBody(true)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.End, ""); err != nil {
		return nil, err
	}
	return &ast.FunDef{Pos: pos, Name: name, Args: args, Body: body, Doc: doc, HasDoc: hasDoc}, nil
}

func (p *Parser) parseModDef(doc string, hasDoc bool) (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.Ident {
		return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	name := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(true)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.End, ""); err != nil {
		return nil, err
	}
	return &ast.ModDef{Pos: pos, Name: name, Body: body, Doc: doc, HasDoc: hasDoc}, nil
}

func (p *Parser) parseUse() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	var segs []string
	for p.tok.Kind == token.Ident {
		segs = append(segs, p.tok.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == token.ColonColon {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if len(segs) == 0 {
		return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	path := segs[:len(segs)-1]
	last := segs[len(segs)-1]
	return &ast.Use{Pos: pos, Path: path, Ident: last}, nil
}

func (p *Parser) parseStmt() (ast.Node, error) {
	switch p.tok.Kind {
	case token.If:
		return p.parseIf()
	case token.For:
		return p.parseFor()
	case token.While:
		return p.parseWhile()
	case token.Break:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Break{Pos: pos}, nil
	case token.Continue:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Continue{Pos: pos}, nil
	case token.Return:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.atStmtEnd() {
			return &ast.Return{Pos: pos}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Return{Pos: pos, Value: e}, nil
	case token.Quit:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.QuitStmt{Pos: pos}, nil
	case token.Exit:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.atStmtEnd() {
			return &ast.ExitStmt{Pos: pos}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ExitStmt{Pos: pos, Value: e}, nil
	default:
		return p.parseExprOrAssign()
	}
}

func (p *Parser) atStmtEnd() bool {
	switch p.tok.Kind {
	case token.Newline, token.EOF, token.End, token.Else:
		return true
	}
	return false
}

func (p *Parser) parseIf() (ast.Node, error) {
	pos := p.tok.Pos
	var branches []ast.IfBranch
	for {
		if err := p.advance(); err != nil { // consume 'if' or 'else'
			return nil, err
		}
		var cond ast.Expr
		isElse := false
		if branches != nil && p.tok.Kind != token.If {
			isElse = true
		} else {
			if branches != nil { // "else if"
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
			var err error
			cond, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		body, err := p.parseBodyUntil(true, token.End)
		if err != nil {
			return nil, err
		}
		branches = append(branches, ast.IfBranch{Cond: cond, Body: body})
		if isElse {
			break
		}
		if p.tok.Kind == token.Else {
			continue
		}
		break
	}
	if err := p.expect(token.End, ""); err != nil {
		return nil, err
	}
	return &ast.If{Pos: pos, Branches: branches}, nil
}

func (p *Parser) parseFor() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.Ident {
		return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	v := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(token.In, ""); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(true)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.End, ""); err != nil {
		return nil, err
	}
	return &ast.For{Pos: pos, Var: v, Expr: e, Body: body}, nil
}

func (p *Parser) parseWhile() (ast.Node, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(true)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.End, ""); err != nil {
		return nil, err
	}
	return &ast.While{Pos: pos, Cond: cond, Body: body}, nil
}

func (p *Parser) parseExprOrAssign() (ast.Node, error) {
	pos := p.tok.Pos
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == token.Assign {
		name, ok := exprToName(e)
		if !ok {
			return nil, uerr.Parser(pos.Uerr(), "unexpected token")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Pos: pos, Target: name, Value: val}, nil
	}
	if inc, ok := p.detectInclude(e); ok {
		p.Includes = append(p.Includes, inc)
	}
	return &ast.ExprStmt{Pos: pos, Expr: e}, nil
}

func exprToName(e ast.Expr) (ast.Name, bool) {
	if ne, ok := e.(*ast.NameExpr); ok {
		return ne.Name, true
	}
	return nil, false
}

// detectInclude recognizes `runwithdoc("file")` as a parser-level directive
// (spec §4.2, §4.9): only when doc mode is on and the call target resolves
// syntactically to the configured absolute-root identifier.
func (p *Parser) detectInclude(e ast.Expr) (Include, bool) {
	if !p.docMode {
		return Include{}, false
	}
	call, ok := e.(*ast.Call)
	if !ok || len(call.Args) != 1 {
		return Include{}, false
	}
	abs, ok := call.Fun.(*ast.NameExpr)
	if !ok {
		return Include{}, false
	}
	a, ok := abs.Name.(*ast.Abs)
	if !ok || len(a.Path) != 0 || a.Ident != p.runWithDocIdent {
		return Include{}, false
	}
	lit, ok := call.Args[0].(*ast.StringLit)
	if !ok {
		return Include{}, false
	}
	return Include{Pos: call.Pos, File: lit.Val}, true
}

// ---- Expression parsing: precedence climbing, low to high ----
// or < and < comparisons < to/by < +/- < * / .* ./ < unary < postfix

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.Or {
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &ast.Logic{Pos: pos, Op: ast.LOr, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	x, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.And {
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		x = &ast.Logic{Pos: pos, Op: ast.LAnd, X: x, Y: y}
	}
	return x, nil
}

var cmpOps = map[token.Kind]ast.BinOp{
	token.Lt: ast.CmpLt, token.Le: ast.CmpLe,
	token.Gt: ast.CmpGt, token.Ge: ast.CmpGe,
	token.Eq: ast.CmpEq, token.Ne: ast.CmpNe,
}

func (p *Parser) parseCmp() (ast.Expr, error) {
	x, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := cmpOps[p.tok.Kind]
		if !ok {
			return x, nil
		}
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		x = &ast.Binary{Pos: pos, Op: op, X: x, Y: y}
	}
}

func (p *Parser) parseRange() (ast.Expr, error) {
	x, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != token.To {
		return x, nil
	}
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	to, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	var by ast.Expr
	if p.tok.Kind == token.By {
		if err := p.advance(); err != nil {
			return nil, err
		}
		by, err = p.parseAdd()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Range{Pos: pos, From: x, To: to, By: by}, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	x, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.Plus || p.tok.Kind == token.Minus {
		op := ast.Add
		if p.tok.Kind == token.Minus {
			op = ast.Sub
		}
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		x = &ast.Binary{Pos: pos, Op: op, X: x, Y: y}
	}
	return x, nil
}

var mulOps = map[token.Kind]ast.BinOp{
	token.Star: ast.Mul, token.Slash: ast.Div,
	token.DotStar: ast.ElemMul, token.DotSlash: ast.ElemDiv,
}

func (p *Parser) parseMul() (ast.Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := mulOps[p.tok.Kind]
		if !ok {
			return x, nil
		}
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &ast.Binary{Pos: pos, Op: op, X: x, Y: y}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.tok.Kind {
	case token.Minus:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Pos: pos, Op: ast.Neg, X: x}, nil
	case token.Not:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Pos: pos, Op: ast.Not, X: x}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Kind {
		case token.Question:
			pos := p.tok.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			x = &ast.Unary{Pos: pos, Op: ast.ErrorProp, X: x}
		case token.Quote:
			pos := p.tok.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			x = &ast.Unary{Pos: pos, Op: ast.Transpose, X: x}
		case token.LBracket:
			pos := p.tok.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			var idxs []ast.Expr
			for p.tok.Kind != token.RBracket {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				idxs = append(idxs, e)
				if p.tok.Kind == token.Comma {
					if err := p.advance(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
			if err := p.expect(token.RBracket, "unclosed bracket"); err != nil {
				return nil, err
			}
			x = &ast.Index{Pos: pos, X: x, Indices: idxs}
		case token.Dot:
			pos := p.tok.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind != token.Ident {
				return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
			}
			field := p.tok.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			x = &ast.FieldAccess{Pos: pos, X: x, Field: field}
		case token.LParen:
			pos := p.tok.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			var args []ast.Expr
			for p.tok.Kind != token.RParen {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, e)
				if p.tok.Kind == token.Comma {
					if err := p.advance(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
			if err := p.expect(token.RParen, "unclosed parenthesis"); err != nil {
				return nil, err
			}
			x = &ast.Call{Pos: pos, Fun: x, Args: args}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	pos := p.tok.Pos
	switch p.tok.Kind {
	case token.Int:
		v, err := parseIntLit(p.tok.Text)
		if err != nil {
			return nil, uerr.Parser(pos.Uerr(), "invalid number")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IntLit{Pos: pos, Val: v}, nil
	case token.Float:
		v, err := strconv.ParseFloat(p.tok.Text, 32)
		if err != nil {
			return nil, uerr.Parser(pos.Uerr(), "invalid number")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FloatLit{Pos: pos, Val: float32(v)}, nil
	case token.String:
		s := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringLit{Pos: pos, Val: s}, nil
	case token.True, token.False:
		v := p.tok.Kind == token.True
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Pos: pos, Val: v}, nil
	case token.None:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NoneLit{Pos: pos}, nil
	case token.Inf:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FloatLit{Pos: pos, Val: float32(1) / 0}, nil
	case token.Nan:
		if err := p.advance(); err != nil {
			return nil, err
		}
		nan := float32(0)
		return &ast.FloatLit{Pos: pos, Val: nan / nan}, nil
	case token.Ident:
		return p.parseIdentExpr()
	case token.ColonColon:
		return p.parseRelExpr()
	case token.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RParen, "unclosed parenthesis"); err != nil {
			return nil, err
		}
		return e, nil
	case token.LBracket:
		return p.parseMatrixLit()
	case token.DotLBracket:
		return p.parseArrayLit()
	case token.LBrace:
		return p.parseStructLit()
	default:
		if p.tok.Kind == token.EOF {
			return nil, p.eofErr()
		}
		return nil, uerr.Parser(pos.Uerr(), "unexpected token")
	}
}

func parseIntLit(text string) (int64, error) {
	if len(text) > 1 && (text[1] == 'x' || text[1] == 'X') {
		return strconv.ParseInt(text[2:], 16, 64)
	}
	return strconv.ParseInt(text, 10, 64)
}

// parseIdentExpr parses `root::a::b::c` (Abs, when ident is literally
// "root"), `a::b::c` relative paths sharing the Rel production, or a bare
// `Var(ident)`.
func (p *Parser) parseIdentExpr() (ast.Expr, error) {
	pos := p.tok.Pos
	first := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if first == "root" && p.tok.Kind == token.ColonColon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		segs, last, err := p.parsePathSegs()
		if err != nil {
			return nil, err
		}
		return &ast.NameExpr{Name: &ast.Abs{Pos: pos, Path: segs, Ident: last}}, nil
	}
	if p.tok.Kind == token.ColonColon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		segs, last, err := p.parsePathSegs()
		if err != nil {
			return nil, err
		}
		full := append([]string{first}, segs...)
		return &ast.NameExpr{Name: &ast.Rel{Pos: pos, Path: full, Ident: last}}, nil
	}
	return &ast.NameExpr{Name: &ast.Var{Pos: pos, Ident: first}}, nil
}

func (p *Parser) parseRelExpr() (ast.Expr, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil { // consume leading '::'
		return nil, err
	}
	segs, last, err := p.parsePathSegs()
	if err != nil {
		return nil, err
	}
	return &ast.NameExpr{Name: &ast.Rel{Pos: pos, Path: segs, Ident: last}}, nil
}

// parsePathSegs parses `ident (:: ident)*` and returns (leadingSegs, last).
func (p *Parser) parsePathSegs() ([]string, string, error) {
	if p.tok.Kind != token.Ident {
		return nil, "", uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
	}
	var segs []string
	cur := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, "", err
	}
	for p.tok.Kind == token.ColonColon {
		if err := p.advance(); err != nil {
			return nil, "", err
		}
		segs = append(segs, cur)
		if p.tok.Kind != token.Ident {
			return nil, "", uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
		}
		cur = p.tok.Text
		if err := p.advance(); err != nil {
			return nil, "", err
		}
	}
	return segs, cur, nil
}

func (p *Parser) parseRow() (ast.Row, error) {
	var r ast.Row
	first, err := p.parseExpr()
	if err != nil {
		return r, err
	}
	if p.tok.Kind == token.Fill {
		if err := p.advance(); err != nil {
			return r, err
		}
		count, err := p.parseExpr()
		if err != nil {
			return r, err
		}
		r.Fill = first
		r.Count = count
		return r, nil
	}
	r.Exprs = append(r.Exprs, first)
	for p.tok.Kind == token.Comma {
		if err := p.advance(); err != nil {
			return r, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return r, err
		}
		r.Exprs = append(r.Exprs, e)
	}
	return r, nil
}

func (p *Parser) parseRows(closeKind token.Kind, unclosedMsg string) ([]ast.Row, ast.Expr, ast.Expr, error) {
	p.repDepth++
	defer func() { p.repDepth-- }()

	var rows []ast.Row
	for p.tok.Kind != closeKind {
		r, err := p.parseRow()
		if err != nil {
			return nil, nil, nil, err
		}
		rows = append(rows, r)
		if p.tok.Kind == token.Colon {
			if err := p.advance(); err != nil {
				return nil, nil, nil, err
			}
			continue
		}
		break
	}
	var fillAll, fillCount ast.Expr
	// trailing `; fill m` is spelled with `:` as our row separator token in
	// this grammar (no literal `;` token exists in the lexer's token set;
	// newlines end a row list visually but `:` separates rows textually for
	// the repeated-stack form).
	if p.tok.Kind == token.Fill {
		if err := p.advance(); err != nil {
			return nil, nil, nil, err
		}
		count, err := p.parseExpr()
		if err != nil {
			return nil, nil, nil, err
		}
		fillCount = count
		fillAll = count
	}
	if p.tok.Kind == token.EOF {
		return nil, nil, nil, p.eofErr()
	}
	if p.tok.Kind != closeKind {
		return nil, nil, nil, uerr.Parser(p.tok.Pos.Uerr(), unclosedMsg)
	}
	if err := p.advance(); err != nil {
		return nil, nil, nil, err
	}
	return rows, fillAll, fillCount, nil
}

func (p *Parser) parseMatrixLit() (ast.Expr, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	rows, fillAll, fillCount, err := p.parseRows(token.RBracket, "unclosed bracket")
	if err != nil {
		return nil, err
	}
	return &ast.MatrixLit{Pos: pos, Rows: rows, FillAll: fillAll, FillCount: fillCount}, nil
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	rows, fillAll, fillCount, err := p.parseRows(token.DotRBracket, "unclosed dot bracket")
	if err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Pos: pos, Rows: rows, FillAll: fillAll, FillCount: fillCount}, nil
}

func (p *Parser) parseStructLit() (ast.Expr, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	p.repDepth++
	var fields []ast.StructField
	for p.tok.Kind != token.RBrace {
		if err := p.skipNewlines(); err != nil {
			p.repDepth--
			return nil, err
		}
		if p.tok.Kind == token.RBrace {
			break
		}
		if p.tok.Kind != token.Ident {
			p.repDepth--
			return nil, uerr.Parser(p.tok.Pos.Uerr(), "unexpected token")
		}
		ident := p.tok.Text
		if err := p.advance(); err != nil {
			p.repDepth--
			return nil, err
		}
		if err := p.expect(token.Colon, ""); err != nil {
			p.repDepth--
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			p.repDepth--
			return nil, err
		}
		fields = append(fields, ast.StructField{Ident: ident, Value: val})
		if p.tok.Kind == token.Colon {
			if err := p.advance(); err != nil {
				p.repDepth--
				return nil, err
			}
		}
	}
	p.repDepth--
	if p.tok.Kind == token.EOF {
		return nil, p.eofErr()
	}
	if err := p.expect(token.RBrace, "unclosed brace"); err != nil {
		return nil, err
	}
	return &ast.StructLit{Pos: pos, Fields: fields}, nil
}
