// Package parser implements the syntax analysis for BASIC programs.
// It uses precedence climbing for expressions and recursive descent for
// statements. The first syntax fault aborts the parse.
package parser

import (
	"errors"
	"strconv"

	"bb2web/internal/ast"
	"bb2web/internal/diag"
	"bb2web/internal/span"
	"bb2web/internal/token"
)

// ============================================================
// Precedence levels
// ============================================================

const (
	precNone       = 0
	precOr         = 1 // OR
	precAnd        = 2 // AND
	precEquality   = 3 // = <>
	precComparison = 4 // < > <= >=
	precAdditive   = 5 // + -
	precMultiply   = 6 // * / MOD
	precPower      = 7 // ^ (right-associative)
)

// binaryPrec returns the precedence of tok as a binary operator, or
// precNone if it is not one.
func binaryPrec(tok token.Token) int {
	switch tok.Kind {
	case token.KEYWORD:
		switch tok.Upper {
		case "OR":
			return precOr
		case "AND":
			return precAnd
		case "MOD":
			return precMultiply
		}
	case token.OP:
		switch tok.Upper {
		case "=", "<>":
			return precEquality
		case "<", ">", "<=", ">=":
			return precComparison
		case "+", "-":
			return precAdditive
		case "*", "/":
			return precMultiply
		case "^":
			return precPower
		}
	}
	return precNone
}

// blockEnders stop a statement sequence. The enclosing construct decides
// whether the terminator it finds is the right one.
var blockEnders = map[string]bool{
	"END":     true,
	"ENDIF":   true,
	"ELSE":    true,
	"ELSEIF":  true,
	"WEND":    true,
	"UNTIL":   true,
	"NEXT":    true,
	"CASE":    true,
	"DEFAULT": true,
}

// ============================================================
// Parser
// ============================================================

// Parser performs syntax analysis on a stream of tokens.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New creates a new parser from a token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens, pos: 0}
}

// bailout carries a syntax fault up to ParseProgram.
type bailout struct {
	err error
}

// ParseProgram parses the whole token stream. On failure it returns a
// diag.Diagnostic and no AST.
func (p *Parser) ParseProgram() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	prog = &ast.Program{}
	startPos := p.peek().Span.Start

	p.skipSep()
	for !p.isAtEnd() {
		prog.Body = append(prog.Body, p.parseStatement())
		p.skipSep()
	}

	prog.Span = span.Span{Start: startPos, End: p.peek().Span.End}
	return prog, nil
}

// ---- navigation helpers ----

func (p *Parser) peek() token.Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.tokens) {
		var end span.Position
		if len(p.tokens) > 0 {
			end = p.tokens[len(p.tokens)-1].Span.End
		}
		return token.Token{Kind: token.EOF, Span: span.At(end)}
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == token.EOF
}

// atStatementEnd reports whether the current token closes a statement:
// a separator, end of input, or an ELSE of a single-line IF.
func (p *Parser) atStatementEnd() bool {
	tok := p.peek()
	return tok.IsSeparator() || tok.Kind == token.EOF || tok.IsKeyword("ELSE")
}

// atBlockEnd reports whether a statement sequence stops here.
func (p *Parser) atBlockEnd() bool {
	tok := p.peek()
	return tok.Kind == token.EOF || (tok.Kind == token.KEYWORD && blockEnders[tok.Upper])
}

// skipSep skips line breaks and ':' separators.
func (p *Parser) skipSep() {
	for p.peek().IsSeparator() {
		p.advance()
	}
}

func (p *Parser) expectOp(op string) token.Token {
	tok := p.peek()
	if !tok.IsOp(op) {
		p.fail(diag.CodeExpected, tok.Span, "expected %q, got %s", op, tok.Describe())
	}
	return p.advance()
}

func (p *Parser) expectKeyword(kw string) token.Token {
	tok := p.peek()
	if !tok.IsKeyword(kw) {
		p.fail(diag.CodeExpected, tok.Span, "expected %s, got %s", kw, tok.Describe())
	}
	return p.advance()
}

func (p *Parser) fail(code string, s span.Span, format string, args ...interface{}) {
	panic(bailout{err: diag.Errorf(diag.Syntax, code, s, format, args...)})
}

func (p *Parser) unexpected(tok token.Token) {
	p.fail(diag.CodeUnexpectedToken, tok.Span, "unexpected %s", tok.Describe())
}

// failOn re-raises a construction check from the ast package as a parse fault.
func (p *Parser) failOn(err error) {
	var d diag.Diagnostic
	if errors.As(err, &d) {
		panic(bailout{err: d})
	}
	panic(bailout{err: err})
}

// ============================================================
// Statement parsing
// ============================================================

func (p *Parser) parseStatement() ast.Stmt {
	tok := p.peek()
	if tok.Kind == token.KEYWORD {
		switch tok.Upper {
		case "GLOBAL", "LOCAL", "CONST":
			return p.parseVarDecl()
		case "DIM":
			return p.parseDim()
		case "IF":
			return p.parseIf()
		case "WHILE":
			return p.parseWhile()
		case "REPEAT":
			return p.parseRepeat()
		case "FOR":
			return p.parseFor()
		case "SELECT":
			return p.parseSelect()
		case "FUNCTION":
			return p.parseFunction()
		case "RETURN":
			return p.parseReturn()
		}
	}
	if tok.Kind == token.IDENT && !isLiteralName(tok) {
		return p.parseIdentStatement()
	}
	return p.parseExprStatement()
}

// parseBlock parses statements until a block terminator or end of input.
func (p *Parser) parseBlock() []ast.Stmt {
	stmts := []ast.Stmt{}
	p.skipSep()
	for !p.atBlockEnd() {
		stmts = append(stmts, p.parseStatement())
		p.skipSep()
	}
	return stmts
}

// blockClosers names the closer of each block construct for fault hints.
var blockClosers = map[string]string{
	"IF":       "END IF",
	"WHILE":    "WEND",
	"REPEAT":   "UNTIL",
	"FOR":      "NEXT",
	"SELECT":   "END SELECT",
	"FUNCTION": "END FUNCTION",
}

// closeBlock consumes the closer of a block construct. End of input stands
// in for any closer; any other token is a fault.
func (p *Parser) closeBlock(construct string, accept func(tok token.Token) bool) bool {
	tok := p.peek()
	if tok.Kind == token.EOF {
		return false
	}
	if !accept(tok) {
		d := diag.Errorf(diag.Syntax, diag.CodeBlockTerminator, tok.Span,
			"unexpected %s in %s block", tok.Describe(), construct)
		if closer, ok := blockClosers[construct]; ok {
			d = d.WithHint(construct + " blocks end with " + closer)
		}
		panic(bailout{err: d})
	}
	return true
}

// closeEnd consumes "END <kw>" for the given construct keyword.
func (p *Parser) closeEnd(kw string) {
	if !p.closeBlock(kw, func(tok token.Token) bool { return tok.IsKeyword("END") }) {
		return
	}
	p.advance()
	if p.isAtEnd() {
		return
	}
	p.expectKeyword(kw)
}

// parseVarDecl parses: (GLOBAL | LOCAL | CONST) name [= expr]
func (p *Parser) parseVarDecl() *ast.VarDecl {
	start := p.advance()
	stmt := &ast.VarDecl{}
	switch start.Upper {
	case "GLOBAL":
		stmt.Scope = ast.ScopeGlobal
	case "LOCAL":
		stmt.Scope = ast.ScopeLocal
	default:
		stmt.Scope = ast.ScopeConst
	}
	stmt.Name = p.parseVarRef()
	if p.peek().IsOp("=") {
		p.advance()
		stmt.Init = p.parseExpr(precOr)
	}
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseDim parses: DIM name(size)
func (p *Parser) parseDim() *ast.DimDecl {
	start := p.advance()
	stmt := &ast.DimDecl{Name: p.parseVarRef()}
	p.expectOp("(")
	stmt.Size = p.parseExpr(precOr)
	p.expectOp(")")
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseIf parses both IF forms. When THEN is followed by a separator the
// block form runs to END IF; otherwise exactly one statement is taken for
// the consequent (and one for an ELSE), leaving separators to the caller.
func (p *Parser) parseIf() *ast.IfStmt {
	start := p.advance()
	stmt := &ast.IfStmt{}
	test := p.parseExpr(precOr)
	p.expectKeyword("THEN")

	if !p.peek().IsSeparator() && !p.isAtEnd() {
		branch := ast.IfBranch{Test: test}
		branch.Body = []ast.Stmt{p.parseStatement()}
		branch.Span = p.makeSpan(start.Span.Start)
		stmt.Branches = []ast.IfBranch{branch}
		if p.peek().IsKeyword("ELSE") {
			p.advance()
			stmt.Else = []ast.Stmt{}
			if !p.atStatementEnd() {
				stmt.Else = append(stmt.Else, p.parseStatement())
			}
		}
		stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
		return stmt
	}

	branchStart := start.Span.Start
	for {
		body := p.parseBlock()
		stmt.Branches = append(stmt.Branches, ast.IfBranch{
			Span: p.makeSpan(branchStart),
			Test: test,
			Body: body,
		})
		if !p.peek().IsKeyword("ELSEIF") {
			break
		}
		branchStart = p.advance().Span.Start
		test = p.parseExpr(precOr)
		p.expectKeyword("THEN")
	}

	if p.peek().IsKeyword("ELSE") {
		p.advance()
		stmt.Else = p.parseBlock()
	}

	closed := p.closeBlock("IF", func(tok token.Token) bool {
		return tok.IsKeyword("END") || tok.IsKeyword("ENDIF")
	})
	if closed && p.advance().IsKeyword("END") && p.peek().IsKeyword("IF") {
		p.advance()
	}
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseWhile parses: WHILE test ... WEND
func (p *Parser) parseWhile() *ast.WhileStmt {
	start := p.advance()
	stmt := &ast.WhileStmt{Test: p.parseExpr(precOr)}
	stmt.Body = p.parseBlock()
	if p.closeBlock("WHILE", func(tok token.Token) bool { return tok.IsKeyword("WEND") }) {
		p.advance()
	}
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseRepeat parses: REPEAT ... UNTIL test
func (p *Parser) parseRepeat() *ast.RepeatStmt {
	start := p.advance()
	stmt := &ast.RepeatStmt{Body: p.parseBlock()}
	if p.closeBlock("REPEAT", func(tok token.Token) bool { return tok.IsKeyword("UNTIL") }) {
		p.advance()
		stmt.Until = p.parseExpr(precOr)
	}
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseFor parses: FOR var = start TO bound [STEP step] ... NEXT [var]
func (p *Parser) parseFor() *ast.ForStmt {
	start := p.advance()
	stmt := &ast.ForStmt{Var: p.parseVarRef()}
	p.expectOp("=")
	stmt.Start = p.parseExpr(precOr)
	p.expectKeyword("TO")
	stmt.Bound = p.parseExpr(precOr)
	if p.peek().IsKeyword("STEP") {
		p.advance()
		stmt.Step = p.parseExpr(precOr)
	}
	stmt.Body = p.parseBlock()
	if p.closeBlock("FOR", func(tok token.Token) bool { return tok.IsKeyword("NEXT") }) {
		p.advance()
		if p.peek().Kind == token.IDENT {
			p.parseVarRef()
		}
	}
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseSelect parses: SELECT subject {CASE tests ...} [DEFAULT ...] END SELECT
func (p *Parser) parseSelect() *ast.SelectStmt {
	start := p.advance()
	stmt := &ast.SelectStmt{Subject: p.parseExpr(precOr)}
	p.skipSep()

	for p.peek().IsKeyword("CASE") {
		caseTok := p.advance()
		clause := ast.CaseClause{Tests: []ast.Expr{p.parseExpr(precOr)}}
		for p.peek().IsOp(",") {
			p.advance()
			clause.Tests = append(clause.Tests, p.parseExpr(precOr))
		}
		clause.Body = p.parseBlock()
		clause.Span = p.makeSpan(caseTok.Span.Start)
		stmt.Cases = append(stmt.Cases, clause)
	}

	if tok := p.peek(); tok.IsKeyword("DEFAULT") {
		p.advance()
		stmt.Default = p.parseBlock()
		if next := p.peek(); next.IsKeyword("CASE") || next.IsKeyword("DEFAULT") {
			p.fail(diag.CodeUnexpectedToken, next.Span, "%s after DEFAULT in SELECT", next.Upper)
		}
	}

	p.closeEnd("SELECT")
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseFunction parses: FUNCTION name(params) ... END FUNCTION
func (p *Parser) parseFunction() *ast.FuncDecl {
	start := p.advance()
	decl := &ast.FuncDecl{Name: p.parseVarRef(), Params: []*ast.VarRef{}}
	p.expectOp("(")
	if !p.peek().IsOp(")") {
		decl.Params = append(decl.Params, p.parseVarRef())
		for p.peek().IsOp(",") {
			p.advance()
			decl.Params = append(decl.Params, p.parseVarRef())
		}
	}
	p.expectOp(")")
	decl.Body = p.parseBlock()
	p.closeEnd("FUNCTION")
	decl.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return decl
}

// parseReturn parses: RETURN [expr]
func (p *Parser) parseReturn() *ast.ReturnStmt {
	start := p.advance()
	stmt := &ast.ReturnStmt{}
	if !p.atStatementEnd() {
		stmt.Value = p.parseExpr(precOr)
	}
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseIdentStatement handles identifier-led lines: assignment, call with
// parentheses, indexed assignment, or a bare call such as `Color 255,0,0`.
func (p *Parser) parseIdentStatement() ast.Stmt {
	ref := p.parseVarRef()
	next := p.peek()

	switch {
	case next.IsOp("="):
		p.advance()
		value := p.parseExpr(precOr)
		return &ast.AssignStmt{
			StmtBase: makeStmtBase(ref.Span.Start, p.prevEnd()),
			Target:   ref,
			Value:    value,
		}

	case next.IsOp("(") && p.parenClosesStatement():
		call := p.parseCallArgs(ref)
		if p.peek().IsOp("=") {
			p.advance()
			value := p.parseExpr(precOr)
			return &ast.AssignStmt{
				StmtBase: makeStmtBase(ref.Span.Start, p.prevEnd()),
				Target:   call,
				Value:    value,
			}
		}
		return &ast.ExprStmt{StmtBase: makeStmtBase(ref.Span.Start, p.prevEnd()), Expr: call}

	case p.atStatementEnd():
		call, err := ast.NewCall(ref, []ast.Expr{}, ref.Span)
		if err != nil {
			p.failOn(err)
		}
		return &ast.ExprStmt{StmtBase: makeStmtBase(ref.Span.Start, p.prevEnd()), Expr: call}

	case beginsExpr(next):
		args := []ast.Expr{p.parseExpr(precOr)}
		for p.peek().IsOp(",") {
			p.advance()
			args = append(args, p.parseExpr(precOr))
		}
		call, err := ast.NewCall(ref, args, p.makeSpan(ref.Span.Start))
		if err != nil {
			p.failOn(err)
		}
		return &ast.ExprStmt{StmtBase: makeStmtBase(ref.Span.Start, p.prevEnd()), Expr: call}
	}

	p.unexpected(next)
	return nil
}

// parenClosesStatement looks from the current '(' to its matching ')' and
// reports whether the parenthesized list is the whole argument list: the
// token after ')' ends the statement or is '='.
func (p *Parser) parenClosesStatement() bool {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		tok := p.tokens[i]
		switch {
		case tok.IsOp("("):
			depth++
		case tok.IsOp(")"):
			depth--
			if depth == 0 {
				after := p.peekAt(i + 1 - p.pos)
				return after.IsSeparator() || after.Kind == token.EOF ||
					after.IsKeyword("ELSE") || after.IsOp("=")
			}
		case tok.Kind == token.EOL || tok.Kind == token.EOF:
			return true
		}
	}
	return true
}

// parseExprStatement parses a generic expression statement; an '=' after
// the expression makes it an assignment to that expression.
func (p *Parser) parseExprStatement() ast.Stmt {
	expr := p.parseExpr(precOr)
	if p.peek().IsOp("=") {
		p.advance()
		if !isAssignable(expr) {
			p.fail(diag.CodeAssignTarget, expr.GetSpan(), "invalid assignment target")
		}
		value := p.parseExpr(precOr)
		return &ast.AssignStmt{
			StmtBase: makeStmtBase(expr.GetSpan().Start, p.prevEnd()),
			Target:   expr,
			Value:    value,
		}
	}
	return &ast.ExprStmt{
		StmtBase: makeStmtBase(expr.GetSpan().Start, expr.GetSpan().End),
		Expr:     expr,
	}
}

func isAssignable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.VarRef, *ast.CallExpr:
		return true
	}
	return false
}

// ============================================================
// Expression parsing
// ============================================================

// parseExpr parses binary operators of precedence >= minPrec. '^' recurses
// at its own level so it groups to the right.
func (p *Parser) parseExpr(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		opTok := p.peek()
		prec := binaryPrec(opTok)
		if prec == precNone || prec < minPrec {
			break
		}
		p.advance()
		next := prec + 1
		if opTok.IsOp("^") {
			next = prec
		}
		right := p.parseExpr(next)
		left = &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       opTok.Upper,
			Left:     left,
			Right:    right,
		}
	}
	return left
}

// parseUnary parses '-' and NOT, which bind tighter than '^'.
func (p *Parser) parseUnary() ast.Expr {
	tok := p.peek()
	if tok.IsOp("-") || tok.IsKeyword("NOT") {
		p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpr{
			ExprBase: makeExprBase(tok.Span.Start, operand.GetSpan().End),
			Op:       tok.Upper,
			Operand:  operand,
		}
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by any call argument lists.
func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	for p.peek().IsOp("(") {
		expr = p.parseCallArgs(expr)
	}
	return expr
}

// parseCallArgs parses '(' args ')' applied to callee.
func (p *Parser) parseCallArgs(callee ast.Expr) *ast.CallExpr {
	p.expectOp("(")
	args := []ast.Expr{}
	if !p.peek().IsOp(")") {
		args = append(args, p.parseExpr(precOr))
		for p.peek().IsOp(",") {
			p.advance()
			args = append(args, p.parseExpr(precOr))
		}
	}
	p.expectOp(")")
	call, err := ast.NewCall(callee, args, p.makeSpan(callee.GetSpan().Start))
	if err != nil {
		p.failOn(err)
	}
	return call
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.NUMBER:
		p.advance()
		val, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.Literal{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Kind:     ast.LitNumber,
			Raw:      tok.Lexeme,
			Number:   val,
		}

	case token.STRING:
		p.advance()
		return &ast.Literal{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Kind:     ast.LitString,
			Str:      tok.Lexeme,
			Suffix:   ast.SuffixString,
		}

	case token.IDENT:
		if isLiteralName(tok) && !p.peekAt(1).IsOp("%") && !p.peekAt(1).IsOp("#") && !p.peekAt(1).IsOp("$") {
			p.advance()
			lit := &ast.Literal{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End)}
			switch tok.Upper {
			case "TRUE":
				lit.Kind, lit.Bool = ast.LitBool, true
			case "FALSE":
				lit.Kind = ast.LitBool
			default:
				lit.Kind = ast.LitNull
			}
			return lit
		}
		return p.parseVarRef()

	case token.OP:
		if tok.IsOp("(") {
			p.advance()
			inner := p.parseExpr(precOr)
			p.expectOp(")")
			return &ast.GroupExpr{
				ExprBase: makeExprBase(tok.Span.Start, p.prevEnd()),
				Inner:    inner,
			}
		}
	}

	p.unexpected(tok)
	return nil
}

// parseVarRef parses an identifier and its optional type suffix.
func (p *Parser) parseVarRef() *ast.VarRef {
	tok := p.peek()
	if tok.Kind != token.IDENT {
		p.fail(diag.CodeExpected, tok.Span, "expected identifier, got %s", tok.Describe())
	}
	p.advance()
	ref := &ast.VarRef{Name: tok.Lexeme}
	if next := p.peek(); next.Kind == token.OP {
		if suffix, ok := ast.SuffixFromMarker(next.Lexeme); ok {
			p.advance()
			ref.Suffix = suffix
		}
	}
	ref.ExprBase = makeExprBase(tok.Span.Start, p.prevEnd())
	return ref
}

// beginsExpr reports whether tok can start an expression.
func beginsExpr(tok token.Token) bool {
	switch tok.Kind {
	case token.IDENT, token.NUMBER, token.STRING:
		return true
	case token.OP:
		return tok.Lexeme == "(" || tok.Lexeme == "-"
	case token.KEYWORD:
		return tok.Upper == "NOT"
	}
	return false
}

// isLiteralName reports whether tok is one of the literal words True,
// False or Null.
func isLiteralName(tok token.Token) bool {
	if tok.Kind != token.IDENT {
		return false
	}
	switch tok.Upper {
	case "TRUE", "FALSE", "NULL":
		return true
	}
	return false
}

// ---- span helpers ----

func (p *Parser) prevEnd() span.Position {
	if p.pos > 0 && p.pos-1 < len(p.tokens) {
		return p.tokens[p.pos-1].Span.End
	}
	return p.peek().Span.Start
}

func (p *Parser) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: p.prevEnd()}
}

func makeExprBase(start, end span.Position) ast.ExprBase {
	return ast.ExprBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}

func makeStmtBase(start, end span.Position) ast.StmtBase {
	return ast.StmtBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}
