package parser

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"bb2web/internal/ast"
	"bb2web/internal/diag"
	"bb2web/internal/lexer"
)

// helper: parse source and return AST + check for no errors
func parseOK(t *testing.T, source string) *ast.Program {
	t.Helper()
	tokens, err := lexer.New(source, "test.bb").Tokenize()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := New(tokens).ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

// helper: parse source that must fail and return the diagnostic
func parseFail(t *testing.T, source string) diag.Diagnostic {
	t.Helper()
	tokens, err := lexer.New(source, "test.bb").Tokenize()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := New(tokens).ParseProgram()
	if err == nil {
		t.Fatalf("expected a syntax fault for %q", source)
	}
	if prog != nil {
		t.Errorf("expected no AST on fault")
	}
	var d diag.Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("expected diag.Diagnostic, got %T", err)
	}
	return d
}

// helper: parse and return JSON string (for golden-test style checks)
func parseToJSON(t *testing.T, source string) string {
	t.Helper()
	prog := parseOK(t, source)
	data, err := json.MarshalIndent(ast.NodeToMap(prog), "", "  ")
	if err != nil {
		t.Fatalf("json error: %v", err)
	}
	return string(data)
}

func TestParseVarDecl(t *testing.T) {
	prog := parseOK(t, `Local x% = 42`)
	if len(prog.Body) != 1 {
		t.Fatalf("expected 1 node, got %d", len(prog.Body))
	}
	decl, ok := prog.Body[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected VarDecl, got %T", prog.Body[0])
	}
	if decl.Scope != ast.ScopeLocal {
		t.Errorf("expected local scope, got %s", decl.Scope)
	}
	if decl.Name.Name != "x" || decl.Name.Suffix != ast.SuffixInt {
		t.Errorf("expected x%%, got %s%s", decl.Name.Name, decl.Name.Suffix.Marker())
	}
	if lit, ok := decl.Init.(*ast.Literal); !ok || lit.Number != 42 {
		t.Errorf("expected literal 42, got %#v", decl.Init)
	}
}

func TestParseScopes(t *testing.T) {
	prog := parseOK(t, "Global a\nConst B# = 1.5\nLocal c$")
	want := []ast.Scope{ast.ScopeGlobal, ast.ScopeConst, ast.ScopeLocal}
	for i, scope := range want {
		decl := prog.Body[i].(*ast.VarDecl)
		if decl.Scope != scope {
			t.Errorf("stmt %d: expected %s, got %s", i, scope, decl.Scope)
		}
	}
	if prog.Body[0].(*ast.VarDecl).Init != nil {
		t.Error("expected no initializer for Global a")
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	prog := parseOK(t, `x = 1 + 2 * 3`)
	assign := prog.Body[0].(*ast.AssignStmt)
	bin, ok := assign.Value.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected '+' at the root, got %#v", assign.Value)
	}
	right, ok := bin.Right.(*ast.BinaryExpr)
	if !ok || right.Op != "*" {
		t.Errorf("expected '*' on the right, got %#v", bin.Right)
	}
}

func TestParseLogicalPrecedence(t *testing.T) {
	prog := parseOK(t, `x = a = 1 Or b < 2 And c <> 3`)
	or := prog.Body[0].(*ast.AssignStmt).Value.(*ast.BinaryExpr)
	if or.Op != "OR" {
		t.Fatalf("expected OR at the root, got %s", or.Op)
	}
	if eq := or.Left.(*ast.BinaryExpr); eq.Op != "=" {
		t.Errorf("expected '=' on the left, got %s", eq.Op)
	}
	and := or.Right.(*ast.BinaryExpr)
	if and.Op != "AND" {
		t.Fatalf("expected AND on the right, got %s", and.Op)
	}
	if lt := and.Left.(*ast.BinaryExpr); lt.Op != "<" {
		t.Errorf("expected '<' under AND, got %s", lt.Op)
	}
}

func TestParsePowerRightAssoc(t *testing.T) {
	prog := parseOK(t, `x = 2 ^ 3 ^ 2`)
	pow := prog.Body[0].(*ast.AssignStmt).Value.(*ast.BinaryExpr)
	if pow.Op != "^" {
		t.Fatalf("expected '^', got %s", pow.Op)
	}
	if _, ok := pow.Left.(*ast.Literal); !ok {
		t.Errorf("expected literal on the left, got %T", pow.Left)
	}
	if inner, ok := pow.Right.(*ast.BinaryExpr); !ok || inner.Op != "^" {
		t.Errorf("expected nested '^' on the right, got %#v", pow.Right)
	}
}

func TestParseUnaryBindsTighterThanPower(t *testing.T) {
	prog := parseOK(t, `x = -2 ^ 2`)
	pow := prog.Body[0].(*ast.AssignStmt).Value.(*ast.BinaryExpr)
	if un, ok := pow.Left.(*ast.UnaryExpr); !ok || un.Op != "-" {
		t.Errorf("expected unary minus as the base, got %#v", pow.Left)
	}
}

func TestParseModIsMultiplicative(t *testing.T) {
	prog := parseOK(t, `x = 1 + 7 Mod 3`)
	add := prog.Body[0].(*ast.AssignStmt).Value.(*ast.BinaryExpr)
	if mod, ok := add.Right.(*ast.BinaryExpr); !ok || mod.Op != "MOD" {
		t.Errorf("expected MOD under '+', got %#v", add.Right)
	}
}

func TestParseNegatedCall(t *testing.T) {
	prog := parseOK(t, `x = -Rnd(10)`)
	un := prog.Body[0].(*ast.AssignStmt).Value.(*ast.UnaryExpr)
	if call, ok := un.Operand.(*ast.CallExpr); !ok || call.Callee.Name != "Rnd" {
		t.Errorf("expected call under unary minus, got %#v", un.Operand)
	}
}

func TestParseLiterals(t *testing.T) {
	prog := parseOK(t, "a = True\nb = false\nc = Null\nd$ = \"hi\"")
	kinds := []ast.LitKind{ast.LitBool, ast.LitBool, ast.LitNull, ast.LitString}
	for i, kind := range kinds {
		lit, ok := prog.Body[i].(*ast.AssignStmt).Value.(*ast.Literal)
		if !ok || lit.Kind != kind {
			t.Errorf("stmt %d: expected %s literal, got %#v", i, kind, prog.Body[i].(*ast.AssignStmt).Value)
		}
	}
	if lit := prog.Body[3].(*ast.AssignStmt).Value.(*ast.Literal); lit.Suffix != ast.SuffixString {
		t.Errorf("expected string literal to carry the string suffix")
	}
}

func TestParseBareCall(t *testing.T) {
	prog := parseOK(t, `Graphics 320,240`)
	stmt, ok := prog.Body[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", prog.Body[0])
	}
	call := stmt.Expr.(*ast.CallExpr)
	if call.Callee.Name != "Graphics" || len(call.Args) != 2 {
		t.Errorf("expected Graphics with 2 args, got %s with %d", call.Callee.Name, len(call.Args))
	}
}

func TestParseZeroArgBareCall(t *testing.T) {
	prog := parseOK(t, "Cls : Flip")
	if len(prog.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Body))
	}
	for i, name := range []string{"Cls", "Flip"} {
		call := prog.Body[i].(*ast.ExprStmt).Expr.(*ast.CallExpr)
		if call.Callee.Name != name || len(call.Args) != 0 {
			t.Errorf("stmt %d: expected %s(), got %s/%d", i, name, call.Callee.Name, len(call.Args))
		}
	}
}

func TestParseParenthesizedCallStatement(t *testing.T) {
	prog := parseOK(t, `DrawBox(1, 2)`)
	call := prog.Body[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if call.Callee.Name != "DrawBox" || len(call.Args) != 2 {
		t.Errorf("expected DrawBox with 2 args, got %d", len(call.Args))
	}
}

func TestParseBareCallWithLeadingParen(t *testing.T) {
	prog := parseOK(t, `Color (a+1)*2, 0, 0`)
	call := prog.Body[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if len(call.Args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(call.Args))
	}
	if mul, ok := call.Args[0].(*ast.BinaryExpr); !ok || mul.Op != "*" {
		t.Errorf("expected first arg to be a product, got %#v", call.Args[0])
	}
}

func TestParseIndexedAssignment(t *testing.T) {
	prog := parseOK(t, "Dim a(10)\na(3) = 7")
	dim := prog.Body[0].(*ast.DimDecl)
	if dim.Name.Name != "a" {
		t.Errorf("expected Dim a, got %s", dim.Name.Name)
	}
	assign := prog.Body[1].(*ast.AssignStmt)
	target, ok := assign.Target.(*ast.CallExpr)
	if !ok || target.Callee.Name != "a" || len(target.Args) != 1 {
		t.Errorf("expected indexed target a(3), got %#v", assign.Target)
	}
}

func TestParseIfBlock(t *testing.T) {
	prog := parseOK(t, `If x = 1 Then
	y = 1
ElseIf x = 2 Then
	y = 2
Else
	y = 3
End If`)
	stmt := prog.Body[0].(*ast.IfStmt)
	if len(stmt.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(stmt.Branches))
	}
	if stmt.Else == nil || len(stmt.Else) != 1 {
		t.Errorf("expected else with 1 statement, got %v", stmt.Else)
	}
}

func TestParseIfClosedByEndIf(t *testing.T) {
	prog := parseOK(t, "If x Then\n  Cls\nEndIf\nFlip")
	if len(prog.Body) != 2 {
		t.Errorf("expected 2 top-level statements, got %d", len(prog.Body))
	}
}

func TestParseSingleLineIf(t *testing.T) {
	prog := parseOK(t, "Local x% = 1\nIf x% = 1 Then x% = x% + 1")
	stmt := prog.Body[1].(*ast.IfStmt)
	if len(stmt.Branches) != 1 || len(stmt.Branches[0].Body) != 1 {
		t.Fatalf("expected single branch with one statement")
	}
	assign := stmt.Branches[0].Body[0].(*ast.AssignStmt)
	if target := assign.Target.(*ast.VarRef); target.Key() != "x%" {
		t.Errorf("expected target x%%, got %s", target.Key())
	}
	if stmt.Else != nil {
		t.Errorf("expected no else")
	}
}

func TestParseSingleLineIfLeavesFollowingStatements(t *testing.T) {
	prog := parseOK(t, "If a Then Cls : Flip")
	if len(prog.Body) != 2 {
		t.Fatalf("expected If and Flip at top level, got %d statements", len(prog.Body))
	}
	stmt := prog.Body[0].(*ast.IfStmt)
	if len(stmt.Branches[0].Body) != 1 {
		t.Errorf("expected consequent of 1 statement, got %d", len(stmt.Branches[0].Body))
	}
	if call := prog.Body[1].(*ast.ExprStmt).Expr.(*ast.CallExpr); call.Callee.Name != "Flip" {
		t.Errorf("expected Flip after If, got %s", call.Callee.Name)
	}
}

func TestParseSingleLineIfElse(t *testing.T) {
	prog := parseOK(t, "If a Then b = 1 Else b = 2")
	stmt := prog.Body[0].(*ast.IfStmt)
	if len(stmt.Else) != 1 {
		t.Errorf("expected else with one statement, got %d", len(stmt.Else))
	}
}

func TestParseIfAtEndOfInput(t *testing.T) {
	prog := parseOK(t, "If x Then")
	stmt := prog.Body[0].(*ast.IfStmt)
	if len(stmt.Branches) != 1 || len(stmt.Branches[0].Body) != 0 {
		t.Errorf("expected one empty branch, got %#v", stmt.Branches)
	}
}

func TestParseIfWrongTerminator(t *testing.T) {
	d := parseFail(t, "If x Then\n  Cls\nWend")
	if d.Code != diag.CodeBlockTerminator {
		t.Errorf("expected %s, got %s", diag.CodeBlockTerminator, d.Code)
	}
	if d.Line() != 3 || d.Column() != 1 {
		t.Errorf("expected fault at 3:1, got %d:%d", d.Line(), d.Column())
	}
	if !strings.Contains(d.Message, "WEND") {
		t.Errorf("expected message to name WEND, got %q", d.Message)
	}
	if d.Hint != "IF blocks end with END IF" {
		t.Errorf("unexpected hint %q", d.Hint)
	}
}

func TestParseIfRequiresThen(t *testing.T) {
	tests := []struct {
		source       string
		line, column int
	}{
		{"If x Flip", 1, 6},
		{"If x = 1\nFlip\nEnd If", 1, 9},
		{"If x Then\nFlip\nElseIf y\nCls\nEnd If", 3, 9},
	}
	for _, tt := range tests {
		d := parseFail(t, tt.source)
		if d.Code != diag.CodeExpected || !strings.Contains(d.Message, "THEN") {
			t.Errorf("%q: expected 'expected THEN' fault, got %s", tt.source, d)
		}
		if d.Line() != tt.line || d.Column() != tt.column {
			t.Errorf("%q: expected fault at %d:%d, got %d:%d", tt.source, tt.line, tt.column, d.Line(), d.Column())
		}
	}
}

func TestParseWhile(t *testing.T) {
	prog := parseOK(t, "While i < 10\n  i = i + 1\nWend")
	stmt := prog.Body[0].(*ast.WhileStmt)
	if len(stmt.Body) != 1 {
		t.Errorf("expected 1 body statement, got %d", len(stmt.Body))
	}
}

func TestParseRepeat(t *testing.T) {
	prog := parseOK(t, "Repeat\n  i = i + 1\nUntil i >= 10")
	stmt := prog.Body[0].(*ast.RepeatStmt)
	if stmt.Until == nil {
		t.Fatal("expected UNTIL condition")
	}
	if bin := stmt.Until.(*ast.BinaryExpr); bin.Op != ">=" {
		t.Errorf("expected >=, got %s", bin.Op)
	}
}

func TestParseTruncatedBlocks(t *testing.T) {
	for _, src := range []string{
		"While x\n  Cls",
		"Repeat\n  Cls",
		"For i = 1 To 3\n  Cls",
		"Select x\n  Case 1\n    Cls",
		"Function f()\n  Return 1",
	} {
		parseOK(t, src)
	}
}

func TestParseFor(t *testing.T) {
	prog := parseOK(t, "For i = 10 To 1 Step -1\nNext")
	stmt := prog.Body[0].(*ast.ForStmt)
	if stmt.Var.Name != "i" {
		t.Errorf("expected counter i, got %s", stmt.Var.Name)
	}
	if !stmt.Descending() {
		t.Error("expected descending loop")
	}
}

func TestParseForDirection(t *testing.T) {
	tests := []struct {
		src  string
		desc bool
	}{
		{"For i = 1 To 3\nNext", false},
		{"For i = 1 To 3 Step 2\nNext", false},
		{"For i = 3 To 1 Step (-2)\nNext", true},
		{"For i = 3 To 1 Step -0.5\nNext i", true},
		{"For i = 3 To 1 Step s\nNext", false},
	}
	for _, tt := range tests {
		stmt := parseOK(t, tt.src).Body[0].(*ast.ForStmt)
		if stmt.Descending() != tt.desc {
			t.Errorf("%q: expected descending=%v", tt.src, tt.desc)
		}
	}
}

func TestParseSelect(t *testing.T) {
	prog := parseOK(t, `Select k
Case 1, 2
	Cls
Case 3
Default
	Flip
End Select`)
	stmt := prog.Body[0].(*ast.SelectStmt)
	if len(stmt.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(stmt.Cases))
	}
	if len(stmt.Cases[0].Tests) != 2 {
		t.Errorf("expected 2 tests in first case, got %d", len(stmt.Cases[0].Tests))
	}
	if len(stmt.Cases[1].Body) != 0 {
		t.Errorf("expected empty second case")
	}
	if len(stmt.Default) != 1 {
		t.Errorf("expected default with 1 statement, got %d", len(stmt.Default))
	}
}

func TestParseSelectCaseAfterDefault(t *testing.T) {
	d := parseFail(t, "Select k\nDefault\nCase 1\nEnd Select")
	if d.Line() != 3 {
		t.Errorf("expected fault on line 3, got %d", d.Line())
	}
}

func TestParseFuncDecl(t *testing.T) {
	prog := parseOK(t, `Function Add%(a%, b%)
	Return a% + b%
End Function`)
	decl, ok := prog.Body[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", prog.Body[0])
	}
	if decl.Name.Name != "Add" || decl.Name.Suffix != ast.SuffixInt {
		t.Errorf("expected Add%%, got %s", decl.Name.Key())
	}
	if len(decl.Params) != 2 || decl.Params[1].Key() != "b%" {
		t.Errorf("expected params a%% b%%, got %v", decl.Params)
	}
	ret := decl.Body[0].(*ast.ReturnStmt)
	if ret.Value == nil {
		t.Error("expected return value")
	}
}

func TestParseBareReturn(t *testing.T) {
	prog := parseOK(t, "Function f()\n  Return\nEnd Function")
	ret := prog.Body[0].(*ast.FuncDecl).Body[0].(*ast.ReturnStmt)
	if ret.Value != nil {
		t.Errorf("expected bare return, got %#v", ret.Value)
	}
}

func TestParseInvalidCallTarget(t *testing.T) {
	d := parseFail(t, `x = (a)(1)`)
	if d.Code != diag.CodeCallTarget {
		t.Errorf("expected %s, got %s", diag.CodeCallTarget, d.Code)
	}
}

func TestParseInvalidAssignTarget(t *testing.T) {
	d := parseFail(t, `1 = 2`)
	if d.Code != diag.CodeAssignTarget {
		t.Errorf("expected %s, got %s", diag.CodeAssignTarget, d.Code)
	}
}

func TestParseUnexpectedToken(t *testing.T) {
	d := parseFail(t, "Cls\nx = * 2")
	if d.Code != diag.CodeUnexpectedToken {
		t.Errorf("expected %s, got %s", diag.CodeUnexpectedToken, d.Code)
	}
	if d.Line() != 2 || d.Column() != 5 {
		t.Errorf("expected fault at 2:5, got %d:%d", d.Line(), d.Column())
	}
}

func TestParseExpected(t *testing.T) {
	d := parseFail(t, "For i = 1 3\nNext")
	if d.Code != diag.CodeExpected || !strings.Contains(d.Message, "TO") {
		t.Errorf("expected 'expected TO' fault, got %s", d)
	}
}

func TestParseStrayTerminator(t *testing.T) {
	d := parseFail(t, "Cls\nWend")
	if d.Line() != 2 || d.Column() != 1 {
		t.Errorf("expected fault at 2:1, got %d:%d", d.Line(), d.Column())
	}
}

func TestParseJSONOutput(t *testing.T) {
	out := parseToJSON(t, `Plot x%, 10`)
	for _, want := range []string{`"kind": "Program"`, `"kind": "CallExpr"`, `"suffix": "int"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected JSON to contain %s", want)
		}
	}
}
