// Package emitter turns a BASIC AST into TypeScript or JavaScript source.
//
// Generated code keeps variables in frames keyed by the mangled name
// (name plus suffix marker). $G holds globals and constants; the main
// program runs in $M and every function call in its own $F, both of which
// inherit from $G. Assignment goes through $set, which updates an existing
// global unless the current frame owns the key.
package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bb2web/internal/ast"
	"bb2web/internal/builtins"
	"bb2web/internal/diag"
	"bb2web/internal/span"
)

const (
	globalFrame = "$G"
	mainFrame   = "$M"
	funcFrame   = "$F"
)

// Emitter holds the state of one Emit call. It is not shared between
// calls, so concurrent compilations never interact.
type Emitter struct {
	opts   Options
	buf    strings.Builder
	indent int

	frame   string          // frame variable of the code being emitted
	selects int             // select temporaries issued so far
	dimmed  map[string]bool // arrays declared so far, by key
	funcs   map[string]bool // user functions declared so far, by name
}

// bailout carries an emit fault up to Emit.
type bailout struct {
	err error
}

// Emit renders prog as a self-contained unit in the requested dialect. It
// fails only on a structurally invalid tree or a runtime command called
// with the wrong number of arguments.
func Emit(prog *ast.Program, opts Options) (out string, err error) {
	if prog == nil {
		return "", diag.Errorf(diag.Construction, diag.CodeInvalidTree, span.Span{}, "nil program")
	}
	e := &Emitter{
		opts:   opts.withDefaults(),
		frame:  mainFrame,
		dimmed: make(map[string]bool),
		funcs:  make(map[string]bool),
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			out, err = "", b.err
		}
	}()

	e.emitProgram(prog)
	return e.buf.String(), nil
}

// ---- output helpers ----

func (e *Emitter) emit(format string, args ...interface{}) {
	fmt.Fprintf(&e.buf, format, args...)
}

func (e *Emitter) emitIndent() {
	e.buf.WriteString(strings.Repeat("\t", e.indent))
}

func (e *Emitter) line(format string, args ...interface{}) {
	e.emitIndent()
	e.emit(format, args...)
	e.buf.WriteByte('\n')
}

func (e *Emitter) fail(class diag.Class, code string, s span.Span, format string, args ...interface{}) {
	panic(bailout{err: diag.Errorf(class, code, s, format, args...)})
}

func (e *Emitter) ts() bool {
	return e.opts.Dialect == TypeScript
}

// annotate returns a TypeScript type annotation, or "" for JavaScript.
func (e *Emitter) annotate(typ string) string {
	if e.ts() {
		return ": " + typ
	}
	return ""
}

// ============================================================
// Program
// ============================================================

func (e *Emitter) emitProgram(prog *ast.Program) {
	rt := e.opts.RuntimeName
	if e.opts.Filename != "" {
		e.line("// Code generated by bb2web from %s. DO NOT EDIT.", e.opts.Filename)
	} else {
		e.line("// Code generated by bb2web. DO NOT EDIT.")
	}
	if e.ts() {
		e.line("import { %s } from %s;", rt, quote(e.opts.RuntimeModule))
	}
	e.buf.WriteByte('\n')

	e.line("(function (%s%s) {", rt, e.annotate("any"))
	e.indent++
	e.line("\"use strict\";")
	frameType := e.annotate("Record<string, any>")
	e.line("const %s%s = Object.create(null);", globalFrame, frameType)
	e.line("const %s%s = Object.create(%s);", mainFrame, frameType, globalFrame)
	e.line("function $set(f%s, k%s, v%s)%s {", frameType, e.annotate("string"), e.annotate("any"), e.annotate("any"))
	e.indent++
	e.line("if (!Object.prototype.hasOwnProperty.call(f, k) && k in %s) {", globalFrame)
	e.indent++
	e.line("%s[k] = v;", globalFrame)
	e.indent--
	e.line("} else {")
	e.indent++
	e.line("f[k] = v;")
	e.indent--
	e.line("}")
	e.line("return v;")
	e.indent--
	e.line("}")

	e.emitBlock(prog.Body)

	e.indent--
	if e.ts() {
		e.line("})(%s);", rt)
	} else {
		e.line("})(globalThis.%s);", rt)
	}
}

func (e *Emitter) emitBlock(body []ast.Stmt) {
	for _, s := range body {
		e.emitStmt(s)
	}
}

// ============================================================
// Statements
// ============================================================

func (e *Emitter) emitStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		e.emitVarDecl(s)
	case *ast.DimDecl:
		e.line("%s[%s] = new Array(%s).fill(0);", globalFrame, quote(s.Name.Key()), e.expr(s.Size))
		e.dimmed[s.Name.Key()] = true
	case *ast.AssignStmt:
		e.emitAssign(s)
	case *ast.IfStmt:
		e.emitIf(s)
	case *ast.WhileStmt:
		e.line("while (%s) {", e.expr(s.Test))
		e.nested(s.Body)
		e.line("}")
	case *ast.RepeatStmt:
		e.line("do {")
		e.nested(s.Body)
		if s.Until == nil {
			e.line("} while (true);")
		} else {
			e.line("} while (!(%s));", e.expr(s.Until))
		}
	case *ast.ForStmt:
		e.emitFor(s)
	case *ast.SelectStmt:
		e.emitSelect(s)
	case *ast.FuncDecl:
		e.emitFunc(s)
	case *ast.ReturnStmt:
		if s.Value == nil {
			e.line("return;")
		} else {
			e.line("return %s;", e.expr(s.Value))
		}
	case *ast.ExprStmt:
		e.line("%s;", e.expr(s.Expr))
	default:
		e.fail(diag.Construction, diag.CodeInvalidTree, stmt.GetSpan(), "unsupported statement %T", stmt)
	}
}

func (e *Emitter) nested(body []ast.Stmt) {
	e.indent++
	e.emitBlock(body)
	e.indent--
}

func (e *Emitter) emitVarDecl(s *ast.VarDecl) {
	init := "undefined"
	if s.Init != nil {
		init = e.expr(s.Init)
	}
	frame := e.frame
	if s.Scope != ast.ScopeLocal {
		frame = globalFrame
	}
	e.line("%s[%s] = %s;", frame, quote(s.Name.Key()), init)
}

func (e *Emitter) emitAssign(s *ast.AssignStmt) {
	switch target := s.Target.(type) {
	case *ast.VarRef:
		e.line("$set(%s, %s, %s);", e.frame, quote(target.Key()), e.expr(s.Value))
	case *ast.CallExpr:
		e.line("%s = %s;", e.index(target), e.expr(s.Value))
	default:
		e.fail(diag.Construction, diag.CodeInvalidTree, s.Target.GetSpan(),
			"unsupported assignment target %T", s.Target)
	}
}

func (e *Emitter) emitIf(s *ast.IfStmt) {
	if len(s.Branches) == 0 {
		e.fail(diag.Construction, diag.CodeInvalidTree, s.Span, "if statement without branches")
	}
	for i, br := range s.Branches {
		if i == 0 {
			e.line("if (%s) {", e.expr(br.Test))
		} else {
			e.line("} else if (%s) {", e.expr(br.Test))
		}
		e.nested(br.Body)
	}
	if s.Else != nil {
		e.line("} else {")
		e.nested(s.Else)
	}
	e.line("}")
}

func (e *Emitter) emitFor(s *ast.ForStmt) {
	key := quote(s.Var.Key())
	counter := fmt.Sprintf("%s[%s]", e.frame, key)
	start, bound := e.expr(s.Start), e.expr(s.Bound)
	step := "1"
	if s.Step != nil {
		step = e.expr(s.Step)
	}
	cmp := "<="
	if s.Descending() {
		cmp = ">="
	}
	e.line("for ($set(%s, %s, %s); %s %s (%s); $set(%s, %s, %s + (%s))) {",
		e.frame, key, start,
		counter, cmp, bound,
		e.frame, key, counter, step)
	e.nested(s.Body)
	e.line("}")
}

func (e *Emitter) emitSelect(s *ast.SelectStmt) {
	e.selects++
	tmp := fmt.Sprintf("$sel%d", e.selects)
	e.line("const %s = %s;", tmp, e.expr(s.Subject))

	for i, c := range s.Cases {
		tests := make([]string, len(c.Tests))
		for j, t := range c.Tests {
			tests[j] = e.expr(t)
		}
		cond := fmt.Sprintf("[%s].includes(%s)", strings.Join(tests, ", "), tmp)
		if i == 0 {
			e.line("if (%s) {", cond)
		} else {
			e.line("} else if (%s) {", cond)
		}
		e.nested(c.Body)
	}

	switch {
	case s.Default != nil && len(s.Cases) > 0:
		e.line("} else {")
		e.nested(s.Default)
		e.line("}")
	case s.Default != nil:
		e.line("{")
		e.nested(s.Default)
		e.line("}")
	case len(s.Cases) > 0:
		e.line("}")
	}
}

func (e *Emitter) emitFunc(s *ast.FuncDecl) {
	if err := builtins.DeclareFunc(e.funcs, s); err != nil {
		panic(bailout{err: err})
	}
	params := make([]string, len(s.Params))
	for i := range s.Params {
		params[i] = fmt.Sprintf("$a%d%s", i, e.annotate("any"))
	}
	e.line("function %s(%s)%s {", functionName(s.Name), strings.Join(params, ", "), e.annotate("any"))
	e.indent++

	outerFrame := e.frame
	e.frame = funcFrame
	e.line("const %s%s = Object.create(%s);", funcFrame, e.annotate("Record<string, any>"), globalFrame)
	for i, p := range s.Params {
		e.line("%s[%s] = $a%d;", funcFrame, quote(p.Key()), i)
	}
	e.emitBlock(s.Body)
	e.frame = outerFrame

	e.indent--
	e.line("}")
}

// ============================================================
// Expressions
// ============================================================

func (e *Emitter) expr(x ast.Expr) string {
	switch n := x.(type) {
	case *ast.Literal:
		return literal(n)
	case *ast.VarRef:
		return fmt.Sprintf("%s[%s]", e.frame, quote(n.Key()))
	case *ast.GroupExpr:
		return "(" + e.expr(n.Inner) + ")"
	case *ast.UnaryExpr:
		if n.Op == "NOT" {
			return "!(" + e.expr(n.Operand) + ")"
		}
		return "-(" + e.expr(n.Operand) + ")"
	case *ast.BinaryExpr:
		return binary(n.Op, e.expr(n.Left), e.expr(n.Right))
	case *ast.CallExpr:
		return e.call(n)
	}
	var at span.Span
	if x != nil {
		at = x.GetSpan()
	}
	e.fail(diag.Construction, diag.CodeInvalidTree, at, "unsupported expression %T", x)
	return ""
}

// call renders a runtime member call, an array read, or a user function
// call. A name is an array once a Dim for it has been emitted.
func (e *Emitter) call(c *ast.CallExpr) string {
	if c.Callee == nil {
		e.fail(diag.Construction, diag.CodeInvalidTree, c.Span, "call without a callee")
	}
	b, err := builtins.Bind(c, e.dimmed[c.Callee.Key()])
	if err != nil {
		panic(bailout{err: err})
	}
	switch b.Target {
	case builtins.RuntimeCommand:
		return fmt.Sprintf("%s.%s(%s)", e.opts.RuntimeName, b.Command.Member, e.args(c.Args))
	case builtins.ArrayIndex:
		return e.index(c)
	}
	return fmt.Sprintf("%s(%s)", functionName(c.Callee), e.args(c.Args))
}

// index renders a(i) as an element access on the array a.
func (e *Emitter) index(c *ast.CallExpr) string {
	if c.Callee == nil || len(c.Args) != 1 {
		e.fail(diag.Construction, diag.CodeInvalidTree, c.Span,
			"array access takes exactly one index")
	}
	return fmt.Sprintf("%s[%s][%s]", e.frame, quote(c.Callee.Key()), e.expr(c.Args[0]))
}

func (e *Emitter) args(args []ast.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = e.expr(a)
	}
	return strings.Join(parts, ", ")
}

// binary maps a source operator to target syntax. Both operands are always
// parenthesized so target precedence rules never matter.
func binary(op, a, b string) string {
	switch op {
	case "=":
		return fmt.Sprintf("(%s) === (%s)", a, b)
	case "<>":
		return fmt.Sprintf("(%s) !== (%s)", a, b)
	case "AND":
		return fmt.Sprintf("(%s) && (%s)", a, b)
	case "OR":
		return fmt.Sprintf("(%s) || (%s)", a, b)
	case "MOD":
		return fmt.Sprintf("(%s) %% (%s)", a, b)
	case "^":
		return fmt.Sprintf("Math.pow((%s), (%s))", a, b)
	default:
		return fmt.Sprintf("(%s) %s (%s)", a, op, b)
	}
}

func literal(l *ast.Literal) string {
	switch l.Kind {
	case ast.LitNumber:
		return numberText(l)
	case ast.LitString:
		return quote(l.Str)
	case ast.LitBool:
		if l.Bool {
			return "true"
		}
		return "false"
	default:
		return "null"
	}
}

// numberText renders a numeric literal as written, dropping leading zeros
// that strict-mode code would reject as legacy octal.
func numberText(l *ast.Literal) string {
	raw := l.Raw
	if raw == "" {
		return strconv.FormatFloat(l.Number, 'g', -1, 64)
	}
	i := 0
	for i < len(raw)-1 && raw[i] == '0' && raw[i+1] >= '0' && raw[i+1] <= '9' {
		i++
	}
	return raw[i:]
}

// functionName is the target identifier of a user function. Identity is
// the bare name, so Add% and Add refer to the same function.
func functionName(ref *ast.VarRef) string {
	return "fn_" + ref.Name
}

// quote renders s as a double-quoted string literal.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
