package runtime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf16"

	"bb2web/internal/ast"
	"bb2web/internal/builtins"
	"bb2web/internal/diag"
	"bb2web/internal/span"
	"bb2web/internal/surface"
)

// ============================================================
// Control flow signals
// ============================================================

// ExecSignal represents a control flow signal from statement execution.
type ExecSignal int

const (
	SigNone   ExecSignal = iota
	SigReturn            // return from function or program
)

// ExecResult carries a control flow signal and an optional value (for return).
type ExecResult struct {
	Signal ExecSignal
	Value  Value
}

var resultNone = ExecResult{Signal: SigNone}

// ============================================================
// Runtime error
// ============================================================

// RuntimeError represents an error during interpretation.
type RuntimeError struct {
	Message string
	Span    span.Span
	Err     error // underlying cause, if any
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func runtimeErr(s span.Span, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Span: s}
}

const (
	// maxCallDepth bounds user function recursion.
	maxCallDepth = 10000
	// maxArrayLength bounds Dim sizes and index writes.
	maxArrayLength = 1 << 26
)

// ============================================================
// Interpreter
// ============================================================

// Interpreter walks the AST and executes it. State persists across Run
// calls so that a REPL can feed a program one chunk at a time.
type Interpreter struct {
	rt       *surface.Runtime
	resolver *builtins.Resolver
	calls    builtins.Resolution

	global   *Environment // globals, constants and arrays
	main     *Environment // locals of the main program
	topFuncs *Environment // functions declared at top level

	frame *Environment // variables of the code being executed
	funcs *Environment // function scope of the code being executed
	ctx   context.Context
	depth int
}

// NewInterpreter creates an interpreter whose commands go to rt.
func NewInterpreter(rt *surface.Runtime) *Interpreter {
	global := NewEnvironment(nil)
	main := NewEnvironment(global)
	topFuncs := NewEnvironment(nil)
	return &Interpreter{
		rt:       rt,
		resolver: builtins.NewResolver(),
		calls:    make(builtins.Resolution),
		global:   global,
		main:     main,
		topFuncs: topFuncs,
		frame:    main,
		funcs:    topFuncs,
	}
}

// Run executes prog until it finishes, returns at top level, the surface
// asks it to stop, or ctx is done. A surface.ErrStop is not an error.
func (i *Interpreter) Run(ctx context.Context, prog *ast.Program) error {
	if prog == nil {
		return diag.Errorf(diag.Construction, diag.CodeInvalidTree, span.Span{}, "nil program")
	}
	calls, err := i.resolver.Resolve(prog)
	if err != nil {
		return err
	}
	for c, b := range calls {
		i.calls[c] = b
	}

	i.ctx = ctx
	i.frame, i.funcs, i.depth = i.main, i.topFuncs, 0
	i.hoist(i.topFuncs, prog.Body)

	for _, stmt := range prog.Body {
		result, err := i.execStmt(stmt)
		if err != nil {
			if errors.Is(err, surface.ErrStop) {
				return nil
			}
			return err
		}
		if result.Signal == SigReturn {
			return nil
		}
	}
	return nil
}

// Lookup returns a variable as the main program sees it, by mangled name.
func (i *Interpreter) Lookup(key string) (Value, bool) {
	return i.main.Get(key)
}

// Globals returns the names held by the global frame.
func (i *Interpreter) Globals() []string {
	return i.global.Names()
}

// Locals returns the names held by the main program's frame.
func (i *Interpreter) Locals() []string {
	return i.main.Names()
}

// Functions returns the names of the top-level functions.
func (i *Interpreter) Functions() []string {
	return i.topFuncs.Names()
}

func (i *Interpreter) checkContext() error {
	if i.ctx == nil {
		return nil
	}
	return i.ctx.Err()
}

// hoist declares every function of body in scope before any of it runs.
func (i *Interpreter) hoist(scope *Environment, body []ast.Stmt) {
	for _, stmt := range body {
		if fn, ok := stmt.(*ast.FuncDecl); ok && fn.Name != nil {
			scope.Define(fn.Name.Name, &FuncVal{Decl: fn, Scope: scope})
		}
	}
}

func declaresFunc(body []ast.Stmt) bool {
	for _, stmt := range body {
		if _, ok := stmt.(*ast.FuncDecl); ok {
			return true
		}
	}
	return false
}

// ============================================================
// Statement execution
// ============================================================

func (i *Interpreter) execStmt(stmt ast.Stmt) (ExecResult, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		_, err := i.evalExpr(s.Expr)
		return resultNone, err

	case *ast.VarDecl:
		return i.execVarDecl(s)

	case *ast.DimDecl:
		return i.execDim(s)

	case *ast.AssignStmt:
		return i.execAssign(s)

	case *ast.ReturnStmt:
		val := undefined
		if s.Value != nil {
			v, err := i.evalExpr(s.Value)
			if err != nil {
				return resultNone, err
			}
			val = v
		}
		return ExecResult{Signal: SigReturn, Value: val}, nil

	case *ast.IfStmt:
		return i.execIf(s)

	case *ast.WhileStmt:
		return i.execWhile(s)

	case *ast.RepeatStmt:
		return i.execRepeat(s)

	case *ast.ForStmt:
		return i.execFor(s)

	case *ast.SelectStmt:
		return i.execSelect(s)

	case *ast.FuncDecl:
		// declared when its block was entered
		return resultNone, nil

	case nil:
		return resultNone, runtimeErr(span.Span{}, "nil statement")

	default:
		return resultNone, runtimeErr(stmt.GetSpan(), "unhandled statement type: %T", stmt)
	}
}

func (i *Interpreter) execVarDecl(s *ast.VarDecl) (ExecResult, error) {
	if s.Name == nil {
		return resultNone, runtimeErr(s.Span, "declaration without a name")
	}
	val := undefined
	if s.Init != nil {
		v, err := i.evalExpr(s.Init)
		if err != nil {
			return resultNone, err
		}
		val = v
	}
	if s.Scope == ast.ScopeLocal {
		i.frame.Define(s.Name.Key(), val)
	} else {
		i.global.Define(s.Name.Key(), val)
	}
	return resultNone, nil
}

func (i *Interpreter) execDim(s *ast.DimDecl) (ExecResult, error) {
	if s.Name == nil {
		return resultNone, runtimeErr(s.Span, "Dim without a name")
	}
	size, err := i.evalExpr(s.Size)
	if err != nil {
		return resultNone, err
	}
	n := 1
	if num, ok := size.(NumberVal); ok {
		f := float64(num)
		if f < 0 || f != math.Trunc(f) || f > math.MaxUint32 {
			return resultNone, runtimeErr(s.Span, "invalid array length %s", num)
		}
		if f > maxArrayLength {
			return resultNone, runtimeErr(s.Span, "array length %s is too large", num)
		}
		n = int(f)
	}
	i.global.Define(s.Name.Key(), NewArray(n))
	return resultNone, nil
}

func (i *Interpreter) execAssign(s *ast.AssignStmt) (ExecResult, error) {
	switch target := s.Target.(type) {
	case *ast.VarRef:
		val, err := i.evalExpr(s.Value)
		if err != nil {
			return resultNone, err
		}
		i.frame.Assign(target.Key(), val)
		return resultNone, nil

	case *ast.CallExpr:
		if target.Callee == nil || len(target.Args) != 1 {
			return resultNone, runtimeErr(target.Span, "array access takes exactly one index")
		}
		base := i.variable(target.Callee.Key())
		idx, err := i.evalExpr(target.Args[0])
		if err != nil {
			return resultNone, err
		}
		val, err := i.evalExpr(s.Value)
		if err != nil {
			return resultNone, err
		}
		return resultNone, setIndex(base, idx, val, target.Callee.Name, target.Span)

	default:
		return resultNone, runtimeErr(s.Span, "invalid assignment target")
	}
}

func (i *Interpreter) execIf(s *ast.IfStmt) (ExecResult, error) {
	for _, br := range s.Branches {
		cond, err := i.evalExpr(br.Test)
		if err != nil {
			return resultNone, err
		}
		if IsTruthy(cond) {
			return i.execBlock(br.Body)
		}
	}
	if s.Else != nil {
		return i.execBlock(s.Else)
	}
	return resultNone, nil
}

func (i *Interpreter) execWhile(s *ast.WhileStmt) (ExecResult, error) {
	for {
		if err := i.checkContext(); err != nil {
			return resultNone, err
		}
		cond, err := i.evalExpr(s.Test)
		if err != nil {
			return resultNone, err
		}
		if !IsTruthy(cond) {
			return resultNone, nil
		}
		result, err := i.execBlock(s.Body)
		if err != nil || result.Signal == SigReturn {
			return result, err
		}
	}
}

func (i *Interpreter) execRepeat(s *ast.RepeatStmt) (ExecResult, error) {
	for {
		if err := i.checkContext(); err != nil {
			return resultNone, err
		}
		result, err := i.execBlock(s.Body)
		if err != nil || result.Signal == SigReturn {
			return result, err
		}
		if s.Until == nil {
			continue
		}
		done, err := i.evalExpr(s.Until)
		if err != nil {
			return resultNone, err
		}
		if IsTruthy(done) {
			return resultNone, nil
		}
	}
}

// execFor runs a counted loop. The bound and step are evaluated on every
// iteration; the direction of the test is fixed by the sign of a constant
// step.
func (i *Interpreter) execFor(s *ast.ForStmt) (ExecResult, error) {
	if s.Var == nil {
		return resultNone, runtimeErr(s.Span, "For without a counter")
	}
	key := s.Var.Key()
	op := "<="
	if s.Descending() {
		op = ">="
	}

	start, err := i.evalExpr(s.Start)
	if err != nil {
		return resultNone, err
	}
	i.frame.Assign(key, start)

	for {
		if err := i.checkContext(); err != nil {
			return resultNone, err
		}
		counter := i.variable(key)
		bound, err := i.evalExpr(s.Bound)
		if err != nil {
			return resultNone, err
		}
		if !IsTruthy(compare(op, counter, bound)) {
			return resultNone, nil
		}

		result, err := i.execBlock(s.Body)
		if err != nil || result.Signal == SigReturn {
			return result, err
		}

		counter = i.variable(key)
		var step Value = NumberVal(1)
		if s.Step != nil {
			if step, err = i.evalExpr(s.Step); err != nil {
				return resultNone, err
			}
		}
		i.frame.Assign(key, add(counter, step))
	}
}

// execSelect evaluates the subject once, then each case's tests in order;
// the first case holding an equal value runs.
func (i *Interpreter) execSelect(s *ast.SelectStmt) (ExecResult, error) {
	subject, err := i.evalExpr(s.Subject)
	if err != nil {
		return resultNone, err
	}
	for _, c := range s.Cases {
		tests, err := i.evalExprs(c.Tests)
		if err != nil {
			return resultNone, err
		}
		for _, t := range tests {
			if sameValueZero(t, subject) {
				return i.execBlock(c.Body)
			}
		}
	}
	if s.Default != nil {
		return i.execBlock(s.Default)
	}
	return resultNone, nil
}

// execBlock runs a nested block. Functions declared in it are visible only
// inside it.
func (i *Interpreter) execBlock(body []ast.Stmt) (ExecResult, error) {
	if declaresFunc(body) {
		prev := i.funcs
		i.funcs = NewEnvironment(prev)
		i.hoist(i.funcs, body)
		defer func() { i.funcs = prev }()
	}
	return i.execStmts(body)
}

func (i *Interpreter) execStmts(body []ast.Stmt) (ExecResult, error) {
	for _, stmt := range body {
		result, err := i.execStmt(stmt)
		if err != nil {
			return resultNone, err
		}
		if result.Signal != SigNone {
			return result, nil
		}
	}
	return resultNone, nil
}

// ============================================================
// Expression evaluation
// ============================================================

func (i *Interpreter) evalExpr(expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return literal(e), nil
	case *ast.VarRef:
		return i.variable(e.Key()), nil
	case *ast.GroupExpr:
		return i.evalExpr(e.Inner)
	case *ast.UnaryExpr:
		operand, err := i.evalExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		if e.Op == "NOT" {
			return BoolVal(!IsTruthy(operand)), nil
		}
		return NumberVal(-ToNumber(operand)), nil
	case *ast.BinaryExpr:
		return i.evalBinary(e)
	case *ast.CallExpr:
		return i.evalCall(e)
	case nil:
		return nil, runtimeErr(span.Span{}, "missing expression")
	default:
		return nil, runtimeErr(expr.GetSpan(), "unhandled expression type: %T", expr)
	}
}

func (i *Interpreter) evalExprs(exprs []ast.Expr) ([]Value, error) {
	vals := make([]Value, len(exprs))
	for n, x := range exprs {
		v, err := i.evalExpr(x)
		if err != nil {
			return nil, err
		}
		vals[n] = v
	}
	return vals, nil
}

// variable reads a frame slot; unknown names are undefined.
func (i *Interpreter) variable(key string) Value {
	if v, ok := i.frame.Get(key); ok {
		return v
	}
	return undefined
}

func literal(l *ast.Literal) Value {
	switch l.Kind {
	case ast.LitNumber:
		return NumberVal(l.Number)
	case ast.LitString:
		return StringVal(l.Str)
	case ast.LitBool:
		return BoolVal(l.Bool)
	default:
		return NullVal{}
	}
}

func (i *Interpreter) evalBinary(e *ast.BinaryExpr) (Value, error) {
	left, err := i.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "AND":
		if !IsTruthy(left) {
			return left, nil
		}
		return i.evalExpr(e.Right)
	case "OR":
		if IsTruthy(left) {
			return left, nil
		}
		return i.evalExpr(e.Right)
	}

	right, err := i.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "+":
		return add(left, right), nil
	case "-":
		return NumberVal(ToNumber(left) - ToNumber(right)), nil
	case "*":
		return NumberVal(ToNumber(left) * ToNumber(right)), nil
	case "/":
		return NumberVal(ToNumber(left) / ToNumber(right)), nil
	case "MOD":
		return NumberVal(math.Mod(ToNumber(left), ToNumber(right))), nil
	case "^":
		return NumberVal(pow(ToNumber(left), ToNumber(right))), nil
	case "=":
		return BoolVal(StrictEquals(left, right)), nil
	case "<>":
		return BoolVal(!StrictEquals(left, right)), nil
	case "<", ">", "<=", ">=":
		return compare(e.Op, left, right), nil
	}
	return nil, runtimeErr(e.Span, "unknown operator %q", e.Op)
}

// add concatenates when either side is a string and adds otherwise.
func add(left, right Value) Value {
	l, r := toPrimitive(left), toPrimitive(right)
	_, ls := l.(StringVal)
	_, rs := r.(StringVal)
	if ls || rs {
		return StringVal(l.String() + r.String())
	}
	return NumberVal(ToNumber(l) + ToNumber(r))
}

// compare applies a relational operator: strings compare as text, anything
// else as numbers, and NaN makes every comparison false.
func compare(op string, left, right Value) Value {
	l, r := toPrimitive(left), toPrimitive(right)
	var c int
	ls, lok := l.(StringVal)
	rs, rok := r.(StringVal)
	if lok && rok {
		c = compareStrings(string(ls), string(rs))
	} else {
		a, b := ToNumber(l), ToNumber(r)
		if math.IsNaN(a) || math.IsNaN(b) {
			return BoolVal(false)
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}
	switch op {
	case "<":
		return BoolVal(c < 0)
	case ">":
		return BoolVal(c > 0)
	case "<=":
		return BoolVal(c <= 0)
	default:
		return BoolVal(c >= 0)
	}
}

// ============================================================
// Calls and indexing
// ============================================================

func (i *Interpreter) evalCall(e *ast.CallExpr) (Value, error) {
	if e.Callee == nil {
		return nil, runtimeErr(e.Span, "call without a callee")
	}
	switch b := i.calls.Lookup(e); b.Target {
	case builtins.RuntimeCommand:
		args, err := i.evalExprs(e.Args)
		if err != nil {
			return nil, err
		}
		return i.callCommand(b.Command, args, e.Span)

	case builtins.ArrayIndex:
		if len(e.Args) != 1 {
			return nil, runtimeErr(e.Span, "array access takes exactly one index")
		}
		base := i.variable(e.Callee.Key())
		idx, err := i.evalExpr(e.Args[0])
		if err != nil {
			return nil, err
		}
		return getIndex(base, idx, e.Callee.Name, e.Span)
	}
	return i.callFunc(e)
}

func (i *Interpreter) callFunc(e *ast.CallExpr) (Value, error) {
	name := e.Callee.Name
	v, ok := i.funcs.Get(name)
	if !ok {
		return nil, runtimeErr(e.Span, "function %s is not defined", name)
	}
	fn := v.(*FuncVal)
	args, err := i.evalExprs(e.Args)
	if err != nil {
		return nil, err
	}
	if i.depth >= maxCallDepth {
		return nil, runtimeErr(e.Span, "maximum call depth exceeded in %s", name)
	}
	if err := i.checkContext(); err != nil {
		return nil, err
	}

	frame := NewEnvironment(i.global)
	for n, p := range fn.Decl.Params {
		val := undefined
		if n < len(args) {
			val = args[n]
		}
		frame.Define(p.Key(), val)
	}

	prevFrame, prevFuncs := i.frame, i.funcs
	i.frame = frame
	i.funcs = NewEnvironment(fn.Scope)
	i.hoist(i.funcs, fn.Decl.Body)
	i.depth++
	defer func() {
		i.frame, i.funcs = prevFrame, prevFuncs
		i.depth--
	}()

	result, err := i.execStmts(fn.Decl.Body)
	if err != nil {
		return nil, err
	}
	if result.Signal == SigReturn && result.Value != nil {
		return result.Value, nil
	}
	return undefined, nil
}

// getIndex reads base(idx). Reads past the end of an array are undefined;
// reading from undefined or null fails.
func getIndex(base, idx Value, name string, s span.Span) (Value, error) {
	switch b := base.(type) {
	case *ArrayVal:
		if n, ok := arrayIndex(idx); ok {
			if n < len(b.Elements) && b.Elements[n] != nil {
				return b.Elements[n], nil
			}
			return undefined, nil
		}
		key := toPrimitive(idx).String()
		if key == "length" {
			return NumberVal(len(b.Elements)), nil
		}
		if v, ok := b.Props[key]; ok {
			return v, nil
		}
		return undefined, nil
	case StringVal:
		units := utf16.Encode([]rune(string(b)))
		if n, ok := arrayIndex(idx); ok {
			if n < len(units) {
				return StringVal(string(utf16.Decode(units[n : n+1]))), nil
			}
			return undefined, nil
		}
		if toPrimitive(idx).String() == "length" {
			return NumberVal(len(units)), nil
		}
		return undefined, nil
	case nil, UndefinedVal, NullVal:
		return nil, runtimeErr(s, "cannot read index %s of %s %s", toPrimitive(idx), name, valueName(base))
	default:
		return undefined, nil
	}
}

// setIndex stores base(idx) = val, growing arrays as needed.
func setIndex(base, idx, val Value, name string, s span.Span) error {
	switch b := base.(type) {
	case *ArrayVal:
		if n, ok := arrayIndex(idx); ok {
			if n >= maxArrayLength {
				return runtimeErr(s, "index %d of %s is too large", n, name)
			}
			for len(b.Elements) <= n {
				b.Elements = append(b.Elements, undefined)
			}
			b.Elements[n] = val
			return nil
		}
		key := toPrimitive(idx).String()
		if key == "length" {
			return b.resize(val, s)
		}
		if b.Props == nil {
			b.Props = make(map[string]Value)
		}
		b.Props[key] = val
		return nil
	case nil, UndefinedVal, NullVal:
		return runtimeErr(s, "cannot set index %s of %s %s", toPrimitive(idx), name, valueName(base))
	default:
		return runtimeErr(s, "cannot set index %s on %s %s", toPrimitive(idx), base.TypeName(), name)
	}
}

func (a *ArrayVal) resize(length Value, s span.Span) error {
	f := ToNumber(length)
	if f < 0 || f != math.Trunc(f) || f > math.MaxUint32 {
		return runtimeErr(s, "invalid array length %s", length)
	}
	n := int(f)
	if n > maxArrayLength {
		return runtimeErr(s, "array length %d is too large", n)
	}
	if n < len(a.Elements) {
		a.Elements = a.Elements[:n]
	}
	for len(a.Elements) < n {
		a.Elements = append(a.Elements, undefined)
	}
	return nil
}

func valueName(v Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}
