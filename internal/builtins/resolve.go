package builtins

import (
	"bb2web/internal/ast"
	"bb2web/internal/diag"
)

// Target is what a call expression resolves to.
type Target int

const (
	UserFunction Target = iota
	RuntimeCommand
	ArrayIndex
)

func (t Target) String() string {
	switch t {
	case RuntimeCommand:
		return "command"
	case ArrayIndex:
		return "index"
	default:
		return "function"
	}
}

// Binding is the resolved meaning of one call expression.
type Binding struct {
	Target  Target
	Command Command // set for RuntimeCommand
}

// Resolution maps every call expression of a program to its binding.
type Resolution map[*ast.CallExpr]Binding

// Lookup returns the binding for c; unresolved calls are user functions.
func (r Resolution) Lookup(c *ast.CallExpr) Binding {
	return r[c]
}

// Resolve walks prog in source order and classifies every call. Runtime
// commands win over everything; a name declared with Dim earlier in the
// walk is an array access; anything else is a user function. Indexed
// assignment targets are always array accesses. Commands called with the
// wrong number of arguments are reported as Arity faults.
func Resolve(prog *ast.Program) (Resolution, error) {
	return NewResolver().Resolve(prog)
}

// Resolver classifies calls across several programs fed in order, as the
// REPL does. Arrays declared by an earlier program stay declared.
type Resolver struct {
	res    Resolution
	dimmed map[string]bool
	funcs  map[string]bool // functions declared by the current program
}

// NewResolver returns a resolver with no arrays declared.
func NewResolver() *Resolver {
	return &Resolver{dimmed: make(map[string]bool)}
}

// Resolve classifies the calls of prog. On error nothing prog declared is
// remembered.
func (r *Resolver) Resolve(prog *ast.Program) (Resolution, error) {
	saved := make(map[string]bool, len(r.dimmed))
	for k := range r.dimmed {
		saved[k] = true
	}
	r.res = make(Resolution)
	r.funcs = make(map[string]bool)
	if err := r.block(prog.Body); err != nil {
		r.dimmed = saved
		return nil, err
	}
	return r.res, nil
}

func (r *Resolver) block(body []ast.Stmt) error {
	for _, s := range body {
		if err := r.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) stmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		return r.expr(s.Init)
	case *ast.DimDecl:
		if err := r.expr(s.Size); err != nil {
			return err
		}
		r.dimmed[s.Name.Key()] = true
		return nil
	case *ast.AssignStmt:
		if target, ok := s.Target.(*ast.CallExpr); ok {
			r.res[target] = Binding{Target: ArrayIndex}
			if err := r.exprs(target.Args); err != nil {
				return err
			}
		}
		return r.expr(s.Value)
	case *ast.IfStmt:
		for _, br := range s.Branches {
			if err := r.expr(br.Test); err != nil {
				return err
			}
			if err := r.block(br.Body); err != nil {
				return err
			}
		}
		return r.block(s.Else)
	case *ast.WhileStmt:
		if err := r.expr(s.Test); err != nil {
			return err
		}
		return r.block(s.Body)
	case *ast.RepeatStmt:
		if err := r.block(s.Body); err != nil {
			return err
		}
		return r.expr(s.Until)
	case *ast.ForStmt:
		if err := r.exprs([]ast.Expr{s.Start, s.Bound, s.Step}); err != nil {
			return err
		}
		return r.block(s.Body)
	case *ast.SelectStmt:
		if err := r.expr(s.Subject); err != nil {
			return err
		}
		for _, c := range s.Cases {
			if err := r.exprs(c.Tests); err != nil {
				return err
			}
			if err := r.block(c.Body); err != nil {
				return err
			}
		}
		return r.block(s.Default)
	case *ast.FuncDecl:
		if err := DeclareFunc(r.funcs, s); err != nil {
			return err
		}
		return r.block(s.Body)
	case *ast.ReturnStmt:
		return r.expr(s.Value)
	case *ast.ExprStmt:
		return r.expr(s.Expr)
	}
	return nil
}

func (r *Resolver) exprs(list []ast.Expr) error {
	for _, e := range list {
		if err := r.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) expr(x ast.Expr) error {
	switch n := x.(type) {
	case *ast.GroupExpr:
		return r.expr(n.Inner)
	case *ast.UnaryExpr:
		return r.expr(n.Operand)
	case *ast.BinaryExpr:
		if err := r.expr(n.Left); err != nil {
			return err
		}
		return r.expr(n.Right)
	case *ast.CallExpr:
		if n.Callee == nil {
			return diag.Errorf(diag.Construction, diag.CodeInvalidTree, n.Span, "call without a callee")
		}
		b, err := Bind(n, r.dimmed[n.Callee.Key()])
		if err != nil {
			return err
		}
		r.res[n] = b
		return r.exprs(n.Args)
	}
	return nil
}

// Bind classifies one call whose callee is set. dimmed reports whether the
// callee names an array declared earlier in source order.
func Bind(c *ast.CallExpr, dimmed bool) (Binding, error) {
	switch cmd, ok := Lookup(c.Callee.Name); {
	case ok:
		if !cmd.Accepts(len(c.Args)) {
			return Binding{}, diag.Errorf(diag.Arity, diag.CodeArity, c.Span,
				"%s expects %s argument(s), got %d", cmd.Member, cmd.Arity(), len(c.Args))
		}
		return Binding{Target: RuntimeCommand, Command: cmd}, nil
	case dimmed:
		return Binding{Target: ArrayIndex}, nil
	}
	return Binding{Target: UserFunction}, nil
}

// DeclareFunc records fn in declared. Functions are identified by bare
// name, so a second declaration with the same name is a Construction
// fault whatever its suffix.
func DeclareFunc(declared map[string]bool, fn *ast.FuncDecl) error {
	if fn.Name == nil {
		return diag.Errorf(diag.Construction, diag.CodeInvalidTree, fn.Span, "function without a name")
	}
	if declared[fn.Name.Name] {
		return diag.Errorf(diag.Construction, diag.CodeDuplicateFunc, fn.Name.Span,
			"function %s is already declared", fn.Name.Name)
	}
	declared[fn.Name.Name] = true
	return nil
}
