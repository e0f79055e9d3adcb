// Package ast defines the abstract syntax tree for BASIC programs.
package ast

import (
	"strconv"

	"bb2web/internal/diag"
	"bb2web/internal/span"
)

// ============================================================
// Node interfaces
// ============================================================

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeNode()
	GetSpan() span.Span
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// ============================================================
// Base types (embedded to provide common fields)
// ============================================================

// NodeBase provides the common Span field for all AST nodes.
type NodeBase struct {
	Span span.Span
}

func (n NodeBase) nodeNode()          {}
func (n NodeBase) GetSpan() span.Span { return n.Span }

// ExprBase is embedded by all expression nodes.
type ExprBase struct{ NodeBase }

func (ExprBase) exprNode() {}

// StmtBase is embedded by all statement nodes.
type StmtBase struct{ NodeBase }

func (StmtBase) stmtNode() {}

// ============================================================
// Type suffixes
// ============================================================

// Suffix is the value category marker trailing an identifier. It is part of
// the identifier's binding identity: x, x% and x$ are three variables.
type Suffix int

const (
	SuffixNone Suffix = iota
	SuffixInt         // %
	SuffixFloat       // #
	SuffixString      // $
)

// Marker returns the source character for the suffix ("" for none).
func (s Suffix) Marker() string {
	switch s {
	case SuffixInt:
		return "%"
	case SuffixFloat:
		return "#"
	case SuffixString:
		return "$"
	default:
		return ""
	}
}

func (s Suffix) String() string {
	switch s {
	case SuffixInt:
		return "int"
	case SuffixFloat:
		return "float"
	case SuffixString:
		return "string"
	default:
		return "none"
	}
}

// SuffixFromMarker maps % # $ to a Suffix.
func SuffixFromMarker(marker string) (Suffix, bool) {
	switch marker {
	case "%":
		return SuffixInt, true
	case "#":
		return SuffixFloat, true
	case "$":
		return SuffixString, true
	}
	return SuffixNone, false
}

// ============================================================
// Program (AST root)
// ============================================================

// Program is the root node; it owns its whole subtree.
type Program struct {
	NodeBase
	Body []Stmt
}

// ============================================================
// Expressions
// ============================================================

// VarRef is an identifier reference: a suffix-stripped name plus its suffix.
type VarRef struct {
	ExprBase
	Name   string
	Suffix Suffix
}

// Key is the storage key of the variable.
func (v *VarRef) Key() string {
	return Mangle(v.Name, v.Suffix)
}

// Mangle builds a storage key: the bare name followed by the suffix marker.
// Names are case-sensitive; x, x% and x$ never share a key.
func Mangle(name string, suffix Suffix) string {
	return name + suffix.Marker()
}

// LitKind tags a Literal.
type LitKind int

const (
	LitNumber LitKind = iota
	LitString
	LitBool
	LitNull
)

func (k LitKind) String() string {
	switch k {
	case LitNumber:
		return "number"
	case LitString:
		return "string"
	case LitBool:
		return "bool"
	default:
		return "null"
	}
}

// Literal is a number, string, boolean or null constant.
type Literal struct {
	ExprBase
	Kind   LitKind
	Raw    string  // number lexeme as written
	Number float64 // LitNumber
	Str    string  // LitString
	Bool   bool    // LitBool
	Suffix Suffix
}

// BinaryExpr is a binary operation. Op is the upper-cased source operator
// (+, -, *, /, ^, =, <>, <, >, <=, >=, AND, OR, MOD).
type BinaryExpr struct {
	ExprBase
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is a negation ("-") or logical not ("NOT").
type UnaryExpr struct {
	ExprBase
	Op      string
	Operand Expr
}

// CallExpr is a call or an array index. The callee is always a VarRef.
type CallExpr struct {
	ExprBase
	Callee *VarRef
	Args   []Expr
}

// GroupExpr is a parenthesized expression.
type GroupExpr struct {
	ExprBase
	Inner Expr
}

// NewCall builds a call node, rejecting any callee that is not a bare
// variable reference.
func NewCall(callee Expr, args []Expr, s span.Span) (*CallExpr, error) {
	ref, ok := callee.(*VarRef)
	if !ok || ref == nil {
		var at span.Span
		if callee != nil {
			at = callee.GetSpan()
		} else {
			at = s
		}
		return nil, diag.Errorf(diag.Syntax, diag.CodeCallTarget, at,
			"call target must be a plain identifier")
	}
	return &CallExpr{ExprBase: ExprBase{NodeBase{Span: s}}, Callee: ref, Args: args}, nil
}

// ConstNumber folds numeric literals, unary minus and grouping into a
// value. Any other expression is not a compile-time number.
func ConstNumber(e Expr) (float64, bool) {
	switch n := e.(type) {
	case *Literal:
		if n.Kind != LitNumber {
			return 0, false
		}
		if n.Raw != "" {
			if v, err := strconv.ParseFloat(n.Raw, 64); err == nil {
				return v, true
			}
		}
		return n.Number, true
	case *UnaryExpr:
		if n.Op != "-" {
			return 0, false
		}
		v, ok := ConstNumber(n.Operand)
		return -v, ok
	case *GroupExpr:
		return ConstNumber(n.Inner)
	}
	return 0, false
}

// ============================================================
// Statements
// ============================================================

// Scope is the declared scope of a variable declaration.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeLocal
	ScopeConst
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	default:
		return "const"
	}
}

// VarDecl is Global/Local/Const name [= init].
type VarDecl struct {
	StmtBase
	Scope Scope
	Name  *VarRef
	Init  Expr // may be nil
}

// DimDecl is Dim name(size).
type DimDecl struct {
	StmtBase
	Name *VarRef
	Size Expr
}

// AssignStmt is target = value. Target is a *VarRef or an indexed *CallExpr.
type AssignStmt struct {
	StmtBase
	Target Expr
	Value  Expr
}

// IfBranch is one {test, consequent} pair of an If/ElseIf chain.
type IfBranch struct {
	Span span.Span
	Test Expr
	Body []Stmt
}

// IfStmt models If/ElseIf*/Else as one ordered branch list.
type IfStmt struct {
	StmtBase
	Branches []IfBranch // at least one
	Else     []Stmt     // nil when there is no Else
}

// WhileStmt is While test ... Wend.
type WhileStmt struct {
	StmtBase
	Test Expr
	Body []Stmt
}

// RepeatStmt is Repeat ... Until test.
type RepeatStmt struct {
	StmtBase
	Body  []Stmt
	Until Expr // nil when input ended before UNTIL; the loop never exits
}

// ForStmt is For var = start To bound [Step step] ... Next.
type ForStmt struct {
	StmtBase
	Var   *VarRef
	Start Expr
	Bound Expr
	Step  Expr // nil means 1
	Body  []Stmt
}

// Descending reports whether the loop counts down. It is decided from the
// step's constant value; non-constant steps count up.
func (f *ForStmt) Descending() bool {
	if f.Step == nil {
		return false
	}
	v, ok := ConstNumber(f.Step)
	return ok && v < 0
}

// CaseClause is one Case of a Select: the subject matches if it equals any test.
type CaseClause struct {
	Span  span.Span
	Tests []Expr
	Body  []Stmt
}

// SelectStmt is Select subject, Case*, [Default], End Select.
type SelectStmt struct {
	StmtBase
	Subject Expr
	Cases   []CaseClause
	Default []Stmt // nil when there is no Default
}

// FuncDecl is Function name(params) ... End Function.
type FuncDecl struct {
	StmtBase
	Name   *VarRef
	Params []*VarRef
	Body   []Stmt
}

// ReturnStmt is Return [value].
type ReturnStmt struct {
	StmtBase
	Value Expr // may be nil
}

// ExprStmt wraps an expression (normally a call) used as a statement.
type ExprStmt struct {
	StmtBase
	Expr Expr
}
