package ast

import "bb2web/internal/span"

// NodeToMap converts an AST node to a map suitable for JSON serialization.
// Every node carries a "kind" tag and its span.
func NodeToMap(node Node) map[string]interface{} {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *Program:
		return m("Program", n.Span, "body", stmtSlice(n.Body))

	// ---- Expressions ----
	case *VarRef:
		if n == nil {
			return nil
		}
		return m("VarRef", n.Span, "name", n.Name, "suffix", n.Suffix.String())
	case *Literal:
		result := m("Literal", n.Span, "type", n.Kind.String())
		switch n.Kind {
		case LitNumber:
			result["value"] = n.Number
			result["raw"] = n.Raw
		case LitString:
			result["value"] = n.Str
		case LitBool:
			result["value"] = n.Bool
		default:
			result["value"] = nil
		}
		if n.Suffix != SuffixNone {
			result["suffix"] = n.Suffix.String()
		}
		return result
	case *UnaryExpr:
		return m("UnaryExpr", n.Span, "op", n.Op, "operand", NodeToMap(n.Operand))
	case *BinaryExpr:
		return m("BinaryExpr", n.Span,
			"op", n.Op,
			"left", NodeToMap(n.Left),
			"right", NodeToMap(n.Right))
	case *CallExpr:
		return m("CallExpr", n.Span,
			"callee", NodeToMap(n.Callee),
			"args", exprSlice(n.Args))
	case *GroupExpr:
		return m("GroupExpr", n.Span, "expr", NodeToMap(n.Inner))

	// ---- Statements ----
	case *ExprStmt:
		return m("ExprStmt", n.Span, "expr", NodeToMap(n.Expr))
	case *AssignStmt:
		return m("AssignStmt", n.Span,
			"target", NodeToMap(n.Target),
			"value", NodeToMap(n.Value))
	case *VarDecl:
		result := m("VarDecl", n.Span, "scope", n.Scope.String(), "name", NodeToMap(n.Name))
		if n.Init != nil {
			result["init"] = NodeToMap(n.Init)
		}
		return result
	case *DimDecl:
		return m("DimDecl", n.Span, "name", NodeToMap(n.Name), "size", NodeToMap(n.Size))
	case *ReturnStmt:
		result := m("ReturnStmt", n.Span)
		if n.Value != nil {
			result["value"] = NodeToMap(n.Value)
		}
		return result
	case *IfStmt:
		branches := make([]interface{}, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = map[string]interface{}{
				"kind": "IfBranch",
				"span": spanToMap(b.Span),
				"test": NodeToMap(b.Test),
				"body": stmtSlice(b.Body),
			}
		}
		result := m("IfStmt", n.Span, "branches", branches)
		if n.Else != nil {
			result["else"] = stmtSlice(n.Else)
		}
		return result
	case *WhileStmt:
		return m("WhileStmt", n.Span,
			"test", NodeToMap(n.Test),
			"body", stmtSlice(n.Body))
	case *RepeatStmt:
		return m("RepeatStmt", n.Span,
			"body", stmtSlice(n.Body),
			"until", NodeToMap(n.Until))
	case *ForStmt:
		result := m("ForStmt", n.Span,
			"var", NodeToMap(n.Var),
			"start", NodeToMap(n.Start),
			"bound", NodeToMap(n.Bound),
			"descending", n.Descending(),
			"body", stmtSlice(n.Body))
		if n.Step != nil {
			result["step"] = NodeToMap(n.Step)
		}
		return result
	case *SelectStmt:
		cases := make([]interface{}, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = map[string]interface{}{
				"kind":  "CaseClause",
				"span":  spanToMap(c.Span),
				"tests": exprSlice(c.Tests),
				"body":  stmtSlice(c.Body),
			}
		}
		result := m("SelectStmt", n.Span,
			"subject", NodeToMap(n.Subject),
			"cases", cases)
		if n.Default != nil {
			result["default"] = stmtSlice(n.Default)
		}
		return result
	case *FuncDecl:
		params := make([]interface{}, len(n.Params))
		for i, p := range n.Params {
			params[i] = NodeToMap(p)
		}
		return m("FuncDecl", n.Span,
			"name", NodeToMap(n.Name),
			"params", params,
			"body", stmtSlice(n.Body))

	default:
		return map[string]interface{}{"kind": "Unknown"}
	}
}

// ---- helpers ----

// m builds a map with kind, span, and extra key-value pairs.
func m(kind string, s span.Span, kvs ...interface{}) map[string]interface{} {
	result := map[string]interface{}{
		"kind": kind,
		"span": spanToMap(s),
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		key := kvs[i].(string)
		result[key] = kvs[i+1]
	}
	return result
}

func spanToMap(s span.Span) map[string]interface{} {
	return map[string]interface{}{
		"start": map[string]interface{}{
			"offset": s.Start.Offset,
			"line":   s.Start.Line,
			"column": s.Start.Column,
		},
		"end": map[string]interface{}{
			"offset": s.End.Offset,
			"line":   s.End.Line,
			"column": s.End.Column,
		},
	}
}

func stmtSlice(stmts []Stmt) []interface{} {
	result := make([]interface{}, len(stmts))
	for i, s := range stmts {
		result[i] = NodeToMap(s)
	}
	return result
}

func exprSlice(exprs []Expr) []interface{} {
	result := make([]interface{}, len(exprs))
	for i, e := range exprs {
		result[i] = NodeToMap(e)
	}
	return result
}
