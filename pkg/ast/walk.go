package ast

import (
	"bytes"
	"fmt"
	"strings"
)

// Children returns the immediate body of n as an ordered sequence.
// For If that is every branch body followed by the else body; for For the
// body followed by the else body. Leaf nodes have no children.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *Root:
		return t.Nodes
	case *Block:
		return t.Body
	case *Macro:
		return t.Body
	case *If:
		var out []Node
		for _, b := range t.Branches {
			out = append(out, b.Body...)
		}
		return append(out, t.Else...)
	case *For:
		out := make([]Node, 0, len(t.Body)+len(t.Else))
		out = append(out, t.Body...)
		return append(out, t.Else...)
	default:
		return nil
	}
}

// Inspect traverses the tree rooted at n in depth-first pre-order, calling
// f for each node. If f returns false the node's children are skipped.
func Inspect(n Node, f func(Node) bool) {
	if !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Visitor is called for every node by Walk.
type Visitor interface {
	Visit(n Node) error
}

// Walk traverses the tree in depth-first pre-order and stops at the first
// error returned by v.
func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	for _, c := range Children(n) {
		if err := Walk(v, c); err != nil {
			return err
		}
	}
	return nil
}

// Pretty returns a line-oriented string representation of the tree.
func Pretty(n Node) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, n)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	pad := strings.Repeat(" ", indent)
	body := func(nodes []Node) {
		for _, c := range nodes {
			ppNode(buf, indent+2, c)
		}
	}

	switch t := n.(type) {
	case *Root:
		buf.WriteString(pad + "Root\n")
		body(t.Nodes)
	case *Text:
		fmt.Fprintf(buf, "%sText(%q)\n", pad, t.Value)
	case *Raw:
		fmt.Fprintf(buf, "%sRaw(%q)\n", pad, t.Value)
	case *Output:
		fmt.Fprintf(buf, "%sOutput(%s)\n", pad, FormatExpr(t.Expr))
	case *Set:
		fmt.Fprintf(buf, "%sSet(%s = %s)\n", pad, t.Name, FormatExpr(t.Expr))
	case *If:
		for i, b := range t.Branches {
			label := "If"
			if i > 0 {
				label = "Elif"
			}
			fmt.Fprintf(buf, "%s%s(%s)\n", pad, label, FormatExpr(b.Cond))
			body(b.Body)
		}
		if len(t.Else) > 0 {
			buf.WriteString(pad + "Else\n")
			body(t.Else)
		}
	case *For:
		target := t.Value
		if t.Key != "" {
			target = t.Key + ", " + t.Value
		}
		fmt.Fprintf(buf, "%sFor(%s in %s)\n", pad, target, FormatExpr(t.Iterable))
		body(t.Body)
		if len(t.Else) > 0 {
			buf.WriteString(pad + "Else\n")
			body(t.Else)
		}
	case *Block:
		fmt.Fprintf(buf, "%sBlock(%s)\n", pad, t.Name)
		body(t.Body)
	case *Extends:
		fmt.Fprintf(buf, "%sExtends(%q)\n", pad, t.Name)
	case *Macro:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.Name
			if p.Default != nil {
				params[i] += "=" + FormatExpr(p.Default)
			}
		}
		fmt.Fprintf(buf, "%sMacro(%s(%s))\n", pad, t.Name, strings.Join(params, ", "))
		body(t.Body)
	case *ImportMacro:
		fmt.Fprintf(buf, "%sImport(%q as %s)\n", pad, t.File, t.Namespace)
	case *MacroCall:
		fmt.Fprintf(buf, "%sCall(%s)\n", pad, FormatExpr(t))
	case *Super:
		buf.WriteString(pad + "Super\n")
	}
}

// FormatExpr renders an expression back to template syntax. Parenthesization
// is explicit for nested operators so the output is unambiguous.
func FormatExpr(e Expr) string {
	switch t := e.(type) {
	case nil:
		return ""
	case *Literal:
		switch t.Kind {
		case LitBool:
			return fmt.Sprint(t.Bool)
		case LitInt:
			return fmt.Sprint(t.Int)
		case LitFloat:
			return fmt.Sprint(t.Float)
		case LitString:
			return fmt.Sprintf("%q", t.Str)
		default:
			return "none"
		}
	case *ArrayLit:
		items := make([]string, len(t.Items))
		for i, it := range t.Items {
			items[i] = FormatExpr(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *Name:
		return t.Name
	case *Attr:
		return FormatExpr(t.X) + "." + t.Name
	case *Index:
		return FormatExpr(t.X) + "[" + FormatExpr(t.Index) + "]"
	case *Unary:
		return fmt.Sprintf("(%s %s)", t.Op, FormatExpr(t.X))
	case *Binary:
		op := t.Op.String()
		if t.Negate {
			op = "not " + op
		}
		return fmt.Sprintf("(%s %s %s)", FormatExpr(t.Left), op, FormatExpr(t.Right))
	case *Filter:
		s := FormatExpr(t.X) + " | " + t.Name
		if len(t.Args) > 0 {
			s += "(" + formatArgs(t.Args) + ")"
		}
		return s
	case *Test:
		neg := ""
		if t.Negate {
			neg = "not "
		}
		return fmt.Sprintf("(%s is %s%s)", FormatExpr(t.X), neg, t.Name)
	case *MacroCall:
		return fmt.Sprintf("%s::%s(%s)", t.Namespace, t.Name, formatArgs(t.Args))
	default:
		return fmt.Sprintf("%T", e)
	}
}

func formatArgs(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Name != "" {
			parts[i] = a.Name + "=" + FormatExpr(a.Value)
		} else {
			parts[i] = FormatExpr(a.Value)
		}
	}
	return strings.Join(parts, ", ")
}
