package bind

import (
	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
)

func (e *Extractor) bindMethodCall(u *parse.Unit, m query.Match, b pattern.Bindings) error {
	shape := m.Pattern.Shape()
	if shape == nil || shape.AnyArgs {
		return nil
	}

	argList := u.ChildByField(m.Node.ID, "arguments")
	args := arguments(u, argList)

	if shape.Rest != "" {
		if len(args) == 0 {
			at := u.Span(argList).Start + 1
			b[shape.Rest] = pattern.Captured("", ast.Span{Start: at, End: at})
			return nil
		}
		span := ast.Span{Start: u.Span(args[0]).Start, End: u.Span(args[len(args)-1]).End}
		b[shape.Rest] = pattern.Captured(u.TextOf(span), span)
		return nil
	}

	if len(args) != len(shape.Args) {
		return &BindError{Node: m.Node, Reason: "argument count differs"}
	}
	for i, arg := range shape.Args {
		if err := e.bindArgument(u, m.Node, args[i], arg, b); err != nil {
			return err
		}
	}
	return nil
}

// arguments returns the expression children of an argument list, skipping comments.
func arguments(u *parse.Unit, argList ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	for _, c := range u.NamedChildren(argList) {
		switch u.Kind(c) {
		case "line_comment", "block_comment":
			continue
		}
		out = append(out, c)
	}
	return out
}

func unparen(u *parse.Unit, id ast.NodeID) ast.NodeID {
	for u.Kind(id) == "parenthesized_expression" {
		inner := u.NamedChildren(id)
		if len(inner) != 1 {
			return id
		}
		id = inner[0]
	}
	return id
}

func (e *Extractor) bindArgument(u *parse.Unit, ref ast.NodeRef, node ast.NodeID, arg pattern.ArgShape, b pattern.Bindings) error {
	if arg.Negated {
		operand, ok := negationOperand(u, node)
		if !ok {
			return &BindError{Node: ref, Reason: "condition is not a negation"}
		}
		node = operand
	}

	switch arg.Kind {
	case pattern.ArgAny:
		if err := e.checkTypeConstraint(u, ref, node, arg.Constraint); err != nil {
			return err
		}
		e.bindOperand(u, arg.Names[0], node, b)
		return nil

	case pattern.ArgNot:
		operand, ok := negationOperand(u, node)
		if !ok {
			return &BindError{Node: ref, Reason: "condition is not a negation"}
		}
		if err := e.checkNegatedOperand(u, ref, operand, arg.Constraint); err != nil {
			return err
		}
		e.bindOperand(u, arg.Names[0], operand, b)
		return nil

	case pattern.ArgEq, pattern.ArgNe, pattern.ArgIsNull, pattern.ArgNotNull:
		return e.bindComparison(u, ref, node, arg, b)

	case pattern.ArgEquals:
		inner := unparen(u, node)
		if u.Kind(inner) != "method_invocation" {
			return &BindError{Node: ref, Reason: "condition is not an equals call"}
		}
		name := u.ChildByField(inner, "name")
		object := u.ChildByField(inner, "object")
		callArgs := arguments(u, u.ChildByField(inner, "arguments"))
		if name == ast.InvalidNodeID || u.Text(name) != "equals" || object == ast.InvalidNodeID ||
			u.Kind(object) == "super" || len(callArgs) != 1 {
			return &BindError{Node: ref, Reason: "condition is not an equals call"}
		}
		e.bindOperand(u, arg.Names[0], object, b)
		e.bindOperand(u, arg.Names[1], callArgs[0], b)
		return nil
	}
	return &BindError{Node: ref, Reason: "unknown argument shape"}
}

// negationOperand returns the unparenthesized operand of a ! expression.
func negationOperand(u *parse.Unit, node ast.NodeID) (ast.NodeID, bool) {
	inner := unparen(u, node)
	if u.Kind(inner) != "unary_expression" || operator(u, inner) != "!" {
		return ast.InvalidNodeID, false
	}
	return unparen(u, u.ChildByField(inner, "operand")), true
}

// conditionShapes are the operand shapes the optimizer rewrites on their own.
var conditionShapes = []pattern.ArgShape{
	{Kind: pattern.ArgIsNull, Names: []string{"value"}},
	{Kind: pattern.ArgNotNull, Names: []string{"value"}},
	{Kind: pattern.ArgEq, Names: []string{"expected", "actual"}},
	{Kind: pattern.ArgNe, Names: []string{"expected", "actual"}},
	{Kind: pattern.ArgEquals, Names: []string{"actual", "expected"}},
}

// checkNegatedOperand refuses operands a more specific shape handles, so that unwrapping
// a negation never leaves a condition a second run would simplify further.
func (e *Extractor) checkNegatedOperand(u *parse.Unit, ref ast.NodeRef, operand ast.NodeID, constraint string) error {
	if constraint == "" {
		return nil
	}
	if _, nested := negationOperand(u, operand); nested {
		return &BindError{Node: ref, Reason: "double negation"}
	}
	if constraint != pattern.ConstraintOpaque {
		return nil
	}
	for _, shape := range conditionShapes {
		if e.bindArgument(u, ref, operand, shape, pattern.Bindings{}) == nil {
			return &BindError{Node: ref, Reason: "negated operand has a shape of its own"}
		}
	}
	return nil
}

func (e *Extractor) bindOperand(u *parse.Unit, name string, node ast.NodeID, b pattern.Bindings) {
	b[name] = capture(u, node)
	if e.binder.IsConstant(u, node) {
		b[name+ConstSuffix] = pattern.Computed("true")
	}
}

func operator(u *parse.Unit, expr ast.NodeID) string {
	op := u.ChildByField(expr, "operator")
	if op == ast.InvalidNodeID {
		return ""
	}
	return u.Text(op)
}

func (e *Extractor) checkTypeConstraint(u *parse.Unit, ref ast.NodeRef, node ast.NodeID, constraint string) error {
	if constraint == "" {
		return nil
	}
	t, ok := e.binder.ExpressionType(u, node)
	if !ok {
		return &BindError{Node: ref, Reason: "argument type unknown: " + u.Text(node)}
	}
	isString := t == parse.TypeString
	switch constraint {
	case pattern.ConstraintString:
		if !isString {
			return &BindError{Node: ref, Reason: "argument is not a string"}
		}
	case pattern.ConstraintNotString:
		if isString {
			return &BindError{Node: ref, Reason: "argument is a string"}
		}
	}
	return nil
}

func (e *Extractor) bindComparison(u *parse.Unit, ref ast.NodeRef, node ast.NodeID, arg pattern.ArgShape, b pattern.Bindings) error {
	inner := unparen(u, node)
	if u.Kind(inner) != "binary_expression" {
		return &BindError{Node: ref, Reason: "condition is not a comparison"}
	}
	want := "=="
	if arg.Kind == pattern.ArgNe || arg.Kind == pattern.ArgNotNull {
		want = "!="
	}
	if operator(u, inner) != want {
		return &BindError{Node: ref, Reason: "comparison operator differs"}
	}

	left := unparen(u, u.ChildByField(inner, "left"))
	right := unparen(u, u.ChildByField(inner, "right"))
	leftNull := u.Kind(left) == "null_literal"
	rightNull := u.Kind(right) == "null_literal"

	if arg.Kind == pattern.ArgIsNull || arg.Kind == pattern.ArgNotNull {
		switch {
		case rightNull && !leftNull:
			e.bindOperand(u, arg.Names[0], left, b)
		case leftNull && !rightNull:
			e.bindOperand(u, arg.Names[0], right, b)
		default:
			return &BindError{Node: ref, Reason: "not a null comparison"}
		}
		return nil
	}

	if leftNull || rightNull {
		return &BindError{Node: ref, Reason: "null comparison"}
	}
	if err := e.checkEquality(u, ref, left, right, arg.Constraint); err != nil {
		return err
	}
	e.bindOperand(u, arg.Names[0], left, b)
	e.bindOperand(u, arg.Names[1], right, b)
	return nil
}

// checkEquality decides which assertion a comparison corresponds to. A comparison with a
// primitive operand is a value comparison; one between two known reference types is an
// identity comparison. Floating point operands are refused: == and assertEquals disagree
// on NaN and signed zeros.
func (e *Extractor) checkEquality(u *parse.Unit, ref ast.NodeRef, left, right ast.NodeID, constraint string) error {
	lt, lok := e.binder.ExpressionType(u, left)
	rt, rok := e.binder.ExpressionType(u, right)

	for _, t := range []string{lt, rt} {
		if t == "float" || t == "double" || t == "java.lang.Float" || t == "java.lang.Double" {
			return &BindError{Node: ref, Reason: "floating point comparison"}
		}
	}

	primitive := (lok && parse.IsPrimitive(lt)) || (rok && parse.IsPrimitive(rt))
	reference := lok && rok && parse.IsReferenceType(lt) && parse.IsReferenceType(rt)

	switch constraint {
	case pattern.ConstraintPrimitive:
		if !primitive {
			return &BindError{Node: ref, Reason: "not a primitive comparison"}
		}
	case pattern.ConstraintReference:
		if !reference {
			return &BindError{Node: ref, Reason: "not a reference comparison"}
		}
	default:
		if !primitive && !reference {
			return &BindError{Node: ref, Reason: "operand types unknown"}
		}
	}
	return nil
}
