package pattern

import (
	"fmt"
	"strings"
)

// Kind is the syntactic shape a Pattern searches for.
type Kind int

const (
	Annotation Kind = iota
	MethodCall
	TypeReference
	FieldDeclaration
	ImportDeclaration
)

func (k Kind) String() string {
	switch k {
	case Annotation:
		return "annotation"
	case MethodCall:
		return "method-call"
	case TypeReference:
		return "type-reference"
	case FieldDeclaration:
		return "field-declaration"
	case ImportDeclaration:
		return "import-declaration"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pattern describes what to match. It is immutable once built; several catalog entries
// may share one.
type Pattern struct {
	Kind          Kind
	QualifiedType string
	Template      string
	CleanupID     string

	shape *Shape
}

// New builds a pattern and parses its literal template.
func New(kind Kind, qualifiedType, template, cleanupID string) (Pattern, error) {
	p := Pattern{Kind: kind, QualifiedType: qualifiedType, Template: template, CleanupID: cleanupID}
	if template == "" {
		return p, nil
	}
	shape, err := Parse(kind, template)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %s %q: %w", kind, template, err)
	}
	p.shape = shape
	return p, nil
}

// MustNew is New for statically known catalog entries.
func MustNew(kind Kind, qualifiedType, template, cleanupID string) Pattern {
	p, err := New(kind, qualifiedType, template, cleanupID)
	if err != nil {
		panic(err)
	}
	return p
}

// Shape returns the parsed template, nil when the pattern has none.
func (p Pattern) Shape() *Shape {
	return p.shape
}

// Placeholders lists the placeholder names of the template in order of appearance.
func (p Pattern) Placeholders() []string {
	if p.shape == nil {
		return nil
	}
	var names []string
	for _, a := range p.shape.Args {
		names = append(names, a.Names...)
	}
	if p.shape.Rest != "" {
		names = append(names, p.shape.Rest)
	}
	if p.shape.Member != "" {
		names = append(names, p.shape.Member)
	}
	return names
}

func (p Pattern) String() string {
	if p.Template != "" {
		return fmt.Sprintf("%s %s %s", p.Kind, p.QualifiedType, p.Template)
	}
	return fmt.Sprintf("%s %s", p.Kind, p.QualifiedType)
}

// ArgKind is the shape one argument must have.
type ArgKind int

const (
	ArgAny     ArgKind = iota // $x
	ArgNot                    // !$x
	ArgEq                     // $a == $b
	ArgNe                     // $a != $b
	ArgIsNull                 // $x == null
	ArgNotNull                // $x != null
	ArgEquals                 // $a.equals($b)
)

// ArgShape is one argument slot of a method call or annotation template.
type ArgShape struct {
	Kind  ArgKind
	Key   string   // element name for annotation pairs
	Names []string // bound placeholders, receiver first for ArgEquals
	// Constraint narrows the match: "String" or "!String" on plain placeholders,
	// "primitive" or "reference" on comparisons, "opaque" or "!negation" on negations.
	Constraint string
	// Negated shapes match the logical negation of their kind: !($a == $b).
	Negated bool
}

// Shape is a parsed literal template.
type Shape struct {
	Name     string // annotation or method simple name
	Marker   bool   // annotation template without an argument list
	AnyArgs  bool   // method template without an argument list
	Args     []ArgShape
	Rest     string // "$args..." capture of the whole argument list
	Static   bool   // import templates
	Wildcard bool
	Member   string // placeholder for the imported static member
}

// Arity returns the exact number of arguments required, or -1 when any count matches.
func (s *Shape) Arity() int {
	if s.AnyArgs || s.Rest != "" {
		return -1
	}
	return len(s.Args)
}

// Parse parses a literal template of the given kind.
func Parse(kind Kind, template string) (*Shape, error) {
	template = strings.TrimSpace(template)
	switch kind {
	case Annotation:
		return parseAnnotation(template)
	case MethodCall:
		return parseMethodCall(template)
	case ImportDeclaration:
		return parseImport(template)
	}
	return nil, fmt.Errorf("%s patterns take no template", kind)
}

func parseAnnotation(t string) (*Shape, error) {
	if !strings.HasPrefix(t, "@") {
		return nil, fmt.Errorf("annotation template must start with '@'")
	}
	name, args, hasArgs, err := splitCall(t[1:])
	if err != nil {
		return nil, err
	}
	s := &Shape{Name: name, Marker: !hasArgs}
	for _, a := range args {
		key := "value"
		if idx := strings.Index(a, "="); idx >= 0 {
			key = strings.TrimSpace(a[:idx])
			a = strings.TrimSpace(a[idx+1:])
		}
		ph, ok := placeholder(a)
		if !ok {
			return nil, fmt.Errorf("annotation argument %q is not a placeholder", a)
		}
		s.Args = append(s.Args, ArgShape{Kind: ArgAny, Key: key, Names: []string{ph}})
	}
	return s, nil
}

func parseMethodCall(t string) (*Shape, error) {
	name, args, hasArgs, err := splitCall(t)
	if err != nil {
		return nil, err
	}
	s := &Shape{Name: name, AnyArgs: !hasArgs}
	for i, a := range args {
		if strings.HasSuffix(a, "...") {
			if i != len(args)-1 || i != 0 {
				return nil, fmt.Errorf("rest placeholder %q must be the only argument", a)
			}
			ph, ok := placeholder(strings.TrimSuffix(a, "..."))
			if !ok {
				return nil, fmt.Errorf("invalid rest placeholder %q", a)
			}
			s.Rest = ph
			continue
		}
		arg, err := parseArg(a)
		if err != nil {
			return nil, err
		}
		s.Args = append(s.Args, arg)
	}
	return s, nil
}

func parseArg(a string) (ArgShape, error) {
	constraint := ""
	if idx := strings.LastIndex(a, ":"); idx >= 0 {
		constraint = strings.TrimSpace(a[idx+1:])
		a = strings.TrimSpace(a[:idx])
	}
	arg, err := parseArgShape(a)
	if err != nil {
		return ArgShape{}, err
	}
	if constraint != "" {
		if !validConstraint(arg.Kind, constraint) {
			return ArgShape{}, fmt.Errorf("unsupported constraint %q for %q", constraint, a)
		}
		arg.Constraint = constraint
	}
	return arg, nil
}

// Constraints accepted per argument kind. Plain placeholders constrain their static
// type; comparisons constrain the kind of equality they express.
func validConstraint(kind ArgKind, c string) bool {
	switch kind {
	case ArgAny:
		return c == ConstraintString || c == ConstraintNotString
	case ArgEq, ArgNe:
		return c == ConstraintPrimitive || c == ConstraintReference
	case ArgNot:
		return c == ConstraintOpaque || c == ConstraintNotNegation
	}
	return false
}

const (
	ConstraintString    = "String"
	ConstraintNotString = "!String"
	ConstraintPrimitive = "primitive"
	ConstraintReference = "reference"
	// ConstraintOpaque admits a negated operand only when no other condition shape binds
	// it: not a negation, comparison, null check or equals call.
	ConstraintOpaque = "opaque"
	// ConstraintNotNegation admits any negated operand except another negation.
	ConstraintNotNegation = "!negation"
)

func parseArgShape(a string) (ArgShape, error) {
	if strings.HasPrefix(a, "!") {
		operand := strings.TrimSpace(a[1:])
		if strings.HasPrefix(operand, "(") && strings.HasSuffix(operand, ")") {
			inner, err := parseArgShape(strings.TrimSpace(operand[1 : len(operand)-1]))
			if err != nil {
				return ArgShape{}, err
			}
			if inner.Kind == ArgAny || inner.Kind == ArgNot || inner.Negated {
				return ArgShape{}, fmt.Errorf("negation %q must wrap a comparison or an equals call", a)
			}
			inner.Negated = true
			return inner, nil
		}
		ph, ok := placeholder(operand)
		if !ok {
			return ArgShape{}, fmt.Errorf("invalid negation %q", a)
		}
		return ArgShape{Kind: ArgNot, Names: []string{ph}}, nil
	}
	for _, op := range []struct {
		token   string
		kind    ArgKind
		nullFor ArgKind
	}{{"==", ArgEq, ArgIsNull}, {"!=", ArgNe, ArgNotNull}} {
		idx := strings.Index(a, op.token)
		if idx < 0 {
			continue
		}
		left, ok := placeholder(strings.TrimSpace(a[:idx]))
		if !ok {
			return ArgShape{}, fmt.Errorf("invalid comparison %q", a)
		}
		right := strings.TrimSpace(a[idx+len(op.token):])
		if right == "null" {
			return ArgShape{Kind: op.nullFor, Names: []string{left}}, nil
		}
		rph, ok := placeholder(right)
		if !ok {
			return ArgShape{}, fmt.Errorf("invalid comparison %q", a)
		}
		return ArgShape{Kind: op.kind, Names: []string{left, rph}}, nil
	}
	if idx := strings.Index(a, ".equals("); idx >= 0 && strings.HasSuffix(a, ")") {
		recv, ok1 := placeholder(strings.TrimSpace(a[:idx]))
		arg, ok2 := placeholder(strings.TrimSpace(a[idx+len(".equals(") : len(a)-1]))
		if !ok1 || !ok2 {
			return ArgShape{}, fmt.Errorf("invalid equals call %q", a)
		}
		return ArgShape{Kind: ArgEquals, Names: []string{recv, arg}}, nil
	}

	ph, ok := placeholder(a)
	if !ok {
		return ArgShape{}, fmt.Errorf("argument %q is not a placeholder", a)
	}
	return ArgShape{Kind: ArgAny, Names: []string{ph}}, nil
}

func parseImport(t string) (*Shape, error) {
	rest, ok := strings.CutPrefix(t, "import ")
	if !ok {
		return nil, fmt.Errorf("import template must start with 'import'")
	}
	s := &Shape{}
	rest = strings.TrimSpace(rest)
	if r, ok := strings.CutPrefix(rest, "static "); ok {
		s.Static = true
		rest = strings.TrimSpace(r)
	}
	switch {
	case strings.HasSuffix(rest, ".*"):
		s.Wildcard = true
		rest = strings.TrimSuffix(rest, ".*")
	case s.Static:
		idx := strings.LastIndex(rest, ".")
		if idx < 0 {
			return nil, fmt.Errorf("static import %q needs a member", t)
		}
		if ph, ok := placeholder(rest[idx+1:]); ok {
			s.Member = ph
			rest = rest[:idx]
		}
	}
	s.Name = rest
	return s, nil
}

// splitCall splits "name(a, b)" into the name and top-level arguments.
func splitCall(t string) (string, []string, bool, error) {
	open := strings.Index(t, "(")
	if open < 0 {
		return strings.TrimSpace(t), nil, false, nil
	}
	if !strings.HasSuffix(t, ")") {
		return "", nil, false, fmt.Errorf("unbalanced parentheses in %q", t)
	}
	name := strings.TrimSpace(t[:open])
	inner := strings.TrimSpace(t[open+1 : len(t)-1])
	if inner == "" {
		return name, nil, true, nil
	}

	var args []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, false, fmt.Errorf("unbalanced parentheses in %q", t)
	}
	args = append(args, strings.TrimSpace(inner[start:]))
	return name, args, true, nil
}

func placeholder(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for _, r := range s[1:] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", false
		}
	}
	return s[1:], true
}
