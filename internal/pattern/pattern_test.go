package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MethodCallShapes(t *testing.T) {
	tests := []struct {
		template string
		arity    int
		kinds    []ArgKind
		names    []string
	}{
		{"assertTrue($cond)", 1, []ArgKind{ArgAny}, []string{"cond"}},
		{"assertTrue($message:String, !$cond)", 2, []ArgKind{ArgAny, ArgNot}, []string{"message", "cond"}},
		{"assertTrue($actual == $expected)", 1, []ArgKind{ArgEq}, []string{"actual", "expected"}},
		{"assertFalse($a != $b)", 1, []ArgKind{ArgNe}, []string{"a", "b"}},
		{"assertTrue($x == null)", 1, []ArgKind{ArgIsNull}, []string{"x"}},
		{"assertTrue($x != null)", 1, []ArgKind{ArgNotNull}, []string{"x"}},
		{"assertTrue($actual.equals($expected))", 1, []ArgKind{ArgEquals}, []string{"actual", "expected"}},
		{"fail()", 0, nil, nil},
		{"assertEquals($args...)", -1, nil, []string{"args"}},
		{"assertEquals", -1, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			p, err := New(MethodCall, "org.junit.Assert", tt.template, "junit.assert")
			require.NoError(t, err)
			shape := p.Shape()
			require.NotNil(t, shape)
			assert.Equal(t, tt.arity, shape.Arity())
			var kinds []ArgKind
			for _, a := range shape.Args {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.kinds, kinds)
			assert.Equal(t, tt.names, p.Placeholders())
		})
	}
}

func TestParse_Constraint(t *testing.T) {
	p := MustNew(MethodCall, "org.junit.Assert", "assertEquals($expected:!String, $actual, $delta)", "junit.assert")
	assert.Equal(t, "!String", p.Shape().Args[0].Constraint)

	_, err := New(MethodCall, "org.junit.Assert", "assertEquals($expected:int, $actual)", "junit.assert")
	assert.Error(t, err)

	cmp := MustNew(MethodCall, "org.junit.Assert", "assertTrue($a == $b:reference)", "junit.assert.optimize")
	assert.Equal(t, ArgEq, cmp.Shape().Args[0].Kind)
	assert.Equal(t, ConstraintReference, cmp.Shape().Args[0].Constraint)

	_, err = New(MethodCall, "org.junit.Assert", "assertTrue(!$x:primitive)", "junit.assert.optimize")
	assert.Error(t, err)

	opaque := MustNew(MethodCall, "org.junit.Assert", "assertTrue(!$cond:opaque)", "junit.assert.optimize")
	assert.Equal(t, ArgNot, opaque.Shape().Args[0].Kind)
	assert.Equal(t, ConstraintOpaque, opaque.Shape().Args[0].Constraint)
}

func TestParse_NegatedComparison(t *testing.T) {
	tests := []struct {
		template   string
		kind       ArgKind
		names      []string
		constraint string
	}{
		{"assertFalse(!($value == null))", ArgIsNull, []string{"value"}, ""},
		{"assertTrue(!($a != $b):primitive)", ArgNe, []string{"a", "b"}, ConstraintPrimitive},
		{"assertTrue(!( $actual.equals($expected) ))", ArgEquals, []string{"actual", "expected"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			p := MustNew(MethodCall, "org.junit.Assert", tt.template, "junit.assert.optimize")
			arg := p.Shape().Args[0]
			assert.True(t, arg.Negated)
			assert.Equal(t, tt.kind, arg.Kind)
			assert.Equal(t, tt.names, arg.Names)
			assert.Equal(t, tt.constraint, arg.Constraint)
		})
	}

	for _, bad := range []string{"assertTrue(!($x))", "assertTrue(!(!$x))", "assertTrue(!(!($a == $b)))"} {
		_, err := New(MethodCall, "org.junit.Assert", bad, "junit.assert.optimize")
		assert.Error(t, err, bad)
	}
}

func TestParse_Annotation(t *testing.T) {
	marker := MustNew(Annotation, "org.junit.Ignore", "@Ignore", "junit.ignore")
	assert.True(t, marker.Shape().Marker)
	assert.Empty(t, marker.Placeholders())

	single := MustNew(Annotation, "org.junit.Ignore", "@Ignore($value)", "junit.ignore")
	assert.False(t, single.Shape().Marker)
	assert.Equal(t, "value", single.Shape().Args[0].Key)

	pair := MustNew(Annotation, "org.junit.Test", "@Test(timeout = $timeout)", "junit.timeout")
	assert.Equal(t, "timeout", pair.Shape().Args[0].Key)
	assert.Equal(t, []string{"timeout"}, pair.Placeholders())

	_, err := New(Annotation, "org.junit.Ignore", "Ignore", "junit.ignore")
	assert.Error(t, err)
}

func TestParse_Import(t *testing.T) {
	wildcard := MustNew(ImportDeclaration, "org.junit.Assert", "import static org.junit.Assert.*", "junit.assert")
	assert.True(t, wildcard.Shape().Static)
	assert.True(t, wildcard.Shape().Wildcard)
	assert.Equal(t, "org.junit.Assert", wildcard.Shape().Name)

	member := MustNew(ImportDeclaration, "org.junit.Assert", "import static org.junit.Assert.$member", "junit.assert")
	assert.Equal(t, "member", member.Shape().Member)
	assert.Equal(t, "org.junit.Assert", member.Shape().Name)

	plain := MustNew(ImportDeclaration, "org.junit.Assert", "import org.junit.Assert", "junit.assert")
	assert.False(t, plain.Shape().Static)
	assert.Equal(t, "org.junit.Assert", plain.Shape().Name)
}

func TestPattern_NoTemplate(t *testing.T) {
	p := MustNew(FieldDeclaration, "org.junit.rules.ExternalResource", "", "junit.rule.externalresource")
	assert.Nil(t, p.Shape())
	assert.Nil(t, p.Placeholders())
	assert.Equal(t, "field-declaration org.junit.rules.ExternalResource", p.String())

	_, err := New(TypeReference, "org.junit.Assert", "Assert", "junit.assert")
	assert.Error(t, err)
}
