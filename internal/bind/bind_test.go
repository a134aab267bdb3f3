package bind

import (
	"testing"

	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	unit      *parse.Unit
	binder    *parse.Binder
	extractor *Extractor
}

func load(t *testing.T, code string) *fixture {
	t.Helper()
	u, err := parse.ParseUnit(0, "T.java", []byte(code))
	require.NoError(t, err)
	project := parse.NewProject([]*parse.Unit{u})
	t.Cleanup(project.Close)
	binder := parse.NewBinder(project, zap.NewNop())
	return &fixture{unit: u, binder: binder, extractor: NewExtractor(binder, zap.NewNop())}
}

// matches returns the candidates of one pattern in source order.
func (f *fixture) matches(t *testing.T, kind pattern.Kind, owner, template string) []query.Match {
	t.Helper()
	p := pattern.MustNew(kind, owner, template, "test")
	var out []query.Match
	for m := range query.Candidates(f.binder, f.unit, []pattern.Pattern{p}, nil, zap.NewNop()) {
		out = append(out, m)
	}
	require.NotEmpty(t, out, "no candidate for %s", template)
	return out
}

func (f *fixture) bind(t *testing.T, m query.Match) (pattern.Bindings, error) {
	t.Helper()
	return f.extractor.Bind(m)
}

func TestBind_AnnotationAttributes(t *testing.T) {
	f := load(t, `package p;

import org.junit.Test;

class T {
    @Test(timeout = 1_500) void a() {}
    @Test(timeout = 10, expected = Exception.class) void b() {}
    @Test void c() {}
}
`)
	ms := f.matches(t, pattern.Annotation, "org.junit.Test", "@Test(timeout = $timeout)")
	require.Len(t, ms, 3)

	b, err := f.bind(t, ms[0])
	require.NoError(t, err)
	assert.Equal(t, "1_500", b["timeout"].Text)

	_, err = f.bind(t, ms[1])
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "annotation attributes differ", bindErr.Reason)

	_, err = f.bind(t, ms[2])
	require.ErrorAs(t, err, &bindErr)
}

func TestBind_NegatedCondition(t *testing.T) {
	f := load(t, `package p;

import java.util.List;
import org.junit.Assert;

class T {
    void t(List<String> l, boolean ready, int a, int b) {
        Assert.assertFalse(!(l == null));
        Assert.assertFalse(!ready);
        Assert.assertFalse(!!ready);
        Assert.assertFalse(!(a != b));
        Assert.assertFalse(!l.equals(null));
    }
}
`)
	opaque := f.matches(t, pattern.MethodCall, "org.junit.Assert", "assertFalse(!$cond:opaque)")
	require.Len(t, opaque, 5)

	tests := []struct {
		name   string
		match  query.Match
		want   string
		reason string
	}{
		{"null check keeps its own shape", opaque[0], "", "negated operand has a shape of its own"},
		{"plain operand", opaque[1], "ready", ""},
		{"double negation", opaque[2], "", "double negation"},
		{"comparison keeps its own shape", opaque[3], "", "negated operand has a shape of its own"},
		{"equals keeps its own shape", opaque[4], "", "negated operand has a shape of its own"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := f.bind(t, tt.match)
			if tt.reason != "" {
				var bindErr *BindError
				require.ErrorAs(t, err, &bindErr)
				assert.Equal(t, tt.reason, bindErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b["cond"].Text)
		})
	}

	isNull := f.matches(t, pattern.MethodCall, "org.junit.Assert", "assertFalse(!($value == null))")
	b, err := f.bind(t, isNull[0])
	require.NoError(t, err)
	assert.Equal(t, "l", b["value"].Text)
	_, err = f.bind(t, isNull[1])
	assert.Error(t, err)

	ne := f.matches(t, pattern.MethodCall, "org.junit.Assert", "assertFalse(!($expected != $actual):primitive)")
	b, err = f.bind(t, ne[3])
	require.NoError(t, err)
	assert.Equal(t, "a", b["expected"].Text)
	assert.Equal(t, "b", b["actual"].Text)
}

func TestBind_NotNegationConstraint(t *testing.T) {
	f := load(t, `package p;

import org.junit.Assume;

class T {
    void t(boolean ok) {
        Assume.assumeFalse(!ok);
        Assume.assumeFalse(!(!ok));
    }
}
`)
	ms := f.matches(t, pattern.MethodCall, "org.junit.Assume", "assumeFalse(!$cond:!negation)")
	require.Len(t, ms, 2)

	b, err := f.bind(t, ms[0])
	require.NoError(t, err)
	assert.Equal(t, "ok", b["cond"].Text)

	_, err = f.bind(t, ms[1])
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "double negation", bindErr.Reason)
}
