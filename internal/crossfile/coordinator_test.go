package crossfile

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/armchr/junitmig/internal/imports"
	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cleanupID = "junit.rule.externalresource"

type fixture struct {
	units   []*parse.Unit
	project *parse.Project
	binder  *parse.Binder
}

func load(t *testing.T, sources ...string) *fixture {
	t.Helper()
	var units []*parse.Unit
	for i, src := range sources {
		u, err := parse.ParseUnit(ast.FileID(i), fmt.Sprintf("F%d.java", i), []byte(src))
		require.NoError(t, err)
		units = append(units, u)
	}
	project := parse.NewProject(units)
	t.Cleanup(project.Close)
	return &fixture{units: units, project: project, binder: parse.NewBinder(project, zap.NewNop())}
}

func (f *fixture) correlate(t *testing.T) *Result {
	t.Helper()
	p := pattern.MustNew(pattern.FieldDeclaration, ExternalResource, "", cleanupID)
	var matches []query.Match
	for _, u := range f.units {
		for m := range query.Candidates(f.binder, u, []pattern.Pattern{p}, nil, zap.NewNop()) {
			matches = append(matches, m)
		}
	}
	res, err := NewCoordinator(f.binder, cleanupID, zap.NewNop()).Correlate(context.Background(), matches)
	require.NoError(t, err)
	return res
}

func (f *fixture) render(t *testing.T, res *Result, i int) string {
	t.Helper()
	u := f.units[i]
	out, err := imports.NewAssembler(f.project, zap.NewNop()).Assemble(u, res.Edits.Edits(u.ID))
	require.NoError(t, err)
	return out.Text
}

const resourceSource = `package p;

import org.junit.rules.ExternalResource;

public class Res extends ExternalResource {
    @Override
    protected void before() throws Throwable {
        super.before();
        open();
    }

    void open() {}
}
`

const ruleUsageSource = `package p;

import org.junit.Rule;
import org.junit.Test;

public class ResTest {
    @Rule
    public Res res = new Res();

    @Test
    public void t() {}
}
`

func TestCorrelate_CrossFileSubclass(t *testing.T) {
	f := load(t, resourceSource, ruleUsageSource)
	res := f.correlate(t)
	require.Empty(t, res.Failed)
	require.Empty(t, res.Unsupported)

	assert.Equal(t, `package p;

import org.junit.jupiter.api.extension.AfterEachCallback;
import org.junit.jupiter.api.extension.BeforeEachCallback;
import org.junit.jupiter.api.extension.ExtensionContext;

public class Res implements BeforeEachCallback, AfterEachCallback {
    @Override
    public void beforeEach(ExtensionContext context) throws Exception {
        open();
    }

    void open() {}

    public void afterEach(ExtensionContext context) {
    }
}
`, f.render(t, res, 0))

	assert.Equal(t, `package p;

import org.junit.Test;
import org.junit.jupiter.api.extension.RegisterExtension;

public class ResTest {
    @RegisterExtension
    public Res res = new Res();

    @Test
    public void t() {}
}
`, f.render(t, res, 1))

	links := res.Edits.Links()
	require.Len(t, links, 1)
	assert.Equal(t, "p.Res", links[0].Type)
	assert.Equal(t, ast.FileID(1), links[0].Usage)
	assert.Equal(t, ast.FileID(0), links[0].Decl)
	assert.ElementsMatch(t, []ast.FileID{0, 1}, res.Edits.GroupFiles(links[0].Group))
}

func TestCorrelate_SharedTypeAdaptedOnce(t *testing.T) {
	second := strings.ReplaceAll(ruleUsageSource, "ResTest", "OtherTest")
	f := load(t, resourceSource, ruleUsageSource, second)
	res := f.correlate(t)
	require.Empty(t, res.Failed)

	headers := 0
	for _, e := range res.Edits.Edits(0) {
		if strings.HasPrefix(e.Replacement, "implements") {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
	assert.Contains(t, f.render(t, res, 2), "@RegisterExtension")
}

func TestCorrelate_InterfacesKept(t *testing.T) {
	resource := strings.Replace(resourceSource, "extends ExternalResource {", "extends ExternalResource implements AutoCloseable {", 1)
	f := load(t, resource, ruleUsageSource)
	res := f.correlate(t)
	require.Empty(t, res.Failed)
	assert.Contains(t, f.render(t, res, 0),
		"public class Res implements AutoCloseable, BeforeEachCallback, AfterEachCallback {")
}

func TestCorrelate_SuperclassChain(t *testing.T) {
	base := `package p;

import org.junit.rules.ExternalResource;

public class Base extends ExternalResource {
    @Override
    protected void after() {
        close();
    }

    void close() {}
}
`
	derived := `package p;

public class Derived extends Base {
    @Override
    protected void after() {
        super.after();
    }
}
`
	usage := `package p;

import org.junit.Rule;

public class DerivedTest {
    @Rule
    public Derived derived = new Derived();
}
`
	f := load(t, base, derived, usage)
	res := f.correlate(t)
	require.Empty(t, res.Failed)

	out := f.render(t, res, 1)
	assert.Contains(t, out, "import org.junit.jupiter.api.extension.ExtensionContext;")
	assert.Contains(t, out, "public void afterEach(ExtensionContext context) {\n        super.afterEach(context);\n    }")
	assert.Contains(t, out, "public class Derived extends Base {")

	out = f.render(t, res, 0)
	assert.Contains(t, out, "public class Base implements BeforeEachCallback, AfterEachCallback {")
	assert.Contains(t, out, "    @Override\n    public void beforeEach(ExtensionContext context) {\n    }")
	assert.Len(t, res.Edits.Links(), 2)
}

func TestCorrelate_AnonymousBody(t *testing.T) {
	code := `package p;

import org.junit.Rule;
import org.junit.rules.ExternalResource;

public class AnonTest {
    @Rule
    public ExternalResource server = new ExternalResource() {
        @Override
        protected void after() {
            stop();
        }
    };

    void stop() {}
}
`
	body := code[strings.Index(code, "{\n        @Override") : strings.Index(code, "};")+1]
	name := SyntheticName("server", body)

	f := load(t, code)
	res := f.correlate(t)
	require.Empty(t, res.Failed)
	require.Empty(t, res.Unsupported)

	out := f.render(t, res, 0)
	assert.Contains(t, out, "    @RegisterExtension\n    public "+name+" server = new "+name+"();\n")
	assert.Contains(t, out, `    void stop() {}

    class `+name+` implements BeforeEachCallback, AfterEachCallback {
        @Override
        public void afterEach(ExtensionContext context) {
            stop();
        }

        @Override
        public void beforeEach(ExtensionContext context) {
        }
    }
}
`)
	assert.Contains(t, out, "import org.junit.jupiter.api.extension.RegisterExtension;")
	assert.Contains(t, out, "import org.junit.jupiter.api.extension.ExtensionContext;")
	assert.NotContains(t, out, "ExternalResource")
	assert.NotContains(t, out, "import org.junit.Rule;")
}

func TestCorrelate_ClassRule(t *testing.T) {
	usage := `package p;

import org.junit.ClassRule;

public class ResTest {
    @ClassRule
    public static Res res = new Res();
}
`
	f := load(t, resourceSource, usage)
	res := f.correlate(t)
	require.Empty(t, res.Failed)

	out := f.render(t, res, 0)
	assert.Contains(t, out, "public class Res implements BeforeAllCallback, AfterAllCallback {")
	assert.Contains(t, out, "public void beforeAll(ExtensionContext context) throws Exception {")
	assert.Contains(t, out, "public void afterAll(ExtensionContext context) {")
	assert.Contains(t, f.render(t, res, 1), "@RegisterExtension\n    public static Res res")
}

func TestCorrelate_Unsupported(t *testing.T) {
	t.Run("class rule on instance field", func(t *testing.T) {
		usage := "package p;\n\nimport org.junit.ClassRule;\n\nclass T {\n    @ClassRule\n    public Res res = new Res();\n}\n"
		f := load(t, resourceSource, usage)
		res := f.correlate(t)
		require.Len(t, res.Unsupported, 1)
		assert.Equal(t, "res", res.Unsupported[0].Field)
		assert.Empty(t, res.Edits.All())
	})

	t.Run("factory initializer", func(t *testing.T) {
		usage := "package p;\n\nimport org.junit.Rule;\n\nclass T {\n    @Rule\n    public Res res = Res.create();\n    Res other = new Res();\n}\n"
		f := load(t, resourceSource, usage)
		res := f.correlate(t)
		assert.Len(t, res.Unsupported, 1)
		assert.Empty(t, res.Edits.All())
	})

	t.Run("conflicting modes", func(t *testing.T) {
		perTest := "package p;\n\nimport org.junit.Rule;\n\nclass A {\n    @Rule\n    public Res res = new Res();\n}\n"
		perClass := "package p;\n\nimport org.junit.ClassRule;\n\nclass B {\n    @ClassRule\n    public static Res res = new Res();\n}\n"
		f := load(t, resourceSource, perTest, perClass)
		res := f.correlate(t)
		require.Len(t, res.Unsupported, 1)
		assert.Equal(t, "F2.java", res.Unsupported[0].Path)
		assert.Empty(t, res.Edits.Edits(2))
		assert.NotEmpty(t, res.Edits.Edits(1))
	})
}

func TestCorrelate_DeclarationUnavailable(t *testing.T) {
	usage := `package p;

import org.junit.Rule;
import org.junit.rules.TemporaryFolder;

public class FolderTest {
    @Rule
    public TemporaryFolder folder = new TemporaryFolder();
}
`
	f := load(t, usage)
	res := f.correlate(t)
	require.Len(t, res.Failed, 1)
	var unavailable *CrossFileUnavailableError
	require.ErrorAs(t, res.Failed[0], &unavailable)
	assert.Equal(t, "org.junit.rules.TemporaryFolder", unavailable.Type)
	assert.Empty(t, res.Edits.All())
	assert.Equal(t, usage, f.render(t, res, 0))
}

func TestCorrelate_Cancelled(t *testing.T) {
	f := load(t, resourceSource, ruleUsageSource)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := pattern.MustNew(pattern.FieldDeclaration, ExternalResource, "", cleanupID)
	var matches []query.Match
	for m := range query.Candidates(f.binder, f.units[1], []pattern.Pattern{p}, nil, zap.NewNop()) {
		matches = append(matches, m)
	}
	require.NotEmpty(t, matches)
	_, err := NewCoordinator(f.binder, cleanupID, zap.NewNop()).Correlate(ctx, matches)
	assert.ErrorIs(t, err, context.Canceled)
}
