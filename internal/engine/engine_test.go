package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/armchr/junitmig/internal/catalog"
	"github.com/armchr/junitmig/internal/crossfile"
	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type source struct {
	path string
	code string
}

func parseAll(t *testing.T, sources ...source) []*parse.Unit {
	t.Helper()
	units := make([]*parse.Unit, len(sources))
	for i, s := range sources {
		u, err := parse.ParseUnit(ast.FileID(i), s.path, []byte(s.code))
		require.NoError(t, err)
		t.Cleanup(u.Close)
		units[i] = u
	}
	return units
}

func runEngine(t *testing.T, enabled []string, sources ...source) *Result {
	t.Helper()
	res, err := New(Options{Workers: 2}, zap.NewNop()).Run(context.Background(), parseAll(t, sources...), enabled)
	require.NoError(t, err)
	return res
}

func fileText(t *testing.T, res *Result, path string) string {
	t.Helper()
	for _, f := range res.Files {
		if f.Path == path {
			return f.Text
		}
	}
	require.Failf(t, "file not changed", "%s is not among the changed files", path)
	return ""
}

const calcTest = `package p;

import org.junit.Assert;
import org.junit.Test;

public class CalcTest {
    @Test
    public void adds() {
        int result = 40 + 2;
        Assert.assertTrue(result == 42);
    }
}
`

func TestRun_AssertTrueComparison(t *testing.T) {
	res := runEngine(t, catalog.Default(), source{"CalcTest.java", calcTest})

	require.Len(t, res.Files, 1)
	assert.Equal(t, `package p;

import org.junit.jupiter.api.Assertions;
import org.junit.jupiter.api.Test;

public class CalcTest {
    @Test
    public void adds() {
        int result = 40 + 2;
        Assertions.assertEquals(result, 42);
    }
}
`, res.Files[0].Text)
	assert.Equal(t, map[string]int{catalog.Test: 1, catalog.AssertOptimize: 1}, res.Files[0].Applied)
	assert.Empty(t, res.Warnings)
}

func TestRun_Idempotent(t *testing.T) {
	first := runEngine(t, catalog.Default(), source{"CalcTest.java", calcTest})
	require.Len(t, first.Files, 1)

	second := runEngine(t, catalog.Default(), source{"CalcTest.java", first.Files[0].Text})
	assert.Empty(t, second.Files)
	assert.Zero(t, second.EditCount())
}

func TestRun_IdempotentNegatedNullCheck(t *testing.T) {
	code := `package p;

import java.util.List;
import org.junit.Assert;

public class NullTest {
    void t(List<String> l, boolean ready) {
        Assert.assertFalse(!(l == null));
        Assert.assertTrue(!(l != null));
        Assert.assertFalse(!ready);
    }
}
`
	first := runEngine(t, catalog.Default(), source{"NullTest.java", code})
	text := fileText(t, first, "NullTest.java")
	assert.Contains(t, text, "Assertions.assertNull(l);\n        Assertions.assertNull(l);")
	assert.Contains(t, text, "Assertions.assertTrue(ready);")

	second := runEngine(t, catalog.Default(), source{"NullTest.java", text})
	assert.Empty(t, second.Files)
	assert.Zero(t, second.EditCount())
}

func TestRun_AssumeMessageMovesLast(t *testing.T) {
	code := `package p;

import org.junit.Assume;

public class EnvTest {
    boolean condition;

    void check() {
        Assume.assumeFalse("msg", !condition);
    }
}
`
	res := runEngine(t, catalog.Default(), source{"EnvTest.java", code})
	text := fileText(t, res, "EnvTest.java")
	assert.Contains(t, text, `Assumptions.assumeTrue(condition, "msg");`)
	assert.Contains(t, text, "import org.junit.jupiter.api.Assumptions;")
	assert.NotContains(t, text, "import org.junit.Assume;")
}

func TestRun_IgnoreKeepsReasonVerbatim(t *testing.T) {
	code := `package p;

import org.junit.Ignore;
import org.junit.Test;

public class SlowTest {
    @Ignore("not \"yet\" implemented\t")
    @Test
    public void later() {}
}
`
	res := runEngine(t, []string{catalog.Ignore}, source{"SlowTest.java", code})
	text := fileText(t, res, "SlowTest.java")
	assert.Contains(t, text, `@Disabled("not \"yet\" implemented\t")`)
	assert.Contains(t, text, "import org.junit.Test;\nimport org.junit.jupiter.api.Disabled;")
	assert.NotContains(t, text, "import org.junit.Ignore;")
}

const myResource = `package p;

import org.junit.rules.ExternalResource;

public class MyExternalResource extends ExternalResource {
    @Override
    protected void before() throws Throwable {
        start();
    }

    @Override
    protected void after() {
        stop();
    }

    void start() {}

    void stop() {}
}
`

const myTest = `package p;

import org.junit.Rule;
import org.junit.Test;
import org.junit.rules.ExternalResource;

public class MyTest {
    @Rule
    public ExternalResource er = new MyExternalResource();

    @Test
    public void works() {
    }
}
`

func TestRun_ExternalResourceAcrossFiles(t *testing.T) {
	res := runEngine(t, catalog.Default(),
		source{"MyExternalResource.java", myResource},
		source{"MyTest.java", myTest})

	require.Len(t, res.Files, 2)
	decl := fileText(t, res, "MyExternalResource.java")
	assert.Contains(t, decl, "public class MyExternalResource implements BeforeEachCallback, AfterEachCallback {")
	assert.Contains(t, decl, "public void beforeEach(ExtensionContext context) throws Exception {\n        start();")
	assert.Contains(t, decl, "public void afterEach(ExtensionContext context) {\n        stop();")
	assert.Contains(t, decl, `import org.junit.jupiter.api.extension.AfterEachCallback;
import org.junit.jupiter.api.extension.BeforeEachCallback;
import org.junit.jupiter.api.extension.ExtensionContext;`)
	assert.NotContains(t, decl, "org.junit.rules.ExternalResource")

	usage := fileText(t, res, "MyTest.java")
	assert.Contains(t, usage, "@RegisterExtension\n    public MyExternalResource er = new MyExternalResource();")
	assert.Contains(t, usage, "import org.junit.jupiter.api.Test;\nimport org.junit.jupiter.api.extension.RegisterExtension;\n\n")
	assert.NotContains(t, usage, "org.junit.Rule;")
	assert.NotContains(t, usage, "org.junit.rules.ExternalResource")

	require.Len(t, res.Links, 1)
	assert.Equal(t, "p.MyExternalResource", res.Links[0].Type)
	assert.Equal(t, 1, res.Files[1].Applied[catalog.Test])
}

func TestRun_ExpectedException(t *testing.T) {
	code := `package p;

import org.junit.Assert;
import org.junit.Test;

public class ThrowTest {
    @Test(expected = IllegalStateException.class)
    public void fails() {
        Assert.assertTrue(ready());
        throw new IllegalStateException();
    }

    @Test(expected = IllegalArgumentException.class) public void inline() { check(-1); }

    boolean ready() { return true; }

    void check(int n) {}
}
`
	res := runEngine(t, catalog.Default(), source{"ThrowTest.java", code})
	text := fileText(t, res, "ThrowTest.java")
	assert.Contains(t, text, `    @Test
    public void fails() {
        assertThrows(IllegalStateException.class, () -> {
        Assertions.assertTrue(ready());
        throw new IllegalStateException();
        });
    }`)
	assert.Contains(t, text, "@Test public void inline() { assertThrows(IllegalArgumentException.class, () -> { check(-1); }); }")
	assert.Contains(t, text, `import static org.junit.jupiter.api.Assertions.assertThrows;

import org.junit.jupiter.api.Assertions;
import org.junit.jupiter.api.Test;
`)
	assert.NotContains(t, text, "org.junit.Test;")
	assert.Equal(t, 2, res.Files[0].Applied[catalog.Expected])
	assert.Empty(t, res.Warnings)
}

func TestRun_TestAnnotationVariants(t *testing.T) {
	code := `package p;

import org.junit.Test;

public class MixedTest {
    @Test
    public void plain() {}

    @Test(expected = IllegalStateException.class)
    public void throwing() {
        throw new IllegalStateException();
    }

    @Test(timeout = 1_500)
    public void quick() {}

    @Test(timeout = 2000L)
    public void slow() {}

    @Test(expected = IllegalStateException.class, timeout = 3000)
    public void both() {
        throw new IllegalStateException();
    }
}
`
	res := runEngine(t, catalog.Default(), source{"MixedTest.java", code})
	require.Len(t, res.Files, 1)
	text := res.Files[0].Text
	assert.Contains(t, text, "@Test\n    public void plain() {}")
	assert.Contains(t, text, "@Test\n    public void throwing() {\n        assertThrows(IllegalStateException.class, () -> {")
	assert.Contains(t, text, "@Test @Timeout(value = 1500, unit = TimeUnit.MILLISECONDS)\n    public void quick() {}")
	assert.Contains(t, text, "@Test @Timeout(value = 2, unit = TimeUnit.SECONDS)\n    public void slow() {}")
	assert.Contains(t, text, "@Test @Timeout(value = 3, unit = TimeUnit.SECONDS)\n    public void both() {\n        assertThrows(")
	assert.Contains(t, text, `import static org.junit.jupiter.api.Assertions.assertThrows;

import java.util.concurrent.TimeUnit;
import org.junit.jupiter.api.Test;
import org.junit.jupiter.api.Timeout;
`)
	assert.NotContains(t, text, "import org.junit.Test;")
	assert.Equal(t, map[string]int{catalog.Test: 1, catalog.Expected: 2, catalog.Timeout: 2}, res.Files[0].Applied)
	assert.Empty(t, res.Warnings)
}

func TestRun_AnnotationCleanups(t *testing.T) {
	tests := []struct {
		name    string
		enabled []string
		code    string
		want    []string
		absent  []string
	}{
		{
			name:    "timeout in milliseconds",
			enabled: []string{catalog.Test, catalog.Timeout},
			code:    "import org.junit.Test;\n\nclass T {\n    @Test(timeout = 1_500) void t() {}\n}\n",
			want: []string{
				"@Test @Timeout(value = 1500, unit = TimeUnit.MILLISECONDS) void t() {}",
				"import java.util.concurrent.TimeUnit;\nimport org.junit.jupiter.api.Test;\nimport org.junit.jupiter.api.Timeout;",
			},
			absent: []string{"import org.junit.Test;"},
		},
		{
			name:    "timeout in whole seconds",
			enabled: []string{catalog.Test, catalog.Timeout},
			code:    "import org.junit.Test;\n\nclass T {\n    @Test(timeout = 2000L) void t() {}\n}\n",
			want:    []string{"@Test @Timeout(value = 2, unit = TimeUnit.SECONDS) void t() {}"},
		},
		{
			name:    "single category",
			enabled: []string{catalog.Category},
			code:    "import org.junit.experimental.categories.Category;\n\n@Category(Fast.class)\nclass T {\n}\n",
			want:    []string{"@Tag(\"Fast\")\nclass T {", "import org.junit.jupiter.api.Tag;"},
			absent:  []string{"Category"},
		},
		{
			name:    "category list",
			enabled: []string{catalog.Category},
			code:    "import org.junit.experimental.categories.Category;\n\nclass T {\n    @Category({Fast.class, Slow.class})\n    void t() {}\n}\n",
			want:    []string{"@Tag(\"Fast\") @Tag(\"Slow\")\n    void t() {}"},
			absent:  []string{"Category"},
		},
		{
			name:    "lifecycle",
			enabled: []string{catalog.Lifecycle},
			code: "import org.junit.After;\nimport org.junit.AfterClass;\nimport org.junit.Before;\nimport org.junit.BeforeClass;\n\nclass T {\n" +
				"    @BeforeClass static void a() {}\n    @Before void b() {}\n    @After void c() {}\n    @AfterClass static void d() {}\n}\n",
			want: []string{
				"@BeforeAll static void a() {}",
				"@BeforeEach void b() {}",
				"@AfterEach void c() {}",
				"@AfterAll static void d() {}",
				"import org.junit.jupiter.api.AfterAll;\nimport org.junit.jupiter.api.AfterEach;\nimport org.junit.jupiter.api.BeforeAll;\nimport org.junit.jupiter.api.BeforeEach;",
			},
			absent: []string{"import org.junit.Before;", "import org.junit.After;", "import org.junit.BeforeClass;", "import org.junit.AfterClass;"},
		},
		{
			name:    "assume optimize",
			enabled: []string{catalog.Assume, catalog.AssumeOptimize},
			code:    "import org.junit.Assume;\n\nclass T {\n    void t(boolean ok) {\n        Assume.assumeTrue(!ok);\n        Assume.assumeFalse(!(!ok));\n    }\n}\n",
			want: []string{
				"Assumptions.assumeFalse(ok);",
				"Assumptions.assumeFalse(!(!ok));",
				"import org.junit.jupiter.api.Assumptions;",
			},
			absent: []string{"import org.junit.Assume;"},
		},
		{
			name:    "assume optimize without migration",
			enabled: []string{catalog.AssumeOptimize},
			code:    "import org.junit.Assume;\n\nclass T {\n    void t(boolean ok) {\n        Assume.assumeFalse(\"why\", !ok);\n    }\n}\n",
			want:    []string{`Assume.assumeTrue("why", ok);`, "import org.junit.Assume;"},
			absent:  []string{"Assumptions"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runEngine(t, tt.enabled, source{"T.java", tt.code})
			text := fileText(t, res, "T.java")
			for _, w := range tt.want {
				assert.Contains(t, text, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, text, a)
			}
			assert.Empty(t, res.Warnings)

			again := runEngine(t, tt.enabled, source{"T.java", text})
			assert.Empty(t, again.Files)
		})
	}
}

func TestRun_TemporaryFolder(t *testing.T) {
	code := `package p;

import java.io.File;
import org.junit.Rule;
import org.junit.Test;
import org.junit.rules.TemporaryFolder;

public class FolderTest {
    @Rule
    public final TemporaryFolder folder = new TemporaryFolder();

    @Test
    public void writes() throws Exception {
        File data = folder.newFile("data.txt");
        File root = folder.getRoot();
    }
}
`
	res := runEngine(t, catalog.Default(), source{"FolderTest.java", code})
	require.Empty(t, res.Warnings)
	assert.Equal(t, `package p;

import java.io.File;
import java.nio.file.Files;
import java.nio.file.Path;
import org.junit.jupiter.api.Test;
import org.junit.jupiter.api.io.TempDir;

public class FolderTest {
    @TempDir
    public Path folder;

    @Test
    public void writes() throws Exception {
        File data = Files.createFile(folder.resolve("data.txt")).toFile();
        File root = folder.toFile();
    }
}
`, fileText(t, res, "FolderTest.java"))
	assert.Equal(t, 1, res.Files[0].Applied[catalog.TemporaryFolder])
	assert.Empty(t, res.Links)
}

func TestRun_TemporaryFolderUnsupportedUse(t *testing.T) {
	code := `package p;

import org.junit.Rule;
import org.junit.rules.TemporaryFolder;

public class FolderTest {
    @Rule
    public TemporaryFolder folder = new TemporaryFolder();

    void setUp() throws Exception {
        folder.create();
    }
}
`
	res := runEngine(t, catalog.Default(), source{"FolderTest.java", code})
	assert.Empty(t, res.Files)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, catalog.ExternalResource, res.Warnings[0].Cleanup)
	assert.Contains(t, res.Warnings[0].Message, "org.junit.rules.TemporaryFolder")
}

func TestRun_CrossFileAtomicity(t *testing.T) {
	code := `package p;

import org.junit.Rule;
import org.junit.rules.TemporaryFolder;

public class FolderTest {
    @Rule
    public TemporaryFolder folder = new TemporaryFolder();
}
`
	res := runEngine(t, []string{catalog.ExternalResource}, source{"FolderTest.java", code})
	assert.Empty(t, res.Files)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "FolderTest.java", res.Warnings[0].Path)
	assert.Equal(t, catalog.ExternalResource, res.Warnings[0].Cleanup)
	assert.Contains(t, res.Warnings[0].Message, "org.junit.rules.TemporaryFolder")
}

func TestRun_ConservativeOperandOrder(t *testing.T) {
	code := `package p;

import org.junit.Assert;

public class OrderTest {
    void t(int a, int b) {
        Assert.assertEquals(a, b);
        Assert.assertEquals(b, 42);
    }
}
`
	enabled := []string{catalog.Assert, catalog.AssertSwap}
	text := fileText(t, runEngine(t, enabled, source{"OrderTest.java", code}), "OrderTest.java")
	assert.Contains(t, text, "Assertions.assertEquals(a, b);")
	assert.Contains(t, text, "Assertions.assertEquals(42, b);")

	text = fileText(t, runEngine(t, []string{catalog.Assert}, source{"OrderTest.java", code}), "OrderTest.java")
	assert.Contains(t, text, "Assertions.assertEquals(b, 42);")
}

func TestRun_PlaceholderFidelity(t *testing.T) {
	code := `package p;

import org.junit.Assert;

public class SpacingTest {
    void t() {
        Assert.assertTrue("why",  ready(  1 )  &&  done);
    }
}
`
	text := fileText(t, runEngine(t, catalog.Default(), source{"SpacingTest.java", code}), "SpacingTest.java")
	assert.Contains(t, text, `Assertions.assertTrue(ready(  1 )  &&  done, "why");`)
}

func TestRun_StaticImportWithheldForUnmigratedCall(t *testing.T) {
	code := `package p;

import static org.junit.Assert.*;

public class MixedTest {
    void t(int x, boolean ok) {
        assertTrue(ok);
        assertEquals(1, x);
        assertEquals(msg, expected, actual);
    }
}
`
	res := runEngine(t, []string{catalog.Assert}, source{"MixedTest.java", code})
	text := fileText(t, res, "MixedTest.java")
	assert.Contains(t, text, "import static org.junit.Assert.*;")
	assert.Contains(t, text, "import static org.junit.jupiter.api.Assertions.assertTrue;")
	assert.NotContains(t, text, "Assertions.assertEquals")
	assert.Contains(t, text, "assertEquals(1, x);")

	require.NotEmpty(t, res.Warnings)
	assert.True(t, strings.Contains(res.Warnings[0].Message, "org.junit.jupiter.api.Assertions.assertEquals"), res.Warnings[0].Message)
}

func TestRun_OutputEdits(t *testing.T) {
	units := parseAll(t, source{"CalcTest.java", calcTest})
	res, err := New(Options{Output: OutputEdits}, zap.NewNop()).Run(context.Background(), units, catalog.Default())
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Empty(t, res.Files[0].Text)
	assert.NotEmpty(t, res.Files[0].Edits)
}

func TestRun_UnknownCleanup(t *testing.T) {
	units := parseAll(t, source{"CalcTest.java", calcTest})
	_, err := New(Options{}, zap.NewNop()).Run(context.Background(), units, []string{"junit.nope"})
	var unknown *catalog.UnknownCleanupError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "junit.nope", unknown.ID)
}

func TestRun_Cancelled(t *testing.T) {
	units := parseAll(t, source{"CalcTest.java", calcTest})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}, zap.NewNop()).Run(ctx, units, catalog.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryFile_ConflictingEntriesOfOneStage(t *testing.T) {
	units := parseAll(t, source{"CalcTest.java", calcTest})
	entry := func(cleanup string) catalog.Entry {
		return catalog.Entry{
			Cleanup: cleanup,
			Stage:   catalog.StageMigrate,
			Pattern: pattern.MustNew(pattern.Annotation, "org.junit.Test", "@Test", cleanup),
		}
	}
	e := New(Options{}, zap.NewNop())
	r := e.newRun([]catalog.Entry{entry("a"), entry("b")}, parse.NewProject(units), units)

	_, err := e.queryFile(context.Background(), r, units[0])
	var conflict *query.ConflictingMatchError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, strings.HasPrefix(conflict.First, "a "), conflict.First)
	assert.True(t, strings.HasPrefix(conflict.Second, "b "), conflict.Second)
}

func TestAssemble_DropsCorrelatedGroupEverywhere(t *testing.T) {
	units := parseAll(t,
		source{"MyExternalResource.java", myResource},
		source{"MyTest.java", strings.Replace(myTest, "import org.junit.Rule;", "import org.junit.Rule;\nimport other.RegisterExtension;", 1)})
	res, err := New(Options{}, zap.NewNop()).Run(context.Background(), units, []string{catalog.ExternalResource})
	require.NoError(t, err)

	assert.Empty(t, res.Files)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "MyTest.java", res.Warnings[0].Path)
	assert.Equal(t, "MyExternalResource.java", res.Warnings[1].Path)
	for _, w := range res.Warnings {
		assert.Contains(t, w.Message, crossfile.TxnGroupPrefix)
		assert.Equal(t, catalog.ExternalResource, w.Cleanup)
	}
}
