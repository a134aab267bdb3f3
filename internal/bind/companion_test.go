package bind

import (
	"testing"

	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// companions binds m, applies d and returns the fragments of c.
func (f *fixture) companions(t *testing.T, c Companion, d Derivation, m query.Match) (pattern.Bindings, []Fragment, error) {
	t.Helper()
	b, err := f.bind(t, m)
	require.NoError(t, err)
	if err := f.extractor.Derive(d, m, b); err != nil {
		return b, nil, err
	}
	frags, err := f.extractor.Companions(c, m, b)
	return b, frags, err
}

const expectedSource = `package p;

import org.junit.Test;

class T {
    @Test(expected = IllegalStateException.class)
    public void fails() {
        int x = 1;
        throw new IllegalStateException();
    }

    @Test(expected = IllegalStateException.class)
    public void inline() { throw new IllegalStateException(); }

    @Test(expected = TYPE)
    public void notALiteral() {}
}
`

func TestCompanions_ExpectedBody(t *testing.T) {
	f := load(t, expectedSource)
	ms := f.matches(t, pattern.Annotation, "org.junit.Test", "@Test(expected = $exception)")
	require.Len(t, ms, 3)

	_, frags, err := f.companions(t, CompanionExpected, DeriveNone, ms[0])
	require.NoError(t, err)
	require.Len(t, frags, 1)
	body := frags[0]
	assert.Equal(t, "{\n        int x = 1;\n        throw new IllegalStateException();\n    }", f.unit.TextOf(body.Span))
	assert.Equal(t, "{\n        assertThrows($exception, () -> {$statements        });\n    }", body.Template)
	assert.Equal(t, "IllegalStateException.class", body.Bindings["exception"].Text)
	assert.Equal(t, "\n        int x = 1;\n        throw new IllegalStateException();\n", body.Bindings["statements"].Text)

	_, frags, err = f.companions(t, CompanionExpected, DeriveNone, ms[1])
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "{ assertThrows($exception, () -> {$statements}); }", frags[0].Template)
	assert.Equal(t, " throw new IllegalStateException(); ", frags[0].Bindings["statements"].Text)

	_, _, err = f.companions(t, CompanionExpected, DeriveNone, ms[2])
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "expected exception is not a class literal", bindErr.Reason)
}

func TestCompanions_None(t *testing.T) {
	f := load(t, expectedSource)
	ms := f.matches(t, pattern.Annotation, "org.junit.Test", "@Test(expected = $exception)")
	_, frags, err := f.companions(t, CompanionNone, DeriveNone, ms[0])
	require.NoError(t, err)
	assert.Empty(t, frags)

	_, err = f.extractor.Companions(Companion("nope"), ms[0], pattern.Bindings{})
	assert.Error(t, err)
}

const folderSource = `package p;

import java.io.File;
import org.junit.ClassRule;
import org.junit.Rule;
import org.junit.rules.TemporaryFolder;

class T {
    @Rule
    public final TemporaryFolder folder = new TemporaryFolder();

    @ClassRule
    public static TemporaryFolder shared = new TemporaryFolder();

    void t() throws Exception {
        File data = folder.newFile("data.txt");
        File dir = this.folder.newFolder("out");
        File root = folder.getRoot();
        File other = shared.getRoot();
    }
}
`

func TestDeriveTempDir(t *testing.T) {
	f := load(t, folderSource)
	ms := f.matches(t, pattern.FieldDeclaration, "org.junit.rules.TemporaryFolder", "")
	require.Len(t, ms, 2)

	b, frags, err := f.companions(t, CompanionTempDir, DeriveTempDir, ms[0])
	require.NoError(t, err)
	assert.Equal(t, "@TempDir\n    public Path folder;", b["tempDirField"].Text)
	assert.Equal(t, "java.nio.file.Files", b["filesImport"].Text)

	require.Len(t, frags, 3)
	var calls, templates []string
	for _, fr := range frags {
		calls = append(calls, f.unit.TextOf(fr.Span))
		templates = append(templates, fr.Template)
	}
	assert.Equal(t, []string{`folder.newFile("data.txt")`, `this.folder.newFolder("out")`, "folder.getRoot()"}, calls)
	assert.Equal(t, []string{
		"Files.createFile($folder.resolve($args)).toFile()",
		"Files.createDirectories($folder.resolve($args)).toFile()",
		"$folder.toFile()",
	}, templates)
	assert.Equal(t, "this.folder", frags[1].Bindings["folder"].Text)
	assert.Equal(t, `"out"`, frags[1].Bindings["args"].Text)

	b, frags, err = f.companions(t, CompanionTempDir, DeriveTempDir, ms[1])
	require.NoError(t, err)
	assert.Equal(t, "@TempDir\n    public static Path shared;", b["tempDirField"].Text)
	assert.NotContains(t, b, "filesImport")
	require.Len(t, frags, 1)
	assert.Equal(t, "shared.getRoot()", f.unit.TextOf(frags[0].Span))
}

func TestDeriveTempDir_Refused(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		use    string
		reason string
	}{
		{
			name:   "constructor argument",
			field:  "@Rule public TemporaryFolder folder = new TemporaryFolder(new File(\"x\"));",
			reason: "TemporaryFolder is not created with its default constructor",
		},
		{
			name:   "class rule on instance field",
			field:  "@ClassRule public TemporaryFolder folder = new TemporaryFolder();",
			reason: "rule annotation does not fit the field",
		},
		{
			name:   "not a rule",
			field:  "public TemporaryFolder folder = new TemporaryFolder();",
			reason: "field is not a single rule",
		},
		{
			name:   "unsupported call",
			field:  "@Rule public TemporaryFolder folder = new TemporaryFolder();",
			use:    "folder.create();",
			reason: "TemporaryFolder.create has no Path counterpart",
		},
		{
			name:   "passed along",
			field:  "@Rule public TemporaryFolder folder = new TemporaryFolder();",
			use:    "keep(folder);",
			reason: "TemporaryFolder field used outside a call",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := "package p;\n\nimport java.io.File;\nimport org.junit.ClassRule;\nimport org.junit.Rule;\nimport org.junit.rules.TemporaryFolder;\n\nclass T {\n    " +
				tt.field + "\n\n    void t() throws Exception {\n        " + tt.use + "\n    }\n\n    void keep(Object o) {}\n}\n"
			f := load(t, code)
			ms := f.matches(t, pattern.FieldDeclaration, "org.junit.rules.TemporaryFolder", "")
			_, _, err := f.companions(t, CompanionTempDir, DeriveTempDir, ms[0])
			var bindErr *BindError
			require.ErrorAs(t, err, &bindErr)
			assert.Equal(t, tt.reason, bindErr.Reason)
		})
	}
}
