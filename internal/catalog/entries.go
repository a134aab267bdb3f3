package catalog

import (
	"strings"

	"github.com/armchr/junitmig/internal/bind"
	"github.com/armchr/junitmig/internal/crossfile"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/rewrite"
)

const (
	junitTest       = "org.junit.Test"
	junitIgnore     = "org.junit.Ignore"
	junitAssert     = "org.junit.Assert"
	junitAssume     = "org.junit.Assume"
	junitCategory   = "org.junit.experimental.categories.Category"
	jupiter         = "org.junit.jupiter.api."
	jupiterTest     = jupiter + "Test"
	jupiterTimeout  = jupiter + "Timeout"
	jupiterTag      = jupiter + "Tag"
	assertions      = jupiter + "Assertions"
	assumptions     = jupiter + "Assumptions"
	matcherAssert   = "org.hamcrest.MatcherAssert"
	timeUnit        = "java.util.concurrent.TimeUnit"
	assertThrows    = jupiter + "Assertions.assertThrows"
	tempDir         = jupiter + "io.TempDir"
	temporaryFolder = "org.junit.rules.TemporaryFolder"
	targetPrefix    = "[$target.]"
)

var swapOperands = [2]string{"expected", "actual"}

func newEntry(cleanup string, stage Stage, kind pattern.Kind, owner, template string, rule rewrite.RewriteRule) Entry {
	return Entry{
		Cleanup: cleanup,
		Stage:   stage,
		Pattern: pattern.MustNew(kind, owner, template, cleanup),
		Rule:    rule,
	}
}

func buildTable() []Entry {
	var t []Entry
	t = append(t, annotationEntries()...)
	t = append(t, optimizeEntries()...)
	t = append(t, swapEntries()...)
	t = append(t, assertEntries()...)
	t = append(t, assumeEntries()...)
	t = append(t, ruleEntries()...)
	return t
}

// ruleEntries migrate @Rule fields. TemporaryFolder is handled in place before the
// general ExternalResource migration sees it.
func ruleEntries() []Entry {
	tempDirField := newEntry(TemporaryFolder, StageMigrate, pattern.FieldDeclaration, temporaryFolder, "", rewrite.RewriteRule{
		ReplaceWith:   "$tempDirField",
		AddImports:    []string{tempDir, "java.nio.file.Path", "[$filesImport]"},
		RemoveImports: []string{crossfile.RuleAnnotation, crossfile.ClassRuleAnnotation, temporaryFolder},
	})
	tempDirField.Derive = bind.DeriveTempDir
	tempDirField.Companion = bind.CompanionTempDir

	return []Entry{
		tempDirField,
		{
			Cleanup:   ExternalResource,
			Stage:     StageRule,
			Pattern:   pattern.MustNew(pattern.FieldDeclaration, crossfile.ExternalResource, "", ExternalResource),
			CrossFile: true,
		},
	}
}

func annotationEntries() []Entry {
	retarget := func(cleanup, owner, template, replacement, target string) Entry {
		return newEntry(cleanup, StageMigrate, pattern.Annotation, owner, template, rewrite.RewriteRule{
			ReplaceWith:  replacement,
			RetargetType: target,
		})
	}

	const withTimeout = "@$target @Timeout(value = $timeoutValue, unit = TimeUnit.$timeoutUnit)"
	timeout := newEntry(Timeout, StageMigrate, pattern.Annotation, junitTest, "@Test(timeout = $timeout)", rewrite.RewriteRule{
		ReplaceWith:  withTimeout,
		RetargetType: jupiterTest,
		AddImports:   []string{jupiterTimeout, timeUnit},
	})
	timeout.Derive = bind.DeriveTimeout

	expected := newEntry(Expected, StageMigrate, pattern.Annotation, junitTest, "@Test(expected = $exception)", rewrite.RewriteRule{
		ReplaceWith:      "@$target",
		RetargetType:     jupiterTest,
		AddStaticImports: []string{assertThrows},
	})
	expected.Companion = bind.CompanionExpected

	expectedTimeout := newEntry(Expected, StageMigrate, pattern.Annotation, junitTest, "@Test(expected = $exception, timeout = $timeout)", rewrite.RewriteRule{
		ReplaceWith:      withTimeout,
		RetargetType:     jupiterTest,
		AddImports:       []string{jupiterTimeout, timeUnit},
		AddStaticImports: []string{assertThrows},
	})
	expectedTimeout.Derive = bind.DeriveTimeout
	expectedTimeout.Companion = bind.CompanionExpected
	expectedTimeout.Requires = []string{Timeout}

	category := newEntry(Category, StageMigrate, pattern.Annotation, junitCategory, "@Category($value)", rewrite.RewriteRule{
		ReplaceWith:   "$tags",
		AddImports:    []string{jupiterTag},
		RemoveImports: []string{junitCategory},
	})
	category.Derive = bind.DeriveCategory

	entries := []Entry{
		retarget(Test, junitTest, "@Test", "@$target", jupiterTest),
		timeout,
		expected,
		expectedTimeout,
		retarget(Ignore, junitIgnore, "@Ignore", "@$target", jupiter+"Disabled"),
		// covers @Ignore(value = "...") as well
		retarget(Ignore, junitIgnore, "@Ignore($value)", "@$target($value)", jupiter+"Disabled"),
		category,
	}
	for _, pair := range [][2]string{
		{"Before", "BeforeEach"},
		{"After", "AfterEach"},
		{"BeforeClass", "BeforeAll"},
		{"AfterClass", "AfterAll"},
	} {
		entries = append(entries, retarget(Lifecycle, "org.junit."+pair[0], "@"+pair[0], "@$target", jupiter+pair[1]))
	}
	return entries
}

// condition is one shape of a boolean assertion argument and the assertion it turns into.
type condition struct {
	arg       string
	whenTrue  string
	whenFalse string
	args      string
	swap      [2]string
}

// comparisons are the conditions with a dedicated assertion.
var comparisons = []condition{
	{arg: "$expected == $actual:primitive", whenTrue: "Equals", whenFalse: "NotEquals", args: "$expected, $actual", swap: swapOperands},
	{arg: "$expected == $actual:reference", whenTrue: "Same", whenFalse: "NotSame", args: "$expected, $actual", swap: swapOperands},
	{arg: "$expected != $actual:primitive", whenTrue: "NotEquals", whenFalse: "Equals", args: "$expected, $actual", swap: swapOperands},
	{arg: "$expected != $actual:reference", whenTrue: "NotSame", whenFalse: "Same", args: "$expected, $actual", swap: swapOperands},
	{arg: "$value == null", whenTrue: "Null", whenFalse: "NotNull", args: "$value"},
	{arg: "$value != null", whenTrue: "NotNull", whenFalse: "Null", args: "$value"},
	// the receiver of equals is the value under test
	{arg: "$actual.equals($expected)", whenTrue: "Equals", whenFalse: "NotEquals", args: "$expected, $actual", swap: swapOperands},
}

// negated wraps a comparison in a negation: assertFalse(!(a == b)) is assertEquals.
func negated(c condition) condition {
	arg, constraint, _ := strings.Cut(c.arg, ":")
	out := c
	out.arg = "!(" + arg + ")"
	if constraint != "" {
		out.arg += ":" + constraint
	}
	out.whenTrue, out.whenFalse = c.whenFalse, c.whenTrue
	return out
}

var assertConditions = func() []condition {
	// a plain negation only unwraps operands no other shape covers
	out := []condition{{arg: "!$cond:opaque", whenTrue: "False", whenFalse: "True", args: "$cond"}}
	out = append(out, comparisons...)
	for _, c := range comparisons {
		out = append(out, negated(c))
	}
	return out
}()

var assumeConditions = []condition{
	{arg: "!$cond:!negation", whenTrue: "False", whenFalse: "True", args: "$cond"},
}

// dialect is an owner of assertion methods together with the type calls are rewritten
// against. JUnit 4 signatures take the message first, Jupiter ones last.
type dialect struct {
	owner    string
	retarget string
	inFirst  bool
	outFirst bool
	requires []string
	excludes []string
}

func dialects(legacy, modern, migrateID string) []dialect {
	return []dialect{
		{owner: legacy, retarget: modern, inFirst: true, requires: []string{migrateID}},
		{owner: legacy, retarget: legacy, inFirst: true, outFirst: true, excludes: []string{migrateID}},
		{owner: modern, retarget: modern},
	}
}

func withMessage(args string, first bool) string {
	if first {
		return "$message, " + args
	}
	return args + ", $message"
}

func conditionEntries(cleanup, prefix string, conds []condition, ds []dialect) []Entry {
	var out []Entry
	for _, d := range ds {
		for _, c := range conds {
			for _, method := range []string{"True", "False"} {
				replacement := c.whenTrue
				if method == "False" {
					replacement = c.whenFalse
				}
				for _, message := range []bool{false, true} {
					in, outArgs := c.arg, c.args
					if message {
						in = withMessage(in, d.inFirst)
						outArgs = withMessage(outArgs, d.outFirst)
					}
					e := newEntry(cleanup, StageOptimize, pattern.MethodCall, d.owner,
						prefix+method+"("+in+")",
						rewrite.RewriteRule{
							ReplaceWith:  targetPrefix + prefix + replacement + "(" + outArgs + ")",
							RetargetType: d.retarget,
						})
					e.Requires = d.requires
					e.Excludes = d.excludes
					e.Swappable = c.swap
					out = append(out, e)
				}
			}
		}
	}
	return out
}

func optimizeEntries() []Entry {
	out := conditionEntries(AssertOptimize, "assert", assertConditions, dialects(junitAssert, assertions, Assert))
	return append(out, conditionEntries(AssumeOptimize, "assume", assumeConditions, dialects(junitAssume, assumptions, Assume))...)
}

// call is a plain migration of one call shape.
type call struct {
	pattern     string
	replacement string
	swap        [2]string
}

// equalityCalls covers the overloads of an expected/actual assertion: with and without a
// message, with and without a delta.
func equalityCalls(method string) []call {
	return []call{
		{method + "($expected, $actual)", method + "($expected, $actual)", swapOperands},
		{method + "($message:String, $expected, $actual)", method + "($expected, $actual, $message)", swapOperands},
		{method + "($expected:!String, $actual, $delta)", method + "($expected, $actual, $delta)", swapOperands},
		{method + "($message, $expected, $actual, $delta)", method + "($expected, $actual, $delta, $message)", swapOperands},
	}
}

func singleArgCalls(method, arg string) []call {
	return []call{
		{method + "(" + arg + ")", method + "(" + arg + ")", [2]string{}},
		{method + "($message, " + arg + ")", method + "(" + arg + ", $message)", [2]string{}},
	}
}

func callEntries(cleanup string, stage Stage, owner, retarget string, calls []call) []Entry {
	var out []Entry
	for _, c := range calls {
		e := newEntry(cleanup, stage, pattern.MethodCall, owner, c.pattern, rewrite.RewriteRule{
			ReplaceWith:  targetPrefix + c.replacement,
			RetargetType: retarget,
		})
		e.Swappable = c.swap
		out = append(out, e)
	}
	return out
}

func wildcardImport(cleanup, owner string) Entry {
	return newEntry(cleanup, StageMigrate, pattern.ImportDeclaration, owner, "import static "+owner+".*", rewrite.RewriteRule{
		RemoveStaticImports: []string{owner + ".*"},
		ImportOnly:          true,
	})
}

func assertEntries() []Entry {
	var calls []call
	for _, m := range []string{"assertTrue", "assertFalse"} {
		calls = append(calls, singleArgCalls(m, "$cond")...)
	}
	for _, m := range []string{"assertNull", "assertNotNull"} {
		calls = append(calls, singleArgCalls(m, "$value")...)
	}
	for _, m := range []string{"assertEquals", "assertNotEquals", "assertArrayEquals"} {
		calls = append(calls, equalityCalls(m)...)
	}
	for _, m := range []string{"assertSame", "assertNotSame"} {
		calls = append(calls,
			call{m + "($expected, $actual)", m + "($expected, $actual)", swapOperands},
			call{m + "($message, $expected, $actual)", m + "($expected, $actual, $message)", swapOperands},
		)
	}
	calls = append(calls,
		call{"fail()", "fail()", [2]string{}},
		call{"fail($message)", "fail($message)", [2]string{}},
	)

	out := callEntries(Assert, StageMigrate, junitAssert, assertions, calls)
	out = append(out, callEntries(Assert, StageMigrate, junitAssert, matcherAssert, []call{
		{"assertThat($actual, $matcher)", "assertThat($actual, $matcher)", [2]string{}},
		{"assertThat($reason, $actual, $matcher)", "assertThat($reason, $actual, $matcher)", [2]string{}},
	})...)
	return append(out, wildcardImport(Assert, junitAssert))
}

func assumeEntries() []Entry {
	var calls []call
	for _, m := range []string{"assumeTrue", "assumeFalse"} {
		calls = append(calls,
			call{m + "($cond)", m + "($cond)", [2]string{}},
			call{m + "($message:String, $cond)", m + "($cond, $message)", [2]string{}},
		)
	}
	out := callEntries(Assume, StageMigrate, junitAssume, assumptions, calls)
	return append(out, wildcardImport(Assume, junitAssume))
}

// swapEntries reorder equality assertions that are not otherwise migrated: Jupiter calls,
// and JUnit 4 calls when the migration to Jupiter is disabled.
func swapEntries() []Entry {
	var out []Entry
	for _, m := range []string{"assertEquals", "assertNotEquals"} {
		modern := []call{
			{m + "($expected, $actual)", m + "($expected, $actual)", swapOperands},
			{m + "($expected, $actual, $extra)", m + "($expected, $actual, $extra)", swapOperands},
		}
		legacy := []call{
			{m + "($expected, $actual)", m + "($expected, $actual)", swapOperands},
			{m + "($message:String, $expected, $actual)", m + "($message, $expected, $actual)", swapOperands},
		}
		for _, e := range callEntries(AssertSwap, StageSwap, assertions, assertions, modern) {
			e.SwapOnly = true
			out = append(out, e)
		}
		for _, e := range callEntries(AssertSwap, StageSwap, junitAssert, junitAssert, legacy) {
			e.SwapOnly = true
			e.Excludes = []string{Assert}
			out = append(out, e)
		}
	}
	return out
}

// Describe renders an entry as "pattern -> replacement" for listings.
func Describe(e Entry) string {
	var sb strings.Builder
	sb.WriteString(e.Pattern.String())
	switch {
	case e.CrossFile:
		sb.WriteString(" -> cross-file rewrite")
	case e.Rule.ImportOnly:
		sb.WriteString(" -> import cleanup")
	default:
		sb.WriteString(" -> " + e.Rule.ReplaceWith)
	}
	return sb.String()
}
