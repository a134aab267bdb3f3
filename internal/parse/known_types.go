package parse

// Library types the binder knows without sources. On-demand imports and java.lang are
// resolved against this registry; anything else must come from the project.
var knownPackages = map[string][]string{
	"java.lang": {
		"AssertionError", "Boolean", "Byte", "CharSequence", "Character", "Class", "Comparable",
		"Deprecated", "Double", "Enum", "Error", "Exception", "Float", "FunctionalInterface",
		"IllegalArgumentException", "IllegalStateException", "Integer", "Iterable", "Long", "Math",
		"NullPointerException", "Number", "Object", "Override", "Runnable", "RuntimeException",
		"SafeVarargs", "Short", "String", "StringBuilder", "SuppressWarnings", "System", "Thread",
		"Throwable", "UnsupportedOperationException", "Void",
	},
	"java.util": {
		"ArrayList", "Arrays", "Collection", "Collections", "HashMap", "HashSet", "Iterator",
		"LinkedList", "List", "Map", "Objects", "Optional", "Set",
	},
	"java.util.concurrent": {"TimeUnit"},
	"java.io":              {"File", "IOException", "InputStream", "OutputStream"},
	"java.nio.file":        {"Files", "Path", "Paths"},
	"org.junit": {
		"After", "AfterClass", "Assert", "Assume", "Before", "BeforeClass", "ClassRule",
		"ComparisonFailure", "FixMethodOrder", "Ignore", "Rule", "Test",
	},
	"org.junit.rules": {
		"ErrorCollector", "ExpectedException", "ExternalResource", "RuleChain", "TemporaryFolder",
		"TestName", "TestRule", "TestWatcher", "Timeout", "Verifier",
	},
	"org.junit.jupiter.api": {
		"AfterAll", "AfterEach", "Assertions", "Assumptions", "BeforeAll", "BeforeEach", "Disabled",
		"DisplayName", "Nested", "Tag", "Test", "TestInstance", "Timeout",
	},
	"org.junit.jupiter.api.io": {"TempDir"},
	"org.junit.jupiter.api.extension": {
		"AfterAllCallback", "AfterEachCallback", "BeforeAllCallback", "BeforeEachCallback",
		"ExtendWith", "Extension", "ExtensionContext", "RegisterExtension",
	},
	"org.hamcrest":    {"CoreMatchers", "Matcher", "MatcherAssert", "Matchers"},
	"junit.framework": {"Assert", "TestCase"},
}

var junitAssertMembers = []string{
	"assertArrayEquals", "assertEquals", "assertFalse", "assertNotEquals", "assertNotNull",
	"assertNotSame", "assertNull", "assertSame", "assertThat", "assertThrows", "assertTrue", "fail",
}

// Static members of known library types, used to resolve unqualified calls through
// on-demand static imports.
var knownStaticMembers = map[string][]string{
	"org.junit.Assert": junitAssertMembers,
	"org.junit.Assume": {"assumeFalse", "assumeNoException", "assumeNotNull", "assumeThat", "assumeTrue"},
	"org.junit.jupiter.api.Assertions": append([]string{
		"assertAll", "assertDoesNotThrow", "assertInstanceOf", "assertIterableEquals",
		"assertLinesMatch", "assertTimeout",
	}, junitAssertMembers...),
	"org.junit.jupiter.api.Assumptions": {"assumeFalse", "assumeTrue", "assumingThat"},
	"org.hamcrest.MatcherAssert":        {"assertThat"},
	"org.hamcrest.CoreMatchers": {
		"allOf", "anyOf", "anything", "containsString", "equalTo", "hasItem", "instanceOf", "is",
		"not", "notNullValue", "nullValue", "sameInstance",
	},
	"org.hamcrest.Matchers": {
		"allOf", "anyOf", "anything", "closeTo", "containsString", "empty", "equalTo", "hasItem",
		"hasSize", "instanceOf", "is", "not", "notNullValue", "nullValue", "sameInstance",
	},
	"junit.framework.Assert":   junitAssertMembers,
	"junit.framework.TestCase": junitAssertMembers,
	"java.lang.Math":           {"abs", "max", "min", "pow", "sqrt"},
	"java.util.Arrays":         {"asList", "fill", "sort"},
	"java.util.Objects":        {"equals", "hash", "isNull", "nonNull", "requireNonNull"},
}

// Superclasses of known library types, enough to recognise rule subclasses.
var knownSuperclasses = map[string]string{
	"org.junit.rules.TemporaryFolder": "org.junit.rules.ExternalResource",
	"org.junit.rules.ErrorCollector":  "org.junit.rules.Verifier",
	"junit.framework.TestCase":        "junit.framework.Assert",
}

var primitiveTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "double": true,
	"float": true, "int": true, "long": true, "short": true,
}

// IsKnownType reports whether qualifiedName is in the library registry.
func IsKnownType(qualifiedName string) bool {
	pkg, name := splitQualified(qualifiedName)
	for _, n := range knownPackages[pkg] {
		if n == name {
			return true
		}
	}
	return false
}

func HasKnownStaticMember(owner, member string) bool {
	for _, m := range knownStaticMembers[owner] {
		if m == member {
			return true
		}
	}
	return false
}

// IsPrimitive reports whether t names a Java primitive type.
func IsPrimitive(t string) bool {
	return primitiveTypes[t]
}

func splitQualified(name string) (string, string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
