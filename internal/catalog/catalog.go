package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/bind"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/rewrite"
)

// Cleanup ids.
const (
	Test             = "junit.test"
	Timeout          = "junit.timeout"
	Expected         = "junit.expected"
	Ignore           = "junit.ignore"
	Lifecycle        = "junit.lifecycle"
	Category         = "junit.category"
	Assert           = "junit.assert"
	Assume           = "junit.assume"
	AssertOptimize   = "junit.assert.optimize"
	AssumeOptimize   = "junit.assume.optimize"
	AssertSwap       = "junit.assert.swap"
	ExternalResource = "junit.rule.externalresource"
	TemporaryFolder  = "junit.rule.temporaryfolder"
)

// Stage orders entries. Stages run in ascending order and every stage skips nodes
// claimed by an earlier one, so optimizations that also migrate run before the plain
// migration of the same calls.
type Stage int

const (
	StageOptimize Stage = iota
	StageSwap
	StageMigrate
	StageRule
)

func (s Stage) String() string {
	switch s {
	case StageOptimize:
		return "optimize"
	case StageSwap:
		return "swap"
	case StageMigrate:
		return "migrate"
	case StageRule:
		return "rule"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Cleanup describes one user selectable cleanup.
type Cleanup struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Default     bool   `yaml:"default" json:"default"`
	// CrossFile cleanups hand their matches to the cross-file coordinator instead of the
	// rewrite processor.
	CrossFile bool `yaml:"cross_file,omitempty" json:"cross_file,omitempty"`
}

// Entry is one (pattern, rule) pair of the table.
type Entry struct {
	Cleanup string
	Stage   Stage
	Pattern pattern.Pattern
	Rule    rewrite.RewriteRule

	// Requires and Excludes select the entry depending on the other enabled cleanups.
	Requires []string
	Excludes []string
	Derive   bind.Derivation
	// Companion adds edits outside the matched node, applied or dropped with its edit.
	Companion bind.Companion
	// Swappable names the operands the constant tie-break may exchange when AssertSwap
	// is enabled.
	Swappable [2]string
	// SwapOnly entries produce an edit only when the tie-break exchanges the operands.
	SwapOnly  bool
	CrossFile bool
}

// Label identifies the entry in conflict reports and logs.
func (e Entry) Label() string {
	return e.Cleanup + " " + e.Pattern.String()
}

// UnknownCleanupError reports a cleanup id that is not in the catalog.
type UnknownCleanupError struct {
	ID string
}

func (e *UnknownCleanupError) Error() string {
	return fmt.Sprintf("unknown cleanup %q (known: %s)", e.ID, strings.Join(IDs(), ", "))
}

var cleanups = []Cleanup{
	{ID: Test, Default: true, Description: "Replace org.junit.Test with the Jupiter @Test"},
	{ID: Timeout, Default: true, Description: "Turn @Test(timeout = ms) into @Test plus @Timeout"},
	{ID: Expected, Default: true, Description: "Turn @Test(expected = X.class) into @Test plus assertThrows around the method body"},
	{ID: Ignore, Default: true, Description: "Replace @Ignore with @Disabled, keeping the reason"},
	{ID: Lifecycle, Default: true, Description: "Replace @Before, @After, @BeforeClass and @AfterClass with their Jupiter counterparts"},
	{ID: Category, Default: true, Description: "Replace @Category(X.class) with @Tag(\"X\")"},
	{ID: Assert, Default: true, Description: "Move org.junit.Assert calls to Assertions with the message last"},
	{ID: Assume, Default: true, Description: "Move org.junit.Assume calls to Assumptions with the message last"},
	{ID: AssertOptimize, Default: true, Description: "Simplify assertTrue/assertFalse over negations, comparisons, null checks and equals calls"},
	{ID: AssumeOptimize, Default: true, Description: "Simplify assumeTrue/assumeFalse over negations"},
	{ID: AssertSwap, Default: false, Description: "Put a lone constant operand of an equality assertion in the expected position"},
	{ID: ExternalResource, Default: true, CrossFile: true, Description: "Turn @Rule/@ClassRule ExternalResource fields into @RegisterExtension callbacks, across files"},
	{ID: TemporaryFolder, Default: true, Description: "Replace a TemporaryFolder rule with a @TempDir Path field and rewrite its calls"},
}

var table = buildTable()

// Cleanups returns the catalog's cleanups in table order.
func Cleanups() []Cleanup {
	out := make([]Cleanup, len(cleanups))
	copy(out, cleanups)
	return out
}

// Lookup finds a cleanup by id.
func Lookup(id string) (Cleanup, bool) {
	for _, c := range cleanups {
		if c.ID == id {
			return c, true
		}
	}
	return Cleanup{}, false
}

// IDs lists every cleanup id in table order.
func IDs() []string {
	ids := make([]string, len(cleanups))
	for i, c := range cleanups {
		ids[i] = c.ID
	}
	return ids
}

// Default lists the cleanups enabled when none are configured.
func Default() []string {
	var ids []string
	for _, c := range cleanups {
		if c.Default {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Entries returns the entries of the enabled cleanups in stage order. Unknown ids are an
// error.
func Entries(enabled []string) ([]Entry, error) {
	on := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		if _, ok := Lookup(id); !ok {
			return nil, &UnknownCleanupError{ID: id}
		}
		on[id] = true
	}

	var out []Entry
	for _, e := range table {
		if !on[e.Cleanup] || !selected(e, on) {
			continue
		}
		if on[AssertSwap] && e.Swappable[0] != "" {
			e.Rule.Swap = e.Swappable
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out, nil
}

func selected(e Entry, on map[string]bool) bool {
	for _, id := range e.Requires {
		if !on[id] {
			return false
		}
	}
	for _, id := range e.Excludes {
		if on[id] {
			return false
		}
	}
	return true
}

// Fingerprint identifies a set of enabled cleanups independent of order.
func Fingerprint(enabled []string) string {
	ids := make([]string, len(enabled))
	copy(ids, enabled)
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return strings.Join(out, ",")
}
