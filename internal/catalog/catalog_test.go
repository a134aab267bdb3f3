package catalog

import (
	"testing"

	"github.com/armchr/junitmig/internal/bind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanups_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for _, id := range IDs() {
		assert.False(t, seen[id], "duplicate cleanup %s", id)
		seen[id] = true
	}
	for _, e := range table {
		_, ok := Lookup(e.Cleanup)
		assert.True(t, ok, "entry %s names an unknown cleanup", e.Label())
	}
}

func TestDefault_ExcludesSwap(t *testing.T) {
	defaults := Default()
	assert.Contains(t, defaults, Assert)
	assert.Contains(t, defaults, ExternalResource)
	assert.NotContains(t, defaults, AssertSwap)
	assert.Contains(t, defaults, Expected)
	assert.Contains(t, defaults, TemporaryFolder)
}

func TestEntries_ExpectedTimeoutNeedsTimeout(t *testing.T) {
	templates := func(enabled ...string) []string {
		entries, err := Entries(enabled)
		require.NoError(t, err)
		var out []string
		for _, e := range entries {
			if e.Cleanup == Expected {
				out = append(out, e.Pattern.String())
				assert.Equal(t, bind.CompanionExpected, e.Companion)
			}
		}
		return out
	}
	assert.Len(t, templates(Expected), 1)
	assert.Len(t, templates(Expected, Timeout), 2)
}

func TestEntries_TemporaryFolderBeforeExternalResource(t *testing.T) {
	entries, err := Entries([]string{ExternalResource, TemporaryFolder})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, TemporaryFolder, entries[0].Cleanup)
	assert.Equal(t, bind.DeriveTempDir, entries[0].Derive)
	assert.Less(t, entries[0].Stage, entries[1].Stage)
	assert.True(t, entries[1].CrossFile)
}

func TestEntries_UnknownCleanup(t *testing.T) {
	_, err := Entries([]string{Assert, "junit.bogus"})
	var unknown *UnknownCleanupError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "junit.bogus", unknown.ID)
	assert.Contains(t, err.Error(), Assert)
}

func TestEntries_StageOrderAndLabels(t *testing.T) {
	for _, enabled := range [][]string{Default(), IDs(), {AssertOptimize}, {AssertSwap}} {
		entries, err := Entries(enabled)
		require.NoError(t, err)
		require.NotEmpty(t, entries)

		labels := make(map[string]bool)
		for i, e := range entries {
			if i > 0 {
				assert.LessOrEqual(t, entries[i-1].Stage, e.Stage)
			}
			assert.False(t, labels[e.Label()], "duplicate entry %s", e.Label())
			labels[e.Label()] = true
		}
	}
}

func TestEntries_DialectSelection(t *testing.T) {
	retargets := func(enabled ...string) map[string]bool {
		entries, err := Entries(enabled)
		require.NoError(t, err)
		out := make(map[string]bool)
		for _, e := range entries {
			if e.Cleanup == AssertOptimize && e.Pattern.QualifiedType == junitAssert {
				out[e.Rule.RetargetType] = true
			}
		}
		return out
	}

	assert.Equal(t, map[string]bool{assertions: true}, retargets(AssertOptimize, Assert))
	assert.Equal(t, map[string]bool{junitAssert: true}, retargets(AssertOptimize))
}

func TestEntries_SwapOptIn(t *testing.T) {
	count := func(enabled ...string) (swapping, swapOnly int) {
		entries, err := Entries(enabled)
		require.NoError(t, err)
		for _, e := range entries {
			if e.Rule.Swap[0] != "" {
				swapping++
			}
			if e.SwapOnly {
				swapOnly++
			}
		}
		return swapping, swapOnly
	}

	swapping, swapOnly := count(Assert)
	assert.Zero(t, swapping)
	assert.Zero(t, swapOnly)

	swapping, swapOnly = count(Assert, AssertSwap)
	assert.Positive(t, swapping)
	assert.Positive(t, swapOnly)

	// with the migration enabled only Jupiter calls need a swap-only entry
	entries, err := Entries([]string{Assert, AssertSwap})
	require.NoError(t, err)
	for _, e := range entries {
		if e.SwapOnly {
			assert.Equal(t, assertions, e.Pattern.QualifiedType)
		}
	}
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint([]string{Assert, Test, Assert}), Fingerprint([]string{Test, Assert}))
	assert.Equal(t, "junit.assert,junit.test", Fingerprint([]string{Test, Assert}))
	assert.Empty(t, Fingerprint(nil))
}

func TestDescribe(t *testing.T) {
	entries, err := Entries([]string{ExternalResource, Assert})
	require.NoError(t, err)
	var cross, importOnly bool
	for _, e := range entries {
		d := Describe(e)
		cross = cross || (e.CrossFile && assert.Contains(t, d, "cross-file"))
		importOnly = importOnly || (e.Rule.ImportOnly && assert.Contains(t, d, "import cleanup"))
	}
	assert.True(t, cross)
	assert.True(t, importOnly)
}
