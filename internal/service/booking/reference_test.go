package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReference_Format(t *testing.T) {
	ref, err := NewReference()
	require.NoError(t, err)
	assert.Len(t, ref, referenceLength)
	for _, c := range ref {
		assert.True(t, strings.ContainsRune(referenceAlphabet, c), "unexpected character %q", c)
	}
}

func TestNewReference_AvoidsAmbiguousCharacters(t *testing.T) {
	for _, c := range "01IO" {
		assert.False(t, strings.ContainsRune(referenceAlphabet, c), "%q is too easy to misread", c)
	}
}

func TestNewReference_Distinct(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		ref, err := NewReference()
		require.NoError(t, err)
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s after %d draws", ref, i)
		seen[ref] = struct{}{}
	}
}
