package phase

import (
	"testing"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrdersAndDeduplicates(t *testing.T) {
	got, err := Parse([]string{"3", "1", "2.5", "1"})
	require.NoError(t, err)
	assert.Equal(t, []Phase{Inventory, Classify, Scan}, got)
}

func TestParseAll(t *testing.T) {
	got, err := Parse([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, []Phase{Inventory, Tokens, Classify, Scan}, got)
}

func TestParseRejectsUnknownPhase(t *testing.T) {
	_, err := Parse([]string{"1", "2"})
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}

func TestParseRejectsEmptySelection(t *testing.T) {
	_, err := Parse(nil)
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}
