package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_ListsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "run")
	assert.Contains(t, out, "export")
	assert.Contains(t, out, "check")
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRoot_AcceptsValidFormats(t *testing.T) {
	for _, format := range ValidFormats {
		assert.True(t, isValidFormat(format))
	}
	assert.False(t, isValidFormat("yaml"))
}

func TestCheck_RequiresThreeArgs(t *testing.T) {
	_, err := execute(t, "check", "s1", "c1")
	assert.Error(t, err)
}
