package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "docgen", cmd.Use)
	assert.Contains(t, cmd.Long, "printable HTML fallback")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"list", "generate", "batch", "preview"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"content-dir", "with-seed", "backend", "timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestGenerateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	generateCmd, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)

	variantFlag := generateCmd.Flags().Lookup("variant")
	require.NotNil(t, variantFlag)
	assert.Equal(t, "1page", variantFlag.DefValue)

	outputFlag := generateCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestBatchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	batchCmd, _, err := cmd.Find([]string{"batch"})
	require.NoError(t, err)

	for _, name := range []string{"variant", "category", "output"} {
		assert.NotNil(t, batchCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestPreviewCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	previewCmd, _, err := cmd.Find([]string{"preview"})
	require.NoError(t, err)

	printFlag := previewCmd.Flags().Lookup("print")
	require.NotNil(t, printFlag)
	assert.Equal(t, "false", printFlag.DefValue)

	openFlag := previewCmd.Flags().Lookup("open")
	require.NotNil(t, openFlag)
	assert.Equal(t, "false", openFlag.DefValue)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitFailure, "generation failed", errors.New("timeout"))
	assert.Equal(t, "generation failed: timeout", wrapped.Error())
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}
