package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRootSubcommands(t *testing.T) {
	root := buildRoot()

	want := []string{
		"init", "invoke", "channel", "status", "cleanup",
		"register-agent", "register-channel", "webui",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.NotEqual(t, root, cmd, name)
	}
}

func TestRootPersistentFlags(t *testing.T) {
	root := buildRoot()
	assert.NotNil(t, root.PersistentFlags().Lookup("base-dir"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestWebUIForegroundHidden(t *testing.T) {
	root := buildRoot()
	cmd, _, err := root.Find([]string{"webui"})
	require.NoError(t, err)
	fg := cmd.Flags().Lookup("foreground")
	require.NotNil(t, fg)
	assert.True(t, fg.Hidden)
}

func TestInvokeRequiresTwoArgs(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"invoke", "onlyagent"})
	assert.Error(t, root.Execute())
}
