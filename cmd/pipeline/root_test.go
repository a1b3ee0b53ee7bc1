package main

import (
	"bytes"
	"context"
	"testing"

	"bestsellers/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"run", "audit", "last-run"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	run, _, _ := root.Find([]string{"run"})
	assert.NotNil(t, run.Flags().Lookup("dry-run"))
	assert.NotNil(t, run.Flags().Lookup("export"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRunCmd_MissingConfigFails(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", "--dry-run", "--config", "does-not-exist.json"})

	err := root.ExecuteContext(context.Background())

	assert.ErrorIs(t, err, config.ErrConfigMissing)
}
