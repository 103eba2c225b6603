package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dallosh/analysis/pkg/config"
)

func newTestRoot(t *testing.T, yaml string) *cobra.Command {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dallosh.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	cmd := RootCmd()
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.PersistentFlags().Set("env-file", filepath.Join(dir, "missing.env")))
	require.NoError(t, cmd.PersistentFlags().Set("config", cfgPath))
	return cmd
}

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should inject the YAML config into the command context", func(t *testing.T) {
		root := newTestRoot(t, "stream:\n  heartbeat: 5s\n")
		require.NoError(t, SetupGlobalConfig(root))
		cfg := config.FromContext(root.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, 5*time.Second, cfg.Stream.Heartbeat)
		assert.Equal(t, 5006, cfg.Server.Port)
	})

	t.Run("Should fail on an invalid YAML file", func(t *testing.T) {
		root := newTestRoot(t, "stream: [\n")
		assert.Error(t, SetupGlobalConfig(root))
	})
}

func TestRootCmd(t *testing.T) {
	t.Run("Should expose serve and migrate", func(t *testing.T) {
		root := RootCmd()
		names := map[string]bool{}
		for _, c := range root.Commands() {
			names[c.Name()] = true
		}
		assert.True(t, names["serve"])
		assert.True(t, names["migrate"])
		status, _, err := root.Find([]string{"migrate", "status"})
		require.NoError(t, err)
		assert.Equal(t, "status", status.Name())
	})
}
