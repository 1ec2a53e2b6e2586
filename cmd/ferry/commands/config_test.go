package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useConfigFile points viper at a fresh config file holding cnf.
func useConfigFile(t *testing.T, cnf config.Config) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, cnf.Yaml(), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	return path
}

func runConfig(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := Config()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigCommand(t *testing.T) {
	t.Run("path", func(t *testing.T) {
		path := useConfigFile(t, config.GetDefault())
		out, _, err := runConfig(t, "path")
		require.NoError(t, err)
		assert.Equal(t, path+"\n", out)
	})

	t.Run("view warns about invalid settings", func(t *testing.T) {
		cnf := config.GetDefault()
		cnf.Port = 70000
		useConfigFile(t, cnf)
		out, errOut, err := runConfig(t, "view")
		require.NoError(t, err)
		assert.Contains(t, out, "70000")
		assert.Contains(t, errOut, config.ErrInvalidConfig.Error())
	})

	t.Run("resolved view of invalid settings fails", func(t *testing.T) {
		cnf := config.GetDefault()
		cnf.ChunkSize = -1
		useConfigFile(t, cnf)
		_, _, err := runConfig(t, "view", "--resolved")
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("reset restores defaults", func(t *testing.T) {
		cnf := config.GetDefault()
		cnf.Port = 70000
		cnf.OutputDir = "elsewhere"
		path := useConfigFile(t, cnf)

		_, _, err := runConfig(t, "reset")
		require.NoError(t, err)
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, config.GetDefault().Yaml(), b)
		assert.Equal(t, 25565, viper.GetInt("port"))
		assert.Equal(t, "transferred-files", viper.GetString("output_dir"))
	})
}
