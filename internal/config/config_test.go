package config_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	def := config.GetDefault()
	assert.Equal(t, "127.0.0.1:25565", def.Addr())
	assert.Equal(t, "transferred-files", def.OutputDir)
	assert.Zero(t, def.ReadTimeout)
	assert.False(t, def.LegacyHeader)

	m := def.Map()
	assert.Equal(t, 25565, m["port"])
	assert.Equal(t, "127.0.0.1", m["address"])
	assert.Len(t, m, 10)
}

func TestYamlRoundTrip(t *testing.T) {
	def := config.GetDefault()
	def.ReadTimeout = 30 * time.Second
	def.StatusAddr = ":8080"

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(def.Yaml())))

	var got config.Config
	require.NoError(t, v.Unmarshal(&got))
	assert.Equal(t, def, got)
}

func TestAddrIPv6(t *testing.T) {
	cfg := config.GetDefault()
	cfg.Address = "::1"
	assert.Equal(t, "[::1]:25565", cfg.Addr())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, config.GetDefault().Validate())

	ok := config.GetDefault()
	ok.Address = "::1"
	ok.StatusAddr = "[::1]:8080"
	ok.Port = 0
	assert.NoError(t, ok.Validate())

	tests := map[string]func(c *config.Config){
		"port out of range":   func(c *config.Config) { c.Port = 70000 },
		"empty address":       func(c *config.Config) { c.Address = "" },
		"bad address":         func(c *config.Config) { c.Address = "not a host" },
		"empty output dir":    func(c *config.Config) { c.OutputDir = "" },
		"negative chunk":      func(c *config.Config) { c.ChunkSize = -1 },
		"negative timeout":    func(c *config.Config) { c.ReadTimeout = -time.Second },
		"status without port": func(c *config.Config) { c.StatusAddr = "localhost" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := config.GetDefault()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), config.ErrInvalidConfig)
		})
	}
}
