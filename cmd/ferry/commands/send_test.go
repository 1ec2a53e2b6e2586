package commands

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/SpatiumPortae/ferry/internal/server"
	"github.com/SpatiumPortae/ferry/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSendCommand(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	out := t.TempDir()
	srv := server.NewServer(store.New(afero.NewOsFs(), out), zaptest.NewLogger(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	src := t.TempDir()
	path := filepath.Join(src, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	cmd := Send("v1.2.3")
	cmd.SetArgs([]string{"--port", port, path, filepath.Join(src, "missing.txt")})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Eventually(t, func() bool {
		return srv.Stats().FilesSaved == 1
	}, 5*time.Second, 10*time.Millisecond)
	b, err := os.ReadFile(filepath.Join(out, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestSendCommandConnectionRefused(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	cmd := Send("v1.2.3")
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--port", port, "whatever.txt"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestSendCommandRequiresFiles(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	cmd := Send("v1.2.3")
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
