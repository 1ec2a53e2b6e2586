package sender_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/SpatiumPortae/ferry/internal/sender"
	"github.com/SpatiumPortae/ferry/protocol/frame"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestSend(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/home/user/docs/a.txt": "hi",
		"/tmp/b.bin":            strings.Repeat("\x00", 1000),
	})
	ctx := context.Background()

	t.Run("names are base names", func(t *testing.T) {
		var buf bytes.Buffer
		res, err := sender.New(sender.WithFs(fs)).Send(ctx, &buf, []string{"/home/user/docs/a.txt", "/tmp/b.bin"})
		require.NoError(t, err)
		assert.NoError(t, res.Skipped)
		assert.Equal(t, 2, res.Declared)
		assert.Equal(t, 2, res.Sent)
		assert.EqualValues(t, 1002, res.Bytes)

		files, err := frame.Decode(&buf)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "a.txt", files[0].Name)
		assert.Equal(t, []byte("hi"), files[0].Content)
		assert.Equal(t, "b.bin", files[1].Name)
		assert.Equal(t, make([]byte, 1000), files[1].Content)
	})

	t.Run("unreadable file is skipped and count stays consistent", func(t *testing.T) {
		var buf bytes.Buffer
		res, err := sender.New(sender.WithFs(fs)).Send(ctx, &buf, []string{"/missing", "/tmp/b.bin", "/also-missing"})
		require.NoError(t, err)
		assert.Len(t, multierr.Errors(res.Skipped), 2)
		assert.Equal(t, 1, res.Declared)
		assert.Equal(t, 1, res.Sent)

		files, err := frame.Decode(&buf)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "b.bin", files[0].Name)
	})

	t.Run("legacy header desynchronizes", func(t *testing.T) {
		var buf bytes.Buffer
		res, err := sender.New(sender.WithFs(fs), sender.WithLegacyHeader(true)).Send(ctx, &buf, []string{"/home/user/docs/a.txt", "/missing"})
		require.NoError(t, err)
		assert.Error(t, res.Skipped)
		assert.Equal(t, 2, res.Declared)
		assert.Equal(t, 1, res.Sent)
		assert.True(t, strings.HasPrefix(buf.String(), "0002"))

		files, err := frame.Decode(&buf)
		assert.ErrorIs(t, err, frame.ErrTruncatedStream)
		assert.Len(t, files, 1)
	})

	t.Run("empty batch", func(t *testing.T) {
		var buf bytes.Buffer
		res, err := sender.New(sender.WithFs(fs)).Send(ctx, &buf, nil)
		require.NoError(t, err)
		assert.Zero(t, res.Declared)
		assert.Equal(t, "0000", buf.String())
	})

	t.Run("too many files", func(t *testing.T) {
		paths := make([]string, frame.MaxFiles+1)
		for i := range paths {
			paths[i] = "/tmp/b.bin"
		}
		var buf bytes.Buffer
		_, err := sender.New(sender.WithFs(fs), sender.WithLegacyHeader(true)).Send(ctx, &buf, paths)
		assert.ErrorIs(t, err, sender.ErrTooManyFiles)
		assert.Zero(t, buf.Len())
	})
}

// oversizedFs reports every file as one byte larger than the wire format
// allows and fails the test if a file is opened for reading.
type oversizedFs struct {
	afero.Fs
	t *testing.T
}

type oversizedInfo struct {
	os.FileInfo
}

func (oversizedInfo) Size() int64 { return frame.MaxContentLength + 1 }

func (o oversizedFs) Stat(name string) (os.FileInfo, error) {
	fi, err := o.Fs.Stat(name)
	if err != nil {
		return nil, err
	}
	return oversizedInfo{fi}, nil
}

func (o oversizedFs) Open(name string) (afero.File, error) {
	o.t.Errorf("%s opened although it is too large to send", name)
	return o.Fs.Open(name)
}

func TestSendOversizedFile(t *testing.T) {
	fs := oversizedFs{Fs: memFs(t, map[string]string{"/huge.iso": "x"}), t: t}
	var buf bytes.Buffer
	res, err := sender.New(sender.WithFs(fs)).Send(context.Background(), &buf, []string{"/huge.iso"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Skipped, frame.ErrFieldOverflow)
	assert.Zero(t, res.Sent)
	assert.Equal(t, "0000", buf.String())
}

func TestTransfer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(received)
			return
		}
		defer c.Close()
		// ReadAll only returns once the sender has half-closed.
		b, _ := io.ReadAll(c)
		received <- b
	}()

	fs := memFs(t, map[string]string{"/x/a.txt": "hi"})
	s := sender.New(sender.WithFs(fs), sender.WithDialTimeout(time.Second))
	res, err := s.Transfer(context.Background(), ln.Addr().String(), []string{"/x/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	select {
	case b := <-received:
		assert.Equal(t, "0001"+"0005a.txt"+"00000002hi", string(b))
	case <-time.After(5 * time.Second):
		t.Fatal("server did not observe end of stream")
	}
}
