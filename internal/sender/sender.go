// Package sender serializes local files into a batch and pushes it over a connection.
package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/SpatiumPortae/ferry/internal/conn"
	"github.com/SpatiumPortae/ferry/internal/logger"
	"github.com/SpatiumPortae/ferry/protocol/frame"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrTooManyFiles = errors.New("too many files for one batch")

// Result describes what was written to the connection.
type Result struct {
	Declared int   // file_count written in the header
	Sent     int   // file records written
	Bytes    int64 // content bytes written
	Skipped  error // per-file failures, combined with multierr
}

type Sender struct {
	fs           afero.Fs
	legacy       bool
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

type Option func(*Sender)

// WithFs sets the filesystem local files are read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Sender) {
		s.fs = fs
	}
}

// WithLegacyHeader announces len(paths) in the header before reading any file,
// so a file that cannot be read leaves the declared count larger than the
// number of records sent. Receivers will stall or misparse such a batch.
func WithLegacyHeader(legacy bool) Option {
	return func(s *Sender) {
		s.legacy = legacy
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(s *Sender) {
		s.dialTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sender) {
		s.writeTimeout = d
	}
}

func New(opts ...Option) *Sender {
	s := &Sender{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer connects to addr, sends paths as one batch and half-closes the
// connection once everything has been written.
func (s *Sender) Transfer(ctx context.Context, addr string, paths []string) (Result, error) {
	lgr := logger.FromContextOrNop(ctx)
	c, err := conn.Dial(ctx, addr, s.dialTimeout, conn.WithWriteTimeout(s.writeTimeout))
	if err != nil {
		return Result{}, err
	}
	defer c.Close()
	lgr.Info("connected", zap.String("address", addr))

	res, err := s.Send(ctx, c, paths)
	if err != nil {
		return res, err
	}
	if err := c.CloseWrite(); err != nil {
		return res, fmt.Errorf("closing write side: %w", err)
	}
	return res, nil
}

// Send writes paths to w as one batch. A file that cannot be read, or does not
// fit the wire format, is reported in Result.Skipped and the batch continues.
// Errors writing to w are returned.
func (s *Sender) Send(ctx context.Context, w io.Writer, paths []string) (Result, error) {
	if s.legacy {
		return s.sendLegacy(ctx, w, paths)
	}
	lgr := logger.FromContextOrNop(ctx)
	var res Result

	files := make([]frame.File, 0, len(paths))
	for _, path := range paths {
		f, err := s.load(path)
		if err != nil {
			lgr.Warn("skipping file", zap.String("path", path), zap.Error(err))
			res.Skipped = multierr.Append(res.Skipped, err)
			continue
		}
		files = append(files, f)
	}
	if len(files) > frame.MaxFiles {
		return res, fmt.Errorf("%w: %d files, at most %d", ErrTooManyFiles, len(files), frame.MaxFiles)
	}

	fw := frame.NewWriter(w)
	lgr.Info("preparing batch", zap.Int("count", len(files)))
	if err := fw.WriteCount(len(files)); err != nil {
		return res, err
	}
	res.Declared = len(files)
	for _, f := range files {
		if err := s.write(ctx, fw, &res, f); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Sender) sendLegacy(ctx context.Context, w io.Writer, paths []string) (Result, error) {
	lgr := logger.FromContextOrNop(ctx)
	var res Result
	if len(paths) > frame.MaxFiles {
		return res, fmt.Errorf("%w: %d files, at most %d", ErrTooManyFiles, len(paths), frame.MaxFiles)
	}

	fw := frame.NewWriter(w)
	lgr.Info("preparing batch", zap.Int("count", len(paths)))
	if err := fw.WriteCount(len(paths)); err != nil {
		return res, err
	}
	res.Declared = len(paths)
	for _, path := range paths {
		f, err := s.load(path)
		if err != nil {
			lgr.Warn("skipping file, declared count no longer matches", zap.String("path", path), zap.Error(err))
			res.Skipped = multierr.Append(res.Skipped, err)
			continue
		}
		if err := s.write(ctx, fw, &res, f); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Sender) write(ctx context.Context, fw *frame.Writer, res *Result, f frame.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.FromContextOrNop(ctx).Info("sending file", zap.String("file", f.Name), zap.Int("bytes", len(f.Content)))
	if err := fw.WriteFile(f); err != nil {
		return err
	}
	res.Sent++
	res.Bytes += int64(len(f.Content))
	return nil
}

// load reads a whole file into memory and names it after its final path
// component. Files too large for the wire format are rejected before reading.
func (s *Sender) load(path string) (frame.File, error) {
	name := filepath.Base(path)
	fi, err := s.fs.Stat(path)
	if err != nil {
		return frame.File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := frame.CheckFile(name, fi.Size()); err != nil {
		return frame.File{}, fmt.Errorf("encoding %s: %w", path, err)
	}
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return frame.File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := frame.CheckFile(name, int64(len(content))); err != nil {
		return frame.File{}, fmt.Errorf("encoding %s: %w", path, err)
	}
	return frame.File{Name: name, Content: content}, nil
}
