// Package receiver decodes a batch from a connection and persists each file as
// soon as it has been read.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/SpatiumPortae/ferry/internal/logger"
	"github.com/SpatiumPortae/ferry/internal/store"
	"github.com/SpatiumPortae/ferry/protocol/frame"
	"go.uber.org/zap"
)

var ErrInvalidBatchHeader = errors.New("invalid batch header")

// Saver persists a received file.
type Saver interface {
	Save(name string, content []byte) error
}

// Summary describes the outcome of one received batch.
type Summary struct {
	Declared int      `json:"declared"` // file_count announced by the sender
	Received int      `json:"received"` // file records read off the stream, short ones included
	Saved    int      `json:"saved"`    // files persisted
	Short    int      `json:"short"`    // files cut off by the peer closing the stream
	Rejected int      `json:"rejected"` // files refused because of an unsafe name
	Files    []string `json:"files"`    // names of persisted files, in stream order
}

type Receiver struct {
	saver     Saver
	chunkSize int
}

type Option func(*Receiver)

// WithChunkSize caps the size of each read of file content.
func WithChunkSize(n int) Option {
	return func(r *Receiver) {
		r.chunkSize = n
	}
}

func New(saver Saver, opts ...Option) *Receiver {
	r := &Receiver{saver: saver, chunkSize: frame.DefaultChunkSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Receive reads exactly one batch from src. Framing failures abort the batch
// and are returned; a stream closed by the peer in the middle of a file's
// content ends the batch after saving the partial file. A read that fails for
// any other reason, or a cancelled ctx, aborts the batch without saving the
// file being read. Persistence failures are logged and the
// batch continues with the next file.
func (r *Receiver) Receive(ctx context.Context, src io.Reader) (Summary, error) {
	lgr := logger.FromContextOrNop(ctx)
	fr := frame.NewReader(src, frame.WithChunkSize(r.chunkSize))

	var sum Summary
	count, err := fr.ReadCount()
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrInvalidBatchHeader, err)
	}
	sum.Declared = count
	lgr.Info("receiving files", zap.Int("count", count))

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		name, err := fr.ReadName()
		if err != nil {
			return sum, fmt.Errorf("reading name of file %d/%d: %w", i+1, count, err)
		}
		content, err := fr.ReadContent()
		short := frame.IsShortContent(err)
		if err != nil && !short {
			return sum, fmt.Errorf("reading content of %q: %w", name, err)
		}
		if short && ctx.Err() != nil {
			return sum, fmt.Errorf("reading content of %q: %w", name, ctx.Err())
		}
		sum.Received++

		fileLogger := lgr.With(zap.String("file", name), zap.Int("bytes", len(content)))
		if short {
			sum.Short++
			fileLogger.Warn("stream closed before end of file, keeping partial content", zap.Error(err))
		}
		r.persist(fileLogger, &sum, name, content)
		if short {
			break
		}
	}
	return sum, nil
}

func (r *Receiver) persist(lgr *zap.Logger, sum *Summary, name string, content []byte) {
	if err := store.ValidateName(name); err != nil {
		sum.Rejected++
		lgr.Warn("rejecting file", zap.Error(err))
		return
	}
	if err := r.saver.Save(name, content); err != nil {
		lgr.Error("saving file", zap.Error(err))
		return
	}
	sum.Saved++
	sum.Files = append(sum.Files, name)
	lgr.Info("received file")
}
