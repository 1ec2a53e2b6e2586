package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// maxPrealloc bounds the up-front allocation for a declared content length, so
// a peer announcing a large file it never sends cannot force a large buffer.
const maxPrealloc = 1 << 20

// Reader decodes a batch from an underlying stream.
type Reader struct {
	r         *bufio.Reader
	chunkSize int
	field     [8]byte
}

type ReaderOption func(*Reader)

// WithChunkSize caps the number of bytes requested per read of file content.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	fr := &Reader{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(fr)
	}
	fr.r = bufio.NewReaderSize(r, fr.chunkSize)
	return fr
}

// ReadCount reads the file_count header of a batch.
func (r *Reader) ReadCount() (int, error) {
	return r.readLength(FileCount)
}

// ReadName reads a name_length field followed by the name itself.
func (r *Reader) ReadName() (string, error) {
	n, err := r.readLength(NameLength)
	if err != nil {
		return "", err
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r.r, name); err != nil {
		return "", &Error{Field: Name, Err: readErr(err)}
	}
	return string(name), nil
}

// ReadContent reads a content_length field followed by the content, in chunks
// of at most the configured chunk size. If the peer closes the stream before
// the declared length has been read, the bytes received so far are returned
// together with an error satisfying IsShortContent. Any other read failure,
// such as a deadline or a locally closed connection, aborts the file and the
// returned error does not satisfy IsShortContent.
func (r *Reader) ReadContent() ([]byte, error) {
	n, err := r.readLength(ContentLength)
	if err != nil {
		return nil, err
	}
	content := make([]byte, 0, min(n, maxPrealloc))
	chunk := make([]byte, r.chunkSize)
	for remaining := n; remaining > 0; {
		read, err := r.r.Read(chunk[:min(remaining, r.chunkSize)])
		content = append(content, chunk[:read]...)
		remaining -= read
		if remaining == 0 {
			break
		}
		switch {
		case errors.Is(err, io.EOF):
			return content, &Error{Field: Content, Err: ErrTruncatedStream}
		case err != nil:
			return nil, &Error{Field: Content, Err: fmt.Errorf("%w: %w", ErrReadAborted, err)}
		case read == 0:
			return nil, &Error{Field: Content, Err: fmt.Errorf("%w: %w", ErrReadAborted, io.ErrNoProgress)}
		}
	}
	return content, nil
}

// ReadFile reads a complete file record.
func (r *Reader) ReadFile() (File, error) {
	name, err := r.ReadName()
	if err != nil {
		return File{}, err
	}
	content, err := r.ReadContent()
	return File{Name: name, Content: content}, err
}

// Decode reads a complete batch. Files decoded before an error are returned
// alongside it, including a short final file.
func Decode(r io.Reader, opts ...ReaderOption) ([]File, error) {
	fr := NewReader(r, opts...)
	count, err := fr.ReadCount()
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, count)
	for i := 0; i < count; i++ {
		f, err := fr.ReadFile()
		if err != nil {
			if IsShortContent(err) {
				files = append(files, f)
			}
			return files, err
		}
		files = append(files, f)
	}
	return files, nil
}

// readLength reads a fixed-width decimal field.
func (r *Reader) readLength(field Field) (int, error) {
	b := r.field[:field.Width()]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return 0, &Error{Field: field, Err: readErr(err)}
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, &Error{Field: field, Err: fmt.Errorf("%w: %q", ErrMalformedLength, b)}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// readErr maps end-of-stream conditions onto ErrTruncatedStream.
func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedStream
	}
	return fmt.Errorf("%w: %w", ErrTruncatedStream, err)
}
