// frame.go specifies the length-prefixed wire format of a ferry batch.
//
//	file_count     : 4 ASCII digits
//	repeat file_count times:
//	  name_length    : 4 ASCII digits
//	  name           : name_length raw bytes
//	  content_length : 8 ASCII digits
//	  content        : content_length raw bytes
//
// All lengths are zero-padded decimal. The stream carries no response frame.
package frame

import (
	"errors"
	"fmt"
)

// Field identifies a field of the wire format.
type Field int

const (
	FileCount     Field = iota // Number of files in the batch
	NameLength                 // Byte length of the following name
	Name                       // Raw name bytes
	ContentLength              // Byte length of the following content
	Content                    // Raw content bytes
)

const (
	MaxFiles         = 9999
	MaxNameLength    = 9999
	MaxContentLength = 99999999

	DefaultChunkSize = 4096
)

var (
	ErrFieldOverflow   = errors.New("value does not fit in field")
	ErrTruncatedStream = errors.New("stream ended before field was complete")
	ErrMalformedLength = errors.New("length field contains non-digit bytes")
	ErrReadAborted     = errors.New("read aborted before field was complete")
)

// File is a single named file within a batch.
type File struct {
	Name    string
	Content []byte
}

// Error reports which field of the stream failed to encode or decode.
type Error struct {
	Field Field
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Field.Name(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Width returns the number of decimal digits of a length field, 0 for payload fields.
func (f Field) Width() int {
	switch f {
	case FileCount, NameLength:
		return 4
	case ContentLength:
		return 8
	default:
		return 0
	}
}

// Max returns the largest value a length field can carry.
func (f Field) Max() int {
	switch f {
	case FileCount:
		return MaxFiles
	case NameLength:
		return MaxNameLength
	case ContentLength:
		return MaxContentLength
	default:
		return 0
	}
}

func (f Field) Name() string {
	switch f {
	case FileCount:
		return "file_count"
	case NameLength:
		return "name_length"
	case Name:
		return "name"
	case ContentLength:
		return "content_length"
	case Content:
		return "content"
	default:
		return ""
	}
}

// IsShortContent reports whether err is a stream the peer closed in the middle
// of a file's content, in which case the bytes read so far are still usable.
func IsShortContent(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Field == Content && errors.Is(fe.Err, ErrTruncatedStream)
}
