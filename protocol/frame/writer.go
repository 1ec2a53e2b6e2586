package frame

import (
	"fmt"
	"io"
	"strconv"
)

// Writer encodes a batch onto an underlying stream.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteCount writes the file_count header of a batch.
func (w *Writer) WriteCount(n int) error {
	b, err := appendLength(nil, FileCount, n)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("writing %s: %w", FileCount.Name(), err)
	}
	return nil
}

// WriteFile writes a single file record. Both lengths are validated before
// anything is written, so a file that does not fit leaves the stream untouched.
func (w *Writer) WriteFile(f File) error {
	if err := CheckFile(f.Name, int64(len(f.Content))); err != nil {
		return err
	}
	header := make([]byte, 0, NameLength.Width()+len(f.Name)+ContentLength.Width())
	header, _ = appendLength(header, NameLength, len(f.Name))
	header = append(header, f.Name...)
	header, _ = appendLength(header, ContentLength, len(f.Content))

	if _, err := w.w.Write(header); err != nil {
		return fmt.Errorf("writing header of %q: %w", f.Name, err)
	}
	if len(f.Content) == 0 {
		return nil
	}
	if _, err := w.w.Write(f.Content); err != nil {
		return fmt.Errorf("writing content of %q: %w", f.Name, err)
	}
	return nil
}

// CheckFile returns an error if a file with the given name and size cannot be
// represented on the wire.
func CheckFile(name string, size int64) error {
	if len(name) > MaxNameLength {
		return &Error{Field: NameLength, Err: ErrFieldOverflow}
	}
	if size < 0 || size > MaxContentLength {
		return &Error{Field: ContentLength, Err: ErrFieldOverflow}
	}
	return nil
}

// Encode writes a complete batch.
func Encode(w io.Writer, files []File) error {
	fw := NewWriter(w)
	if err := fw.WriteCount(len(files)); err != nil {
		return err
	}
	for _, f := range files {
		if err := fw.WriteFile(f); err != nil {
			return err
		}
	}
	return nil
}

// appendLength appends n to b as a zero-padded decimal of the field's width.
func appendLength(b []byte, field Field, n int) ([]byte, error) {
	if n < 0 || n > field.Max() {
		return b, &Error{Field: field, Err: ErrFieldOverflow}
	}
	digits := strconv.Itoa(n)
	for i := len(digits); i < field.Width(); i++ {
		b = append(b, '0')
	}
	return append(b, digits...), nil
}
