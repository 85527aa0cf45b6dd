package ioutil

import (
	"errors"
	"io"
)

// ErrTooLarge reports that a reader held more bytes than the caller allows.
var ErrTooLarge = errors.New("input exceeds size limit")

// ReadAtMost reads all of r up to limit bytes. It returns ErrTooLarge when
// more data remains past the limit, so callers can distinguish an oversized
// payload from a transport failure.
func ReadAtMost(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
