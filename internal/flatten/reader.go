package flatten

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// CleanReader wraps r so a leading UTF-8 byte order mark is dropped and
// bytes that are not valid UTF-8 read as '?'. Bodies posted from Windows
// tools and legacy form encoders carry both.
func CleanReader(r io.Reader) io.Reader {
	return &cleanReader{src: bufio.NewReader(r)}
}

type cleanReader struct {
	src     *bufio.Reader
	started bool
}

func (c *cleanReader) Read(p []byte) (int, error) {
	if !c.started {
		c.started = true
		if head, err := c.src.Peek(len(byteOrderMark)); err == nil && bytes.Equal(head, byteOrderMark) {
			if _, err := c.src.Discard(len(byteOrderMark)); err != nil {
				return 0, err
			}
		}
	}

	n := 0
	for n < len(p) {
		r, size, err := c.src.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if r == utf8.RuneError && size == 1 {
			r = '?'
		}
		width := utf8.RuneLen(r)
		if n+width > len(p) {
			// The rune goes out with the next read.
			if err := c.src.UnreadRune(); err != nil {
				return n, err
			}
			if n == 0 {
				return 0, io.ErrShortBuffer
			}
			break
		}
		n += utf8.EncodeRune(p[n:], r)
	}
	return n, nil
}
