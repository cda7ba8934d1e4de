package core

// streaming.go cleans up uploaded text before it reaches the CSV reader.
//
// Spreadsheet exports routinely start with a UTF-8 byte order mark and
// occasionally carry stray Latin-1 bytes. Both are handled on the fly so the
// file is never buffered whole.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// utf8BOM is the byte order mark Windows tools prepend to UTF-8 files.
const utf8BOM = '\uFEFF'

// SanitizingReader strips a leading BOM and replaces every invalid UTF-8 byte
// with '?'. Valid multi-byte sequences split across reads are preserved.
type SanitizingReader struct {
	src        *bufio.Reader
	bomChecked bool

	// carry holds encoded bytes of a rune that did not fit the caller's buffer.
	carry []byte

	// Replaced counts invalid bytes seen so far.
	Replaced int
}

// NewSanitizingReader wraps r.
func NewSanitizingReader(r io.Reader) *SanitizingReader {
	return &SanitizingReader{src: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (s *SanitizingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !s.bomChecked {
		s.bomChecked = true
		if r, _, err := s.src.ReadRune(); err == nil && r != utf8BOM {
			if uerr := s.src.UnreadRune(); uerr != nil {
				return 0, uerr
			}
		} else if err != nil {
			return 0, err
		}
	}

	n := copy(p, s.carry)
	s.carry = s.carry[n:]

	var buf [utf8.UTFMax]byte
	for n < len(p) {
		r, size, err := s.src.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		var enc []byte
		if r == utf8.RuneError && size == 1 {
			s.Replaced++
			enc = []byte{'?'}
		} else {
			w := utf8.EncodeRune(buf[:], r)
			enc = buf[:w]
		}

		c := copy(p[n:], enc)
		n += c
		if c < len(enc) {
			s.carry = append(s.carry[:0], enc[c:]...)
			break
		}

		// Return what is already decoded rather than block on a slow source.
		if s.src.Buffered() == 0 {
			break
		}
	}

	return n, nil
}
