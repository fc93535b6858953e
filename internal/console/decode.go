package console

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding resolves a WHATWG encoding label ("utf-8", "latin1", ...).
// An empty label is UTF-8.
func Encoding(label string) (encoding.Encoding, error) {
	if label == "" {
		return unicode.UTF8, nil
	}
	return htmlindex.Get(label)
}

// decoder turns arbitrary byte chunks into text. A multi-byte sequence
// split across chunks is held back until the rest arrives; invalid input
// becomes U+FFFD.
type decoder struct {
	t       transform.Transformer
	pending []byte
}

func newDecoder(enc encoding.Encoding) *decoder {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &decoder{t: enc.NewDecoder()}
}

func (d *decoder) decode(p []byte, atEOF bool) (string, error) {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(src, d.pending...)
	src = append(src, p...)
	d.pending = nil

	var out strings.Builder
	dst := make([]byte, 4*len(src)+utf8.UTFMax)

	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return out.String(), nil
		default:
			return out.String(), err
		}
	}
}

// flush decodes whatever is still held back.
func (d *decoder) flush() (string, error) {
	if len(d.pending) == 0 {
		return "", nil
	}
	return d.decode(nil, true)
}

// release drops held-back bytes and resets the transformer.
func (d *decoder) release() {
	d.pending = nil
	d.t.Reset()
}
