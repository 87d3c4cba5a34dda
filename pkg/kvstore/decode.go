package kvstore

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "utf-8"

// ErrUnknownEncoding indicates an encoding label could not be resolved.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Decoder turns raw bytes into text. Invalid sequences are replaced with
// U+FFFD; decoding never fails.
type Decoder struct {
	name string
	enc  encoding.Encoding
}

// NewDecoder resolves an encoding label such as "utf-8", "latin1" or
// "shift_jis". An empty label selects DefaultEncoding.
func NewDecoder(label string) (*Decoder, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultEncoding
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return &Decoder{name: name, enc: enc}, nil
}

// Name returns the canonical name of the encoding.
func (d *Decoder) Name() string { return d.name }

// Decode converts raw to text, substituting U+FFFD for undecodable input.
func (d *Decoder) Decode(raw []byte) string {
	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		// Transformers that reject input instead of substituting fall back to
		// a byte-wise UTF-8 replacement of the original bytes.
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(out)
}
