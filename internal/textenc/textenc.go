// Package textenc turns uploaded bytes into text by attempting an ordered
// list of character encodings, ending in a lossy UTF-8 fallback that always
// succeeds.
package textenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackName identifies the permissive decode applied when every
// configured attempt fails. Invalid bytes are dropped, not replaced.
const FallbackName = "utf-8 (lossy)"

// DefaultAttempts is the decode ladder used when none is configured.
var DefaultAttempts = []string{"utf-8", "latin-1", "cp1252", "iso-8859-1"}

// codepages maps attempt names to single-byte decoders. utf-8 is handled
// separately through strict validation.
var codepages = map[string]*charmap.Charmap{
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"cp1252":       charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
}

// Decoder applies an ordered list of encoding attempts to raw input.
type Decoder struct {
	attempts []string
}

// NewDecoder builds a decoder for the given attempt names, falling back to
// DefaultAttempts when the list is empty. Unknown names are rejected so a
// config typo fails at startup rather than per request.
func NewDecoder(attempts []string) (*Decoder, error) {
	if len(attempts) == 0 {
		attempts = DefaultAttempts
	}
	for _, name := range attempts {
		if name != "utf-8" && codepages[name] == nil {
			return nil, fmt.Errorf("unknown encoding %q", name)
		}
	}
	return &Decoder{attempts: attempts}, nil
}

// Decode returns the decoded, NFC-normalized text and the name of the
// encoding that produced it. The first attempt that decodes without error
// wins; if all fail the lossy fallback is applied, so Decode never fails.
func (d *Decoder) Decode(data []byte) (string, string) {
	for _, name := range d.attempts {
		if text, ok := decodeAs(name, data); ok {
			return text, name
		}
	}
	return strings.ToValidUTF8(string(data), ""), FallbackName
}

// Attempts returns the configured ladder, fallback excluded.
func (d *Decoder) Attempts() []string {
	return d.attempts
}

func decodeAs(name string, data []byte) (string, bool) {
	if name == "utf-8" {
		if !utf8.Valid(data) {
			return "", false
		}
		return string(norm.NFC.Bytes(data)), true
	}

	decoded, _, err := transform.Bytes(transform.Chain(codepages[name].NewDecoder(), norm.NFC), data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
