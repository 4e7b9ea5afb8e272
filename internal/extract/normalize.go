// internal/extract/normalize.go
// Package extract recovers embedded JSON payloads from server-rendered HTML.
// Pages ship their data as framework bootstrap blobs whose string literals
// may be escaped several times and whose wrapper shape varies, so extraction
// is split into three layers: escape normalization, bracket matching and a
// prioritized list of locator strategies.
package extract

import (
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/akulagin/spbebonds/internal/utils"
)

// maxEscapeLayers bounds the peeling loop; real pages carry one or two
// layers, anything deeper indicates garbage input.
const maxEscapeLayers = 5

// DecodeText converts raw page bytes into a UTF-8 string. The exchange
// occasionally serves windows-1251 encoded error pages, so that charset is
// tried before giving up.
func DecodeText(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil || !utf8.Valid(decoded) {
		return "", utils.NewError(utils.ErrCodeNormalization, "page content is not decodable text")
	}
	return string(decoded), nil
}

// Normalize reduces any number of string-escaping layers in text to a single
// level of JSON string-escaping, ready for the bracket matcher. It is
// idempotent: applying it to already-normalized text returns the text
// unchanged. It fails only on undecodable input, never on "nothing to do".
func Normalize(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", utils.NewError(utils.ErrCodeNormalization, "input is not valid UTF-8 text")
	}

	// HTML entities around the payload boundary hide the structural quotes
	// from the escape detector, so they go first.
	if strings.Contains(text, "&quot;") || strings.Contains(text, "&#34;") {
		text = html.UnescapeString(text)
	}

	for i := 0; i < maxEscapeLayers; i++ {
		if !hasEscapeLayer(text) {
			break
		}
		text = unescapeLayer(text)
	}
	return text, nil
}

// hasEscapeLayer reports whether the structural JSON tokens themselves are
// still escaped. In properly normalized text a `\"` sequence only occurs
// inside string literals, so plain `{"`/`["` openings are present; when every
// opening appears as `{\"`/`[\"` one more layer remains.
func hasEscapeLayer(text string) bool {
	escaped := strings.Count(text, `{\"`) + strings.Count(text, `[\"`)
	if escaped == 0 {
		return false
	}
	plain := strings.Count(text, `{"`) + strings.Count(text, `["`)
	return plain == 0
}

// unescapeLayer decodes one layer of backslash escaping, interpreting the
// text as the contents of a double-quoted JS/JSON string literal. Unknown
// escape sequences are kept verbatim.
func unescapeLayer(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}

		next := text[i+1]
		switch next {
		case '"', '\\', '/':
			b.WriteByte(next)
			i++
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 'u':
			if i+5 < len(text) {
				if v, err := strconv.ParseUint(text[i+2:i+6], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += 5
					continue
				}
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
