// internal/extract/brackets.go
package extract

import (
	"fmt"

	"github.com/akulagin/spbebonds/internal/utils"
)

// MatchBrackets returns the substring of text from start to the delimiter
// matching text[start], which must be '{' or '['. Nested delimiters are
// counted; delimiter characters inside quoted strings are skipped, and
// backslash-escaped quotes inside those strings never toggle string state.
//
// Reaching end-of-text with the nesting count above zero means the page
// format changed; that is reported as UNBALANCED_DELIMITER, not retried.
func MatchBrackets(text string, start int) (string, error) {
	if start < 0 || start >= len(text) {
		return "", utils.NewError(utils.ErrCodeUnbalancedDelimiter,
			fmt.Sprintf("start offset %d out of range [0,%d)", start, len(text)))
	}

	open := text[start]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return "", utils.NewError(utils.ErrCodeUnbalancedDelimiter,
			fmt.Sprintf("no opening delimiter at offset %d, found %q", start, open))
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", utils.NewError(utils.ErrCodeUnbalancedDelimiter,
		fmt.Sprintf("end of text reached with %d unclosed %q", depth, open))
}
