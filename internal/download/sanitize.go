// Package download stores prospectus documents on disk under a
// per-issuer/per-security directory tree, with a bounded worker pool and
// atomic file writes.
package download

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"strings"
)

// maxComponentLength bounds one path component; long issuer names are
// truncated with a short hash of the original appended so distinct names
// stay distinct.
const maxComponentLength = 120

// windowsReserved device names cannot be used as file or directory names on
// Windows regardless of extension.
var windowsReserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// SanitizeComponent turns an arbitrary name, issuer names with quotes and
// slashes included, into a single safe path component. Non-ASCII letters are
// preserved. The function is pure: equal inputs always produce equal
// outputs, so re-runs resolve to the same directories.
func SanitizeComponent(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return "_"
	}

	if windowsReserved[strings.ToLower(cleaned)] {
		cleaned = "_" + cleaned
	}

	if len(cleaned) > maxComponentLength {
		// The hash is taken over the untruncated name so two long names with
		// an identical prefix cannot collide after truncation.
		h := fnv.New32a()
		h.Write([]byte(cleaned))
		suffix := fmt.Sprintf("_%08x", h.Sum32())
		cleaned = truncateUTF8(cleaned, maxComponentLength-len(suffix)) + suffix
	}
	return cleaned
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// FileNameFromURL derives a sanitized file name from the final segment of a
// document URL's path, defaulting to document.pdf when the URL carries none.
func FileNameFromURL(rawURL string) string {
	var name string
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	if !strings.Contains(name, ".") {
		name += ".pdf"
	}
	return SanitizeComponent(name)
}
