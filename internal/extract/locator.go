// internal/extract/locator.go
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// Strategy is one way of locating and parsing the embedded payload in a
// normalized page text. Strategies are independent so a new wrapper shape
// can be supported by adding one without touching the others.
type Strategy interface {
	Name() string
	Extract(text string) (*types.ExtractionResult, error)
}

// Locator tries an ordered list of strategies against a raw page and returns
// the first result that yields at least one record.
type Locator struct {
	strategies []Strategy
	logger     utils.Logger
}

// NewLocator creates a locator with the default strategy order: known
// wrapper key, known content-array key, generic balanced-array scan.
func NewLocator(logger utils.Logger) *Locator {
	return &Locator{
		strategies: []Strategy{
			&wrapperKeyStrategy{key: "pageData"},
			&contentArrayStrategy{key: "content"},
			&genericArrayStrategy{maxProbes: 200},
		},
		logger: logger,
	}
}

// bootstrapBlob matches one framework flight-data push call whose argument
// is a double-quoted string carrying the escaped payload.
var bootstrapBlob = regexp.MustCompile(`self\.__next_f\.push\(\[1,"((?s:.+?))"\]\)`)

// ExtractPage recovers the payload from one fetched page. Candidate texts
// are the normalized bootstrap blobs (most specific first) and the
// normalized page as a whole; each strategy is tried against each candidate
// in priority order.
func (l *Locator) ExtractPage(page string) (*types.ExtractionResult, error) {
	var blobs []string

	for _, m := range bootstrapBlob.FindAllStringSubmatch(page, -1) {
		blob, err := Normalize(m[1])
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}

	whole, err := Normalize(page)
	if err != nil {
		return nil, err
	}
	candidates := append(append([]string{}, blobs...), whole)

	for _, strat := range l.strategies {
		for _, text := range candidates {
			result, err := strat.Extract(text)
			if err != nil || result == nil || len(result.Records) == 0 {
				continue
			}
			result.Strategy = strat.Name()
			if l.logger != nil {
				l.logger.Debugf("payload located via strategy %q: %d records", strat.Name(), len(result.Records))
			}
			return result, nil
		}
	}

	// The last bootstrap blob is the payload that failed to parse; excerpt
	// it rather than the document head.
	excerptSource := whole
	if len(blobs) > 0 {
		excerptSource = blobs[len(blobs)-1]
	}
	return nil, utils.NewError(utils.ErrCodeExtractionFailed, "no strategy recovered a payload").
		WithContext("excerpt", pageExcerpt(excerptSource))
}

// pageExcerpt returns the leading fragment of a page logged for diagnosis
// when every strategy fails.
func pageExcerpt(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 200 {
		return trimmed[:200]
	}
	return trimmed
}

// wrapperKeyStrategy locates a known top-level wrapper key immediately
// followed by a JSON object and unwraps its content structure.
type wrapperKeyStrategy struct {
	key string
}

func (s *wrapperKeyStrategy) Name() string { return "wrapper-key:" + s.key }

func (s *wrapperKeyStrategy) Extract(text string) (*types.ExtractionResult, error) {
	marker := `"` + s.key + `"`

	for offset := 0; ; {
		idx := strings.Index(text[offset:], marker)
		if idx < 0 {
			return nil, nil
		}
		idx += offset
		offset = idx + len(marker)

		start := nextObjectStart(text, idx+len(marker))
		if start < 0 {
			continue
		}

		body, err := MatchBrackets(text, start)
		if err != nil {
			return nil, err
		}

		var wrapper map[string]interface{}
		if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
			continue
		}

		envelope := unwrapEnvelope(wrapper)
		records := recordsFromValue(envelope["content"])
		if len(records) == 0 {
			continue
		}

		return &types.ExtractionResult{
			Records:    records,
			Pagination: paginationFromMap(envelope),
		}, nil
	}
}

// contentArrayStrategy locates the content-array key directly; the object
// around it may not be wrapped, or may not be syntactically complete in the
// page at all.
type contentArrayStrategy struct {
	key string
}

func (s *contentArrayStrategy) Name() string { return "content-key:" + s.key }

func (s *contentArrayStrategy) Extract(text string) (*types.ExtractionResult, error) {
	marker := `"` + s.key + `"`

	for offset := 0; ; {
		idx := strings.Index(text[offset:], marker)
		if idx < 0 {
			return nil, nil
		}
		idx += offset
		offset = idx + len(marker)

		start := nextArrayStart(text, idx+len(marker))
		if start < 0 {
			continue
		}

		body, err := MatchBrackets(text, start)
		if err != nil {
			return nil, err
		}

		var items []interface{}
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			continue
		}

		records := recordsFromValue(items)
		if len(records) == 0 {
			continue
		}

		return &types.ExtractionResult{
			Records:    records,
			Pagination: paginationAround(text, idx, start+len(body)),
		}, nil
	}
}

// genericArrayStrategy is the fallback: probe every candidate '[' for a
// balanced array of objects at least one of which carries an ISIN-shaped
// value.
type genericArrayStrategy struct {
	maxProbes int
}

func (s *genericArrayStrategy) Name() string { return "generic-array-scan" }

var isinShape = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

func (s *genericArrayStrategy) Extract(text string) (*types.ExtractionResult, error) {
	probes := 0

	for i := 0; i < len(text) && probes < s.maxProbes; i++ {
		if text[i] != '[' {
			continue
		}
		probes++

		body, err := MatchBrackets(text, i)
		if err != nil {
			// A stray unbalanced '[' must not hide a later balanced payload.
			continue
		}

		var items []interface{}
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			continue
		}

		records := recordsFromValue(items)
		if len(records) != len(items) || len(records) == 0 {
			continue
		}
		if !anyRecordHasISIN(records) {
			continue
		}

		return &types.ExtractionResult{
			Records:    records,
			Pagination: paginationAround(text, i, i+len(body)),
		}, nil
	}
	return nil, nil
}

// anyRecordHasISIN reports whether some record carries an ISIN-shaped value.
func anyRecordHasISIN(records []types.RawRecord) bool {
	for _, rec := range records {
		for _, v := range rec {
			if s, ok := v.(string); ok && isinShape.MatchString(strings.TrimSpace(s)) {
				return true
			}
		}
	}
	return false
}

// unwrapEnvelope digs through known nesting shapes (a repeated wrapper key
// or a params/content indirection) until it reaches the map that carries the
// content array.
func unwrapEnvelope(m map[string]interface{}) map[string]interface{} {
	for depth := 0; depth < 4; depth++ {
		if _, ok := m["content"]; ok {
			return m
		}
		for _, key := range []string{"pageData", "params", "data"} {
			if inner, ok := m[key].(map[string]interface{}); ok {
				m = inner
				break
			}
		}
	}
	return m
}

// recordsFromValue converts a decoded JSON array into raw records, keeping
// only object elements.
func recordsFromValue(v interface{}) []types.RawRecord {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	records := make([]types.RawRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			records = append(records, types.RawRecord(obj))
		}
	}
	return records
}

// paginationFromMap reads the pagination envelope out of a decoded payload
// map, returning nil when no envelope accompanies the records.
func paginationFromMap(m map[string]interface{}) *types.PaginationInfo {
	totalPages, ok := intField(m, "totalPages")
	if !ok || totalPages < 1 {
		return nil
	}

	totalElements, _ := intField(m, "totalElements")
	current := 1
	if n, ok := intField(m, "number"); ok {
		current = n + 1 // zero-based page index in the source envelope
	} else if n, ok := intField(m, "page"); ok {
		current = n + 1
	}
	if current < 1 {
		current = 1
	}
	if current > totalPages {
		current = totalPages
	}

	return &types.PaginationInfo{
		CurrentPage:   current,
		TotalPages:    totalPages,
		TotalElements: totalElements,
	}
}

var (
	totalPagesRe    = regexp.MustCompile(`"totalPages"\s*:\s*(\d+)`)
	totalElementsRe = regexp.MustCompile(`"totalElements"\s*:\s*(\d+)`)
	pageNumberRe    = regexp.MustCompile(`"number"\s*:\s*(\d+)`)
)

// paginationProbeWindow bounds each probe so the regexes stay off
// multi-megabyte pages.
const paginationProbeWindow = 4096

// paginationAround probes for a pagination envelope next to an extracted
// array spanning [arrayStart, arrayEnd). The envelope keys trail the content
// array in the source payload, so the window after the array is tried first;
// a window before the array covers envelopes that precede it.
func paginationAround(text string, arrayStart, arrayEnd int) *types.PaginationInfo {
	after := arrayEnd + paginationProbeWindow
	if after > len(text) {
		after = len(text)
	}
	if p := paginationFromText(text[arrayEnd:after]); p != nil {
		return p
	}

	before := arrayStart - paginationProbeWindow
	if before < 0 {
		before = 0
	}
	return paginationFromText(text[before:arrayStart])
}

// paginationFromText probes one window of text for the envelope fields.
func paginationFromText(window string) *types.PaginationInfo {
	m := map[string]interface{}{}
	if g := totalPagesRe.FindStringSubmatch(window); g != nil {
		m["totalPages"] = mustFloat(g[1])
	}
	if g := totalElementsRe.FindStringSubmatch(window); g != nil {
		m["totalElements"] = mustFloat(g[1])
	}
	if g := pageNumberRe.FindStringSubmatch(window); g != nil {
		m["number"] = mustFloat(g[1])
	}
	return paginationFromMap(m)
}

// intField reads a JSON number out of a decoded map as an int.
func intField(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// nextObjectStart returns the index of the first '{' after pos, skipping the
// key/value separator and whitespace only.
func nextObjectStart(text string, pos int) int {
	return nextDelimiter(text, pos, '{')
}

// nextArrayStart returns the index of the first '[' after pos, skipping the
// key/value separator and whitespace only.
func nextArrayStart(text string, pos int) int {
	return nextDelimiter(text, pos, '[')
}

func nextDelimiter(text string, pos int, want byte) int {
	for i := pos; i < len(text); i++ {
		switch text[i] {
		case want:
			return i
		case ':', ' ', '\t', '\n', '\r':
			continue
		default:
			return -1
		}
	}
	return -1
}

// Excerpt formats an extraction error's excerpt for logging.
func Excerpt(err error) string {
	var se *utils.StructuredError
	if e, ok := err.(*utils.StructuredError); ok {
		se = e
	}
	if se == nil || se.Context == nil {
		return ""
	}
	if s, ok := se.Context["excerpt"].(string); ok {
		return fmt.Sprintf("page excerpt: %s", s)
	}
	return ""
}
