package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/akulagin/spbebonds/internal/utils"
)

// ExtractLabeledFields pulls the labeled attribute values off a security
// detail page. The card is rendered either as definition lists or as
// two-column tables, so both shapes are walked; later occurrences of a label
// never overwrite earlier ones.
func ExtractLabeledFields(pageHTML string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeExtractionFailed, "detail page is not parseable HTML")
	}

	fields := make(map[string]string)

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		n := dts.Length()
		if dds.Length() < n {
			n = dds.Length()
		}
		for i := 0; i < n; i++ {
			putField(fields, dts.Eq(i).Text(), dds.Eq(i).Text())
		}
	})

	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() == 2 {
			putField(fields, cells.Eq(0).Text(), cells.Eq(1).Text())
		}
	})

	return fields, nil
}

// putField stores a cleaned label/value pair, keeping the first value seen
// for a label.
func putField(fields map[string]string, label, value string) {
	label = cleanText(label)
	value = cleanText(value)
	if label == "" || value == "" {
		return
	}
	if _, exists := fields[label]; !exists {
		fields[label] = value
	}
}

// cleanText collapses runs of whitespace, including non-breaking spaces, into
// single spaces.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// documentKeywords mark anchors that lead to issuance documents. Matching is
// case-insensitive over the anchor text and the href.
var documentKeywords = []string{
	"проспект",
	"решение о выпуске",
	"эмиссионн",
	"prospectus",
}

// cancelledLinkPattern matches the control that reveals cancelled securities
// on an issuer page.
var cancelledLinkPattern = regexp.MustCompile(`(?i)показать.*аннулированные`)

// FindCancelledLink returns the absolute URL behind the "show cancelled"
// control of an issuer page, or "" when the page has none.
func FindCancelledLink(pageHTML, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var found string
	doc.Find("a[href], button[data-href]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if !cancelledLinkPattern.MatchString(cleanText(el.Text())) {
			return true
		}
		href, ok := el.Attr("href")
		if !ok {
			href, ok = el.Attr("data-href")
		}
		if !ok || href == "" {
			return true
		}
		if ref, err := url.Parse(href); err == nil {
			found = base.ResolveReference(ref).String()
			return false
		}
		return true
	})
	return found
}

// FindDocumentLinks returns the absolute URLs of prospectus and issuance
// documents linked from a detail page. PDF links always qualify; other links
// qualify only by keyword.
func FindDocumentLinks(pageHTML, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeExtractionFailed, "detail page is not parseable HTML")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeExtractionFailed, "invalid page URL")
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		text := strings.ToLower(cleanText(a.Text()))
		lowerHref := strings.ToLower(href)

		qualifies := strings.HasSuffix(lowerHref, ".pdf")
		if !qualifies {
			for _, kw := range documentKeywords {
				if strings.Contains(text, kw) || strings.Contains(lowerHref, kw) {
					qualifies = true
					break
				}
			}
		}
		if !qualifies {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})

	return links, nil
}
