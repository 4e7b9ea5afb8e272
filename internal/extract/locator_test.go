package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/akulagin/spbebonds/internal/utils"
)

// listingPage mimics a server-rendered listing page: the payload travels as
// an escaped string inside a framework bootstrap push call.
const listingPage = `<!DOCTYPE html><html><head><title>Bonds</title></head><body>
<script>self.__next_f.push([1,"{\"pageData\":{\"content\":[{\"srtsCode\":\"SU26238\",\"sisinCode\":\"RU000A1038V6\",\"fullName\":\"ОФЗ 26238\",\"securityKind\":\"Облигация\"},{\"srtsCode\":\"GAZP-B\",\"sisinCode\":\"RU000A0JXME4\",\"fullName\":\"Газпром БО-01\",\"securityKind\":\"Облигация\"}],\"totalPages\":3,\"totalElements\":25,\"number\":0}}"])</script>
</body></html>`

func TestExtractPageWrapperKey(t *testing.T) {
	loc := NewLocator(nil)

	result, err := loc.ExtractPage(listingPage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Strategy != "wrapper-key:pageData" {
		t.Errorf("strategy = %q, want wrapper-key:pageData", result.Strategy)
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}
	if got := result.Records[0].String("sisinCode"); got != "RU000A1038V6" {
		t.Errorf("sisinCode = %q, want RU000A1038V6", got)
	}
	if got := result.Records[1].String("fullName"); got != "Газпром БО-01" {
		t.Errorf("fullName = %q", got)
	}

	p := result.Pagination
	if p == nil {
		t.Fatal("pagination not extracted")
	}
	if p.CurrentPage != 1 || p.TotalPages != 3 || p.TotalElements != 25 {
		t.Errorf("pagination = %+v, want page 1 of 3 with 25 elements", p)
	}
}

func TestExtractPageContentKey(t *testing.T) {
	page := `{"results":{"content":[{"sisinCode":"RU000A105EX7","srtsCode":"TEST-1"}],"totalPages":2,"totalElements":12,"number":1}}`

	loc := NewLocator(nil)
	result, err := loc.ExtractPage(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Strategy != "content-key:content" {
		t.Errorf("strategy = %q, want content-key:content", result.Strategy)
	}
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}

	p := result.Pagination
	if p == nil {
		t.Fatal("pagination not extracted")
	}
	if p.CurrentPage != 2 || p.TotalPages != 2 || p.TotalElements != 12 {
		t.Errorf("pagination = %+v, want page 2 of 2 with 12 elements", p)
	}
}

func TestExtractPageContentKeyLargeArray(t *testing.T) {
	// A full 60-record page puts the trailing pagination envelope many
	// kilobytes past the content array's opening bracket; the envelope must
	// still be recovered.
	var b strings.Builder
	b.WriteString(`{"content":[`)
	for i := 0; i < 60; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b,
			`{"srtsCode":"BOND-%03d","sisinCode":"RU000A1%05d","fullName":"Выпуск биржевых облигаций с длинным полным наименованием для заполнения страницы номер %03d","securityKind":"Облигация"}`,
			i, i, i)
	}
	b.WriteString(`],"totalPages":5,"totalElements":300,"number":0}`)
	page := b.String()
	if len(page) < 8192 {
		t.Fatalf("fixture is only %d bytes, envelope not far enough from the array start", len(page))
	}

	loc := NewLocator(nil)
	result, err := loc.ExtractPage(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Strategy != "content-key:content" {
		t.Errorf("strategy = %q, want content-key:content", result.Strategy)
	}
	if len(result.Records) != 60 {
		t.Fatalf("got %d records, want 60", len(result.Records))
	}

	p := result.Pagination
	if p == nil {
		t.Fatal("pagination envelope behind the large array was not extracted")
	}
	if p.CurrentPage != 1 || p.TotalPages != 5 || p.TotalElements != 300 {
		t.Errorf("pagination = %+v, want page 1 of 5 with 300 elements", p)
	}
}

func TestExtractPageGenericScan(t *testing.T) {
	// No known wrapper or content key; an array of ISIN-bearing objects is
	// still found by the fallback scan.
	page := `<div data-items='x'>[{"code":"SU26233","isin":"RU000A101F94"},{"code":"SU26240","isin":"RU000A103BR0"}]</div>`

	loc := NewLocator(nil)
	result, err := loc.ExtractPage(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Strategy != "generic-array-scan" {
		t.Errorf("strategy = %q, want generic-array-scan", result.Strategy)
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}
}

func TestExtractPageGenericScanSkipsUnbalancedBracket(t *testing.T) {
	// Script noise opens a bracket that never closes before the payload; the
	// scan must move past it instead of giving up.
	page := `var x = a[ ; <div>[{"code":"SU26233","isin":"RU000A101F94"}]</div>`

	loc := NewLocator(nil)
	result, err := loc.ExtractPage(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Strategy != "generic-array-scan" {
		t.Errorf("strategy = %q, want generic-array-scan", result.Strategy)
	}
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}
	if got := result.Records[0].String("isin"); got != "RU000A101F94" {
		t.Errorf("isin = %q, want RU000A101F94", got)
	}
}

func TestExtractPageStrategyOrder(t *testing.T) {
	// Both the wrapper key and a free-standing ISIN array are present; the
	// wrapper key wins because it is tried first.
	page := `[{"isin":"RU000A0ZZAA1"}]{"pageData":{"content":[{"sisinCode":"RU000A0ZZBB2"}],"totalPages":1,"totalElements":1,"number":0}}`

	loc := NewLocator(nil)
	result, err := loc.ExtractPage(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Strategy != "wrapper-key:pageData" {
		t.Errorf("strategy = %q, want wrapper-key:pageData", result.Strategy)
	}
	if got := result.Records[0].String("sisinCode"); got != "RU000A0ZZBB2" {
		t.Errorf("record came from wrong payload: %q", got)
	}
}

func TestExtractPageFailure(t *testing.T) {
	page := `<html><body><h1>Технические работы</h1><p>Сервис временно недоступен.</p></body></html>`

	loc := NewLocator(nil)
	_, err := loc.ExtractPage(page)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if utils.CodeOf(err) != utils.ErrCodeExtractionFailed {
		t.Fatalf("code = %s, want %s", utils.CodeOf(err), utils.ErrCodeExtractionFailed)
	}

	excerpt := Excerpt(err)
	if excerpt == "" {
		t.Fatal("extraction error carries no page excerpt")
	}
	if !strings.Contains(excerpt, "Технические работы") {
		t.Errorf("excerpt does not show page content: %q", excerpt)
	}
}

func TestExtractPageFailureExcerptShowsPayload(t *testing.T) {
	// When the page carries a bootstrap blob that no strategy can parse, the
	// excerpt must show that blob, not the document head.
	page := `<!DOCTYPE html><html><head><title>SPB</title></head><body>
<script>self.__next_f.push([1,"{\"status\":\"degraded\",\"message\":\"Технические работы на площадке\"}"])</script>
</body></html>`

	loc := NewLocator(nil)
	_, err := loc.ExtractPage(page)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	excerpt := Excerpt(err)
	if !strings.Contains(excerpt, "Технические работы") {
		t.Errorf("excerpt does not show the payload: %q", excerpt)
	}
	if strings.Contains(excerpt, "<!DOCTYPE") {
		t.Errorf("excerpt shows the document head instead of the payload: %q", excerpt)
	}
}

func TestExtractPageEmptyContent(t *testing.T) {
	// A payload whose content array is empty yields no records; the page
	// counts as an extraction failure rather than a silent zero-record page.
	page := `{"pageData":{"content":[],"totalPages":0,"totalElements":0,"number":0}}`

	loc := NewLocator(nil)
	if _, err := loc.ExtractPage(page); err == nil {
		t.Fatal("expected error for empty content")
	}
}
