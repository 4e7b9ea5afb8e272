package scraper

import (
	"testing"
)

const detailPage = `<html><body>
<dl class="security-card">
  <dt>Полное наименование эмитента</dt><dd>ООО «Тестовый Эмитент»</dd>
  <dt>ISIN код</dt><dd> RU000A1038V6 </dd>
  <dt>Амортизация</dt><dd>Не предусмотрена</dd>
</dl>
<table>
  <tr><th>Номинал</th><td>1 000</td></tr>
  <tr><th>Валюта номинала</th><td>RUB</td></tr>
  <tr><td>col1</td><td>col2</td><td>col3</td></tr>
</table>
<a href="/docs/prospectus_26238.pdf">Проспект ценных бумаг</a>
<a href="https://cdn.example.test/issue.PDF">Документ</a>
<a href="/docs/terms">Решение о выпуске</a>
<a href="/about">О бирже</a>
<a href="#top">Наверх</a>
</body></html>`

func TestExtractLabeledFields(t *testing.T) {
	fields, err := ExtractLabeledFields(detailPage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"Полное наименование эмитента": "ООО «Тестовый Эмитент»",
		"ISIN код":                     "RU000A1038V6",
		"Амортизация":                  "Не предусмотрена",
		"Номинал":                      "1 000",
		"Валюта номинала":              "RUB",
	}
	for label, value := range want {
		if got := fields[label]; got != value {
			t.Errorf("field %q = %q, want %q", label, got, value)
		}
	}
	if _, ok := fields["col1"]; ok {
		t.Error("three-column row must not be treated as a labeled pair")
	}
}

func TestExtractLabeledFieldsKeepsFirstValue(t *testing.T) {
	page := `<table>
<tr><th>Статус</th><td>Торгуется</td></tr>
<tr><th>Статус</th><td>Аннулирован</td></tr>
</table>`

	fields, err := ExtractLabeledFields(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fields["Статус"]; got != "Торгуется" {
		t.Errorf("later row overwrote the label: %q", got)
	}
}

func TestFindDocumentLinks(t *testing.T) {
	links, err := FindDocumentLinks(detailPage, "https://spbexchange.ru/listing/security/RU000A1038V6/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"https://spbexchange.ru/docs/prospectus_26238.pdf",
		"https://cdn.example.test/issue.PDF",
		"https://spbexchange.ru/docs/terms",
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links %v, want %d", len(links), links, len(want))
	}
	for i, w := range want {
		if links[i] != w {
			t.Errorf("link[%d] = %q, want %q", i, links[i], w)
		}
	}
}

func TestFindCancelledLink(t *testing.T) {
	page := `<div><a href="?showCancelled=true">Показать аннулированные</a></div>`
	got := FindCancelledLink(page, "https://issuers.example.test/bonds/")
	if got != "https://issuers.example.test/bonds/?showCancelled=true" {
		t.Errorf("cancelled link = %q", got)
	}

	if got := FindCancelledLink("<div>нет ссылок</div>", "https://issuers.example.test/"); got != "" {
		t.Errorf("expected empty link, got %q", got)
	}
}

func TestFindDocumentLinksDeduplicates(t *testing.T) {
	page := `<a href="/a.pdf">Проспект</a><a href="/a.pdf">Проспект (копия)</a>`
	links, err := FindDocumentLinks(page, "https://example.test/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("got %d links, want 1", len(links))
	}
}
