package download

import (
	"strings"
	"testing"
)

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "cyrillic preserved, quotes and slash replaced",
			input: `ООО "Рога и Копыта"/Тест`,
			want:  "ООО _Рога и Копыта__Тест",
		},
		{
			name:  "windows special characters",
			input: `a<b>c:d|e?f*g`,
			want:  "a_b_c_d_e_f_g",
		},
		{
			name:  "trailing dots and spaces trimmed",
			input: "ПАО Газпром. ",
			want:  "ПАО Газпром",
		},
		{
			name:  "whitespace runs collapsed",
			input: "АО  \t Эмитент",
			want:  "АО Эмитент",
		},
		{
			name:  "reserved device name",
			input: "CON",
			want:  "_CON",
		},
		{
			name:  "empty input",
			input: "",
			want:  "_",
		},
		{
			name:  "control characters",
			input: "abc\x00\x1fdef",
			want:  "abc__def",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeComponent(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeComponentDeterministic(t *testing.T) {
	input := `ООО "Рога и Копыта"`
	if SanitizeComponent(input) != SanitizeComponent(input) {
		t.Error("sanitization is not deterministic")
	}
}

func TestSanitizeComponentLongNamesStayDistinct(t *testing.T) {
	prefix := strings.Repeat("Общество с ограниченной ответственностью ", 5)
	a := SanitizeComponent(prefix + "Альфа")
	b := SanitizeComponent(prefix + "Бета")

	if len(a) > maxComponentLength || len(b) > maxComponentLength {
		t.Errorf("truncation failed: %d and %d bytes", len(a), len(b))
	}
	if a == b {
		t.Error("distinct long names collided after truncation")
	}
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.test/docs/prospectus_26238.pdf", "prospectus_26238.pdf"},
		{"https://example.test/docs/file.pdf?version=2#page", "file.pdf"},
		{"https://example.test/docs/terms", "terms.pdf"},
		{"https://example.test/", "document.pdf"},
	}
	for _, tt := range tests {
		if got := FileNameFromURL(tt.url); got != tt.want {
			t.Errorf("FileNameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
