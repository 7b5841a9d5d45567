package templates

import (
	"strings"
	"testing"
	"time"
)

func TestRenderBillReminder(t *testing.T) {
	e := NewDefault("id")

	vars := map[string]string{
		"bill_name":   "Internet",
		"amount":      "Rp 500.000",
		"days_before": "3",
		"due_date":    "12 Januari 2026",
		"category":    "Internet",
	}
	got := e.Render(BillReminder, "id", vars)

	if strings.Contains(got, "{") {
		t.Errorf("rendered text still has placeholders: %q", got)
	}
	for _, v := range vars {
		if !strings.Contains(got, v) {
			t.Errorf("rendered text %q missing %q", got, v)
		}
	}
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	e := New("en")
	e.Register("greeting", "en", "Hello {name}, you owe {amount}.")

	got := e.Render("greeting", "en", map[string]string{"name": "Ana"})
	if got != "Hello Ana, you owe {amount}." {
		t.Errorf("got %q", got)
	}
}

func TestRenderLocaleFallback(t *testing.T) {
	e := New("en")
	e.Register("hello", "en", "Hello {name}")
	e.Register("hello", "id", "Halo {name}")

	tests := []struct {
		locale string
		want   string
	}{
		{"id", "Halo Budi"},
		{"id-ID", "Halo Budi"},
		{"ID", "Halo Budi"},
		{"fr", "Hello Budi"},
		{"", "Hello Budi"},
		{"not a locale!", "Hello Budi"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			if got := e.Render("hello", tt.locale, map[string]string{"name": "Budi"}); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.locale, got, tt.want)
			}
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := New("en")
	if got := e.Render("missing", "en", nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		body string
		vars map[string]string
		want string
	}{
		{"plain", "no placeholders", nil, "no placeholders"},
		{"adjacent", "{a}{b}", map[string]string{"a": "1", "b": "2"}, "12"},
		{"value not rescanned", "{a}", map[string]string{"a": "{b}", "b": "x"}, "{b}"},
		{"unterminated", "cost {amount", map[string]string{"amount": "5"}, "cost {amount"},
		{"empty braces", "{}", nil, "{}"},
		{"json-ish", `{"k": {v}}`, map[string]string{"v": "1"}, `{"k": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.body, tt.vars); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestBuiltinTemplatesHaveTitles(t *testing.T) {
	for locale, set := range builtin {
		for name := range set {
			if strings.HasSuffix(name, ".title") || name == DigestItem {
				continue
			}
			if _, ok := set[Title(name)]; !ok {
				t.Errorf("locale %s: template %s has no title", locale, name)
			}
		}
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	if got := FormatDate("id", d); got != "12 Januari 2026" {
		t.Errorf("FormatDate(id) = %q", got)
	}
	if got := FormatDate("en", d); got != "January 12, 2026" {
		t.Errorf("FormatDate(en) = %q", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount("en", 1500000); got != "Rp 1,500,000" {
		t.Errorf("FormatAmount(en) = %q", got)
	}
	got := FormatAmount("id", 500000)
	if !strings.HasPrefix(got, "Rp 500") || strings.Contains(got, "{") {
		t.Errorf("FormatAmount(id) = %q", got)
	}
}
