// Package templates renders notification text from named, per-locale
// templates with {variable} placeholders.
package templates

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Engine holds templates by name and locale. Rendering is literal
// substitution: no conditionals or loops.
type Engine struct {
	mu            sync.RWMutex
	defaultLocale string
	templates     map[string]map[string]string
}

// New returns an engine that falls back to defaultLocale.
func New(defaultLocale string) *Engine {
	return &Engine{
		defaultLocale: normalizeLocale(defaultLocale),
		templates:     make(map[string]map[string]string),
	}
}

// NewDefault returns an engine preloaded with the built-in notification templates.
func NewDefault(defaultLocale string) *Engine {
	e := New(defaultLocale)
	for locale, set := range builtin {
		for name, body := range set {
			e.Register(name, locale, body)
		}
	}
	return e
}

// DefaultLocale returns the fallback locale.
func (e *Engine) DefaultLocale() string {
	return e.defaultLocale
}

// Register adds or replaces the template for name in locale.
func (e *Engine) Register(name, locale, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	byLocale, ok := e.templates[name]
	if !ok {
		byLocale = make(map[string]string)
		e.templates[name] = byLocale
	}
	byLocale[normalizeLocale(locale)] = body
}

// Lookup returns the template body for name, trying the exact locale, then its
// base language, then the default locale.
func (e *Engine) Lookup(name, locale string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byLocale, ok := e.templates[name]
	if !ok {
		return "", false
	}
	for _, candidate := range candidates(locale, e.defaultLocale) {
		if body, ok := byLocale[candidate]; ok {
			return body, true
		}
	}
	return "", false
}

// Render looks up name for locale and substitutes vars. Unknown names render
// as the empty string; placeholders without a value are left verbatim.
func (e *Engine) Render(name, locale string, vars map[string]string) string {
	body, ok := e.Lookup(name, locale)
	if !ok {
		return ""
	}
	return Substitute(body, vars)
}

// Substitute replaces each {key} in body with vars[key]. Substituted values
// are not rescanned.
func Substitute(body string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(body))

	for i := 0; i < len(body); {
		if body[i] != '{' {
			b.WriteByte(body[i])
			i++
			continue
		}
		end := i + 1
		for end < len(body) && isIdentByte(body[end]) {
			end++
		}
		if end < len(body) && body[end] == '}' && end > i+1 {
			if v, ok := vars[body[i+1:end]]; ok {
				b.WriteString(v)
				i = end + 1
				continue
			}
		}
		b.WriteByte('{')
		i++
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func candidates(locale, fallback string) []string {
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}

	if tag, err := language.Parse(locale); err == nil {
		add(tag.String())
		base, _ := tag.Base()
		add(base.String())
	}
	add(fallback)
	return out
}

func normalizeLocale(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(locale))
	}
	return tag.String()
}
