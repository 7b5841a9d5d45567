package templates

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatAmount renders a rupiah amount for locale: "Rp 500.000" for
// Indonesian, "Rp 500,000" otherwise.
func FormatAmount(locale string, amount float64) string {
	if IsIndonesian(locale) {
		p := message.NewPrinter(language.Indonesian)
		return p.Sprintf("Rp %v", number.Decimal(amount, number.MaxFractionDigits(0)))
	}
	return "Rp " + humanize.Comma(int64(amount))
}

// FormatDate renders a calendar date for locale: "12 Januari 2026" for
// Indonesian, "January 12, 2026" otherwise.
func FormatDate(locale string, t time.Time) string {
	if IsIndonesian(locale) {
		return fmt.Sprintf("%d %s %d", t.Day(), indonesianMonths[t.Month()-1], t.Year())
	}
	return t.Format("January 2, 2006")
}

// FormatInt renders n in decimal.
func FormatInt(n int) string {
	return strconv.Itoa(n)
}

// IsIndonesian reports whether locale is Indonesian or a regional variant of it.
func IsIndonesian(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	id, _ := language.Indonesian.Base()
	return base == id
}
