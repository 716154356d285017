package util

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
)

// CleanText collapses runs of whitespace (including NBSP) to single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// PlainText returns the visible text of s. Catalog descriptions are sometimes
// scraped HTML fragments; markup and entities are resolved through goquery.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CleanText(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CleanText(s)
	}
	return CleanText(doc.Text())
}

// FixMojibake repairs UTF-8 text that was decoded as Latin-1 and re-encoded,
// e.g. "NÃ¸rrebro" -> "Nørrebro". Text that is not double-encoded is returned unchanged.
func FixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	return raw
}

// NormalizeKey produces the lookup key for a location label: repaired, trimmed, lower-cased.
func NormalizeKey(label string) string {
	return strings.ToLower(strings.TrimSpace(FixMojibake(label)))
}
