package pipeline

import (
	"strings"

	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/util"
)

// JunkFilter removes deals that are not genuine Copenhagen experience offers.
type JunkFilter struct {
	blockedProviders map[string]struct{}
	lowQualitySource string
	productKeywords  []string
	nonTarget        []string
}

func NewJunkFilter(rules JunkRules) *JunkFilter {
	f := &JunkFilter{
		blockedProviders: make(map[string]struct{}, len(rules.BlockedProviders)),
		lowQualitySource: rules.LowQualitySource,
		productKeywords:  lowerAll(rules.ProductKeywords),
		nonTarget:        lowerAll(rules.NonTargetLocations),
	}
	for _, p := range rules.BlockedProviders {
		f.blockedProviders[normalizeProvider(p)] = struct{}{}
	}
	return f
}

var defaultJunkFilter = NewJunkFilter(DefaultRules())

// FilterJunk applies the default rules. See JunkFilter.Filter.
func FilterJunk(deals []models.Deal) []models.Deal {
	return defaultJunkFilter.Filter(deals)
}

// Filter returns the deals that are not junk, preserving order.
func (f *JunkFilter) Filter(deals []models.Deal) []models.Deal {
	kept := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if f.IsJunk(d) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// IsJunk reports whether d should be hidden.
func (f *JunkFilter) IsJunk(d models.Deal) bool {
	provider := normalizeProvider(d.Provider)
	if _, blocked := f.blockedProviders[provider]; blocked && provider != "" {
		return true
	}

	// Low-quality feed deals without provider and location are products or random inn stays.
	if f.lowQualitySource != "" && d.Source == f.lowQualitySource &&
		d.Provider == "" && d.Location == "" {
		return true
	}

	if f.isProduct(d) {
		return true
	}

	return f.isOutsideTarget(d)
}

func (f *JunkFilter) isProduct(d models.Deal) bool {
	text := strings.ToLower(d.Title + " " + util.PlainText(d.Description))
	return containsAny(text, f.productKeywords)
}

func (f *JunkFilter) isOutsideTarget(d models.Deal) bool {
	if d.Location == "" {
		return false
	}
	return containsAny(strings.ToLower(d.Location), f.nonTarget)
}

func normalizeProvider(p string) string {
	return strings.ToLower(p)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
