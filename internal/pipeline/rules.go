package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// JunkRules configures the junk filter.
type JunkRules struct {
	// BlockedProviders sell random products or non-Copenhagen travel packages.
	BlockedProviders []string `json:"blocked_providers"`
	// LowQualitySource is the feed whose deals are dropped when they carry neither provider nor location.
	LowQualitySource string `json:"low_quality_source"`
	// ProductKeywords are Danish compound words that identify physical products, matched
	// as substrings of title + description.
	ProductKeywords []string `json:"product_keywords"`
	// NonTargetLocations are ASCII-safe substrings of locations outside Copenhagen. The catalog
	// double-encodes UTF-8, so "nordsj" stands in for Nordsjælland and "helsing" for Helsingør.
	NonTargetLocations []string `json:"non_target_locations"`
}

// LoadRules loads junk rules from the specified JSON file.
func LoadRules(path string) (JunkRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JunkRules{}, fmt.Errorf("failed to read junk rules file: %w", err)
	}

	return LoadRulesFromBytes(data)
}

// LoadRulesFromBytes parses junk rules from raw JSON bytes.
func LoadRulesFromBytes(data []byte) (JunkRules, error) {
	var rules JunkRules
	if err := json.Unmarshal(data, &rules); err != nil {
		return JunkRules{}, fmt.Errorf("failed to parse junk rules JSON: %w", err)
	}
	if len(rules.BlockedProviders) == 0 && len(rules.ProductKeywords) == 0 && len(rules.NonTargetLocations) == 0 {
		return JunkRules{}, fmt.Errorf("junk rules JSON defines no rules")
	}

	return rules, nil
}

// DefaultRules returns the fallback rules if no JSON is loaded.
// Keep in sync with rules.json.
func DefaultRules() JunkRules {
	return JunkRules{
		BlockedProviders: []string{
			"just-half-price",
			"odendo",
			"take offer",
			"risskov bilferie",
			"traveldeal",
		},
		LowQualitySource: "Bownty",
		ProductKeywords: []string{
			"gasblus",
			"gasflask",
			"badevægt",
			"krøllejern",
			"glattejern",
			"massageapparat",
			"fitnessarmbånd",
			"tærteform",
			"kagerulle",
			"pastamaskine",
			"cbd-olie",
			"cbd olie",
			"hårtørrer",
			"støvsuger",
			"kropsanalyse",
			"kropsholdning",
			"prepping-udstyr",
			"prepping udstyr",
		},
		NonTargetLocations: []string{
			"nordsj",
			"roskilde",
			"helsing",
			"odense",
			"aalborg",
			"aarhus",
		},
	}
}
