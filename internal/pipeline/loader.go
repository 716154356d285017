package pipeline

import (
	"embed"
	"log/slog"
)

//go:embed rules.json
var embeddedRules embed.FS

// LoadJunkRules tries to load junk rules in the following order:
// 1. External file at path (when non-empty)
// 2. Embedded rules.json
// 3. Hardcoded defaults
func LoadJunkRules(path string) JunkRules {
	if path != "" {
		if fileRules, err := LoadRules(path); err == nil {
			slog.Info("Loaded junk rules from external file", "path", path)
			return fileRules
		} else {
			slog.Warn("Failed to load external junk rules, falling back to embedded", "path", path, "error", err)
		}
	}

	data, err := embeddedRules.ReadFile("rules.json")
	if err == nil {
		rules, parseErr := LoadRulesFromBytes(data)
		if parseErr == nil {
			return rules
		}
		slog.Warn("Embedded junk rules failed to parse. Using defaults.", "error", parseErr)
	}

	return DefaultRules()
}
