package geo

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/util"
)

//go:embed gazetteer.json
var embeddedGazetteer embed.FS

// Gazetteer is the static table of well-known Copenhagen-area neighborhoods, keyed by normalized label.
type Gazetteer map[string]models.Coordinate

// ParseGazetteer decodes a label → {lat,lng} JSON object.
func ParseGazetteer(data []byte) (Gazetteer, error) {
	var raw map[string]models.Coordinate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("gazetteer JSON has no entries")
	}

	g := make(Gazetteer, len(raw))
	for label, c := range raw {
		if !c.Valid() {
			return nil, fmt.Errorf("gazetteer entry %q has invalid coordinate %v", label, c)
		}
		g[util.NormalizeKey(label)] = c
	}
	return g, nil
}

// LoadGazetteer tries the external file at path (when non-empty), then the embedded table.
func LoadGazetteer(path string) Gazetteer {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if g, parseErr := ParseGazetteer(data); parseErr == nil {
				slog.Info("Loaded gazetteer from external file", "path", path, "entries", len(g))
				return g
			} else {
				err = parseErr
			}
		}
		slog.Warn("Failed to load external gazetteer, falling back to embedded", "path", path, "error", err)
	}

	data, err := embeddedGazetteer.ReadFile("gazetteer.json")
	if err != nil {
		slog.Error("Embedded gazetteer missing", "error", err)
		return Gazetteer{}
	}
	g, err := ParseGazetteer(data)
	if err != nil {
		slog.Error("Embedded gazetteer failed to parse", "error", err)
		return Gazetteer{}
	}
	return g
}
