package geo

import "github.com/pauljones0/cph-deal-finder/internal/models"

// MapConfig describes the base layer a map client should render.
type MapConfig struct {
	Center       models.Coordinate          `json:"center"`
	Zoom         int                        `json:"zoom"`
	TileURL      string                     `json:"tile_url"`
	Attribution  string                     `json:"attribution"`
	MarkerColors map[models.Category]string `json:"marker_colors"`
}

// City center of Copenhagen.
var MapCenter = models.Coordinate{Lat: 55.6761, Lng: 12.5683}

// DefaultMapConfig uses the CartoDB Dark Matter tiles, which need no API key.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Center:      MapCenter,
		Zoom:        12,
		TileURL:     "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> &copy; <a href="https://carto.com/">CARTO</a>`,
		MarkerColors: map[models.Category]string{
			models.CategoryActivity:      "#10b981",
			models.CategoryFood:          "#f59e0b",
			models.CategoryEntertainment: "#a855f7",
		},
	}
}

// MarkerColor returns the pin color for a category, falling back to the activity color.
func (m MapConfig) MarkerColor(c models.Category) string {
	if color, ok := m.MarkerColors[c]; ok {
		return color
	}
	return m.MarkerColors[models.CategoryActivity]
}
