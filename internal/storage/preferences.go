package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pauljones0/cph-deal-finder/internal/metrics"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"

	DefaultTheme = ThemeDark
)

var ErrInvalidTheme = errors.New("theme must be dark or light")

// Preferences stores per-viewer display settings.
type Preferences struct {
	kv KV
}

func NewPreferences(kv KV) *Preferences {
	return &Preferences{kv: kv}
}

func themeKey(viewer string) string { return "pref:" + viewer + ":theme" }

// Theme returns the viewer's theme. Faults and unknown values degrade to the default.
func (p *Preferences) Theme(ctx context.Context, viewer string) string {
	raw, found, err := p.kv.Get(ctx, themeKey(viewer))
	if err != nil {
		metrics.StorageFaults.WithLabelValues("get").Inc()
		slog.Warn("Failed to read theme preference", "viewer", viewer, "error", err)
		return DefaultTheme
	}
	if !found {
		return DefaultTheme
	}
	switch theme := string(raw); theme {
	case ThemeDark, ThemeLight:
		return theme
	default:
		return DefaultTheme
	}
}

func (p *Preferences) SetTheme(ctx context.Context, viewer, theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return ErrInvalidTheme
	}
	return p.kv.Set(ctx, themeKey(viewer), []byte(theme))
}
