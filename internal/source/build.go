package source

import (
	"admcal/internal/calendar"
	"admcal/internal/config"
)

// FromConfig builds the configured sources in a fixed order: backend, ICS
// feeds, then files. Earlier sources win when event ids collide.
func FromConfig(cfg *config.Config) []calendar.Source {
	fetcher := NewFetcher(cfg.CacheDir, cfg.FetchTimeout)

	var sources []calendar.Source
	if cfg.Backend != nil && cfg.Backend.URL != "" {
		sources = append(sources, NewBackend(cfg.Backend.Name, cfg.Backend.URL, fetcher))
	}

	window := ICSWindow{
		BackfillDays: cfg.ICSBackfillDays,
		HorizonDays:  cfg.ICSHorizonDays,
		Location:     cfg.Location(),
	}
	for _, ic := range cfg.ICS {
		if ic.URL == "" {
			continue
		}
		name := ic.ID
		if name == "" {
			if ic.Name != "" {
				name = ic.Name
			} else {
				name = ic.URL
			}
		}
		institution := ic.Institution
		if institution == "" {
			institution = ic.Name
		}
		sources = append(sources, NewICS(name, ic.URL, institution, window, fetcher))
	}

	for _, fc := range cfg.Files {
		if fc.Path == "" {
			continue
		}
		sources = append(sources, NewFile(fc.Name, fc.Path))
	}
	return sources
}
