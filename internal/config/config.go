// internal/config/config.go
// The engine's own configuration shape (spec §6): a two-level mapping
// from instrument type to exchange to a list of free-form symbol keys.
// The engine itself only ever consumes this struct — parsing it out of
// YAML/env is an external-loader concern kept in cmd/engine (spec §1
// Out of scope), grounded on the teacher's config/shards.go loader
// pattern but with this module's own shape, not the teacher's nested
// per-data-type document.
package config

import (
	"bbofeed/internal/ferr"
	"bbofeed/internal/model"
)

// Config is the parsed, validated input to the façade's
// StartSpotFeeds/StartPerpFeeds.
type Config struct {
	Spot map[string][]string
	Perp map[string][]string
}

// spotVenues and perpVenues are the exchange sets required by spec §4.3/§6.
var (
	spotVenues = map[string]bool{
		"binance":  true,
		"coinbase": true,
		"bybit":    true,
		"kraken":   true,
		"mexc":     true,
	}
	perpVenues = map[string]bool{
		"binance": true,
		"bybit":   true,
		"mexc":    true,
		"lighter": true,
	}
)

func venueSetFor(itype model.InstrumentType) map[string]bool {
	if itype == model.Perp {
		return perpVenues
	}
	return spotVenues
}

// KnownVenue reports whether exchange is a recognized venue for itype.
func KnownVenue(exchange string, itype model.InstrumentType) bool {
	return venueSetFor(itype)[exchange]
}

// Entries returns one (exchange, symbolKeys) pair per venue configured
// for itype, in a section of Config (Spot or Perp).
type Entries map[string][]string

// SectionFor returns the Spot or Perp section of c for itype.
func (c Config) SectionFor(itype model.InstrumentType) Entries {
	if itype == model.Perp {
		return c.Perp
	}
	return c.Spot
}

// Validate checks every exchange named in the itype section of c
// against the known venue set for that instrument type, returning a
// ConfigError for the first unknown venue encountered (spec §6).
func (c Config) Validate(itype model.InstrumentType) error {
	for exchange := range c.SectionFor(itype) {
		if !KnownVenue(exchange, itype) {
			return ferr.UnknownVenue(exchange)
		}
	}
	return nil
}
