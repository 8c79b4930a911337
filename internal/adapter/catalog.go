// internal/adapter/catalog.go
// The (exchange, instrument type) -> Factory lookup table the engine
// façade uses to build each configured feed's Adapter, so the rest
// of the engine never imports a venue package directly. Grounded on
// internal/pipeline/normalizer's venue-name-keyed dispatch, but keyed
// on the pair rather than exchange alone since a venue's spot and perp
// decoders can differ entirely (e.g. mexc).
package adapter

import (
	"fmt"

	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

type catalogKey struct {
	exchange string
	itype    model.InstrumentType
}

// catalog is populated by RegisterFactory; venue packages call it
// from an init() so importing the venue package for its side effect is
// enough to make it available through Lookup. The engine package
// blank-imports every venue package it ships with for this reason.
var catalog = make(map[catalogKey]Factory)

// RegisterFactory adds a venue's Factory to the catalog under
// (exchange, itype). Called once per venue package from its init().
func RegisterFactory(exchange string, itype model.InstrumentType, f Factory) {
	catalog[catalogKey{exchange: exchange, itype: itype}] = f
}

// Lookup returns the registered Factory for (exchange, itype), or false
// if no venue package registered one.
func Lookup(exchange string, itype model.InstrumentType) (Factory, bool) {
	f, ok := catalog[catalogKey{exchange: exchange, itype: itype}]
	return f, ok
}

// Build resolves and invokes the Factory for (exchange, itype) in one
// step, the form the engine façade actually calls.
func Build(exchange string, itype model.InstrumentType, reg *registry.Registry, symbolKeys []string) (Adapter, error) {
	f, ok := Lookup(exchange, itype)
	if !ok {
		return nil, fmt.Errorf("adapter: no factory registered for %s/%s", exchange, itype)
	}
	return f(reg, symbolKeys)
}
