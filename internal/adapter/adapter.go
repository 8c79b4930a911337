// internal/adapter/adapter.go
// Adapter capability set (spec §4.3). Each venue implements this
// interface directly rather than through a shared string-keyed
// dispatch table, per spec §9 — decoder state is heterogeneous across
// venues (sequence counters, cached top-of-book, symbol maps) and a
// single table would force it into a lowest-common-denominator shape.
package adapter

import (
	"time"

	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

// OutgoingFrame is a single message the supervisor must send to the
// transport immediately after it opens (or on reconnect).
type OutgoingFrame struct {
	// Binary is true when Payload should be sent as a binary WS frame;
	// otherwise it is sent as text (the common case: JSON).
	Binary  bool
	Payload []byte
}

// IncomingFrame is a single message read off the transport.
type IncomingFrame struct {
	Binary  bool
	Payload []byte
}

// OutputKind tags the variant carried by AdapterOutput.
type OutputKind int

const (
	OutputQuote OutputKind = iota
	OutputHeartbeat
	OutputAck
	OutputIgnored
	OutputDecodeError
	OutputResetSignal
)

// AdapterOutput is the tagged result of decoding one frame (spec §4.3).
type AdapterOutput struct {
	Kind        OutputKind
	SymbolId    model.SymbolId
	Record      model.QuoteRecord
	DecodeError error
}

// KeepaliveKind selects the supervisor's keepalive enforcement strategy
// for a given adapter (spec §4.4).
type KeepaliveKind int

const (
	KeepaliveNone KeepaliveKind = iota
	KeepaliveClientPing
	KeepaliveRespondToServerPing
	KeepaliveApplicationLevel
)

// KeepalivePolicy describes how a venue expects liveness to be proven.
type KeepalivePolicy struct {
	Kind     KeepaliveKind
	Interval time.Duration
	// Ping, when Kind == KeepaliveClientPing, builds the ping frame to send.
	Ping func() OutgoingFrame
	// IsPong, when Kind == KeepaliveClientPing, reports whether an
	// incoming frame should be treated as the pong for a sent ping.
	IsPong func(IncomingFrame) bool
	// ApplicationPing, when Kind == KeepaliveApplicationLevel, lets the
	// adapter drive liveness itself (e.g. a periodic no-op subscribe).
	ApplicationPing func() OutgoingFrame
}

// Adapter is the per-(exchange, instrument-type) capability set spec §4.3
// requires every venue to implement.
type Adapter interface {
	// Exchange is the canonical lowercase exchange name (spec §6).
	Exchange() string

	// InstrumentType reports which market type this adapter instance serves.
	InstrumentType() model.InstrumentType

	// Endpoint is the secure WebSocket URL this adapter streams from.
	Endpoint() string

	// SubscribePayload produces the message(s) to send right after the
	// transport opens, for the given set of free-form symbol keys.
	// Exchanges with a batch-size cap must chunk internally.
	SubscribePayload(symbolKeys []string) ([]OutgoingFrame, error)

	// Decode turns one incoming frame into a normalized AdapterOutput.
	// A DecodeError result must not cause a disconnect — only a
	// VenueResetSignal / fatal transport condition does that.
	Decode(frame IncomingFrame) AdapterOutput

	// KeepalivePolicy reports this venue's liveness contract.
	KeepalivePolicy() KeepalivePolicy

	// RequiresSubscribeAck reports whether Streaming is entered only
	// after an adapter-defined ack (vs. immediately after subscribing).
	RequiresSubscribeAck() bool

	// SymbolToVenueFormat renders the registry's canonical symbol id in
	// this venue's native wire format.
	SymbolToVenueFormat(id model.SymbolId, canonical string) string

	// VenueFormatToSymbol is the inverse of SymbolToVenueFormat, used to
	// reconcile an incoming message's native symbol string back to a
	// registry id. ok is false when the venue string is unrecognized.
	VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool)
}

// Factory builds the Adapter for one (exchange, instrument-type) pair.
// It registers symbolKeys (the operator's free-form config entries,
// each carrying an explicit separator per spec §3 the first time a
// pair is seen) with reg, and returns an Adapter whose Decode already
// knows how to map this venue's wire symbol strings back to the
// resulting SymbolIds. Registered by each venue package's
// init-time table in internal/adapter/catalog.go.
type Factory func(reg *registry.Registry, symbolKeys []string) (Adapter, error)
