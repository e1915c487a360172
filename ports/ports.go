// Package ports defines the narrow interfaces through which the engine
// consumes external collaborators that are explicitly out of scope for
// this module (§6, §1 "Explicitly out of scope"): the real relay
// transport, the NIP-07 browser bridge, the bech32/hex identifier
// codec, the script-based language detector, the function resolver,
// and the profile name lookup. Concrete adapters live under
// adapters/*; this package only names the contracts nodes depend on.
package ports

import (
	"context"
	"encoding/json"

	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
)

// RelayTransport opens live subscriptions against one or more relay
// URLs and delivers matching events plus per-relay connection status.
type RelayTransport interface {
	// Open starts a subscription across urls with the given NIP-01
	// filter (opaque JSON, passed through verbatim) and returns a
	// channel of received events. The channel is closed when ctx is
	// cancelled or Close is called.
	Open(ctx context.Context, urls []string, filter json.RawMessage) (<-chan signal.Event, error)
	// Status returns a channel of per-relay status transitions.
	Status(ctx context.Context, urls []string) (<-chan RelayStatusEvent, error)
	// Close releases all connections opened by this transport.
	Close() error
}

// RelayStatusEvent reports a single relay's connection state change.
type RelayStatusEvent struct {
	URL   string
	State signal.RelayStatusValue
}

// Nip07Bridge queries a signing extension for the user's pubkey.
type Nip07Bridge interface {
	// GetPubkey returns the normalised hex pubkey, or an error if the
	// extension is unavailable. NIP07Node retries on error with a
	// fixed delay, up to a bounded number of attempts (§4.3).
	GetPubkey(ctx context.Context) (string, error)
}

// IdentifierCodec decodes and validates Nostr identifier strings.
type IdentifierCodec interface {
	// Bech32Decode decodes a bech32-encoded identifier (npub, note,
	// nprofile, ...) into its kind tag and lowercase-hex payload.
	// Returns ok=false if s is not valid bech32.
	Bech32Decode(s string) (kind string, hex string, ok bool)
	// IsHex64 reports whether s is a 64-character lowercase/uppercase
	// hex string (an event id or pubkey in raw hex form).
	IsHex64(s string) bool
	// Normalize lowercases and trims a hex identifier.
	Normalize(s string) string
}

// LanguageDetector classifies event content by language.
type LanguageDetector interface {
	// Detect returns an ISO-639-3 code, or "und" if the language could
	// not be determined (including when text is shorter than 10
	// runes, per §6).
	Detect(text string) string
}

// FunctionDefinition is what FunctionResolver.Load returns: a function
// definition's declared sockets and its interior graph document.
type FunctionDefinition struct {
	Pubkey        string
	InputSockets  []FuncSocket
	OutputSockets []FuncSocket
	// InteriorGraph is the function's interior graph document, in the
	// same {version, nodes, edges} shape GraphRuntime serialises
	// (§4.8, §6).
	InteriorGraph json.RawMessage
}

// FuncSocket names one parameter or return value of a function
// definition.
type FuncSocket struct {
	Name   string
	Socket socket.Kind
}

// FunctionResolver loads a function definition by path.
type FunctionResolver interface {
	// Load fetches the function definition at path. Returns ok=false
	// if no definition exists at that path (§6 "load(path) -> ... |
	// none").
	Load(ctx context.Context, path string) (def FunctionDefinition, ok bool, err error)
}

// NameLookup resolves a display-name substring to candidate pubkeys,
// backed by the profile cache the relay source populates.
type NameLookup interface {
	// FindPubkeysByName performs a case-insensitive substring match
	// over cached profile display names.
	FindPubkeysByName(ctx context.Context, needle string) ([]string, error)
}
