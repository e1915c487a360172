// Package signal defines the tagged envelope carried on every edge of
// the graph, the Nostr event value type, and the normalisation helpers
// applied to identifier values before they leave a source or extractor.
package signal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/nugget/nostrgraph/socket"
)

// Delta tags whether a signal represents an item entering or leaving
// the conceptual set a stream models.
type Delta int

const (
	// Add signals that value is entering the set.
	Add Delta = iota
	// Remove signals that value is leaving the set, cancelling a
	// conceptually matching prior or future Add.
	Remove
)

// String renders the delta for logging.
func (d Delta) String() string {
	if d == Remove {
		return "remove"
	}
	return "add"
}

// Flip returns the opposite delta, used by the A-B set operator.
func (d Delta) Flip() Delta {
	if d == Add {
		return Remove
	}
	return Add
}

// RelayStatusValue is the closed set of values a RelayStatus socket may
// carry.
type RelayStatusValue string

const (
	StatusIdle        RelayStatusValue = "idle"
	StatusConnecting  RelayStatusValue = "connecting"
	StatusSubStored   RelayStatusValue = "sub-stored"
	StatusEOSE        RelayStatusValue = "EOSE"
	StatusSubRealtime RelayStatusValue = "sub-realtime"
	StatusClosed      RelayStatusValue = "closed"
	StatusError       RelayStatusValue = "error"
)

// Event is a Nostr event record. Tags are preserved as the raw
// sequence of string tuples; extractors interpret tag semantics.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

// Signal is the payload carried on every edge: a tagged value with a
// delta marker. Kind declares the socket type of Value so that
// exhaustive type switches on Value can be compiler-checked at the call
// site by convention (the tag itself is not type-checked by Go).
type Signal struct {
	Kind  socket.Kind
	Value any
	Delta Delta
}

// New builds a Signal, panicking if kind is not one of the closed set
// of socket kinds — a programmer error, not a data error.
func New(kind socket.Kind, value any, delta Delta) Signal {
	if !kind.Valid() {
		panic(fmt.Sprintf("signal: invalid socket kind %q", kind))
	}
	return Signal{Kind: kind, Value: value, Delta: delta}
}

// Int64 returns the Integer or Datetime value carried by s.
func (s Signal) Int64() (int64, bool) {
	v, ok := s.Value.(int64)
	return v, ok
}

// Str returns the string value carried by s (EventId, Pubkey, Relay).
func (s Signal) Str() (string, bool) {
	v, ok := s.Value.(string)
	return v, ok
}

// Bool returns the Flag value carried by s.
func (s Signal) Bool() (bool, bool) {
	v, ok := s.Value.(bool)
	return v, ok
}

// Evt returns the Event value carried by s.
func (s Signal) Evt() (Event, bool) {
	v, ok := s.Value.(Event)
	return v, ok
}

// RelayStatusVal returns the RelayStatusValue carried by s.
func (s Signal) RelayStatusVal() (RelayStatusValue, bool) {
	v, ok := s.Value.(RelayStatusValue)
	return v, ok
}

// ParseDatetime parses a Datetime-kind constant or filter bound: an
// ISO-8601 timestamp, falling back to a unix-second integer.
func ParseDatetime(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.Unix(), nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("signal: invalid datetime %q", raw)
	}
	return n, nil
}

// NormalizeHex lowercases and trims a hex identifier (Invariant 2). It
// does not validate hex-64 shape; callers that need strict validation
// use the IdentifierCodec port.
func NormalizeHex(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRelay canonicalises a relay URL for comparison and
// deduplication: the scheme and path are lowercased verbatim, and the
// host is idna-folded so internationalized relay hostnames compare
// equal to their ASCII (punycode) form before the whole string is
// lowercased, matching Invariant 2's "identifiers are normalised"
// requirement for Relay-kind values.
func NormalizeRelay(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	schemeSep := strings.Index(trimmed, "://")
	if schemeSep < 0 {
		return strings.ToLower(trimmed)
	}
	scheme := trimmed[:schemeSep]
	rest := trimmed[schemeSep+3:]

	hostEnd := strings.IndexAny(rest, "/?#")
	host := rest
	tail := ""
	if hostEnd >= 0 {
		host = rest[:hostEnd]
		tail = rest[hostEnd:]
	}

	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}

	return strings.ToLower(scheme) + "://" + strings.ToLower(host) + tail
}

// CanonicalRelayList joins a sorted, deduplicated set of normalised
// relay URLs with newlines — the canonical form the If comparator uses
// to compare Relay-kind values (§4.6).
func CanonicalRelayList(urls []string) string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		n := NormalizeRelay(u)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return strings.Join(out, "\n")
}
