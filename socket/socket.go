// Package socket defines the closed set of value-type markers used for
// edge compatibility checks throughout the graph. A Socket never carries
// a value itself; it only tags the shape of the value carried by a
// signal (see package signal) and is checked when an edge is wired.
package socket

import "fmt"

// Kind is a value-type marker for ports and edges.
type Kind string

// The closed set of socket kinds. No other value is valid.
const (
	Event       Kind = "event"
	EventId     Kind = "event_id"
	Pubkey      Kind = "pubkey"
	Relay       Kind = "relay"
	Flag        Kind = "flag"
	Integer     Kind = "integer"
	Datetime    Kind = "datetime"
	RelayStatus Kind = "relay_status"
	Trigger     Kind = "trigger"
	Any         Kind = "any"
)

// all enumerates every valid Kind, used by Valid and for diagnostics.
var all = map[Kind]struct{}{
	Event: {}, EventId: {}, Pubkey: {}, Relay: {}, Flag: {},
	Integer: {}, Datetime: {}, RelayStatus: {}, Trigger: {}, Any: {},
}

// Valid reports whether k is one of the closed set of socket kinds.
func (k Kind) Valid() bool {
	_, ok := all[k]
	return ok
}

// Compatible reports whether a signal of kind src may be delivered to a
// port declared as dst. Any is assignable from and to every other kind;
// otherwise the kinds must be identical.
func Compatible(src, dst Kind) bool {
	if src == Any || dst == Any {
		return true
	}
	return src == dst
}

// CheckEdge validates that a source port's socket kind may legally be
// wired to a destination port's socket kind, returning a descriptive
// error if not. This is the check GraphRuntime.AddEdge performs before
// registering an edge (Invariant 4).
func CheckEdge(src, dst Kind) error {
	if !src.Valid() {
		return fmt.Errorf("socket: invalid source kind %q", src)
	}
	if !dst.Valid() {
		return fmt.Errorf("socket: invalid destination kind %q", dst)
	}
	if !Compatible(src, dst) {
		return fmt.Errorf("socket: incompatible edge %s -> %s", src, dst)
	}
	return nil
}
