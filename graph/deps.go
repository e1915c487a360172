// Package graph implements GraphRuntime: the node/edge set, the
// recompute/rebuild cascade that reacts to structural edits, and the
// JSON serialisation/restoration protocol (§4.8). It owns the single
// factory capable of constructing every node type in this module,
// including the ones (relay source, NIP-07, function, operator,
// timeline) that nodes/function's interior-only registry deliberately
// does not know how to build.
package graph

import (
	"log/slog"
	"time"

	"github.com/nugget/nostrgraph/internal/diag"
	"github.com/nugget/nostrgraph/ports"
)

// Diagnostics is the structural event bus GraphRuntime publishes to —
// node/edge changes, rebuilds, restore failures — kept distinct from
// the Signal data path (§4.8 SPEC_FULL "GraphRuntime event log").
type Diagnostics = diag.Bus

// NewDiagnostics creates a ready-to-use Diagnostics bus.
func NewDiagnostics() *Diagnostics { return diag.New() }

// Deps bundles the external collaborator ports (§6) GraphRuntime's
// node factory wires into the node types that need them. Any field may
// be nil; the corresponding node type degrades per its own §7 "Data"
// or "Resource" error handling (e.g. a nil RelayTransport leaves
// RelaySourceNode perpetually idle rather than panicking).
type Deps struct {
	RelayTransport   ports.RelayTransport
	Nip07Bridge      ports.Nip07Bridge
	FunctionResolver ports.FunctionResolver
	IdentifierCodec  ports.IdentifierCodec
	LanguageDetector ports.LanguageDetector
	NameLookup       ports.NameLookup

	Nip07MaxRetries int
	Nip07RetryDelay time.Duration

	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
