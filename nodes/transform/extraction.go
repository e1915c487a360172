// Package transform implements the stateless and small-state per-signal
// transformer nodes: extraction, language/search/NIP-01 filtering,
// sampling, delay, and counting (§4.4).
package transform

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// Extraction fields, matching the source's field selector (§4.4).
const (
	FieldEventID    = "eventId"
	FieldAuthor     = "author"
	FieldCreatedAt  = "created_at"
	FieldTagE       = "#e"
	FieldTagP       = "#p"
	FieldTagQ       = "#q"
	FieldTagR       = "#r"
)

// Relay tag marker sub-selectors for field #r.
const (
	MarkerAll        = "all"
	MarkerOnlyRead   = "only-read-marker"
	MarkerOnlyWrite  = "only-write-marker"
	MarkerOnlyUnmark = "only-unmarked"
)

var extractionOutputSocket = map[string]socket.Kind{
	FieldEventID:   socket.EventId,
	FieldAuthor:    socket.Pubkey,
	FieldCreatedAt: socket.Datetime,
	FieldTagE:      socket.EventId,
	FieldTagP:      socket.Pubkey,
	FieldTagQ:      socket.EventId,
	FieldTagR:      socket.Relay,
}

// ExtractionNode extracts one scalar or identifier field from an
// incoming Event. Tag-sourced fields (#e, #p, #q, #r) emit one output
// signal per matching tag, each preserving the incoming delta.
type ExtractionNode struct {
	node.Base

	mu      sync.Mutex
	field   string
	rMarker string
	sub     stream.Handle
}

// NewExtraction creates an ExtractionNode for the given field.
func NewExtraction(id, field string) *ExtractionNode {
	e := &ExtractionNode{
		Base:    node.NewBase(id, "extraction"),
		field:   field,
		rMarker: MarkerAll,
	}
	e.SetPortsIn([]node.Port{{Name: "event", Socket: socket.Event}})
	e.SetPortsOut([]node.Port{{Name: "out", Socket: extractionOutputSocket[field]}})
	e.SetControl("field", node.Control{Kind: node.Select, Label: "Field", Value: field, Rebuilds: true})
	e.SetControl("r_marker", node.Control{
		Kind: node.Select, Label: "Relay marker", Value: MarkerAll, Rebuilds: false,
	})
	return e
}

// SetField changes the field selector and the node's output socket
// kind accordingly.
func (e *ExtractionNode) SetField(field string) error {
	out, ok := extractionOutputSocket[field]
	if !ok {
		return fmt.Errorf("extraction: unsupported field %q", field)
	}
	e.mu.Lock()
	e.field = field
	e.mu.Unlock()
	e.SetPortsOut([]node.Port{{Name: "out", Socket: out}})
	e.SetControl("field", node.Control{Kind: node.Select, Label: "Field", Value: field, Rebuilds: true})
	return nil
}

// SetRelayMarker sets the #r sub-selector. Only meaningful when field
// is #r; the relay-marker control is disabled otherwise (a UI
// concern, not enforced here).
func (e *ExtractionNode) SetRelayMarker(marker string) {
	e.mu.Lock()
	e.rMarker = marker
	e.mu.Unlock()
	e.SetControl("r_marker", node.Control{Kind: node.Select, Label: "Relay marker", Value: marker, Rebuilds: false})
}

func (e *ExtractionNode) Rebuild(bindings node.InputBindings) error {
	e.sub.Cancel()

	in, ok := bindings["event"]
	if !ok {
		e.sub = stream.Handle{}
		return nil
	}
	out := e.Output("out")
	e.sub = in.Subscribe(func(s signal.Signal) {
		evt, ok := s.Evt()
		if !ok {
			return
		}
		e.extract(evt, s.Delta, out)
	}, nil)
	return nil
}

func (e *ExtractionNode) extract(evt signal.Event, delta signal.Delta, out *stream.Stream[signal.Signal]) {
	e.mu.Lock()
	field, rMarker := e.field, e.rMarker
	e.mu.Unlock()

	switch field {
	case FieldEventID:
		out.Emit(signal.New(socket.EventId, signal.NormalizeHex(evt.ID), delta))
	case FieldAuthor:
		out.Emit(signal.New(socket.Pubkey, signal.NormalizeHex(evt.Pubkey), delta))
	case FieldCreatedAt:
		out.Emit(signal.New(socket.Datetime, evt.CreatedAt, delta))
	case FieldTagE, FieldTagP, FieldTagQ:
		letter := field[1:]
		for _, tag := range evt.Tags {
			if len(tag) >= 2 && tag[0] == letter {
				kind := socket.EventId
				if field == FieldTagP {
					kind = socket.Pubkey
				}
				out.Emit(signal.New(kind, signal.NormalizeHex(tag[1]), delta))
			}
		}
	case FieldTagR:
		for _, tag := range evt.Tags {
			if len(tag) < 2 || tag[0] != "r" {
				continue
			}
			marker := ""
			if len(tag) >= 3 {
				marker = tag[2]
			}
			if !relayMarkerMatches(rMarker, marker) {
				continue
			}
			out.Emit(signal.New(socket.Relay, signal.NormalizeRelay(tag[1]), delta))
		}
	}
}

func relayMarkerMatches(selector, marker string) bool {
	switch selector {
	case MarkerOnlyRead:
		return marker == "read"
	case MarkerOnlyWrite:
		return marker == "write"
	case MarkerOnlyUnmark:
		return marker == ""
	default: // MarkerAll or unrecognised: no filtering
		return true
	}
}

func (e *ExtractionNode) Dispose() {
	e.sub.Cancel()
	e.DisposeOutputs()
}

type extractionSnapshot struct {
	Field   string `json:"field"`
	RMarker string `json:"r_marker"`
}

func (e *ExtractionNode) Serialise() (json.RawMessage, error) {
	e.mu.Lock()
	snap := extractionSnapshot{Field: e.field, RMarker: e.rMarker}
	e.mu.Unlock()
	return json.Marshal(snap)
}

func (e *ExtractionNode) Restore(data json.RawMessage) error {
	var snap extractionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("extraction: restore: %w", err)
	}
	if err := e.SetField(snap.Field); err != nil {
		return err
	}
	if snap.RMarker != "" {
		e.SetRelayMarker(snap.RMarker)
	}
	return nil
}
