package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// NostrFilterNode applies a list of (field, value) predicates, ANDed
// over non-empty entries, to incoming events, with an optional final
// inversion (§4.4).
type NostrFilterNode struct {
	node.Base

	codec  ports.IdentifierCodec
	lookup ports.NameLookup

	mu         sync.Mutex
	rawKinds   string
	rawAuthors string
	rawETags   string
	rawPTags   string
	rawTTags   string
	rawSince   string
	rawUntil   string
	kinds      map[int64]struct{}
	authors    map[string]struct{}
	eTags      map[string]struct{}
	pTags      map[string]struct{}
	tTags      map[string]struct{}
	since      *int64
	until      *int64
	exclude    bool
	sub        stream.Handle
}

// NewNostrFilter creates a NostrFilterNode.
func NewNostrFilter(id string, codec ports.IdentifierCodec, lookup ports.NameLookup) *NostrFilterNode {
	n := &NostrFilterNode{
		Base:   node.NewBase(id, "nostr_filter"),
		codec:  codec,
		lookup: lookup,
	}
	n.SetPortsIn([]node.Port{{Name: "event", Socket: socket.Event}})
	n.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Event}})
	n.SetControl("kinds", node.Control{Kind: node.TextInput, Label: "Kinds", Value: "", Rebuilds: false})
	n.SetControl("authors", node.Control{Kind: node.TextInput, Label: "Authors", Value: "", Rebuilds: false})
	n.SetControl("exclude", node.Control{Kind: node.Toggle, Label: "Exclude", Value: false, Rebuilds: false})
	return n
}

// SetKinds parses a comma-separated list of integer kinds. An empty
// string clears the predicate (skipped, per §4.4).
func (n *NostrFilterNode) SetKinds(raw string) error {
	set := make(map[int64]struct{})
	for _, tok := range splitNonEmpty(raw) {
		k, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
		if err != nil {
			return fmt.Errorf("nostr_filter: invalid kind %q: %w", tok, err)
		}
		set[k] = struct{}{}
	}
	n.mu.Lock()
	n.rawKinds = raw
	if len(set) == 0 {
		n.kinds = nil
	} else {
		n.kinds = set
	}
	n.mu.Unlock()
	n.SetControl("kinds", node.Control{Kind: node.TextInput, Label: "Kinds", Value: raw, Rebuilds: false})
	return nil
}

// SetAuthors resolves a comma-separated list of author tokens (bech32,
// hex-64, or profile name) into a set of hex pubkeys (§4.4, §6).
func (n *NostrFilterNode) SetAuthors(ctx context.Context, raw string) error {
	set, err := n.resolveList(ctx, raw, true)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.rawAuthors = raw
	n.authors = set
	n.mu.Unlock()
	n.SetControl("authors", node.Control{Kind: node.TextInput, Label: "Authors", Value: raw, Rebuilds: false})
	return nil
}

// SetETags resolves a comma-separated list of #e tag values.
func (n *NostrFilterNode) SetETags(ctx context.Context, raw string) error {
	set, err := n.resolveList(ctx, raw, true)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.rawETags = raw
	n.eTags = set
	n.mu.Unlock()
	return nil
}

// SetPTags resolves a comma-separated list of #p tag values.
func (n *NostrFilterNode) SetPTags(ctx context.Context, raw string) error {
	set, err := n.resolveList(ctx, raw, true)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.rawPTags = raw
	n.pTags = set
	n.mu.Unlock()
	return nil
}

// SetTTags sets a comma-separated list of #t (hashtag) values. #t
// values that are not hex/bech32 pass through unresolved rather than
// falling back to name lookup (§4.4).
func (n *NostrFilterNode) SetTTags(ctx context.Context, raw string) error {
	set, err := n.resolveList(ctx, raw, false)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.rawTTags = raw
	n.tTags = set
	n.mu.Unlock()
	return nil
}

// SetSince sets the inclusive lower created_at bound. An empty string
// clears the predicate.
func (n *NostrFilterNode) SetSince(raw string) error {
	v, err := parseOptionalDatetime(raw)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.rawSince = raw
	n.since = v
	n.mu.Unlock()
	return nil
}

// SetUntil sets the inclusive upper created_at bound.
func (n *NostrFilterNode) SetUntil(raw string) error {
	v, err := parseOptionalDatetime(raw)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.rawUntil = raw
	n.until = v
	n.mu.Unlock()
	return nil
}

// SetExclude toggles whether the combined predicate result is
// inverted.
func (n *NostrFilterNode) SetExclude(exclude bool) {
	n.mu.Lock()
	n.exclude = exclude
	n.mu.Unlock()
	n.SetControl("exclude", node.Control{Kind: node.Toggle, Label: "Exclude", Value: exclude, Rebuilds: false})
}

func parseOptionalDatetime(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := signal.ParseDatetime(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// resolveList resolves each comma-separated token via bech32 decode,
// hex-64 passthrough, or (if allowLookup and a lookup is set) name
// lookup. Any other token is kept lowercased, matching #t passthrough
// semantics (raw values that are not identifiers are kept as-is).
func (n *NostrFilterNode) resolveList(ctx context.Context, raw string, allowLookup bool) (map[string]struct{}, error) {
	tokens := splitNonEmpty(raw)
	if len(tokens) == 0 {
		return nil, nil
	}
	set := make(map[string]struct{})
	for _, tok := range tokens {
		resolved, err := n.resolveToken(ctx, tok, allowLookup)
		if err != nil {
			return nil, err
		}
		for _, r := range resolved {
			set[r] = struct{}{}
		}
	}
	return set, nil
}

func (n *NostrFilterNode) resolveToken(ctx context.Context, tok string, allowLookup bool) ([]string, error) {
	if n.codec != nil {
		if n.codec.IsHex64(tok) {
			return []string{n.codec.Normalize(tok)}, nil
		}
		if _, hex, ok := n.codec.Bech32Decode(tok); ok {
			return []string{hex}, nil
		}
	}
	if allowLookup && n.lookup != nil {
		matches, err := n.lookup.FindPubkeysByName(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("nostr_filter: name lookup %q: %w", tok, err)
		}
		return matches, nil
	}
	return []string{strings.ToLower(tok)}, nil
}

func (n *NostrFilterNode) Rebuild(bindings node.InputBindings) error {
	n.sub.Cancel()
	in, ok := bindings["event"]
	if !ok {
		n.sub = stream.Handle{}
		return nil
	}
	out := n.Output("out")
	n.sub = in.Subscribe(func(s signal.Signal) {
		evt, ok := s.Evt()
		if !ok {
			return
		}
		if n.matches(evt) {
			out.Emit(s)
		}
	}, nil)
	return nil
}

func (n *NostrFilterNode) matches(evt signal.Event) bool {
	n.mu.Lock()
	kinds, authors, eTags, pTags, tTags := n.kinds, n.authors, n.eTags, n.pTags, n.tTags
	since, until, exclude := n.since, n.until, n.exclude
	n.mu.Unlock()

	result := true
	if len(kinds) > 0 {
		if _, ok := kinds[int64(evt.Kind)]; !ok {
			result = false
		}
	}
	if result && len(authors) > 0 {
		if _, ok := authors[signal.NormalizeHex(evt.Pubkey)]; !ok {
			result = false
		}
	}
	if result && len(eTags) > 0 && !anyTagMatches(evt, "e", eTags) {
		result = false
	}
	if result && len(pTags) > 0 && !anyTagMatches(evt, "p", pTags) {
		result = false
	}
	if result && len(tTags) > 0 && !anyTagMatches(evt, "t", tTags) {
		result = false
	}
	if result && since != nil && evt.CreatedAt < *since {
		result = false
	}
	if result && until != nil && evt.CreatedAt > *until {
		result = false
	}

	if exclude {
		return !result
	}
	return result
}

func anyTagMatches(evt signal.Event, letter string, set map[string]struct{}) bool {
	for _, tag := range evt.Tags {
		if len(tag) < 2 || tag[0] != letter {
			continue
		}
		if _, ok := set[strings.ToLower(tag[1])]; ok {
			return true
		}
	}
	return false
}

func (n *NostrFilterNode) Dispose() {
	n.sub.Cancel()
	n.DisposeOutputs()
}

type nostrFilterSnapshot struct {
	Kinds   string `json:"kinds"`
	Authors string `json:"authors"`
	ETags   string `json:"e_tags,omitempty"`
	PTags   string `json:"p_tags,omitempty"`
	TTags   string `json:"t_tags,omitempty"`
	Since   string `json:"since,omitempty"`
	Until   string `json:"until,omitempty"`
	Exclude bool   `json:"exclude"`
}

func (n *NostrFilterNode) Serialise() (json.RawMessage, error) {
	n.mu.Lock()
	snap := nostrFilterSnapshot{
		Kinds:   n.rawKinds,
		Authors: n.rawAuthors,
		ETags:   n.rawETags,
		PTags:   n.rawPTags,
		TTags:   n.rawTTags,
		Since:   n.rawSince,
		Until:   n.rawUntil,
		Exclude: n.exclude,
	}
	n.mu.Unlock()
	return json.Marshal(snap)
}

func (n *NostrFilterNode) Restore(data json.RawMessage) error {
	var snap nostrFilterSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("nostr_filter: restore: %w", err)
	}
	ctx := context.Background()
	if snap.Kinds != "" {
		if err := n.SetKinds(snap.Kinds); err != nil {
			return err
		}
	}
	if snap.Authors != "" {
		if err := n.SetAuthors(ctx, snap.Authors); err != nil {
			return err
		}
	}
	if snap.ETags != "" {
		if err := n.SetETags(ctx, snap.ETags); err != nil {
			return err
		}
	}
	if snap.PTags != "" {
		if err := n.SetPTags(ctx, snap.PTags); err != nil {
			return err
		}
	}
	if snap.TTags != "" {
		if err := n.SetTTags(ctx, snap.TTags); err != nil {
			return err
		}
	}
	if snap.Since != "" {
		if err := n.SetSince(snap.Since); err != nil {
			return err
		}
	}
	if snap.Until != "" {
		if err := n.SetUntil(snap.Until); err != nil {
			return err
		}
	}
	n.SetExclude(snap.Exclude)
	return nil
}
