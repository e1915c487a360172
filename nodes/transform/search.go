package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/nugget/nostrgraph/node"
	"github.com/nugget/nostrgraph/signal"
	"github.com/nugget/nostrgraph/socket"
	"github.com/nugget/nostrgraph/stream"
)

// SearchNode filters events by a keyword, either as a case-insensitive
// substring or a case-insensitive regular expression. An empty keyword
// passes everything; an invalid regex drops everything (§4.4, §7 "Data"
// errors).
type SearchNode struct {
	node.Base

	mu        sync.Mutex
	keyword   string
	regexMode bool
	compiled  *regexp.Regexp
	sub       stream.Handle
}

// NewSearch creates a SearchNode.
func NewSearch(id string) *SearchNode {
	s := &SearchNode{Base: node.NewBase(id, "search")}
	s.SetPortsIn([]node.Port{{Name: "event", Socket: socket.Event}})
	s.SetPortsOut([]node.Port{{Name: "out", Socket: socket.Event}})
	s.SetControl("keyword", node.Control{Kind: node.TextInput, Label: "Keyword", Value: "", Rebuilds: false})
	s.SetControl("regex", node.Control{Kind: node.Toggle, Label: "Regex mode", Value: false, Rebuilds: false})
	return s
}

// SetKeyword sets the search keyword.
func (s *SearchNode) SetKeyword(keyword string) {
	s.mu.Lock()
	s.keyword = keyword
	s.recompile()
	s.mu.Unlock()
	s.SetControl("keyword", node.Control{Kind: node.TextInput, Label: "Keyword", Value: keyword, Rebuilds: false})
}

// SetRegexMode toggles between substring and regex matching.
func (s *SearchNode) SetRegexMode(regexMode bool) {
	s.mu.Lock()
	s.regexMode = regexMode
	s.recompile()
	s.mu.Unlock()
	s.SetControl("regex", node.Control{Kind: node.Toggle, Label: "Regex mode", Value: regexMode, Rebuilds: false})
}

// recompile must be called with mu held.
func (s *SearchNode) recompile() {
	s.compiled = nil
	if !s.regexMode || s.keyword == "" {
		return
	}
	re, err := regexp.Compile("(?i)" + s.keyword)
	if err == nil {
		s.compiled = re
	}
}

func (s *SearchNode) matches(content string) bool {
	s.mu.Lock()
	keyword, regexMode, compiled := s.keyword, s.regexMode, s.compiled
	s.mu.Unlock()

	if keyword == "" {
		return true
	}
	if regexMode {
		return compiled != nil && compiled.MatchString(content)
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(keyword))
}

func (s *SearchNode) Rebuild(bindings node.InputBindings) error {
	s.sub.Cancel()
	in, ok := bindings["event"]
	if !ok {
		s.sub = stream.Handle{}
		return nil
	}
	out := s.Output("out")
	s.sub = in.Subscribe(func(sig signal.Signal) {
		evt, ok := sig.Evt()
		if !ok {
			return
		}
		if s.matches(evt.Content) {
			out.Emit(sig)
		}
	}, nil)
	return nil
}

func (s *SearchNode) Dispose() {
	s.sub.Cancel()
	s.DisposeOutputs()
}

type searchSnapshot struct {
	Keyword   string `json:"keyword"`
	RegexMode bool   `json:"regex_mode"`
}

func (s *SearchNode) Serialise() (json.RawMessage, error) {
	s.mu.Lock()
	snap := searchSnapshot{Keyword: s.keyword, RegexMode: s.regexMode}
	s.mu.Unlock()
	return json.Marshal(snap)
}

func (s *SearchNode) Restore(data json.RawMessage) error {
	var snap searchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("search: restore: %w", err)
	}
	s.SetKeyword(snap.Keyword)
	s.SetRegexMode(snap.RegexMode)
	return nil
}
