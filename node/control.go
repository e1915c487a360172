package node

// ControlKind is the closed set of control widget kinds a node may
// expose, matching the source's prototype-chain control dispatch
// (§9): rendering is pattern-matching over this tag, not virtual
// dispatch.
type ControlKind string

const (
	TextInput     ControlKind = "text_input"
	TextArea      ControlKind = "text_area"
	Select        ControlKind = "select"
	Checkbox      ControlKind = "checkbox"
	CheckboxGroup ControlKind = "checkbox_group"
	Toggle        ControlKind = "toggle"
	Filter        ControlKind = "filter"
	SimpleFilter  ControlKind = "simple_filter"
	SocketList    ControlKind = "socket_list"
	StatusLamp    ControlKind = "status_lamp"
)

// Control is a tagged descriptor the UI binds a widget to. Label and
// Value are common to every kind; Options carries the enum choices for
// Select/CheckboxGroup; Rebuilds declares whether changing this
// control's Value triggers the owning node's Rebuild (a "rebuilding
// control") or only mutates local state (§4.2).
type Control struct {
	Kind     ControlKind
	Label    string
	Value    any
	Options  []string
	Rebuilds bool
}
