package messages

import (
	"bytes"
	"encoding/json"
)

// Inbound message types sent by the canvas.
const (
	TypeSync             = "sync"
	TypeNodeMoved        = "node_moved"
	TypeSelectionChanged = "selection_changed"
	TypeEdgeAdded        = "edge_added"
	TypeNodeDeleted      = "node_deleted"
	TypeEdgeDeleted      = "edge_deleted"
	TypeNodeClicked      = "node_clicked"
	TypeToolbarOpened    = "toolbar_opened"
	TypeEditorPatch      = "editor_patch"
)

// Outbound message types sent to the canvas.
const (
	TypePatchNodeData = "patch_node_data"
	TypePatchEdgeData = "patch_edge_data"
	TypeTypes         = "types"
)

// Message is a tagged JSON object: {"type": ..., ...fields}.
type Message map[string]any

// Parse decodes raw bytes into a message. Anything that is not a JSON object
// with a string "type" is rejected.
func Parse(raw []byte) (Message, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	msg := Message(m)
	if msg.Type() == "" {
		return nil, false
	}
	return msg, true
}

// From accepts the shapes a transport hands over.
func From(v any) (Message, bool) {
	switch m := v.(type) {
	case Message:
		return m, m != nil && m.Type() != ""
	case map[string]any:
		return From(Message(m))
	case []byte:
		return Parse(m)
	case json.RawMessage:
		return Parse(m)
	case string:
		return Parse([]byte(m))
	}
	return nil, false
}

// Type returns the message tag or "".
func (m Message) Type() string {
	s, _ := m["type"].(string)
	return s
}

// String returns a string field.
func (m Message) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok && s != ""
}

// Has reports whether key is present and not null.
func (m Message) Has(key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// Map returns an object field.
func (m Message) Map(key string) (map[string]any, bool) {
	switch v := m[key].(type) {
	case map[string]any:
		return v, true
	case Message:
		return v, true
	}
	return nil, false
}

// Strings returns a list of strings, skipping non-string items.
func (m Message) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Decode re-encodes field key into out, used for nested node and edge payloads.
func (m Message) Decode(key string, out any) error {
	raw, err := json.Marshal(m[key])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
