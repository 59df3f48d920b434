package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type leafJSON struct {
	Field  string   `json:"field"`
	Op     Operator `json:"op"`
	Values []any    `json:"values,omitempty"`
}

type groupJSON struct {
	And []json.RawMessage `json:"and,omitempty"`
	Or  []json.RawMessage `json:"or,omitempty"`
}

// MarshalJSON encodes the leaf as {"field","op","values"}.
func (l *Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(leafJSON{Field: l.field, Op: l.op, Values: l.values})
}

// MarshalJSON encodes the group as {"and":[...]} or {"or":[...]}.
func (g *Group) MarshalJSON() ([]byte, error) {
	children := g.children
	if children == nil {
		children = []Node{}
	}
	key := "and"
	if g.conj == Or {
		key = "or"
	}
	return json.Marshal(map[string][]Node{key: children})
}

// ParseJSON decodes a condition tree and validates every leaf.
// The result is always a group; a leaf document is wrapped by Root.
// Numbers decode as int64 when integral and float64 otherwise.
func ParseJSON(data []byte) (*Group, error) {
	n, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	return Root(n), nil
}

func decodeNode(data []byte) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("condition: decode node: %w", err)
	}
	_, hasAnd := probe["and"]
	_, hasOr := probe["or"]
	switch {
	case hasAnd && hasOr:
		return nil, fmt.Errorf("condition: group has both \"and\" and \"or\"")
	case hasAnd || hasOr:
		var g groupJSON
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("condition: decode group: %w", err)
		}
		conj, raw := And, g.And
		if hasOr {
			conj, raw = Or, g.Or
		}
		children := make([]Node, 0, len(raw))
		for _, r := range raw {
			c, err := decodeNode(r)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		return NewGroup(conj, children...), nil
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		var l leafJSON
		if err := dec.Decode(&l); err != nil {
			return nil, fmt.Errorf("condition: decode leaf: %w", err)
		}
		values := make([]any, len(l.Values))
		for i, v := range l.Values {
			values[i] = normalizeNumber(v)
		}
		return NewLeaf(l.Field, l.Op, values...)
	}
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
