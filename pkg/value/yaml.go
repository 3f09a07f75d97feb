package value

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MarshalYAML renders v as a plain YAML node. Objects are rendered via
// mapToNode rather than an intermediate map[string]interface{}, since the
// latter would discard Map's insertion order.
func (v Value) MarshalYAML() (interface{}, error) {
	return valueToNode(v)
}

// MarshalYAML renders m as a YAML mapping node in insertion order.
func (m *Map) MarshalYAML() (interface{}, error) {
	return mapToNode(m)
}

// UnmarshalYAML decodes a YAML node into v. Total like UnmarshalJSON: every
// scalar/sequence/mapping shape decodes to some Value.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	out, err := nodeToValue(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// UnmarshalYAML decodes a YAML mapping node into m, preserving document key
// order the way UnmarshalJSON preserves it for the JSON form.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	v, err := nodeToValue(node)
	if err != nil {
		return err
	}
	if v.kind != KindObject {
		return errNotObject
	}
	*m = *v.obj
	return nil
}

func valueToNode(v Value) (*yaml.Node, error) {
	switch v.kind {
	case KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case KindText:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.text}, nil
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.boul)}, nil
	case KindUint:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(v.uintv, 10)}, nil
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.intv, 10)}, nil
	case KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v.fltv, 'g', -1, 64)}, nil
	case KindObject:
		return mapToNode(v.obj)
	case KindArray:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.arr {
			n, err := valueToNode(e)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

func mapToNode(m *Map) (*yaml.Node, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if m == nil {
		return mapping, nil
	}
	for _, k := range m.keys {
		valNode, err := valueToNode(m.values[k])
		if err != nil {
			return nil, err
		}
		mapping.Content = append(mapping.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, valNode)
	}
	return mapping, nil
}

func nodeToValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return nodeToValue(node.Content[0])
	case yaml.AliasNode:
		return nodeToValue(node.Alias)
	case yaml.ScalarNode:
		return scalarToValue(node)
	case yaml.SequenceNode:
		out := make([]Value, 0, len(node.Content))
		for _, c := range node.Content {
			ev, err := nodeToValue(c)
			if err != nil {
				return Value{}, err
			}
			out = append(out, ev)
		}
		return Array(out), nil
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("value: unsupported non-scalar map key")
			}
			ev, err := nodeToValue(valNode)
			if err != nil {
				return Value{}, err
			}
			m.Set(keyNode.Value, ev)
		}
		return Object(m), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported YAML node kind %v", node.Kind)
	}
}

func scalarToValue(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		if i, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
			if i >= 0 {
				return Uint(uint64(i)), nil
			}
			return Int(i), nil
		}
		if u, err := strconv.ParseUint(node.Value, 10, 64); err == nil {
			return Uint(u), nil
		}
		return Value{}, fmt.Errorf("value: invalid !!int scalar %q", node.Value)
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	default:
		return Text(node.Value), nil
	}
}
