package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Short tags yaml.v3 resolves plain and JSON scalars to
const (
	TagStr   = "!!str"
	TagInt   = "!!int"
	TagFloat = "!!float"
	TagBool  = "!!bool"
	TagNull  = "!!null"
)

var (
	ErrNotMapping = errors.New("config: params must be a mapping")
	ErrWrongType  = errors.New("config: wrong type")
	ErrLength     = errors.New("config: wrong length")
)

// Param is one key of a device's parameter mapping
type Param struct {
	Key   string
	Value *yaml.Node
}

// Params keeps every key in document order, duplicates included, so the
// device can decide what a repeated key means
type Params []Param

// IsComment reports whether the key is a comment ("_" prefix)
func (p Param) IsComment() bool {
	return len(p.Key) > 0 && p.Key[0] == '_'
}

// Line is the source line of the value, 0 if unknown
func (p Param) Line() int {
	if p.Value == nil {
		return 0
	}
	return p.Value.Line
}

// ParseParams parses a YAML or JSON mapping
func ParseParams(data []byte) (Params, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse params: %w", err)
	}
	if doc.Kind == 0 {
		return Params{}, nil
	}
	return ParamsFromNode(&doc)
}

// ParamsFromNode flattens a mapping node. A zero node gives no params.
func ParamsFromNode(n *yaml.Node) (Params, error) {
	if n == nil || n.Kind == 0 {
		return Params{}, nil
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return Params{}, nil
		}
		n = n.Content[0]
	}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == TagNull {
		return Params{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w (line %d)", ErrNotMapping, n.Line)
	}

	params := make(Params, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		params = append(params, Param{Key: n.Content[i].Value, Value: n.Content[i+1]})
	}
	return params, nil
}

// Kind names the value the way error messages describe it
func Kind(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.SequenceNode:
		return "array"
	case yaml.MappingNode:
		return "object"
	case yaml.AliasNode:
		return Kind(deref(n))
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case TagStr:
			return "string"
		case TagInt:
			return "integer"
		case TagFloat:
			return "number"
		case TagBool:
			return "boolean"
		case TagNull:
			return "null"
		}
	}
	return "unknown"
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// AsString accepts only string scalars
func AsString(n *yaml.Node) (string, error) {
	n = deref(n)
	if Kind(n) != "string" {
		return "", fmt.Errorf("%w: want string, got %s", ErrWrongType, Kind(n))
	}
	return n.Value, nil
}

// AsInt accepts only integer scalars; 1.0 and "1" are rejected
func AsInt(n *yaml.Node) (int, error) {
	n = deref(n)
	if Kind(n) != "integer" {
		return 0, fmt.Errorf("%w: want integer, got %s", ErrWrongType, Kind(n))
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrongType, err)
	}
	return v, nil
}

// AsBool accepts only boolean scalars
func AsBool(n *yaml.Node) (bool, error) {
	n = deref(n)
	if Kind(n) != "boolean" {
		return false, fmt.Errorf("%w: want boolean, got %s", ErrWrongType, Kind(n))
	}
	var v bool
	if err := n.Decode(&v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrWrongType, err)
	}
	return v, nil
}

// AsArray returns the elements of a sequence of exactly length items
func AsArray(n *yaml.Node, length int) ([]*yaml.Node, error) {
	n = deref(n)
	if Kind(n) != "array" {
		return nil, fmt.Errorf("%w: want array, got %s", ErrWrongType, Kind(n))
	}
	if len(n.Content) != length {
		return nil, fmt.Errorf("%w: want %d elements, got %d", ErrLength, length, len(n.Content))
	}
	return n.Content, nil
}
