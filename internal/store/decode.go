package store

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avafields/internal/fields"
)

// maxDepth bounds nesting, including through aliases.
const maxDepth = 128

func decodeDocument(doc *yaml.Node) (map[string][]*fields.Object, error) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}
	if isNull(root) {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping of resources", root.Line)
	}

	data := make(map[string][]*fields.Object, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		list := resolveAlias(root.Content[i+1])

		if _, dup := data[name]; dup {
			return nil, fmt.Errorf("line %d: duplicate resource %q", root.Content[i].Line, name)
		}
		if isNull(list) {
			data[name] = nil
			continue
		}
		if list.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: resource %q must be a list", list.Line, name)
		}

		items := make([]*fields.Object, 0, len(list.Content))
		for _, item := range list.Content {
			item = resolveAlias(item)
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: %s items must be mappings", item.Line, name)
			}
			obj, err := decodeMapping(item, 1)
			if err != nil {
				return nil, err
			}
			items = append(items, obj)
		}
		data[name] = items
	}
	return data, nil
}

func decodeNode(n *yaml.Node, depth int) (interface{}, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("line %d: nesting exceeds %d levels", n.Line, maxDepth)
	}

	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		return decodeMapping(n, depth)
	case yaml.SequenceNode:
		list := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.ScalarNode:
		return decodeScalar(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

func decodeMapping(n *yaml.Node, depth int) (*fields.Object, error) {
	obj := fields.NewObject()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}
		if _, exists := obj.Get(key.Value); exists {
			return nil, fmt.Errorf("line %d: duplicate key %q", key.Line, key.Value)
		}
		v, err := decodeNode(n.Content[i+1], depth+1)
		if err != nil {
			return nil, err
		}
		obj.Set(key.Value, v)
	}
	return obj, nil
}

// decodeScalar keeps timestamps and other non-core tags as their source text.
func decodeScalar(n *yaml.Node) (interface{}, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err := n.Decode(&b)
		return b, err
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return i, nil
		}
		var f float64
		err := n.Decode(&f)
		return f, err
	case "!!float":
		var f float64
		err := n.Decode(&f)
		return f, err
	default:
		return n.Value, nil
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}
