package output

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/prefexport/internal/plistio"
	"github.com/hupe1980/prefexport/internal/tree"
)

// SerializeFunc renders a settings tree in one output format.
type SerializeFunc func(v tree.Value) ([]byte, error)

// SerializeXML renders v as a canonical XML property list.
func SerializeXML(v tree.Value) ([]byte, error) {
	return plistio.Encode(v)
}

// SerializeYAML renders v as YAML with sorted keys. Dates are tagged
// !!timestamp and data is tagged !!binary.
func SerializeYAML(v tree.Value) ([]byte, error) {
	node, err := yamlNode(v, true)
	if err != nil {
		return nil, err
	}

	return encodeYAML(node)
}

// SerializeJSON renders v as indented JSON with sorted keys. Dates become
// RFC 3339 strings and data becomes base64 strings. Non-finite reals cannot
// be represented and produce an error.
func SerializeJSON(v tree.Value) ([]byte, error) {
	node, err := yamlNode(v, false)
	if err != nil {
		return nil, err
	}

	yamlBytes, err := encodeYAML(node)
	if err != nil {
		return nil, err
	}

	// Convert YAML to JSON.
	jsonOut, err := sigsyaml.YAMLToJSON(yamlBytes)
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, jsonOut, "", "  "); err != nil {
		return nil, fmt.Errorf("formatting JSON: %w", err)
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func encodeYAML(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// yamlNode builds a YAML node tree with dict keys in sorted order. When
// tagged is false, dates and data are emitted as plain strings so the result
// survives conversion to JSON.
func yamlNode(v tree.Value, tagged bool) (*yaml.Node, error) {
	switch v.Kind() {
	case tree.KindDict:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

		for _, k := range v.SortedKeys() {
			child, err := yamlNode(v.Map()[k], tagged)
			if err != nil {
				return nil, err
			}

			n.Content = append(n.Content, scalar("!!str", k), child)
		}

		return n, nil
	case tree.KindArray:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

		for _, item := range v.Items() {
			child, err := yamlNode(item, tagged)
			if err != nil {
				return nil, err
			}

			n.Content = append(n.Content, child)
		}

		return n, nil
	case tree.KindString:
		return scalar("!!str", v.Str()), nil
	case tree.KindInteger:
		return scalar("!!int", v.IntegerText()), nil
	case tree.KindReal:
		return scalar("!!float", yamlFloat(v.Float())), nil
	case tree.KindBool:
		if v.Truth() {
			return scalar("!!bool", "true"), nil
		}

		return scalar("!!bool", "false"), nil
	case tree.KindDate:
		ts := v.Time().UTC().Format(time.RFC3339)
		if tagged {
			return scalar("!!timestamp", ts), nil
		}

		return scalar("!!str", ts), nil
	case tree.KindData:
		enc := base64.StdEncoding.EncodeToString(v.Bytes())
		if tagged {
			return scalar("!!binary", enc), nil
		}

		return scalar("!!str", enc), nil
	default:
		return nil, fmt.Errorf("cannot serialize value of kind %s", v.Kind())
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	default:
		return plistio.FormatReal(f)
	}
}
