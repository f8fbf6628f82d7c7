// Package plistio converts between property-list bytes and the settings
// tree.
//
// Decoding accepts every format howett.net/plist understands (XML, binary,
// OpenStep and GNUstep). Encoding always produces canonical XML: dict keys
// sorted at every level, array order preserved and a fixed layout, so equal
// trees encode to identical bytes.
package plistio

import (
	"fmt"
	"time"

	"howett.net/plist"

	"github.com/hupe1980/prefexport/internal/tree"
)

// DecodeError wraps any failure to turn exported bytes into a settings tree.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse exported plist: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses data and returns the settings tree together with the name of
// the detected input format.
func Decode(data []byte) (tree.Value, string, error) {
	var raw interface{}

	format, err := plist.Unmarshal(data, &raw)
	if err != nil {
		return tree.Value{}, "", &DecodeError{Err: err}
	}

	v, err := fromInterface(raw, "")
	if err != nil {
		return tree.Value{}, "", &DecodeError{Err: err}
	}

	return v, FormatName(format), nil
}

// FormatName returns a human-readable name for a howett.net/plist format.
func FormatName(format int) string {
	if name, ok := plist.FormatNames[format]; ok {
		return name
	}

	return fmt.Sprintf("format(%d)", format)
}

// fromInterface maps the generic decoder output onto tree variants. path is
// the location of raw within the document and only used in error messages.
func fromInterface(raw interface{}, path string) (tree.Value, error) {
	switch val := raw.(type) {
	case map[string]interface{}:
		m := make(map[string]tree.Value, len(val))

		for k, item := range val {
			child, err := fromInterface(item, path+"/"+k)
			if err != nil {
				return tree.Value{}, err
			}

			m[k] = child
		}

		return tree.Dict(m), nil
	case []interface{}:
		items := make([]tree.Value, 0, len(val))

		for i, item := range val {
			child, err := fromInterface(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return tree.Value{}, err
			}

			items = append(items, child)
		}

		return tree.Array(items...), nil
	case string:
		return tree.String(val), nil
	case int64:
		return tree.Int(val), nil
	case uint64:
		return tree.Uint(val), nil
	case float64:
		return tree.Real(val), nil
	case float32:
		return tree.Real(float64(val)), nil
	case bool:
		return tree.Bool(val), nil
	case time.Time:
		return tree.Date(val), nil
	case []byte:
		return tree.Data(val), nil
	case plist.UID:
		return tree.Value{}, fmt.Errorf("%s: UID values cannot be represented in an XML plist", displayPath(path))
	default:
		return tree.Value{}, fmt.Errorf("%s: unsupported value type %T", displayPath(path), raw)
	}
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}

	return path
}

// Canonicalize decodes data, requires a dictionary root and re-encodes it
// as canonical XML.
func Canonicalize(data []byte) ([]byte, error) {
	root, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if err := tree.EnsureDictRoot(root); err != nil {
		return nil, err
	}

	return Encode(root)
}
