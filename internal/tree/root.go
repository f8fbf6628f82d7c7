package tree

import "fmt"

// UnexpectedRootTypeError is returned when a decoded tree's root is not a
// dict. Key sorting has nothing to act on for scalar or array roots.
type UnexpectedRootTypeError struct {
	Kind Kind
}

func (e *UnexpectedRootTypeError) Error() string {
	return fmt.Sprintf("unexpected plist root type: %s", e.Kind)
}

// EnsureDictRoot returns an *UnexpectedRootTypeError unless v is a dict.
func EnsureDictRoot(v Value) error {
	if v.Kind() != KindDict {
		return &UnexpectedRootTypeError{Kind: v.Kind()}
	}

	return nil
}
