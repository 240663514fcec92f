package schema

import "fmt"

// SchemaError reports an ill-formed schema declaration.
type SchemaError struct {
	Param string
	Msg   string
}

func (e *SchemaError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("schema: %s: %s", e.Param, e.Msg)
	}
	return fmt.Sprintf("schema: %s", e.Msg)
}

// TypeMismatch reports a parameter value incompatible with its schema,
// with no unambiguous string coercion available.
type TypeMismatch struct {
	Param string
	DType string
	Value string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("schema: parameter %q: value %q is not a valid %s", e.Param, e.Value, e.DType)
}
