package cab

import "fmt"

// DefinitionError reports a malformed cab definition (bad flavour, bad
// wrangler action grammar, bad policy combination).
type DefinitionError struct {
	Cab string
	Msg string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("cab: %s: %s", e.Cab, e.Msg)
}
