package runtime

import "fmt"

// CabFailure reports a non-zero child exit without a wrangler
// DECLARE_SUCCESS, or a wrangler ERROR action firing (§7). A missing
// required output is reported as MissingRequiredOutput instead.
type CabFailure struct {
	Step       string
	ExitCode   int
	Reason     string
	StderrTail string
}

func (e *CabFailure) Error() string {
	return fmt.Sprintf("runtime: step %s failed (exit %d): %s", e.Step, e.ExitCode, e.Reason)
}

// MissingRequiredOutput reports a declared `required` output whose path
// does not exist on disk once the cab has exited (§7).
type MissingRequiredOutput struct {
	Step   string
	Output string
	Path   string
}

func (e *MissingRequiredOutput) Error() string {
	return fmt.Sprintf("runtime: step %s: required output %q not found at %q", e.Step, e.Output, e.Path)
}

// Timeout reports a step that exceeded its configured timeout (§7).
type Timeout struct {
	Step    string
	Seconds int
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("runtime: step %s exceeded its %ds timeout", e.Step, e.Seconds)
}

// Cancelled reports an operator interrupt propagated from cancellation
// (§5/§7).
type Cancelled struct {
	Step string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("runtime: step %s cancelled", e.Step)
}
