package runtime

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/logging"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// stderrTailLines bounds how much standard-error is retained for a failed
// step's error report (§7 "the captured standard-error tail").
const stderrTailLines = 40

// Result is the outcome of one cab invocation: the resolved exit code,
// every output value the wrangler/flavour captured or the filesystem
// manifest confirmed, and any warnings raised along the way.
type Result struct {
	ExitCode   int
	Outputs    *Captured
	Warnings   []string
	StderrTail []string
}

// Run hands plan to b, reads both streams concurrently through the
// wrangler pipeline, and resolves the final status once both streams
// close and the exit code is known (§4.7).
func Run(ctx context.Context, b backend.Backend, plan *cab.InvocationPlan, c *cab.Cab, stepName string, timeoutSeconds int, sink logging.Sink) (*Result, error) {
	prepared, err := b.Prepare(plan)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	handle, err := b.Spawn(runCtx, prepared)
	if err != nil {
		return nil, err
	}

	captured := newCaptured()
	var mu sync.Mutex
	var warnings []string
	var errorMsgs []string
	var declareSuccess bool
	var stderrTail []string

	var wg sync.WaitGroup
	wg.Add(2)
	go readStream(&wg, handle.Stdout, c.Management.Wranglers, c, captured, sink, stepName, &mu, &warnings, &errorMsgs, &declareSuccess, nil)
	go readStream(&wg, handle.Stderr, c.Management.Wranglers, c, captured, sink, stepName, &mu, &warnings, &errorMsgs, &declareSuccess, &stderrTail)
	wg.Wait()

	exitCode, waitErr := handle.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, &Timeout{Step: stepName, Seconds: timeoutSeconds}
	}
	if ctx.Err() == context.Canceled {
		return nil, &Cancelled{Step: stepName}
	}
	if waitErr != nil && exitCode < 0 {
		return nil, waitErr
	}

	if len(errorMsgs) > 0 {
		return nil, &CabFailure{Step: stepName, ExitCode: exitCode, Reason: errorMsgs[len(errorMsgs)-1], StderrTail: joinTail(stderrTail)}
	}
	if exitCode != 0 && !declareSuccess {
		return nil, &CabFailure{Step: stepName, ExitCode: exitCode, Reason: "non-zero exit", StderrTail: joinTail(stderrTail)}
	}

	for _, name := range c.OutputOrder {
		s := c.Outputs[name]
		if _, ok := captured.Get(name); ok {
			continue
		}
		if s.IsFileLike() {
			path, ok := plan.OutputManifest[name]
			if ok && path != "" {
				if _, statErr := os.Stat(path); statErr == nil {
					captured.set(name, rankFlavour, tree.NewString(path))
				} else if s.Required && !declareSuccess {
					return nil, &MissingRequiredOutput{Step: stepName, Output: name, Path: path}
				}
			}
		}
	}

	return &Result{ExitCode: exitCode, Outputs: captured, Warnings: warnings, StderrTail: stderrTail}, nil
}

func readStream(
	wg *sync.WaitGroup,
	r io.ReadCloser,
	rules []cab.WranglerRule,
	c *cab.Cab,
	captured *Captured,
	sink logging.Sink,
	stepName string,
	mu *sync.Mutex,
	warnings *[]string,
	errorMsgs *[]string,
	declareSuccess *bool,
	tail *[]string,
) {
	defer wg.Done()
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		v := applyWrangler(line, rules, c.Outputs, captured)

		mu.Lock()
		if len(v.Warnings) > 0 {
			*warnings = append(*warnings, v.Warnings...)
		}
		if len(v.Errors) > 0 {
			*errorMsgs = append(*errorMsgs, v.Errors...)
		}
		if v.DeclareSuccess {
			*declareSuccess = true
		}
		if tail != nil {
			*tail = append(*tail, v.Text)
			if len(*tail) > stderrTailLines {
				*tail = (*tail)[len(*tail)-stderrTailLines:]
			}
		}
		mu.Unlock()

		if sink != nil && !v.Suppress {
			sink.Emit(logging.Record{Time: time.Now(), Step: stepName, Severity: v.Severity, Message: v.Text})
		}
	}
}

func joinTail(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
