package scheduler

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// iterationProgress renders a single animated status line for a for_loop's
// `display_status: true` (§4.5), counting completed iterations against the
// total as scatter workers finish.
type iterationProgress struct {
	label     string
	total     int
	completed int64

	chars []string
	index int

	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
}

func newIterationProgress(label string, total int) *iterationProgress {
	return &iterationProgress{
		label: label,
		total: total,
		chars: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stop:  make(chan struct{}),
	}
}

func (p *iterationProgress) start() {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stop:
				if isTTY {
					fmt.Printf("\r%s: %d/%d iterations done     \n", p.label, atomic.LoadInt64(&p.completed), p.total)
				}
				return
			default:
				if isTTY {
					p.mu.Lock()
					c := p.chars[p.index]
					p.index = (p.index + 1) % len(p.chars)
					p.mu.Unlock()
					fmt.Printf("\r%s %s %d/%d", c, p.label, atomic.LoadInt64(&p.completed), p.total)
				}
				time.Sleep(150 * time.Millisecond)
			}
		}
	}()
}

func (p *iterationProgress) advance() {
	atomic.AddInt64(&p.completed, 1)
}

func (p *iterationProgress) stopAndWait() {
	close(p.stop)
	p.wg.Wait()
}
