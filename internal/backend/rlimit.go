package backend

// ResourceLimits carries the resource-limit options of a run, e.g. max
// open files. MaxOpenFiles is only checked once before the run, by
// CheckOpenFileBudget; it is not set as an rlimit on spawned processes.
type ResourceLimits struct {
	MaxOpenFiles uint64
}
