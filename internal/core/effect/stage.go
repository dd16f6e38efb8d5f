package effect

// Stage is one post-processing step. It reads the previous stage's output
// from read and writes its own output into write.
type Stage[B any] interface {
	Name() string
	Render(read, write B) error
}

// Terminal marks the single output-producing stage of a pipeline.
type Terminal interface {
	Terminal() bool
}

// Swapper is implemented by stages that write into the write buffer; the
// pipeline swaps read and write after they run so the next stage sees the
// result.
type Swapper interface {
	NeedsSwap() bool
}

// Toggle lets a stage be skipped without removing it.
type Toggle interface {
	Enabled() bool
}

// Sizer is implemented by stages and buffers that hold size-dependent
// resources.
type Sizer interface {
	SetSize(width, height int)
}

// Disposer releases a stage's resources.
type Disposer interface {
	Dispose() error
}

func isTerminal(s any) bool {
	t, ok := s.(Terminal)
	return ok && t.Terminal()
}

func needsSwap(s any) bool {
	sw, ok := s.(Swapper)
	return ok && sw.NeedsSwap()
}

func enabled(s any) bool {
	t, ok := s.(Toggle)
	return !ok || t.Enabled()
}
