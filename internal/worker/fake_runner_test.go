package worker

import (
	"context"

	"github.com/devorc/orchestrator/internal/process"
)

// fakeRunner returns scripted results in order, then repeats the last one.
type fakeRunner struct {
	results []process.Result
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, command []string) (process.Result, error) {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	r.Command = command
	return r, nil
}
