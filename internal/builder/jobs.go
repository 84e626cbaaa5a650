package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/qobs-build/shogun/internal/msg"
)

// runJobs runs jobs in parallel
func runJobs[T any](jobs []T, jobfunc func(job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			return jobfunc(job)
		})
	}

	return eg.Wait()
}

// AllOptions are the inputs of BuildAll. Every variant writes its default
// output name inside OutDir.
type AllOptions struct {
	Sources   string
	Generated string
	OutDir    string
	Diff      bool
}

// BuildAll generates the build files of every variant concurrently. Each
// variant's diagnostics are buffered and written to w in variant order once
// all are done.
func (b *Builder) BuildAll(opts AllOptions, w io.Writer) error {
	logs := make([]bytes.Buffer, len(Variants))
	indices := make([]int, len(Variants))
	for i := range indices {
		indices[i] = i
	}

	err := runJobs(indices, func(i int) error {
		v := Variants[i]
		rep := msg.NewReporter(&logs[i])
		o := Options{
			Sources:   opts.Sources,
			Generated: opts.Generated,
			Output:    filepath.Join(opts.OutDir, v.DefaultOutput),
			Diff:      opts.Diff,
		}
		if err := b.Build(v, o, rep); err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		return nil
	}, runtime.NumCPU())

	for i := range logs {
		w.Write(logs[i].Bytes())
	}
	return err
}
