package convert

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one input image and its output path.
type Job struct {
	Input  string
	Output string
}

// Batch converts jobs concurrently, at most limit at a time (unlimited when
// limit <= 0). Results keep the order of jobs. The first failure cancels the
// jobs that have not started.
func (c *Converter) Batch(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make([]*Result, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := c.Convert(ctx, job.Input, job.Output)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Input, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
