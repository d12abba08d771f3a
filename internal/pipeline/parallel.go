// internal/pipeline/parallel.go

package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"framesched/internal/lifecycle"
)

// layoutParallel lays out one pass level by level. Nodes that share a depth
// have no parent/child relation, so their hooks may run concurrently; levels
// still run parent-first. Lifecycle checks and updates stay on the calling
// goroutine, only the hooks fan out.
//
// NOTE: hooks must be safe for concurrent use when ParallelLayout is enabled.
func (r *frameRun) layoutParallel(ctx context.Context, pr *PhaseResult, ids []NodeID, visits map[NodeID]int) error {
	for start := 0; start < len(ids); {
		if err := ctx.Err(); err != nil {
			r.remark(pr.Phase, ids[start:])
			return err
		}

		// 1) cut the next level out of the depth-sorted pass
		depth := r.tree.Depth(ids[start])
		end := start + 1
		for end < len(ids) && r.tree.Depth(ids[end]) == depth {
			end++
		}
		level := ids[start:end]
		start = end

		if len(level) < r.c.opts.MinParallelBatch {
			if err := r.sequential(ctx, pr, level, visits); err != nil {
				r.remark(pr.Phase, ids[start:])
				return err
			}
			continue
		}

		// 2) lifecycle checks, sequential
		type job struct {
			id     NodeID
			render *lifecycle.Render
			err    error
		}
		jobs := make([]job, 0, len(level))
		for _, id := range level {
			visits[id]++
			render, ok := r.prepareLayout(pr, id)
			if ok {
				jobs = append(jobs, job{id: id, render: render})
			}
		}

		// 3) hooks, concurrent; each goroutine writes only its own slot
		var g errgroup.Group
		if r.c.opts.ParallelWorkers > 0 {
			g.SetLimit(r.c.opts.ParallelWorkers)
		}
		for i := range jobs {
			g.Go(func() error {
				jobs[i].err = r.layoutHook(jobs[i].id, jobs[i].render)
				return nil
			})
		}
		_ = g.Wait()

		// 4) results, sequential and in order
		for _, j := range jobs {
			r.finishLayout(pr, j.id, j.render, j.err)
		}
	}
	return nil
}
