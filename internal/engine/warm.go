package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"golang.org/x/sync/errgroup"
)

// Warm loads every level of the hierarchies of a cube into the cache,
// running up to parallel loads at once. It returns the number of members
// loaded.
func (e *Engine) Warm(ctx context.Context, cube string, parallel int) (int, error) {
	s, err := e.prepare(ctx, Request{Cube: cube})
	if err != nil {
		return 0, err
	}
	if parallel < 1 {
		parallel = 1
	}

	var loaded atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, h := range s.cube.cube.Hierarchies() {
		r, ok := s.cube.readers[h]
		if !ok {
			continue
		}
		for _, l := range h.Levels() {
			if l.IsAll() {
				continue
			}
			g.Go(func() error {
				ms, err := r.LevelMembers(ctx, l, constraint.Default)
				if err != nil {
					return fmt.Errorf("warming %s: %w", l.UniqueName(), err)
				}
				loaded.Add(int64(len(ms)))
				return nil
			})
		}
	}
	err = g.Wait()
	e.logger.Debug("warmed cube", "cube", cube, "members", loaded.Load())
	return int(loaded.Load()), err
}
