package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/notifier"
	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/leapstack-labs/leapolap/internal/state"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Flush invalidates the caches of a hierarchy, or of every hierarchy
// when hierarchy is empty. With a change log the event is recorded so
// other processes flush too.
func (e *Engine) Flush(ctx context.Context, hierarchy, reason string) error {
	m := e.current()
	if hierarchy != "" && m.schema.Hierarchy(hierarchy) == nil {
		return fmt.Errorf("unknown hierarchy %q", hierarchy)
	}
	if e.store != nil {
		if _, err := e.store.Record(ctx, state.EventInvalidate, hierarchy, "", reason); err != nil {
			return fmt.Errorf("recording flush: %w", err)
		}
	}
	if hierarchy == "" {
		e.tracker.MarkAll()
	} else {
		e.tracker.Mark(hierarchy)
	}
	m.tuples.FlushPartials()
	e.changes.Publish(notifier.Change{Kind: string(state.EventInvalidate), Hierarchy: hierarchy})
	e.logger.Debug("flushed caches", "hierarchy", hierarchy, "reason", reason)
	return nil
}

// Invalidate records that a member is gone and removes it, with its
// cached descendants, from the caches. While Run is polling the change
// log the removal is left to the poller.
func (e *Engine) Invalidate(ctx context.Context, member, reason string) error {
	h, _, err := e.current().schema.SplitMember(member)
	if err != nil {
		return err
	}
	if e.store != nil {
		if _, err := e.store.Record(ctx, state.EventRemove, h.UniqueName(), member, reason); err != nil {
			return fmt.Errorf("recording removal: %w", err)
		}
		if e.running.Load() {
			return nil
		}
	}
	if err := e.RemoveMember(h.UniqueName(), member); err != nil {
		e.logger.Debug("member removal failed, flushing hierarchy", "member", member, "error", err)
		e.tracker.Mark(h.UniqueName())
	}
	e.changes.Publish(notifier.Change{Kind: string(state.EventRemove), Hierarchy: h.UniqueName(), Member: member})
	return nil
}

// RemoveMember removes a cached member and its cached descendants from
// the hierarchy cache and drops the cube views of the hierarchy. It
// fails when the member is not cached.
func (e *Engine) RemoveMember(hierarchy, member string) error {
	m := e.current()
	h, names, err := m.schema.SplitMember(member)
	if err != nil {
		return err
	}
	if hierarchy != "" && h.UniqueName() != hierarchy {
		return fmt.Errorf("member %s is not in hierarchy %s", member, hierarchy)
	}
	mc := m.hierarchies[h].cache
	target, parent := cachedMember(mc, h, names)
	if target == nil {
		return fmt.Errorf("member %s is not cached", member)
	}
	mc.RemoveMemberAndDescendants(mc.MakeKey(parent, target.Key()))
	m.flushCubes(h)
	e.logger.Debug("removed member", "hierarchy", h.UniqueName(), "member", member)
	return nil
}

// cachedMember walks names through the cached children of h and returns
// the member they name and its parent.
func cachedMember(mc *cache.Helper, h *core.Hierarchy, names []string) (target, parent core.Member) {
	var cur core.Member
	if all := h.AllMember(); all != nil {
		cur = all
		if len(names) > 0 && names[0] == all.Name() {
			names = names[1:]
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	if cur == nil {
		roots, ok := mc.GetLevelMembersFromCache(h.RootLevel(), constraint.Default)
		if !ok {
			return nil, nil
		}
		if cur = byName(roots, names[0]); cur == nil {
			return nil, nil
		}
		names = names[1:]
	}
	for _, name := range names {
		children, ok := mc.GetChildrenFromCache(cur, constraint.Default)
		if !ok {
			return nil, nil
		}
		child := byName(children, name)
		if child == nil {
			return nil, nil
		}
		parent, cur = cur, child
	}
	return cur, parent
}

func byName(ms []core.Member, name string) core.Member {
	for _, m := range ms {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Run polls the change log and watches the schema file until ctx is
// done.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if e.poller != nil {
		if err := e.poller.Start(ctx); err != nil {
			return fmt.Errorf("reading change log: %w", err)
		}
		e.running.Store(true)
		defer e.running.Store(false)
		g.Go(func() error { return e.poller.Run(ctx) })
	}
	if e.watchSchema && e.schemaPath != "" {
		w := schema.NewWatcher(e.schemaPath, e.Schema(), e.reload, e.logger)
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reload replaces the model with one built from s. The caches start
// empty.
func (e *Engine) reload(s *schema.Schema) {
	m, err := e.buildModel(s)
	if err != nil {
		e.logger.Warn("schema reload rejected", "error", err)
		return
	}
	e.mu.Lock()
	e.model = m
	e.mu.Unlock()
	e.changes.Publish(notifier.Change{Kind: "reload"})
	e.logger.Info("serving reloaded schema", "schema", s.Name, "cubes", len(s.Cubes))
}

// ErrNoChangeLog is returned by change log operations of an engine
// opened without a state path.
var ErrNoChangeLog = errors.New("engine has no change log")

// Changes returns up to limit change log events after seq.
func (e *Engine) Changes(ctx context.Context, seq int64, limit int) ([]state.ChangeEvent, error) {
	if e.store == nil {
		return nil, ErrNoChangeLog
	}
	return e.store.Since(ctx, seq, limit)
}

// PruneChanges deletes change log events older than age.
func (e *Engine) PruneChanges(ctx context.Context, age time.Duration) (int64, error) {
	if e.store == nil {
		return 0, ErrNoChangeLog
	}
	return e.store.Prune(ctx, time.Now().Add(-age))
}
