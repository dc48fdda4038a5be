package engine

import (
	"fmt"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/reader"
	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// hierarchyReaders is the shared reader of one hierarchy.
type hierarchyReaders struct {
	cache  *cache.Helper
	source *reader.SqlMemberSource
	reader *reader.SmartMemberReader
}

// cubeReaders are the cube views of the shared readers. Their caches
// share the lock of the hierarchy cache they wrap.
type cubeReaders struct {
	cube    *core.Cube
	caches  map[*core.Hierarchy]*cache.Helper
	readers map[*core.Hierarchy]*reader.CubeMemberReader
}

// model is everything built from one schema. A schema reload builds a
// new model and replaces the old one whole.
type model struct {
	schema      *schema.Schema
	hierarchies map[*core.Hierarchy]*hierarchyReaders
	cubes       map[string]*cubeReaders
	tuples      *reader.TupleReader
}

func (e *Engine) cacheOptions() cache.Options {
	return cache.Options{
		Listener: e.tracker.Listener(),
		Policy:   e.policy,
		Logger:   e.logger,
	}
}

func (e *Engine) buildModel(s *schema.Schema) (*model, error) {
	m := &model{
		schema:      s,
		hierarchies: make(map[*core.Hierarchy]*hierarchyReaders),
		cubes:       make(map[string]*cubeReaders),
		tuples:      reader.NewTupleReader(e.exec, e.logger),
	}
	m.tuples.Completion = e.completion

	for _, h := range s.Hierarchies() {
		mc, err := cache.NewHelper(h, e.cacheOptions())
		if err != nil {
			return nil, fmt.Errorf("cache for %s: %w", h.UniqueName(), err)
		}
		src := reader.NewSqlMemberSource(h, e.exec, mc, e.logger)
		hr := &hierarchyReaders{
			cache:  mc,
			source: src,
			reader: reader.NewSmartMemberReader(src, mc, e.logger),
		}
		m.hierarchies[h] = hr
		m.tuples.Register(src, hr.reader)
	}

	for _, c := range s.Cubes {
		cr := &cubeReaders{
			cube:    c,
			caches:  make(map[*core.Hierarchy]*cache.Helper),
			readers: make(map[*core.Hierarchy]*reader.CubeMemberReader),
		}
		for _, h := range c.Hierarchies() {
			hr, ok := m.hierarchies[h]
			if !ok {
				return nil, fmt.Errorf("cube %s uses unknown hierarchy %s", c.Name(), h.UniqueName())
			}
			mc, err := reader.NewCubeCache(hr.cache, e.cacheOptions())
			if err != nil {
				return nil, fmt.Errorf("cache for %s in cube %s: %w", h.UniqueName(), c.Name(), err)
			}
			cr.caches[h] = mc
			cr.readers[h] = reader.NewCubeMemberReader(hr.reader, c, mc)
		}
		m.cubes[c.Name()] = cr
	}
	return m, nil
}

// cubeCaches lists the cube caches that wrap members of h.
func (m *model) cubeCaches(h *core.Hierarchy) []*cache.Helper {
	var out []*cache.Helper
	for _, c := range m.schema.Cubes {
		if mc, ok := m.cubes[c.Name()].caches[h]; ok {
			out = append(out, mc)
		}
	}
	return out
}

// flushCubes drops the cube views of h, and replayable tuple results.
func (m *model) flushCubes(h *core.Hierarchy) {
	for _, mc := range m.cubeCaches(h) {
		mc.FlushCache()
	}
	m.tuples.FlushPartials()
}
