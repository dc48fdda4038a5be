package constraint

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapolap/internal/predicate"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// ChildByName restricts a children load to children with given names.
// Name lookups while resolving identifiers use it so that one child can
// be fetched without loading all its siblings.
type ChildByName struct {
	names    []string
	keys     []any
	cacheKey string
}

var _ MemberChildrenConstraint = (*ChildByName)(nil)

// NewChildByName matches children whose name is one of names. The null
// member name matches NULL.
func NewChildByName(names ...string) *ChildByName {
	c := &ChildByName{names: append([]string(nil), names...)}
	c.cacheKey = childByNameKey("name", c.names)
	return c
}

// NewChildByKey matches children of a composite-key level by key tuple.
// Their names are the rendered keys.
func NewChildByKey(keys ...core.CompositeKey) *ChildByName {
	c := &ChildByName{}
	for _, k := range keys {
		c.keys = append(c.keys, k)
		c.names = append(c.names, core.KeyName(k))
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = core.KeyString(k)
	}
	c.cacheKey = childByNameKey("key", ids)
	return c
}

func childByNameKey(kind string, parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = strconv.Quote(p)
	}
	return "childbyname|" + kind + "|" + strings.Join(quoted, ",")
}

// ChildNames returns the requested names.
func (c *ChildByName) ChildNames() []string { return c.names }

func (c *ChildByName) AddMemberConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, parents []core.Member) error {
	return AddParentConstraint(q, baseCube, agg, parents)
}

func (c *ChildByName) AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error {
	d := q.Dialect()
	if len(c.keys) > 0 {
		q.AddWhere(keyPredicate(d, baseCube, agg, level, c.keys))
		return nil
	}
	column := level.NameColumn()
	if column == "" {
		if level.IsComposite() {
			return core.Internalf("level %s has a composite key and no name column; look children up by key", level)
		}
		column = level.KeyColumn()
	}
	values := make([]any, len(c.names))
	for i, n := range c.names {
		if n == core.NullMemberName {
			values[i] = core.NullKey
		} else {
			values[i] = n
		}
	}
	q.AddWhere(predicate.InList(d, LevelColumn(d, baseCube, agg, level, column), values))
	return nil
}

func (c *ChildByName) CacheKey() string { return c.cacheKey }
