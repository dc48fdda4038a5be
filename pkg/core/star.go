package core

// Star is the fact table together with every dimension column reachable
// from it. Each column gets a stable bit position used by predicates and
// aggregate-table matching.
type Star struct {
	factTable string
	factAlias string
	columns   []*StarColumn
	byName    map[string]*StarColumn
}

// StarColumn is one column of a star.
type StarColumn struct {
	table string
	alias string
	name  string
	bit   int
}

// NewStar creates a star over factTable.
func NewStar(factTable, factAlias string) *Star {
	if factAlias == "" {
		factAlias = factTable
	}
	return &Star{factTable: factTable, factAlias: factAlias, byName: make(map[string]*StarColumn)}
}

func (s *Star) FactTable() string { return s.factTable }
func (s *Star) FactAlias() string { return s.factAlias }

// AddColumn registers a column, returning the existing one for a repeat.
func (s *Star) AddColumn(table, alias, name string) *StarColumn {
	if alias == "" {
		alias = table
	}
	id := alias + "." + name
	if c, ok := s.byName[id]; ok {
		return c
	}
	c := &StarColumn{table: table, alias: alias, name: name, bit: len(s.columns)}
	s.columns = append(s.columns, c)
	s.byName[id] = c
	return c
}

// Column returns the column at bit position pos.
func (s *Star) Column(pos int) *StarColumn {
	if pos < 0 || pos >= len(s.columns) {
		return nil
	}
	return s.columns[pos]
}

func (s *Star) ColumnCount() int { return len(s.columns) }

func (c *StarColumn) Table() string    { return c.table }
func (c *StarColumn) Alias() string    { return c.alias }
func (c *StarColumn) Name() string     { return c.name }
func (c *StarColumn) BitPosition() int { return c.bit }
func (c *StarColumn) String() string   { return c.alias + "." + c.name }

// AggStar is a pre-aggregated table that can answer queries over a
// subset of star columns.
type AggStar struct {
	table   string
	alias   string
	factFK  map[*StarColumn]string
	columns []*StarColumn
}

// NewAggStar creates an aggregate table description.
func NewAggStar(table, alias string) *AggStar {
	if alias == "" {
		alias = table
	}
	return &AggStar{table: table, alias: alias, factFK: make(map[*StarColumn]string)}
}

func (a *AggStar) Table() string { return a.table }
func (a *AggStar) Alias() string { return a.alias }

// MapColumn records that star column sc is available in the aggregate
// table as aggColumn.
func (a *AggStar) MapColumn(sc *StarColumn, aggColumn string) {
	if _, ok := a.factFK[sc]; !ok {
		a.columns = append(a.columns, sc)
	}
	a.factFK[sc] = aggColumn
}

// Column returns the aggregate table column for sc.
func (a *AggStar) Column(sc *StarColumn) (string, bool) {
	c, ok := a.factFK[sc]
	return c, ok
}

// Columns lists the star columns the aggregate table carries.
func (a *AggStar) Columns() []*StarColumn { return a.columns }
