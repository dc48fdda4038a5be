// Package schema loads star-schema definitions from YAML and builds the
// cube model the member readers work against.
package schema

// Definition is the on-disk form of a schema. The same tags drive koanf
// when loading and yaml.v3 when writing.
type Definition struct {
	Name       string         `koanf:"name" yaml:"name,omitempty"`
	Dimensions []DimensionDef `koanf:"dimensions" yaml:"dimensions"`
	Cubes      []CubeDef      `koanf:"cubes" yaml:"cubes"`
	Roles      []RoleDef      `koanf:"roles" yaml:"roles,omitempty"`
}

type DimensionDef struct {
	Name        string         `koanf:"name" yaml:"name"`
	Hierarchies []HierarchyDef `koanf:"hierarchies" yaml:"hierarchies"`
}

type HierarchyDef struct {
	// Name defaults to the dimension name.
	Name          string     `koanf:"name" yaml:"name,omitempty"`
	Table         string     `koanf:"table" yaml:"table"`
	Alias         string     `koanf:"alias" yaml:"alias,omitempty"`
	PrimaryKey    string     `koanf:"primary_key" yaml:"primary_key"`
	HasAll        bool       `koanf:"has_all" yaml:"has_all"`
	AllMemberName string     `koanf:"all_member_name" yaml:"all_member_name,omitempty"`
	Levels        []LevelDef `koanf:"levels" yaml:"levels"`
}

type LevelDef struct {
	Name            string   `koanf:"name" yaml:"name"`
	Columns         []string `koanf:"columns" yaml:"columns"`
	NameColumn      string   `koanf:"name_column" yaml:"name_column,omitempty"`
	OrdinalColumn   string   `koanf:"ordinal_column" yaml:"ordinal_column,omitempty"`
	ParentColumn    string   `koanf:"parent_column" yaml:"parent_column,omitempty"`
	NullParentValue string   `koanf:"null_parent_value" yaml:"null_parent_value,omitempty"`
	Unique          bool     `koanf:"unique" yaml:"unique,omitempty"`
	// HideMemberIf is one of never, blank_name or parents_name.
	HideMemberIf   string `koanf:"hide_member_if" yaml:"hide_member_if,omitempty"`
	ApproxRowCount int64  `koanf:"approx_row_count" yaml:"approx_row_count,omitempty"`
}

// CubeDef describes a base cube, or a virtual cube when Base is set.
type CubeDef struct {
	Name       string          `koanf:"name" yaml:"name"`
	FactTable  string          `koanf:"fact_table" yaml:"fact_table,omitempty"`
	Alias      string          `koanf:"alias" yaml:"alias,omitempty"`
	Base       []string        `koanf:"base" yaml:"base,omitempty"`
	Dimensions []UsageDef      `koanf:"dimensions" yaml:"dimensions,omitempty"`
	Measures   []MeasureDef    `koanf:"measures" yaml:"measures,omitempty"`
	Calculated []CalculatedDef `koanf:"calculated" yaml:"calculated,omitempty"`
	Aggregates []AggregateDef  `koanf:"aggregates" yaml:"aggregates,omitempty"`
}

// UsageDef joins a hierarchy to the fact table.
type UsageDef struct {
	// Hierarchy is a unique name such as "[Store]".
	Hierarchy  string `koanf:"hierarchy" yaml:"hierarchy"`
	ForeignKey string `koanf:"foreign_key" yaml:"foreign_key"`
}

type MeasureDef struct {
	Name       string `koanf:"name" yaml:"name"`
	Column     string `koanf:"column" yaml:"column"`
	Aggregator string `koanf:"aggregator" yaml:"aggregator"`
}

// CalculatedDef is a binary arithmetic formula over other measures.
type CalculatedDef struct {
	Name     string   `koanf:"name" yaml:"name"`
	Operator string   `koanf:"operator" yaml:"operator"`
	Operands []string `koanf:"operands" yaml:"operands"`
}

type AggregateDef struct {
	Table   string         `koanf:"table" yaml:"table"`
	Alias   string         `koanf:"alias" yaml:"alias,omitempty"`
	Columns []AggColumnDef `koanf:"columns" yaml:"columns"`
}

// AggColumnDef maps a level's key column to a column of the aggregate table.
type AggColumnDef struct {
	Level  string `koanf:"level" yaml:"level"`
	Column string `koanf:"column" yaml:"column"`
}

type RoleDef struct {
	Name   string      `koanf:"name" yaml:"name"`
	Access []AccessDef `koanf:"access" yaml:"access,omitempty"`
	Grants []GrantDef  `koanf:"grants" yaml:"grants,omitempty"`
}

// AccessDef sets a role's access to a whole hierarchy: all, none or custom.
type AccessDef struct {
	Hierarchy string `koanf:"hierarchy" yaml:"hierarchy"`
	Access    string `koanf:"access" yaml:"access"`
}

// GrantDef limits a level to the listed members. Each member is given by
// its unique name, for example "[Store].[USA].[CA]".
type GrantDef struct {
	Level   string   `koanf:"level" yaml:"level"`
	Members []string `koanf:"members" yaml:"members"`
}
