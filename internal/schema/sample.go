package schema

// Sample is the demo sales schema created by the seed command.
func Sample() *Definition {
	return &Definition{
		Name: "FoodMart",
		Dimensions: []DimensionDef{
			{Name: "Store", Hierarchies: []HierarchyDef{{
				Table: "store", PrimaryKey: "store_id", HasAll: true, AllMemberName: "All Stores",
				Levels: []LevelDef{
					{Name: "Store Country", Columns: []string{"store_country"}},
					{Name: "Store State", Columns: []string{"store_state"}, Unique: true},
					{Name: "Store City", Columns: []string{"store_city"}},
					{Name: "Store Name", Columns: []string{"store_name"}, Unique: true},
				},
			}}},
			{Name: "Time", Hierarchies: []HierarchyDef{{
				Table: "time_by_day", PrimaryKey: "time_id",
				Levels: []LevelDef{
					{Name: "Year", Columns: []string{"the_year"}, Unique: true},
					{Name: "Quarter", Columns: []string{"quarter"}},
					{Name: "Month", Columns: []string{"month_of_year"}, NameColumn: "the_month", OrdinalColumn: "month_of_year"},
				},
			}}},
			{Name: "Gender", Hierarchies: []HierarchyDef{{
				Table:  "customer", PrimaryKey: "customer_id", HasAll: true, AllMemberName: "All Gender",
				Levels: []LevelDef{{Name: "Gender", Columns: []string{"gender"}, Unique: true}},
			}}},
			{Name: "Employees", Hierarchies: []HierarchyDef{{
				Table: "employee", PrimaryKey: "employee_id", HasAll: true, AllMemberName: "All Employees",
				Levels: []LevelDef{{
					Name:         "Employee Id", Columns: []string{"employee_id"}, NameColumn: "full_name",
					ParentColumn: "supervisor_id", NullParentValue: "0", Unique: true,
				}},
			}}},
		},
		Cubes: []CubeDef{
			{
				Name: "Sales", FactTable: "sales_fact", Alias: "sales",
				Dimensions: []UsageDef{
					{Hierarchy: "[Store]", ForeignKey: "store_id"},
					{Hierarchy: "[Time]", ForeignKey: "time_id"},
					{Hierarchy: "[Gender]", ForeignKey: "customer_id"},
				},
				Measures: []MeasureDef{
					{Name: "Unit Sales", Column: "unit_sales", Aggregator: "sum"},
					{Name: "Store Sales", Column: "store_sales", Aggregator: "sum"},
				},
				Calculated: []CalculatedDef{{Name: "Profit", Operator: "-", Operands: []string{"Store Sales", "Unit Sales"}}},
				Aggregates: []AggregateDef{{
					Table: "agg_sales_state_year",
					Columns: []AggColumnDef{
						{Level: "[Store].[Store State]", Column: "store_state"},
						{Level: "[Time].[Year]", Column: "the_year"},
					},
				}},
			},
			{
				Name: "Warehouse", FactTable: "inventory_fact", Alias: "inventory",
				Dimensions: []UsageDef{
					{Hierarchy: "[Store]", ForeignKey: "store_id"},
					{Hierarchy: "[Time]", ForeignKey: "time_id"},
				},
				Measures: []MeasureDef{{Name: "Units Shipped", Column: "units_shipped", Aggregator: "sum"}},
			},
			{Name: "Warehouse and Sales", Base: []string{"Sales", "Warehouse"}},
		},
		Roles: []RoleDef{{
			Name:   "California",
			Access: []AccessDef{{Hierarchy: "[Employees]", Access: "none"}},
			Grants: []GrantDef{{Level: "[Store].[Store State]", Members: []string{"[Store].[USA].[CA]"}}},
		}},
	}
}

// SampleData creates and fills the tables Sample reads.
var SampleData = []string{
	`CREATE TABLE store (store_id INTEGER PRIMARY KEY, store_country VARCHAR, store_state VARCHAR, store_city VARCHAR, store_name VARCHAR)`,
	`INSERT INTO store VALUES
		(1, 'Canada', 'BC', 'Vancouver', 'Store 19'),
		(2, 'Canada', 'BC', 'Victoria', 'Store 20'),
		(3, 'USA', 'CA', 'San Francisco', 'Store 14'),
		(4, 'USA', 'CA', 'Los Angeles', 'Store 7'),
		(5, 'USA', 'OR', 'Portland', 'Store 11'),
		(6, 'USA', 'WA', 'Seattle', 'Store 15'),
		(7, 'Mexico', NULL, 'Mexico City', 'Store 9')`,
	`CREATE TABLE time_by_day (time_id INTEGER PRIMARY KEY, the_year INTEGER, quarter VARCHAR, month_of_year INTEGER, the_month VARCHAR)`,
	`INSERT INTO time_by_day VALUES
		(1, 1997, 'Q1', 1, 'January'),
		(2, 1997, 'Q1', 2, 'February'),
		(3, 1997, 'Q2', 4, 'April'),
		(4, 1998, 'Q1', 1, 'January'),
		(5, 1998, 'Q3', 7, 'July')`,
	`CREATE TABLE customer (customer_id INTEGER PRIMARY KEY, gender VARCHAR)`,
	`INSERT INTO customer VALUES (1, 'F'), (2, 'M'), (3, 'F')`,
	`CREATE TABLE employee (employee_id INTEGER PRIMARY KEY, full_name VARCHAR, supervisor_id INTEGER)`,
	`INSERT INTO employee VALUES
		(1, 'Sheri Nowmer', 0),
		(2, 'Derrick Whelply', 1),
		(3, 'Michael Spence', 1),
		(4, 'Maya Gutierrez', 2),
		(5, 'Roberta Damstra', 4)`,
	`CREATE TABLE sales_fact (store_id INTEGER, time_id INTEGER, customer_id INTEGER, unit_sales DECIMAL(10,2), store_sales DECIMAL(10,2))`,
	`INSERT INTO sales_fact VALUES
		(1, 1, 1, 3, 7.50), (2, 2, 2, 1, 2.25), (3, 1, 3, 5, 11.00), (4, 3, 1, 2, 4.10),
		(5, 4, 2, 4, 9.60), (6, 5, 3, 6, 13.20), (3, 4, 2, 1, 1.99)`,
	`CREATE TABLE inventory_fact (store_id INTEGER, time_id INTEGER, units_shipped INTEGER)`,
	`INSERT INTO inventory_fact VALUES (1, 1, 40), (3, 1, 55), (5, 4, 20), (6, 5, 35)`,
	`CREATE TABLE agg_sales_state_year (store_state VARCHAR, the_year INTEGER, unit_sales DECIMAL(10,2), store_sales DECIMAL(10,2), fact_count INTEGER)`,
	`INSERT INTO agg_sales_state_year
		SELECT s.store_state, t.the_year, SUM(f.unit_sales), SUM(f.store_sales), COUNT(*)
		FROM sales_fact f JOIN store s ON f.store_id = s.store_id JOIN time_by_day t ON f.time_id = t.time_id
		GROUP BY s.store_state, t.the_year`,
}
