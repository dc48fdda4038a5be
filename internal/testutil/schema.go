package testutil

import "github.com/leapstack-labs/leapolap/pkg/core"

// Sales is a small star schema: a sales fact table joined to store, time,
// customer and a parent-child employee hierarchy.
type Sales struct {
	Cube *core.Cube

	Store     *core.Hierarchy
	Country   *core.Level
	State     *core.Level // unique
	City      *core.Level
	StoreName *core.Level

	Time    *core.Hierarchy
	Year    *core.Level
	Quarter *core.Level
	Month   *core.Level

	Gender      *core.Hierarchy
	GenderLevel *core.Level

	Employee      *core.Hierarchy
	EmployeeLevel *core.Level // parent-child

	UnitSales  *core.StoredMeasure
	StoreSales *core.StoredMeasure
	Profit     *core.CalculatedMember
}

// NewSales builds the sales schema. Every call returns a fresh model.
func NewSales() *Sales {
	s := &Sales{}
	s.Cube = core.NewCube("Sales", "sales_fact", "sales")

	storeDim := core.NewDimension("Store")
	s.Store = storeDim.AddHierarchy(core.HierarchySpec{
		Table: "store", PrimaryKey: "store_id", HasAll: true, AllMemberName: "All Stores",
	})
	s.Country = s.Store.AddLevel(core.LevelSpec{Name: "Store Country", KeyColumns: []string{"store_country"}})
	s.State = s.Store.AddLevel(core.LevelSpec{Name: "Store State", KeyColumns: []string{"store_state"}, Unique: true})
	s.City = s.Store.AddLevel(core.LevelSpec{Name: "Store City", KeyColumns: []string{"store_city"}})
	s.StoreName = s.Store.AddLevel(core.LevelSpec{Name: "Store Name", KeyColumns: []string{"store_name"}, Unique: true})
	s.Cube.AddHierarchy(s.Store, "store_id")

	timeDim := core.NewDimension("Time")
	s.Time = timeDim.AddHierarchy(core.HierarchySpec{Table: "time_by_day", PrimaryKey: "time_id"})
	s.Year = s.Time.AddLevel(core.LevelSpec{Name: "Year", KeyColumns: []string{"the_year"}, Unique: true})
	s.Quarter = s.Time.AddLevel(core.LevelSpec{Name: "Quarter", KeyColumns: []string{"quarter"}})
	s.Month = s.Time.AddLevel(core.LevelSpec{
		Name: "Month", KeyColumns: []string{"month_of_year"}, NameColumn: "the_month", OrdinalColumn: "month_of_year",
	})
	s.Cube.AddHierarchy(s.Time, "time_id")

	genderDim := core.NewDimension("Gender")
	s.Gender = genderDim.AddHierarchy(core.HierarchySpec{
		Table: "customer", PrimaryKey: "customer_id", HasAll: true, AllMemberName: "All Gender",
	})
	s.GenderLevel = s.Gender.AddLevel(core.LevelSpec{Name: "Gender", KeyColumns: []string{"gender"}, Unique: true})
	s.Cube.AddHierarchy(s.Gender, "customer_id")

	empDim := core.NewDimension("Employees")
	s.Employee = empDim.AddHierarchy(core.HierarchySpec{
		Table: "employee", PrimaryKey: "employee_id", HasAll: true, AllMemberName: "All Employees",
	})
	s.EmployeeLevel = s.Employee.AddLevel(core.LevelSpec{
		Name:         "Employee Id", KeyColumns: []string{"employee_id"}, NameColumn: "full_name",
		ParentColumn: "supervisor_id", NullParentValue: "0", Unique: true,
	})

	s.UnitSales = s.Cube.AddMeasure("Unit Sales", "unit_sales", "sum")
	s.StoreSales = s.Cube.AddMeasure("Store Sales", "store_sales", "sum")
	s.Profit = s.Cube.AddCalculatedMeasure("Profit", &core.FunCall{
		Name:       "-",
		Args:       []core.Expression{&core.MemberExpr{Member: s.StoreSales}, &core.MemberExpr{Member: s.UnitSales}},
		ResultType: core.TypeScalar,
	})
	return s
}

// Path builds a chain of members from the root level down, one key per
// level, and returns the last one. Member ordinals follow creation order.
func Path(h *core.Hierarchy, keys ...any) *core.RolapMember {
	var parent core.Member = h.AllMember()
	level := h.RootLevel()
	var m *core.RolapMember
	for _, k := range keys {
		m = core.NewMember(parent, level, k, "")
		parent = m
		level = level.ChildLevel()
	}
	return m
}
