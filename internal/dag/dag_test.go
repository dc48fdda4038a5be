package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubes(t *testing.T, edges ...[2]string) *Graph[string] {
	t.Helper()
	g := New[string]()
	for _, id := range []string{"Warehouse and Sales", "Sales", "Warehouse", "Budget"} {
		g.Add(id, id)
	}
	for _, e := range edges {
		require.NoError(t, g.Depend(e[0], e[1]))
	}
	return g
}

func TestSort(t *testing.T) {
	g := cubes(t,
		[2]string{"Warehouse and Sales", "Sales"},
		[2]string{"Warehouse and Sales", "Warehouse"},
	)
	got, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales", "Warehouse", "Budget", "Warehouse and Sales"}, got)
	assert.Equal(t, []string{"Sales", "Warehouse"}, g.DependsOn("Warehouse and Sales"))
	assert.Equal(t, 4, g.Len())
}

func TestCycle(t *testing.T) {
	g := cubes(t,
		[2]string{"Sales", "Warehouse"},
		[2]string{"Warehouse", "Budget"},
		[2]string{"Budget", "Sales"},
	)
	assert.Equal(t, []string{"Sales", "Warehouse", "Budget", "Sales"}, g.Cycle())

	_, err := g.Sort()
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "dependency cycle: Sales -> Warehouse -> Budget -> Sales", err.Error())
}

func TestDepend_Errors(t *testing.T) {
	g := cubes(t)
	tests := []struct {
		name    string
		id, on  string
		wantErr string
	}{
		{"unknown node", "Inventory", "Sales", `unknown node "Inventory"`},
		{"unknown dependency", "Sales", "Inventory", `"Sales" depends on unknown node "Inventory"`},
		{"self", "Sales", "Sales", "dependency cycle: Sales -> Sales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, g.Depend(tt.id, tt.on), tt.wantErr)
		})
	}
}

func TestDependents(t *testing.T) {
	g := cubes(t,
		[2]string{"Warehouse and Sales", "Sales"},
		[2]string{"Warehouse and Sales", "Warehouse"},
	)
	assert.Equal(t, []string{"Warehouse and Sales", "Sales"}, g.Dependents("Sales"))
	assert.Equal(t, []string{"Budget"}, g.Dependents("Budget"))

	v, ok := g.Get("Sales")
	assert.True(t, ok)
	assert.Equal(t, "Sales", v)
}
