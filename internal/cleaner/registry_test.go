package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/procurement-signals/internal/model"
)

func ptr(v float64) *float64 { return &v }

func testBounds() model.BoundsTable {
	keys := []model.ContractKey{
		{Provider: "AcmeCo", ContractTitle: "Supply Deal", ContractNumber: "C-100"},
		{Provider: "AcmeCo", ContractTitle: "Maintenance", ContractNumber: "C-200"},
		{Provider: "Victorian YMCA", ContractTitle: "Aquatics", ContractNumber: "V-1"},
	}
	table := model.BoundsTable{}
	for _, k := range keys {
		table[k] = model.ContractBounds{ContractKey: k, UpperBound: ptr(100000), LowerBound: ptr(50000), Category: "Services"}
	}
	return table
}

func TestRegistry_MatchProvider(t *testing.T) {
	r := NewRegistry(testBounds())
	assert.Equal(t, 2, r.Len())

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"AcmeCo", "AcmeCo", true},
		{"acme co (AU)", "AcmeCo", true},
		{"VictorianYMCA", "Victorian YMCA", true},
		{"Victorian YMCA Inc", "Victorian YMCA", true},
		{"Unknown Supplier", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := r.MatchProvider(tt.in, 0.6)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_RepairTitle(t *testing.T) {
	r := NewRegistry(testBounds())

	got, ok := r.RepairTitle("AcmeCo", "", "C-200")
	assert.True(t, ok)
	assert.Equal(t, "Maintenance", got)

	_, ok = r.RepairTitle("AcmeCo", "Supply Deal", "C-100")
	assert.False(t, ok, "known title is left alone")

	_, ok = r.RepairTitle("AcmeCo", "", "")
	assert.False(t, ok, "ambiguous provider without a number cannot be repaired")

	got, ok = r.RepairTitle("Victorian YMCA", "", "")
	assert.True(t, ok, "single-contract provider fills a missing title")
	assert.Equal(t, "Aquatics", got)

	_, ok = r.RepairTitle("Victorian YMCA", "Gym Fitout", "V-9")
	assert.False(t, ok, "unknown title with unknown number is kept")

	_, ok = r.RepairTitle("Nobody", "", "C-100")
	assert.False(t, ok)
}

func TestRegistry_RepairNumber(t *testing.T) {
	r := NewRegistry(testBounds())

	got, ok := r.RepairNumber("AcmeCo", "Supply Deal", "")
	assert.True(t, ok)
	assert.Equal(t, "C-100", got)

	got, ok = r.RepairNumber("AcmeCo", "Maintenance", "C200")
	assert.True(t, ok)
	assert.Equal(t, "C-200", got)

	_, ok = r.RepairNumber("AcmeCo", "Supply Deal", "C-100")
	assert.False(t, ok)
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.MatchProvider("AcmeCo", 0.6)
	assert.False(t, ok)
	_, ok = r.RepairTitle("AcmeCo", "", "C-100")
	assert.False(t, ok)
	assert.Equal(t, "", r.Category(model.ContractKey{Provider: "AcmeCo"}))
}
