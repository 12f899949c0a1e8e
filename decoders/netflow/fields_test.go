package netflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogGet(t *testing.T) {
	spec := DefaultCatalog.Get(FieldNATEvent)
	assert.Equal(t, FieldSpec{ID: 230, DefaultWidth: 1, Kind: KindUint, Name: "NAT_EVENT"}, spec)

	spec = DefaultCatalog.Get(FieldEventTimeMsec)
	assert.Equal(t, "EVENT_TIME_MSEC", spec.Name)
	assert.Equal(t, 8, spec.DefaultWidth)
}

func TestCatalogUnknownField(t *testing.T) {
	spec := DefaultCatalog.Get(60000)
	assert.Equal(t, FieldSpec{ID: 60000, DefaultWidth: 0, Kind: KindBytes, Name: "FIELD_60000"}, spec)
}

func TestCatalogGetByName(t *testing.T) {
	spec, ok := DefaultCatalog.GetByName("XLATE_SRC_PORT")
	require.True(t, ok)
	assert.Equal(t, uint16(227), spec.ID)

	// registered twice, the NSEL entry comes last
	spec, ok = DefaultCatalog.GetByName("ICMP_TYPE")
	require.True(t, ok)
	assert.Equal(t, uint16(176), spec.ID)

	_, ok = DefaultCatalog.GetByName("NOT_A_FIELD")
	assert.False(t, ok)
}

func TestKindFor(t *testing.T) {
	uintSpec := FieldSpec{Kind: KindUint}
	for _, width := range []int{1, 2, 4, 8} {
		assert.Equal(t, KindUint, KindFor(uintSpec, width), "width %d", width)
	}
	for _, width := range []int{0, 3, 6, 16} {
		assert.Equal(t, KindBytes, KindFor(uintSpec, width), "width %d", width)
	}
	assert.Equal(t, KindBytes, KindFor(FieldSpec{Kind: KindBytes}, 4))
}

func TestCatalogSpecsSorted(t *testing.T) {
	specs := DefaultCatalog.Specs()
	require.NotEmpty(t, specs)
	for i := 1; i < len(specs); i++ {
		assert.Less(t, specs[i-1].ID, specs[i].ID)
	}
}
