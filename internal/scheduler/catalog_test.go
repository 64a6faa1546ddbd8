package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

func TestNewCatalogSortsBlocks(t *testing.T) {
	catalog, err := NewCatalog([]domain.TimeBlock{
		{ID: "late", StartMin: 16 * 60, EndMin: 17 * 60, Capacity: 1},
		{ID: "early", StartMin: 9 * 60, EndMin: 10 * 60, Capacity: 1},
	})
	require.NoError(t, err)

	blocks := catalog.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "early", blocks[0].ID)
	assert.Equal(t, "late", blocks[1].ID)
}

func TestNewCatalogValidation(t *testing.T) {
	cases := []struct {
		name  string
		block domain.TimeBlock
	}{
		{"missing id", domain.TimeBlock{StartMin: 9 * 60, EndMin: 10 * 60, Capacity: 1}},
		{"end before start", domain.TimeBlock{ID: "B1", StartMin: 10 * 60, EndMin: 9 * 60, Capacity: 1}},
		{"zero capacity", domain.TimeBlock{ID: "B1", StartMin: 9 * 60, EndMin: 10 * 60}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog([]domain.TimeBlock{tc.block})
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalogShape(t *testing.T) {
	blocks := DefaultCatalog().Blocks()
	require.Len(t, blocks, 4)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, day.Add(9*time.Hour), blocks[0].StartOn(day))
	assert.Equal(t, day.Add(10*time.Hour+30*time.Minute), blocks[0].EndOn(day))
	for _, b := range blocks {
		assert.Equal(t, 2, b.Capacity)
	}
}

func TestParseCatalog(t *testing.T) {
	raw := `[
		{"id":"AM","start":"08:30","end":"12:00","capacity":3},
		{"id":"PM","start":"13:00","end":"17:00","capacity":3}
	]`
	catalog, err := ParseCatalog(raw)
	require.NoError(t, err)

	blocks := catalog.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "AM", blocks[0].ID)
	assert.Equal(t, 8*60+30, blocks[0].StartMin)
	assert.Equal(t, 3, blocks[0].Capacity)
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`[{"id":"AM","start":"25:00","end":"12:00","capacity":1}]`,
		`[{"id":"AM","start":"0830","end":"12:00","capacity":1}]`,
		`[{"id":"AM","start":"08:30","end":"12:00","capacity":0}]`,
	} {
		_, err := ParseCatalog(raw)
		assert.Error(t, err, "input %q should be rejected", raw)
	}
}

func TestCatalogEmpty(t *testing.T) {
	var nilCatalog *Catalog
	assert.True(t, nilCatalog.Empty())

	catalog, err := NewCatalog(nil)
	require.NoError(t, err)
	assert.True(t, catalog.Empty())
	assert.False(t, DefaultCatalog().Empty())
}
