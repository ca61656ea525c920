package allocator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"campusid/internal/identity/models"
)

func TestAllocate(t *testing.T) {
	a := New(models.DefaultCatalog())
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("first identity takes range start", func(t *testing.T) {
		got := a.Allocate(models.SubUndergraduate, 0, now)
		assert.Equal(t, "STU202400001", got.ID)
		assert.False(t, got.OverRange)
		assert.False(t, got.Fallback)
	})

	t.Run("sequence is dense per sub-category", func(t *testing.T) {
		for n := 0; n < 5; n++ {
			got := a.Allocate(models.SubTenured, n, now)
			assert.Equal(t, int64(202400001+n), got.Sequence)
		}
		assert.Equal(t, "FAC202400006", a.Allocate(models.SubTenured, 5, now).ID)
		assert.Equal(t, "ADJ202400001", a.Allocate(models.SubAdjunct, 0, now).ID)
	})

	t.Run("every catalog prefix is used", func(t *testing.T) {
		c := models.DefaultCatalog()
		for _, sub := range c.SubCategories() {
			info, _ := c.Lookup(sub)
			assert.Equal(t, info.Range.Prefix+"202400001", a.Allocate(sub, 0, now).ID)
		}
	})

	t.Run("range end is a soft limit", func(t *testing.T) {
		// Visiting Researchers end at 202400300.
		last := a.Allocate(models.SubVisitingResearchers, 299, now)
		assert.Equal(t, "VIS202400300", last.ID)
		assert.False(t, last.OverRange)

		over := a.Allocate(models.SubVisitingResearchers, 300, now)
		assert.Equal(t, "VIS202400301", over.ID)
		assert.True(t, over.OverRange)
	})

	t.Run("unknown sub-category falls back to TMP with year", func(t *testing.T) {
		got := a.Allocate("Emeritus", 0, now)
		assert.Equal(t, "TMP202400001", got.ID)
		assert.True(t, got.Fallback)

		got = a.Allocate("Emeritus", 41, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, "TMP202500042", got.ID)
	})
}
