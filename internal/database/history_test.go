package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cribb-companion/internal/models"
)

func exerciseHistory(t *testing.T, h History, userID string) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	add := func(name, category string, offset time.Duration) {
		require.NoError(t, h.Add(ctx, models.TransferHistoryEntry{
			ID:            uuid.NewString(),
			UserID:        userID,
			ItemName:      name,
			Category:      category,
			TransferredAt: base.Add(offset),
		}))
	}
	add("Milk", "Dairy", 0)
	add("Milk", "Dairy", time.Second)
	add("Milk", "Drinks", 2*time.Second)
	add("Rice", "Grains", 3*time.Second)
	add("Oat Milk", "Drinks", 4*time.Second)

	items, err := h.Items(ctx, userID, models.MemoryQuery{Query: "milk"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, "Dairy", items[0].Category, "most frequent category wins")
	assert.Equal(t, 2, items[0].Frequency)
	assert.Equal(t, "Oat Milk", items[1].Name)

	items, err = h.Items(ctx, userID, models.MemoryQuery{Category: "drinks"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, "Drinks", items[0].Category)

	items, err = h.Items(ctx, userID, models.MemoryQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	categories, err := h.Categories(ctx, userID, "", 0)
	require.NoError(t, err)
	require.Len(t, categories, 3)
	assert.Equal(t, models.CategoryCount{Name: "Dairy", Frequency: 2}, categories[0])
	assert.Equal(t, models.CategoryCount{Name: "Drinks", Frequency: 2}, categories[1])
	assert.Equal(t, models.CategoryCount{Name: "Grains", Frequency: 1}, categories[2])

	categories, err = h.Categories(ctx, userID, "gra", 0)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Grains", categories[0].Name)

	stats, err := h.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 3, stats.TotalCategories)
	assert.Len(t, stats.MostUsedItems, 3)
	assert.Equal(t, 2, stats.Categories["Drinks"])

	other, err := h.Items(ctx, "someone-else-"+userID, models.MemoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryHistory(t *testing.T) {
	exerciseHistory(t, NewMemoryHistory(), "u1")
}

func TestPostgresHistory(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, databaseURL)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(ctx, db))

	userID := "test-" + uuid.NewString()
	t.Cleanup(func() {
		db.Exec(context.Background(), "DELETE FROM transfer_history WHERE user_id = $1", userID)
	})

	exerciseHistory(t, NewPostgresHistory(db), userID)
}
