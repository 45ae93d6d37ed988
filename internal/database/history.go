package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cribb-companion/internal/models"
)

const defaultMemoryLimit = 20

// History remembers which category each user filed transferred items under, so the
// transfer form can suggest one.
type History interface {
	Add(ctx context.Context, entry models.TransferHistoryEntry) error
	Items(ctx context.Context, userID string, q models.MemoryQuery) ([]models.MemoryItem, error)
	Categories(ctx context.Context, userID, query string, limit int) ([]models.CategoryCount, error)
	Stats(ctx context.Context, userID string) (*models.MemoryStats, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return defaultMemoryLimit
	}
	return limit
}

type PostgresHistory struct {
	db *DB
}

func NewPostgresHistory(db *DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (h *PostgresHistory) Add(ctx context.Context, entry models.TransferHistoryEntry) error {
	_, err := h.db.Exec(ctx,
		`INSERT INTO transfer_history (id, user_id, item_name, category, transferred_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.UserID, entry.ItemName, entry.Category, entry.TransferredAt)
	if err != nil {
		return fmt.Errorf("failed to record transfer history: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Items(ctx context.Context, userID string, q models.MemoryQuery) ([]models.MemoryItem, error) {
	sqlQuery := `
		SELECT DISTINCT ON (item_name) item_name, category, COUNT(*) AS frequency, MAX(transferred_at) AS last_used
		FROM transfer_history
		WHERE user_id = $1
		  AND ($2 = '' OR LOWER(item_name) LIKE $2)
		  AND ($3 = '' OR LOWER(category) = $3)
		GROUP BY item_name, category
		ORDER BY item_name, COUNT(*) DESC, MAX(transferred_at) DESC
		LIMIT $4`

	pattern := ""
	if q.Query != "" {
		pattern = "%" + strings.ToLower(q.Query) + "%"
	}

	rows, err := h.db.Query(ctx, sqlQuery, userID, pattern, strings.ToLower(q.Category), normalizeLimit(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query item memory: %w", err)
	}
	defer rows.Close()

	items := []models.MemoryItem{}
	for rows.Next() {
		var item models.MemoryItem
		if err := rows.Scan(&item.Name, &item.Category, &item.Frequency, &item.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan memory item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (h *PostgresHistory) Categories(ctx context.Context, userID, query string, limit int) ([]models.CategoryCount, error) {
	pattern := ""
	if query != "" {
		pattern = "%" + strings.ToLower(query) + "%"
	}

	rows, err := h.db.Query(ctx, `
		SELECT category, COUNT(*) AS frequency
		FROM transfer_history
		WHERE user_id = $1
		  AND ($2 = '' OR LOWER(category) LIKE $2)
		GROUP BY category
		ORDER BY frequency DESC, category ASC
		LIMIT $3`,
		userID, pattern, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []models.CategoryCount{}
	for rows.Next() {
		var cat models.CategoryCount
		if err := rows.Scan(&cat.Name, &cat.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

func (h *PostgresHistory) Stats(ctx context.Context, userID string) (*models.MemoryStats, error) {
	stats := &models.MemoryStats{Categories: make(map[string]int)}

	err := h.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT item_name), COUNT(DISTINCT category)
		 FROM transfer_history WHERE user_id = $1`,
		userID).Scan(&stats.TotalItems, &stats.TotalCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to count item memory: %w", err)
	}

	stats.MostUsedItems, err = h.Items(ctx, userID, models.MemoryQuery{Limit: 10})
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Query(ctx,
		`SELECT category, COUNT(*) FROM transfer_history WHERE user_id = $1 GROUP BY category`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get category stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var frequency int
		if err := rows.Scan(&category, &frequency); err != nil {
			return nil, fmt.Errorf("failed to scan category stat: %w", err)
		}
		stats.Categories[category] = frequency
	}
	return stats, rows.Err()
}

// MemoryHistory mirrors PostgresHistory's queries over an in-process slice.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []models.TransferHistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) Add(ctx context.Context, entry models.TransferHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *MemoryHistory) userEntries(userID string) []models.TransferHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.TransferHistoryEntry
	for _, e := range h.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (h *MemoryHistory) Items(ctx context.Context, userID string, q models.MemoryQuery) ([]models.MemoryItem, error) {
	query := strings.ToLower(q.Query)
	category := strings.ToLower(q.Category)

	type key struct{ name, category string }
	grouped := map[key]*models.MemoryItem{}
	for _, e := range h.userEntries(userID) {
		if query != "" && !strings.Contains(strings.ToLower(e.ItemName), query) {
			continue
		}
		if category != "" && strings.ToLower(e.Category) != category {
			continue
		}
		k := key{e.ItemName, e.Category}
		item, ok := grouped[k]
		if !ok {
			item = &models.MemoryItem{Name: e.ItemName, Category: e.Category}
			grouped[k] = item
		}
		item.Frequency++
		if e.TransferredAt.After(item.LastUsed) {
			item.LastUsed = e.TransferredAt
		}
	}

	// One row per name: the category it was filed under most, then most recently.
	best := map[string]models.MemoryItem{}
	for _, item := range grouped {
		current, ok := best[item.Name]
		if !ok || item.Frequency > current.Frequency ||
			(item.Frequency == current.Frequency && item.LastUsed.After(current.LastUsed)) {
			best[item.Name] = *item
		}
	}

	items := make([]models.MemoryItem, 0, len(best))
	for _, item := range best {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	if limit := normalizeLimit(q.Limit); len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (h *MemoryHistory) Categories(ctx context.Context, userID, query string, limit int) ([]models.CategoryCount, error) {
	query = strings.ToLower(query)
	counts := map[string]int{}
	for _, e := range h.userEntries(userID) {
		if query != "" && !strings.Contains(strings.ToLower(e.Category), query) {
			continue
		}
		counts[e.Category]++
	}

	categories := make([]models.CategoryCount, 0, len(counts))
	for name, frequency := range counts {
		categories = append(categories, models.CategoryCount{Name: name, Frequency: frequency})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Frequency != categories[j].Frequency {
			return categories[i].Frequency > categories[j].Frequency
		}
		return categories[i].Name < categories[j].Name
	})

	if limit = normalizeLimit(limit); len(categories) > limit {
		categories = categories[:limit]
	}
	return categories, nil
}

func (h *MemoryHistory) Stats(ctx context.Context, userID string) (*models.MemoryStats, error) {
	entries := h.userEntries(userID)
	stats := &models.MemoryStats{Categories: make(map[string]int)}

	names := map[string]bool{}
	for _, e := range entries {
		names[e.ItemName] = true
		stats.Categories[e.Category]++
	}
	stats.TotalItems = len(names)
	stats.TotalCategories = len(stats.Categories)

	items, err := h.Items(ctx, userID, models.MemoryQuery{Limit: 10})
	if err != nil {
		return nil, err
	}
	stats.MostUsedItems = items
	return stats, nil
}
