package models

import "time"

// TransferHistoryEntry is one cart item successfully moved into the pantry.
type TransferHistoryEntry struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	ItemName      string    `json:"item_name" db:"item_name"`
	Category      string    `json:"category" db:"category"`
	TransferredAt time.Time `json:"transferred_at" db:"transferred_at"`
}

// MemoryItem is an item name with the category it was most often filed under.
type MemoryItem struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Frequency int       `json:"frequency"`
	LastUsed  time.Time `json:"last_used"`
}

type CategoryCount struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
}

type MemoryStats struct {
	TotalItems      int            `json:"total_items"`
	TotalCategories int            `json:"total_categories"`
	MostUsedItems   []MemoryItem   `json:"most_used_items"`
	Categories      map[string]int `json:"categories"`
}

// MemoryQuery filters the item memory. Query matches a substring of the name, Category
// matches exactly; both ignore case.
type MemoryQuery struct {
	Query    string
	Category string
	Limit    int
}
