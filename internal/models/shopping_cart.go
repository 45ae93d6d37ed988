package models

import "time"

type ShoppingCartItem struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	GroupID  string    `json:"group_id"`
	ItemName string    `json:"item_name"`
	Quantity float64   `json:"quantity"`
	Category string    `json:"category,omitempty"`
	AddedAt  time.Time `json:"added_at"`
	UserName string    `json:"user_name,omitempty"`
}

// ShoppingCartListResponse is the envelope of GET /api/shopping-cart/list.
type ShoppingCartListResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    []ShoppingCartItem `json:"data"`
}

type PantryItem struct {
	ID             string     `json:"id"`
	GroupID        string     `json:"group_id"`
	Name           string     `json:"name"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit"`
	Category       string     `json:"category"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	AddedBy        string     `json:"added_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type AddPantryItemRequest struct {
	Name           string  `json:"name" validate:"required"`
	Quantity       float64 `json:"quantity" validate:"gt=0"`
	Unit           string  `json:"unit" validate:"required"`
	Category       string  `json:"category" validate:"required"`
	ExpirationDate string  `json:"expiration_date,omitempty"`
	GroupName      string  `json:"group_name" validate:"required"`
}
