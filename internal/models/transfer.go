package models

import "time"

// TransferJournalEntry records a transfer whose pantry item was created but whose cart
// entry could not be removed, leaving the item in both places until resolved.
type TransferJournalEntry struct {
	ID           string     `json:"id"`
	CartItemID   string     `json:"cart_item_id"`
	ItemName     string     `json:"item_name"`
	GroupName    string     `json:"group_name"`
	PantryItemID string     `json:"pantry_item_id,omitempty"`
	Stage        string     `json:"stage"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// ConfirmTransferRequest is the form submitted to move a cart item into the pantry.
type ConfirmTransferRequest struct {
	Category       string `json:"category"`
	ExpirationDate string `json:"expiration_date,omitempty"`
}
