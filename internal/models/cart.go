package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is unique per (user, product, size, variant).
type CartLine struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int       `json:"quantity"`
	SelectedSize    string    `json:"selected_size,omitempty"`
	SelectedVariant string    `json:"selected_variant,omitempty"`
	PODData         PODData   `json:"pod_data,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
