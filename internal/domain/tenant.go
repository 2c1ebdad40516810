package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is owned by external entity storage; the core only resolves API keys.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
