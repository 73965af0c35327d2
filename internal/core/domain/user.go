package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShippingLocation is the delivery address kept on a user profile and
// copied onto every order at checkout.
type ShippingLocation struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	AddressLine string  `json:"address_line"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	PostalCode  string  `json:"postal_code"`
}

// User is the slice of the profile the marketplace core reads and writes.
type User struct {
	ID               uuid.UUID         `json:"id"`
	Email            string            `json:"email"`
	Role             Role              `json:"role"`
	Points           int64             `json:"points"`
	IsVerifiedSeller bool              `json:"is_verified_seller"`
	Shipping         *ShippingLocation `json:"shipping,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// PointsChange is the before/after of a loyalty point adjustment.
type PointsChange struct {
	Before int64
	After  int64
}

// Crossed reports whether the change moved points from below threshold to at or above it.
func (c PointsChange) Crossed(threshold int64) bool {
	return c.Before < threshold && c.After >= threshold
}
