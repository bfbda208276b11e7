package domain

import (
	"time"
)

// Reviewer is the display information of a review author.
type Reviewer struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// Review is a buyer's rating of a product.
type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	Reviewer  Reviewer  `json:"reviewer"`
}
