package domain

// Shop is a storefront owned by a single seller.
type Shop struct {
	ID         int64   `json:"id"`
	SellerID   int64   `json:"sellerId"`
	Name       string  `json:"name"`
	IsVerified bool    `json:"isVerified"`
	Rating     float64 `json:"rating"`
}

// ShopSummary is the subset of Shop embedded in product reads.
type ShopSummary struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	IsVerified bool    `json:"isVerified"`
	Rating     float64 `json:"rating"`
}

// Summary returns the product-facing view of s.
func (s Shop) Summary() ShopSummary {
	return ShopSummary{ID: s.ID, Name: s.Name, IsVerified: s.IsVerified, Rating: s.Rating}
}
