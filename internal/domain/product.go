package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable item listed by a shop.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Discount    *int            `json:"discount,omitempty"`
	CategoryID  int64           `json:"categoryId"`
	ShopID      int64           `json:"shopId"`
	SellerID    int64           `json:"sellerId"`
	Images      []string        `json:"images"`
	Rating      float64         `json:"rating"`
	IsActive    bool            `json:"isActive"`
	SKU         string          `json:"sku"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// OwnedBy reports whether sellerID owns the product.
func (p *Product) OwnedBy(sellerID int64) bool {
	return p.SellerID == sellerID
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// CanAdjustStock reports whether applying delta keeps stock non-negative.
func (p *Product) CanAdjustStock(delta int) bool {
	return p.Stock+delta >= 0
}

// ProductListItem is a product row returned by filtered listings, with its
// shop summary and most recent reviews.
type ProductListItem struct {
	Product
	Shop    ShopSummary `json:"shop"`
	Reviews []Review    `json:"reviews"`
}

// ProductDetail is a product with its related entities attached.
type ProductDetail struct {
	Product
	Category *Category    `json:"category,omitempty"`
	Shop     *ShopSummary `json:"shop,omitempty"`
	Reviews  []Review     `json:"reviews"`
}

// RecentReviewLimit caps the reviews attached to a ProductDetail.
const RecentReviewLimit = 3

// ProductChanges is a partial update. Nil fields are left untouched.
type ProductChanges struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Discount    *int
	CategoryID  *int64
	Images      *[]string
	IsActive    *bool
	SellerID    *int64
}

// Fields returns the names of the fields set on c, in declaration order.
func (c ProductChanges) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(c.Name != nil, "name")
	add(c.Description != nil, "description")
	add(c.Price != nil, "price")
	add(c.Stock != nil, "stock")
	add(c.Discount != nil, "discount")
	add(c.CategoryID != nil, "categoryId")
	add(c.Images != nil, "images")
	add(c.IsActive != nil, "isActive")
	add(c.SellerID != nil, "sellerId")
	return fields
}

// IsEmpty reports whether c changes nothing.
func (c ProductChanges) IsEmpty() bool {
	return len(c.Fields()) == 0
}

// Apply copies every set field of c onto p.
func (c ProductChanges) Apply(p *Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.Stock != nil {
		p.Stock = *c.Stock
	}
	if c.Discount != nil {
		d := *c.Discount
		p.Discount = &d
	}
	if c.CategoryID != nil {
		p.CategoryID = *c.CategoryID
	}
	if c.Images != nil {
		p.Images = append([]string(nil), (*c.Images)...)
	}
	if c.IsActive != nil {
		p.IsActive = *c.IsActive
	}
	if c.SellerID != nil {
		p.SellerID = *c.SellerID
	}
}
