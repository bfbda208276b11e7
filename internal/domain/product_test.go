package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_OwnedBy(t *testing.T) {
	p := Product{SellerID: 7}
	assert.True(t, p.OwnedBy(7))
	assert.False(t, p.OwnedBy(8))
}

func TestProduct_CanAdjustStock(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		delta int
		want  bool
	}{
		{"increase", 2, 5, true},
		{"decrease to zero", 2, -2, true},
		{"below zero", 2, -3, false},
		{"empty stock negative delta", 0, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Stock: tt.stock}
			assert.Equal(t, tt.want, p.CanAdjustStock(tt.delta))
		})
	}
}

func TestProductChanges_Fields(t *testing.T) {
	name := "Blue Mug"
	price := decimal.RequireFromString("12.50")
	images := []string{"a.png"}

	c := ProductChanges{Name: &name, Price: &price, Images: &images}
	assert.Equal(t, []string{"name", "price", "images"}, c.Fields())
	assert.False(t, c.IsEmpty())
	assert.True(t, ProductChanges{}.IsEmpty())
}

func TestProductChanges_Apply(t *testing.T) {
	name := "Blue Mug"
	stock := 0
	discount := 15
	images := []string{"b.png", "c.png"}

	p := Product{
		Name:   "Red Mug",
		Stock:  5,
		Images: []string{"a.png"},
		Price:  decimal.RequireFromString("9.99"),
	}
	ProductChanges{Name: &name, Stock: &stock, Discount: &discount, Images: &images}.Apply(&p)

	assert.Equal(t, "Blue Mug", p.Name)
	assert.Equal(t, 0, p.Stock)
	if assert.NotNil(t, p.Discount) {
		assert.Equal(t, 15, *p.Discount)
	}
	assert.Equal(t, []string{"b.png", "c.png"}, p.Images)
	assert.True(t, decimal.RequireFromString("9.99").Equal(p.Price))

	// the applied slice must not alias the caller's
	images[0] = "mutated.png"
	assert.Equal(t, "b.png", p.Images[0])
}

func TestShop_Summary(t *testing.T) {
	s := Shop{ID: 1, SellerID: 7, Name: "Mugs & Co", IsVerified: true, Rating: 4.5}
	assert.Equal(t, ShopSummary{ID: 1, Name: "Mugs & Co", IsVerified: true, Rating: 4.5}, s.Summary())
}
