package models

import "github.com/shopspring/decimal"

// Product is owned by the catalog; the order flow only reads it and decrements stock.
type Product struct {
	ID            string           `json:"_id"`
	Name          string           `json:"name"`
	Image         string           `json:"image,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Stock         int              `json:"stock"`
}

// EffectivePrice is the discount price when one is set, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}

func (p *Product) Summary() *ProductSummary {
	return &ProductSummary{ID: p.ID, Name: p.Name, Image: p.Image, Price: p.Price}
}

type ProductSummary struct {
	ID    string          `json:"_id"`
	Name  string          `json:"name"`
	Image string          `json:"image,omitempty"`
	Price decimal.Decimal `json:"price"`
}
