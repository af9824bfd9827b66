package models

import "gorm.io/datatypes"

// VariantAttributes is the free-form attribute bag attached to a variant.
type VariantAttributes struct {
	Size   string `json:"size,omitempty"`
	Flavor string `json:"flavor,omitempty"`
	Color  string `json:"color,omitempty"`
}

// ProductVariant is a purchasable variation of a product with its own price.
type ProductVariant struct {
	BaseModel

	ProductID string  `gorm:"type:uuid;not null;index" json:"product_id"`
	Name      string  `gorm:"not null" json:"name"`
	Price     float64 `gorm:"not null" json:"price"`

	Attributes datatypes.JSONType[VariantAttributes] `json:"attributes"`

	SKU         string `json:"sku,omitempty"`
	IsAvailable bool   `gorm:"default:true;index" json:"is_available"`
}
