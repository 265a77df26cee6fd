package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry. Stock is mutated only through the inventory
// service's conditional decrement.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Category    string             `bson:"category" json:"category"`
	Subcategory string             `bson:"subcategory,omitempty" json:"subcategory,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	SalePrice   *float64           `bson:"sale_price,omitempty" json:"salePrice,omitempty"`
	Currency    string             `bson:"currency" json:"currency"`
	InStock     bool               `bson:"in_stock" json:"inStock"`
	StockCount  int                `bson:"stock_count" json:"stockCount"`
	Images      []string           `bson:"images,omitempty" json:"images,omitempty"`
	Sizes       []string           `bson:"sizes,omitempty" json:"sizes,omitempty"`
	Colors      []string           `bson:"colors,omitempty" json:"colors,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Material    string             `bson:"material,omitempty" json:"material,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
