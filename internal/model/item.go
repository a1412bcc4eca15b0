package model

import "time"

// Item is a storable object referenced by cells and rents.
type Item struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	SKU       string    `gorm:"size:64" json:"sku"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}
