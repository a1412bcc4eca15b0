package model

import "time"

// PushSubscription holds a browser push subscription for a user. Rent
// lifecycle notifications are delivered to every subscription of the
// renting user.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index;size:36;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
