package model

import "time"

// RentStatus is the lifecycle state of a rent.
type RentStatus string

const (
	RentStatusActive    RentStatus = "ACTIVE"
	RentStatusCompleted RentStatus = "COMPLETED"
)

// Rent is one occupancy episode of a cell by a user, from confirmed open
// to confirmed close. At most one ACTIVE rent exists per cell.
type Rent struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	CellID     string     `gorm:"index;size:36;not null" json:"cellId"`
	UserID     *string    `gorm:"index;size:36" json:"userId,omitempty"`
	ItemID     *string    `gorm:"size:36" json:"itemId,omitempty"`
	Status     RentStatus `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	StartedAt  time.Time  `gorm:"not null" json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Associations
	Cell Cell  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Item *Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}
