package model

import "time"

// Terminal represents a physical locker unit with addressable cells.
// Terminals are provisioned out of band and are read-only to the control
// plane.
type Terminal struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Location  string    `gorm:"size:256" json:"location"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Cells []Cell `gorm:"foreignKey:TerminalID" json:"cells,omitempty"`
}
