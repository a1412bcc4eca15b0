package model

import "time"

// CellStatus is the occupancy state of a cell.
type CellStatus string

const (
	CellStatusFree     CellStatus = "FREE"
	CellStatusOccupied CellStatus = "OCCUPIED"
)

// Cell is one lockable compartment within a terminal, wired to a single
// GPIO pin. Status and CurrentRentID are mutated only by result
// reconciliation: Status is OCCUPIED exactly when CurrentRentID is set.
type Cell struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TerminalID    string     `gorm:"index;size:36;not null" json:"terminalId"`
	Index         int        `gorm:"not null" json:"index"`
	GpioPin       int        `gorm:"not null" json:"gpioPin"`
	Label         string     `gorm:"size:128" json:"label"`
	Status        CellStatus `gorm:"size:16;not null;default:FREE" json:"status"`
	IsActive      bool       `gorm:"not null;default:true" json:"isActive"`
	CurrentRentID *string    `gorm:"size:36" json:"currentRentId,omitempty"`
	ItemID        *string    `gorm:"size:36" json:"itemId,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updatedAt"`

	// Associations
	Terminal Terminal `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Item     *Item    `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}
