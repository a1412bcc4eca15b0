package model

import "time"

// CommandAction tells the terminal what a command is for. ACTIVE opens a
// cell to start a rent, COMPLETED opens it to finish one.
type CommandAction string

const (
	CommandActionActive    CommandAction = "ACTIVE"
	CommandActionCompleted CommandAction = "COMPLETED"
)

// CommandStatus is the lifecycle state of a command.
type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "PENDING"
	CommandStatusCompleted CommandStatus = "COMPLETED"
)

// Command is one physical actuation request sent to a terminal. CommandID
// is the idempotency key echoed back by the device; a command is closed
// only by a matching device result.
type Command struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	CommandID  string        `gorm:"uniqueIndex;size:64;not null" json:"commandId"`
	TerminalID string        `gorm:"index;size:36;not null" json:"terminalId"`
	CellID     string        `gorm:"index;size:36;not null" json:"cellId"`
	RentID     *string       `gorm:"size:36" json:"rentId,omitempty"`
	UserID     *string       `gorm:"size:36" json:"userId,omitempty"`
	ItemID     *string       `gorm:"size:36" json:"itemId,omitempty"`
	Action     CommandAction `gorm:"size:16;not null" json:"action"`
	Status     CommandStatus `gorm:"size:16;not null;default:PENDING" json:"status"`
	CreatedAt  time.Time     `gorm:"not null" json:"createdAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}
