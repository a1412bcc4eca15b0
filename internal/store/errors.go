// Package store provides the persistence layer for terminals, cells,
// rents and commands. Sentinel errors defined here let higher layers
// distinguish missing records and rejected state transitions from plain
// storage failures without inspecting driver errors.
package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrCellNotFree is returned when a start command cannot be created
// because the cell is occupied or already has a pending open command.
var ErrCellNotFree = errors.New("cell is not free")
