package terminal

import "errors"

// Sentinel errors surfaced by the control service. Handlers translate
// these into HTTP status codes with errors.Is; anything else is treated
// as a storage failure.
var (
	// ErrTerminalNotFound is returned when the terminal id is unknown.
	ErrTerminalNotFound = errors.New("terminal not found")

	// ErrCellNotFound is returned when the cell id is unknown or the
	// cell belongs to a different terminal.
	ErrCellNotFound = errors.New("cell not found")

	// ErrCellNotFree rejects a start on an occupied or claimed cell.
	ErrCellNotFree = errors.New("cell is not free")

	// ErrCellAlreadyFree rejects a finish on a free cell.
	ErrCellAlreadyFree = errors.New("cell is already free")

	// ErrRentOwnedByAnotherUser rejects a finish by anyone but the
	// renting user.
	ErrRentOwnedByAnotherUser = errors.New("cell is rented by another user")

	// ErrTerminalOffline is returned when no live connection exists for
	// the terminal.
	ErrTerminalOffline = errors.New("terminal is not online")
)
