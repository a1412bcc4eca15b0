// Package terminal implements the terminal control service: command
// issuance over live device connections and the transactional
// reconciliation of device results into cell, rent and command records.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"locker-terminal-backend/internal/model"
	"locker-terminal-backend/internal/protocol"
	"locker-terminal-backend/internal/registry"
	"locker-terminal-backend/internal/store"
)

// actuationPulseSeconds is the lock pulse used for rent commands.
const actuationPulseSeconds = 2

// Notifier receives rent lifecycle events produced by reconciliation.
// Delivery is best-effort and never affects business state.
type Notifier interface {
	Dispatch(event store.RentEvent)
}

// Service orchestrates the connection registry, the protocol codec and
// the store. Business state is device-result-driven: issuing a command
// never changes cell or rent status, only a confirmed result does.
type Service struct {
	store    store.Store
	registry *registry.Registry
	notifier Notifier
	logger   zerolog.Logger
}

// NewService creates a control service. notifier may be nil.
func NewService(s store.Store, r *registry.Registry, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    s,
		registry: r,
		notifier: notifier,
		logger:   logger.With().Str("component", "terminal").Logger(),
	}
}

// IssueCommand transmits a gpio command to the terminal addressed by
// storage id, falling back to code for direct addressing. It returns the
// command id without waiting for a result; completion is observed
// asynchronously via HandleCommandResult.
func (s *Service) IssueCommand(terminalIDOrCode string, gpioPin, durationSeconds int, commandID string) (string, error) {
	conn, ok := s.registry.FindByTerminalID(terminalIDOrCode)
	if !ok {
		conn, ok = s.registry.FindByCode(terminalIDOrCode)
	}
	if !ok {
		return "", fmt.Errorf("terminal %s: %w", terminalIDOrCode, ErrTerminalOffline)
	}

	commandID = strings.TrimSpace(commandID)
	if commandID == "" {
		commandID = uuid.NewString()
	}

	frame, err := protocol.EncodeGpioCommand(commandID, gpioPin, durationSeconds)
	if err != nil {
		return "", err
	}
	if err := conn.Socket.Send(frame); err != nil {
		return "", fmt.Errorf("terminal %s: send failed: %w", terminalIDOrCode, ErrTerminalOffline)
	}

	s.logger.Debug().
		Str("terminal", conn.Code).
		Str("command_id", commandID).
		Int("gpio_pin", gpioPin).
		Msg("gpio command issued")
	return commandID, nil
}

// StartRent validates that the cell is free, persists a PENDING open
// command and fires the actuation pulse. The free check and the command
// insert run in one transaction, so concurrent starts on the same cell
// cannot both succeed.
func (s *Service) StartRent(ctx context.Context, terminalID, cellID, userID string) (string, error) {
	terminal, cell, err := s.resolveCell(ctx, terminalID, cellID)
	if err != nil {
		return "", err
	}
	if cell.Status != model.CellStatusFree {
		return "", fmt.Errorf("cell %s: %w", cellID, ErrCellNotFree)
	}
	if _, ok := s.registry.FindByTerminalID(terminal.ID); !ok {
		return "", fmt.Errorf("terminal %s: %w", terminalID, ErrTerminalOffline)
	}

	cmd := &model.Command{
		CommandID:  uuid.NewString(),
		TerminalID: terminal.ID,
		CellID:     cell.ID,
		RentID:     cell.CurrentRentID,
		UserID:     &userID,
		ItemID:     cell.ItemID,
		Action:     model.CommandActionActive,
		Status:     model.CommandStatusPending,
	}
	if err := s.store.CreateStartCommand(ctx, cmd); err != nil {
		if errors.Is(err, store.ErrCellNotFree) {
			return "", fmt.Errorf("cell %s: %w", cellID, ErrCellNotFree)
		}
		return "", err
	}

	return s.IssueCommand(terminal.ID, cell.GpioPin, actuationPulseSeconds, cmd.CommandID)
}

// FinishRent validates ownership of the active rent, persists a PENDING
// close command and fires the actuation pulse.
func (s *Service) FinishRent(ctx context.Context, terminalID, cellID, userID string) (string, error) {
	terminal, cell, err := s.resolveCell(ctx, terminalID, cellID)
	if err != nil {
		return "", err
	}
	if cell.Status == model.CellStatusFree {
		return "", fmt.Errorf("cell %s: %w", cellID, ErrCellAlreadyFree)
	}

	rentID := cell.CurrentRentID
	if rentID != nil {
		rent, err := s.store.RentByID(ctx, *rentID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		if rent != nil && rent.UserID != nil && *rent.UserID != userID {
			return "", fmt.Errorf("cell %s: %w", cellID, ErrRentOwnedByAnotherUser)
		}
	} else {
		rent, err := s.store.LatestActiveRent(ctx, cell.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		if rent != nil {
			if rent.UserID != nil && *rent.UserID != userID {
				return "", fmt.Errorf("cell %s: %w", cellID, ErrRentOwnedByAnotherUser)
			}
			rentID = &rent.ID
		}
	}

	if _, ok := s.registry.FindByTerminalID(terminal.ID); !ok {
		return "", fmt.Errorf("terminal %s: %w", terminalID, ErrTerminalOffline)
	}

	cmd := &model.Command{
		CommandID:  uuid.NewString(),
		TerminalID: terminal.ID,
		CellID:     cell.ID,
		RentID:     rentID,
		UserID:     &userID,
		ItemID:     cell.ItemID,
		Action:     model.CommandActionCompleted,
		Status:     model.CommandStatusPending,
	}
	if err := s.store.CreateFinishCommand(ctx, cmd); err != nil {
		return "", err
	}

	return s.IssueCommand(terminal.ID, cell.GpioPin, actuationPulseSeconds, cmd.CommandID)
}

// HandleCommandResult reconciles a device result against storage. It is
// invoked for every inbound command-result message and is idempotent:
// blank or unknown command ids, non-"completed" statuses and
// already-reconciled commands are all no-ops.
func (s *Service) HandleCommandResult(ctx context.Context, result protocol.CommandResult) error {
	commandID := strings.TrimSpace(result.CommandID)
	if commandID == "" {
		return nil
	}

	cmd, err := s.store.CommandByCommandID(ctx, commandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if !result.Completed() {
		s.logger.Debug().
			Str("command_id", commandID).
			Str("status", result.Status).
			Str("message", result.Message).
			Msg("non-terminal command status recorded")
		return nil
	}
	if cmd.CellID == "" {
		return nil
	}

	event, err := s.store.ReconcileCommand(ctx, cmd, time.Now().UTC())
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("command_id", commandID).
		Str("cell", cmd.CellID).
		Str("action", string(cmd.Action)).
		Msg("command result reconciled")

	if event != nil && s.notifier != nil {
		s.notifier.Dispatch(*event)
	}
	return nil
}

// resolveCell loads the terminal and the cell, mapping storage sentinels
// onto the service taxonomy. A cell belonging to another terminal is
// indistinguishable from a missing one.
func (s *Service) resolveCell(ctx context.Context, terminalID, cellID string) (*model.Terminal, *model.Cell, error) {
	terminal, err := s.store.TerminalByID(ctx, terminalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("terminal %s: %w", terminalID, ErrTerminalNotFound)
		}
		return nil, nil, err
	}

	cell, err := s.store.CellByID(ctx, cellID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("cell %s: %w", cellID, ErrCellNotFound)
		}
		return nil, nil, err
	}
	if cell.TerminalID != terminal.ID {
		return nil, nil, fmt.Errorf("cell %s: %w", cellID, ErrCellNotFound)
	}
	return terminal, cell, nil
}
