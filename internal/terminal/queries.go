package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"locker-terminal-backend/internal/model"
	"locker-terminal-backend/internal/protocol"
	"locker-terminal-backend/internal/store"
)

// OnlineTerminal is one entry of the online-terminals listing.
type OnlineTerminal struct {
	TerminalID string `json:"terminalId"`
	Name       string `json:"name"`
	Location   string `json:"location"`
}

// ItemView describes an item stored in a cell.
type ItemView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	CreatedAt time.Time `json:"createdAt"`
}

// CellView is one cell of a terminal state response.
type CellView struct {
	ID       string           `json:"id"`
	Index    int              `json:"index"`
	GpioPin  int              `json:"gpioPin"`
	Label    string           `json:"label"`
	Status   model.CellStatus `json:"status"`
	IsActive bool             `json:"isActive"`
	Item     *ItemView        `json:"item"`
}

// TerminalState is the full state response for one terminal.
type TerminalState struct {
	TerminalID  string              `json:"terminalId"`
	Name        string              `json:"name"`
	Location    string              `json:"location"`
	Cells       []CellView          `json:"cells"`
	LastStateAt *time.Time          `json:"lastStateAt,omitempty"`
	Pins        []protocol.PinState `json:"pins,omitempty"`
}

// TerminalItem is one entry of the terminal items listing.
type TerminalItem struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	SKU       string           `json:"sku"`
	CellID    string           `json:"cellId"`
	CellIndex int              `json:"cellIndex"`
	CellLabel string           `json:"cellLabel"`
	Status    model.CellStatus `json:"status"`
	IsRented  bool             `json:"isRented"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UserRent is one entry of a user's active rents.
type UserRent struct {
	ID         string           `json:"id"`
	Status     model.RentStatus `json:"status"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
	Cell       struct {
		ID       string `json:"id"`
		Index    int    `json:"index"`
		Label    string `json:"label"`
		Terminal struct {
			ID       string `json:"id"`
			Code     string `json:"code"`
			Name     string `json:"name"`
			Location string `json:"location"`
		} `json:"terminal"`
	} `json:"cell"`
	Item *ItemView `json:"item"`
}

// ListOnline returns the terminals with a live connection.
func (s *Service) ListOnline(ctx context.Context) ([]OnlineTerminal, error) {
	ids := s.registry.ConnectedTerminalIDs()
	if len(ids) == 0 {
		return []OnlineTerminal{}, nil
	}

	terminals, err := s.store.TerminalsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	online := make([]OnlineTerminal, 0, len(terminals))
	for _, t := range terminals {
		online = append(online, OnlineTerminal{
			TerminalID: t.ID,
			Name:       t.Name,
			Location:   t.Location,
		})
	}
	return online, nil
}

// GetState returns the terminal's cells plus the last device telemetry.
// An offline terminal is reported as ErrTerminalOffline even when it
// exists in storage.
func (s *Service) GetState(ctx context.Context, terminalID string) (*TerminalState, error) {
	conn, ok := s.registry.FindByTerminalID(terminalID)
	if !ok {
		return nil, fmt.Errorf("terminal %s: %w", terminalID, ErrTerminalOffline)
	}

	terminal, err := s.store.TerminalWithCells(ctx, terminalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("terminal %s: %w", terminalID, ErrTerminalNotFound)
		}
		return nil, err
	}

	state := &TerminalState{
		TerminalID:  terminal.ID,
		Name:        terminal.Name,
		Location:    terminal.Location,
		Cells:       make([]CellView, 0, len(terminal.Cells)),
		LastStateAt: conn.LastStateAt,
	}
	if conn.LastState != nil {
		state.Pins = conn.LastState.Pins
	}
	for _, cell := range terminal.Cells {
		state.Cells = append(state.Cells, CellView{
			ID:       cell.ID,
			Index:    cell.Index,
			GpioPin:  cell.GpioPin,
			Label:    cell.Label,
			Status:   cell.Status,
			IsActive: cell.IsActive,
			Item:     itemView(cell.Item),
		})
	}
	return state, nil
}

// TerminalItems lists the items currently stored in the terminal's cells.
func (s *Service) TerminalItems(ctx context.Context, terminalID string) ([]TerminalItem, error) {
	if _, ok := s.registry.FindByTerminalID(terminalID); !ok {
		return nil, fmt.Errorf("terminal %s: %w", terminalID, ErrTerminalOffline)
	}

	terminal, err := s.store.TerminalWithCells(ctx, terminalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []TerminalItem{}, nil
		}
		return nil, err
	}

	items := make([]TerminalItem, 0, len(terminal.Cells))
	for _, cell := range terminal.Cells {
		if cell.Item == nil {
			continue
		}
		items = append(items, TerminalItem{
			ID:        cell.Item.ID,
			Name:      cell.Item.Name,
			SKU:       cell.Item.SKU,
			CellID:    cell.ID,
			CellIndex: cell.Index,
			CellLabel: cell.Label,
			Status:    cell.Status,
			IsRented:  cell.Status == model.CellStatusOccupied,
			CreatedAt: cell.Item.CreatedAt,
		})
	}
	return items, nil
}

// ListUserRents returns the user's active rents with cell and terminal
// context.
func (s *Service) ListUserRents(ctx context.Context, userID string) ([]UserRent, error) {
	rents, err := s.store.ActiveRentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]UserRent, 0, len(rents))
	for _, rent := range rents {
		view := UserRent{
			ID:         rent.ID,
			Status:     rent.Status,
			StartedAt:  rent.StartedAt,
			FinishedAt: rent.FinishedAt,
			Item:       itemView(rent.Item),
		}
		view.Cell.ID = rent.Cell.ID
		view.Cell.Index = rent.Cell.Index
		view.Cell.Label = rent.Cell.Label
		view.Cell.Terminal.ID = rent.Cell.Terminal.ID
		view.Cell.Terminal.Code = rent.Cell.Terminal.Code
		view.Cell.Terminal.Name = rent.Cell.Terminal.Name
		view.Cell.Terminal.Location = rent.Cell.Terminal.Location
		out = append(out, view)
	}
	return out, nil
}

func itemView(item *model.Item) *ItemView {
	if item == nil {
		return nil
	}
	return &ItemView{
		ID:        item.ID,
		Name:      item.Name,
		SKU:       item.SKU,
		CreatedAt: item.CreatedAt,
	}
}
