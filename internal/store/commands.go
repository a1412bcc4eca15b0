package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"locker-terminal-backend/internal/model"
)

// CreateStartCommand persists a PENDING open command for a cell. The cell
// row is locked with a conditional update so that two concurrent start
// requests serialize; the loser then sees either an occupied cell or the
// winner's pending command and fails with ErrCellNotFree.
func (s *gormStore) CreateStartCommand(ctx context.Context, cmd *model.Command) error {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&model.Cell{}).
			Where("id = ? AND status = ?", cmd.CellID, model.CellStatusFree).
			Update("updated_at", time.Now().UTC())
		if claim.Error != nil {
			return fmt.Errorf("failed to claim cell %s: %w", cmd.CellID, claim.Error)
		}
		if claim.RowsAffected == 0 {
			return ErrCellNotFree
		}

		var pending int64
		err := tx.Model(&model.Command{}).
			Where("cell_id = ? AND action = ? AND status = ?",
				cmd.CellID, model.CommandActionActive, model.CommandStatusPending).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("failed to count pending commands for cell %s: %w", cmd.CellID, err)
		}
		if pending > 0 {
			return ErrCellNotFree
		}

		if err := tx.Create(cmd).Error; err != nil {
			return fmt.Errorf("failed to create command %s: %w", cmd.CommandID, err)
		}
		return nil
	})
	return err
}

// CreateFinishCommand persists a PENDING close command.
func (s *gormStore) CreateFinishCommand(ctx context.Context, cmd *model.Command) error {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return fmt.Errorf("failed to create command %s: %w", cmd.CommandID, err)
	}
	return nil
}

// CommandByCommandID looks a command up by its idempotency key.
func (s *gormStore) CommandByCommandID(ctx context.Context, commandID string) (*model.Command, error) {
	var cmd model.Command
	if err := s.db.WithContext(ctx).First(&cmd, "command_id = ?", commandID).Error; err != nil {
		return nil, translate(err, "command %s", commandID)
	}
	return &cmd, nil
}

// ReconcileCommand applies a confirmed device result to cell, rent and
// command records in one transaction. The command row is re-read inside
// the transaction and only a PENDING command is applied, so re-delivered
// results are no-ops. The returned event is nil when nothing changed or
// no rent was involved.
func (s *gormStore) ReconcileCommand(ctx context.Context, cmd *model.Command, now time.Time) (*RentEvent, error) {
	var event *RentEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Command
		err := tx.First(&current, "command_id = ? AND status = ?",
			cmd.CommandID, model.CommandStatusPending).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already reconciled or gone
		}
		if err != nil {
			return fmt.Errorf("failed to load command %s: %w", cmd.CommandID, err)
		}

		var cell model.Cell
		if err := tx.First(&cell, "id = ?", current.CellID).Error; err != nil {
			return fmt.Errorf("failed to load cell %s: %w", current.CellID, err)
		}

		resolvedRentID := current.RentID
		if current.Action == model.CommandActionCompleted {
			if cell.CurrentRentID != nil {
				resolvedRentID = cell.CurrentRentID
			}
			if resolvedRentID != nil {
				if err := completeRent(tx, *resolvedRentID, &current, now); err != nil {
					return err
				}
				if current.UserID != nil {
					event = &RentEvent{Kind: RentFinished, RentID: *resolvedRentID, UserID: *current.UserID}
				}
			}
			err = tx.Model(&model.Cell{}).Where("id = ?", cell.ID).Updates(map[string]any{
				"status":          model.CellStatusFree,
				"current_rent_id": nil,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to free cell %s: %w", cell.ID, err)
			}
		} else {
			rent := model.Rent{
				ID:        uuid.NewString(),
				CellID:    cell.ID,
				UserID:    current.UserID,
				ItemID:    current.ItemID,
				Status:    model.RentStatusActive,
				StartedAt: now,
			}
			if err := tx.Create(&rent).Error; err != nil {
				return fmt.Errorf("failed to create rent for cell %s: %w", cell.ID, err)
			}
			resolvedRentID = &rent.ID
			err = tx.Model(&model.Cell{}).Where("id = ?", cell.ID).Updates(map[string]any{
				"status":          model.CellStatusOccupied,
				"current_rent_id": rent.ID,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to occupy cell %s: %w", cell.ID, err)
			}
			if current.UserID != nil {
				event = &RentEvent{Kind: RentOpened, RentID: rent.ID, UserID: *current.UserID}
			}
		}

		updates := map[string]any{
			"status":      model.CommandStatusCompleted,
			"finished_at": now,
		}
		if resolvedRentID != nil {
			updates["rent_id"] = *resolvedRentID
		}
		err = tx.Model(&model.Command{}).Where("command_id = ?", current.CommandID).Updates(updates).Error
		if err != nil {
			return fmt.Errorf("failed to complete command %s: %w", current.CommandID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// completeRent marks a rent COMPLETED, stamping the user and item from
// the command where present.
func completeRent(tx *gorm.DB, rentID string, cmd *model.Command, now time.Time) error {
	updates := map[string]any{
		"status":      model.RentStatusCompleted,
		"finished_at": now,
	}
	if cmd.UserID != nil {
		updates["user_id"] = *cmd.UserID
	}
	if cmd.ItemID != nil {
		updates["item_id"] = *cmd.ItemID
	}
	if err := tx.Model(&model.Rent{}).Where("id = ?", rentID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to complete rent %s: %w", rentID, err)
	}
	return nil
}
