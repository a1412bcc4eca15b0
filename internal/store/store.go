package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"locker-terminal-backend/internal/model"
)

// RentEvent describes a rent lifecycle change produced by reconciliation.
// It is handed to the notification layer after the transaction commits.
type RentEvent struct {
	Kind   RentEventKind
	RentID string
	UserID string
}

// RentEventKind is the kind of rent lifecycle change.
type RentEventKind string

const (
	RentOpened   RentEventKind = "opened"
	RentFinished RentEventKind = "finished"
)

// Store defines the interface for all database operations used by the
// terminal control plane.
type Store interface {
	DB() *gorm.DB

	TerminalByID(ctx context.Context, id string) (*model.Terminal, error)
	TerminalByCode(ctx context.Context, code string) (*model.Terminal, error)
	TerminalWithCells(ctx context.Context, id string) (*model.Terminal, error)
	TerminalsByIDs(ctx context.Context, ids []string) ([]model.Terminal, error)

	CellByID(ctx context.Context, id string) (*model.Cell, error)
	RentByID(ctx context.Context, id string) (*model.Rent, error)
	LatestActiveRent(ctx context.Context, cellID string) (*model.Rent, error)
	ActiveRentsByUser(ctx context.Context, userID string) ([]model.Rent, error)

	CommandByCommandID(ctx context.Context, commandID string) (*model.Command, error)
	CreateStartCommand(ctx context.Context, cmd *model.Command) error
	CreateFinishCommand(ctx context.Context, cmd *model.Command) error
	ReconcileCommand(ctx context.Context, cmd *model.Command, now time.Time) (*RentEvent, error)

	SubscriptionByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SubscriptionsByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) TerminalByID(ctx context.Context, id string) (*model.Terminal, error) {
	var terminal model.Terminal
	if err := s.db.WithContext(ctx).First(&terminal, "id = ?", id).Error; err != nil {
		return nil, translate(err, "terminal %s", id)
	}
	return &terminal, nil
}

func (s *gormStore) TerminalByCode(ctx context.Context, code string) (*model.Terminal, error) {
	var terminal model.Terminal
	if err := s.db.WithContext(ctx).First(&terminal, "code = ?", code).Error; err != nil {
		return nil, translate(err, "terminal code %s", code)
	}
	return &terminal, nil
}

func (s *gormStore) TerminalWithCells(ctx context.Context, id string) (*model.Terminal, error) {
	var terminal model.Terminal
	err := s.db.WithContext(ctx).
		Preload("Cells", func(db *gorm.DB) *gorm.DB { return db.Order(`cells."index"`) }).
		Preload("Cells.Item").
		First(&terminal, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "terminal %s", id)
	}
	return &terminal, nil
}

func (s *gormStore) TerminalsByIDs(ctx context.Context, ids []string) ([]model.Terminal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var terminals []model.Terminal
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&terminals).Error; err != nil {
		return nil, fmt.Errorf("failed to load terminals: %w", err)
	}
	return terminals, nil
}

func (s *gormStore) CellByID(ctx context.Context, id string) (*model.Cell, error) {
	var cell model.Cell
	if err := s.db.WithContext(ctx).Preload("Item").First(&cell, "id = ?", id).Error; err != nil {
		return nil, translate(err, "cell %s", id)
	}
	return &cell, nil
}

func (s *gormStore) RentByID(ctx context.Context, id string) (*model.Rent, error) {
	var rent model.Rent
	if err := s.db.WithContext(ctx).First(&rent, "id = ?", id).Error; err != nil {
		return nil, translate(err, "rent %s", id)
	}
	return &rent, nil
}

func (s *gormStore) LatestActiveRent(ctx context.Context, cellID string) (*model.Rent, error) {
	var rent model.Rent
	err := s.db.WithContext(ctx).
		Where("cell_id = ? AND status = ?", cellID, model.RentStatusActive).
		Order("started_at DESC").
		First(&rent).Error
	if err != nil {
		return nil, translate(err, "active rent for cell %s", cellID)
	}
	return &rent, nil
}

func (s *gormStore) ActiveRentsByUser(ctx context.Context, userID string) ([]model.Rent, error) {
	var rents []model.Rent
	err := s.db.WithContext(ctx).
		Preload("Item").
		Preload("Cell").
		Preload("Cell.Terminal").
		Where("user_id = ? AND status = ?", userID, model.RentStatusActive).
		Order("started_at DESC").
		Find(&rents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load rents for user %s: %w", userID, err)
	}
	return rents, nil
}

// translate maps gorm.ErrRecordNotFound onto the package sentinel and
// wraps everything else with the lookup description.
func translate(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
