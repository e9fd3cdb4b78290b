package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/port"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	"github.com/jmwangi/schoolflow/internal/infrastructure/persistence/sqlite"
)

// InventoryRepository implements port.InventoryRepository. Items live in
// inventory_items; per-location quantities in stock_levels. Stage action
// handlers call these inside the transaction carried in ctx, so quantity
// changes commit together with the stage change.
type InventoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *sql.DB, logger *zap.Logger) port.InventoryRepository {
	return &InventoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves an inventory item by ID
func (r *InventoryRepository) GetByID(ctx context.Context, id int64) (*entity.InventoryItem, error) {
	query := `
		SELECT id, name, category_id, location_id, quantity, unit_value,
			disposed, created_at, updated_at
		FROM inventory_items
		WHERE id = ?
	`

	var item entity.InventoryItem
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.CategoryID,
		&item.LocationID,
		&item.Quantity,
		&item.UnitValue,
		&item.Disposed,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get inventory item", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}

	return &item, nil
}

// AdjustQuantity adds delta to the item's quantity at a location. The guard
// in the WHERE clause refuses any adjustment that would drive the level
// negative.
func (r *InventoryRepository) AdjustQuantity(ctx context.Context, itemID, locationID, delta int64) error {
	query := `
		UPDATE stock_levels
		SET quantity = quantity + ?
		WHERE item_id = ? AND location_id = ? AND quantity + ? >= 0
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, delta, itemID, locationID, delta)
	if err != nil {
		r.logger.Error("Failed to adjust stock level",
			zap.Int64("item_id", itemID), zap.Int64("location_id", locationID), zap.Error(err))
		return fmt.Errorf("failed to adjust stock level: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Either no stock row exists yet or the guard refused the adjustment.
	if delta < 0 {
		return fmt.Errorf("insufficient stock for item %d at location %d", itemID, locationID)
	}

	insert := `INSERT INTO stock_levels (item_id, location_id, quantity) VALUES (?, ?, ?)`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, insert, itemID, locationID, delta); err != nil {
		r.logger.Error("Failed to create stock level",
			zap.Int64("item_id", itemID), zap.Int64("location_id", locationID), zap.Error(err))
		return fmt.Errorf("failed to create stock level: %w", err)
	}
	return nil
}

// SetQuantity overwrites the system quantity at a location, used by audit
// adjustments
func (r *InventoryRepository) SetQuantity(ctx context.Context, itemID, locationID, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("stock level cannot be negative")
	}

	query := `
		INSERT INTO stock_levels (item_id, location_id, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id, location_id) DO UPDATE SET quantity = excluded.quantity
	`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, itemID, locationID, quantity); err != nil {
		r.logger.Error("Failed to set stock level",
			zap.Int64("item_id", itemID), zap.Int64("location_id", locationID), zap.Error(err))
		return fmt.Errorf("failed to set stock level: %w", err)
	}
	return nil
}

// MarkDisposed flags the item as disposed
func (r *InventoryRepository) MarkDisposed(ctx context.Context, itemID int64) error {
	query := `UPDATE inventory_items SET disposed = 1 WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, itemID)
	if err != nil {
		r.logger.Error("Failed to mark item disposed", zap.Int64("item_id", itemID), zap.Error(err))
		return fmt.Errorf("failed to mark item disposed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("inventory item %d not found", itemID)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *InventoryRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.InventoryRepository = (*InventoryRepository)(nil)
