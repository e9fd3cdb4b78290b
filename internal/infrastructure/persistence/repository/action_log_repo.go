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

// ActionLogRepository implements port.ActionLogger. These are advisory audit
// records written by the request layer; unlike workflow history they are not
// part of the atomic transition unit.
type ActionLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActionLogRepository creates a new action log repository
func NewActionLogRepository(db *sql.DB, logger *zap.Logger) port.ActionLogger {
	return &ActionLogRepository{
		db:     db,
		logger: logger,
	}
}

// Log writes one audit record
func (r *ActionLogRepository) Log(ctx context.Context, entry *entity.ActionLogEntry) error {
	query := `
		INSERT INTO action_log (
			actor_id, action, entity_type, entity_id, detail, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Detail,
		entry.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to write action log entry", zap.Error(err))
		return fmt.Errorf("failed to write action log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *ActionLogRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.ActionLogger = (*ActionLogRepository)(nil)
