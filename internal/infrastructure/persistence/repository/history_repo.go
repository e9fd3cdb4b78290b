package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/port"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	"github.com/jmwangi/schoolflow/internal/domain/workflow"
	"github.com/jmwangi/schoolflow/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository. The ledger is
// append-only; there is no update or delete statement here on purpose.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one transition record
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO workflow_history (
			id, instance_id, from_stage, to_stage, action_code,
			performed_by, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.InstanceID,
		entry.FromStage.String(),
		entry.ToStage.String(),
		entry.ActionCode,
		entry.PerformedBy,
		entry.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to append history record",
			zap.String("instance_id", entry.InstanceID), zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// GetByInstanceID retrieves all transition records for an instance in
// chronological order
func (r *HistoryRepository) GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, instance_id, from_stage, to_stage, action_code,
			performed_by, occurred_at
		FROM workflow_history
		WHERE instance_id = ?
		ORDER BY occurred_at ASC, rowid ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to get history by instance ID",
			zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.HistoryEntry
	for rows.Next() {
		var entry entity.HistoryEntry
		var fromStage, toStage string
		err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&fromStage,
			&toStage,
			&entry.ActionCode,
			&entry.PerformedBy,
			&entry.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		entry.FromStage = workflow.Stage(fromStage)
		entry.ToStage = workflow.Stage(toStage)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
