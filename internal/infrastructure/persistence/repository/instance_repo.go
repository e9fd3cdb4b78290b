package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/port"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	"github.com/jmwangi/schoolflow/internal/domain/workflow"
	"github.com/jmwangi/schoolflow/internal/infrastructure/persistence/sqlite"
)

// InstanceRepository implements port.InstanceRepository backed by the
// workflow_instances table. The payload is stored as a JSON column.
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `id, process_type, entity_type, entity_id, current_stage,
	status, payload, version, created_by, created_at, updated_at`

// Create inserts a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	payload, err := json.Marshal(instance.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (
			id, process_type, entity_type, entity_id, current_stage,
			status, payload, version, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		instance.ID,
		instance.ProcessType.String(),
		instance.Reference.EntityType,
		instance.Reference.EntityID,
		instance.CurrentStage.String(),
		instance.Status.String(),
		string(payload),
		instance.Version,
		instance.CreatedBy,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`

	instance, err := r.scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// GetByReference retrieves the workflow instance tracking a business entity
func (r *InstanceRepository) GetByReference(ctx context.Context, ref entity.Reference) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC LIMIT 1`

	instance, err := r.scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query, ref.EntityType, ref.EntityID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by reference",
			zap.String("entity_type", ref.EntityType),
			zap.Int64("entity_id", ref.EntityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// UpdateStage writes the new stage, status and payload guarded by the
// optimistic version check. No row matches when a concurrent advance already
// bumped the version; the caller maps that to a conflict.
func (r *InstanceRepository) UpdateStage(ctx context.Context, id string, stage workflow.Stage,
	status workflow.Status, payload entity.Payload, fromVersion int64) (bool, error) {

	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		UPDATE workflow_instances
		SET current_stage = ?, status = ?, payload = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		stage.String(), status.String(), string(raw), time.Now(), id, fromVersion)
	if err != nil {
		r.logger.Error("Failed to update stage", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update stage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByStage retrieves instances of a process currently at a stage
func (r *InstanceRepository) ListByStage(ctx context.Context, processType workflow.ProcessType,
	stage workflow.Stage, limit, offset int) ([]*entity.WorkflowInstance, error) {

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE process_type = ? AND current_stage = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	return r.queryInstances(ctx, query, processType.String(), stage.String(), limit, offset)
}

// List retrieves instances of a process with pagination
func (r *InstanceRepository) List(ctx context.Context, processType workflow.ProcessType,
	limit, offset int) ([]*entity.WorkflowInstance, error) {

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE process_type = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	return r.queryInstances(ctx, query, processType.String(), limit, offset)
}

func (r *InstanceRepository) queryInstances(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowInstance, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := r.scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InstanceRepository) scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	var processType, stage, status, payload string

	err := row.Scan(
		&instance.ID,
		&processType,
		&instance.Reference.EntityType,
		&instance.Reference.EntityID,
		&stage,
		&status,
		&payload,
		&instance.Version,
		&instance.CreatedBy,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.ProcessType = workflow.ProcessType(processType)
	instance.CurrentStage = workflow.Stage(stage)
	instance.Status = workflow.Status(status)
	if err := json.Unmarshal([]byte(payload), &instance.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if instance.Payload == nil {
		instance.Payload = entity.Payload{}
	}

	return &instance, nil
}

// getExecutor returns appropriate executor based on context
func (r *InstanceRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
