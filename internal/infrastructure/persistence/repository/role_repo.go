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

// RoleRepository implements port.RoleLookup backed by the staff_roles table.
type RoleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB, logger *zap.Logger) port.RoleLookup {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// RoleFor resolves an actor to their approval role and spending ceiling.
// An actor without a row has no approval authority; callers treat nil as
// ceiling zero.
func (r *RoleRepository) RoleFor(ctx context.Context, actorID string) (*entity.StaffRole, error) {
	query := `
		SELECT actor_id, role, ceiling, updated_at
		FROM staff_roles
		WHERE actor_id = ?
	`

	var role entity.StaffRole
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, actorID).Scan(
		&role.ActorID,
		&role.Role,
		&role.Ceiling,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up staff role", zap.String("actor_id", actorID), zap.Error(err))
		return nil, fmt.Errorf("failed to look up staff role: %w", err)
	}

	return &role, nil
}

// getExecutor returns appropriate executor based on context
func (r *RoleRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.RoleLookup = (*RoleRepository)(nil)
