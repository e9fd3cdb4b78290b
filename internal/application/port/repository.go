package port

import (
	"context"

	"github.com/jmwangi/schoolflow/internal/domain/entity"
	"github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// InstanceRepository defines persistence operations for WorkflowInstance.
// Reads return (nil, nil) when no row exists; callers map that to NotFound.
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	GetByReference(ctx context.Context, ref entity.Reference) (*entity.WorkflowInstance, error)

	// UpdateStage writes the new stage, status and payload guarded by the
	// optimistic version check. It returns false when the stored version no
	// longer matches fromVersion, i.e. a concurrent advance won.
	UpdateStage(ctx context.Context, id string, stage workflow.Stage, status workflow.Status,
		payload entity.Payload, fromVersion int64) (bool, error)

	ListByStage(ctx context.Context, processType workflow.ProcessType, stage workflow.Stage,
		limit, offset int) ([]*entity.WorkflowInstance, error)
	List(ctx context.Context, processType workflow.ProcessType, limit, offset int) ([]*entity.WorkflowInstance, error)
}

// HistoryRepository defines persistence operations for the append-only
// transition ledger. There is deliberately no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.HistoryEntry, error)
}

// InventoryRepository defines the business-entity mutations stage action
// handlers apply. All mutations must honor a transaction carried in ctx.
type InventoryRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.InventoryItem, error)

	// AdjustQuantity adds delta (which may be negative) to the item's
	// quantity at the given location and fails if the result would be
	// negative.
	AdjustQuantity(ctx context.Context, itemID, locationID, delta int64) error

	// SetQuantity overwrites the system quantity, used by audit adjustments.
	SetQuantity(ctx context.Context, itemID, locationID, quantity int64) error

	MarkDisposed(ctx context.Context, itemID int64) error
}

// RoleLookup resolves an actor to their approval role and spending ceiling.
type RoleLookup interface {
	RoleFor(ctx context.Context, actorID string) (*entity.StaffRole, error)
}

// ActionLogger records advisory audit entries outside the atomic unit.
type ActionLogger interface {
	Log(ctx context.Context, entry *entity.ActionLogEntry) error
}

// TransactionManager handles database transactions. Nested calls reuse the
// transaction already carried in ctx, so a stage handler can wrap its side
// effects and the engine's guarded transition in one atomic unit.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
