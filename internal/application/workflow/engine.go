package workflow

import (
	"context"

	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// InitialPayloadKey is the reserved payload key holding the fragment the
// initiator supplied at creation time.
const InitialPayloadKey = "initiation"

// StartedActionCode labels the creation entry in the history ledger.
const StartedActionCode = "workflow_started"

// Engine orchestrates workflow instances: it creates them, executes guarded
// transitions and answers instance/history queries. AdvanceStage is the only
// way an instance's current stage changes.
type Engine interface {
	// StartWorkflow creates an instance in the process's start stage with
	// the initial fragment stored under InitialPayloadKey.
	StartWorkflow(ctx context.Context, processType domainwf.ProcessType, ref entity.Reference,
		initiatorID string, initial entity.Fragment) (*entity.WorkflowInstance, error)

	// GetInstance returns the instance including its full payload.
	GetInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error)

	// GetHistory returns the instance's transition ledger ordered by time.
	GetHistory(ctx context.Context, id string) ([]*entity.HistoryEntry, error)

	// AdvanceStage executes the guarded transition: it re-validates the
	// target against the transition graph, merges the fragment under the
	// target stage name, moves the instance and appends one history entry,
	// all in one atomic unit with whatever side effects the calling stage
	// handler already applied in the same transaction.
	AdvanceStage(ctx context.Context, id string, target domainwf.Stage, actionCode string,
		fragment entity.Fragment, performedBy string) (*entity.WorkflowInstance, error)

	// PermittedStages reports which stages the instance may legally move to,
	// an introspection hook for dashboards and diagnostics.
	PermittedStages(ctx context.Context, id string) ([]domainwf.Stage, error)

	// ListByStage lists instances of a process currently sitting at a stage.
	ListByStage(ctx context.Context, processType domainwf.ProcessType, stage domainwf.Stage,
		limit, offset int) ([]*entity.WorkflowInstance, error)

	// List lists instances of a process regardless of stage.
	List(ctx context.Context, processType domainwf.ProcessType, limit, offset int) ([]*entity.WorkflowInstance, error)
}
