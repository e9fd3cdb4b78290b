package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/port"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	registry     *Registry
	instanceRepo port.InstanceRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	logger       *zap.Logger
}

// NewEngine creates a new workflow engine
func NewEngine(
	registry *Registry,
	instanceRepo port.InstanceRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) Engine {
	return &engineImpl{
		registry:     registry,
		instanceRepo: instanceRepo,
		historyRepo:  historyRepo,
		txManager:    txManager,
		logger:       logger,
	}
}

// StartWorkflow creates an instance in the process's start stage and appends
// the creation entry to the history ledger in one transaction.
func (e *engineImpl) StartWorkflow(ctx context.Context, processType domainwf.ProcessType,
	ref entity.Reference, initiatorID string, initial entity.Fragment) (*entity.WorkflowInstance, error) {

	graph, err := e.registry.Get(processType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	instance := &entity.WorkflowInstance{
		ID:           uuid.NewString(),
		ProcessType:  processType,
		Reference:    ref,
		CurrentStage: graph.Start(),
		Status:       domainwf.StatusActive,
		Payload:      entity.Payload{},
		Version:      1,
		CreatedBy:    initiatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(initial) > 0 {
		instance.Payload[InitialPayloadKey] = initial
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		entry := &entity.HistoryEntry{
			ID:          uuid.NewString(),
			InstanceID:  instance.ID,
			FromStage:   "",
			ToStage:     graph.Start(),
			ActionCode:  StartedActionCode,
			PerformedBy: initiatorID,
			OccurredAt:  now,
		}
		if err := e.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to start workflow",
			zap.String("process_type", processType.String()),
			zap.Error(err))
		return nil, err
	}

	e.logger.Info("Workflow started",
		zap.String("instance_id", instance.ID),
		zap.String("process_type", processType.String()),
		zap.String("stage", graph.Start().String()))
	return instance, nil
}

// GetInstance retrieves an instance by ID
func (e *engineImpl) GetInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	instance, err := e.instanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrNotFound, id)
	}
	return instance, nil
}

// GetHistory retrieves the transition ledger for an instance
func (e *engineImpl) GetHistory(ctx context.Context, id string) ([]*entity.HistoryEntry, error) {
	if _, err := e.GetInstance(ctx, id); err != nil {
		return nil, err
	}
	return e.historyRepo.GetByInstanceID(ctx, id)
}

// AdvanceStage executes the guarded transition for an instance. The whole
// sequence runs inside one transaction; when the caller already opened one
// (a stage handler wrapping its side effects) that transaction is reused, so
// side effect and stage change commit or roll back together.
func (e *engineImpl) AdvanceStage(ctx context.Context, id string, target domainwf.Stage,
	actionCode string, fragment entity.Fragment, performedBy string) (*entity.WorkflowInstance, error) {

	var updated *entity.WorkflowInstance

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		instance, err := e.instanceRepo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get instance: %w", err)
		}
		if instance == nil {
			return fmt.Errorf("%w: %s", domainwf.ErrNotFound, id)
		}

		if instance.Status != domainwf.StatusActive {
			return &domainwf.AlreadyTerminalError{
				InstanceID: instance.ID,
				Stage:      instance.CurrentStage,
				Status:     instance.Status,
			}
		}

		graph, err := e.registry.Get(instance.ProcessType)
		if err != nil {
			return err
		}

		// Second, independent guard: the stage handler computed the target,
		// the graph check catches a handler computing an illegal one.
		if !graph.Allows(instance.CurrentStage, target) {
			return &domainwf.IllegalTransitionError{
				ProcessType: instance.ProcessType,
				From:        instance.CurrentStage,
				To:          target,
			}
		}

		fromStage := instance.CurrentStage
		now := time.Now()

		instance.Payload.Merge(target, fragment)
		instance.CurrentStage = target
		instance.Status = graph.OutcomeOf(target)

		ok, err := e.instanceRepo.UpdateStage(txCtx, instance.ID, target, instance.Status,
			instance.Payload, instance.Version)
		if err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: instance %s", domainwf.ErrConflict, instance.ID)
		}
		instance.Version++
		instance.UpdatedAt = now

		entry := &entity.HistoryEntry{
			ID:          uuid.NewString(),
			InstanceID:  instance.ID,
			FromStage:   fromStage,
			ToStage:     target,
			ActionCode:  actionCode,
			PerformedBy: performedBy,
			OccurredAt:  now,
		}
		if err := e.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		updated = instance
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Stage advanced",
		zap.String("instance_id", updated.ID),
		zap.String("process_type", updated.ProcessType.String()),
		zap.String("stage", updated.CurrentStage.String()),
		zap.String("status", updated.Status.String()),
		zap.String("action", actionCode),
		zap.String("performed_by", performedBy))
	return updated, nil
}

// PermittedStages reports the legal targets from the instance's current stage
func (e *engineImpl) PermittedStages(ctx context.Context, id string) ([]domainwf.Stage, error) {
	instance, err := e.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	graph, err := e.registry.Get(instance.ProcessType)
	if err != nil {
		return nil, err
	}
	return graph.Targets(instance.CurrentStage), nil
}

// ListByStage lists instances of a process currently at a stage
func (e *engineImpl) ListByStage(ctx context.Context, processType domainwf.ProcessType,
	stage domainwf.Stage, limit, offset int) ([]*entity.WorkflowInstance, error) {
	if _, err := e.registry.Get(processType); err != nil {
		return nil, err
	}
	return e.instanceRepo.ListByStage(ctx, processType, stage, limit, offset)
}

// List lists instances of a process regardless of stage
func (e *engineImpl) List(ctx context.Context, processType domainwf.ProcessType,
	limit, offset int) ([]*entity.WorkflowInstance, error) {
	if _, err := e.registry.Get(processType); err != nil {
		return nil, err
	}
	return e.instanceRepo.List(ctx, processType, limit, offset)
}

// Verify interface compliance
var _ Engine = (*engineImpl)(nil)
